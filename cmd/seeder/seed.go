package main

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/matsearch/internal/domain/material"
)

type conceptSeed struct {
	Term         string   `yaml:"term"`
	Domain       string   `yaml:"domain"`
	RelatedTerms []string `yaml:"related_terms"`
	Popularity   int64    `yaml:"popularity"`
}

type conceptFile struct {
	Concepts []conceptSeed `yaml:"concepts"`
}

// parseConcepts decodes a concept seed document.
func parseConcepts(data []byte) ([]conceptSeed, error) {
	var f conceptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode concepts: %w", err)
	}
	for i, c := range f.Concepts {
		if strings.TrimSpace(c.Term) == "" {
			return nil, fmt.Errorf("concept #%d: term is required", i+1)
		}
	}
	return f.Concepts, nil
}

type materialSeed struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	ImageURL    string            `yaml:"image_url"`
	Attributes  map[string]string `yaml:"attributes"`
}

type materialFile struct {
	Materials []materialSeed `yaml:"materials"`
}

// parseMaterials decodes a material seed document. Attribute names must be registered.
func parseMaterials(data []byte) ([]material.Material, error) {
	var f materialFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode materials: %w", err)
	}

	out := make([]material.Material, 0, len(f.Materials))
	for i, s := range f.Materials {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("material #%d: name is required", i+1)
		}
		m := material.Material{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			ImageURL:    s.ImageURL,
		}
		for name, v := range s.Attributes {
			attr, _, err := material.Lookup(name)
			if err != nil {
				return nil, fmt.Errorf("material %q: %w", s.Name, err)
			}
			m.Set(attr, v)
		}
		out = append(out, m)
	}
	return out, nil
}
