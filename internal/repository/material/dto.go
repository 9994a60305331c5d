package material

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/matsearch/internal/db"
	dommaterial "github.com/kailas-cloud/matsearch/internal/domain/material"
)

const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldText        = "text"
	fieldImageURL    = "image_url"
	fieldExtra       = "extra_properties"
)

// returnFields lists every stored field except the vector.
func returnFields() []string {
	attrs := dommaterial.Registered()
	out := make([]string, 0, len(attrs)+3)
	out = append(out, fieldName, fieldDescription, fieldImageURL, fieldExtra)
	for _, a := range attrs {
		out = append(out, string(a))
	}
	return out
}

// buildHashFields flattens a material for HSET. Registered attributes get
// their own TAG-indexed field; unregistered properties travel as JSON.
func buildHashFields(m *dommaterial.Material, vec []float32) (map[string]string, error) {
	fields := map[string]string{
		fieldName: m.Name,
		fieldText: searchText(m),
	}
	if m.Description != "" {
		fields[fieldDescription] = m.Description
	}
	if m.ImageURL != "" {
		fields[fieldImageURL] = m.ImageURL
	}
	for _, a := range dommaterial.Registered() {
		if v, ok := m.Get(a); ok {
			fields[string(a)] = v
		}
	}

	extra := make(map[string]string)
	for k, v := range m.Properties {
		if _, _, err := dommaterial.Lookup(k); err != nil {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		raw, err := json.Marshal(extra)
		if err != nil {
			return nil, fmt.Errorf("marshal extra properties: %w", err)
		}
		fields[fieldExtra] = string(raw)
	}

	if len(vec) > 0 {
		fields[db.VectorField] = db.EncodeVector(vec)
	}
	return fields, nil
}

func parseHashFields(id string, fields map[string]string) dommaterial.Material {
	m := dommaterial.Material{
		ID:          id,
		Name:        fields[fieldName],
		Description: fields[fieldDescription],
		ImageURL:    fields[fieldImageURL],
	}
	for _, a := range dommaterial.Registered() {
		if v := fields[string(a)]; v != "" {
			m.Set(a, v)
		}
	}
	if raw := fields[fieldExtra]; raw != "" {
		var extra map[string]string
		if err := json.Unmarshal([]byte(raw), &extra); err == nil {
			for k, v := range extra {
				if m.Properties == nil {
					m.Properties = make(map[string]string, len(extra))
				}
				m.Properties[k] = v
			}
		}
	}
	return m
}

// searchText is the BM25 document: name, description and the descriptive attributes.
func searchText(m *dommaterial.Material) string {
	parts := []string{m.Text()}
	for _, v := range []string{m.Category, m.MaterialType, m.Color, m.Finish, m.Texture, m.Manufacturer} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
