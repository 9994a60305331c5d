// Package material models searchable material records and their attributes.
package material

// Material is a catalogue record.
type Material struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Category     string            `json:"category,omitempty"`
	MaterialType string            `json:"material_type,omitempty"`
	Color        string            `json:"color,omitempty"`
	Finish       string            `json:"finish,omitempty"`
	Manufacturer string            `json:"manufacturer,omitempty"`
	Texture      string            `json:"texture,omitempty"`
	Dimensions   string            `json:"dimensions,omitempty"`
	ImageURL     string            `json:"image_url,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// Scored is a material with the scores accumulated during a search.
// DomainScore and CombinedScore are set only by domain ranking and never persisted.
type Scored struct {
	Material
	Score         float64  `json:"score"`
	DomainScore   *float64 `json:"domain_score,omitempty"`
	CombinedScore *float64 `json:"combined_score,omitempty"`
}

// RankScore returns CombinedScore when present, else Score.
func (s *Scored) RankScore() float64 {
	if s.CombinedScore != nil {
		return *s.CombinedScore
	}
	return s.Score
}

// Text returns the searchable text of the material.
func (m *Material) Text() string {
	switch {
	case m.Name == "":
		return m.Description
	case m.Description == "":
		return m.Name
	default:
		return m.Name + ". " + m.Description
	}
}
