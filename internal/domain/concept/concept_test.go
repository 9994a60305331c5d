package concept

import "testing"

func TestIDFor_StableAndCaseInsensitive(t *testing.T) {
	a := IDFor("architecture", "Tile")
	b := IDFor("ARCHITECTURE", "tile")
	if a != b {
		t.Errorf("ids differ: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("id length = %d, want 16 hex chars", len(a))
	}
	if IDFor("retail", "tile") == a {
		t.Error("different domains must give different ids")
	}
}

func TestNew_DefaultsDomain(t *testing.T) {
	c, err := New(" marble ", "", []float32{1}, []string{"stone"}, -3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.DomainContext() != GeneralDomain {
		t.Errorf("DomainContext = %q, want general", c.DomainContext())
	}
	if c.Term() != "marble" {
		t.Errorf("Term = %q, want trimmed", c.Term())
	}
	if c.Popularity() != 0 {
		t.Errorf("Popularity = %d, want 0", c.Popularity())
	}
	if c.ID() != IDFor(GeneralDomain, "marble") {
		t.Error("unexpected id")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "general", []float32{1}, nil, 0); err == nil {
		t.Error("expected error for empty term")
	}
	if _, err := New("oak", "general", nil, nil, 0); err == nil {
		t.Error("expected error for missing embedding")
	}
}
