package result

import (
	"testing"

	"github.com/kailas-cloud/matsearch/internal/domain/material"
)

func TestMaterialIDs(t *testing.T) {
	e := Envelope{Materials: []material.Scored{
		{Material: material.Material{ID: "a"}},
		{Material: material.Material{ID: "b"}},
	}}
	ids := e.MaterialIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("MaterialIDs = %v", ids)
	}
}
