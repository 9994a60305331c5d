package material

import (
	"fmt"
	"slices"
	"strings"
)

// Attribute is a key from the closed set of material attributes.
type Attribute string

// Attributes backed by typed fields.
const (
	AttrCategory     Attribute = "category"
	AttrMaterialType Attribute = "material_type"
	AttrColor        Attribute = "color"
	AttrFinish       Attribute = "finish"
	AttrManufacturer Attribute = "manufacturer"
	AttrTexture      Attribute = "texture"
	AttrDimensions   Attribute = "dimensions"
)

// Attributes stored in Material.Properties.
const (
	AttrFireRating           Attribute = "fire_rating"
	AttrSustainabilityRating Attribute = "sustainability_rating"
	AttrDurability           Attribute = "durability"
	AttrLoadCapacity         Attribute = "load_capacity"
	AttrThermalPerformance   Attribute = "thermal_performance"
	AttrAcousticRating       Attribute = "acoustic_rating"
	AttrWaterResistance      Attribute = "water_resistance"
	AttrPrice                Attribute = "price"
	AttrAvailability         Attribute = "availability"
	AttrCertification        Attribute = "certification"
	AttrMaintenance          Attribute = "maintenance"
	AttrSafetyRating         Attribute = "safety_rating"
	AttrTolerance            Attribute = "tolerance"
	AttrMachinability        Attribute = "machinability"
)

// Accessor reads one attribute off a material; ok is false when absent.
type Accessor func(m *Material) (value string, ok bool)

// FallbackDifferentiators are compared after the ontology attributes
// when explaining how an alternative differs from the primary result.
var FallbackDifferentiators = []Attribute{AttrColor, AttrFinish, AttrMaterialType, AttrManufacturer}

var registry = map[Attribute]Accessor{
	AttrCategory:     field(func(m *Material) string { return m.Category }),
	AttrMaterialType: field(func(m *Material) string { return m.MaterialType }),
	AttrColor:        field(func(m *Material) string { return m.Color }),
	AttrFinish:       field(func(m *Material) string { return m.Finish }),
	AttrManufacturer: field(func(m *Material) string { return m.Manufacturer }),
	AttrTexture:      field(func(m *Material) string { return m.Texture }),
	AttrDimensions:   field(func(m *Material) string { return m.Dimensions }),

	AttrFireRating:           property(AttrFireRating),
	AttrSustainabilityRating: property(AttrSustainabilityRating),
	AttrDurability:           property(AttrDurability),
	AttrLoadCapacity:         property(AttrLoadCapacity),
	AttrThermalPerformance:   property(AttrThermalPerformance),
	AttrAcousticRating:       property(AttrAcousticRating),
	AttrWaterResistance:      property(AttrWaterResistance),
	AttrPrice:                property(AttrPrice),
	AttrAvailability:         property(AttrAvailability),
	AttrCertification:        property(AttrCertification),
	AttrMaintenance:          property(AttrMaintenance),
	AttrSafetyRating:         property(AttrSafetyRating),
	AttrTolerance:            property(AttrTolerance),
	AttrMachinability:        property(AttrMachinability),
}

func field(get func(m *Material) string) Accessor {
	return func(m *Material) (string, bool) {
		v := get(m)
		return v, v != ""
	}
}

func property(a Attribute) Accessor {
	key := string(a)
	return func(m *Material) (string, bool) {
		v, ok := m.Properties[key]
		return v, ok && v != ""
	}
}

// Lookup resolves a registered attribute by name. Names are case-insensitive.
func Lookup(name string) (Attribute, Accessor, error) {
	a := Attribute(strings.ToLower(strings.TrimSpace(name)))
	acc, ok := registry[a]
	if !ok {
		return "", nil, fmt.Errorf("unknown material attribute %q", name)
	}
	return a, acc, nil
}

// Get reads attribute a off m.
func (m *Material) Get(a Attribute) (string, bool) {
	acc, ok := registry[a]
	if !ok {
		return "", false
	}
	return acc(m)
}

// Set writes attribute a on m. Unregistered attributes are stored as properties.
func (m *Material) Set(a Attribute, v string) {
	switch a {
	case AttrCategory:
		m.Category = v
	case AttrMaterialType:
		m.MaterialType = v
	case AttrColor:
		m.Color = v
	case AttrFinish:
		m.Finish = v
	case AttrManufacturer:
		m.Manufacturer = v
	case AttrTexture:
		m.Texture = v
	case AttrDimensions:
		m.Dimensions = v
	default:
		if m.Properties == nil {
			m.Properties = make(map[string]string)
		}
		m.Properties[string(a)] = v
	}
}

// Registered returns all registered attributes in a stable order.
func Registered() []Attribute {
	out := make([]Attribute, 0, len(registry))
	for a := range registry {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}
