package typecatalog

import (
	"sort"

	"github.com/conduit-lang/metabridge/internal/cohort"
)

// Status is the reconciliation outcome of one native type
type Status int

const (
	// StatusNew means the registry had no definition and the candidate was published
	StatusNew Status = iota
	// StatusMatched means the registry's equivalent copy was used
	StatusMatched
	// StatusConflict means the registry's copy differs and the type was abandoned
	StatusConflict
	// StatusSkipped means the native type has a shape the cohort cannot represent
	StatusSkipped
	// StatusAbandoned means a type this one depends on was not published
	StatusAbandoned
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusMatched:
		return "matched"
	case StatusConflict:
		return "conflict"
	case StatusSkipped:
		return "skipped"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome records what happened to one native type during a catalog operation
type Outcome struct {
	NativeName string `json:"nativeName" yaml:"nativeName"`
	Name       string `json:"name" yaml:"name"`
	Category   string `json:"category" yaml:"category"`
	GUID       string `json:"guid,omitempty" yaml:"guid,omitempty"`
	Status     Status `json:"status" yaml:"status"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Catalog holds the definitions discovered during one top-level catalog operation.
// It is created per call and never shared between calls.
type Catalog struct {
	Entities        []*cohort.EntityDef
	Relationships   []*cohort.RelationshipDef
	Classifications []*cohort.ClassificationDef
	Enums           []*cohort.EnumDef
	Outcomes        []Outcome
}

func (c *Catalog) addTypeDef(def cohort.TypeDef) {
	switch d := def.(type) {
	case *cohort.EntityDef:
		c.Entities = append(c.Entities, d)
	case *cohort.RelationshipDef:
		c.Relationships = append(c.Relationships, d)
	case *cohort.ClassificationDef:
		c.Classifications = append(c.Classifications, d)
	}
}

func (c *Catalog) addOutcome(o Outcome) {
	c.Outcomes = append(c.Outcomes, o)
}

// TypeDefs returns every published type definition, entities first
func (c *Catalog) TypeDefs() []cohort.TypeDef {
	out := make([]cohort.TypeDef, 0, len(c.Entities)+len(c.Relationships)+len(c.Classifications))
	for _, d := range c.Entities {
		out = append(out, d)
	}
	for _, d := range c.Classifications {
		out = append(out, d)
	}
	for _, d := range c.Relationships {
		out = append(out, d)
	}
	return out
}

// AttributeTypeDefs returns every published enum
func (c *Catalog) AttributeTypeDefs() []cohort.AttributeTypeDef {
	out := make([]cohort.AttributeTypeDef, 0, len(c.Enums))
	for _, e := range c.Enums {
		out = append(out, e)
	}
	return out
}

// Gallery flattens the catalog into a result gallery
func (c *Catalog) Gallery() *cohort.TypeDefGallery {
	return &cohort.TypeDefGallery{
		TypeDefs:          c.TypeDefs(),
		AttributeTypeDefs: c.AttributeTypeDefs(),
	}
}

// Count returns the number of outcomes with the given status
func (c *Catalog) Count(status Status) int {
	n := 0
	for _, o := range c.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// SortedOutcomes returns the outcomes ordered by category then name
func (c *Catalog) SortedOutcomes() []Outcome {
	out := append([]Outcome(nil), c.Outcomes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].NativeName < out[j].NativeName
	})
	return out
}
