// Package native models the local graph store's own type system and instances, and
// declares the collaborator interfaces the bridge consumes to reach it.
package native

import (
	"fmt"
	"time"
)

// TypeCategory identifies the kind of a native type definition
type TypeCategory int

const (
	CategoryAny TypeCategory = iota
	CategoryEntity
	CategoryRelationship
	CategoryClassification
	CategoryEnum
	CategoryStruct
)

// String returns the string representation of the category
func (c TypeCategory) String() string {
	switch c {
	case CategoryEntity:
		return "ENTITY"
	case CategoryRelationship:
		return "RELATIONSHIP"
	case CategoryClassification:
		return "CLASSIFICATION"
	case CategoryEnum:
		return "ENUM"
	case CategoryStruct:
		return "STRUCT"
	default:
		return "ANY"
	}
}

// ParseTypeCategory converts a string to a TypeCategory
func ParseTypeCategory(s string) (TypeCategory, error) {
	for c := CategoryEntity; c <= CategoryStruct; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return CategoryAny, fmt.Errorf("unknown native type category: %s", s)
}

// Cardinality is the native value-multiplicity of an attribute
type Cardinality int

const (
	CardinalityUnset Cardinality = iota
	CardinalitySingle
	CardinalityList
	CardinalitySet
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	switch c {
	case CardinalitySingle:
		return "SINGLE"
	case CardinalityList:
		return "LIST"
	case CardinalitySet:
		return "SET"
	default:
		return "UNSET"
	}
}

// StandardMapping relates a native type to an external standard
type StandardMapping struct {
	Standard     string `json:"standard,omitempty"`
	Organization string `json:"organization,omitempty"`
	TypeName     string `json:"typeName,omitempty"`
}

// TypeHeader holds identity and audit fields common to every native type
type TypeHeader struct {
	GUID              string            `json:"guid"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	DescriptionGUID   string            `json:"descriptionGuid,omitempty"`
	Version           int64             `json:"version"`
	TypeVersion       string            `json:"typeVersion,omitempty"`
	ServiceType       string            `json:"serviceType,omitempty"`
	Options           map[string]string `json:"options,omitempty"`
	ExternalStandards []StandardMapping `json:"externalStandards,omitempty"`
	CreatedBy         string            `json:"createdBy,omitempty"`
	UpdatedBy         string            `json:"updatedBy,omitempty"`
	CreateTime        time.Time         `json:"createTime"`
	UpdateTime        time.Time         `json:"updateTime"`
}

// AttributeDef describes one native attribute
type AttributeDef struct {
	Name           string      `json:"name"`
	TypeName       string      `json:"typeName"`
	IsOptional     bool        `json:"isOptional"`
	Cardinality    Cardinality `json:"cardinality"`
	ValuesMinCount int         `json:"valuesMinCount"`
	ValuesMaxCount int         `json:"valuesMaxCount"`
	IsUnique       bool        `json:"isUnique"`
	IsIndexable    bool        `json:"isIndexable"`
	DefaultValue   string      `json:"defaultValue,omitempty"`
	Description    string      `json:"description,omitempty"`
}

// TypeDef is one of *EntityTypeDef, *RelationshipTypeDef, *ClassificationTypeDef,
// *EnumTypeDef or *StructTypeDef
type TypeDef interface {
	Header() *TypeHeader
	Category() TypeCategory
	isNativeTypeDef()
}

// EntityTypeDef is a native entity type
type EntityTypeDef struct {
	TypeHeader
	SuperTypes []string       `json:"superTypes,omitempty"`
	Attributes []AttributeDef `json:"attributeDefs,omitempty"`
}

// Header returns the type header
func (d *EntityTypeDef) Header() *TypeHeader { return &d.TypeHeader }

// Category returns CategoryEntity
func (d *EntityTypeDef) Category() TypeCategory { return CategoryEntity }

func (*EntityTypeDef) isNativeTypeDef() {}

// PropagateTags is the native classification propagation rule
type PropagateTags int

const (
	PropagateNone PropagateTags = iota
	PropagateOneToTwo
	PropagateTwoToOne
	PropagateBoth
)

// RelationshipEndDef is one end of a native relationship type. Name is the attribute
// on Type's entities that refers to the other end.
type RelationshipEndDef struct {
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	IsContainer bool        `json:"isContainer"`
	Cardinality Cardinality `json:"cardinality"`
}

// RelationshipTypeDef is a native relationship type
type RelationshipTypeDef struct {
	TypeHeader
	Attributes    []AttributeDef     `json:"attributeDefs,omitempty"`
	End1          RelationshipEndDef `json:"endDef1"`
	End2          RelationshipEndDef `json:"endDef2"`
	PropagateTags PropagateTags      `json:"propagateTags"`
}

// Header returns the type header
func (d *RelationshipTypeDef) Header() *TypeHeader { return &d.TypeHeader }

// Category returns CategoryRelationship
func (d *RelationshipTypeDef) Category() TypeCategory { return CategoryRelationship }

func (*RelationshipTypeDef) isNativeTypeDef() {}

// ClassificationTypeDef is a native classification type. An empty EntityTypes list
// allows any entity type.
type ClassificationTypeDef struct {
	TypeHeader
	SuperTypes  []string       `json:"superTypes,omitempty"`
	EntityTypes []string       `json:"entityTypes,omitempty"`
	Attributes  []AttributeDef `json:"attributeDefs,omitempty"`
}

// Header returns the type header
func (d *ClassificationTypeDef) Header() *TypeHeader { return &d.TypeHeader }

// Category returns CategoryClassification
func (d *ClassificationTypeDef) Category() TypeCategory { return CategoryClassification }

func (*ClassificationTypeDef) isNativeTypeDef() {}

// EnumElementDef is one native enum element
type EnumElementDef struct {
	Value       string `json:"value"`
	Ordinal     int    `json:"ordinal"`
	Description string `json:"description,omitempty"`
}

// EnumTypeDef is a native enum type
type EnumTypeDef struct {
	TypeHeader
	Elements     []EnumElementDef `json:"elementDefs"`
	DefaultValue string           `json:"defaultValue,omitempty"`
}

// Header returns the type header
func (d *EnumTypeDef) Header() *TypeHeader { return &d.TypeHeader }

// Category returns CategoryEnum
func (d *EnumTypeDef) Category() TypeCategory { return CategoryEnum }

func (*EnumTypeDef) isNativeTypeDef() {}

// StructTypeDef is a native struct type; it has no counterpart in the exchange model
type StructTypeDef struct {
	TypeHeader
	Attributes []AttributeDef `json:"attributeDefs,omitempty"`
}

// Header returns the type header
func (d *StructTypeDef) Header() *TypeHeader { return &d.TypeHeader }

// Category returns CategoryStruct
func (d *StructTypeDef) Category() TypeCategory { return CategoryStruct }

func (*StructTypeDef) isNativeTypeDef() {}

// TypesDef is a batch of native type definitions partitioned by category
type TypesDef struct {
	EntityDefs         []*EntityTypeDef         `json:"entityDefs,omitempty"`
	RelationshipDefs   []*RelationshipTypeDef   `json:"relationshipDefs,omitempty"`
	ClassificationDefs []*ClassificationTypeDef `json:"classificationDefs,omitempty"`
	EnumDefs           []*EnumTypeDef           `json:"enumDefs,omitempty"`
	StructDefs         []*StructTypeDef         `json:"structDefs,omitempty"`
}

// Add appends def to the matching partition
func (t *TypesDef) Add(def TypeDef) {
	switch d := def.(type) {
	case *EntityTypeDef:
		t.EntityDefs = append(t.EntityDefs, d)
	case *RelationshipTypeDef:
		t.RelationshipDefs = append(t.RelationshipDefs, d)
	case *ClassificationTypeDef:
		t.ClassificationDefs = append(t.ClassificationDefs, d)
	case *EnumTypeDef:
		t.EnumDefs = append(t.EnumDefs, d)
	case *StructTypeDef:
		t.StructDefs = append(t.StructDefs, d)
	}
}

// All returns every definition in the batch, enums first
func (t *TypesDef) All() []TypeDef {
	out := make([]TypeDef, 0, t.Len())
	for _, d := range t.EnumDefs {
		out = append(out, d)
	}
	for _, d := range t.StructDefs {
		out = append(out, d)
	}
	for _, d := range t.EntityDefs {
		out = append(out, d)
	}
	for _, d := range t.ClassificationDefs {
		out = append(out, d)
	}
	for _, d := range t.RelationshipDefs {
		out = append(out, d)
	}
	return out
}

// Len returns the number of definitions in the batch
func (t *TypesDef) Len() int {
	return len(t.EntityDefs) + len(t.RelationshipDefs) + len(t.ClassificationDefs) +
		len(t.EnumDefs) + len(t.StructDefs)
}

// SearchFilter restricts SearchTypeDefs results. Zero values match everything.
type SearchFilter struct {
	Category  TypeCategory
	Name      string
	SuperType string
}

// Matches reports whether def passes the filter
func (f SearchFilter) Matches(def TypeDef) bool {
	if f.Category != CategoryAny && def.Category() != f.Category {
		return false
	}
	if f.Name != "" && def.Header().Name != f.Name {
		return false
	}
	if f.SuperType != "" {
		var supers []string
		switch d := def.(type) {
		case *EntityTypeDef:
			supers = d.SuperTypes
		case *ClassificationTypeDef:
			supers = d.SuperTypes
		}
		found := false
		for _, s := range supers {
			if s == f.SuperType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SuperTypesOf returns the declared supertypes of an entity or classification type
func SuperTypesOf(def TypeDef) []string {
	switch d := def.(type) {
	case *EntityTypeDef:
		return d.SuperTypes
	case *ClassificationTypeDef:
		return d.SuperTypes
	default:
		return nil
	}
}

// SubTypeClosure returns name and the names of every definition that inherits from it
func SubTypeClosure(defs []TypeDef, name string) map[string]bool {
	names := map[string]bool{name: true}
	for changed := true; changed; {
		changed = false
		for _, def := range defs {
			typeName := def.Header().Name
			if names[typeName] {
				continue
			}
			for _, st := range SuperTypesOf(def) {
				if names[st] {
					names[typeName] = true
					changed = true
					break
				}
			}
		}
	}
	return names
}
