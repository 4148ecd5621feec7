// Package cohort defines the vendor-neutral metadata exchange model shared by every
// repository in a federation: type definitions, attribute types, instances and the
// error kinds raised by repository operations.
package cohort

import (
	"fmt"
	"time"
)

// TypeDefCategory identifies the kind of a TypeDef
type TypeDefCategory int

const (
	UnknownTypeDefCategory TypeDefCategory = iota
	EntityDefCategory
	RelationshipDefCategory
	ClassificationDefCategory
)

// String returns the string representation of the category
func (c TypeDefCategory) String() string {
	switch c {
	case EntityDefCategory:
		return "ENTITY_DEF"
	case RelationshipDefCategory:
		return "RELATIONSHIP_DEF"
	case ClassificationDefCategory:
		return "CLASSIFICATION_DEF"
	default:
		return "UNKNOWN_DEF"
	}
}

// ParseTypeDefCategory converts a string to a TypeDefCategory
func ParseTypeDefCategory(s string) (TypeDefCategory, error) {
	switch s {
	case "ENTITY_DEF":
		return EntityDefCategory, nil
	case "RELATIONSHIP_DEF":
		return RelationshipDefCategory, nil
	case "CLASSIFICATION_DEF":
		return ClassificationDefCategory, nil
	default:
		return UnknownTypeDefCategory, fmt.Errorf("unknown typedef category: %s", s)
	}
}

// TypeDefLink is a lightweight reference to a type
type TypeDefLink struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
}

// ExternalStandardMapping relates a type to a definition in an external standard
type ExternalStandardMapping struct {
	StandardName         string `json:"standardName,omitempty"`
	StandardOrganization string `json:"standardOrganization,omitempty"`
	StandardTypeName     string `json:"standardTypeName,omitempty"`
}

// AttributeCardinality describes how many values an attribute may hold
type AttributeCardinality int

const (
	UnknownCardinality AttributeCardinality = iota
	AtMostOne
	OneOnly
	AtLeastOneOrdered
	AtLeastOneUnordered
	AnyNumberOrdered
	AnyNumberUnordered
)

// String returns the string representation of the cardinality
func (c AttributeCardinality) String() string {
	switch c {
	case AtMostOne:
		return "AT_MOST_ONE"
	case OneOnly:
		return "ONE_ONLY"
	case AtLeastOneOrdered:
		return "AT_LEAST_ONE_ORDERED"
	case AtLeastOneUnordered:
		return "AT_LEAST_ONE_UNORDERED"
	case AnyNumberOrdered:
		return "ANY_NUMBER_ORDERED"
	case AnyNumberUnordered:
		return "ANY_NUMBER_UNORDERED"
	default:
		return "UNKNOWN"
	}
}

// TypeDefAttribute describes one property of a type
type TypeDefAttribute struct {
	Name           string               `json:"attributeName"`
	Description    string               `json:"attributeDescription,omitempty"`
	Type           AttributeTypeDef     `json:"-"`
	Cardinality    AttributeCardinality `json:"cardinality"`
	ValuesMinCount int                  `json:"valuesMinCount"`
	ValuesMaxCount int                  `json:"valuesMaxCount"`
	Unique         bool                 `json:"unique"`
	Indexable      bool                 `json:"indexable"`
	DefaultValue   string               `json:"defaultValue,omitempty"`
}

// TypeDefBase holds the fields shared by every TypeDef category
type TypeDefBase struct {
	GUID                     string                    `json:"guid"`
	Name                     string                    `json:"name"`
	Version                  int64                     `json:"version"`
	VersionName              string                    `json:"versionName,omitempty"`
	Description              string                    `json:"description,omitempty"`
	DescriptionGUID          string                    `json:"descriptionGUID,omitempty"`
	SuperType                *TypeDefLink              `json:"superType,omitempty"`
	Options                  map[string]string         `json:"options,omitempty"`
	ExternalStandardMappings []ExternalStandardMapping `json:"externalStandardMappings,omitempty"`
	Properties               []TypeDefAttribute        `json:"propertiesDefinition,omitempty"`
	Origin                   string                    `json:"origin,omitempty"`
	CreatedBy                string                    `json:"createdBy,omitempty"`
	UpdatedBy                string                    `json:"updatedBy,omitempty"`
	CreateTime               time.Time                 `json:"createTime,omitempty"`
	UpdateTime               time.Time                 `json:"updateTime,omitempty"`
}

// Link returns a TypeDefLink for the type
func (b *TypeDefBase) Link() TypeDefLink {
	return TypeDefLink{GUID: b.GUID, Name: b.Name}
}

// Property returns the named property declared directly on the type
func (b *TypeDefBase) Property(name string) (TypeDefAttribute, bool) {
	for _, p := range b.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return TypeDefAttribute{}, false
}

// TypeDef is one of *EntityDef, *RelationshipDef or *ClassificationDef
type TypeDef interface {
	Base() *TypeDefBase
	Category() TypeDefCategory
	Clone() TypeDef
	isTypeDef()
}

// EntityDef describes an entity type
type EntityDef struct {
	TypeDefBase
}

// Base returns the shared type fields
func (d *EntityDef) Base() *TypeDefBase { return &d.TypeDefBase }

// Category returns EntityDefCategory
func (d *EntityDef) Category() TypeDefCategory { return EntityDefCategory }

// Clone returns a deep copy
func (d *EntityDef) Clone() TypeDef {
	return &EntityDef{TypeDefBase: d.TypeDefBase.clone()}
}

func (*EntityDef) isTypeDef() {}

// RelationshipEndCardinality describes how many entities may sit at a relationship end
type RelationshipEndCardinality int

const (
	UnknownEndCardinality RelationshipEndCardinality = iota
	EndAtMostOne
	EndAnyNumber
)

// String returns the string representation of the end cardinality
func (c RelationshipEndCardinality) String() string {
	switch c {
	case EndAtMostOne:
		return "AT_MOST_ONE"
	case EndAnyNumber:
		return "ANY_NUMBER"
	default:
		return "UNKNOWN"
	}
}

// RelationshipEndDef describes one end of a relationship type
type RelationshipEndDef struct {
	EntityType           TypeDefLink                `json:"entityType"`
	AttributeName        string                     `json:"attributeName"`
	AttributeDescription string                     `json:"attributeDescription,omitempty"`
	Cardinality          RelationshipEndCardinality `json:"attributeCardinality"`
}

// ClassificationPropagationRule governs whether classifications flow across a relationship
type ClassificationPropagationRule int

const (
	PropagateNone ClassificationPropagationRule = iota
	PropagateOneToTwo
	PropagateTwoToOne
	PropagateBoth
)

// String returns the string representation of the propagation rule
func (r ClassificationPropagationRule) String() string {
	switch r {
	case PropagateNone:
		return "NONE"
	case PropagateOneToTwo:
		return "ONE_TO_TWO"
	case PropagateTwoToOne:
		return "TWO_TO_ONE"
	case PropagateBoth:
		return "BOTH"
	default:
		return "UNKNOWN"
	}
}

// RelationshipDef describes a relationship type
type RelationshipDef struct {
	TypeDefBase
	EndDef1     RelationshipEndDef            `json:"endDef1"`
	EndDef2     RelationshipEndDef            `json:"endDef2"`
	Propagation ClassificationPropagationRule `json:"propagationRule"`
}

// Base returns the shared type fields
func (d *RelationshipDef) Base() *TypeDefBase { return &d.TypeDefBase }

// Category returns RelationshipDefCategory
func (d *RelationshipDef) Category() TypeDefCategory { return RelationshipDefCategory }

// Clone returns a deep copy
func (d *RelationshipDef) Clone() TypeDef {
	return &RelationshipDef{
		TypeDefBase: d.TypeDefBase.clone(),
		EndDef1:     d.EndDef1,
		EndDef2:     d.EndDef2,
		Propagation: d.Propagation,
	}
}

func (*RelationshipDef) isTypeDef() {}

// ClassificationDef describes a classification type. An empty ValidEntityDefs list
// means the classification may be attached to any entity type.
type ClassificationDef struct {
	TypeDefBase
	ValidEntityDefs []TypeDefLink `json:"validEntityDefs,omitempty"`
	Propagatable    bool          `json:"propagatable"`
}

// Base returns the shared type fields
func (d *ClassificationDef) Base() *TypeDefBase { return &d.TypeDefBase }

// Category returns ClassificationDefCategory
func (d *ClassificationDef) Category() TypeDefCategory { return ClassificationDefCategory }

// Clone returns a deep copy
func (d *ClassificationDef) Clone() TypeDef {
	c := &ClassificationDef{
		TypeDefBase:  d.TypeDefBase.clone(),
		Propagatable: d.Propagatable,
	}
	if d.ValidEntityDefs != nil {
		c.ValidEntityDefs = append([]TypeDefLink(nil), d.ValidEntityDefs...)
	}
	return c
}

func (*ClassificationDef) isTypeDef() {}

func (b TypeDefBase) clone() TypeDefBase {
	c := b
	if b.SuperType != nil {
		st := *b.SuperType
		c.SuperType = &st
	}
	if b.Options != nil {
		c.Options = make(map[string]string, len(b.Options))
		for k, v := range b.Options {
			c.Options[k] = v
		}
	}
	if b.ExternalStandardMappings != nil {
		c.ExternalStandardMappings = append([]ExternalStandardMapping(nil), b.ExternalStandardMappings...)
	}
	if b.Properties != nil {
		c.Properties = append([]TypeDefAttribute(nil), b.Properties...)
	}
	return c
}

// TypeDefGallery is a flat collection of type definitions
type TypeDefGallery struct {
	TypeDefs          []TypeDef          `json:"typeDefs"`
	AttributeTypeDefs []AttributeTypeDef `json:"attributeTypeDefs"`
}

// TypeDefByName returns the named TypeDef from the gallery
func (g *TypeDefGallery) TypeDefByName(name string) (TypeDef, bool) {
	for _, def := range g.TypeDefs {
		if def.Base().Name == name {
			return def, true
		}
	}
	return nil, false
}

// PatchAction identifies the change a TypeDefPatch applies
type PatchAction int

const (
	UnknownPatchAction PatchAction = iota
	AddOptions
	UpdateOptions
	DeleteOptions
	AddAttributes
	UpdateDescription
	AddExternalStandards
	UpdateExternalStandards
	DeleteExternalStandards
)

// String returns the string representation of the patch action
func (a PatchAction) String() string {
	switch a {
	case AddOptions:
		return "ADD_OPTIONS"
	case UpdateOptions:
		return "UPDATE_OPTIONS"
	case DeleteOptions:
		return "DELETE_OPTIONS"
	case AddAttributes:
		return "ADD_ATTRIBUTES"
	case UpdateDescription:
		return "UPDATE_DESCRIPTION"
	case AddExternalStandards:
		return "ADD_EXTERNAL_STANDARDS"
	case UpdateExternalStandards:
		return "UPDATE_EXTERNAL_STANDARDS"
	case DeleteExternalStandards:
		return "DELETE_EXTERNAL_STANDARDS"
	default:
		return "UNKNOWN"
	}
}

// TypeDefPatch is an incremental change to an existing TypeDef
type TypeDefPatch struct {
	TypeDefGUID              string
	TypeDefName              string
	Action                   PatchAction
	ApplyToVersion           int64
	UpdateToVersion          int64
	NewVersionName           string
	Description              string
	DescriptionGUID          string
	PropertyDefinitions      []TypeDefAttribute
	TypeDefOptions           map[string]string
	ExternalStandardMappings []ExternalStandardMapping
}
