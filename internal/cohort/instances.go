package cohort

import (
	"fmt"
	"time"
)

// InstanceStatus is the lifecycle state of an instance
type InstanceStatus int

const (
	StatusUnknown InstanceStatus = iota
	StatusDraft
	StatusPrepared
	StatusProposed
	StatusApproved
	StatusActive
	StatusDeleted
)

// String returns the string representation of the status
func (s InstanceStatus) String() string {
	switch s {
	case StatusDraft:
		return "DRAFT"
	case StatusPrepared:
		return "PREPARED"
	case StatusProposed:
		return "PROPOSED"
	case StatusApproved:
		return "APPROVED"
	case StatusActive:
		return "ACTIVE"
	case StatusDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// ParseInstanceStatus converts a string to an InstanceStatus
func ParseInstanceStatus(s string) (InstanceStatus, error) {
	for st := StatusDraft; st <= StatusDeleted; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown instance status: %s", s)
}

// InstanceProvenance records where an instance came from
type InstanceProvenance int

const (
	ProvenanceUnknown InstanceProvenance = iota
	ProvenanceLocalCohort
	ProvenanceExportArchive
	ProvenanceContentPack
	ProvenanceDeregisteredRepository
	ProvenanceConfiguration
	ProvenanceExternalSource
)

// String returns the string representation of the provenance
func (p InstanceProvenance) String() string {
	switch p {
	case ProvenanceLocalCohort:
		return "LOCAL_COHORT"
	case ProvenanceExportArchive:
		return "EXPORT_ARCHIVE"
	case ProvenanceContentPack:
		return "CONTENT_PACK"
	case ProvenanceDeregisteredRepository:
		return "DEREGISTERED_REPOSITORY"
	case ProvenanceConfiguration:
		return "CONFIGURATION"
	case ProvenanceExternalSource:
		return "EXTERNAL_SOURCE"
	default:
		return "UNKNOWN"
	}
}

// InstanceType describes the type of an instance as carried in its header
type InstanceType struct {
	Category          TypeDefCategory  `json:"typeDefCategory"`
	TypeDefGUID       string           `json:"typeDefGUID"`
	TypeDefName       string           `json:"typeDefName"`
	TypeDefVersion    int64            `json:"typeDefVersion"`
	TypeDefSuperTypes []TypeDefLink    `json:"typeDefSuperTypes,omitempty"`
	ValidStatusList   []InstanceStatus `json:"validStatusList,omitempty"`
	PropertyNames     []string         `json:"validInstanceProperties,omitempty"`
}

// IsTypeOf reports whether the instance type is name or inherits from it
func (t *InstanceType) IsTypeOf(name string) bool {
	if t == nil {
		return false
	}
	if t.TypeDefName == name {
		return true
	}
	for _, st := range t.TypeDefSuperTypes {
		if st.Name == name {
			return true
		}
	}
	return false
}

// InstanceHeader is the identity and audit header shared by entities and relationships
type InstanceHeader struct {
	Type                   *InstanceType      `json:"type"`
	GUID                   string             `json:"guid"`
	MetadataCollectionID   string             `json:"metadataCollectionId"`
	MetadataCollectionName string             `json:"metadataCollectionName,omitempty"`
	Provenance             InstanceProvenance `json:"instanceProvenanceType"`
	ReplicatedBy           string             `json:"replicatedBy,omitempty"`
	Version                int64              `json:"version"`
	Status                 InstanceStatus     `json:"status"`
	StatusOnDelete         InstanceStatus     `json:"statusOnDelete,omitempty"`
	CreatedBy              string             `json:"createdBy,omitempty"`
	UpdatedBy              string             `json:"updatedBy,omitempty"`
	CreateTime             time.Time          `json:"createTime"`
	UpdateTime             time.Time          `json:"updateTime,omitempty"`
}

// TypeName returns the header's type name or "" when untyped
func (h *InstanceHeader) TypeName() string {
	if h.Type == nil {
		return ""
	}
	return h.Type.TypeDefName
}

// ClassificationOrigin records whether a classification was assigned or propagated
type ClassificationOrigin int

const (
	ClassificationAssigned ClassificationOrigin = iota
	ClassificationPropagated
)

// String returns the string representation of the origin
func (o ClassificationOrigin) String() string {
	if o == ClassificationPropagated {
		return "PROPAGATED"
	}
	return "ASSIGNED"
}

// Classification is a named, typed property set attached to an entity
type Classification struct {
	Name                 string               `json:"name"`
	Type                 *InstanceType        `json:"type,omitempty"`
	Properties           *InstanceProperties  `json:"properties,omitempty"`
	Origin               ClassificationOrigin `json:"classificationOrigin"`
	OriginGUID           string               `json:"classificationOriginGUID,omitempty"`
	Status               InstanceStatus       `json:"status"`
	Version              int64                `json:"version"`
	MetadataCollectionID string               `json:"metadataCollectionId,omitempty"`
	CreatedBy            string               `json:"createdBy,omitempty"`
	UpdatedBy            string               `json:"updatedBy,omitempty"`
	CreateTime           time.Time            `json:"createTime"`
	UpdateTime           time.Time            `json:"updateTime,omitempty"`
}

// EntitySummary is an entity's header, type and classifications
type EntitySummary struct {
	InstanceHeader
	Classifications []Classification `json:"classifications,omitempty"`
}

// Classification returns the named classification
func (e *EntitySummary) Classification(name string) (Classification, bool) {
	for _, c := range e.Classifications {
		if c.Name == name {
			return c, true
		}
	}
	return Classification{}, false
}

// HasClassifications reports whether every named classification is present
func (e *EntitySummary) HasClassifications(names []string) bool {
	for _, name := range names {
		if _, ok := e.Classification(name); !ok {
			return false
		}
	}
	return true
}

// EntityDetail is a fully populated entity
type EntityDetail struct {
	EntitySummary
	Properties *InstanceProperties `json:"properties,omitempty"`
}

// EntityProxy is a summary-only snapshot of an entity used as a relationship end
type EntityProxy struct {
	EntitySummary
	UniqueProperties *InstanceProperties `json:"uniqueProperties,omitempty"`
}

// Relationship links two entities
type Relationship struct {
	InstanceHeader
	Properties            *InstanceProperties `json:"properties,omitempty"`
	EntityOneProxy        *EntityProxy        `json:"entityOneProxy"`
	EntityTwoProxy        *EntityProxy        `json:"entityTwoProxy"`
	EntityOnePropertyName string              `json:"entityOnePropertyName,omitempty"`
	EntityTwoPropertyName string              `json:"entityTwoPropertyName,omitempty"`
}

// InstanceGraph is a batch of entities and the relationships between them
type InstanceGraph struct {
	Entities      []*EntityDetail
	Relationships []*Relationship
}
