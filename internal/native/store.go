package native

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a type or instance does not exist in the store
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating something whose guid or name is taken
	ErrAlreadyExists = errors.New("already exists")
)

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists returns true if the error is ErrAlreadyExists
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// TypeDefStore reads and writes native type definitions
type TypeDefStore interface {
	SearchTypeDefs(ctx context.Context, filter SearchFilter) (*TypesDef, error)
	GetTypeDefByName(ctx context.Context, name string) (TypeDef, error)
	GetTypeDefByGUID(ctx context.Context, guid string) (TypeDef, error)
	CreateTypeDefs(ctx context.Context, defs *TypesDef) (*TypesDef, error)
	UpdateTypeDefs(ctx context.Context, defs *TypesDef) (*TypesDef, error)
	DeleteTypeDefs(ctx context.Context, defs *TypesDef) error
}

// EntityStore reads and writes native entities. CreateOrUpdateEntity assigns a guid
// when the entity has none and stores classifications separately from the entity body.
type EntityStore interface {
	GetEntity(ctx context.Context, guid string) (*Entity, error)
	CreateOrUpdateEntity(ctx context.Context, entity *Entity) (*Entity, error)
	AddClassifications(ctx context.Context, guid string, classifications []Classification) error
	UpdateClassifications(ctx context.Context, guid string, classifications []Classification) error
	DeleteClassification(ctx context.Context, guid, classificationName string) error
	DeleteEntity(ctx context.Context, guid string) error
	PurgeEntity(ctx context.Context, guid string) error
}

// RelationshipStore reads and writes native relationships
type RelationshipStore interface {
	GetRelationship(ctx context.Context, guid string) (*Relationship, error)
	CreateRelationship(ctx context.Context, rel *Relationship) (*Relationship, error)
	UpdateRelationship(ctx context.Context, rel *Relationship) (*Relationship, error)
	DeleteRelationship(ctx context.Context, guid string) error
	PurgeRelationship(ctx context.Context, guid string) error
	RelationshipsForEntity(ctx context.Context, entityGUID string) ([]*Relationship, error)
}

// DiscoveryService runs native searches. Offset and Limit of zero mean no window.
type DiscoveryService interface {
	SearchWithQuery(ctx context.Context, query *StructuredQuery) (*SearchResult, error)
	SearchWithParameters(ctx context.Context, params *SearchParameters) (*SearchResult, error)
}

// Store is the full set of native collaborators
type Store interface {
	TypeDefStore
	EntityStore
	RelationshipStore
	DiscoveryService
}
