// Package instances converts entities, relationships and classifications between the
// native store and the cohort model, and implements their lifecycle on top of the
// native entity and relationship stores.
package instances

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// DeleteMode selects whether delete flips an instance's status or removes it
type DeleteMode int

const (
	// SoftDelete marks instances deleted; they can be restored or purged later
	SoftDelete DeleteMode = iota
	// HardDelete disables delete; callers purge directly
	HardDelete
)

// String returns the configuration name of the mode
func (d DeleteMode) String() string {
	if d == HardDelete {
		return "hard"
	}
	return "soft"
}

// ParseDeleteMode converts a configuration value to a DeleteMode
func ParseDeleteMode(s string) (DeleteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "soft":
		return SoftDelete, nil
	case "hard":
		return HardDelete, nil
	default:
		return SoftDelete, fmt.Errorf("unknown delete mode %q (want soft or hard)", s)
	}
}

// Store is the native instance storage the mapper writes through to
type Store interface {
	native.EntityStore
	native.RelationshipStore
}

// TypeResolver resolves reconciled type information. *typecatalog.Bridge satisfies it.
type TypeResolver interface {
	TypeInfo(ctx context.Context, name string) (*typecatalog.TypeInfo, error)
	TypeInfoByGUID(ctx context.Context, guid string) (*typecatalog.TypeInfo, error)
	NativeTypeInfo(ctx context.Context, nativeName string) (*typecatalog.TypeInfo, error)
}

// Config holds the repository identity and the delete mode, fixed at construction
type Config struct {
	CollectionID   string
	CollectionName string
	DeleteMode     DeleteMode
}

// Mapper implements the instance lifecycle for one metadata collection
type Mapper struct {
	store          Store
	types          TypeResolver
	collectionID   string
	collectionName string
	deleteMode     DeleteMode
	logger         *zap.Logger
}

// New creates a Mapper
func New(store Store, types TypeResolver, cfg Config, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{
		store:          store,
		types:          types,
		collectionID:   cfg.CollectionID,
		collectionName: cfg.CollectionName,
		deleteMode:     cfg.DeleteMode,
		logger:         logger.Named("instances"),
	}
}

// CollectionID returns the id of the collection this mapper serves
func (m *Mapper) CollectionID() string {
	return m.collectionID
}

// DeleteMode returns the configured delete mode
func (m *Mapper) DeleteMode() DeleteMode {
	return m.deleteMode
}

// IsLocal reports whether homeID names this repository. An empty id is local.
func (m *Mapper) IsLocal(homeID string) bool {
	return homeID == "" || homeID == m.collectionID
}

func validateUser(op, userID string) error {
	if userID == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "user id is empty")
	}
	return nil
}

func requireGUID(op, what, guid string) error {
	if guid == "" {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, "", "%s guid is empty", what)
	}
	return nil
}

// resolveType finds a type by guid, falling back to name; when both are given they
// must agree
func (m *Mapper) resolveType(ctx context.Context, op, guid, name string, category cohort.TypeDefCategory) (*typecatalog.TypeInfo, error) {
	var (
		info *typecatalog.TypeInfo
		err  error
	)
	switch {
	case guid != "":
		info, err = m.types.TypeInfoByGUID(ctx, guid)
	case name != "":
		info, err = m.types.TypeInfo(ctx, name)
	default:
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, "", "type guid and name are both empty")
	}
	if err != nil {
		return nil, err
	}
	if name != "" && info.Name() != name {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "type guid identifies %s, not %s", info.Name(), name)
	}
	if info.Def.Category() != category {
		return nil, cohort.Errorf(cohort.ErrInvalidParameter, op, info.Name(), "%s is a %s, not a %s",
			info.Name(), info.Def.Category(), category)
	}
	return info, nil
}

// checkType verifies a stored instance is of the type the caller named
func checkType(op, guid, typeGUID, typeName string, info *typecatalog.TypeInfo) error {
	if typeGUID != "" && info.Def.Base().GUID != typeGUID {
		matched := false
		for _, a := range info.Ancestors {
			if a.Base().GUID == typeGUID {
				matched = true
				break
			}
		}
		if !matched {
			return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "instance is a %s, not of type guid %s", info.Name(), typeGUID)
		}
	}
	if typeName != "" && !info.IsTypeOf(typeName) {
		return cohort.Errorf(cohort.ErrInvalidParameter, op, guid, "instance is a %s, not a %s", info.Name(), typeName)
	}
	return nil
}

func (m *Mapper) loadEntity(ctx context.Context, op, guid string) (*native.Entity, error) {
	e, err := m.store.GetEntity(ctx, guid)
	if err != nil {
		if native.IsNotFound(err) {
			return nil, cohort.Errorf(cohort.ErrInstanceNotKnown, op, guid, "no such entity")
		}
		return nil, cohort.Wrap(op, guid, err)
	}
	return e, nil
}

// liveEntity loads an active, fully stored entity for modification
func (m *Mapper) liveEntity(ctx context.Context, op, guid string) (*native.Entity, error) {
	e, err := m.loadEntity(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	if e.Status == native.StatusDeleted {
		return nil, cohort.Errorf(cohort.ErrInstanceNotKnown, op, guid, "entity is deleted")
	}
	if e.IsProxy {
		return nil, cohort.Errorf(cohort.ErrEntityProxyOnly, op, guid, "entity is a proxy")
	}
	return e, nil
}

func (m *Mapper) loadRelationship(ctx context.Context, op, guid string) (*native.Relationship, error) {
	r, err := m.store.GetRelationship(ctx, guid)
	if err != nil {
		if native.IsNotFound(err) {
			return nil, cohort.Errorf(cohort.ErrInstanceNotKnown, op, guid, "no such relationship")
		}
		return nil, cohort.Wrap(op, guid, err)
	}
	return r, nil
}

func (m *Mapper) liveRelationship(ctx context.Context, op, guid string) (*native.Relationship, error) {
	r, err := m.loadRelationship(ctx, op, guid)
	if err != nil {
		return nil, err
	}
	if r.Status == native.StatusDeleted {
		return nil, cohort.Errorf(cohort.ErrInstanceNotKnown, op, guid, "relationship is deleted")
	}
	return r, nil
}

// ToNativeStatus maps a cohort status onto the two states the native store keeps
func ToNativeStatus(op, id string, s cohort.InstanceStatus) (native.Status, error) {
	switch s {
	case cohort.StatusActive, cohort.StatusUnknown:
		return native.StatusActive, nil
	case cohort.StatusDeleted:
		return native.StatusDeleted, nil
	default:
		return native.StatusActive, cohort.Errorf(cohort.ErrTypeNotSupported, op, id, "status %s cannot be stored", s)
	}
}

// ToProtocolStatus maps a native status to its cohort counterpart
func ToProtocolStatus(s native.Status) cohort.InstanceStatus {
	if s == native.StatusDeleted {
		return cohort.StatusDeleted
	}
	return cohort.StatusActive
}

// initialStatus checks the status a new instance is created with
func initialStatus(op, typeName string, s cohort.InstanceStatus) (native.Status, error) {
	if s == cohort.StatusDeleted {
		return native.StatusActive, cohort.Errorf(cohort.ErrInvalidParameter, op, typeName, "instances cannot be created deleted")
	}
	return ToNativeStatus(op, typeName, s)
}
