// Package registry provides the shared type registry the bridge reconciles against
package registry

import (
	"context"
	"sync"

	"github.com/conduit-lang/metabridge/internal/cohort"
)

// Registry is the cohort-wide store of published type definitions. Lookups that do
// not resolve return an error of kind cohort.ErrTypeNotKnown. Registering a name that
// is already taken by a structurally different definition returns cohort.ErrTypeConflict.
type Registry interface {
	GetTypeDefByName(ctx context.Context, name string) (cohort.TypeDef, error)
	GetTypeDefByGUID(ctx context.Context, guid string) (cohort.TypeDef, error)
	GetAttributeTypeDefByName(ctx context.Context, name string) (cohort.AttributeTypeDef, error)
	GetAttributeTypeDefByGUID(ctx context.Context, guid string) (cohort.AttributeTypeDef, error)
	RegisterTypeDef(ctx context.Context, def cohort.TypeDef) error
	RegisterAttributeTypeDef(ctx context.Context, def cohort.AttributeTypeDef) error
	UpdateTypeDef(ctx context.Context, def cohort.TypeDef) error
	RemoveTypeDef(ctx context.Context, guid, name string) error
	RemoveAttributeTypeDef(ctx context.Context, guid, name string) error
}

// Equivalent is the registry's deep-equivalence helper
func Equivalent(a, b cohort.TypeDef) bool {
	return cohort.EquivalentTypeDefs(a, b)
}

// Memory is an in-process Registry
type Memory struct {
	typeDefs       map[string]cohort.TypeDef
	typeGUIDs      map[string]string
	attributeTypes map[string]cohort.AttributeTypeDef
	attributeGUIDs map[string]string
	mu             sync.RWMutex
}

var _ Registry = (*Memory)(nil)

// NewMemory creates an empty in-process registry
func NewMemory() *Memory {
	return &Memory{
		typeDefs:       make(map[string]cohort.TypeDef),
		typeGUIDs:      make(map[string]string),
		attributeTypes: make(map[string]cohort.AttributeTypeDef),
		attributeGUIDs: make(map[string]string),
	}
}

// GetTypeDefByName returns a copy of the named definition
func (m *Memory) GetTypeDefByName(ctx context.Context, name string) (cohort.TypeDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.typeDefs[name]
	if !ok {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, "registry.GetTypeDefByName", name, "not registered")
	}
	return def.Clone(), nil
}

// GetTypeDefByGUID returns a copy of the definition with the given guid
func (m *Memory) GetTypeDefByGUID(ctx context.Context, guid string) (cohort.TypeDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.typeGUIDs[guid]
	if !ok {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, "registry.GetTypeDefByGUID", guid, "not registered")
	}
	return m.typeDefs[name].Clone(), nil
}

// GetAttributeTypeDefByName returns the named attribute type
func (m *Memory) GetAttributeTypeDefByName(ctx context.Context, name string) (cohort.AttributeTypeDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.attributeTypes[name]
	if !ok {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, "registry.GetAttributeTypeDefByName", name, "not registered")
	}
	return copyAttributeType(def), nil
}

// GetAttributeTypeDefByGUID returns the attribute type with the given guid
func (m *Memory) GetAttributeTypeDefByGUID(ctx context.Context, guid string) (cohort.AttributeTypeDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.attributeGUIDs[guid]
	if !ok {
		return nil, cohort.Errorf(cohort.ErrTypeNotKnown, "registry.GetAttributeTypeDefByGUID", guid, "not registered")
	}
	return copyAttributeType(m.attributeTypes[name]), nil
}

// RegisterTypeDef publishes a definition. Re-registering an equivalent definition is
// a no-op.
func (m *Memory) RegisterTypeDef(ctx context.Context, def cohort.TypeDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := def.Base().Name
	if existing, ok := m.typeDefs[name]; ok {
		if Equivalent(existing, def) {
			return nil
		}
		return cohort.Errorf(cohort.ErrTypeConflict, "registry.RegisterTypeDef", name,
			"a different definition is already registered")
	}

	m.typeDefs[name] = def.Clone()
	m.typeGUIDs[def.Base().GUID] = name
	return nil
}

// RegisterAttributeTypeDef publishes an attribute type
func (m *Memory) RegisterAttributeTypeDef(ctx context.Context, def cohort.AttributeTypeDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := def.TypeName()
	if existing, ok := m.attributeTypes[name]; ok {
		if cohort.EquivalentAttributeTypeDefs(existing, def) {
			return nil
		}
		return cohort.Errorf(cohort.ErrTypeConflict, "registry.RegisterAttributeTypeDef", name,
			"a different attribute type is already registered")
	}

	m.attributeTypes[name] = copyAttributeType(def)
	m.attributeGUIDs[def.TypeGUID()] = name
	return nil
}

// UpdateTypeDef replaces a registered definition
func (m *Memory) UpdateTypeDef(ctx context.Context, def cohort.TypeDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := def.Base().Name
	existing, ok := m.typeDefs[name]
	if !ok {
		return cohort.Errorf(cohort.ErrTypeNotKnown, "registry.UpdateTypeDef", name, "not registered")
	}
	delete(m.typeGUIDs, existing.Base().GUID)
	m.typeDefs[name] = def.Clone()
	m.typeGUIDs[def.Base().GUID] = name
	return nil
}

// RemoveTypeDef removes a definition by guid and name
func (m *Memory) RemoveTypeDef(ctx context.Context, guid, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.typeDefs[name]; !ok {
		return cohort.Errorf(cohort.ErrTypeNotKnown, "registry.RemoveTypeDef", name, "not registered")
	}
	delete(m.typeDefs, name)
	delete(m.typeGUIDs, guid)
	return nil
}

// RemoveAttributeTypeDef removes an attribute type by guid and name
func (m *Memory) RemoveAttributeTypeDef(ctx context.Context, guid, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.attributeTypes[name]; !ok {
		return cohort.Errorf(cohort.ErrTypeNotKnown, "registry.RemoveAttributeTypeDef", name, "not registered")
	}
	delete(m.attributeTypes, name)
	delete(m.attributeGUIDs, guid)
	return nil
}

func copyAttributeType(def cohort.AttributeTypeDef) cohort.AttributeTypeDef {
	switch d := def.(type) {
	case *cohort.EnumDef:
		return d.Clone()
	case *cohort.CollectionDef:
		c := *d
		c.ArgumentTypes = append([]cohort.PrimitiveKind(nil), d.ArgumentTypes...)
		return &c
	case *cohort.PrimitiveDef:
		c := *d
		return &c
	default:
		return def
	}
}
