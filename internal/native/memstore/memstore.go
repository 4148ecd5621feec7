// Package memstore is an in-memory implementation of the native store collaborators
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conduit-lang/metabridge/internal/native"
)

// Store keeps native types and instances in memory
type Store struct {
	mu            sync.RWMutex
	types         map[string]native.TypeDef
	typeGUIDs     map[string]string
	entities      map[string]*native.Entity
	relationships map[string]*native.Relationship
	now           func() time.Time
}

var _ native.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		types:         make(map[string]native.TypeDef),
		typeGUIDs:     make(map[string]string),
		entities:      make(map[string]*native.Entity),
		relationships: make(map[string]*native.Relationship),
		now:           time.Now,
	}
}

// SetClock replaces the time source used for audit stamps
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SearchTypeDefs returns the definitions passing filter, sorted by name
func (s *Store) SearchTypeDefs(ctx context.Context, filter native.SearchFilter) (*native.TypesDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &native.TypesDef{}
	for _, name := range names {
		def := s.types[name]
		if filter.Matches(def) {
			result.Add(copyTypeDef(def))
		}
	}
	return result, nil
}

// GetTypeDefByName returns the named definition
func (s *Store) GetTypeDefByName(ctx context.Context, name string) (native.TypeDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.types[name]
	if !ok {
		return nil, fmt.Errorf("type %s: %w", name, native.ErrNotFound)
	}
	return copyTypeDef(def), nil
}

// GetTypeDefByGUID returns the definition with the given guid
func (s *Store) GetTypeDefByGUID(ctx context.Context, guid string) (native.TypeDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.typeGUIDs[guid]
	if !ok {
		return nil, fmt.Errorf("type guid %s: %w", guid, native.ErrNotFound)
	}
	return copyTypeDef(s.types[name]), nil
}

// CreateTypeDefs stores new definitions, assigning guids and audit stamps
func (s *Store) CreateTypeDefs(ctx context.Context, defs *native.TypesDef) (*native.TypesDef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, def := range defs.All() {
		h := def.Header()
		if _, exists := s.types[h.Name]; exists {
			return nil, fmt.Errorf("type %s: %w", h.Name, native.ErrAlreadyExists)
		}
		if _, exists := s.typeGUIDs[h.GUID]; exists && h.GUID != "" {
			return nil, fmt.Errorf("type guid %s: %w", h.GUID, native.ErrAlreadyExists)
		}
	}

	created := &native.TypesDef{}
	now := s.now()
	for _, def := range defs.All() {
		stored := copyTypeDef(def)
		h := stored.Header()
		if h.GUID == "" {
			h.GUID = uuid.New().String()
		}
		if h.Version == 0 {
			h.Version = 1
		}
		h.CreateTime = now
		h.UpdateTime = now
		if h.UpdatedBy == "" {
			h.UpdatedBy = h.CreatedBy
		}
		if h.Description != "" && h.DescriptionGUID == "" {
			h.DescriptionGUID = uuid.New().String()
		}
		s.types[h.Name] = stored
		s.typeGUIDs[h.GUID] = h.Name
		created.Add(copyTypeDef(stored))
	}
	return created, nil
}

// UpdateTypeDefs replaces existing definitions, keeping their identity and creation stamps
func (s *Store) UpdateTypeDefs(ctx context.Context, defs *native.TypesDef) (*native.TypesDef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, def := range defs.All() {
		if _, exists := s.types[def.Header().Name]; !exists {
			return nil, fmt.Errorf("type %s: %w", def.Header().Name, native.ErrNotFound)
		}
	}

	updated := &native.TypesDef{}
	now := s.now()
	for _, def := range defs.All() {
		existing := s.types[def.Header().Name].Header()
		stored := copyTypeDef(def)
		h := stored.Header()
		h.GUID = existing.GUID
		h.CreatedBy = existing.CreatedBy
		h.CreateTime = existing.CreateTime
		h.UpdateTime = now
		if h.Version <= existing.Version {
			h.Version = existing.Version + 1
		}
		if h.Description != "" && h.DescriptionGUID == "" {
			h.DescriptionGUID = uuid.New().String()
		}
		s.types[h.Name] = stored
		updated.Add(copyTypeDef(stored))
	}
	return updated, nil
}

// DeleteTypeDefs removes definitions by name
func (s *Store) DeleteTypeDefs(ctx context.Context, defs *native.TypesDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, def := range defs.All() {
		name := def.Header().Name
		existing, ok := s.types[name]
		if !ok {
			return fmt.Errorf("type %s: %w", name, native.ErrNotFound)
		}
		delete(s.typeGUIDs, existing.Header().GUID)
		delete(s.types, name)
	}
	return nil
}

// GetEntity returns the entity with the given guid
func (s *Store) GetEntity(ctx context.Context, guid string) (*native.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[guid]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", guid, native.ErrNotFound)
	}
	return e.Clone(), nil
}

// CreateOrUpdateEntity stores the entity body. Classifications on the input are
// ignored; existing classifications are kept on update.
func (s *Store) CreateOrUpdateEntity(ctx context.Context, entity *native.Entity) (*native.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.types[entity.TypeName]; !ok {
		return nil, fmt.Errorf("entity type %s: %w", entity.TypeName, native.ErrNotFound)
	}

	stored := entity.Clone()
	now := s.now()
	if stored.GUID == "" {
		stored.GUID = uuid.New().String()
	}
	if existing, ok := s.entities[stored.GUID]; ok {
		stored.Classifications = existing.Clone().Classifications
		if stored.CreateTime.IsZero() {
			stored.CreateTime = existing.CreateTime
		}
	} else {
		stored.Classifications = nil
		if stored.CreateTime.IsZero() {
			stored.CreateTime = now
		}
	}
	if stored.UpdateTime.IsZero() {
		stored.UpdateTime = now
	}
	if stored.Version == 0 {
		stored.Version = 1
	}

	s.entities[stored.GUID] = stored
	return stored.Clone(), nil
}

// AddClassifications attaches new classifications to an entity
func (s *Store) AddClassifications(ctx context.Context, guid string, classifications []native.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[guid]
	if !ok {
		return fmt.Errorf("entity %s: %w", guid, native.ErrNotFound)
	}
	for _, c := range classifications {
		if _, exists := e.Classification(c.TypeName); exists {
			return fmt.Errorf("classification %s on %s: %w", c.TypeName, guid, native.ErrAlreadyExists)
		}
	}
	now := s.now()
	for _, c := range classifications {
		c.EntityGUID = guid
		if c.CreateTime.IsZero() {
			c.CreateTime = now
		}
		if c.UpdateTime.IsZero() {
			c.UpdateTime = now
		}
		e.Classifications = append(e.Classifications, c)
	}
	return nil
}

// UpdateClassifications replaces existing classifications on an entity
func (s *Store) UpdateClassifications(ctx context.Context, guid string, classifications []native.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[guid]
	if !ok {
		return fmt.Errorf("entity %s: %w", guid, native.ErrNotFound)
	}
	for _, c := range classifications {
		idx := classificationIndex(e, c.TypeName)
		if idx < 0 {
			return fmt.Errorf("classification %s on %s: %w", c.TypeName, guid, native.ErrNotFound)
		}
		c.EntityGUID = guid
		c.UpdateTime = s.now()
		e.Classifications[idx] = c
	}
	return nil
}

// DeleteClassification removes a classification from an entity
func (s *Store) DeleteClassification(ctx context.Context, guid, classificationName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[guid]
	if !ok {
		return fmt.Errorf("entity %s: %w", guid, native.ErrNotFound)
	}
	idx := classificationIndex(e, classificationName)
	if idx < 0 {
		return fmt.Errorf("classification %s on %s: %w", classificationName, guid, native.ErrNotFound)
	}
	e.Classifications = append(e.Classifications[:idx], e.Classifications[idx+1:]...)
	return nil
}

// DeleteEntity marks an entity deleted
func (s *Store) DeleteEntity(ctx context.Context, guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[guid]
	if !ok {
		return fmt.Errorf("entity %s: %w", guid, native.ErrNotFound)
	}
	e.Status = native.StatusDeleted
	e.UpdateTime = s.now()
	return nil
}

// PurgeEntity removes an entity permanently
func (s *Store) PurgeEntity(ctx context.Context, guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[guid]; !ok {
		return fmt.Errorf("entity %s: %w", guid, native.ErrNotFound)
	}
	delete(s.entities, guid)
	return nil
}

// GetRelationship returns the relationship with the given guid
func (s *Store) GetRelationship(ctx context.Context, guid string) (*native.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.relationships[guid]
	if !ok {
		return nil, fmt.Errorf("relationship %s: %w", guid, native.ErrNotFound)
	}
	return r.Clone(), nil
}

// CreateRelationship stores a new relationship. Both ends must already exist.
func (s *Store) CreateRelationship(ctx context.Context, rel *native.Relationship) (*native.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.types[rel.TypeName]; !ok {
		return nil, fmt.Errorf("relationship type %s: %w", rel.TypeName, native.ErrNotFound)
	}
	if rel.GUID != "" {
		if _, exists := s.relationships[rel.GUID]; exists {
			return nil, fmt.Errorf("relationship %s: %w", rel.GUID, native.ErrAlreadyExists)
		}
	}
	for _, end := range []native.ObjectID{rel.End1, rel.End2} {
		if _, ok := s.entities[end.GUID]; !ok {
			return nil, fmt.Errorf("relationship end %s: %w", end.GUID, native.ErrNotFound)
		}
	}

	stored := rel.Clone()
	now := s.now()
	if stored.GUID == "" {
		stored.GUID = uuid.New().String()
	}
	if stored.CreateTime.IsZero() {
		stored.CreateTime = now
	}
	if stored.UpdateTime.IsZero() {
		stored.UpdateTime = now
	}
	if stored.Version == 0 {
		stored.Version = 1
	}
	s.relationships[stored.GUID] = stored
	return stored.Clone(), nil
}

// UpdateRelationship replaces an existing relationship
func (s *Store) UpdateRelationship(ctx context.Context, rel *native.Relationship) (*native.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.relationships[rel.GUID]
	if !ok {
		return nil, fmt.Errorf("relationship %s: %w", rel.GUID, native.ErrNotFound)
	}
	stored := rel.Clone()
	if stored.CreateTime.IsZero() {
		stored.CreateTime = existing.CreateTime
	}
	if stored.UpdateTime.IsZero() {
		stored.UpdateTime = s.now()
	}
	s.relationships[stored.GUID] = stored
	return stored.Clone(), nil
}

// DeleteRelationship marks a relationship deleted
func (s *Store) DeleteRelationship(ctx context.Context, guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.relationships[guid]
	if !ok {
		return fmt.Errorf("relationship %s: %w", guid, native.ErrNotFound)
	}
	r.Status = native.StatusDeleted
	r.UpdateTime = s.now()
	return nil
}

// PurgeRelationship removes a relationship permanently
func (s *Store) PurgeRelationship(ctx context.Context, guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.relationships[guid]; !ok {
		return fmt.Errorf("relationship %s: %w", guid, native.ErrNotFound)
	}
	delete(s.relationships, guid)
	return nil
}

// RelationshipsForEntity returns every relationship with the entity at either end
func (s *Store) RelationshipsForEntity(ctx context.Context, entityGUID string) ([]*native.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entities[entityGUID]; !ok {
		return nil, fmt.Errorf("entity %s: %w", entityGUID, native.ErrNotFound)
	}
	result := make([]*native.Relationship, 0)
	for _, r := range s.relationships {
		if r.End1.GUID == entityGUID || r.End2.GUID == entityGUID {
			result = append(result, r.Clone())
		}
	}
	native.SortRelationships(result)
	return result, nil
}

func classificationIndex(e *native.Entity, name string) int {
	for i, c := range e.Classifications {
		if c.TypeName == name {
			return i
		}
	}
	return -1
}
