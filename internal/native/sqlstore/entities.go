package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/conduit-lang/metabridge/internal/native"
)

func decodeEntity(body string) (*native.Entity, error) {
	var e native.Entity
	if err := decodeBody(body, &e); err != nil {
		return nil, fmt.Errorf("failed to decode entity: %w", err)
	}
	normalizeAttributes(e.Attributes)
	for i := range e.Classifications {
		normalizeAttributes(e.Classifications[i].Attributes)
	}
	return &e, nil
}

func (s *Store) entity(ctx context.Context, q queryer, guid string) (*native.Entity, error) {
	var body string
	err := s.queryRow(ctx, q, `SELECT body FROM mb_entities WHERE guid = $1`, guid).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", guid, convertDBError(err))
	}
	return decodeEntity(body)
}

func (s *Store) writeEntity(ctx context.Context, q queryer, e *native.Entity, insert bool) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entity %s: %w", e.GUID, err)
	}
	if insert {
		_, err = s.exec(ctx, q,
			`INSERT INTO mb_entities (guid, type_name, status, body) VALUES ($1, $2, $3, $4)`,
			e.GUID, e.TypeName, int(e.Status), string(body))
		return err
	}
	res, err := s.exec(ctx, q,
		`UPDATE mb_entities SET type_name = $1, status = $2, body = $3 WHERE guid = $4`,
		e.TypeName, int(e.Status), string(body), e.GUID)
	if err != nil {
		return err
	}
	return requireAffected(res, "entity "+e.GUID)
}

// GetEntity returns the entity with the given guid
func (s *Store) GetEntity(ctx context.Context, guid string) (*native.Entity, error) {
	return s.entity(ctx, s.db, guid)
}

// CreateOrUpdateEntity stores the entity body. Classifications on the input are
// ignored; existing classifications are kept on update.
func (s *Store) CreateOrUpdateEntity(ctx context.Context, entity *native.Entity) (*native.Entity, error) {
	stored := entity.Clone()
	now := s.now()

	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		if err := s.typeExists(ctx, tx, stored.TypeName); err != nil {
			return err
		}
		if stored.GUID == "" {
			stored.GUID = uuid.New().String()
		}

		existing, err := s.entity(ctx, tx, stored.GUID)
		insert := native.IsNotFound(err)
		if err != nil && !insert {
			return err
		}
		if insert {
			stored.Classifications = nil
			if stored.CreateTime.IsZero() {
				stored.CreateTime = now
			}
		} else {
			stored.Classifications = existing.Classifications
			if stored.CreateTime.IsZero() {
				stored.CreateTime = existing.CreateTime
			}
		}
		if stored.UpdateTime.IsZero() {
			stored.UpdateTime = now
		}
		if stored.Version == 0 {
			stored.Version = 1
		}
		return s.writeEntity(ctx, tx, stored, insert)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// modifyEntity runs a read-modify-write of one entity inside a transaction
func (s *Store) modifyEntity(ctx context.Context, guid string, fn func(e *native.Entity) error) error {
	return s.withTransaction(ctx, func(tx *sql.Tx) error {
		e, err := s.entity(ctx, tx, guid)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
		return s.writeEntity(ctx, tx, e, false)
	})
}

// AddClassifications attaches new classifications to an entity
func (s *Store) AddClassifications(ctx context.Context, guid string, classifications []native.Classification) error {
	now := s.now()
	return s.modifyEntity(ctx, guid, func(e *native.Entity) error {
		for _, c := range classifications {
			if _, exists := e.Classification(c.TypeName); exists {
				return fmt.Errorf("classification %s on %s: %w", c.TypeName, guid, native.ErrAlreadyExists)
			}
		}
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
	})
}

// UpdateClassifications replaces existing classifications on an entity
func (s *Store) UpdateClassifications(ctx context.Context, guid string, classifications []native.Classification) error {
	now := s.now()
	return s.modifyEntity(ctx, guid, func(e *native.Entity) error {
		for _, c := range classifications {
			idx := classificationIndex(e, c.TypeName)
			if idx < 0 {
				return fmt.Errorf("classification %s on %s: %w", c.TypeName, guid, native.ErrNotFound)
			}
			c.EntityGUID = guid
			c.UpdateTime = now
			e.Classifications[idx] = c
		}
		return nil
	})
}

// DeleteClassification removes a classification from an entity
func (s *Store) DeleteClassification(ctx context.Context, guid, classificationName string) error {
	return s.modifyEntity(ctx, guid, func(e *native.Entity) error {
		idx := classificationIndex(e, classificationName)
		if idx < 0 {
			return fmt.Errorf("classification %s on %s: %w", classificationName, guid, native.ErrNotFound)
		}
		e.Classifications = append(e.Classifications[:idx], e.Classifications[idx+1:]...)
		return nil
	})
}

// DeleteEntity marks an entity deleted
func (s *Store) DeleteEntity(ctx context.Context, guid string) error {
	now := s.now()
	return s.modifyEntity(ctx, guid, func(e *native.Entity) error {
		e.Status = native.StatusDeleted
		e.UpdateTime = now
		return nil
	})
}

// PurgeEntity removes an entity permanently
func (s *Store) PurgeEntity(ctx context.Context, guid string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM mb_entities WHERE guid = $1`, guid)
	if err != nil {
		return err
	}
	return requireAffected(res, "entity "+guid)
}

func classificationIndex(e *native.Entity, name string) int {
	for i, c := range e.Classifications {
		if c.TypeName == name {
			return i
		}
	}
	return -1
}

// decodeBody decodes a stored JSON document, keeping attribute numbers as
// json.Number so whole numbers beyond 2^53 survive
func decodeBody(body string, into interface{}) error {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	return dec.Decode(into)
}

// normalizeAttributes turns decoded json.Number values into int64 or float64
func normalizeAttributes(attrs map[string]interface{}) {
	for k, v := range attrs {
		attrs[k] = normalizeValue(v)
	}
}

func normalizeValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return i
		}
		if f, err := tv.Float64(); err == nil {
			return f
		}
		return tv.String()
	case []interface{}:
		for i := range tv {
			tv[i] = normalizeValue(tv[i])
		}
		return tv
	case map[string]interface{}:
		normalizeAttributes(tv)
		return tv
	default:
		return v
	}
}
