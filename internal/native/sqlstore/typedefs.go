package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/conduit-lang/metabridge/internal/native"
)

func encodeTypeDef(def native.TypeDef) (string, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("failed to encode type %s: %w", def.Header().Name, err)
	}
	return string(data), nil
}

func decodeTypeDef(category, body string) (native.TypeDef, error) {
	cat, err := native.ParseTypeCategory(category)
	if err != nil {
		return nil, err
	}
	var def native.TypeDef
	switch cat {
	case native.CategoryEntity:
		def = &native.EntityTypeDef{}
	case native.CategoryRelationship:
		def = &native.RelationshipTypeDef{}
	case native.CategoryClassification:
		def = &native.ClassificationTypeDef{}
	case native.CategoryEnum:
		def = &native.EnumTypeDef{}
	case native.CategoryStruct:
		def = &native.StructTypeDef{}
	}
	if err := json.Unmarshal([]byte(body), def); err != nil {
		return nil, fmt.Errorf("failed to decode %s type: %w", category, err)
	}
	return def, nil
}

func (s *Store) loadTypeDefs(ctx context.Context, q queryer) ([]native.TypeDef, error) {
	rows, err := s.query(ctx, q, `SELECT category, body FROM mb_typedefs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := make([]native.TypeDef, 0)
	for rows.Next() {
		var category, body string
		if err := rows.Scan(&category, &body); err != nil {
			return nil, err
		}
		def, err := decodeTypeDef(category, body)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *Store) typeDefWhere(ctx context.Context, q queryer, column, value string) (native.TypeDef, error) {
	var category, body string
	err := s.queryRow(ctx, q, `SELECT category, body FROM mb_typedefs WHERE `+column+` = $1`, value).
		Scan(&category, &body)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", value, convertDBError(err))
	}
	return decodeTypeDef(category, body)
}

// SearchTypeDefs returns the definitions passing filter, sorted by name
func (s *Store) SearchTypeDefs(ctx context.Context, filter native.SearchFilter) (*native.TypesDef, error) {
	defs, err := s.loadTypeDefs(ctx, s.db)
	if err != nil {
		return nil, err
	}
	result := &native.TypesDef{}
	for _, def := range defs {
		if filter.Matches(def) {
			result.Add(def)
		}
	}
	return result, nil
}

// GetTypeDefByName returns the named definition
func (s *Store) GetTypeDefByName(ctx context.Context, name string) (native.TypeDef, error) {
	return s.typeDefWhere(ctx, s.db, "name", name)
}

// GetTypeDefByGUID returns the definition with the given guid
func (s *Store) GetTypeDefByGUID(ctx context.Context, guid string) (native.TypeDef, error) {
	return s.typeDefWhere(ctx, s.db, "guid", guid)
}

// CreateTypeDefs inserts new definitions in one transaction
func (s *Store) CreateTypeDefs(ctx context.Context, defs *native.TypesDef) (*native.TypesDef, error) {
	created := &native.TypesDef{}
	now := s.now()

	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		for _, def := range defs.All() {
			h := def.Header()
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

			body, err := encodeTypeDef(def)
			if err != nil {
				return err
			}
			if _, err := s.exec(ctx, tx,
				`INSERT INTO mb_typedefs (guid, name, category, body) VALUES ($1, $2, $3, $4)`,
				h.GUID, h.Name, def.Category().String(), body); err != nil {
				return fmt.Errorf("type %s: %w", h.Name, err)
			}
			created.Add(def)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateTypeDefs replaces existing definitions, keeping their identity and creation stamps
func (s *Store) UpdateTypeDefs(ctx context.Context, defs *native.TypesDef) (*native.TypesDef, error) {
	updated := &native.TypesDef{}
	now := s.now()

	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		for _, def := range defs.All() {
			h := def.Header()
			existing, err := s.typeDefWhere(ctx, tx, "name", h.Name)
			if err != nil {
				return err
			}
			eh := existing.Header()
			h.GUID = eh.GUID
			h.CreatedBy = eh.CreatedBy
			h.CreateTime = eh.CreateTime
			h.UpdateTime = now
			if h.Version <= eh.Version {
				h.Version = eh.Version + 1
			}
			if h.Description != "" && h.DescriptionGUID == "" {
				h.DescriptionGUID = uuid.New().String()
			}

			body, err := encodeTypeDef(def)
			if err != nil {
				return err
			}
			res, err := s.exec(ctx, tx, `UPDATE mb_typedefs SET body = $1 WHERE name = $2`, body, h.Name)
			if err != nil {
				return err
			}
			if err := requireAffected(res, "type "+h.Name); err != nil {
				return err
			}
			updated.Add(def)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTypeDefs removes definitions by name
func (s *Store) DeleteTypeDefs(ctx context.Context, defs *native.TypesDef) error {
	return s.withTransaction(ctx, func(tx *sql.Tx) error {
		for _, def := range defs.All() {
			name := def.Header().Name
			res, err := s.exec(ctx, tx, `DELETE FROM mb_typedefs WHERE name = $1`, name)
			if err != nil {
				return err
			}
			if err := requireAffected(res, "type "+name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) typeExists(ctx context.Context, q queryer, name string) error {
	var one int
	err := s.queryRow(ctx, q, `SELECT 1 FROM mb_typedefs WHERE name = $1`, name).Scan(&one)
	if err != nil {
		return fmt.Errorf("type %s: %w", name, convertDBError(err))
	}
	return nil
}
