package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/conduit-lang/metabridge/internal/native"
)

func decodeRelationship(body string) (*native.Relationship, error) {
	var r native.Relationship
	if err := decodeBody(body, &r); err != nil {
		return nil, fmt.Errorf("failed to decode relationship: %w", err)
	}
	normalizeAttributes(r.Attributes)
	normalizeAttributes(r.End1.UniqueAttributes)
	normalizeAttributes(r.End2.UniqueAttributes)
	return &r, nil
}

func (s *Store) relationship(ctx context.Context, q queryer, guid string) (*native.Relationship, error) {
	var body string
	err := s.queryRow(ctx, q, `SELECT body FROM mb_relationships WHERE guid = $1`, guid).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("relationship %s: %w", guid, convertDBError(err))
	}
	return decodeRelationship(body)
}

func (s *Store) writeRelationship(ctx context.Context, q queryer, r *native.Relationship, insert bool) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode relationship %s: %w", r.GUID, err)
	}
	if insert {
		_, err = s.exec(ctx, q,
			`INSERT INTO mb_relationships (guid, type_name, end1_guid, end2_guid, status, body) VALUES ($1, $2, $3, $4, $5, $6)`,
			r.GUID, r.TypeName, r.End1.GUID, r.End2.GUID, int(r.Status), string(body))
		if err != nil {
			return fmt.Errorf("relationship %s: %w", r.GUID, err)
		}
		return nil
	}
	res, err := s.exec(ctx, q,
		`UPDATE mb_relationships SET type_name = $1, end1_guid = $2, end2_guid = $3, status = $4, body = $5 WHERE guid = $6`,
		r.TypeName, r.End1.GUID, r.End2.GUID, int(r.Status), string(body), r.GUID)
	if err != nil {
		return err
	}
	return requireAffected(res, "relationship "+r.GUID)
}

// GetRelationship returns the relationship with the given guid
func (s *Store) GetRelationship(ctx context.Context, guid string) (*native.Relationship, error) {
	return s.relationship(ctx, s.db, guid)
}

// CreateRelationship stores a new relationship. Both ends must already exist.
func (s *Store) CreateRelationship(ctx context.Context, rel *native.Relationship) (*native.Relationship, error) {
	stored := rel.Clone()
	now := s.now()

	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		if err := s.typeExists(ctx, tx, stored.TypeName); err != nil {
			return err
		}
		for _, end := range []native.ObjectID{stored.End1, stored.End2} {
			var one int
			if err := s.queryRow(ctx, tx, `SELECT 1 FROM mb_entities WHERE guid = $1`, end.GUID).Scan(&one); err != nil {
				return fmt.Errorf("relationship end %s: %w", end.GUID, convertDBError(err))
			}
		}
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
		return s.writeRelationship(ctx, tx, stored, true)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// UpdateRelationship replaces an existing relationship
func (s *Store) UpdateRelationship(ctx context.Context, rel *native.Relationship) (*native.Relationship, error) {
	stored := rel.Clone()
	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		existing, err := s.relationship(ctx, tx, stored.GUID)
		if err != nil {
			return err
		}
		if stored.CreateTime.IsZero() {
			stored.CreateTime = existing.CreateTime
		}
		if stored.UpdateTime.IsZero() {
			stored.UpdateTime = s.now()
		}
		return s.writeRelationship(ctx, tx, stored, false)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// DeleteRelationship marks a relationship deleted
func (s *Store) DeleteRelationship(ctx context.Context, guid string) error {
	return s.withTransaction(ctx, func(tx *sql.Tx) error {
		r, err := s.relationship(ctx, tx, guid)
		if err != nil {
			return err
		}
		r.Status = native.StatusDeleted
		r.UpdateTime = s.now()
		return s.writeRelationship(ctx, tx, r, false)
	})
}

// PurgeRelationship removes a relationship permanently
func (s *Store) PurgeRelationship(ctx context.Context, guid string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM mb_relationships WHERE guid = $1`, guid)
	if err != nil {
		return err
	}
	return requireAffected(res, "relationship "+guid)
}

// RelationshipsForEntity returns every relationship with the entity at either end
func (s *Store) RelationshipsForEntity(ctx context.Context, entityGUID string) ([]*native.Relationship, error) {
	if _, err := s.entity(ctx, s.db, entityGUID); err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, s.db,
		`SELECT body FROM mb_relationships WHERE end1_guid = $1 OR end2_guid = $2`, entityGUID, entityGUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*native.Relationship, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		r, err := decodeRelationship(body)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	native.SortRelationships(result)
	return result, nil
}
