package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metabridge/internal/native"
)

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("pgx")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func TestDialect_Bind(t *testing.T) {
	query := `UPDATE t SET a = $1, b = $2 WHERE c = $10`
	assert.Equal(t, query, Postgres.bind(query))
	assert.Equal(t, `UPDATE t SET a = ?, b = ? WHERE c = ?`, SQLite.bind(query))
	assert.Equal(t, "$3", Postgres.Placeholder(3))
	assert.Equal(t, "?", SQLite.Placeholder(3))
}

func TestConvertDBError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"no rows", sql.ErrNoRows, native.ErrNotFound},
		{"pgx unique", &pgconn.PgError{Code: "23505", Detail: "Key (name)=(Table) already exists."}, native.ErrAlreadyExists},
		{"pq unique", &pq.Error{Code: "23505"}, native.ErrAlreadyExists},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, native.ErrAlreadyExists},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, native.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, convertDBError(tt.err), tt.expected)
		})
	}

	other := errors.New("connection reset")
	assert.Equal(t, other, convertDBError(other))
	assert.NoError(t, convertDBError(nil))
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, Postgres), mock
}

func TestStore_GetEntity(t *testing.T) {
	s, mock := newMockStore(t)

	body := `{"guid":"e1","typeName":"Table","attributes":{"rows":3,"ratio":0.5},"status":0,"version":2,` +
		`"createTime":"2024-01-01T00:00:00Z","updateTime":"2024-01-02T00:00:00Z"}`
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM mb_entities WHERE guid = $1`)).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(body))

	e, err := s.GetEntity(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Table", e.TypeName)
	assert.Equal(t, int64(3), e.Attributes["rows"])
	assert.Equal(t, 0.5, e.Attributes["ratio"])
	assert.Equal(t, int64(2), e.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetEntityNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM mb_entities WHERE guid = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	_, err := s.GetEntity(context.Background(), "missing")
	assert.True(t, native.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateTypeDefs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO mb_typedefs (guid, name, category, body) VALUES ($1, $2, $3, $4)`)).
		WithArgs(sqlmock.AnyArg(), "Table", "ENTITY", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := s.CreateTypeDefs(context.Background(), &native.TypesDef{
		EntityDefs: []*native.EntityTypeDef{{TypeHeader: native.TypeHeader{Name: "Table", Description: "tables"}}},
	})
	require.NoError(t, err)
	require.Len(t, created.EntityDefs, 1)
	assert.NotEmpty(t, created.EntityDefs[0].GUID)
	assert.NotEmpty(t, created.EntityDefs[0].DescriptionGUID)
	assert.Equal(t, int64(1), created.EntityDefs[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateTypeDefsDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO mb_typedefs`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := s.CreateTypeDefs(context.Background(), &native.TypesDef{
		EntityDefs: []*native.EntityTypeDef{{TypeHeader: native.TypeHeader{Name: "Table"}}},
	})
	assert.ErrorIs(t, err, native.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteEntity(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM mb_entities WHERE guid = $1`)).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(`{"guid":"e1","typeName":"Table","status":0}`))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE mb_entities SET type_name = $1, status = $2, body = $3 WHERE guid = $4`)).
		WithArgs("Table", int(native.StatusDeleted), sqlmock.AnyArg(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteEntity(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PurgeEntityNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM mb_entities WHERE guid = $1`)).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.PurgeEntity(context.Background(), "gone")
	assert.True(t, native.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := New(db, SQLite)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestStore_SQLiteLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	defs := &native.TypesDef{}
	defs.Add(&native.EntityTypeDef{TypeHeader: native.TypeHeader{Name: "DataSet"}})
	defs.Add(&native.EntityTypeDef{TypeHeader: native.TypeHeader{Name: "Table"}, SuperTypes: []string{"DataSet"}})
	defs.Add(&native.ClassificationTypeDef{TypeHeader: native.TypeHeader{Name: "PII"}})
	defs.Add(&native.RelationshipTypeDef{TypeHeader: native.TypeHeader{Name: "Lineage"}})
	_, err := s.CreateTypeDefs(ctx, defs)
	require.NoError(t, err)

	_, err = s.CreateTypeDefs(ctx, &native.TypesDef{
		EntityDefs: []*native.EntityTypeDef{{TypeHeader: native.TypeHeader{Name: "Table"}}},
	})
	assert.ErrorIs(t, err, native.ErrAlreadyExists)

	table, err := s.GetTypeDefByName(ctx, "Table")
	require.NoError(t, err)
	assert.Equal(t, []string{"DataSet"}, table.(*native.EntityTypeDef).SuperTypes)

	a, err := s.CreateOrUpdateEntity(ctx, &native.Entity{
		TypeName:   "Table",
		Attributes: map[string]interface{}{"name": "orders"},
	})
	require.NoError(t, err)
	b, err := s.CreateOrUpdateEntity(ctx, &native.Entity{
		TypeName:   "DataSet",
		Attributes: map[string]interface{}{"name": "order_feed"},
	})
	require.NoError(t, err)

	require.NoError(t, s.AddClassifications(ctx, a.GUID, []native.Classification{{TypeName: "PII"}}))
	got, err := s.GetEntity(ctx, a.GUID)
	require.NoError(t, err)
	require.Len(t, got.Classifications, 1)

	rel, err := s.CreateRelationship(ctx, &native.Relationship{
		TypeName: "Lineage",
		End1:     native.ObjectID{GUID: b.GUID, TypeName: "DataSet"},
		End2:     native.ObjectID{GUID: a.GUID, TypeName: "Table"},
	})
	require.NoError(t, err)

	rels, err := s.RelationshipsForEntity(ctx, a.GUID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, rel.GUID, rels[0].GUID)

	where := native.NewPredicateGroup(false)
	where.AddCondition(&native.Condition{Attribute: "name", Operator: native.OpContains, Value: "order"})
	result, err := s.SearchWithQuery(ctx, &native.StructuredQuery{TypeName: "DataSet", IncludeSubTypes: true, Where: where})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)

	result, err = s.SearchWithParameters(ctx, &native.SearchParameters{Query: "ORDER", Classification: "PII"})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, a.GUID, result.Entities[0].GUID)

	require.NoError(t, s.DeleteEntity(ctx, b.GUID))
	result, err = s.SearchWithQuery(ctx, &native.StructuredQuery{TypeName: "DataSet", IncludeSubTypes: true, ExcludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 1)

	require.NoError(t, s.PurgeRelationship(ctx, rel.GUID))
	require.NoError(t, s.PurgeEntity(ctx, b.GUID))
	_, err = s.GetEntity(ctx, b.GUID)
	assert.True(t, native.IsNotFound(err))
}

func TestDecode_KeepsNumberPrecision(t *testing.T) {
	const beyondFloat = int64(9007199254740993)
	attrs := map[string]interface{}{
		"serial": beyondFloat,
		"ratio":  1.5,
		"sizes":  []interface{}{beyondFloat, 2},
		"nested": map[string]interface{}{"max": beyondFloat},
	}

	body, err := json.Marshal(&native.Entity{GUID: "e-1", TypeName: "Table", Attributes: attrs,
		Classifications: []native.Classification{{TypeName: "PII", Attributes: map[string]interface{}{"level": beyondFloat}}}})
	require.NoError(t, err)
	e, err := decodeEntity(string(body))
	require.NoError(t, err)
	assert.Equal(t, beyondFloat, e.Attributes["serial"])
	assert.Equal(t, 1.5, e.Attributes["ratio"])
	assert.Equal(t, []interface{}{beyondFloat, int64(2)}, e.Attributes["sizes"])
	assert.Equal(t, map[string]interface{}{"max": beyondFloat}, e.Attributes["nested"])
	assert.Equal(t, beyondFloat, e.Classifications[0].Attributes["level"])

	body, err = json.Marshal(&native.Relationship{GUID: "r-1", TypeName: "Lineage",
		Attributes: map[string]interface{}{"serial": beyondFloat},
		End1:       native.ObjectID{GUID: "e-1", UniqueAttributes: map[string]interface{}{"id": beyondFloat}}})
	require.NoError(t, err)
	r, err := decodeRelationship(string(body))
	require.NoError(t, err)
	assert.Equal(t, beyondFloat, r.Attributes["serial"])
	assert.Equal(t, beyondFloat, r.End1.UniqueAttributes["id"])
}

func TestStore_SQLiteKeepsLargeIntegers(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	defs := &native.TypesDef{}
	defs.Add(&native.EntityTypeDef{TypeHeader: native.TypeHeader{Name: "Table"}})
	_, err := s.CreateTypeDefs(ctx, defs)
	require.NoError(t, err)

	created, err := s.CreateOrUpdateEntity(ctx, &native.Entity{
		TypeName:   "Table",
		Attributes: map[string]interface{}{"rows": int64(9007199254740993)},
	})
	require.NoError(t, err)

	got, err := s.GetEntity(ctx, created.GUID)
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), got.Attributes["rows"])
}
