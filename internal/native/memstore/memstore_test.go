package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metabridge/internal/native"
)

func seedTypes(t *testing.T, s *Store) {
	t.Helper()
	defs := &native.TypesDef{}
	defs.Add(&native.EntityTypeDef{TypeHeader: native.TypeHeader{Name: "DataSet"}})
	defs.Add(&native.EntityTypeDef{
		TypeHeader: native.TypeHeader{Name: "Table"},
		SuperTypes: []string{"DataSet"},
		Attributes: []native.AttributeDef{{Name: "name", TypeName: "string"}},
	})
	defs.Add(&native.ClassificationTypeDef{TypeHeader: native.TypeHeader{Name: "PII"}})
	defs.Add(&native.RelationshipTypeDef{
		TypeHeader: native.TypeHeader{Name: "Lineage"},
		End1:       native.RelationshipEndDef{Type: "DataSet", Name: "outputs"},
		End2:       native.RelationshipEndDef{Type: "DataSet", Name: "inputs"},
	})
	_, err := s.CreateTypeDefs(context.Background(), defs)
	require.NoError(t, err)
}

func TestStore_TypeDefLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTypes(t, s)

	table, err := s.GetTypeDefByName(ctx, "Table")
	require.NoError(t, err)
	assert.NotEmpty(t, table.Header().GUID)
	assert.Equal(t, int64(1), table.Header().Version)

	byGUID, err := s.GetTypeDefByGUID(ctx, table.Header().GUID)
	require.NoError(t, err)
	assert.Equal(t, "Table", byGUID.Header().Name)

	_, err = s.CreateTypeDefs(ctx, &native.TypesDef{
		EntityDefs: []*native.EntityTypeDef{{TypeHeader: native.TypeHeader{Name: "Table"}}},
	})
	assert.ErrorIs(t, err, native.ErrAlreadyExists)

	entity := table.(*native.EntityTypeDef)
	entity.Description = "a table"
	updated, err := s.UpdateTypeDefs(ctx, &native.TypesDef{EntityDefs: []*native.EntityTypeDef{entity}})
	require.NoError(t, err)
	assert.Equal(t, table.Header().GUID, updated.EntityDefs[0].GUID)
	assert.NotEmpty(t, updated.EntityDefs[0].DescriptionGUID)
	assert.Equal(t, int64(2), updated.EntityDefs[0].Version)

	found, err := s.SearchTypeDefs(ctx, native.SearchFilter{SuperType: "DataSet"})
	require.NoError(t, err)
	require.Len(t, found.EntityDefs, 1)
	assert.Equal(t, "Table", found.EntityDefs[0].Name)

	require.NoError(t, s.DeleteTypeDefs(ctx, &native.TypesDef{EntityDefs: []*native.EntityTypeDef{entity}}))
	_, err = s.GetTypeDefByName(ctx, "Table")
	assert.True(t, native.IsNotFound(err))
	_, err = s.GetTypeDefByGUID(ctx, table.Header().GUID)
	assert.True(t, native.IsNotFound(err))
}

func TestStore_GetTypeDefReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTypes(t, s)

	def, err := s.GetTypeDefByName(ctx, "Table")
	require.NoError(t, err)
	def.(*native.EntityTypeDef).Attributes[0].Name = "changed"

	again, err := s.GetTypeDefByName(ctx, "Table")
	require.NoError(t, err)
	assert.Equal(t, "name", again.(*native.EntityTypeDef).Attributes[0].Name)
}

func TestStore_EntityLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTypes(t, s)

	created, err := s.CreateOrUpdateEntity(ctx, &native.Entity{
		TypeName:        "Table",
		Attributes:      map[string]interface{}{"name": "orders"},
		Classifications: []native.Classification{{TypeName: "PII"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.GUID)
	assert.Empty(t, created.Classifications, "classifications are attached separately")

	require.NoError(t, s.AddClassifications(ctx, created.GUID, []native.Classification{{TypeName: "PII"}}))
	err = s.AddClassifications(ctx, created.GUID, []native.Classification{{TypeName: "PII"}})
	assert.ErrorIs(t, err, native.ErrAlreadyExists)

	created.Attributes["name"] = "orders_v2"
	updated, err := s.CreateOrUpdateEntity(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "orders_v2", updated.Attributes["name"])
	require.Len(t, updated.Classifications, 1)
	assert.Equal(t, created.GUID, updated.Classifications[0].EntityGUID)

	require.NoError(t, s.UpdateClassifications(ctx, created.GUID, []native.Classification{
		{TypeName: "PII", Attributes: map[string]interface{}{"level": "high"}},
	}))
	got, err := s.GetEntity(ctx, created.GUID)
	require.NoError(t, err)
	c, ok := got.Classification("PII")
	require.True(t, ok)
	assert.Equal(t, "high", c.Attributes["level"])

	require.NoError(t, s.DeleteClassification(ctx, created.GUID, "PII"))
	assert.True(t, native.IsNotFound(s.DeleteClassification(ctx, created.GUID, "PII")))

	require.NoError(t, s.DeleteEntity(ctx, created.GUID))
	got, err = s.GetEntity(ctx, created.GUID)
	require.NoError(t, err)
	assert.Equal(t, native.StatusDeleted, got.Status)

	require.NoError(t, s.PurgeEntity(ctx, created.GUID))
	_, err = s.GetEntity(ctx, created.GUID)
	assert.True(t, native.IsNotFound(err))
}

func TestStore_CreateEntityUnknownType(t *testing.T) {
	s := New()
	_, err := s.CreateOrUpdateEntity(context.Background(), &native.Entity{TypeName: "Nope"})
	assert.True(t, native.IsNotFound(err))
}

func TestStore_RelationshipLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTypes(t, s)

	a, err := s.CreateOrUpdateEntity(ctx, &native.Entity{TypeName: "Table"})
	require.NoError(t, err)
	b, err := s.CreateOrUpdateEntity(ctx, &native.Entity{TypeName: "Table"})
	require.NoError(t, err)

	_, err = s.CreateRelationship(ctx, &native.Relationship{
		TypeName: "Lineage",
		End1:     native.ObjectID{GUID: a.GUID},
		End2:     native.ObjectID{GUID: "missing"},
	})
	assert.True(t, native.IsNotFound(err))

	rel, err := s.CreateRelationship(ctx, &native.Relationship{
		GUID:     "rel-1",
		TypeName: "Lineage",
		End1:     native.ObjectID{GUID: a.GUID, TypeName: "Table"},
		End2:     native.ObjectID{GUID: b.GUID, TypeName: "Table"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rel-1", rel.GUID)

	_, err = s.CreateRelationship(ctx, rel)
	assert.ErrorIs(t, err, native.ErrAlreadyExists)

	rels, err := s.RelationshipsForEntity(ctx, b.GUID)
	require.NoError(t, err)
	require.Len(t, rels, 1)

	rel.Attributes = map[string]interface{}{"description": "copy"}
	_, err = s.UpdateRelationship(ctx, rel)
	require.NoError(t, err)

	require.NoError(t, s.DeleteRelationship(ctx, rel.GUID))
	got, err := s.GetRelationship(ctx, rel.GUID)
	require.NoError(t, err)
	assert.Equal(t, native.StatusDeleted, got.Status)
	assert.Equal(t, "copy", got.Attributes["description"])

	require.NoError(t, s.PurgeRelationship(ctx, rel.GUID))
	_, err = s.GetRelationship(ctx, rel.GUID)
	assert.True(t, native.IsNotFound(err))
}

func TestStore_SearchWithQuery(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTypes(t, s)

	for _, name := range []string{"orders", "customers", "order_items"} {
		_, err := s.CreateOrUpdateEntity(ctx, &native.Entity{
			TypeName:   "Table",
			Attributes: map[string]interface{}{"name": name},
		})
		require.NoError(t, err)
	}
	base, err := s.CreateOrUpdateEntity(ctx, &native.Entity{
		TypeName:   "DataSet",
		Attributes: map[string]interface{}{"name": "orders_raw"},
	})
	require.NoError(t, err)
	require.NoError(t, s.DeleteEntity(ctx, base.GUID))

	where := native.NewPredicateGroup(false)
	where.AddCondition(&native.Condition{Attribute: "name", Operator: native.OpContains, Value: "order"})

	result, err := s.SearchWithQuery(ctx, &native.StructuredQuery{TypeName: "Table", Where: where})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)

	result, err = s.SearchWithQuery(ctx, &native.StructuredQuery{TypeName: "DataSet", IncludeSubTypes: true, Where: where})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 3)

	result, err = s.SearchWithQuery(ctx, &native.StructuredQuery{
		TypeName: "DataSet", IncludeSubTypes: true, Where: where, ExcludeDeleted: true,
	})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)

	result, err = s.SearchWithQuery(ctx, &native.StructuredQuery{TypeName: "Table", Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 1)

	_, err = s.SearchWithQuery(ctx, &native.StructuredQuery{TypeName: "Unknown"})
	assert.True(t, native.IsNotFound(err))
}

func TestStore_SearchWithParameters(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTypes(t, s)

	pii, err := s.CreateOrUpdateEntity(ctx, &native.Entity{
		TypeName:   "Table",
		Attributes: map[string]interface{}{"name": "Customers"},
	})
	require.NoError(t, err)
	require.NoError(t, s.AddClassifications(ctx, pii.GUID, []native.Classification{{TypeName: "PII"}}))
	_, err = s.CreateOrUpdateEntity(ctx, &native.Entity{
		TypeName:   "Table",
		Attributes: map[string]interface{}{"name": "customer_stats"},
	})
	require.NoError(t, err)

	result, err := s.SearchWithParameters(ctx, &native.SearchParameters{Query: "customer"})
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)

	result, err = s.SearchWithParameters(ctx, &native.SearchParameters{Query: "customer", Classification: "PII"})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, pii.GUID, result.Entities[0].GUID)

	result, err = s.SearchWithParameters(ctx, &native.SearchParameters{Kind: native.SearchRelationships})
	require.NoError(t, err)
	assert.Empty(t, result.Relationships)
}
