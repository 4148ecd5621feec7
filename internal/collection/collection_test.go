package collection

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/instances"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/events"
	"github.com/conduit-lang/metabridge/internal/native/memstore"
	"github.com/conduit-lang/metabridge/internal/registry"
)

const user = "carol"

func newCollection(t *testing.T, mode instances.DeleteMode) (*MetadataCollection, *events.Recorder) {
	t.Helper()
	rec := events.NewRecorder()
	c := New(memstore.New(), registry.NewMemory(), rec, Config{
		CollectionID:   "home",
		CollectionName: "Home repository",
		DeleteMode:     mode,
	}, zap.NewNop())
	return c, rec
}

func widgetDef() *cohort.EntityDef {
	return &cohort.EntityDef{TypeDefBase: cohort.TypeDefBase{
		GUID: "widget-guid",
		Name: "Widget",
		Properties: []cohort.TypeDefAttribute{{
			Name:        "name",
			Type:        cohort.NewPrimitiveDef(cohort.PrimitiveString),
			Cardinality: cohort.AtMostOne,
			Unique:      true,
		}},
	}}
}

func TestNew_DefaultsIdentity(t *testing.T) {
	c := New(memstore.New(), registry.NewMemory(), nil, Config{}, nil)

	_, err := uuid.Parse(c.CollectionID())
	assert.NoError(t, err, "an empty collection id is replaced by a uuid")
	assert.Equal(t, c.CollectionID(), c.MetadataCollectionName())
	assert.Equal(t, instances.SoftDelete, c.DeleteMode())
}

func TestMetadataCollection_TypeRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newCollection(t, instances.SoftDelete)

	_, err := c.AddTypeDef(ctx, user, widgetDef())
	require.NoError(t, err)

	def, err := c.GetTypeDefByName(ctx, user, "Widget")
	require.NoError(t, err)
	props := def.Base().Properties
	require.Len(t, props, 1)
	assert.Equal(t, "name", props[0].Name)
	assert.Equal(t, "string", props[0].Type.TypeName())

	byGUID, err := c.GetTypeDefByGUID(ctx, user, def.Base().GUID)
	require.NoError(t, err)
	assert.True(t, cohort.EquivalentTypeDefs(def, byGUID))
}

func TestMetadataCollection_InstanceLifecycle(t *testing.T) {
	ctx := context.Background()
	c, rec := newCollection(t, instances.SoftDelete)
	_, err := c.AddTypeDef(ctx, user, widgetDef())
	require.NoError(t, err)

	e, err := c.AddEntity(ctx, user, "widget-guid",
		cohort.NewInstanceProperties().Set("name", cohort.String("foo")), nil, cohort.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, "home", e.MetadataCollectionID)

	found, err := c.FindEntitiesByPropertyValue(ctx, user, "widget-guid", "fo", cohort.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, e.GUID, found[0].GUID)

	require.NoError(t, c.RefreshEntityReferenceCopy(ctx, user, e.GUID, "", "Widget", "home"))
	require.Len(t, rec.Events(), 1)

	_, err = c.DeleteEntity(ctx, user, "widget-guid", "Widget", e.GUID)
	require.NoError(t, err)
	got, err := c.GetEntityDetail(ctx, user, e.GUID)
	require.NoError(t, err)
	assert.Equal(t, cohort.StatusDeleted, got.Status)

	found, err = c.FindEntitiesByPropertyValue(ctx, user, "widget-guid", "fo", cohort.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, found, "deleted entities are filtered by default")

	require.NoError(t, c.PurgeEntity(ctx, user, "widget-guid", "Widget", e.GUID))
	known, err := c.IsEntityKnown(ctx, user, e.GUID)
	require.NoError(t, err)
	assert.Nil(t, known)
}

func TestMetadataCollection_HardDeleteMode(t *testing.T) {
	ctx := context.Background()
	c, _ := newCollection(t, instances.HardDelete)
	_, err := c.AddTypeDef(ctx, user, widgetDef())
	require.NoError(t, err)
	e, err := c.AddEntity(ctx, user, "widget-guid",
		cohort.NewInstanceProperties().Set("name", cohort.String("foo")), nil, cohort.StatusActive)
	require.NoError(t, err)

	_, err = c.DeleteEntity(ctx, user, "widget-guid", "Widget", e.GUID)
	assert.ErrorIs(t, err, cohort.ErrNotSupported)

	got, err := c.GetEntityDetail(ctx, user, e.GUID)
	require.NoError(t, err)
	assert.Equal(t, cohort.StatusActive, got.Status)
}

func TestMetadataCollection_GraphTraversalNotImplemented(t *testing.T) {
	ctx := context.Background()
	c, _ := newCollection(t, instances.SoftDelete)

	_, err := c.GetLinkingEntities(ctx, user, "a", "b", cohort.SearchOptions{})
	assert.True(t, cohort.IsNotImplemented(err))

	_, err = c.GetEntityNeighborhood(ctx, user, "a", 2, cohort.SearchOptions{})
	assert.True(t, cohort.IsNotImplemented(err))

	_, err = c.GetRelatedEntities(ctx, user, "a", cohort.SearchOptions{})
	assert.True(t, cohort.IsNotImplemented(err))

	_, err = c.GetRelatedEntities(ctx, "", "a", cohort.SearchOptions{})
	assert.True(t, cohort.IsInvalidParameter(err), "parameters are checked before reporting not implemented")

	_, err = c.GetEntityNeighborhood(ctx, user, "", 1, cohort.SearchOptions{})
	assert.True(t, cohort.IsInvalidParameter(err))
}
