package instances

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
	"github.com/conduit-lang/metabridge/internal/native/memstore"
	"github.com/conduit-lang/metabridge/internal/registry"
)

const (
	user    = "alice"
	localID = "local-collection"
	foreign = "remote-collection"
)

func stringAttr(name string, unique bool) cohort.TypeDefAttribute {
	return cohort.TypeDefAttribute{
		Name:        name,
		Type:        cohort.NewPrimitiveDef(cohort.PrimitiveString),
		Cardinality: cohort.AtMostOne,
		Unique:      unique,
	}
}

func seedTypes(t *testing.T, b *typecatalog.Bridge) {
	t.Helper()
	ctx := context.Background()
	widget := cohort.TypeDefLink{GUID: "widget-guid", Name: "Widget"}
	gadget := cohort.TypeDefLink{GUID: "gadget-guid", Name: "Gadget"}

	defs := []cohort.TypeDef{
		&cohort.EntityDef{TypeDefBase: cohort.TypeDefBase{
			GUID: widget.GUID, Name: widget.Name,
			Properties: []cohort.TypeDefAttribute{stringAttr("name", true), stringAttr("notes", false)},
		}},
		&cohort.EntityDef{TypeDefBase: cohort.TypeDefBase{
			GUID: gadget.GUID, Name: gadget.Name, SuperType: &widget,
			Properties: []cohort.TypeDefAttribute{{
				Name: "size", Type: cohort.NewPrimitiveDef(cohort.PrimitiveInt), Cardinality: cohort.AtMostOne,
			}},
		}},
		&cohort.ClassificationDef{
			TypeDefBase:     cohort.TypeDefBase{GUID: "confidential-guid", Name: "Confidential"},
			ValidEntityDefs: []cohort.TypeDefLink{gadget},
		},
		&cohort.ClassificationDef{TypeDefBase: cohort.TypeDefBase{
			GUID: "tag-guid", Name: "Tag",
			Properties: []cohort.TypeDefAttribute{stringAttr("label", false), stringAttr("owner", false)},
		}},
		&cohort.RelationshipDef{
			TypeDefBase: cohort.TypeDefBase{GUID: "assembly-guid", Name: "Assembly",
				Properties: []cohort.TypeDefAttribute{stringAttr("role", false)}},
			EndDef1: cohort.RelationshipEndDef{EntityType: widget, AttributeName: "parts", Cardinality: cohort.EndAnyNumber},
			EndDef2: cohort.RelationshipEndDef{EntityType: widget, AttributeName: "assembly", Cardinality: cohort.EndAtMostOne},
		},
		&cohort.RelationshipDef{
			TypeDefBase: cohort.TypeDefBase{GUID: "fitting-guid", Name: "Fitting"},
			EndDef1:     cohort.RelationshipEndDef{EntityType: gadget, AttributeName: "fits", Cardinality: cohort.EndAnyNumber},
			EndDef2:     cohort.RelationshipEndDef{EntityType: widget, AttributeName: "fittedTo", Cardinality: cohort.EndAnyNumber},
		},
	}
	for _, def := range defs {
		_, err := b.AddTypeDef(ctx, user, def)
		require.NoError(t, err, def.Base().Name)
	}
}

func newMapper(t *testing.T, mode DeleteMode) (*Mapper, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	bridge := typecatalog.New(store, registry.NewMemory(), localID, zap.NewNop())
	seedTypes(t, bridge)
	return New(store, bridge, Config{CollectionID: localID, CollectionName: "local", DeleteMode: mode}, zap.NewNop()), store
}

func named(name string) *cohort.InstanceProperties {
	return cohort.NewInstanceProperties().Set("name", cohort.String(name))
}

func addWidget(t *testing.T, m *Mapper, name string) *cohort.EntityDetail {
	t.Helper()
	e, err := m.AddEntity(context.Background(), user, "widget-guid", named(name), nil, cohort.StatusActive)
	require.NoError(t, err)
	return e
}

func addGadget(t *testing.T, m *Mapper, name string) *cohort.EntityDetail {
	t.Helper()
	e, err := m.AddEntity(context.Background(), user, "gadget-guid", named(name), nil, cohort.StatusUnknown)
	require.NoError(t, err)
	return e
}

func TestParseDeleteMode(t *testing.T) {
	tests := []struct {
		in      string
		want    DeleteMode
		wantErr bool
	}{
		{"", SoftDelete, false},
		{"soft", SoftDelete, false},
		{"HARD", HardDelete, false},
		{" hard ", HardDelete, false},
		{"archive", SoftDelete, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeleteMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) DeleteMode {
	t.Helper()
	d, err := ParseDeleteMode(s)
	require.NoError(t, err)
	return d
}

func TestMapper_AddAndGetEntity(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)

	e := addWidget(t, m, "foo")
	assert.NotEmpty(t, e.GUID)
	assert.Equal(t, cohort.StatusActive, e.Status)
	assert.Equal(t, int64(1), e.Version)
	assert.Equal(t, localID, e.MetadataCollectionID)
	assert.Equal(t, "local", e.MetadataCollectionName)
	assert.Equal(t, cohort.ProvenanceLocalCohort, e.Provenance)
	assert.Equal(t, "Widget", e.TypeName())
	assert.Equal(t, user, e.CreatedBy)

	got, err := m.GetEntityDetail(ctx, user, e.GUID)
	require.NoError(t, err)
	name, ok := got.Properties.Get("name")
	require.True(t, ok)
	s, _ := cohort.StringValue(name)
	assert.Equal(t, "foo", s)

	summary, err := m.GetEntitySummary(ctx, user, e.GUID)
	require.NoError(t, err)
	assert.Equal(t, e.GUID, summary.GUID)

	known, err := m.IsEntityKnown(ctx, user, "missing")
	require.NoError(t, err)
	assert.Nil(t, known)

	_, err = m.GetEntityDetail(ctx, user, "missing")
	assert.ErrorIs(t, err, cohort.ErrInstanceNotKnown)
}

func TestMapper_AddEntityValidation(t *testing.T) {
	ctx := context.Background()
	m, store := newMapper(t, SoftDelete)

	_, err := m.AddEntity(ctx, "", "widget-guid", nil, nil, cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrInvalidParameter)

	_, err = m.AddEntity(ctx, user, "", nil, nil, cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrInvalidParameter)

	_, err = m.AddEntity(ctx, user, "assembly-guid", nil, nil, cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrInvalidParameter)

	_, err = m.AddEntity(ctx, user, "no-such-guid", nil, nil, cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrTypeNotKnown)

	bad := named("foo").Set("colour", cohort.String("red"))
	_, err = m.AddEntity(ctx, user, "widget-guid", bad, nil, cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrProperty)

	wrongKind := cohort.NewInstanceProperties().Set("name", cohort.Int(7))
	_, err = m.AddEntity(ctx, user, "widget-guid", wrongKind, nil, cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrProperty)

	_, err = m.AddEntity(ctx, user, "widget-guid", named("foo"), nil, cohort.StatusDraft)
	assert.ErrorIs(t, err, cohort.ErrTypeNotSupported)

	_, err = m.AddEntity(ctx, user, "widget-guid", named("foo"),
		[]cohort.Classification{{Name: "Confidential"}}, cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrClassification)

	found, err := store.SearchWithParameters(ctx, &native.SearchParameters{Kind: native.SearchEntities})
	require.NoError(t, err)
	assert.Empty(t, found.Entities)
}

func TestMapper_AddEntityWithClassifications(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)

	e, err := m.AddEntity(ctx, user, "gadget-guid", named("g1"), []cohort.Classification{
		{Name: "Confidential"},
		{Name: "Tag", Properties: cohort.NewInstanceProperties().Set("label", cohort.String("hot"))},
	}, cohort.StatusActive)
	require.NoError(t, err)
	require.Len(t, e.Classifications, 2)
	assert.True(t, e.HasClassifications([]string{"Confidential", "Tag"}))

	tag, _ := e.Classification("Tag")
	label, _ := tag.Properties.Get("label")
	s, _ := cohort.StringValue(label)
	assert.Equal(t, "hot", s)
	assert.Equal(t, cohort.ClassificationAssigned, tag.Origin)

	_, err = m.AddEntity(ctx, user, "gadget-guid", named("g2"), []cohort.Classification{
		{Name: "Tag"}, {Name: "Tag"},
	}, cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrClassification)
}

func TestMapper_ClassifyIneligible(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)
	e := addWidget(t, m, "foo")

	_, err := m.ClassifyEntity(ctx, user, e.GUID, "Confidential", nil)
	assert.ErrorIs(t, err, cohort.ErrClassification)

	got, err := m.GetEntityDetail(ctx, user, e.GUID)
	require.NoError(t, err)
	assert.Empty(t, got.Classifications)

	_, err = m.ClassifyEntity(ctx, user, e.GUID, "Unheard", nil)
	assert.ErrorIs(t, err, cohort.ErrClassification)
}

func TestMapper_ClassificationLifecycle(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)
	g := addGadget(t, m, "g")

	classified, err := m.ClassifyEntity(ctx, user, g.GUID, "Confidential", nil)
	require.NoError(t, err)
	assert.True(t, classified.HasClassifications([]string{"Confidential"}))
	assert.Equal(t, int64(2), classified.Version)

	_, err = m.ClassifyEntity(ctx, user, g.GUID, "Confidential", nil)
	assert.ErrorIs(t, err, cohort.ErrClassification)

	tagged, err := m.ClassifyEntity(ctx, user, g.GUID, "Tag", cohort.NewInstanceProperties().
		Set("label", cohort.String("a")).Set("owner", cohort.String("bob")))
	require.NoError(t, err)
	require.Len(t, tagged.Classifications, 2)

	retagged, err := m.UpdateEntityClassification(ctx, user, g.GUID, "Tag",
		cohort.NewInstanceProperties().Set("label", cohort.String("b")))
	require.NoError(t, err)
	tag, ok := retagged.Classification("Tag")
	require.True(t, ok)
	_, hasOwner := tag.Properties.Get("owner")
	assert.False(t, hasOwner, "reclassify replaces the property set")
	label, _ := tag.Properties.Get("label")
	s, _ := cohort.StringValue(label)
	assert.Equal(t, "b", s)

	declassified, err := m.DeclassifyEntity(ctx, user, g.GUID, "Confidential")
	require.NoError(t, err)
	_, ok = declassified.Classification("Confidential")
	assert.False(t, ok)

	_, err = m.DeclassifyEntity(ctx, user, g.GUID, "Confidential")
	assert.ErrorIs(t, err, cohort.ErrClassification)

	_, err = m.UpdateEntityClassification(ctx, user, g.GUID, "Confidential", nil)
	assert.ErrorIs(t, err, cohort.ErrClassification)
}

func TestMapper_UpdateEntity(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)
	e := addWidget(t, m, "foo")

	updated, err := m.UpdateEntityProperties(ctx, "bob", e.GUID,
		cohort.NewInstanceProperties().Set("notes", cohort.String("n")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "bob", updated.UpdatedBy)
	_, hasName := updated.Properties.Get("name")
	assert.False(t, hasName)

	_, err = m.UpdateEntityStatus(ctx, user, e.GUID, cohort.StatusProposed)
	assert.ErrorIs(t, err, cohort.ErrTypeNotSupported)

	_, err = m.UpdateEntityStatus(ctx, user, e.GUID, cohort.StatusDeleted)
	assert.ErrorIs(t, err, cohort.ErrInvalidParameter)

	active, err := m.UpdateEntityStatus(ctx, user, e.GUID, cohort.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, int64(3), active.Version)
}

func TestMapper_SoftDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)
	e := addWidget(t, m, "foo")

	err := m.PurgeEntity(ctx, user, "widget-guid", "Widget", e.GUID)
	assert.ErrorIs(t, err, cohort.ErrInstanceNotDeleted)

	_, err = m.DeleteEntity(ctx, user, "", "Gadget", e.GUID)
	assert.ErrorIs(t, err, cohort.ErrInvalidParameter)

	deleted, err := m.DeleteEntity(ctx, user, "widget-guid", "Widget", e.GUID)
	require.NoError(t, err)
	assert.Equal(t, cohort.StatusDeleted, deleted.Status)

	got, err := m.GetEntityDetail(ctx, user, e.GUID)
	require.NoError(t, err)
	assert.Equal(t, cohort.StatusDeleted, got.Status)

	_, err = m.UpdateEntityProperties(ctx, user, e.GUID, named("bar"))
	assert.ErrorIs(t, err, cohort.ErrInstanceNotKnown)

	restored, err := m.RestoreEntity(ctx, user, e.GUID)
	require.NoError(t, err)
	assert.Equal(t, cohort.StatusActive, restored.Status)

	_, err = m.RestoreEntity(ctx, user, e.GUID)
	assert.ErrorIs(t, err, cohort.ErrInstanceNotDeleted)

	_, err = m.DeleteEntity(ctx, user, "widget-guid", "", e.GUID)
	require.NoError(t, err)
	require.NoError(t, m.PurgeEntity(ctx, user, "widget-guid", "", e.GUID))

	_, err = m.GetEntityDetail(ctx, user, e.GUID)
	assert.ErrorIs(t, err, cohort.ErrInstanceNotKnown)
}

func TestMapper_HardDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, HardDelete)
	e := addWidget(t, m, "foo")

	_, err := m.DeleteEntity(ctx, user, "widget-guid", "Widget", e.GUID)
	assert.ErrorIs(t, err, cohort.ErrNotSupported)

	got, err := m.GetEntityDetail(ctx, user, e.GUID)
	require.NoError(t, err)
	assert.Equal(t, cohort.StatusActive, got.Status)
	assert.Equal(t, int64(1), got.Version)

	_, err = m.RestoreEntity(ctx, user, e.GUID)
	assert.ErrorIs(t, err, cohort.ErrNotSupported)

	require.NoError(t, m.PurgeEntity(ctx, user, "widget-guid", "Widget", e.GUID))
	known, err := m.IsEntityKnown(ctx, user, e.GUID)
	require.NoError(t, err)
	assert.Nil(t, known)
}

func TestMapper_Relationships(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)
	w1 := addWidget(t, m, "w1")
	w2 := addWidget(t, m, "w2")
	_, err := m.UpdateEntityProperties(ctx, user, w1.GUID, named("w1").Set("notes", cohort.String("private")))
	require.NoError(t, err)

	rel, err := m.AddRelationship(ctx, user, "assembly-guid",
		cohort.NewInstanceProperties().Set("role", cohort.String("frame")), w1.GUID, w2.GUID, cohort.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, "Assembly", rel.TypeName())
	assert.Equal(t, "parts", rel.EntityOnePropertyName)
	assert.Equal(t, "assembly", rel.EntityTwoPropertyName)
	require.NotNil(t, rel.EntityOneProxy)
	assert.Equal(t, w1.GUID, rel.EntityOneProxy.GUID)
	assert.Equal(t, []string{"name"}, rel.EntityOneProxy.UniqueProperties.Names())
	assert.Equal(t, w2.GUID, rel.EntityTwoProxy.GUID)

	g := addGadget(t, m, "g")
	_, err = m.AddRelationship(ctx, user, "fitting-guid", nil, w1.GUID, g.GUID, cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrInvalidParameter)
	fitting, err := m.AddRelationship(ctx, user, "fitting-guid", nil, g.GUID, w1.GUID, cohort.StatusActive)
	require.NoError(t, err)

	_, err = m.AddRelationship(ctx, user, "assembly-guid", nil, w1.GUID, "missing", cohort.StatusActive)
	assert.ErrorIs(t, err, cohort.ErrInstanceNotKnown)

	updated, err := m.UpdateRelationshipProperties(ctx, user, rel.GUID,
		cohort.NewInstanceProperties().Set("role", cohort.String("panel")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	deleted, err := m.DeleteRelationship(ctx, user, "", "Assembly", rel.GUID)
	require.NoError(t, err)
	assert.Equal(t, cohort.StatusDeleted, deleted.Status)

	restored, err := m.RestoreRelationship(ctx, user, rel.GUID)
	require.NoError(t, err)
	assert.Equal(t, cohort.StatusActive, restored.Status)

	err = m.PurgeRelationship(ctx, user, "assembly-guid", "", rel.GUID)
	assert.ErrorIs(t, err, cohort.ErrInstanceNotDeleted)

	_, err = m.DeleteEntity(ctx, user, "widget-guid", "", w1.GUID)
	require.NoError(t, err)
	require.NoError(t, m.PurgeEntity(ctx, user, "widget-guid", "", w1.GUID))

	for _, guid := range []string{rel.GUID, fitting.GUID} {
		known, err := m.IsRelationshipKnown(ctx, user, guid)
		require.NoError(t, err)
		assert.Nil(t, known)
	}
}

func TestMapper_Proxies(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)

	proxy := &cohort.EntityProxy{
		EntitySummary: cohort.EntitySummary{InstanceHeader: cohort.InstanceHeader{
			Type:                 &cohort.InstanceType{TypeDefGUID: "widget-guid", TypeDefName: "Widget"},
			GUID:                 "remote-entity",
			MetadataCollectionID: foreign,
			Version:              4,
		}},
		UniqueProperties: named("remote"),
	}
	require.NoError(t, m.AddEntityProxy(ctx, user, proxy))
	require.NoError(t, m.AddEntityProxy(ctx, user, proxy))

	_, err := m.GetEntityDetail(ctx, user, "remote-entity")
	assert.ErrorIs(t, err, cohort.ErrEntityProxyOnly)

	summary, err := m.GetEntitySummary(ctx, user, "remote-entity")
	require.NoError(t, err)
	assert.Equal(t, foreign, summary.MetadataCollectionID)
	assert.Equal(t, int64(4), summary.Version)

	known, err := m.IsEntityKnown(ctx, user, "remote-entity")
	require.NoError(t, err)
	require.NotNil(t, known)
	assert.Equal(t, []string{"name"}, known.Properties.Names())

	_, err = m.ClassifyEntity(ctx, user, "remote-entity", "Tag", nil)
	assert.ErrorIs(t, err, cohort.ErrEntityProxyOnly)
}

func TestMapper_ReTypeAndReHome(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)
	widget := cohort.TypeDefLink{GUID: "widget-guid", Name: "Widget"}
	gadget := cohort.TypeDefLink{GUID: "gadget-guid", Name: "Gadget"}

	w := addWidget(t, m, "w")
	retyped, err := m.ReTypeEntity(ctx, user, w.GUID, widget, gadget)
	require.NoError(t, err)
	assert.Equal(t, "Gadget", retyped.TypeName())
	assert.True(t, retyped.Type.IsTypeOf("Widget"))

	g, err := m.AddEntity(ctx, user, "gadget-guid",
		named("g").Set("size", cohort.Int(3)), []cohort.Classification{{Name: "Confidential"}}, cohort.StatusActive)
	require.NoError(t, err)
	_, err = m.ReTypeEntity(ctx, user, g.GUID, gadget, widget)
	assert.ErrorIs(t, err, cohort.ErrProperty)

	_, err = m.UpdateEntityProperties(ctx, user, g.GUID, named("g"))
	require.NoError(t, err)
	_, err = m.ReTypeEntity(ctx, user, g.GUID, gadget, widget)
	assert.ErrorIs(t, err, cohort.ErrClassification)

	rehomed, err := m.ReHomeEntity(ctx, "replicator", w.GUID, "", "Widget", localID, foreign)
	require.NoError(t, err)
	assert.Equal(t, foreign, rehomed.MetadataCollectionID)
	assert.Equal(t, "replicator", rehomed.ReplicatedBy)

	_, err = m.ReHomeEntity(ctx, user, w.GUID, "", "", localID, "elsewhere")
	assert.ErrorIs(t, err, cohort.ErrInvalidParameter)
}

func TestMapper_NotImplemented(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, SoftDelete)

	_, err := m.ReIdentifyEntity(ctx, user, "widget-guid", "Widget", "a", "b")
	assert.ErrorIs(t, err, cohort.ErrNotImplemented)
	_, err = m.UndoEntityUpdate(ctx, user, "a")
	assert.ErrorIs(t, err, cohort.ErrNotImplemented)
	_, err = m.ReIdentifyRelationship(ctx, user, "assembly-guid", "Assembly", "a", "b")
	assert.ErrorIs(t, err, cohort.ErrNotImplemented)
	_, err = m.UndoRelationshipUpdate(ctx, user, "a")
	assert.ErrorIs(t, err, cohort.ErrNotImplemented)
}

func TestMapper_EntityCopies(t *testing.T) {
	ctx := context.Background()
	m, _ := newMapper(t, HardDelete)

	copyOf := &cohort.EntityDetail{
		EntitySummary: cohort.EntitySummary{
			InstanceHeader: cohort.InstanceHeader{
				Type:                 &cohort.InstanceType{TypeDefName: "Gadget"},
				GUID:                 "copy-1",
				MetadataCollectionID: foreign,
				Version:              7,
				Status:               cohort.StatusActive,
				CreatedBy:            "remote-user",
			},
			Classifications: []cohort.Classification{{Name: "Confidential"}},
		},
		Properties: named("copied"),
	}
	require.NoError(t, m.SaveEntityCopy(ctx, user, copyOf))

	got, err := m.GetEntityDetail(ctx, user, "copy-1")
	require.NoError(t, err)
	assert.Equal(t, foreign, got.MetadataCollectionID)
	assert.Equal(t, int64(7), got.Version)
	assert.Equal(t, "remote-user", got.CreatedBy)
	assert.True(t, got.HasClassifications([]string{"Confidential"}))

	copyOf.Version = 8
	copyOf.Classifications = nil
	require.NoError(t, m.SaveEntityCopy(ctx, user, copyOf))
	got, err = m.GetEntityDetail(ctx, user, "copy-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Version)
	assert.Empty(t, got.Classifications)

	local := addWidget(t, m, "mine")
	err = m.PurgeEntityCopy(ctx, user, local.GUID, "", "Widget", localID)
	assert.ErrorIs(t, err, cohort.ErrInvalidParameter)

	mine := *copyOf
	mine.MetadataCollectionID = localID
	assert.ErrorIs(t, m.SaveEntityCopy(ctx, user, &mine), cohort.ErrInvalidParameter)

	require.NoError(t, m.PurgeEntityCopy(ctx, user, "copy-1", "gadget-guid", "", foreign))
	exists, err := m.EntityExists(ctx, "copy-1")
	require.NoError(t, err)
	assert.False(t, exists)
}
