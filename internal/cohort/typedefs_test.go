package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widgetDef() *EntityDef {
	return &EntityDef{TypeDefBase: TypeDefBase{
		GUID:      "widget-guid",
		Name:      "Widget",
		Version:   1,
		SuperType: &TypeDefLink{GUID: "ref-guid", Name: "Referenceable"},
		Options:   map[string]string{"native": "widget"},
		Properties: []TypeDefAttribute{
			{Name: "name", Type: NewPrimitiveDef(PrimitiveString), Cardinality: AtMostOne, Unique: true},
			{Name: "tags", Type: NewArrayDef(PrimitiveString), Cardinality: AtMostOne},
			{Name: "colour", Type: &EnumDef{GUID: "colour-guid", Name: "Colour", Elements: []EnumElementDef{
				{Ordinal: 0, Value: "RED"}, {Ordinal: 1, Value: "BLUE"},
			}}, Cardinality: AtMostOne},
		},
	}}
}

func linkDef() *RelationshipDef {
	return &RelationshipDef{
		TypeDefBase: TypeDefBase{GUID: "link-guid", Name: "Link"},
		EndDef1:     RelationshipEndDef{EntityType: TypeDefLink{Name: "Widget"}, AttributeName: "from", Cardinality: EndAnyNumber},
		EndDef2:     RelationshipEndDef{EntityType: TypeDefLink{Name: "Widget"}, AttributeName: "to", Cardinality: EndAnyNumber},
	}
}

func TestEquivalentTypeDefs(t *testing.T) {
	a := widgetDef()

	b := widgetDef()
	b.GUID, b.Version, b.Description, b.CreatedBy = "other-guid", 7, "described", "someone"
	b.Properties[0], b.Properties[2] = b.Properties[2], b.Properties[0]
	assert.True(t, EquivalentTypeDefs(a, b), "identity, audit fields and attribute order are ignored")

	renamed := widgetDef()
	renamed.Properties[0].Name = "label"
	assert.False(t, EquivalentTypeDefs(a, renamed))

	retyped := widgetDef()
	retyped.Properties[0].Type = NewPrimitiveDef(PrimitiveInt)
	assert.False(t, EquivalentTypeDefs(a, retyped))

	enumChanged := widgetDef()
	enumChanged.Properties[2].Type.(*EnumDef).Elements[1].Value = "GREEN"
	assert.False(t, EquivalentTypeDefs(a, enumChanged))

	noSuper := widgetDef()
	noSuper.SuperType = nil
	assert.False(t, EquivalentTypeDefs(a, noSuper))

	assert.False(t, EquivalentTypeDefs(a, linkDef()))
	assert.True(t, EquivalentTypeDefs(nil, nil))
	assert.False(t, EquivalentTypeDefs(a, nil))

	l1, l2 := linkDef(), linkDef()
	assert.True(t, EquivalentTypeDefs(l1, l2))
	l2.EndDef2.Cardinality = EndAtMostOne
	assert.False(t, EquivalentTypeDefs(l1, l2))
}

func TestTypeDefClone(t *testing.T) {
	orig := widgetDef()
	clone := orig.Clone().(*EntityDef)

	clone.SuperType.Name = "Asset"
	clone.Options["native"] = "changed"
	clone.Properties[0].Name = "changed"

	assert.Equal(t, "Referenceable", orig.SuperType.Name)
	assert.Equal(t, "widget", orig.Options["native"])
	assert.Equal(t, "name", orig.Properties[0].Name)
}

func TestTypeDefJSON(t *testing.T) {
	for _, def := range []TypeDef{
		widgetDef(),
		linkDef(),
		&ClassificationDef{TypeDefBase: TypeDefBase{GUID: "tag-guid", Name: "Tag"}, ValidEntityDefs: []TypeDefLink{{Name: "Widget"}}},
	} {
		t.Run(def.Base().Name, func(t *testing.T) {
			data, err := MarshalTypeDef(def)
			require.NoError(t, err)

			decoded, err := UnmarshalTypeDef(data)
			require.NoError(t, err)
			assert.Equal(t, def.Category(), decoded.Category())
			assert.Equal(t, def.Base().GUID, decoded.Base().GUID)
			assert.True(t, EquivalentTypeDefs(def, decoded))
		})
	}

	_, err := UnmarshalTypeDef([]byte(`{"category":"ENTITY_DEF"}`))
	assert.Error(t, err)
}

func TestAttributeTypeDefJSON(t *testing.T) {
	for _, def := range []AttributeTypeDef{
		NewPrimitiveDef(PrimitiveDate),
		NewMapDef(PrimitiveString, PrimitiveInt),
		&EnumDef{GUID: "colour-guid", Name: "Colour", Elements: []EnumElementDef{{Ordinal: 0, Value: "RED"}}},
	} {
		data, err := MarshalAttributeTypeDef(def)
		require.NoError(t, err)
		decoded, err := UnmarshalAttributeTypeDef(data)
		require.NoError(t, err)
		assert.True(t, EquivalentAttributeTypeDefs(def, decoded), def.TypeName())
	}
}

func TestParseCollectionName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		ok      bool
		wantErr bool
	}{
		{"array<string>", "array<string>", true, false},
		{"map<string, int>", "map<string,int>", true, false},
		{"string", "", false, false},
		{"list<string>", "", false, false},
		{"array<string,int>", "", true, true},
		{"map<string,Widget>", "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			def, ok, err := ParseCollectionName(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.ok {
				assert.Equal(t, tt.want, def.TypeName())
			}
		})
	}
}

func TestInstanceType_IsTypeOf(t *testing.T) {
	it := &InstanceType{TypeDefName: "Widget", TypeDefSuperTypes: []TypeDefLink{{Name: "Referenceable"}}}
	assert.True(t, it.IsTypeOf("Widget"))
	assert.True(t, it.IsTypeOf("Referenceable"))
	assert.False(t, it.IsTypeOf("Asset"))

	var none *InstanceType
	assert.False(t, none.IsTypeOf("Widget"))
}

func TestParseInstanceStatus(t *testing.T) {
	st, err := ParseInstanceStatus("ACTIVE")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, st)

	_, err = ParseInstanceStatus("active")
	assert.Error(t, err)
}

func TestSearchOptions_AllowsStatus(t *testing.T) {
	var opts SearchOptions
	assert.True(t, opts.AllowsStatus(StatusActive))
	assert.False(t, opts.AllowsStatus(StatusDeleted))

	opts.LimitStatuses = []InstanceStatus{StatusDeleted}
	assert.True(t, opts.AllowsStatus(StatusDeleted))
	assert.False(t, opts.AllowsStatus(StatusActive))
}
