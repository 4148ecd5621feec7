package cohort

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceProperties(t *testing.T) {
	var nilProps *InstanceProperties
	assert.Equal(t, 0, nilProps.Len())
	assert.Nil(t, nilProps.Names())
	assert.Nil(t, nilProps.Clone())
	_, ok := nilProps.Get("name")
	assert.False(t, ok)

	p := NewInstanceProperties().Set("name", String("sprocket")).Set("count", Int(3))
	assert.Equal(t, []string{"count", "name"}, p.Names())

	clone := p.Clone()
	clone.Remove("count")
	assert.Equal(t, 2, p.Len(), "clone is independent")
	assert.Equal(t, 1, clone.Len())

	merged := p.Merge(PropertiesOf(map[string]InstancePropertyValue{"name": String("cog"), "size": Double(1.5)}))
	assert.Equal(t, []string{"count", "name", "size"}, merged.Names())
	name, _ := merged.Get("name")
	assert.Equal(t, String("cog"), name)
	original, _ := p.Get("name")
	assert.Equal(t, String("sprocket"), original)

	assert.Equal(t, 1, nilProps.Merge(PropertiesOf(map[string]InstancePropertyValue{"a": Bool(true)})).Len())
}

func TestStringValue(t *testing.T) {
	s, ok := StringValue(String("abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", s)

	s, ok = StringValue(PrimitivePropertyValue{Kind: PrimitiveChar, Value: "x"})
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = StringValue(Int(1))
	assert.False(t, ok)
	_, ok = StringValue(EnumPropertyValue{Symbolic: "RED"})
	assert.False(t, ok)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "42", FormatValue(Long(42)))
	assert.Equal(t, "RED", FormatValue(EnumPropertyValue{EnumName: "Colour", Ordinal: 0, Symbolic: "RED"}))
	assert.Equal(t, "array[2]", FormatValue(ArrayPropertyValue{Values: []InstancePropertyValue{Int(1), Int(2)}}))
	assert.Equal(t, "map[1]", FormatValue(MapPropertyValue{Values: map[string]InstancePropertyValue{"k": String("v")}}))
	assert.Equal(t, "<nil>", FormatValue(nil))
}

func TestInstanceProperties_JSON(t *testing.T) {
	when := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	serialNo, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	p := PropertiesOf(map[string]InstancePropertyValue{
		"name":     String("sprocket"),
		"count":    Int(7),
		"weight":   Double(2.25),
		"released": Date(when),
		"serial":   PrimitivePropertyValue{Kind: PrimitiveBigInteger, Value: serialNo},
		"colour":   EnumPropertyValue{EnumName: "Colour", Ordinal: 1, Symbolic: "BLUE"},
		"tags":     ArrayPropertyValue{Values: []InstancePropertyValue{String("a"), String("b")}},
		"labels":   MapPropertyValue{Values: map[string]InstancePropertyValue{"env": String("prod")}},
	})

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded InstanceProperties
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p.Names(), decoded.Names())

	count, _ := decoded.Get("count")
	assert.Equal(t, Int(7), count, "int keeps its width")

	released, _ := decoded.Get("released")
	assert.True(t, released.(PrimitivePropertyValue).Value.(time.Time).Equal(when))

	serial, _ := decoded.Get("serial")
	assert.Equal(t, 0, serial.(PrimitivePropertyValue).Value.(*big.Int).Cmp(serialNo))

	colour, _ := decoded.Get("colour")
	assert.Equal(t, "BLUE", colour.(EnumPropertyValue).Symbolic)

	tags, _ := decoded.Get("tags")
	assert.Equal(t, []InstancePropertyValue{String("a"), String("b")}, tags.(ArrayPropertyValue).Values)

	labels, _ := decoded.Get("labels")
	assert.Equal(t, String("prod"), labels.(MapPropertyValue).Values["env"])
}

func TestInstanceProperties_JSONErrors(t *testing.T) {
	var p InstanceProperties
	assert.Error(t, json.Unmarshal([]byte(`{"x":{"category":"SOMETHING"}}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &p))
}
