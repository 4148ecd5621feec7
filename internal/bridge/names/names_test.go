package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	for _, name := range Names() {
		guid, ok := GUID(name)
		assert.True(t, ok)

		local := ToLocalName(name, guid)
		assert.Equal(t, LocalPrefix+name, local)
		assert.True(t, IsLocalSubstitute(local))
		assert.Equal(t, name, ToProtocolName(local))
		assert.Equal(t, name, ToProtocolName(ToLocalName(name, "")))
	}
}

func TestRequiresSubstitution(t *testing.T) {
	assert.True(t, RequiresSubstitution("Referenceable"))
	assert.True(t, RequiresSubstitution("DataSet"))
	assert.False(t, RequiresSubstitution("Widget"))
	assert.False(t, RequiresSubstitution("OM_Asset"))
}

func TestToLocalName(t *testing.T) {
	tests := []struct {
		name     string
		guid     string
		expected string
	}{
		{"Widget", "", "Widget"},
		{"Asset", "", "OM_Asset"},
		{"Asset", "896d14c2-7522-4f6c-8519-757711943fe6", "OM_Asset"},
		{"Asset", "some-other-guid", "Asset"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ToLocalName(tt.name, tt.guid))
	}
}

func TestToProtocolName(t *testing.T) {
	assert.Equal(t, "Widget", ToProtocolName("Widget"))
	assert.Equal(t, "Process", ToProtocolName("OM_Process"))
	assert.Equal(t, "OM_Widget", ToProtocolName("OM_Widget"))
	assert.Equal(t, "OM_", ToProtocolName("OM_"))
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"Asset", "DataSet", "Infrastructure", "Process", "Referenceable"}, Names())
}
