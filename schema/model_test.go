package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithComposesInOrder(t *testing.T) {
	base := EntityMapping{
		Exclude: []string{"imad_id"},
		Rename:  map[string]string{"a": "b", "c": "d"},
	}
	app := EntityMapping{
		Exclude:        []string{"xml_data"},
		Rename:         map[string]string{"a": "z"},
		StatusToActive: true,
	}

	m := base.With(app)

	assert.Equal(t, []string{"imad_id", "xml_data"}, m.Exclude)
	assert.Equal(t, map[string]string{"a": "z", "c": "d"}, m.Rename)
	assert.True(t, m.StatusToActive)
	assert.True(t, m.Excludes("xml_data"))
	assert.False(t, m.Excludes("status"))

	// operands are untouched
	assert.Equal(t, []string{"imad_id"}, base.Exclude)
	assert.Equal(t, "b", base.Rename["a"])
}

func TestLookupDefaults(t *testing.T) {
	l := Lookup{Field: "import_application", Table: "dm_import_application", Via: "imad_id", Columns: []string{"id"}}

	assert.Equal(t, "id", l.MatchColumn())
	assert.Equal(t, "import_application__id", l.Alias("id"))
}
