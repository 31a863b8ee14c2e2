package dbctypes_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarEquality(t *testing.T) {
	assert.True(t, dbctypes.Int32.Equal(dbctypes.Int32))
	assert.False(t, dbctypes.Int32.Equal(dbctypes.Int64))
}

func TestGeoJSONDefaultSRID(t *testing.T) {
	g := dbctypes.NewGeoJSON(0)
	assert.Equal(t, dbctypes.DefaultGeoJSONSRID, g.SRID)
}

func TestStructRejectsEmpty(t *testing.T) {
	_, err := dbctypes.NewStruct(nil)
	require.Error(t, err)
}

func TestStructRejectsDuplicateFieldNames(t *testing.T) {
	_, err := dbctypes.NewStruct([]dbctypes.StructField{
		{Name: "a", DataType: dbctypes.Int32},
		{Name: "a", DataType: dbctypes.Text},
	})
	require.Error(t, err)
}

func TestOneOfRejectsEmpty(t *testing.T) {
	_, err := dbctypes.NewOneOf(nil)
	require.Error(t, err)
}

func TestOneOfDedupsByNFC(t *testing.T) {
	// precomposed "\u00e9" vs decomposed "e\u0301" are distinct byte
	// sequences that normalize to the same NFC form.
	precomposed := "caf\u00e9"
	decomposed := "cafe\u0301"
	_, err := dbctypes.NewOneOf([]string{precomposed, decomposed})
	require.Error(t, err)
}

func TestOneOfAllows(t *testing.T) {
	o, err := dbctypes.NewOneOf([]string{"red", "green", "blue"})
	require.NoError(t, err)
	assert.True(t, o.Allows("red"))
	assert.False(t, o.Allows("purple"))
}

func TestIsComposite(t *testing.T) {
	assert.True(t, dbctypes.IsComposite(dbctypes.NewArray(dbctypes.Int32)))
	assert.True(t, dbctypes.IsComposite(dbctypes.NewNamed("Foo")))
	assert.False(t, dbctypes.IsComposite(dbctypes.Text))
}
