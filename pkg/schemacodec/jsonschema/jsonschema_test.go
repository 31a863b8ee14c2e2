package jsonschema_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema(t *testing.T) *dbcschema.Schema {
	t.Helper()
	st, err := dbctypes.NewStruct([]dbctypes.StructField{
		{Name: "city", IsNullable: true, DataType: dbctypes.Text},
	})
	require.NoError(t, err)
	oneOf, err := dbctypes.NewOneOf([]string{"red", "green"})
	require.NoError(t, err)

	schema, err := dbcschema.New(
		dbcschema.Table{
			Name: "widgets",
			Columns: []dbcschema.Column{
				{Name: "id", DataType: dbctypes.Int64},
				{Name: "name", IsNullable: true, DataType: dbctypes.Text},
				{Name: "tags", IsNullable: true, DataType: dbctypes.NewArray(dbctypes.Text)},
				{Name: "addr", IsNullable: true, DataType: st},
				{Name: "color", IsNullable: true, DataType: oneOf},
				{Name: "kind", IsNullable: true, DataType: dbctypes.NewNamed("Kind")},
			},
		},
		[]dbcschema.NamedDataType{{Name: "Kind", DataType: dbctypes.Text}},
	)
	require.NoError(t, err)
	return schema
}

// property 1: schema round trip.
func TestRoundTrip(t *testing.T) {
	schema := sampleSchema(t)
	data, err := jsonschema.Render(schema)
	require.NoError(t, err)

	parsed, err := jsonschema.Parse(data)
	require.NoError(t, err)

	table, err := schema.Table0()
	require.NoError(t, err)
	parsedTable, err := parsed.Table0()
	require.NoError(t, err)

	require.Len(t, parsedTable.Columns, len(table.Columns))
	for i := range table.Columns {
		assert.True(t, table.Columns[i].DataType.Equal(parsedTable.Columns[i].DataType), "column %d", i)
	}
	assert.Equal(t, schema.NamedDataTypes["Kind"], parsed.NamedDataTypes["Kind"])
}

// property 2: idempotent rendering.
func TestIdempotentRendering(t *testing.T) {
	schema := sampleSchema(t)
	first, err := jsonschema.Render(schema)
	require.NoError(t, err)

	parsed, err := jsonschema.Parse(first)
	require.NoError(t, err)

	second, err := jsonschema.Render(parsed)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestParseRejectsMultipleTables(t *testing.T) {
	_, err := jsonschema.Parse([]byte(`{"named_data_types":[],"tables":[{"name":"a","columns":[]},{"name":"b","columns":[]}]}`))
	require.Error(t, err)
}
