package bigquery_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario 1 from the CSV/native-JSON end-to-end fixtures: a
// PostgreSQL-shaped table's portable schema rendered as BigQuery JSON.
func TestRenderPGShapedSchema(t *testing.T) {
	schema, err := dbcschema.New(dbcschema.Table{
		Name: "t",
		Columns: []dbcschema.Column{
			{Name: "id", IsNullable: false, DataType: dbctypes.Int64},
			{Name: "n", IsNullable: true, DataType: dbctypes.Text},
			{Name: "t", IsNullable: true, DataType: dbctypes.TimestampWithTimeZone},
			{Name: "a", IsNullable: true, DataType: dbctypes.NewArray(dbctypes.Int32)},
		},
	}, nil)
	require.NoError(t, err)

	data, err := bigquery.Render(schema)
	require.NoError(t, err)

	roundTripped, err := bigquery.Parse(data, "t")
	require.NoError(t, err)
	table, err := roundTripped.Table0()
	require.NoError(t, err)

	require.Len(t, table.Columns, 4)
	assert.False(t, table.Columns[0].IsNullable)
	assert.True(t, dbctypes.Int64.Equal(table.Columns[0].DataType))
	assert.True(t, dbctypes.NewArray(dbctypes.Int64).Equal(table.Columns[3].DataType))
}

func TestParseNestedRecord(t *testing.T) {
	data := []byte(`[
		{"name": "id", "type": "INT64", "mode": "REQUIRED"},
		{"name": "addr", "type": "RECORD", "mode": "NULLABLE", "fields": [
			{"name": "city", "type": "STRING", "mode": "NULLABLE"}
		]}
	]`)
	schema, err := bigquery.Parse(data, "people")
	require.NoError(t, err)
	table, err := schema.Table0()
	require.NoError(t, err)
	require.Len(t, table.Columns, 2)
	st, ok := table.Columns[1].DataType.(dbctypes.StructType)
	require.True(t, ok)
	assert.Equal(t, "city", st.Fields[0].Name)
}
