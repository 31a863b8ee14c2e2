package postgres_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicTable(t *testing.T) {
	result, err := postgres.Parse(`CREATE TABLE t (id bigint NOT NULL, n text, t timestamp with time zone, a int[])`)
	require.NoError(t, err)
	table, err := result.Schema.Table0()
	require.NoError(t, err)
	require.Len(t, table.Columns, 4)

	assert.Equal(t, "id", table.Columns[0].Name)
	assert.False(t, table.Columns[0].IsNullable)
	assert.True(t, dbctypes.Int64.Equal(table.Columns[0].DataType))

	assert.True(t, dbctypes.Text.Equal(table.Columns[1].DataType))
	assert.True(t, table.Columns[1].IsNullable)

	assert.True(t, dbctypes.TimestampWithTimeZone.Equal(table.Columns[2].DataType))

	assert.True(t, dbctypes.NewArray(dbctypes.Int32).Equal(table.Columns[3].DataType))
}

func TestParseEnum(t *testing.T) {
	src := `CREATE TYPE mood AS ENUM ('sad', 'ok', 'happy');
CREATE TABLE moods (id bigint NOT NULL, m mood NOT NULL)`
	result, err := postgres.Parse(src)
	require.NoError(t, err)
	table, err := result.Schema.Table0()
	require.NoError(t, err)
	dt := table.Columns[1].DataType
	named, ok := result.Schema.NamedDataTypes["mood"]
	require.True(t, ok)
	assert.True(t, named.Equal(dt))
}

func TestParseIgnoresConstraints(t *testing.T) {
	result, err := postgres.Parse(`CREATE TABLE t (id bigint NOT NULL, name text DEFAULT 'x', PRIMARY KEY (id))`)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warnings)
	table, err := result.Schema.Table0()
	require.NoError(t, err)
	assert.Len(t, table.Columns, 2)
}

func TestRenderRoundTrip(t *testing.T) {
	result, err := postgres.Parse(`CREATE TABLE t (id bigint NOT NULL, n text)`)
	require.NoError(t, err)
	rendered, warnings, err := postgres.Render(result.Schema)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Contains(t, rendered, "bigint")
	assert.Contains(t, rendered, "NOT NULL")

	reparsed, err := postgres.Parse(rendered)
	require.NoError(t, err)
	reparsedTable, err := reparsed.Schema.Table0()
	require.NoError(t, err)
	originalTable, _ := result.Schema.Table0()
	require.Len(t, reparsedTable.Columns, len(originalTable.Columns))
	for i := range originalTable.Columns {
		assert.True(t, originalTable.Columns[i].DataType.Equal(reparsedTable.Columns[i].DataType))
	}
}

func TestRenderStructWarns(t *testing.T) {
	st, err := dbctypes.NewStruct([]dbctypes.StructField{{Name: "x", DataType: dbctypes.Int32}})
	require.NoError(t, err)
	schema, err := dbcschema.New(
		dbcschema.Table{Name: "s", Columns: []dbcschema.Column{{Name: "x", DataType: st}}},
		nil,
	)
	require.NoError(t, err)
	_, warnings, err := postgres.Render(schema)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
}
