package typescript_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/typescript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderThenParseRoundTripsColumnNamesAndNullability(t *testing.T) {
	schema, err := dbcschema.New(dbcschema.Table{
		Name: "widgets",
		Columns: []dbcschema.Column{
			{Name: "id", DataType: dbctypes.Int64, IsNullable: false},
			{Name: "name", DataType: dbctypes.Text, IsNullable: true},
		},
	}, nil)
	require.NoError(t, err)

	text, err := typescript.Render(schema)
	require.NoError(t, err)
	assert.Contains(t, text, "interface widgets")

	back, err := typescript.Parse(text, "widgets", "generated.ts")
	require.NoError(t, err)
	table, err := back.Table0()
	require.NoError(t, err)
	require.Len(t, table.Columns, 2)
	assert.Equal(t, "id", table.Columns[0].Name)
	assert.False(t, table.Columns[0].IsNullable)
	assert.Equal(t, "name", table.Columns[1].Name)
	assert.True(t, table.Columns[1].IsNullable)
}
