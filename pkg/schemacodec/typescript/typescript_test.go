package typescript_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/typescript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario 6: magic aliases.
func TestMagicAliasDecimal(t *testing.T) {
	src := `type decimal = number|string; interface R { v: decimal }`
	schema, err := typescript.Parse(src, "R", "schema.ts")
	require.NoError(t, err)
	table, err := schema.Table0()
	require.NoError(t, err)
	require.Len(t, table.Columns, 1)
	assert.Equal(t, "v", table.Columns[0].Name)
	assert.False(t, table.Columns[0].IsNullable)
	assert.True(t, dbctypes.Decimal.Equal(table.Columns[0].DataType))
}

func TestNullableUnion(t *testing.T) {
	src := `interface R { v: string | null; n?: number }`
	schema, err := typescript.Parse(src, "R", "schema.ts")
	require.NoError(t, err)
	table, err := schema.Table0()
	require.NoError(t, err)
	assert.True(t, table.Columns[0].IsNullable)
	assert.True(t, table.Columns[1].IsNullable)
	assert.True(t, dbctypes.Text.Equal(table.Columns[0].DataType))
	assert.True(t, dbctypes.Float64.Equal(table.Columns[1].DataType))
}

func TestArraySuffix(t *testing.T) {
	src := `interface R { tags: string[] }`
	schema, err := typescript.Parse(src, "R", "schema.ts")
	require.NoError(t, err)
	table, err := schema.Table0()
	require.NoError(t, err)
	assert.True(t, dbctypes.NewArray(dbctypes.Text).Equal(table.Columns[0].DataType))
}

func TestUnknownFragment(t *testing.T) {
	_, err := typescript.Parse(`interface R { v: string }`, "Missing", "schema.ts")
	require.Error(t, err)
	var perr *typescript.ParseError
	require.ErrorAs(t, err, &perr)
}

func TestNamedReferenceAcrossInterfaces(t *testing.T) {
	src := `interface Inner { x: int32 } interface Outer { i: Inner }`
	schema, err := typescript.Parse(src, "Outer", "schema.ts")
	require.NoError(t, err)
	table, err := schema.Table0()
	require.NoError(t, err)
	assert.True(t, dbctypes.NewNamed("Inner").Equal(table.Columns[0].DataType))
}
