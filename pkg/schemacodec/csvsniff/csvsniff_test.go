package csvsniff_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/csvsniff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffAllTextNullable(t *testing.T) {
	schema, err := csvsniff.Sniff("people", []string{"id", "name", "email"})
	require.NoError(t, err)
	table, err := schema.Table0()
	require.NoError(t, err)
	require.Len(t, table.Columns, 3)
	for i, name := range []string{"id", "name", "email"} {
		assert.Equal(t, name, table.Columns[i].Name)
		assert.True(t, table.Columns[i].IsNullable)
		assert.True(t, dbctypes.Text.Equal(table.Columns[i].DataType))
	}
}

func TestSniffEmptyHeaderErrors(t *testing.T) {
	_, err := csvsniff.Sniff("t", nil)
	require.Error(t, err)
}
