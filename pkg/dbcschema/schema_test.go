package dbcschema_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsDuplicateColumnNames(t *testing.T) {
	_, err := dbcschema.New(dbcschema.Table{
		Name: "t",
		Columns: []dbcschema.Column{
			{Name: "id", DataType: dbctypes.Int64},
			{Name: "id", DataType: dbctypes.Text},
		},
	}, nil)
	require.Error(t, err)
}

func TestNewRejectsUndeclaredNamedReference(t *testing.T) {
	_, err := dbcschema.New(dbcschema.Table{
		Name:    "t",
		Columns: []dbcschema.Column{{Name: "x", DataType: dbctypes.NewNamed("Missing")}},
	}, nil)
	require.Error(t, err)
}

func TestNewRejectsCyclicNamedReference(t *testing.T) {
	_, err := dbcschema.New(
		dbcschema.Table{Name: "t", Columns: []dbcschema.Column{{Name: "x", DataType: dbctypes.NewNamed("A")}}},
		[]dbcschema.NamedDataType{
			{Name: "A", DataType: dbctypes.NewNamed("B")},
			{Name: "B", DataType: dbctypes.NewNamed("A")},
		},
	)
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	schema, err := dbcschema.New(
		dbcschema.Table{Name: "t", Columns: []dbcschema.Column{{Name: "x", DataType: dbctypes.NewNamed("A")}}},
		[]dbcschema.NamedDataType{{Name: "A", DataType: dbctypes.Int32}},
	)
	require.NoError(t, err)
	dt, err := schema.Resolve("A")
	require.NoError(t, err)
	assert.True(t, dbctypes.Int32.Equal(dt))

	_, err = schema.Resolve("Missing")
	require.Error(t, err)
}

func TestCheckColumnCollisionsCaseInsensitive(t *testing.T) {
	table := &dbcschema.Table{
		Name: "t",
		Columns: []dbcschema.Column{
			{Name: "ID", DataType: dbctypes.Int64},
			{Name: "id", DataType: dbctypes.Int64},
		},
	}
	assert.NoError(t, dbcschema.CheckColumnCollisions(table, dbcschema.CaseSensitive))
	assert.Error(t, dbcschema.CheckColumnCollisions(table, dbcschema.CaseInsensitive))
}
