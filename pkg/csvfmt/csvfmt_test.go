package csvfmt_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/csvfmt"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textTable() *dbcschema.Table {
	return &dbcschema.Table{
		Name: "t",
		Columns: []dbcschema.Column{
			{Name: "id", DataType: dbctypes.Int64},
			{Name: "s", IsNullable: true, DataType: dbctypes.Text},
		},
	}
}

// scenario 3: null vs empty string.
func TestNullVsEmptyString(t *testing.T) {
	table := textTable()
	var buf bytes.Buffer
	w := csvfmt.NewWriter(&buf, table)
	require.NoError(t, w.WriteRow([]interface{}{int64(1), nil}))
	require.NoError(t, w.WriteRow([]interface{}{int64(2), ""}))

	assert.Equal(t, "id,s\n1,\n2,\"\"\n", buf.String())

	r, err := csvfmt.NewReader(bytes.NewBufferString(buf.String()), table)
	require.NoError(t, err)
	row1, err := r.ReadRow()
	require.NoError(t, err)
	assert.Nil(t, row1[1])
	row2, err := r.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, "", row2[1])
}

// scenario 2: CSV copy preserves bytes.
func TestQuotingRoundTrip(t *testing.T) {
	table := &dbcschema.Table{
		Name: "t",
		Columns: []dbcschema.Column{
			{Name: "id", DataType: dbctypes.Int64},
			{Name: "name", IsNullable: true, DataType: dbctypes.Text},
		},
	}
	var buf bytes.Buffer
	w := csvfmt.NewWriter(&buf, table)
	require.NoError(t, w.WriteRow([]interface{}{int64(1), "hi, world"}))
	require.NoError(t, w.WriteRow([]interface{}{int64(2), nil}))

	assert.Equal(t, "id,name\n1,\"hi, world\"\n2,\n", buf.String())
}

func TestBoolAndFloatSpecials(t *testing.T) {
	field, forceQuote, err := csvfmt.EncodeCell(dbctypes.Bool, true)
	require.NoError(t, err)
	assert.Equal(t, "t", field)
	assert.False(t, forceQuote)

	field, _, err = csvfmt.EncodeCell(dbctypes.Float64, mustNaN())
	require.NoError(t, err)
	assert.Equal(t, "NaN", field)
}

func mustNaN() float64 {
	var f float64
	return f / f
}

func TestReaderRejectsWrongHeader(t *testing.T) {
	table := textTable()
	_, err := csvfmt.NewReader(bytes.NewBufferString("wrong,header\n"), table)
	require.Error(t, err)
}

func TestReaderEOF(t *testing.T) {
	table := textTable()
	r, err := csvfmt.NewReader(bytes.NewBufferString("id,s\n"), table)
	require.NoError(t, err)
	_, err = r.ReadRow()
	assert.ErrorIs(t, err, io.EOF)
}
