package csvfile_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/csvfile"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVRecognizesStdio(t *testing.T) {
	l, handle, err := parseWithFreshRegistry(t, "csv:-")
	require.NoError(t, err)
	loc := handle.(csvfile.Locator)
	assert.True(t, loc.Stdio)
	assert.Equal(t, "csv", l.Scheme)
}

func TestParseCSVRecognizesPath(t *testing.T) {
	_, handle, err := parseWithFreshRegistry(t, "csv:/tmp/widgets.csv")
	require.NoError(t, err)
	loc := handle.(csvfile.Locator)
	assert.Equal(t, "/tmp/widgets.csv", loc.Path)
	assert.False(t, loc.Stdio)
}

func TestParseCSVRejectsEmptyBody(t *testing.T) {
	_, _, err := parseWithFreshRegistry(t, "csv:")
	require.Error(t, err)
}

func parseWithFreshRegistry(t *testing.T, raw string) (locator.Locator, interface{}, error) {
	t.Helper()
	locator.ResetForTesting()
	t.Cleanup(locator.ResetForTesting)
	locator.Register("csv", csvfile.ParseCSV)
	locator.Register("file", csvfile.ParseFile)
	return locator.Parse(raw)
}

func TestSchemaSniffsHeaderFromExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widgets.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,foo\n"), 0o644))

	d := csvfile.New(csvfile.Locator{Path: path})
	ctx := driver.Context{Context: context.Background()}
	schema, ok, err := d.Schema(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	table, err := schema.Table0()
	require.NoError(t, err)
	require.Len(t, table.Columns, 2)
	assert.Equal(t, "id", table.Columns[0].Name)
	assert.Equal(t, "name", table.Columns[1].Name)
}

func TestSchemaReturnsNotOKWhenFileMissing(t *testing.T) {
	d := csvfile.New(csvfile.Locator{Path: filepath.Join(t.TempDir(), "missing.csv")})
	ctx := driver.Context{Context: context.Background()}
	_, ok, err := d.Schema(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalDataThenWriteLocalDataIsByteExact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.csv")
	dst := filepath.Join(dir, "out.csv")
	content := "id,name\n1,\"hi, world\"\n2,\n"
	require.NoError(t, os.WriteFile(src, []byte(content), 0o644))

	source := csvfile.New(csvfile.Locator{Path: src})
	dest := csvfile.New(csvfile.Locator{Path: dst})

	ctx := driver.Context{Context: context.Background()}
	stream, ok, err := source.LocalData(ctx, nil, driver.SharedArgs{})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = dest.WriteLocalData(ctx, nil, stream, driver.SharedArgs{IfExists: driver.IfExists{Kind: driver.IfExistsOverwrite}})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestWriteLocalDataRejectsExistingFileOnIfExistsError(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(dst, []byte("id\n1\n"), 0o644))

	dest := csvfile.New(csvfile.Locator{Path: dst})
	ctx := driver.Context{Context: context.Background()}
	stream := dbcstream.SliceDatasetStream([]dbcstream.OutputStream{{Name: "t", Bytes: io.NopCloser(bytes.NewBufferString("id\n2\n"))}})

	_, err := dest.WriteLocalData(ctx, nil, stream, driver.SharedArgs{IfExists: driver.IfExists{Kind: driver.IfExistsError}})
	require.Error(t, err)
}

func TestLocalDataSplitsOnStreamSizeHint(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.csv")
	var content bytes.Buffer
	content.WriteString("id,name\n")
	for i := 1; i <= 10; i++ {
		content.WriteString(rowFor(i))
	}
	require.NoError(t, os.WriteFile(src, content.Bytes(), 0o644))

	source := csvfile.New(csvfile.Locator{Path: src})
	ctx := driver.Context{Context: context.Background()}
	stream, ok, err := source.LocalData(ctx, nil, driver.SharedArgs{StreamSizeHint: 40})
	require.NoError(t, err)
	require.True(t, ok)

	var parts int
	for {
		out, ok, err := stream.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		data, err := io.ReadAll(out.Bytes)
		require.NoError(t, err)
		require.NoError(t, out.Bytes.Close())
		assert.True(t, bytes.HasPrefix(data, []byte("id,name\n")))
		parts++
	}
	assert.GreaterOrEqual(t, parts, 2)
}

func TestSplitThenConcatenateRoundTripsThroughWriteLocalData(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.csv")
	dst := filepath.Join(dir, "out.csv")
	var content bytes.Buffer
	content.WriteString("id,name\n")
	for i := 1; i <= 10; i++ {
		content.WriteString(rowFor(i))
	}
	require.NoError(t, os.WriteFile(src, content.Bytes(), 0o644))

	source := csvfile.New(csvfile.Locator{Path: src})
	dest := csvfile.New(csvfile.Locator{Path: dst})
	ctx := driver.Context{Context: context.Background()}

	stream, ok, err := source.LocalData(ctx, nil, driver.SharedArgs{StreamSizeHint: 40})
	require.NoError(t, err)
	require.True(t, ok)

	result, err := dest.WriteLocalData(ctx, nil, stream, driver.SharedArgs{IfExists: driver.IfExists{Kind: driver.IfExistsOverwrite}})
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.RowsWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content.String(), string(got))
}

func rowFor(i int) string {
	return fmt.Sprintf("%d,row%d\n", i, i)
}

func TestSupportsWriteRemoteDataIsAlwaysFalse(t *testing.T) {
	d := csvfile.New(csvfile.Locator{Path: "/tmp/x.csv"})
	assert.False(t, d.SupportsWriteRemoteData(d))
}
