package planner_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	features        driver.FeatureSet
	schema          *dbcschema.Schema
	schemaOK        bool
	localStream     *dbcstream.DatasetStream
	localOK         bool
	writeResult     driver.WriteResult
	supportsRemote  bool
	writeRemoteErr  error
	writeLocalCalls int
}

func (f *fakeDriver) Features() driver.FeatureSet { return f.features }

func (f *fakeDriver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	return f.schema, f.schemaOK, nil
}

func (f *fakeDriver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	return f.localStream, f.localOK, nil
}

func (f *fakeDriver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	f.writeLocalCalls++
	return f.writeResult, nil
}

func (f *fakeDriver) SupportsWriteRemoteData(source driver.Driver) bool { return f.supportsRemote }

func (f *fakeDriver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	if f.writeRemoteErr != nil {
		return driver.WriteResult{}, f.writeRemoteErr
	}
	return f.writeResult, nil
}

func (f *fakeDriver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	return 0, false, nil
}

func testSchema(t *testing.T, nullable bool) *dbcschema.Schema {
	t.Helper()
	schema, err := dbcschema.New(dbcschema.Table{
		Name: "widgets",
		Columns: []dbcschema.Column{
			{Name: "id", DataType: dbctypes.Int64, IsNullable: nullable},
			{Name: "name", DataType: dbctypes.Text, IsNullable: true},
		},
	}, nil)
	require.NoError(t, err)
	return schema
}

func TestPlanUsesShortcutWhenAvailable(t *testing.T) {
	schema := testSchema(t, false)
	source := &fakeDriver{features: driver.FeatureSet{ReadSchema: true, IfExistsAppend: true}, schema: schema, schemaOK: true}
	dest := &fakeDriver{
		features:       driver.FeatureSet{WriteData: true, IfExistsAppend: true},
		supportsRemote: true,
		writeResult:    driver.WriteResult{RowsWritten: 10},
	}

	ctx := driver.Context{Context: context.Background()}
	result, err := planner.Plan(ctx, source, dest, planner.Options{
		IfExists: driver.IfExists{Kind: driver.IfExistsAppend},
	})
	require.NoError(t, err)
	assert.True(t, result.UsedShortcut)
	assert.Equal(t, int64(10), result.Write.RowsWritten)
	assert.Equal(t, 0, dest.writeLocalCalls)
}

func TestPlanFallsBackToGenericPath(t *testing.T) {
	schema := testSchema(t, false)
	stream := dbcstream.SliceDatasetStream(nil)
	source := &fakeDriver{
		features:    driver.FeatureSet{ReadSchema: true, IfExistsAppend: true},
		schema:      schema,
		schemaOK:    true,
		localStream: stream,
		localOK:     true,
	}
	dest := &fakeDriver{
		features:       driver.FeatureSet{WriteData: true, IfExistsAppend: true},
		supportsRemote: false,
		writeResult:    driver.WriteResult{RowsWritten: 4},
	}

	ctx := driver.Context{Context: context.Background()}
	result, err := planner.Plan(ctx, source, dest, planner.Options{
		IfExists: driver.IfExists{Kind: driver.IfExistsAppend},
	})
	require.NoError(t, err)
	assert.False(t, result.UsedShortcut)
	assert.Equal(t, int64(4), result.Write.RowsWritten)
	assert.Equal(t, 1, dest.writeLocalCalls)
}

func TestPlanGatesGenericPathThroughWorkerPool(t *testing.T) {
	schema := testSchema(t, false)
	stream := dbcstream.SliceDatasetStream([]dbcstream.OutputStream{
		{Name: "a", Bytes: io.NopCloser(bytes.NewReader(nil))},
		{Name: "b", Bytes: io.NopCloser(bytes.NewReader(nil))},
	})
	var gotNames []string
	source := &fakeDriver{
		features:    driver.FeatureSet{ReadSchema: true, IfExistsAppend: true},
		schema:      schema,
		schemaOK:    true,
		localStream: stream,
		localOK:     true,
	}
	dest := &drainingFakeDriver{
		fakeDriver: fakeDriver{
			features:    driver.FeatureSet{WriteData: true, IfExistsAppend: true},
			writeResult: driver.WriteResult{RowsWritten: 2},
		},
		names: &gotNames,
	}

	pool, cancel := dbcstream.NewWorkerPool(context.Background())
	defer cancel()
	ctx := driver.Context{Context: pool.Context(), Pool: pool}

	result, err := planner.Plan(ctx, source, dest, planner.Options{
		IfExists:   driver.IfExists{Kind: driver.IfExistsAppend},
		MaxStreams: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Write.RowsWritten)
	assert.Equal(t, []string{"a", "b"}, gotNames)
	require.NoError(t, pool.Wait())
}

// drainingFakeDriver records the names of every inner stream
// WriteLocalData actually consumed, and closes each one, so the test
// can assert the gated stream still delivers every item in order.
type drainingFakeDriver struct {
	fakeDriver
	names *[]string
}

func (d *drainingFakeDriver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	for {
		out, ok, err := input.Next(ctx)
		if err != nil {
			return driver.WriteResult{}, err
		}
		if !ok {
			break
		}
		*d.names = append(*d.names, out.Name)
		out.Bytes.Close()
	}
	return d.writeResult, nil
}

func TestPlanRejectsUnsupportedIfExists(t *testing.T) {
	schema := testSchema(t, false)
	source := &fakeDriver{features: driver.FeatureSet{ReadSchema: true}, schema: schema, schemaOK: true}
	dest := &fakeDriver{features: driver.FeatureSet{WriteData: true}}

	ctx := driver.Context{Context: context.Background()}
	_, err := planner.Plan(ctx, source, dest, planner.Options{
		IfExists: driver.IfExists{Kind: driver.IfExistsOverwrite},
	})
	require.Error(t, err)
	var dbcErr *dbcerrors.Error
	require.ErrorAs(t, err, &dbcErr)
	assert.Equal(t, dbcerrors.KindUnsupportedFeature, dbcErr.Kind)
}

func TestValidateUpsertKeysRejectsNullableKey(t *testing.T) {
	schema := testSchema(t, true)
	err := planner.ValidateUpsertKeys(schema, []string{"id"})
	require.Error(t, err)
	var dbcErr *dbcerrors.Error
	require.ErrorAs(t, err, &dbcErr)
	assert.Equal(t, dbcerrors.KindSchemaMismatch, dbcErr.Kind)
	assert.Contains(t, dbcErr.Message, "NOT NULL")
}

func TestValidateUpsertKeysAcceptsNotNullKey(t *testing.T) {
	schema := testSchema(t, false)
	require.NoError(t, planner.ValidateUpsertKeys(schema, []string{"id"}))
}

func TestValidateUpsertKeysRejectsUnknownColumn(t *testing.T) {
	schema := testSchema(t, false)
	require.Error(t, planner.ValidateUpsertKeys(schema, []string{"missing"}))
}

func TestPlanRejectsUpsertOnNullableKeyBeforeOpeningAnyStream(t *testing.T) {
	schema := testSchema(t, true)
	source := &fakeDriver{features: driver.FeatureSet{ReadSchema: true, IfExistsUpsertOn: true}, schema: schema, schemaOK: true, localOK: true}
	dest := &fakeDriver{features: driver.FeatureSet{WriteData: true, IfExistsUpsertOn: true}}

	ctx := driver.Context{Context: context.Background()}
	_, err := planner.Plan(ctx, source, dest, planner.Options{
		IfExists: driver.IfExists{Kind: driver.IfExistsUpsertOn, Keys: []string{"id"}},
	})
	require.Error(t, err)
	var dbcErr *dbcerrors.Error
	require.ErrorAs(t, err, &dbcErr)
	assert.Equal(t, dbcerrors.KindSchemaMismatch, dbcErr.Kind)
	assert.Equal(t, 0, dest.writeLocalCalls)
}
