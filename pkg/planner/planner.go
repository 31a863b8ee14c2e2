// Package planner implements the copy planner: given a
// source and destination driver, a schema source, and options, it
// chooses between the shortcut and generic transfer paths, validates
// options against the destination's advertised FeatureSet, and
// enforces upsert-key invariants before any stream is opened.
package planner

import (
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/metrics"
)

// collector reports planner-level counters (rows written, shortcut vs
// generic path taken) under the "copy_planner" component label.
var collector = metrics.NewCollector("copy_planner")

// Options bundles the CLI-facing knobs that shape a copy (the `cp`
// command's flags), independent of any particular driver's SharedArgs.
type Options struct {
	SchemaSource   SchemaSource
	IfExists       driver.IfExists
	FromArgs       map[string]string
	ToArgs         map[string]string
	WhereClause    string
	MaxStreams     int
	StreamSizeHint int64
}

// SchemaSource resolves the source schema per step 1 of the planning
// algorithm: an explicit --schema always wins over introspection.
type SchemaSource struct {
	// Explicit, when non-nil, is the schema parsed from --schema and
	// takes precedence unconditionally.
	Explicit *dbcschema.Schema
}

// Result reports what the planner actually did, for the CLI's
// post-copy log line (rows written, shortcut used) and for tests
// asserting on which path was taken.
type Result struct {
	UsedShortcut bool
	Write        driver.WriteResult
}

// Plan runs the full planning algorithm against a live source and
// destination driver pair.
func Plan(ctx driver.Context, source, dest driver.Driver, opts Options) (Result, error) {
	sourceSchema, err := resolveSourceSchema(ctx, source, opts.SchemaSource)
	if err != nil {
		return Result{}, err
	}

	destSchema, err := NormalizeSchema(sourceSchema, dest.Features())
	if err != nil {
		return Result{}, err
	}

	if err := ValidateOptions(dest.Features(), opts); err != nil {
		return Result{}, err
	}

	if opts.IfExists.Kind == driver.IfExistsUpsertOn {
		if err := ValidateUpsertKeys(destSchema, opts.IfExists.Keys); err != nil {
			return Result{}, err
		}
	}

	temporaries := dbcstream.NewTempRegistry()
	sharedArgs := driver.SharedArgs{
		IfExists:       opts.IfExists,
		Temporaries:    temporaries,
		FromArgs:       opts.FromArgs,
		ToArgs:         opts.ToArgs,
		WhereClause:    opts.WhereClause,
		MaxStreams:     opts.MaxStreams,
		StreamSizeHint: opts.StreamSizeHint,
	}

	result, err := execute(ctx, source, dest, destSchema, sharedArgs)
	cleanupErr := temporaries.Cleanup(ctx)
	if err != nil {
		return Result{}, err
	}
	if cleanupErr != nil {
		return result, cleanupErr
	}
	return result, nil
}

func execute(ctx driver.Context, source, dest driver.Driver, destSchema *dbcschema.Schema, sharedArgs driver.SharedArgs) (Result, error) {
	if dest.SupportsWriteRemoteData(source) {
		write, err := dest.WriteRemoteData(ctx, destSchema, source, sharedArgs)
		if err != nil {
			collector.RecordCounter("copies", 1, "shortcut", "failure")
			return Result{}, err
		}
		collector.RecordCounter("copies", 1, "shortcut", "success")
		collector.RecordCounter("rows_written", float64(write.RowsWritten), "shortcut")
		return Result{UsedShortcut: true, Write: write}, nil
	}

	stream, ok, err := source.LocalData(ctx, destSchema, sharedArgs)
	if err != nil {
		collector.RecordCounter("copies", 1, "generic", "failure")
		return Result{}, err
	}
	if !ok {
		collector.RecordCounter("copies", 1, "generic", "failure")
		return Result{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "source driver has no local data and no shortcut is available")
	}

	if ctx.Pool != nil {
		gate := dbcstream.NewStreamGate(sharedArgs.MaxStreams)
		stream = dbcstream.GatedDatasetStream(ctx.Pool, gate, stream.Next)
	}

	write, err := dest.WriteLocalData(ctx, destSchema, stream, sharedArgs)
	if err != nil {
		collector.RecordCounter("copies", 1, "generic", "failure")
		return Result{}, err
	}
	collector.RecordCounter("copies", 1, "generic", "success")
	collector.RecordCounter("rows_written", float64(write.RowsWritten), "generic")
	return Result{Write: write}, nil
}

func resolveSourceSchema(ctx driver.Context, source driver.Driver, schemaSource SchemaSource) (*dbcschema.Schema, error) {
	if schemaSource.Explicit != nil {
		return schemaSource.Explicit, nil
	}
	schema, ok, err := source.Schema(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dbcerrors.New(dbcerrors.KindSchemaMismatch, "no --schema given and source does not support introspection")
	}
	return schema, nil
}

// ValidateOptions rejects option combinations the destination's
// FeatureSet doesn't advertise, before any I/O happens.
func ValidateOptions(features driver.FeatureSet, opts Options) error {
	if !features.SupportsIfExists(opts.IfExists.Kind) {
		return dbcerrors.Newf(dbcerrors.KindUnsupportedFeature, "destination does not support if-exists policy %v", opts.IfExists.Kind)
	}
	if len(opts.FromArgs) > 0 && len(features.SourceArgs) == 0 {
		return dbcerrors.New(dbcerrors.KindUnsupportedFeature, "source does not accept --from-arg options")
	}
	if len(opts.ToArgs) > 0 && len(features.DestArgs) == 0 {
		return dbcerrors.New(dbcerrors.KindUnsupportedFeature, "destination does not accept --to-arg options")
	}
	return nil
}

// ValidateUpsertKeys enforces that every upsert key column exists in
// destSchema and is NOT NULL, before any stream is opened.
func ValidateUpsertKeys(destSchema *dbcschema.Schema, keys []string) error {
	if len(keys) == 0 {
		return dbcerrors.New(dbcerrors.KindSchemaMismatch, "upsert-on requires at least one key column")
	}
	table, err := destSchema.Table0()
	if err != nil {
		return err
	}
	byName := make(map[string]dbcschema.Column, len(table.Columns))
	for _, col := range table.Columns {
		byName[col.Name] = col
	}
	for _, key := range keys {
		col, ok := byName[key]
		if !ok {
			return dbcerrors.Newf(dbcerrors.KindSchemaMismatch, "upsert key %q is not a column of the destination table", key)
		}
		if col.IsNullable {
			return dbcerrors.Newf(dbcerrors.KindSchemaMismatch, "upsert key must be NOT NULL: %q", key)
		}
	}
	return nil
}
