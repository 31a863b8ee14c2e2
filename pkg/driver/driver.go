// Package driver defines the capability-bearing contract every
// backend (PostgreSQL, BigQuery, S3, a local CSV file, ...)
// implements. The copy planner in pkg/planner talks to
// drivers exclusively through this interface.
package driver

import (
	"context"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/logger"
)

// IfExistsKind selects how a destination driver reacts to a table
// that already holds data.
type IfExistsKind int

const (
	IfExistsError IfExistsKind = iota
	IfExistsAppend
	IfExistsOverwrite
	IfExistsUpsertOn
)

// IfExists bundles the policy with the upsert key columns, which are
// only meaningful when Kind is IfExistsUpsertOn.
type IfExists struct {
	Kind IfExistsKind
	Keys []string
}

// FeatureSet declares which capabilities a driver actually implements.
// The planner and the test suite treat a mismatch between FeatureSet
// and the methods a driver answers non-trivially to as a bug (spec
// invariant "capability honesty").
type FeatureSet struct {
	ReadSchema           bool
	WriteSchema          bool
	ReadData             bool
	WriteData            bool
	IfExistsError        bool
	IfExistsAppend       bool
	IfExistsOverwrite    bool
	IfExistsUpsertOn     bool
	TemporariesRequired  []string
	SourceArgs           []string
	DestArgs             []string
	Count                bool
	// CaseInsensitiveNames marks a destination that folds column names
	// (BigQuery); the planner applies case-insensitive collision
	// checking when this is set.
	CaseInsensitiveNames bool
}

// SupportsIfExists reports whether the driver advertises support for
// the given IfExists policy.
func (f FeatureSet) SupportsIfExists(kind IfExistsKind) bool {
	switch kind {
	case IfExistsError:
		return f.IfExistsError
	case IfExistsAppend:
		return f.IfExistsAppend
	case IfExistsOverwrite:
		return f.IfExistsOverwrite
	case IfExistsUpsertOn:
		return f.IfExistsUpsertOn
	default:
		return false
	}
}

// SharedArgs bundles the options common to every driver call: the
// if-exists policy, the temporary-resource registry to
// allocate scratch space from, per-side driver arguments, an optional
// row filter, and the stream-plane knobs.
type SharedArgs struct {
	IfExists        IfExists
	Temporaries     *dbcstream.TempRegistry
	FromArgs        map[string]string
	ToArgs          map[string]string
	WhereClause     string
	MaxStreams      int
	StreamSizeHint  int64
}

// Context bundles the cancellation handle, a telemetry span name, and
// the worker-pool handle every driver call receives, threaded from
// the copy planner through to every task it spawns.
type Context struct {
	context.Context
	Pool *dbcstream.WorkerPool
	Span string
}

// WithSpan returns a copy of c annotated with a telemetry span name,
// used by drivers to scope structured logging/tracing to a
// sub-operation (e.g. "postgres.write_local_data"). The span name is
// also attached to the underlying context.Context under
// logger.SpanKey, so any zap.Logger built via logger.WithContext(c)
// picks it up automatically.
func (c Context) WithSpan(span string) Context {
	c.Span = span
	if c.Context != nil {
		c.Context = context.WithValue(c.Context, logger.SpanKey, span)
	}
	return c
}

// WriteResult reports what a write operation actually did, letting
// the planner and CLI report row counts and any per-stream completion
// signals without a driver needing to expose its internals.
type WriteResult struct {
	RowsWritten int64
}

// Driver is the capability-bearing interface every backend
// implements. A driver that doesn't support a given operation returns
// (zero value, false, nil) or a KindUnsupportedFeature error,
// depending on the method; see each method's doc for its contract.
type Driver interface {
	// Features declares this driver's capabilities.
	Features() FeatureSet

	// Schema introspects the driver's current table shape. ok is
	// false if the driver doesn't support introspection or the table
	// doesn't exist yet.
	Schema(ctx Context) (schema *dbcschema.Schema, ok bool, err error)

	// LocalData opens a reader over the driver's data as a dataset
	// stream. ok is false to signal "use a shortcut or fail" when this
	// driver can't produce a local stream (e.g. it can only be a
	// shortcut source).
	LocalData(ctx Context, schema *dbcschema.Schema, args SharedArgs) (stream *dbcstream.DatasetStream, ok bool, err error)

	// WriteLocalData consumes input and applies it under the given
	// schema and if-exists policy.
	WriteLocalData(ctx Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args SharedArgs) (WriteResult, error)

	// SupportsWriteRemoteData reports whether this driver can pull
	// directly from source without routing bytes through the CSV
	// plane (the shortcut path).
	SupportsWriteRemoteData(source Driver) bool

	// WriteRemoteData executes the shortcut transfer. Only called
	// after SupportsWriteRemoteData(source) returned true.
	WriteRemoteData(ctx Context, schema *dbcschema.Schema, source Driver, args SharedArgs) (WriteResult, error)

	// Count returns a fast row count, if the driver can compute one
	// without a full data scan. ok is false if unsupported.
	Count(ctx Context, schema *dbcschema.Schema, whereClause string) (count int64, ok bool, err error)
}
