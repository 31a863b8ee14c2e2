// Package bigquery implements the "bigquery:", "bigquery-schema:", and
// "bigquery-test-fixture:" locator schemes over
// cloud.google.com/go/bigquery: client/dataset/table/job lifecycle,
// adapted from a continuous streaming-insert pipeline to
// dbcrossbar's bulk load-job model since dbcrossbar moves whole
// datasets rather than a continuous event stream.
package bigquery

import (
	"fmt"
	"strings"
	"time"

	gbq "cloud.google.com/go/bigquery"
	"github.com/dbcrossbar/dbcrossbar/pkg/clients"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	bqcodec "github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/bigquery"
	"google.golang.org/api/iterator"
)

// breaker guards the BigQuery REST metadata/job API against cascading
// retries when the API is degraded: five consecutive failures open
// the circuit for 30s before probing again.
var breaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	Timeout:          30 * time.Second,
})

// Locator is the parsed handle for "bigquery:project:dataset.table"
// (and the schema/test-fixture variants, which share the same
// project:dataset.table addressing but are only ever used as a
// schema source, never a data source or destination).
type Locator struct {
	Project string
	Dataset string
	Table   string
	Kind    string // "data", "schema", or "test-fixture"
}

// Parse is registered against the "bigquery:" scheme.
func Parse(l locator.Locator) (interface{}, error) { return parse(l, "data") }

// ParseSchema is registered against the "bigquery-schema:" scheme.
func ParseSchema(l locator.Locator) (interface{}, error) { return parse(l, "schema") }

// ParseTestFixture is registered against the
// "bigquery-test-fixture:" scheme.
func ParseTestFixture(l locator.Locator) (interface{}, error) { return parse(l, "test-fixture") }

func parse(l locator.Locator, kind string) (interface{}, error) {
	// project:dataset.table
	parts := strings.SplitN(l.Body, ":", 2)
	if len(parts) != 2 {
		return nil, dbcerrors.Newf(dbcerrors.KindLocator, "bigquery locator must be project:dataset.table, got %q", l.Body)
	}
	project := parts[0]
	rest := strings.SplitN(parts[1], ".", 2)
	if len(rest) != 2 {
		return nil, dbcerrors.Newf(dbcerrors.KindLocator, "bigquery locator must be project:dataset.table, got %q", l.Body)
	}
	return Locator{Project: project, Dataset: rest[0], Table: rest[1], Kind: kind}, nil
}

func init() {
	locator.Register("bigquery", Parse)
	locator.Register("bigquery-schema", ParseSchema)
	locator.Register("bigquery-test-fixture", ParseTestFixture)
}

// Driver implements driver.Driver over a BigQuery table.
type Driver struct {
	loc    Locator
	client *gbq.Client
}

// New builds a Driver from a parsed Locator and an already-constructed
// client; the CLI layer owns client lifecycle (application-default
// credentials via google.golang.org/api).
func New(loc Locator, client *gbq.Client) *Driver {
	return &Driver{loc: loc, client: client}
}

func (d *Driver) table() *gbq.Table {
	return d.client.DatasetInProject(d.loc.Project, d.loc.Dataset).Table(d.loc.Table)
}

// Features declares BigQuery's capabilities: case-insensitive column
// names, no server-side upsert (BigQuery MERGE requires a
// staging table dance the planner doesn't orchestrate for this
// driver, unlike PostgreSQL).
func (d *Driver) Features() driver.FeatureSet {
	return driver.FeatureSet{
		ReadSchema:           true,
		WriteSchema:          true,
		ReadData:             false,
		WriteData:            true,
		IfExistsError:        true,
		IfExistsAppend:       true,
		IfExistsOverwrite:    true,
		Count:                true,
		CaseInsensitiveNames: true,
		TemporariesRequired:  []string{"gs://"},
	}
}

// Schema introspects the table's metadata and translates its BigQuery
// field schema back to the portable model.
func (d *Driver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	var md *gbq.TableMetadata
	err := breaker.Execute(func() error {
		var metaErr error
		md, metaErr = d.table().Metadata(ctx)
		return metaErr
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "fetching table metadata")
	}
	wire, err := schemaFieldsToWire(md.Schema)
	if err != nil {
		return nil, false, err
	}
	schema, err := bqcodec.Parse(wire, d.loc.Table)
	if err != nil {
		return nil, false, err
	}
	return schema, true, nil
}

// LocalData is not supported: it returns ok=false and runs no export
// job. Data leaves a BigQuery table only through the BigQuery-to-
// BigQuery WriteRemoteData shortcut.
func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	return nil, false, nil
}

// WriteLocalData loads input's CSV streams into the table via a
// BigQuery load job (schema-on-read against the destination's
// declared column types), applying if-exists as the job's write
// disposition.
func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	table, err := schema.Table0()
	if err != nil {
		return driver.WriteResult{}, err
	}
	disposition, err := writeDisposition(args.IfExists.Kind)
	if err != nil {
		return driver.WriteResult{}, err
	}
	bqSchema, err := schemaToGBQ(schema)
	if err != nil {
		return driver.WriteResult{}, err
	}

	var total int64
	for {
		out, ok, err := input.Next(ctx)
		if err != nil {
			return driver.WriteResult{}, err
		}
		if !ok {
			break
		}
		source := gbq.NewReaderSource(out.Bytes)
		source.SourceFormat = gbq.CSV
		source.SkipLeadingRows = 1
		source.Schema = bqSchema

		loader := d.table().LoaderFrom(source)
		loader.WriteDisposition = disposition
		loader.CreateDisposition = gbq.CreateIfNeeded

		job, err := loader.Run(ctx)
		out.Bytes.Close()
		if err != nil {
			return driver.WriteResult{}, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "starting load job")
		}
		status, err := job.Wait(ctx)
		if err != nil {
			return driver.WriteResult{}, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "waiting for load job")
		}
		if status.Err() != nil {
			return driver.WriteResult{}, dbcerrors.Wrap(status.Err(), dbcerrors.KindNetwork, "load job failed")
		}
		if details, ok := status.Statistics.Details.(*gbq.LoadStatistics); ok {
			total += details.OutputRows
		}
	}
	_ = table
	return driver.WriteResult{RowsWritten: total}, nil
}

func writeDisposition(kind driver.IfExistsKind) (gbq.TableWriteDisposition, error) {
	switch kind {
	case driver.IfExistsAppend:
		return gbq.WriteAppend, nil
	case driver.IfExistsOverwrite:
		return gbq.WriteTruncate, nil
	case driver.IfExistsError:
		return gbq.WriteEmpty, nil
	default:
		return "", dbcerrors.Newf(dbcerrors.KindUnsupportedFeature, "bigquery destination does not support if-exists policy %v", kind)
	}
}

// SupportsWriteRemoteData reports whether source is itself a BigQuery
// driver pointed at the same project, in which case a
// table-copy-to-table job avoids round-tripping through GCS entirely.
func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool {
	src, ok := source.(*Driver)
	return ok && src.loc.Project == d.loc.Project
}

// WriteRemoteData issues a BigQuery table-copy job.
func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	src, ok := source.(*Driver)
	if !ok {
		return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindInternal, "WriteRemoteData called with an unsupported source")
	}
	disposition, err := writeDisposition(args.IfExists.Kind)
	if err != nil {
		return driver.WriteResult{}, err
	}
	copier := d.table().CopierFrom(src.table())
	copier.WriteDisposition = disposition
	job, err := copier.Run(ctx)
	if err != nil {
		return driver.WriteResult{}, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "starting copy job")
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return driver.WriteResult{}, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "waiting for copy job")
	}
	if status.Err() != nil {
		return driver.WriteResult{}, dbcerrors.Wrap(status.Err(), dbcerrors.KindNetwork, "copy job failed")
	}
	return driver.WriteResult{}, nil
}

// Count runs a `SELECT count(*)` query job.
func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	table, err := schema.Table0()
	if err != nil {
		return 0, false, err
	}
	sql := fmt.Sprintf("SELECT count(*) AS n FROM `%s.%s.%s`", d.loc.Project, d.loc.Dataset, table.Name)
	if whereClause != "" {
		sql += " WHERE " + whereClause
	}
	q := d.client.Query(sql)
	it, err := q.Read(ctx)
	if err != nil {
		return 0, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "running count query")
	}
	var row struct{ N int64 }
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return 0, false, nil
		}
		return 0, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "reading count result")
	}
	return row.N, true, nil
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "notFound") || strings.Contains(err.Error(), "404")
}

func schemaToGBQ(schema *dbcschema.Schema) (gbq.Schema, error) {
	wire, err := bqcodec.Render(schema)
	if err != nil {
		return nil, err
	}
	return wireToGBQSchema(wire)
}
