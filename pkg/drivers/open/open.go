// Package open turns a raw locator string into a live driver.Driver,
// the wiring step every locator-consuming operation needs: parsing a
// locator only yields a scheme-specific struct (a DSN, a bucket name,
// a table fragment), and something has to open the connection pool or
// client that struct describes before the planner can call Schema,
// LocalData, or WriteLocalData against it. cmd/dbcrossbar is the only
// caller; it stays a separate package so the connection-construction
// concern doesn't clutter cmd/dbcrossbar/main.go's command tree.
package open

import (
	"context"
	"database/sql"

	gbq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/snowflakedb/gosnowflake"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/bigquery"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/csvfile"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/dbcrossbarschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/dbcrossbarts"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/gs"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/mysql"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/postgres"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/redshift"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/s3"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/snowflake"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/stub"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
)

// Args carries the driver-construction knobs that come from CLI
// flags or the environment rather than the locator text itself:
// warehouse staging locations (--redshift-staging-s3,
// --redshift-iam-role, --snowflake-stage) and the --enable-unstable
// gate.
type Args struct {
	// AWSRegion selects the S3 client's region; defaults to the SDK's
	// own environment/config-file resolution when empty.
	AWSRegion string
	// RedshiftStaging and SnowflakeStage carry the external staging
	// location a warehouse bulk load reads from, taken from the
	// --redshift-staging-s3/--redshift-iam-role and --snowflake-stage
	// flags.
	RedshiftStaging redshift.StagingArgs
	SnowflakeStage  snowflake.StageArgs
	// EnableUnstable gates locators stub.Unstable flags as
	// experimental.
	EnableUnstable bool
}

// Driver parses raw and opens a live driver.Driver for it, dialing
// whatever connection or client the scheme needs.
func Driver(ctx context.Context, raw string, args Args) (driver.Driver, error) {
	_, handle, err := locator.Parse(raw)
	if err != nil {
		return nil, err
	}
	switch h := handle.(type) {
	case csvfile.Locator:
		return csvfile.New(h), nil
	case postgres.Locator:
		pool, err := pgxpool.New(ctx, h.ConnString)
		if err != nil {
			return nil, dbcerrors.Wrapf(err, dbcerrors.KindNetwork, "connecting to %s", raw)
		}
		return postgres.New(h, pool), nil
	case redshift.Locator:
		pool, err := pgxpool.New(ctx, h.ConnString)
		if err != nil {
			return nil, dbcerrors.Wrapf(err, dbcerrors.KindNetwork, "connecting to %s", raw)
		}
		return redshift.New(h, pool, args.RedshiftStaging), nil
	case mysql.Locator:
		db, err := sql.Open("mysql", h.DSN)
		if err != nil {
			return nil, dbcerrors.Wrapf(err, dbcerrors.KindNetwork, "opening %s", raw)
		}
		return mysql.New(h, db), nil
	case snowflake.Locator:
		db, err := sql.Open("snowflake", h.DSN)
		if err != nil {
			return nil, dbcerrors.Wrapf(err, dbcerrors.KindNetwork, "opening %s", raw)
		}
		return snowflake.New(h, db, args.SnowflakeStage), nil
	case bigquery.Locator:
		client, err := gbq.NewClient(ctx, h.Project)
		if err != nil {
			return nil, dbcerrors.Wrapf(err, dbcerrors.KindNetwork, "connecting to BigQuery project %q", h.Project)
		}
		return bigquery.New(h, client), nil
	case gs.Locator:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, dbcerrors.Wrapf(err, dbcerrors.KindNetwork, "connecting to GCS")
		}
		return gs.New(h, client), nil
	case s3.Locator:
		client, err := s3.NewClientFromEnv(ctx, args.AWSRegion)
		if err != nil {
			return nil, dbcerrors.Wrapf(err, dbcerrors.KindNetwork, "connecting to S3")
		}
		return s3.New(h, client), nil
	case dbcrossbarschema.Locator:
		return dbcrossbarschema.New(h), nil
	case dbcrossbarts.Locator:
		return dbcrossbarts.New(h), nil
	case stub.Locator:
		if stub.Unstable(h) && !args.EnableUnstable {
			return nil, dbcerrors.Newf(dbcerrors.KindUnsupportedFeature, "%s: pass --enable-unstable to use this locator", raw)
		}
		return stub.New(h), nil
	default:
		return nil, dbcerrors.Newf(dbcerrors.KindInternal, "no driver wiring registered for locator handle type %T", handle)
	}
}

// SchemaWriter is implemented by the schema-only drivers
// (dbcrossbarschema, dbcrossbarts) whose native format has no data
// side to write, only a schema to render. It is not part of
// driver.Driver itself since no data-moving driver needs it.
type SchemaWriter interface {
	WriteSchema(schema *dbcschema.Schema) error
}
