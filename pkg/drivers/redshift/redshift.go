// Package redshift implements the "redshift:" locator scheme as a
// thin wrapper over pkg/drivers/postgres: Redshift speaks the
// PostgreSQL wire protocol for everything except bulk load, which it
// requires to be staged through S3 and loaded with the `COPY ...
// FROM 's3://...' CREDENTIALS ...` statement instead of a client-side
// COPY FROM STDIN, the same way Rust dbcrossbar's drivers/redshift.rs
// reuses drivers/postgres.rs for schema and introspection.
package redshift

import (
	"fmt"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/postgres"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Locator is the parsed handle for "redshift://host/db#table".
type Locator struct {
	postgres.Locator
}

// Parse is registered against the "redshift:" scheme; it reuses
// postgres.Parse's grammar since Redshift locators have the same
// shape.
func Parse(l locator.Locator) (interface{}, error) {
	inner, err := postgres.Parse(l)
	if err != nil {
		return nil, err
	}
	return Locator{Locator: inner.(postgres.Locator)}, nil
}

func init() { locator.Register("redshift", Parse) }

// StagingArgs bundles the S3 prefix and IAM role a Redshift COPY
// statement needs, supplied via the --redshift-staging-s3 and
// --redshift-iam-role flags.
type StagingArgs struct {
	S3Prefix string
	IAMRole  string
}

// Driver implements driver.Driver over Redshift, delegating schema
// introspection, DDL, and COPY-out to an embedded postgres.Driver and
// only overriding the bulk-load path.
type Driver struct {
	*postgres.Driver
	staging StagingArgs
}

// New builds a Driver over an already-opened pool, with the S3
// staging location the load path requires.
func New(loc Locator, pool *pgxpool.Pool, staging StagingArgs) *Driver {
	return &Driver{Driver: postgres.New(loc.Locator, pool), staging: staging}
}

// Features matches PostgreSQL's, minus upsert (Redshift's COPY-based
// bulk path has no per-row conflict resolution the way a client-side
// COPY FROM STDIN + ON CONFLICT round trip does) and with the S3
// staging temporary requirement declared.
func (d *Driver) Features() driver.FeatureSet {
	f := d.Driver.Features()
	f.IfExistsUpsertOn = false
	f.TemporariesRequired = []string{"s3://"}
	return f
}

// WriteLocalData requires the CSV streams to already be staged in S3
// (the planner's temporary-resolution step is responsible for landing
// them there before calling this); it issues a `COPY ... FROM
// 's3://...'` statement per stream rather than a client-side COPY
// FROM STDIN, matching how Redshift actually ingests bulk data.
func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	if d.staging.S3Prefix == "" {
		return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindTemporaryRequired, "redshift destination requires an s3:// staging prefix")
	}
	table, err := schema.Table0()
	if err != nil {
		return driver.WriteResult{}, err
	}

	stmt := fmt.Sprintf(
		"COPY %q FROM %s CREDENTIALS 'aws_iam_role=%s' FORMAT CSV IGNOREHEADER 1",
		table.Name, quoteS3(d.staging.S3Prefix), d.staging.IAMRole,
	)
	if _, err := d.Exec(ctx, stmt); err != nil {
		return driver.WriteResult{}, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "running redshift COPY")
	}
	return driver.WriteResult{}, nil
}

func quoteS3(prefix string) string { return "'" + prefix + "'" }
