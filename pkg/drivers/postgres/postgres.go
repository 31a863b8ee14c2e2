// Package postgres implements the "postgres:" and "postgres-sql:"
// locator schemes over github.com/jackc/pgx/v5: table introspection
// via information_schema, DDL via pkg/schemacodec/postgres, and bulk
// transfer via COPY, adapted from a pglogrepl/pgproto3 based logical
// replication connector to a plain pgx connection pool since
// dbcrossbar copies snapshots rather than streaming a replication slot.
package postgres

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/dbcrossbar/dbcrossbar/pkg/retry"
	pgcodec "github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Locator is the parsed handle for "postgres://host/db#table" and
// "postgres-sql://host/db" (the latter used only as a schema source,
// reading the CREATE TABLE the caller supplies via --schema instead
// of introspecting).
type Locator struct {
	ConnString string
	Table      string
	SQLOnly    bool
}

// Parse is registered against the "postgres:" scheme.
func Parse(l locator.Locator) (interface{}, error) {
	return parse(l, false)
}

// ParseSQL is registered against the "postgres-sql:" scheme.
func ParseSQL(l locator.Locator) (interface{}, error) {
	return parse(l, true)
}

func parse(l locator.Locator, sqlOnly bool) (interface{}, error) {
	if l.Body == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "postgres locator has an empty connection body")
	}
	if l.Fragment == "" && !sqlOnly {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "postgres locator needs a #table fragment")
	}
	return Locator{ConnString: "postgres:" + l.Body, Table: l.Fragment, SQLOnly: sqlOnly}, nil
}

func init() {
	locator.Register("postgres", Parse)
	locator.Register("postgres-sql", ParseSQL)
}

// Driver implements driver.Driver over a PostgreSQL table reached
// through a pgx connection pool.
type Driver struct {
	loc  Locator
	pool *pgxpool.Pool
}

// New builds a Driver from a parsed Locator and an already-opened
// pool; connection lifecycle is the CLI layer's responsibility so
// tests can substitute a pool pointed at a local instance.
func New(loc Locator, pool *pgxpool.Pool) *Driver {
	return &Driver{loc: loc, pool: pool}
}

// Features declares full read/write/upsert/count support, since a
// PostgreSQL table can do all of them through ordinary SQL.
func (d *Driver) Features() driver.FeatureSet {
	return driver.FeatureSet{
		ReadSchema:        true,
		WriteSchema:       true,
		ReadData:          true,
		WriteData:         true,
		IfExistsError:     true,
		IfExistsAppend:    true,
		IfExistsOverwrite: true,
		IfExistsUpsertOn:  true,
		Count:             true,
	}
}

// Schema introspects the table's columns from information_schema and
// renders them back through the portable type model. ok is false if
// the table does not exist.
func (d *Driver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable, udt_name
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position`, d.loc.Table)
	if err != nil {
		return nil, false, dbcerrors.Wrapf(err, dbcerrors.KindNetwork, "introspecting table %q", d.loc.Table)
	}
	defer rows.Close()

	var defs []string
	for rows.Next() {
		var colName, dataType, isNullable, udtName string
		if err := rows.Scan(&colName, &dataType, &isNullable, &udtName); err != nil {
			return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "scanning column row")
		}
		nullSQL := "NOT NULL"
		if isNullable == "YES" {
			nullSQL = ""
		}
		defs = append(defs, fmt.Sprintf("%q %s %s", colName, informationSchemaType(dataType, udtName), nullSQL))
	}
	if err := rows.Err(); err != nil {
		return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "reading column rows")
	}
	if len(defs) == 0 {
		return nil, false, nil
	}

	ddl := fmt.Sprintf("CREATE TABLE %q (\n  %s\n)", d.loc.Table, strings.Join(defs, ",\n  "))
	result, err := pgcodec.Parse(ddl)
	if err != nil {
		return nil, false, err
	}
	return result.Schema, true, nil
}

// informationSchemaType maps a data_type/udt_name pair from
// information_schema back to a type name pgcodec.Parse understands;
// PostgreSQL reports "ARRAY" for array columns with the element type
// hidden in udt_name (e.g. "_int4"), so arrays are approximated as
// text[] since the widened round trip is only used to reconstruct a
// CREATE TABLE, not to lose type fidelity permanently: a --schema
// argument always overrides this on the write side.
func informationSchemaType(dataType, udtName string) string {
	if dataType == "ARRAY" {
		return "text[]"
	}
	return dataType
}

// LocalData streams the table's rows out through COPY TO STDOUT,
// wrapped as a single named output stream, using COPY's CSV format
// with a header row (FORMAT csv, HEADER true), which writes NULL as an
// empty unquoted field and the empty string as a quoted empty field.
func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	table, err := schema.Table0()
	if err != nil {
		return nil, false, err
	}
	pr, pw := io.Pipe()
	go func() {
		conn, err := d.pool.Acquire(ctx)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		defer conn.Release()
		copySQL := fmt.Sprintf("COPY %s TO STDOUT WITH (FORMAT csv, HEADER true)", copyColumnList(table))
		_, err = conn.Conn().PgConn().CopyTo(ctx, pw, copySQL)
		pw.CloseWithError(err)
	}()
	stream := dbcstream.SliceDatasetStream([]dbcstream.OutputStream{{Name: table.Name, Bytes: pr}})
	return stream, true, nil
}

// WriteLocalData creates the table per if-exists policy and loads
// input's streams through COPY FROM STDIN. For IfExistsUpsertOn it
// loads into a temporary staging table first, then merges with
// INSERT ... ON CONFLICT, since COPY itself has no upsert mode.
func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	table, err := schema.Table0()
	if err != nil {
		return driver.WriteResult{}, err
	}
	if err := d.applyIfExists(ctx, schema, args.IfExists); err != nil {
		return driver.WriteResult{}, err
	}

	loadTable := table
	stagingName := ""
	if args.IfExists.Kind == driver.IfExistsUpsertOn {
		stagingName = table.Name + "_dbcrossbar_staging"
		ddl, _, rerr := renderStagingDDL(schema, stagingName)
		if rerr != nil {
			return driver.WriteResult{}, rerr
		}
		if _, err := d.pool.Exec(ctx, "DROP TABLE IF EXISTS "+fmt.Sprintf("%q", stagingName)); err != nil {
			return driver.WriteResult{}, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "clearing prior staging table")
		}
		if _, err := d.pool.Exec(ctx, ddl); err != nil {
			return driver.WriteResult{}, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "creating staging table")
		}
		if args.Temporaries != nil {
			args.Temporaries.Register(dbcstream.Cleanup{
				Name: stagingName,
				Run: func(ctx context.Context) error {
					_, err := d.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", stagingName))
					return err
				},
			})
		}
		staging := *table
		staging.Name = stagingName
		loadTable = &staging
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
		n, err := d.copyIn(ctx, loadTable, out.Bytes)
		out.Bytes.Close()
		if err != nil {
			return driver.WriteResult{}, err
		}
		total += n
	}

	if stagingName != "" {
		if err := d.upsertFromStaging(ctx, table, stagingName, args.IfExists.Keys); err != nil {
			return driver.WriteResult{}, err
		}
	}
	return driver.WriteResult{RowsWritten: total}, nil
}

// renderStagingDDL renders schema's table under a different name, for
// the upsert staging table.
func renderStagingDDL(schema *dbcschema.Schema, name string) (string, []pgcodec.Warning, error) {
	table, err := schema.Table0()
	if err != nil {
		return "", nil, err
	}
	renamed := dbcschema.Table{Name: name, Columns: table.Columns}
	renamedSchema, err := dbcschema.New(renamed, nil)
	if err != nil {
		return "", nil, err
	}
	return pgcodec.Render(renamedSchema)
}

func (d *Driver) copyIn(ctx context.Context, table *dbcschema.Table, r io.Reader) (int64, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return 0, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "acquiring connection for COPY")
	}
	defer conn.Release()
	copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", copyColumnList(table))
	tag, err := conn.Conn().PgConn().CopyFrom(ctx, r, copySQL)
	if err != nil {
		return 0, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "COPY FROM STDIN")
	}
	return tag.RowsAffected(), nil
}

func copyColumnList(table *dbcschema.Table) string {
	names := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		names[i] = fmt.Sprintf("%q", c.Name)
	}
	return fmt.Sprintf("%q (%s)", table.Name, strings.Join(names, ", "))
}

func (d *Driver) applyIfExists(ctx context.Context, schema *dbcschema.Schema, ifExists driver.IfExists) error {
	table, err := schema.Table0()
	if err != nil {
		return err
	}
	exists, err := d.tableExists(ctx, table.Name)
	if err != nil {
		return err
	}
	switch ifExists.Kind {
	case driver.IfExistsError:
		if exists {
			return dbcerrors.Newf(dbcerrors.KindAlreadyExists, "table %q already exists", table.Name)
		}
	case driver.IfExistsOverwrite:
		if exists {
			if _, err := d.pool.Exec(ctx, fmt.Sprintf("DROP TABLE %q", table.Name)); err != nil {
				return dbcerrors.Wrap(err, dbcerrors.KindNetwork, "dropping table for overwrite")
			}
			exists = false
		}
	case driver.IfExistsAppend, driver.IfExistsUpsertOn:
		// nothing to do up front; upsert is applied per-row via
		// ON CONFLICT once loaded into a staging table (see upsert.go).
	}
	if exists {
		return nil
	}
	ddl, _, err := pgcodec.Render(schema)
	if err != nil {
		return err
	}
	if _, err := d.pool.Exec(ctx, ddl); err != nil {
		return dbcerrors.Wrap(err, dbcerrors.KindNetwork, "creating table")
	}
	return nil
}

func (d *Driver) tableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
	if err != nil {
		return false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "checking table existence")
	}
	return exists, nil
}

// SupportsWriteRemoteData is false: PostgreSQL has no server-side
// pull from an arbitrary source driver, only COPY over a byte stream
// it must be handed.
func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool { return false }

// WriteRemoteData is never called since SupportsWriteRemoteData
// always returns false.
func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "postgres driver does not support remote writes")
}

// Exec runs a bare SQL statement against the underlying pool, exposed
// so wrapper drivers (redshift) that embed *Driver can issue
// dialect-specific statements postgres.Driver itself doesn't know
// about, without reaching into an unexported field.
func (d *Driver) Exec(ctx context.Context, sql string) (int64, error) {
	tag, err := d.pool.Exec(ctx, sql)
	if err != nil {
		return 0, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "executing statement")
	}
	return tag.RowsAffected(), nil
}

// Count runs SELECT count(*), optionally filtered by whereClause. The
// query is idempotent, so a transient connection failure is retried
// under the capped backoff policy rather than failing the whole copy.
func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	table, err := schema.Table0()
	if err != nil {
		return 0, false, err
	}
	query := fmt.Sprintf("SELECT count(*) FROM %q", table.Name)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	var count int64
	var noRows bool
	err = retry.Do(ctx, func(ctx context.Context) error {
		noRows = false
		if err := d.pool.QueryRow(ctx, query).Scan(&count); err != nil {
			if err == pgx.ErrNoRows {
				noRows = true
				return nil
			}
			return dbcerrors.Wrap(err, dbcerrors.KindNetwork, "counting rows")
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	if noRows {
		return 0, false, nil
	}
	return count, true, nil
}
