// Package snowflake implements the "snowflake:" locator scheme over
// database/sql with the github.com/snowflakedb/gosnowflake driver:
// introspection via information_schema, DDL via this package's own
// portable-to-Snowflake type mapping, and bulk load via `COPY INTO`
// against a staged S3/GCS location.
package snowflake

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
)

// Locator is the parsed handle for "snowflake://account/db#table".
type Locator struct {
	DSN   string
	Table string
}

// Parse is registered against the "snowflake:" scheme.
func Parse(l locator.Locator) (interface{}, error) {
	if l.Body == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "snowflake locator has an empty connection body")
	}
	if l.Fragment == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "snowflake locator needs a #table fragment")
	}
	return Locator{DSN: strings.TrimPrefix(l.Body, "//"), Table: l.Fragment}, nil
}

func init() { locator.Register("snowflake", Parse) }

// StageArgs bundles the external stage a Snowflake COPY INTO
// statement loads from, supplied via the --snowflake-stage flag.
type StageArgs struct {
	Stage string
}

// Driver implements driver.Driver over a Snowflake table.
type Driver struct {
	loc   Locator
	db    *sql.DB
	stage StageArgs
}

// New builds a Driver from a parsed Locator, an already-opened
// *sql.DB (registered under the "snowflake" database/sql driver
// name), and the external stage bulk loads read from.
func New(loc Locator, db *sql.DB, stage StageArgs) *Driver {
	return &Driver{loc: loc, db: db, stage: stage}
}

// Features declares schema read/write, count, data write with
// append/overwrite support (reading rows is not supported), and the
// external-stage temporary requirement the load path needs; no
// server-side upsert (Snowflake's MERGE needs a staged intermediate
// table this driver doesn't orchestrate).
func (d *Driver) Features() driver.FeatureSet {
	return driver.FeatureSet{
		ReadSchema:          true,
		WriteSchema:         true,
		ReadData:            false,
		WriteData:           true,
		IfExistsError:       true,
		IfExistsAppend:      true,
		IfExistsOverwrite:   true,
		Count:               true,
		TemporariesRequired: []string{"s3://", "gs://"},
	}
}

// Schema introspects columns from information_schema.
func (d *Driver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position`, strings.ToUpper(d.loc.Table))
	if err != nil {
		return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "introspecting table")
	}
	defer rows.Close()

	var columns []dbcschema.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "scanning column row")
		}
		dt, err := mapSnowflakeType(dataType)
		if err != nil {
			return nil, false, err
		}
		columns = append(columns, dbcschema.Column{Name: strings.ToLower(name), IsNullable: isNullable == "YES", DataType: dt})
	}
	if err := rows.Err(); err != nil {
		return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "reading column rows")
	}
	if len(columns) == 0 {
		return nil, false, nil
	}
	schema, err := dbcschema.New(dbcschema.Table{Name: d.loc.Table, Columns: columns}, nil)
	return schema, true, err
}

func mapSnowflakeType(dataType string) (dbctypes.DataType, error) {
	switch strings.ToUpper(dataType) {
	case "NUMBER", "DECIMAL", "NUMERIC":
		return dbctypes.Decimal, nil
	case "FLOAT", "DOUBLE", "REAL":
		return dbctypes.Float64, nil
	case "BOOLEAN":
		return dbctypes.Bool, nil
	case "DATE":
		return dbctypes.Date, nil
	case "TIMESTAMP_NTZ", "TIMESTAMP":
		return dbctypes.TimestampWithoutTimeZone, nil
	case "TIMESTAMP_TZ", "TIMESTAMP_LTZ":
		return dbctypes.TimestampWithTimeZone, nil
	case "VARIANT":
		return dbctypes.JSON, nil
	default:
		return dbctypes.Text, nil
	}
}

// LocalData is not implemented: production Snowflake exports run
// through an UNLOAD to external stage, which the generic copy path
// doesn't need since WriteRemoteData's shortcut is unavailable and
// pull-based export isn't part of this driver's initial scope.
func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	return nil, false, nil
}

// WriteLocalData requires the CSV streams to already be staged
// externally (S3 or GCS); it creates the table per if-exists policy
// and issues `COPY INTO` from the configured stage.
func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	if d.stage.Stage == "" {
		return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindTemporaryRequired, "snowflake destination requires an external stage")
	}
	table, err := schema.Table0()
	if err != nil {
		return driver.WriteResult{}, err
	}
	if err := d.applyIfExists(ctx, table, args.IfExists.Kind); err != nil {
		return driver.WriteResult{}, err
	}

	stmt := fmt.Sprintf(
		`COPY INTO "%s" FROM %s FILE_FORMAT = (TYPE = CSV SKIP_HEADER = 1 FIELD_OPTIONALLY_ENCLOSED_BY = '"')`,
		table.Name, d.stage.Stage,
	)
	result, err := d.db.ExecContext(ctx, stmt)
	if err != nil {
		return driver.WriteResult{}, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "running COPY INTO")
	}
	n, _ := result.RowsAffected()
	return driver.WriteResult{RowsWritten: n}, nil
}

func (d *Driver) applyIfExists(ctx driver.Context, table *dbcschema.Table, kind driver.IfExistsKind) error {
	var exists int
	err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM information_schema.tables WHERE table_name = ?`, strings.ToUpper(table.Name)).Scan(&exists)
	if err != nil {
		return dbcerrors.Wrap(err, dbcerrors.KindNetwork, "checking table existence")
	}
	switch kind {
	case driver.IfExistsError:
		if exists > 0 {
			return dbcerrors.Newf(dbcerrors.KindAlreadyExists, "table %q already exists", table.Name)
		}
	case driver.IfExistsOverwrite:
		if exists > 0 {
			if _, err := d.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE "%s"`, table.Name)); err != nil {
				return dbcerrors.Wrap(err, dbcerrors.KindNetwork, "dropping table for overwrite")
			}
			exists = 0
		}
	}
	if exists > 0 {
		return nil
	}
	ddl, err := renderCreateTable(table)
	if err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return dbcerrors.Wrap(err, dbcerrors.KindNetwork, "creating table")
	}
	return nil
}

func renderCreateTable(table *dbcschema.Table) (string, error) {
	var defs []string
	for _, col := range table.Columns {
		sqlType, err := mapPortableToSnowflake(col.DataType)
		if err != nil {
			return "", err
		}
		null := "NOT NULL"
		if col.IsNullable {
			null = "NULL"
		}
		defs = append(defs, fmt.Sprintf(`"%s" %s %s`, col.Name, sqlType, null))
	}
	return fmt.Sprintf("CREATE TABLE \"%s\" (\n  %s\n)", table.Name, strings.Join(defs, ",\n  ")), nil
}

func mapPortableToSnowflake(dt dbctypes.DataType) (string, error) {
	switch dt.Kind() {
	case dbctypes.KindInt16, dbctypes.KindInt32, dbctypes.KindInt64:
		return "NUMBER(38,0)", nil
	case dbctypes.KindFloat32, dbctypes.KindFloat64:
		return "FLOAT", nil
	case dbctypes.KindDecimal:
		return "NUMBER(38,10)", nil
	case dbctypes.KindBool:
		return "BOOLEAN", nil
	case dbctypes.KindText, dbctypes.KindOneOf:
		return "TEXT", nil
	case dbctypes.KindDate:
		return "DATE", nil
	case dbctypes.KindTimestampWithoutTimeZone:
		return "TIMESTAMP_NTZ", nil
	case dbctypes.KindTimestampWithTimeZone:
		return "TIMESTAMP_TZ", nil
	case dbctypes.KindUUID:
		return "VARCHAR(36)", nil
	case dbctypes.KindJSON:
		return "VARIANT", nil
	default:
		return "TEXT", nil
	}
}

// SupportsWriteRemoteData is false.
func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool { return false }

// WriteRemoteData is never called.
func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "snowflake driver does not support remote writes")
}

// Count runs SELECT count(*).
func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	table, err := schema.Table0()
	if err != nil {
		return 0, false, err
	}
	sqlText := fmt.Sprintf(`SELECT count(*) FROM "%s"`, table.Name)
	if whereClause != "" {
		sqlText += " WHERE " + whereClause
	}
	var count int64
	if err := d.db.QueryRowContext(ctx, sqlText).Scan(&count); err != nil {
		return 0, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "counting rows")
	}
	return count, true, nil
}
