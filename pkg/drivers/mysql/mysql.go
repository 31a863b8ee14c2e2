// Package mysql implements a "mysql:" locator driver over
// database/sql with the github.com/go-sql-driver/mysql driver,
// adapted from a streaming binlog replication connector to plain
// introspection and bulk LOAD DATA since dbcrossbar copies snapshots
// rather than following a change stream.
package mysql

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

// Locator is the parsed handle for "mysql://host/db#table".
type Locator struct {
	DSN   string
	Table string
}

// Parse is registered against the "mysql:" scheme.
func Parse(l locator.Locator) (interface{}, error) {
	if l.Body == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "mysql locator has an empty connection body")
	}
	if l.Fragment == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "mysql locator needs a #table fragment")
	}
	return Locator{DSN: strings.TrimPrefix(l.Body, "//"), Table: l.Fragment}, nil
}

func init() { locator.Register("mysql", Parse) }

// Driver implements driver.Driver over a MySQL table.
type Driver struct {
	loc Locator
	db  *sql.DB
}

// New builds a Driver from a parsed Locator and an already-opened
// *sql.DB (registered under the "mysql" database/sql driver name).
func New(loc Locator, db *sql.DB) *Driver { return &Driver{loc: loc, db: db} }

// Features declares schema read/write, count, and data write with
// append/overwrite support (reading rows is not supported); MySQL has no
// portable upsert primitive dbcrossbar relies on here (ON DUPLICATE
// KEY UPDATE requires the key to already be a unique index, which the
// planner has no way to verify ahead of time), so upsert is not
// advertised.
func (d *Driver) Features() driver.FeatureSet {
	return driver.FeatureSet{
		ReadSchema:        true,
		WriteSchema:       true,
		ReadData:          false,
		WriteData:         true,
		IfExistsError:     true,
		IfExistsAppend:    true,
		IfExistsOverwrite: true,
		Count:             true,
	}
}

// Schema introspects columns from information_schema.
func (d *Driver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, d.loc.Table)
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
		dt, err := mapMySQLType(dataType)
		if err != nil {
			return nil, false, err
		}
		columns = append(columns, dbcschema.Column{Name: name, IsNullable: isNullable == "YES", DataType: dt})
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

func mapMySQLType(dataType string) (dbctypes.DataType, error) {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint":
		return dbctypes.Int16, nil
	case "mediumint", "int", "integer":
		return dbctypes.Int32, nil
	case "bigint":
		return dbctypes.Int64, nil
	case "float":
		return dbctypes.Float32, nil
	case "double", "double precision":
		return dbctypes.Float64, nil
	case "decimal", "numeric":
		return dbctypes.Decimal, nil
	case "date":
		return dbctypes.Date, nil
	case "datetime":
		return dbctypes.TimestampWithoutTimeZone, nil
	case "timestamp":
		return dbctypes.TimestampWithTimeZone, nil
	case "json":
		return dbctypes.JSON, nil
	case "char", "varchar", "text", "tinytext", "mediumtext", "longtext":
		return dbctypes.Text, nil
	default:
		return dbctypes.Text, nil
	}
}

// LocalData is not supported: it returns ok=false and reads no rows.
func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	return nil, false, nil
}

// WriteLocalData creates the table per if-exists policy and loads
// input's CSV streams via LOAD DATA LOCAL INFILE.
func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	table, err := schema.Table0()
	if err != nil {
		return driver.WriteResult{}, err
	}
	if err := d.applyIfExists(ctx, table, args.IfExists.Kind); err != nil {
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
		n, err := loadCSVIntoTable(ctx, d.db, table, out)
		if err != nil {
			return driver.WriteResult{}, err
		}
		total += n
	}
	return driver.WriteResult{RowsWritten: total}, nil
}

func (d *Driver) applyIfExists(ctx driver.Context, table *dbcschema.Table, kind driver.IfExistsKind) error {
	var exists bool
	err := d.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?)`, table.Name).Scan(&exists)
	if err != nil {
		return dbcerrors.Wrap(err, dbcerrors.KindNetwork, "checking table existence")
	}
	switch kind {
	case driver.IfExistsError:
		if exists {
			return dbcerrors.Newf(dbcerrors.KindAlreadyExists, "table %q already exists", table.Name)
		}
	case driver.IfExistsOverwrite:
		if exists {
			if _, err := d.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE `%s`", table.Name)); err != nil {
				return dbcerrors.Wrap(err, dbcerrors.KindNetwork, "dropping table for overwrite")
			}
			exists = false
		}
	}
	if exists {
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
		sqlType, err := mapPortableToMySQL(col.DataType)
		if err != nil {
			return "", err
		}
		null := "NOT NULL"
		if col.IsNullable {
			null = "NULL"
		}
		defs = append(defs, fmt.Sprintf("`%s` %s %s", col.Name, sqlType, null))
	}
	return fmt.Sprintf("CREATE TABLE `%s` (\n  %s\n)", table.Name, strings.Join(defs, ",\n  ")), nil
}

func mapPortableToMySQL(dt dbctypes.DataType) (string, error) {
	switch dt.Kind() {
	case dbctypes.KindInt16:
		return "SMALLINT", nil
	case dbctypes.KindInt32:
		return "INT", nil
	case dbctypes.KindInt64:
		return "BIGINT", nil
	case dbctypes.KindFloat32:
		return "FLOAT", nil
	case dbctypes.KindFloat64:
		return "DOUBLE", nil
	case dbctypes.KindDecimal:
		return "DECIMAL(38,10)", nil
	case dbctypes.KindBool:
		return "TINYINT(1)", nil
	case dbctypes.KindText, dbctypes.KindOneOf:
		return "TEXT", nil
	case dbctypes.KindDate:
		return "DATE", nil
	case dbctypes.KindTimestampWithoutTimeZone, dbctypes.KindTimestampWithTimeZone:
		return "DATETIME", nil
	case dbctypes.KindUUID:
		return "CHAR(36)", nil
	case dbctypes.KindJSON:
		return "JSON", nil
	default:
		return "TEXT", nil
	}
}

// SupportsWriteRemoteData is false: MySQL has no server-side pull.
func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool { return false }

// WriteRemoteData is never called.
func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "mysql driver does not support remote writes")
}

// Count runs SELECT count(*).
func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	table, err := schema.Table0()
	if err != nil {
		return 0, false, err
	}
	sqlText := fmt.Sprintf("SELECT count(*) FROM `%s`", table.Name)
	if whereClause != "" {
		sqlText += " WHERE " + whereClause
	}
	var count int64
	if err := d.db.QueryRowContext(ctx, sqlText).Scan(&count); err != nil {
		return 0, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "counting rows")
	}
	return count, true, nil
}
