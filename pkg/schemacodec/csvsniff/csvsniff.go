// Package csvsniff builds a portable schema from a CSV header row
// alone: every column is Text and nullable, in header order. It's the
// fallback codec used when a CSV source has no accompanying schema
// and none was introspected.
package csvsniff

import (
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
)

// Sniff builds a Schema from a parsed CSV header row (already split
// into field names) and a table name, typically the base name of the
// source file.
func Sniff(tableName string, header []string) (*dbcschema.Schema, error) {
	if len(header) == 0 {
		return nil, dbcerrors.New(dbcerrors.KindParse, "csv header row is empty")
	}
	columns := make([]dbcschema.Column, len(header))
	for i, name := range header {
		columns[i] = dbcschema.Column{Name: name, IsNullable: true, DataType: dbctypes.Text}
	}
	return dbcschema.New(dbcschema.Table{Name: tableName, Columns: columns}, nil)
}
