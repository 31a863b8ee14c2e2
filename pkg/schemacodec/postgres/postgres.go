// Package postgres translates between PostgreSQL `CREATE TABLE`
// statements and the portable schema model. It is intentionally
// permissive on parse (constraints other than NOT NULL, indexes, and
// defaults are ignored with a warning) and exact on render (a single
// canonical type mapping per portable DataType).
package postgres

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
)

// Warning is a non-fatal parse diagnostic: something in the source
// text was recognized but dropped (an index, a default, a constraint
// other than NOT NULL) or approximated (a Struct flattened to jsonb).
type Warning struct {
	Message string
}

// ParseResult is the schema produced by Parse plus any warnings
// accumulated along the way.
type ParseResult struct {
	Schema   *dbcschema.Schema
	Warnings []Warning
}

var (
	createTableRe = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?("?[\w.]+"?)\s*\((.*)\)\s*;?\s*$`)
	createEnumRe  = regexp.MustCompile(`(?is)CREATE\s+TYPE\s+("?[\w.]+"?)\s+AS\s+ENUM\s*\((.*?)\)\s*;`)
	geometryRe    = regexp.MustCompile(`(?i)^(?:public\.)?geometry\(\s*Geometry\s*,\s*(\d+)\s*\)$`)
	arraySuffixRe = regexp.MustCompile(`^(.*?)(\[\])+$`)
)

// Parse reads one or more statements: an optional sequence of
// `CREATE TYPE ... AS ENUM (...)` statements that become named OneOf
// types, followed by exactly one `CREATE TABLE`.
func Parse(source string) (*ParseResult, error) {
	result := &ParseResult{}
	named := map[string]dbctypes.DataType{}

	for _, m := range createEnumRe.FindAllStringSubmatch(source, -1) {
		name := unquoteIdent(m[1])
		values, err := splitEnumValues(m[2])
		if err != nil {
			return nil, dbcerrors.Wrapf(err, dbcerrors.KindParse, "parsing enum %q", name)
		}
		oneOf, err := dbctypes.NewOneOf(values)
		if err != nil {
			return nil, dbcerrors.Wrapf(err, dbcerrors.KindParse, "enum %q", name)
		}
		named[name] = oneOf
	}

	m := createTableRe.FindStringSubmatch(source)
	if m == nil {
		return nil, dbcerrors.New(dbcerrors.KindParse, "no CREATE TABLE statement found")
	}
	tableName := unquoteIdent(m[1])
	body := m[2]

	columns, warnings, err := parseColumns(body, named)
	if err != nil {
		return nil, err
	}
	result.Warnings = warnings

	namedTypes := make([]dbcschema.NamedDataType, 0, len(named))
	for name, dt := range named {
		namedTypes = append(namedTypes, dbcschema.NamedDataType{Name: name, DataType: dt})
	}

	schema, err := dbcschema.New(dbcschema.Table{Name: tableName, Columns: columns}, namedTypes)
	if err != nil {
		return nil, dbcerrors.Wrap(err, dbcerrors.KindParse, "building schema")
	}
	result.Schema = schema
	return result, nil
}

// splitColumnDefs splits a CREATE TABLE body on top-level commas,
// respecting nested parens (needed for things like numeric(10,2) and
// geometry(Geometry, 4326)).
func splitColumnDefs(body string) []string {
	var defs []string
	depth := 0
	start := 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				defs = append(defs, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(body[start:]) != "" {
		defs = append(defs, strings.TrimSpace(body[start:]))
	}
	return defs
}

var tableConstraintPrefixes = []string{"PRIMARY KEY", "FOREIGN KEY", "UNIQUE", "CONSTRAINT", "CHECK"}

func parseColumns(body string, named map[string]dbctypes.DataType) ([]dbcschema.Column, []Warning, error) {
	var columns []dbcschema.Column
	var warnings []Warning

	for _, def := range splitColumnDefs(body) {
		upper := strings.ToUpper(def)
		isConstraint := false
		for _, prefix := range tableConstraintPrefixes {
			if strings.HasPrefix(upper, prefix) {
				isConstraint = true
				break
			}
		}
		if isConstraint {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("ignoring table constraint: %s", def)})
			continue
		}

		fields := splitFields(def)
		if len(fields) < 2 {
			return nil, nil, dbcerrors.Newf(dbcerrors.KindParse, "malformed column definition: %q", def)
		}
		colName := unquoteIdent(fields[0])
		typeText, rest := consumeTypeExpr(fields[1:])

		dt, isNamed, err := mapPGType(typeText, named)
		if err != nil {
			return nil, nil, err
		}
		isNullable := true
		if containsWord(rest, "NOT") && containsWord(rest, "NULL") {
			isNullable = false
		}
		if !isNamed {
			for _, w := range strings.Fields(rest) {
				switch strings.ToUpper(w) {
				case "DEFAULT", "PRIMARY", "UNIQUE", "REFERENCES", "CHECK":
					warnings = append(warnings, Warning{Message: fmt.Sprintf("ignoring constraint/default on column %q", colName)})
				}
			}
		}

		columns = append(columns, dbcschema.Column{Name: colName, IsNullable: isNullable, DataType: dt})
	}
	return columns, warnings, nil
}

// splitFields breaks a column definition into whitespace-separated
// tokens, but keeps a parenthesized group (e.g. `numeric(10,2)`) glued
// to the preceding token.
func splitFields(def string) []string {
	var fields []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range def {
		switch {
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case r == ' ' && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}

// consumeTypeExpr reassembles the type name (which may be multiple
// words, e.g. "timestamp with time zone" or "double precision", plus
// any trailing `[]`) from the remaining tokens, returning the
// unconsumed tail as the rest of the definition.
func consumeTypeExpr(tokens []string) (typeText string, rest string) {
	multiWordStarts := map[string][]string{
		"timestamp": {"with", "without", "time", "zone"},
		"double":    {"precision"},
		"character": {"varying"},
	}
	if len(tokens) == 0 {
		return "", ""
	}
	typeWords := []string{tokens[0]}
	i := 1
	if follow, ok := multiWordStarts[strings.ToLower(tokens[0])]; ok {
		for i < len(tokens) {
			matched := false
			for _, f := range follow {
				if strings.EqualFold(tokens[i], f) {
					matched = true
					break
				}
			}
			if !matched {
				break
			}
			typeWords = append(typeWords, tokens[i])
			i++
		}
	}
	return strings.Join(typeWords, " "), strings.Join(tokens[i:], " ")
}

func containsWord(s, word string) bool {
	for _, w := range strings.Fields(s) {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

func mapPGType(typeText string, named map[string]dbctypes.DataType) (dbctypes.DataType, bool, error) {
	if m := arraySuffixRe.FindStringSubmatch(typeText); m != nil {
		elemText := strings.TrimSpace(m[1])
		elem, isNamed, err := mapPGType(elemText, named)
		if err != nil {
			return nil, false, err
		}
		return dbctypes.NewArray(elem), isNamed, nil
	}

	if m := geometryRe.FindStringSubmatch(typeText); m != nil {
		srid, _ := strconv.ParseUint(m[1], 10, 32)
		return dbctypes.NewGeoJSON(uint32(srid)), false, nil
	}

	base := strings.ToLower(strings.TrimSpace(typeText))
	base = stripParenArg(base)

	if dt, ok := named[base]; ok {
		return dt, true, nil
	}

	switch base {
	case "smallint", "int2", "smallserial":
		return dbctypes.Int16, false, nil
	case "integer", "int", "int4", "serial":
		return dbctypes.Int32, false, nil
	case "bigint", "int8", "bigserial":
		return dbctypes.Int64, false, nil
	case "real", "float4":
		return dbctypes.Float32, false, nil
	case "double precision", "float8":
		return dbctypes.Float64, false, nil
	case "numeric", "decimal":
		return dbctypes.Decimal, false, nil
	case "boolean", "bool":
		return dbctypes.Bool, false, nil
	case "text", "varchar", "character varying", "char", "character", "bpchar", "citext":
		return dbctypes.Text, false, nil
	case "date":
		return dbctypes.Date, false, nil
	case "timestamp", "timestamp without time zone":
		return dbctypes.TimestampWithoutTimeZone, false, nil
	case "timestamptz", "timestamp with time zone":
		return dbctypes.TimestampWithTimeZone, false, nil
	case "uuid":
		return dbctypes.UUID, false, nil
	case "json", "jsonb":
		return dbctypes.JSON, false, nil
	case "geometry", "geography":
		return dbctypes.NewGeoJSON(dbctypes.DefaultGeoJSONSRID), false, nil
	default:
		return nil, false, dbcerrors.Newf(dbcerrors.KindUnsupportedType, "no portable mapping for PostgreSQL type %q", typeText)
	}
}

func stripParenArg(s string) string {
	if i := strings.IndexByte(s, '('); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func splitEnumValues(body string) ([]string, error) {
	var values []string
	for _, raw := range strings.Split(body, ",") {
		v := strings.TrimSpace(raw)
		v = strings.TrimPrefix(v, "'")
		v = strings.TrimSuffix(v, "'")
		v = strings.ReplaceAll(v, "''", "'")
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, dbcerrors.New(dbcerrors.KindParse, "enum has no values")
	}
	return values, nil
}

// Render emits a single `CREATE TABLE` statement for schema's table,
// with columns in original order, plus any warnings about lossy type
// mappings (Struct erased to jsonb, Named without a matching PG type
// rendered as text).
func Render(schema *dbcschema.Schema) (string, []Warning, error) {
	table, err := schema.Table0()
	if err != nil {
		return "", nil, err
	}
	var warnings []Warning
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", quoteIdent(table.Name))
	for i, col := range table.Columns {
		pgType, warn := renderPGType(col.DataType)
		if warn != "" {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("column %q: %s", col.Name, warn)})
		}
		fmt.Fprintf(&b, "  %s %s", quoteIdent(col.Name), pgType)
		if !col.IsNullable {
			b.WriteString(" NOT NULL")
		}
		if i != len(table.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String(), warnings, nil
}

func renderPGType(dt dbctypes.DataType) (string, string) {
	switch v := dt.(type) {
	case dbctypes.ArrayType:
		elemType, warn := renderPGType(v.Element)
		return elemType + "[]", warn
	case dbctypes.GeoJSONType:
		return fmt.Sprintf("geometry(Geometry, %d)", v.SRID), ""
	case dbctypes.StructType:
		return "jsonb", "struct type has no PostgreSQL equivalent; erasing structure to jsonb"
	case dbctypes.OneOfType:
		return "text", ""
	case dbctypes.NamedType:
		return "text", fmt.Sprintf("named type %q has no matching PostgreSQL domain/enum; rendering as text", v.Name)
	}

	switch dt.Kind() {
	case dbctypes.KindInt16:
		return "smallint", ""
	case dbctypes.KindInt32:
		return "integer", ""
	case dbctypes.KindInt64:
		return "bigint", ""
	case dbctypes.KindFloat32:
		return "real", ""
	case dbctypes.KindFloat64:
		return "double precision", ""
	case dbctypes.KindDecimal:
		return "numeric", ""
	case dbctypes.KindBool:
		return "boolean", ""
	case dbctypes.KindText:
		return "text", ""
	case dbctypes.KindDate:
		return "date", ""
	case dbctypes.KindTimestampWithoutTimeZone:
		return "timestamp", ""
	case dbctypes.KindTimestampWithTimeZone:
		return "timestamp with time zone", ""
	case dbctypes.KindUUID:
		return "uuid", ""
	case dbctypes.KindJSON:
		return "jsonb", ""
	default:
		return "text", fmt.Sprintf("no PostgreSQL mapping for %s; rendering as text", dt.String())
	}
}

func quoteIdent(name string) string {
	if regexp.MustCompile(`^[a-z_][a-z0-9_]*$`).MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
