// Package bigquery translates between the published BigQuery JSON
// schema shape (`name`, `type`, `mode`, `fields`) and the portable
// schema model, including nested REPEATED RECORD.
package bigquery

import (
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	jsonpool "github.com/dbcrossbar/dbcrossbar/pkg/json"
)

// fieldSchema mirrors one element of a BigQuery table schema's
// "fields" array.
type fieldSchema struct {
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	Mode   string        `json:"mode,omitempty"`
	Fields []fieldSchema `json:"fields,omitempty"`
}

// Parse decodes a BigQuery JSON schema (a top-level array of field
// definitions) into a portable Schema. tableName is supplied by the
// caller because BigQuery's schema JSON doesn't itself name the table.
func Parse(data []byte, tableName string) (*dbcschema.Schema, error) {
	var fields []fieldSchema
	if err := jsonpool.Unmarshal(data, &fields); err != nil {
		return nil, dbcerrors.Wrap(err, dbcerrors.KindParse, "decoding BigQuery schema JSON")
	}
	columns := make([]dbcschema.Column, len(fields))
	for i, f := range fields {
		dt, isNullable, err := fieldToDataType(f)
		if err != nil {
			return nil, err
		}
		columns[i] = dbcschema.Column{Name: f.Name, IsNullable: isNullable, DataType: dt}
	}
	return dbcschema.New(dbcschema.Table{Name: tableName, Columns: columns}, nil)
}

func fieldToDataType(f fieldSchema) (dbctypes.DataType, bool, error) {
	repeated := f.Mode == "REPEATED"
	nullable := f.Mode != "REQUIRED"

	var base dbctypes.DataType
	switch f.Type {
	case "INT64", "INTEGER":
		base = dbctypes.Int64
	case "FLOAT64", "FLOAT":
		base = dbctypes.Float64
	case "NUMERIC", "BIGNUMERIC":
		base = dbctypes.Decimal
	case "STRING":
		base = dbctypes.Text
	case "BOOL", "BOOLEAN":
		base = dbctypes.Bool
	case "DATE":
		base = dbctypes.Date
	case "DATETIME":
		base = dbctypes.TimestampWithoutTimeZone
	case "TIMESTAMP":
		base = dbctypes.TimestampWithTimeZone
	case "GEOGRAPHY":
		base = dbctypes.NewGeoJSON(dbctypes.DefaultGeoJSONSRID)
	case "RECORD", "STRUCT":
		structFields := make([]dbctypes.StructField, len(f.Fields))
		for i, sub := range f.Fields {
			sdt, snullable, err := fieldToDataType(sub)
			if err != nil {
				return nil, false, err
			}
			structFields[i] = dbctypes.StructField{Name: sub.Name, IsNullable: snullable, DataType: sdt}
		}
		st, err := dbctypes.NewStruct(structFields)
		if err != nil {
			return nil, false, dbcerrors.Wrapf(err, dbcerrors.KindParse, "field %q", f.Name)
		}
		base = st
	default:
		return nil, false, dbcerrors.Newf(dbcerrors.KindUnsupportedType, "no portable mapping for BigQuery type %q", f.Type)
	}

	if repeated {
		return dbctypes.NewArray(base), false, nil
	}
	return base, nullable, nil
}

// Render encodes schema's table as the BigQuery JSON schema shape.
func Render(schema *dbcschema.Schema) ([]byte, error) {
	table, err := schema.Table0()
	if err != nil {
		return nil, err
	}
	fields := make([]fieldSchema, len(table.Columns))
	for i, col := range table.Columns {
		f, err := dataTypeToField(col.Name, col.DataType, col.IsNullable)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	return jsonpool.MarshalIndent(fields, "", "  ")
}

func dataTypeToField(name string, dt dbctypes.DataType, isNullable bool) (fieldSchema, error) {
	if arr, ok := dt.(dbctypes.ArrayType); ok {
		elemField, err := dataTypeToField(name, arr.Element, true)
		if err != nil {
			return fieldSchema{}, err
		}
		elemField.Mode = "REPEATED"
		return elemField, nil
	}

	mode := "NULLABLE"
	if !isNullable {
		mode = "REQUIRED"
	}

	if st, ok := dt.(dbctypes.StructType); ok {
		subFields := make([]fieldSchema, len(st.Fields))
		for i, f := range st.Fields {
			sf, err := dataTypeToField(f.Name, f.DataType, f.IsNullable)
			if err != nil {
				return fieldSchema{}, err
			}
			subFields[i] = sf
		}
		return fieldSchema{Name: name, Type: "RECORD", Mode: mode, Fields: subFields}, nil
	}

	bqType, err := scalarBQType(dt)
	if err != nil {
		return fieldSchema{}, err
	}
	return fieldSchema{Name: name, Type: bqType, Mode: mode}, nil
}

func scalarBQType(dt dbctypes.DataType) (string, error) {
	switch dt.Kind() {
	case dbctypes.KindInt16, dbctypes.KindInt32, dbctypes.KindInt64:
		return "INT64", nil
	case dbctypes.KindFloat32, dbctypes.KindFloat64:
		return "FLOAT64", nil
	case dbctypes.KindDecimal:
		return "NUMERIC", nil
	case dbctypes.KindText, dbctypes.KindUUID, dbctypes.KindJSON, dbctypes.KindOneOf, dbctypes.KindNamed:
		return "STRING", nil
	case dbctypes.KindBool:
		return "BOOL", nil
	case dbctypes.KindDate:
		return "DATE", nil
	case dbctypes.KindTimestampWithoutTimeZone:
		return "DATETIME", nil
	case dbctypes.KindTimestampWithTimeZone:
		return "TIMESTAMP", nil
	case dbctypes.KindGeoJSON:
		return "GEOGRAPHY", nil
	default:
		return "", dbcerrors.Newf(dbcerrors.KindUnsupportedType, "no BigQuery mapping for %s", dt.String())
	}
}
