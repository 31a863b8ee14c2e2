// Package jsonschema implements dbcrossbar's reference schema codec:
// dbcrossbar's native JSON schema format. It is bijective with
// dbcschema.Schema.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	jsonpool "github.com/dbcrossbar/dbcrossbar/pkg/json"
)

type wireSchema struct {
	NamedDataTypes []wireNamedType `json:"named_data_types"`
	Tables         []wireTable     `json:"tables"`
}

type wireNamedType struct {
	Name     string          `json:"name"`
	DataType json.RawMessage `json:"data_type"`
}

type wireTable struct {
	Name    string        `json:"name"`
	Columns []wireColumn  `json:"columns"`
}

type wireColumn struct {
	Name       string          `json:"name"`
	IsNullable bool            `json:"is_nullable"`
	DataType   json.RawMessage `json:"data_type"`
	Comment    string          `json:"comment,omitempty"`
}

// Parse decodes the native JSON schema format into a Schema.
func Parse(data []byte) (*dbcschema.Schema, error) {
	var wire wireSchema
	if err := jsonpool.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("jsonschema: %w", err)
	}
	if len(wire.Tables) != 1 {
		return nil, fmt.Errorf("jsonschema: expected exactly one table, found %d", len(wire.Tables))
	}

	named := make([]dbcschema.NamedDataType, len(wire.NamedDataTypes))
	for i, nt := range wire.NamedDataTypes {
		dt, err := dbctypes.DecodeDataType(nt.DataType)
		if err != nil {
			return nil, fmt.Errorf("jsonschema: named type %q: %w", nt.Name, err)
		}
		named[i] = dbcschema.NamedDataType{Name: nt.Name, DataType: dt}
	}

	wt := wire.Tables[0]
	columns := make([]dbcschema.Column, len(wt.Columns))
	for i, wc := range wt.Columns {
		dt, err := dbctypes.DecodeDataType(wc.DataType)
		if err != nil {
			return nil, fmt.Errorf("jsonschema: column %q: %w", wc.Name, err)
		}
		columns[i] = dbcschema.Column{
			Name:       wc.Name,
			IsNullable: wc.IsNullable,
			DataType:   dt,
			Comment:    wc.Comment,
		}
	}

	return dbcschema.New(dbcschema.Table{Name: wt.Name, Columns: columns}, named)
}

// Render encodes a Schema into the native JSON schema format.
func Render(schema *dbcschema.Schema) ([]byte, error) {
	table, err := schema.Table0()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(schema.NamedDataTypes))
	for name := range schema.NamedDataTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	named := make([]wireNamedType, 0, len(names))
	for _, name := range names {
		dtBytes, err := dbctypes.EncodeDataType(schema.NamedDataTypes[name])
		if err != nil {
			return nil, err
		}
		named = append(named, wireNamedType{Name: name, DataType: dtBytes})
	}

	columns := make([]wireColumn, len(table.Columns))
	for i, col := range table.Columns {
		dtBytes, err := dbctypes.EncodeDataType(col.DataType)
		if err != nil {
			return nil, err
		}
		columns[i] = wireColumn{
			Name:       col.Name,
			IsNullable: col.IsNullable,
			DataType:   dtBytes,
			Comment:    col.Comment,
		}
	}

	wire := wireSchema{
		NamedDataTypes: named,
		Tables:         []wireTable{{Name: table.Name, Columns: columns}},
	}
	return jsonpool.MarshalIndent(wire, "", "  ")
}
