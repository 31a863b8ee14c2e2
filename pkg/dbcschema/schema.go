// Package dbcschema defines the portable Schema container: named
// types plus the table(s) they describe, immutable after
// construction, produced by a schema codec or by driver introspection
// and consumed by destination drivers and the CSV codec.
package dbcschema

import (
	"fmt"
	"strings"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
)

// Column is one column of a Table.
type Column struct {
	Name       string
	IsNullable bool
	DataType   dbctypes.DataType
	Comment    string
}

// Table is a named, ordered list of columns.
type Table struct {
	Name    string
	Columns []Column
}

// NamedDataType associates a name with a DataType, for the schema's
// named-type table (the Named case).
type NamedDataType struct {
	Name     string
	DataType dbctypes.DataType
}

// Schema is the portable, immutable container for a copy's table
// definition and any named types it references. The core currently
// requires exactly one table; Tables is kept as a slice
// so the invariant is enforced rather than baked into the type.
type Schema struct {
	NamedDataTypes map[string]dbctypes.DataType
	Tables         []Table
}

// New constructs and validates a Schema from a single table and an
// optional set of named types.
func New(table Table, namedTypes []NamedDataType) (*Schema, error) {
	named := make(map[string]dbctypes.DataType, len(namedTypes))
	for _, nt := range namedTypes {
		if _, dup := named[nt.Name]; dup {
			return nil, fmt.Errorf("dbcschema: duplicate named data type %q", nt.Name)
		}
		named[nt.Name] = nt.DataType
	}
	s := &Schema{NamedDataTypes: named, Tables: []Table{table}}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Table0 returns the schema's single table. The core requires exactly
// one table; callers that construct a Schema through New or a codec
// can rely on this always succeeding.
func (s *Schema) Table0() (*Table, error) {
	if len(s.Tables) != 1 {
		return nil, fmt.Errorf("dbcschema: schema must have exactly one table, found %d", len(s.Tables))
	}
	return &s.Tables[0], nil
}

// Resolve follows a Named reference to its underlying DataType,
// erroring if the name isn't declared. It does not recurse through
// nested Named references inside the result; a resolved Struct or
// Array field may itself still contain a Named reference.
func (s *Schema) Resolve(name string) (dbctypes.DataType, error) {
	dt, ok := s.NamedDataTypes[name]
	if !ok {
		return nil, fmt.Errorf("dbcschema: named data type %q is not defined in this schema", name)
	}
	return dt, nil
}

// Validate checks structural invariants: exactly one table, unique
// (case-sensitive) column names, and that every Named reference
// resolves to a declared type without cycles.
func (s *Schema) Validate() error {
	if len(s.Tables) != 1 {
		return fmt.Errorf("dbcschema: schema must declare exactly one table, found %d", len(s.Tables))
	}
	table := s.Tables[0]
	seen := make(map[string]struct{}, len(table.Columns))
	for _, col := range table.Columns {
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("dbcschema: duplicate column name %q in table %q", col.Name, table.Name)
		}
		seen[col.Name] = struct{}{}
		if err := s.validateReferences(col.DataType, map[string]bool{}); err != nil {
			return fmt.Errorf("dbcschema: column %q: %w", col.Name, err)
		}
	}
	for name, dt := range s.NamedDataTypes {
		if err := s.validateReferences(dt, map[string]bool{name: true}); err != nil {
			return fmt.Errorf("dbcschema: named type %q: %w", name, err)
		}
	}
	return nil
}

func (s *Schema) validateReferences(dt dbctypes.DataType, visiting map[string]bool) error {
	switch v := dt.(type) {
	case dbctypes.NamedType:
		target, ok := s.NamedDataTypes[v.Name]
		if !ok {
			return fmt.Errorf("named type %q is not declared", v.Name)
		}
		if visiting[v.Name] {
			return fmt.Errorf("named type %q participates in a cycle", v.Name)
		}
		visiting[v.Name] = true
		err := s.validateReferences(target, visiting)
		delete(visiting, v.Name)
		return err
	case dbctypes.ArrayType:
		return s.validateReferences(v.Element, visiting)
	case dbctypes.StructType:
		for _, f := range v.Fields {
			if err := s.validateReferences(f.DataType, visiting); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// CaseFold controls how column-name collisions are detected for a
// given destination dialect (BigQuery folds case,
// everything else is case-sensitive).
type CaseFold int

const (
	CaseSensitive CaseFold = iota
	CaseInsensitive
)

// CheckColumnCollisions reports a SchemaMismatch-shaped error if two
// columns collide under the destination's folding rule. Case-sensitive
// collisions are already rejected by Validate; this additionally
// catches identically-cased-after-folding names for CaseInsensitive
// destinations, applying the same rule symmetrically to the source
// side.
func CheckColumnCollisions(table *Table, fold CaseFold) error {
	if fold == CaseSensitive {
		return nil
	}
	seen := make(map[string]string, len(table.Columns))
	for _, col := range table.Columns {
		key := strings.ToLower(col.Name)
		if prior, dup := seen[key]; dup {
			return fmt.Errorf("dbcschema: columns %q and %q collide under case-insensitive folding", prior, col.Name)
		}
		seen[key] = col.Name
	}
	return nil
}
