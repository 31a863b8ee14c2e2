// Package dbctypes defines the portable type algebra shared by every
// schema codec and driver: a closed set of DataType variants that
// stand in for the native type systems of PostgreSQL, BigQuery,
// TypeScript, and the CSV interchange format.
package dbctypes

import (
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// DataType is a tagged variant over the portable type algebra. It is
// implemented as a closed interface: every concrete type in this file
// implements it, and nothing outside the package may add a new case.
// Adding a case here is a breaking change and must be reflected in
// every schema codec under pkg/schemacodec.
type DataType interface {
	// Kind identifies which variant this is, for exhaustive switches
	// that don't want to rely on a type switch alone.
	Kind() Kind
	// String renders a short human-readable form, used in error
	// messages and logs, not in any wire format.
	String() string
	// Equal reports whether two data types are structurally identical.
	Equal(other DataType) bool
	// isDataType is unexported so DataType cannot be implemented
	// outside this package.
	isDataType()
}

// Kind enumerates the DataType cases.
type Kind string

const (
	KindBool                      Kind = "bool"
	KindDate                      Kind = "date"
	KindDecimal                   Kind = "decimal"
	KindFloat32                   Kind = "float32"
	KindFloat64                   Kind = "float64"
	KindGeoJSON                   Kind = "geo_json"
	KindInt16                     Kind = "int16"
	KindInt32                     Kind = "int32"
	KindInt64                     Kind = "int64"
	KindJSON                      Kind = "json"
	KindText                      Kind = "text"
	KindTimestampWithoutTimeZone  Kind = "timestamp_without_time_zone"
	KindTimestampWithTimeZone     Kind = "timestamp_with_time_zone"
	KindUUID                      Kind = "uuid"
	KindArray                     Kind = "array"
	KindStruct                    Kind = "struct"
	KindOneOf                     Kind = "one_of"
	KindNamed                     Kind = "named"
)

// DefaultGeoJSONSRID is the spatial reference used when a source
// doesn't specify one.
const DefaultGeoJSONSRID uint32 = 4326

type scalar struct {
	kind Kind
}

func (s scalar) Kind() Kind          { return s.kind }
func (s scalar) String() string      { return string(s.kind) }
func (scalar) isDataType()           {}
func (s scalar) Equal(o DataType) bool {
	os, ok := o.(scalar)
	return ok && os.kind == s.kind
}

var (
	Bool                     DataType = scalar{KindBool}
	Date                     DataType = scalar{KindDate}
	Decimal                  DataType = scalar{KindDecimal}
	Float32                  DataType = scalar{KindFloat32}
	Float64                  DataType = scalar{KindFloat64}
	Int16                    DataType = scalar{KindInt16}
	Int32                    DataType = scalar{KindInt32}
	Int64                    DataType = scalar{KindInt64}
	JSON                     DataType = scalar{KindJSON}
	Text                     DataType = scalar{KindText}
	TimestampWithoutTimeZone DataType = scalar{KindTimestampWithoutTimeZone}
	TimestampWithTimeZone    DataType = scalar{KindTimestampWithTimeZone}
	UUID                     DataType = scalar{KindUUID}
)

// GeoJSONType is geometry serialized as GeoJSON in a given spatial
// reference system.
type GeoJSONType struct {
	SRID uint32
}

// NewGeoJSON constructs a GeoJSON type. An SRID of zero is normalized
// to DefaultGeoJSONSRID, the default SRID for coordinates with no
// declared reference system.
func NewGeoJSON(srid uint32) GeoJSONType {
	if srid == 0 {
		srid = DefaultGeoJSONSRID
	}
	return GeoJSONType{SRID: srid}
}

func (g GeoJSONType) Kind() Kind     { return KindGeoJSON }
func (g GeoJSONType) String() string { return fmt.Sprintf("geo_json(%d)", g.SRID) }
func (GeoJSONType) isDataType()      {}
func (g GeoJSONType) Equal(o DataType) bool {
	og, ok := o.(GeoJSONType)
	return ok && og.SRID == g.SRID
}

// ArrayType is a homogeneous, possibly-nested array of another
// portable type.
type ArrayType struct {
	Element DataType
}

func NewArray(element DataType) ArrayType { return ArrayType{Element: element} }

func (a ArrayType) Kind() Kind     { return KindArray }
func (a ArrayType) String() string { return fmt.Sprintf("array(%s)", a.Element.String()) }
func (ArrayType) isDataType()      {}
func (a ArrayType) Equal(o DataType) bool {
	oa, ok := o.(ArrayType)
	return ok && a.Element.Equal(oa.Element)
}

// StructField is one field of a Struct type.
type StructField struct {
	Name       string
	IsNullable bool
	DataType   DataType
}

// StructType is an ordered set of uniquely-named fields. A Struct
// with zero fields is illegal and is rejected by NewStruct.
type StructType struct {
	Fields []StructField
}

// NewStruct validates field-name uniqueness and non-emptiness before
// constructing a StructType.
func NewStruct(fields []StructField) (StructType, error) {
	if len(fields) == 0 {
		return StructType{}, fmt.Errorf("dbctypes: struct type must have at least one field")
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return StructType{}, fmt.Errorf("dbctypes: duplicate struct field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return StructType{Fields: append([]StructField(nil), fields...)}, nil
}

func (s StructType) Kind() Kind     { return KindStruct }
func (s StructType) String() string { return fmt.Sprintf("struct(%d fields)", len(s.Fields)) }
func (StructType) isDataType()      {}
func (s StructType) Equal(o DataType) bool {
	os, ok := o.(StructType)
	if !ok || len(os.Fields) != len(s.Fields) {
		return false
	}
	for i, f := range s.Fields {
		of := os.Fields[i]
		if f.Name != of.Name || f.IsNullable != of.IsNullable || !f.DataType.Equal(of.DataType) {
			return false
		}
	}
	return true
}

// OneOfType is a closed enumeration of allowed textual values. Order
// is significant: Equal compares values position by position, as
// exact strings. Duplicate detection (NewOneOf) and Allows compare
// values after NFC normalization.
type OneOfType struct {
	Values []string
}

// NewOneOf validates that values are non-empty and distinct after
// Unicode NFC normalization.
func NewOneOf(values []string) (OneOfType, error) {
	if len(values) == 0 {
		return OneOfType{}, fmt.Errorf("dbctypes: one_of type must list at least one value")
	}
	seen := make(map[string]struct{}, len(values))
	normalized := make([]string, len(values))
	for i, v := range values {
		nv := norm.NFC.String(v)
		normalized[i] = v
		if _, dup := seen[nv]; dup {
			return OneOfType{}, fmt.Errorf("dbctypes: duplicate one_of value %q", v)
		}
		seen[nv] = struct{}{}
	}
	return OneOfType{Values: normalized}, nil
}

func (o OneOfType) Kind() Kind     { return KindOneOf }
func (o OneOfType) String() string { return fmt.Sprintf("one_of(%v)", o.Values) }
func (OneOfType) isDataType()      {}
func (o OneOfType) Equal(other DataType) bool {
	oo, ok := other.(OneOfType)
	if !ok || len(oo.Values) != len(o.Values) {
		return false
	}
	for i, v := range o.Values {
		if oo.Values[i] != v {
			return false
		}
	}
	return true
}

// Allows reports whether value is one of the enumeration's allowed
// values (after NFC normalization, matching NewOneOf's dedup rule).
func (o OneOfType) Allows(value string) bool {
	nv := norm.NFC.String(value)
	for _, v := range o.Values {
		if norm.NFC.String(v) == nv {
			return true
		}
	}
	return false
}

// SortedValues returns a copy of Values sorted for deterministic
// display, independent of declaration order.
func (o OneOfType) SortedValues() []string {
	out := append([]string(nil), o.Values...)
	sort.Strings(out)
	return out
}

// NamedType is a reference to a type declared in the owning Schema's
// named-type table (experimental). Resolution happens
// through dbcschema.Schema.Resolve, not through this type itself,
// keeping DataType free of any dependency on Schema.
type NamedType struct {
	Name string
}

func NewNamed(name string) NamedType { return NamedType{Name: name} }

func (n NamedType) Kind() Kind     { return KindNamed }
func (n NamedType) String() string { return fmt.Sprintf("named(%s)", n.Name) }
func (NamedType) isDataType()      {}
func (n NamedType) Equal(o DataType) bool {
	on, ok := o.(NamedType)
	return ok && on.Name == n.Name
}

// IsComposite reports whether a data type is Array, Struct, or a
// Named reference, cases the CSV codec encodes as embedded JSON
// rather than a scalar text representation.
func IsComposite(dt DataType) bool {
	switch dt.Kind() {
	case KindArray, KindStruct, KindNamed:
		return true
	default:
		return false
	}
}
