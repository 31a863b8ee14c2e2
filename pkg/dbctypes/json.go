package dbctypes

import (
	"encoding/json"
	"fmt"

	jsonpool "github.com/dbcrossbar/dbcrossbar/pkg/json"
)

// externalStructField mirrors the wire shape of a Struct field in the
// native JSON schema format.
type externalStructField struct {
	Name       string          `json:"name"`
	IsNullable bool            `json:"is_nullable"`
	DataType   externalDataType `json:"data_type"`
}

// externalDataType is the wire representation of a DataType: either a
// bare string for scalar kinds, or a single-key object for the
// parameterized kinds (array, struct, geo_json, one_of, named).
type externalDataType struct {
	scalar string

	array  *externalDataType
	fields []externalStructField
	geo    *uint32
	oneOf  []string
	named  *string
}

// EncodeDataType converts a DataType to its native JSON representation.
func EncodeDataType(dt DataType) ([]byte, error) {
	ext, err := toExternal(dt)
	if err != nil {
		return nil, err
	}
	return ext.MarshalJSON()
}

// DecodeDataType parses a native JSON representation back into a
// DataType.
func DecodeDataType(data []byte) (DataType, error) {
	var ext externalDataType
	if err := ext.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return ext.toDataType()
}

func toExternal(dt DataType) (externalDataType, error) {
	switch v := dt.(type) {
	case scalar:
		return externalDataType{scalar: string(v.kind)}, nil
	case GeoJSONType:
		srid := v.SRID
		return externalDataType{geo: &srid}, nil
	case ArrayType:
		elem, err := toExternal(v.Element)
		if err != nil {
			return externalDataType{}, err
		}
		return externalDataType{array: &elem}, nil
	case StructType:
		fields := make([]externalStructField, len(v.Fields))
		for i, f := range v.Fields {
			fdt, err := toExternal(f.DataType)
			if err != nil {
				return externalDataType{}, err
			}
			fields[i] = externalStructField{Name: f.Name, IsNullable: f.IsNullable, DataType: fdt}
		}
		return externalDataType{fields: fields}, nil
	case OneOfType:
		return externalDataType{oneOf: append([]string(nil), v.Values...)}, nil
	case NamedType:
		name := v.Name
		return externalDataType{named: &name}, nil
	default:
		return externalDataType{}, fmt.Errorf("dbctypes: unknown DataType implementation %T", dt)
	}
}

func (e externalDataType) toDataType() (DataType, error) {
	switch {
	case e.scalar != "":
		return scalarFromString(e.scalar)
	case e.geo != nil:
		return NewGeoJSON(*e.geo), nil
	case e.array != nil:
		elem, err := e.array.toDataType()
		if err != nil {
			return nil, err
		}
		return NewArray(elem), nil
	case e.fields != nil:
		fields := make([]StructField, len(e.fields))
		for i, f := range e.fields {
			fdt, err := f.DataType.toDataType()
			if err != nil {
				return nil, err
			}
			fields[i] = StructField{Name: f.Name, IsNullable: f.IsNullable, DataType: fdt}
		}
		return NewStruct(fields)
	case e.oneOf != nil:
		return NewOneOf(e.oneOf)
	case e.named != nil:
		return NewNamed(*e.named), nil
	default:
		return nil, fmt.Errorf("dbctypes: empty data type")
	}
}

func scalarFromString(s string) (DataType, error) {
	switch Kind(s) {
	case KindBool:
		return Bool, nil
	case KindDate:
		return Date, nil
	case KindDecimal:
		return Decimal, nil
	case KindFloat32:
		return Float32, nil
	case KindFloat64:
		return Float64, nil
	case KindInt16:
		return Int16, nil
	case KindInt32:
		return Int32, nil
	case KindInt64:
		return Int64, nil
	case KindJSON:
		return JSON, nil
	case KindText:
		return Text, nil
	case KindTimestampWithoutTimeZone:
		return TimestampWithoutTimeZone, nil
	case KindTimestampWithTimeZone:
		return TimestampWithTimeZone, nil
	case KindUUID:
		return UUID, nil
	default:
		return nil, fmt.Errorf("dbctypes: unknown scalar data type %q", s)
	}
}

// MarshalJSON implements json.Marshaler for externalDataType, choosing
// between a bare string and a single-key object depending on which
// field is populated.
func (e externalDataType) MarshalJSON() ([]byte, error) {
	switch {
	case e.scalar != "":
		return jsonpool.Marshal(e.scalar)
	case e.geo != nil:
		return jsonpool.Marshal(map[string]uint32{"geo_json": *e.geo})
	case e.array != nil:
		return jsonpool.Marshal(map[string]*externalDataType{"array": e.array})
	case e.fields != nil:
		return jsonpool.Marshal(map[string][]externalStructField{"struct": e.fields})
	case e.oneOf != nil:
		return jsonpool.Marshal(map[string][]string{"one_of": e.oneOf})
	case e.named != nil:
		return jsonpool.Marshal(map[string]string{"named": *e.named})
	default:
		return nil, fmt.Errorf("dbctypes: cannot marshal empty external data type")
	}
}

// UnmarshalJSON implements json.Unmarshaler for externalDataType.
func (e *externalDataType) UnmarshalJSON(data []byte) error {
	var asString string
	if err := jsonpool.Unmarshal(data, &asString); err == nil {
		e.scalar = asString
		return nil
	}

	var asObject map[string]json.RawMessage
	if err := jsonpool.Unmarshal(data, &asObject); err != nil {
		return fmt.Errorf("dbctypes: data type must be a string or single-key object: %w", err)
	}
	if len(asObject) != 1 {
		return fmt.Errorf("dbctypes: data type object must have exactly one key, got %d", len(asObject))
	}

	for key, raw := range asObject {
		switch key {
		case "array":
			var inner externalDataType
			if err := jsonpool.Unmarshal(raw, &inner); err != nil {
				return err
			}
			e.array = &inner
		case "struct":
			var fields []externalStructField
			if err := jsonpool.Unmarshal(raw, &fields); err != nil {
				return err
			}
			e.fields = fields
		case "geo_json":
			var srid uint32
			if err := jsonpool.Unmarshal(raw, &srid); err != nil {
				return err
			}
			e.geo = &srid
		case "one_of":
			var values []string
			if err := jsonpool.Unmarshal(raw, &values); err != nil {
				return err
			}
			e.oneOf = values
		case "named":
			var name string
			if err := jsonpool.Unmarshal(raw, &name); err != nil {
				return err
			}
			e.named = &name
		default:
			return fmt.Errorf("dbctypes: unknown data type discriminator %q", key)
		}
	}
	return nil
}

// UnmarshalJSON for externalStructField delegates to the embedded
// externalDataType logic via the struct tag machinery; declared here
// only so DataType parses correctly when nested inside a struct field.
func (f *externalStructField) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name       string          `json:"name"`
		IsNullable bool            `json:"is_nullable"`
		DataType   json.RawMessage `json:"data_type"`
	}
	if err := jsonpool.Unmarshal(data, &raw); err != nil {
		return err
	}
	var dt externalDataType
	if err := dt.UnmarshalJSON(raw.DataType); err != nil {
		return err
	}
	f.Name = raw.Name
	f.IsNullable = raw.IsNullable
	f.DataType = dt
	return nil
}

// MarshalJSON for externalStructField mirrors the wire shape.
func (f externalStructField) MarshalJSON() ([]byte, error) {
	dtBytes, err := f.DataType.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return jsonpool.Marshal(map[string]interface{}{
		"name":        f.Name,
		"is_nullable": f.IsNullable,
		"data_type":   json.RawMessage(dtBytes),
	})
}
