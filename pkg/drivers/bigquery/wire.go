package bigquery

import (
	gbq "cloud.google.com/go/bigquery"
	jsonpool "github.com/dbcrossbar/dbcrossbar/pkg/json"
)

// wireField mirrors the shape pkg/schemacodec/bigquery.Parse/Render
// expects: {name, type, mode, fields}, the same shape BigQuery's own
// REST API publishes for a table's schema.
type wireField struct {
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Mode   string      `json:"mode,omitempty"`
	Fields []wireField `json:"fields,omitempty"`
}

// schemaFieldsToWire converts a live gbq.Schema into the JSON bytes
// pkg/schemacodec/bigquery.Parse consumes, so this driver has exactly
// one place (that package) that knows the BigQuery<->portable type
// mapping.
func schemaFieldsToWire(schema gbq.Schema) ([]byte, error) {
	fields := make([]wireField, len(schema))
	for i, f := range schema {
		fields[i] = fieldSchemaToWire(f)
	}
	return jsonpool.Marshal(fields)
}

func fieldSchemaToWire(f *gbq.FieldSchema) wireField {
	mode := "NULLABLE"
	if f.Repeated {
		mode = "REPEATED"
	} else if f.Required {
		mode = "REQUIRED"
	}
	w := wireField{Name: f.Name, Type: string(f.Type), Mode: mode}
	for _, nested := range f.Schema {
		w.Fields = append(w.Fields, fieldSchemaToWire(nested))
	}
	return w
}

// wireToGBQSchema converts the JSON bytes produced by
// pkg/schemacodec/bigquery.Render back into a live gbq.Schema for a
// load job.
func wireToGBQSchema(data []byte) (gbq.Schema, error) {
	var fields []wireField
	if err := jsonpool.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	schema := make(gbq.Schema, len(fields))
	for i, f := range fields {
		schema[i] = wireToFieldSchema(f)
	}
	return schema, nil
}

func wireToFieldSchema(w wireField) *gbq.FieldSchema {
	f := &gbq.FieldSchema{Name: w.Name, Type: gbq.FieldType(w.Type)}
	switch w.Mode {
	case "REPEATED":
		f.Repeated = true
	case "REQUIRED":
		f.Required = true
	}
	for _, nested := range w.Fields {
		f.Schema = append(f.Schema, wireToFieldSchema(nested))
	}
	return f
}
