// Package json is the JSON codec dbcrossbar's schema codecs, composite
// CSV cell encoding, and the BigQuery wire schema all marshal through,
// backed by github.com/goccy/go-json for faster encode/decode than
// encoding/json on the schema- and cell-sized documents they handle.
package json

import (
	gojson "github.com/goccy/go-json"
)

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}
