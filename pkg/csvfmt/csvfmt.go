// Package csvfmt implements the byte-exact CSV interchange dialect:
// the wire format every driver must produce and consume so that two
// drivers copying the same data through the CSV plane emit identical
// bytes for every "exactly representable" type.
//
// The dialect needs one thing encoding/csv cannot give us: an empty
// field (NULL) and a quoted empty field ("", the empty string) must
// round-trip as distinct values, but encoding/csv's reader collapses
// both to "" and its writer never quotes an empty field. So this
// package hand-rolls a small RFC 4180 reader/writer that tracks
// quoting explicitly instead of wrapping encoding/csv.
package csvfmt

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	jsonpool "github.com/dbcrossbar/dbcrossbar/pkg/json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const needsQuoting = ",\"\r\n"

// quoteField renders field as an RFC 4180 field: quoted (with internal
// quotes doubled) if forceQuote is set or it contains a comma, quote,
// or newline; otherwise written bare.
func quoteField(field string, forceQuote bool) string {
	if !forceQuote && !strings.ContainsAny(field, needsQuoting) {
		return field
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range field {
		if r == '"' {
			b.WriteByte('"')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// Writer encodes rows against a fixed column schema into the CSV
// interchange dialect: comma-separated, LF-terminated, RFC 4180
// quoting, header row first.
type Writer struct {
	table *dbcschema.Table
	w     io.Writer
	wrote bool
	err   error
}

// NewWriter creates a Writer that emits a header row (in schema
// column order) on the first call to WriteRow.
func NewWriter(w io.Writer, table *dbcschema.Table) *Writer {
	return &Writer{table: table, w: w}
}

// WriteHeader writes the header row immediately, if it hasn't been
// written yet.
func (w *Writer) WriteHeader() error {
	if w.wrote {
		return nil
	}
	names := make([]string, len(w.table.Columns))
	for i, c := range w.table.Columns {
		names[i] = quoteField(c.Name, false)
	}
	if err := w.writeLine(names); err != nil {
		return fmt.Errorf("csvfmt: writing header: %w", err)
	}
	w.wrote = true
	return nil
}

// ResetHeader forces the next WriteRow call to emit a fresh header,
// used when the stream plane splits a logical stream into several
// inner CSV streams: headers are repeated on each split.
func (w *Writer) ResetHeader() { w.wrote = false }

// WriteRow encodes one row of values (in schema column order, one
// value per column) as CSV text, writing the header first if needed.
func (w *Writer) WriteRow(values []interface{}) error {
	if !w.wrote {
		if err := w.WriteHeader(); err != nil {
			return err
		}
	}
	if len(values) != len(w.table.Columns) {
		return fmt.Errorf("csvfmt: row has %d values, schema has %d columns", len(values), len(w.table.Columns))
	}
	fields := make([]string, len(values))
	for i, v := range values {
		field, forceQuote, err := EncodeCell(w.table.Columns[i].DataType, v)
		if err != nil {
			return fmt.Errorf("csvfmt: column %q: %w", w.table.Columns[i].Name, err)
		}
		fields[i] = quoteField(field, forceQuote)
	}
	if err := w.writeLine(fields); err != nil {
		return fmt.Errorf("csvfmt: writing row: %w", err)
	}
	return nil
}

func (w *Writer) writeLine(fields []string) error {
	if w.err != nil {
		return w.err
	}
	_, err := io.WriteString(w.w, strings.Join(fields, ",")+"\n")
	if err != nil {
		w.err = err
	}
	return err
}

// Flush is a no-op retained for symmetry with buffered writers; Writer
// writes through immediately and records the first write error.
func (w *Writer) Flush() error { return w.err }

// EncodeCell renders one value of the given portable type as CSV
// field text (before quoting) along with whether the field must be
// force-quoted even if it needs no escaping, which is how the empty
// string is distinguished from NULL (nil value, unquoted empty field).
func EncodeCell(dt dbctypes.DataType, value interface{}) (field string, forceQuote bool, err error) {
	if value == nil {
		return "", false, nil
	}

	switch dt.Kind() {
	case dbctypes.KindBool:
		b, ok := value.(bool)
		if !ok {
			return "", false, fmt.Errorf("expected bool, got %T", value)
		}
		if b {
			return "t", false, nil
		}
		return "f", false, nil
	case dbctypes.KindDate:
		t, ok := value.(time.Time)
		if !ok {
			return "", false, fmt.Errorf("expected time.Time for date, got %T", value)
		}
		return t.Format("2006-01-02"), false, nil
	case dbctypes.KindTimestampWithoutTimeZone:
		t, ok := value.(time.Time)
		if !ok {
			return "", false, fmt.Errorf("expected time.Time for timestamp, got %T", value)
		}
		return formatTimestamp(t, false), false, nil
	case dbctypes.KindTimestampWithTimeZone:
		t, ok := value.(time.Time)
		if !ok {
			return "", false, fmt.Errorf("expected time.Time for timestamptz, got %T", value)
		}
		return formatTimestamp(t, true), false, nil
	case dbctypes.KindUUID:
		switch u := value.(type) {
		case uuid.UUID:
			return strings.ToLower(u.String()), false, nil
		case string:
			parsed, perr := uuid.Parse(u)
			if perr != nil {
				return "", false, fmt.Errorf("invalid uuid %q: %w", u, perr)
			}
			return strings.ToLower(parsed.String()), false, nil
		default:
			return "", false, fmt.Errorf("expected uuid, got %T", value)
		}
	case dbctypes.KindDecimal:
		switch d := value.(type) {
		case decimal.Decimal:
			return d.String(), false, nil
		case string:
			return d, false, nil
		default:
			return "", false, fmt.Errorf("expected decimal, got %T", value)
		}
	case dbctypes.KindFloat32:
		f, ferr := asFloat(value)
		if ferr != nil {
			return "", false, ferr
		}
		return formatFloat(f, 32), false, nil
	case dbctypes.KindFloat64:
		f, ferr := asFloat(value)
		if ferr != nil {
			return "", false, ferr
		}
		return formatFloat(f, 64), false, nil
	case dbctypes.KindInt16, dbctypes.KindInt32, dbctypes.KindInt64:
		i, ierr := asInt(value)
		if ierr != nil {
			return "", false, ierr
		}
		return strconv.FormatInt(i, 10), false, nil
	case dbctypes.KindText:
		s, ok := value.(string)
		if !ok {
			return "", false, fmt.Errorf("expected string, got %T", value)
		}
		return s, s == "", nil
	case dbctypes.KindOneOf:
		oneOf := dt.(dbctypes.OneOfType)
		s, ok := value.(string)
		if !ok {
			return "", false, fmt.Errorf("expected string for one_of, got %T", value)
		}
		if !oneOf.Allows(s) {
			return "", false, fmt.Errorf("value %q is not one of the allowed values %v", s, oneOf.Values)
		}
		return s, s == "", nil
	case dbctypes.KindJSON, dbctypes.KindGeoJSON, dbctypes.KindArray, dbctypes.KindStruct, dbctypes.KindNamed:
		data, jerr := jsonpool.Marshal(value)
		if jerr != nil {
			return "", false, fmt.Errorf("encoding json: %w", jerr)
		}
		return string(data), true, nil
	default:
		return "", false, fmt.Errorf("csvfmt: unsupported data type %s", dt.String())
	}
}

func formatTimestamp(t time.Time, withZone bool) string {
	base := t.Format("2006-01-02T15:04:05")
	if ns := t.Nanosecond(); ns != 0 {
		micros := ns / 1000
		frac := fmt.Sprintf(".%06d", micros)
		frac = strings.TrimRight(frac, "0")
		if frac != "." {
			base += frac
		}
	}
	if withZone {
		_, offset := t.Zone()
		if offset == 0 {
			base += "Z"
		} else {
			sign := "+"
			if offset < 0 {
				sign = "-"
				offset = -offset
			}
			base += fmt.Sprintf("%s%02d:%02d", sign, offset/3600, (offset%3600)/60)
		}
	}
	return base
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
}

func asFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("expected float, got %T", value)
	}
}

func asInt(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

// Reader decodes CSV interchange rows back into typed values for a
// fixed column schema, distinguishing NULL (bare empty field) from
// the empty string (quoted empty field "").
type Reader struct {
	table *dbcschema.Table
	br    *bufio.Reader
}

// NewReader builds a Reader over CSV interchange bytes for table,
// consuming and validating the header row immediately.
func NewReader(r io.Reader, table *dbcschema.Table) (*Reader, error) {
	br := bufio.NewReader(r)
	header, _, err := readRecord(br)
	if err != nil {
		return nil, fmt.Errorf("csvfmt: reading header: %w", err)
	}
	if len(header) != len(table.Columns) {
		return nil, fmt.Errorf("csvfmt: header has %d columns, schema has %d", len(header), len(table.Columns))
	}
	for i, name := range header {
		if name.text != table.Columns[i].Name {
			return nil, fmt.Errorf("csvfmt: header column %d is %q, expected %q", i, name.text, table.Columns[i].Name)
		}
	}
	return &Reader{table: table, br: br}, nil
}

// ReadRow reads the next row, returning io.EOF when the stream is
// exhausted.
func (r *Reader) ReadRow() ([]interface{}, error) {
	fields, _, err := readRecord(r.br)
	if err != nil {
		return nil, err
	}
	if len(fields) != len(r.table.Columns) {
		return nil, fmt.Errorf("csvfmt: row has %d fields, schema has %d columns", len(fields), len(r.table.Columns))
	}
	values := make([]interface{}, len(fields))
	for i, f := range fields {
		v, err := DecodeCell(r.table.Columns[i].DataType, f)
		if err != nil {
			return nil, fmt.Errorf("csvfmt: column %q: %w", r.table.Columns[i].Name, err)
		}
		values[i] = v
	}
	return values, nil
}

// rawField carries both the unescaped text of a field and whether it
// was quoted on the wire, which is exactly the bit DecodeCell needs
// to tell NULL from the empty string.
type rawField struct {
	text   string
	quoted bool
}

// readRecord reads one CSV record (up to an unquoted newline or EOF),
// returning the parsed fields. The second return value reports
// whether the record was terminated by EOF rather than a newline.
func readRecord(br *bufio.Reader) ([]rawField, bool, error) {
	var fields []rawField
	var b strings.Builder
	quoted := false
	inQuotes := false
	sawAny := false

	for {
		r, _, err := br.ReadRune()
		if err != nil {
			if err == io.EOF {
				if !sawAny && b.Len() == 0 && len(fields) == 0 {
					return nil, true, io.EOF
				}
				fields = append(fields, rawField{text: b.String(), quoted: quoted})
				return fields, true, nil
			}
			return nil, false, err
		}
		sawAny = true

		if inQuotes {
			if r == '"' {
				next, _, peekErr := br.ReadRune()
				if peekErr == nil && next == '"' {
					b.WriteByte('"')
					continue
				}
				if peekErr == nil {
					br.UnreadRune()
				}
				inQuotes = false
				continue
			}
			b.WriteRune(r)
			continue
		}

		switch r {
		case '"':
			if b.Len() == 0 {
				quoted = true
			}
			inQuotes = true
		case ',':
			fields = append(fields, rawField{text: b.String(), quoted: quoted})
			b.Reset()
			quoted = false
		case '\n':
			fields = append(fields, rawField{text: b.String(), quoted: quoted})
			return fields, false, nil
		case '\r':
			// dropped; paired '\n' ends the record.
		default:
			b.WriteRune(r)
		}
	}
}

// DecodeCell parses one CSV field back into a typed Go value. A bare
// (unquoted, empty) field decodes to nil (SQL NULL); a quoted empty
// field decodes to the type's empty-string representation.
func DecodeCell(dt dbctypes.DataType, field rawField) (interface{}, error) {
	if field.text == "" && !field.quoted {
		return nil, nil
	}
	switch dt.Kind() {
	case dbctypes.KindBool:
		switch field.text {
		case "t":
			return true, nil
		case "f":
			return false, nil
		default:
			return nil, fmt.Errorf("invalid bool %q", field.text)
		}
	case dbctypes.KindDate:
		return time.Parse("2006-01-02", field.text)
	case dbctypes.KindTimestampWithoutTimeZone:
		return parseTimestamp(field.text, false)
	case dbctypes.KindTimestampWithTimeZone:
		return parseTimestamp(field.text, true)
	case dbctypes.KindUUID:
		return uuid.Parse(field.text)
	case dbctypes.KindDecimal:
		return decimal.NewFromString(field.text)
	case dbctypes.KindFloat32:
		return parseFloat(field.text, 32)
	case dbctypes.KindFloat64:
		return parseFloat(field.text, 64)
	case dbctypes.KindInt16:
		i, err := strconv.ParseInt(field.text, 10, 16)
		return int16(i), err
	case dbctypes.KindInt32:
		i, err := strconv.ParseInt(field.text, 10, 32)
		return int32(i), err
	case dbctypes.KindInt64:
		return strconv.ParseInt(field.text, 10, 64)
	case dbctypes.KindText, dbctypes.KindOneOf:
		return field.text, nil
	case dbctypes.KindJSON, dbctypes.KindGeoJSON, dbctypes.KindArray, dbctypes.KindStruct, dbctypes.KindNamed:
		var v interface{}
		if err := jsonpool.Unmarshal([]byte(field.text), &v); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported data type %s", dt.String())
	}
}

func parseTimestamp(field string, withZone bool) (time.Time, error) {
	layouts := []string{
		"2006-01-02T15:04:05.999999Z07:00",
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
	}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, field); err == nil {
			if withZone {
				return t.UTC(), nil
			}
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", field, lastErr)
}

func parseFloat(field string, bits int) (float64, error) {
	switch field {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	default:
		return strconv.ParseFloat(field, bits)
	}
}
