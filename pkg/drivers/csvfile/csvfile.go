// Package csvfile implements the local-filesystem driver for the
// "csv:" and "file:" locator schemes: a single CSV file (or "-" for
// stdin/stdout) whose bytes are passed through as-is in the CSV
// interchange dialect (rows are not decoded or re-encoded), with schema
// introspection falling back to pkg/schemacodec/csvsniff when no
// --schema was given, adapted from a channel-based
// core.Source/core.Destination pair of local CSV connectors to the
// single driver.Driver interface.
package csvfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/csvsniff"
)

// Locator is the parsed handle for a "csv:" or "file:" scheme:
// either a path on the local filesystem, or "-" meaning stdin (as a
// source) or stdout (as a destination).
type Locator struct {
	Path   string
	Stdio  bool
	Scheme string
}

// ParseCSV is registered against the "csv:" scheme.
func ParseCSV(l locator.Locator) (interface{}, error) {
	return parse(l, "csv")
}

// ParseFile is registered against the "file:" scheme; identical body
// grammar to "csv:", kept as a distinct scheme name so a locator's
// text records the caller's intent.
func ParseFile(l locator.Locator) (interface{}, error) {
	return parse(l, "file")
}

func parse(l locator.Locator, scheme string) (interface{}, error) {
	if l.Body == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "csv/file locator has an empty path")
	}
	if l.Body == "-" {
		return Locator{Stdio: true, Scheme: scheme}, nil
	}
	return Locator{Path: l.Body, Scheme: scheme}, nil
}

func init() {
	locator.Register("csv", ParseCSV)
	locator.Register("file", ParseFile)
}

// Driver implements driver.Driver over a single local CSV file.
type Driver struct {
	loc Locator
}

// New builds a Driver for the given parsed locator.
func New(loc Locator) *Driver { return &Driver{loc: loc} }

func (d *Driver) tableName() string {
	if d.loc.Stdio {
		return "stdin"
	}
	base := filepath.Base(d.loc.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Features declares this driver's capabilities: it can read and
// write data and introspect a schema by sniffing the header row, but
// it has no server-side upsert or count.
func (d *Driver) Features() driver.FeatureSet {
	return driver.FeatureSet{
		ReadSchema:        true,
		WriteSchema:       false,
		ReadData:          true,
		WriteData:         true,
		IfExistsError:     true,
		IfExistsAppend:    true,
		IfExistsOverwrite: true,
	}
}

// Schema introspects the CSV file's header row and returns an
// all-Text schema via csvsniff. ok is false if the file doesn't
// exist yet (a fresh destination) or reading from stdin, since stdin
// can't be introspected without consuming it.
func (d *Driver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	if d.loc.Stdio {
		return nil, false, nil
	}
	f, err := os.Open(d.loc.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, dbcerrors.Wrapf(err, dbcerrors.KindIO, "opening %q", d.loc.Path)
	}
	defer f.Close()

	header, err := readHeaderLine(f)
	if err != nil {
		return nil, false, dbcerrors.Wrapf(err, dbcerrors.KindParse, "reading header of %q", d.loc.Path)
	}
	schema, err := csvsniff.Sniff(d.tableName(), header)
	if err != nil {
		return nil, false, err
	}
	return schema, true, nil
}

// readHeaderLine reads and comma-splits the first line, treating the
// header as a bare CSV record (no embedded commas or quotes are
// expected in a header row).
func readHeaderLine(r io.Reader) ([]string, error) {
	buf := make([]byte, 0, 256)
	one := make([]byte, 1)
	for {
		n, err := r.Read(one)
		if n > 0 {
			if one[0] == '\n' {
				break
			}
			buf = append(buf, one[0])
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}
	line := strings.TrimSuffix(string(buf), "\r")
	if line == "" {
		return nil, fmt.Errorf("empty file")
	}
	return strings.Split(line, ","), nil
}

// LocalData opens the file (or stdin) as a dataset stream. With no
// --stream-size hint it's a single stream handed straight through, so
// "csv:-" -> "csv:-" is byte-exact: the driver never re-encodes bytes
// it already has in the wire dialect. When StreamSizeHint is set, the
// file is re-chunked at CSV record boundaries via
// SplitAtRecordBoundaries so a destination that honors multiple inner
// streams actually sees --stream-size take effect.
func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	var rc io.ReadCloser
	name := d.tableName()
	if d.loc.Stdio {
		rc = io.NopCloser(os.Stdin)
	} else {
		f, err := os.Open(d.loc.Path)
		if err != nil {
			return nil, false, dbcerrors.Wrapf(err, dbcerrors.KindIO, "opening %q", d.loc.Path)
		}
		rc = f
	}

	if args.StreamSizeHint > 0 {
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, false, dbcerrors.Wrapf(err, dbcerrors.KindIO, "reading %q for splitting", d.loc.Path)
		}
		stream, err := dbcstream.SplitAtRecordBoundaries(bytes.NewReader(data), args.StreamSizeHint, name+"-part")
		if err != nil {
			return nil, false, err
		}
		return stream, true, nil
	}

	stream := dbcstream.SliceDatasetStream([]dbcstream.OutputStream{{Name: name, Bytes: rc}})
	return stream, true, nil
}

// WriteLocalData drains input's CSV streams (a single stream, or
// several if the source split on --stream-size) to the file (or
// stdout) via dbcstream.Concatenate, applying IfExists for on-disk
// destinations. Because both ends of the CSV plane already share the
// wire dialect, this is a byte-for-byte copy: no decode/re-encode
// round trip, and every stream after the first has its repeated
// header dropped so the result is one well-formed file.
func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	w, closeFn, err := d.openForWrite(args.IfExists.Kind)
	if err != nil {
		return driver.WriteResult{}, err
	}
	defer closeFn()

	counter := &lineCountingWriter{w: w}
	if err := dbcstream.Concatenate(ctx, input, counter); err != nil {
		return driver.WriteResult{}, dbcerrors.Wrap(err, dbcerrors.KindIO, "writing csv output")
	}
	rows := counter.lines
	if rows > 0 {
		rows-- // the one retained header line isn't a data row
	}
	return driver.WriteResult{RowsWritten: rows}, nil
}

// lineCountingWriter counts newlines as they pass through, so
// WriteLocalData can report a row count without buffering the
// concatenated output a second time.
type lineCountingWriter struct {
	w     io.Writer
	lines int64
}

func (c *lineCountingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.lines += int64(bytes.Count(p[:n], []byte{'\n'}))
	return n, err
}

func (d *Driver) openForWrite(kind driver.IfExistsKind) (io.Writer, func(), error) {
	if d.loc.Stdio {
		return os.Stdout, func() {}, nil
	}

	flags := os.O_WRONLY | os.O_CREATE
	switch kind {
	case driver.IfExistsError:
		if _, err := os.Stat(d.loc.Path); err == nil {
			return nil, nil, dbcerrors.Newf(dbcerrors.KindAlreadyExists, "%q already exists", d.loc.Path)
		}
		flags |= os.O_EXCL
	case driver.IfExistsOverwrite:
		flags |= os.O_TRUNC
	case driver.IfExistsAppend:
		flags |= os.O_APPEND
	default:
		return nil, nil, dbcerrors.Newf(dbcerrors.KindUnsupportedFeature, "csv destination does not support if-exists policy %v", kind)
	}

	f, err := os.OpenFile(d.loc.Path, flags, 0o644)
	if err != nil {
		return nil, nil, dbcerrors.Wrapf(err, dbcerrors.KindIO, "opening %q for write", d.loc.Path)
	}
	return f, func() { f.Close() }, nil
}

// SupportsWriteRemoteData is always false: a local file is never a
// shortcut destination, since there's no remote API to hand a source
// driver a direct pull from.
func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool { return false }

// WriteRemoteData is never called since SupportsWriteRemoteData
// always returns false.
func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "csv driver does not support remote writes")
}

// Count is unsupported: a local file has no cheap way to count rows
// without reading the whole thing, which the generic copy path
// already does.
func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	return 0, false, nil
}
