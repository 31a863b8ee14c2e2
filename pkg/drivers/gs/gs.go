// Package gs implements the "gs:" locator scheme over
// cloud.google.com/go/storage: a bucket/prefix of CSV interchange
// objects, one object per inner stream, used both as a data
// source/destination in its own right and as the staging area
// BigQuery load/extract jobs read and write. When the `compress=gzip`
// destination argument is set, object writes go through
// pkg/compression's gzip streaming path; otherwise bytes are copied
// as-is.
package gs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dbcrossbar/dbcrossbar/pkg/compression"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/csvsniff"
	"google.golang.org/api/iterator"
)

// Locator is the parsed handle for "gs://bucket/prefix".
type Locator struct {
	Bucket string
	Prefix string
}

// Parse is registered against the "gs:" scheme.
func Parse(l locator.Locator) (interface{}, error) {
	body := strings.TrimPrefix(l.Body, "//")
	parts := strings.SplitN(body, "/", 2)
	if parts[0] == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "gs locator has an empty bucket")
	}
	prefix := ""
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return Locator{Bucket: parts[0], Prefix: prefix}, nil
}

func init() { locator.Register("gs", Parse) }

// Driver implements driver.Driver over a GCS bucket/prefix of CSV
// interchange objects.
type Driver struct {
	loc    Locator
	client *storage.Client
}

// New builds a Driver from a parsed Locator and an already-constructed
// client.
func New(loc Locator, client *storage.Client) *Driver { return &Driver{loc: loc, client: client} }

func (d *Driver) bucket() *storage.BucketHandle { return d.client.Bucket(d.loc.Bucket) }

// Features declares this driver's capabilities: it can act as a
// temporary/staging area as well as a plain data
// source/destination, but has no server-side count or upsert.
func (d *Driver) Features() driver.FeatureSet {
	return driver.FeatureSet{
		ReadSchema:        true,
		ReadData:          true,
		WriteData:         true,
		IfExistsError:     true,
		IfExistsAppend:    true,
		IfExistsOverwrite: true,
		DestArgs:          []string{"compress"},
	}
}

// Schema sniffs a schema from the header row of the first object
// under the prefix.
func (d *Driver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	it := d.bucket().Objects(ctx, &storage.Query{Prefix: d.loc.Prefix})
	attrs, err := it.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, false, nil
		}
		return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "listing objects for schema sniff")
	}
	r, err := d.bucket().Object(attrs.Name).NewReader(ctx)
	if err != nil {
		return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "opening object for schema sniff")
	}
	defer r.Close()
	header, err := readHeaderLine(r)
	if err != nil {
		return nil, false, dbcerrors.Wrap(err, dbcerrors.KindParse, "reading header row")
	}
	schema, err := csvsniff.Sniff(tableNameFromPrefix(d.loc.Prefix), header)
	return schema, err == nil, err
}

func tableNameFromPrefix(prefix string) string {
	trimmed := strings.TrimRight(prefix, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return "data"
	}
	return trimmed
}

func readHeaderLine(r *storage.Reader) ([]string, error) {
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
			break
		}
	}
	return strings.Split(strings.TrimSuffix(string(buf), "\r"), ","), nil
}

// LocalData lists every object under the prefix and lazily opens each
// as an inner output stream, one GCS object per split CSV stream.
func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	it := d.bucket().Objects(ctx, &storage.Query{Prefix: d.loc.Prefix})
	producer := func(pctx context.Context) (dbcstream.OutputStream, bool, error) {
		attrs, err := it.Next()
		if err != nil {
			if err == iterator.Done {
				return dbcstream.OutputStream{}, false, nil
			}
			return dbcstream.OutputStream{}, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "listing objects")
		}
		r, err := d.bucket().Object(attrs.Name).NewReader(pctx)
		if err != nil {
			return dbcstream.OutputStream{}, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "opening object")
		}
		return dbcstream.OutputStream{Name: attrs.Name, Bytes: r}, true, nil
	}
	return dbcstream.NewDatasetStream(producer), true, nil
}

// WriteLocalData writes each inner stream as one object under the
// prefix, named after the stream (or part-NNNN when the stream is
// unnamed).
func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	if args.IfExists.Kind == driver.IfExistsError {
		it := d.bucket().Objects(ctx, &storage.Query{Prefix: d.loc.Prefix})
		if _, err := it.Next(); err == nil {
			return driver.WriteResult{}, dbcerrors.Newf(dbcerrors.KindAlreadyExists, "objects already exist under gs://%s/%s", d.loc.Bucket, d.loc.Prefix)
		}
	}

	gzipOut := args.ToArgs["compress"] == "gzip"

	i := 0
	for {
		out, ok, err := input.Next(ctx)
		if err != nil {
			return driver.WriteResult{}, err
		}
		if !ok {
			break
		}
		name := d.loc.Prefix + streamObjectName(i, out.Name)
		if gzipOut {
			name += ".gz"
		}
		w := d.bucket().Object(name).NewWriter(ctx)
		var copyErr error
		if gzipOut {
			copyErr = compression.CompressStream(compression.Gzip, w, out.Bytes)
		} else {
			_, copyErr = copyAll(w, out.Bytes)
		}
		closeErr := w.Close()
		out.Bytes.Close()
		if copyErr != nil {
			return driver.WriteResult{}, dbcerrors.Wrap(copyErr, dbcerrors.KindNetwork, "writing object")
		}
		if closeErr != nil {
			return driver.WriteResult{}, dbcerrors.Wrap(closeErr, dbcerrors.KindNetwork, "finalizing object")
		}
		i++
	}
	return driver.WriteResult{}, nil
}

func streamObjectName(i int, name string) string {
	if name == "" {
		return fmt.Sprintf("part-%04d", i)
	}
	return name
}

func copyAll(w io.Writer, r io.Reader) (int64, error) {
	n, err := io.Copy(w, r)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

// SupportsWriteRemoteData is false: GCS has no server-side pull from
// an arbitrary driver.
func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool { return false }

// WriteRemoteData is never called.
func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "gs driver does not support remote writes")
}

// Count is unsupported.
func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	return 0, false, nil
}
