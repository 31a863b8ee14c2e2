// Package s3 implements the "s3:" locator scheme over the
// aws-sdk-go-v2 family (aws-sdk-go-v2, its config module, the s3
// service client, and the s3/manager package for multipart upload),
// used both as a plain data source/destination and as the staging
// area a Redshift COPY statement or Snowflake external stage reads
// from.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dbcrossbar/dbcrossbar/pkg/clients"
	"github.com/dbcrossbar/dbcrossbar/pkg/compression"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/csvsniff"
)

// uploadLimiter caps the rate of PutObject/multipart-upload starts
// against a bucket, staying under S3's per-prefix request-rate limits
// when a copy splits its output across many small parts.
var uploadLimiter = clients.NewRateLimiter(200, 400)

// Locator is the parsed handle for "s3://bucket/prefix".
type Locator struct {
	Bucket string
	Prefix string
}

// Parse is registered against the "s3:" scheme.
func Parse(l locator.Locator) (interface{}, error) {
	body := strings.TrimPrefix(l.Body, "//")
	parts := strings.SplitN(body, "/", 2)
	if parts[0] == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "s3 locator has an empty bucket")
	}
	prefix := ""
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return Locator{Bucket: parts[0], Prefix: prefix}, nil
}

func init() { locator.Register("s3", Parse) }

// NewClientFromEnv loads the default AWS config chain (environment,
// shared config file, EC2/ECS role) the way awsconfig.LoadDefaultConfig
// does, and builds an *s3.Client from it. Kept as a small helper so
// cmd/dbcrossbar doesn't need to import awsconfig directly.
func NewClientFromEnv(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "loading AWS config")
	}
	return s3.NewFromConfig(cfg), nil
}

// Driver implements driver.Driver over an S3 bucket/prefix of CSV
// interchange objects.
type Driver struct {
	loc      Locator
	client   *s3.Client
	uploader *manager.Uploader
}

// New builds a Driver from a parsed Locator and an already-constructed
// client.
func New(loc Locator, client *s3.Client) *Driver {
	return &Driver{loc: loc, client: client, uploader: manager.NewUploader(client)}
}

// Features declares this driver's capabilities: read/write plus
// service as a staging area, no server-side count or upsert.
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
	list, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.loc.Bucket),
		Prefix:  aws.String(d.loc.Prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "listing objects for schema sniff")
	}
	if len(list.Contents) == 0 {
		return nil, false, nil
	}
	obj, err := d.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(d.loc.Bucket), Key: list.Contents[0].Key})
	if err != nil {
		return nil, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "opening object for schema sniff")
	}
	defer obj.Body.Close()
	header, err := readHeaderLine(obj.Body)
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
			break
		}
	}
	return strings.Split(strings.TrimSuffix(string(buf), "\r"), ","), nil
}

// LocalData paginates the bucket/prefix and lazily opens each object
// as an inner stream.
func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.loc.Bucket),
		Prefix: aws.String(d.loc.Prefix),
	})
	var pageKeys []string
	pageIdx := 0

	producer := func(pctx context.Context) (dbcstream.OutputStream, bool, error) {
		for pageIdx >= len(pageKeys) {
			if !paginator.HasMorePages() {
				return dbcstream.OutputStream{}, false, nil
			}
			page, err := paginator.NextPage(pctx)
			if err != nil {
				return dbcstream.OutputStream{}, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "listing objects")
			}
			pageKeys = pageKeys[:0]
			for _, obj := range page.Contents {
				pageKeys = append(pageKeys, aws.ToString(obj.Key))
			}
			pageIdx = 0
		}
		key := pageKeys[pageIdx]
		pageIdx++
		obj, err := d.client.GetObject(pctx, &s3.GetObjectInput{Bucket: aws.String(d.loc.Bucket), Key: aws.String(key)})
		if err != nil {
			return dbcstream.OutputStream{}, false, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "opening object")
		}
		return dbcstream.OutputStream{Name: key, Bytes: obj.Body}, true, nil
	}
	return dbcstream.NewDatasetStream(producer), true, nil
}

// WriteLocalData writes each inner stream as one object under the
// prefix (named after the stream, or part-NNNN when the stream is
// unnamed) using a multipart uploader.
func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	if args.IfExists.Kind == driver.IfExistsError {
		list, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(d.loc.Bucket), Prefix: aws.String(d.loc.Prefix), MaxKeys: aws.Int32(1)})
		if err == nil && len(list.Contents) > 0 {
			return driver.WriteResult{}, dbcerrors.Newf(dbcerrors.KindAlreadyExists, "objects already exist under s3://%s/%s", d.loc.Bucket, d.loc.Prefix)
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
		if waitErr := uploadLimiter.Wait(ctx); waitErr != nil {
			out.Bytes.Close()
			return driver.WriteResult{}, dbcerrors.Wrap(waitErr, dbcerrors.KindCancelled, "waiting for upload rate limiter")
		}

		key := d.loc.Prefix + streamObjectName(i, out.Name)
		body := io.Reader(out.Bytes)
		if gzipOut {
			key += ".gz"
			body = gzipPipe(out.Bytes)
		}
		_, uploadErr := d.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(d.loc.Bucket),
			Key:    aws.String(key),
			Body:   body,
		})
		out.Bytes.Close()
		if uploadErr != nil {
			return driver.WriteResult{}, dbcerrors.Wrap(uploadErr, dbcerrors.KindNetwork, "uploading object")
		}
		i++
	}
	return driver.WriteResult{}, nil
}

// gzipPipe streams src through a gzip compressor into a pipe, so the
// manager.Uploader can read it the same way it reads any other
// io.Reader body without dbcrossbar buffering the whole object.
func gzipPipe(src io.Reader) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		err := compression.CompressStream(compression.Gzip, pw, src)
		pw.CloseWithError(err)
	}()
	return pr
}

func streamObjectName(i int, name string) string {
	if name == "" {
		return fmt.Sprintf("part-%04d", i)
	}
	return name
}

// SupportsWriteRemoteData is false: S3 has no server-side pull from
// an arbitrary driver.
func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool { return false }

// WriteRemoteData is never called.
func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "s3 driver does not support remote writes")
}

// Count is unsupported.
func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	return 0, false, nil
}
