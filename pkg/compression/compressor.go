// Package compression implements the gzip streaming compressor the S3
// and GCS destination drivers use to compress a staged object before
// upload.
package compression

import (
	"compress/gzip"
	"fmt"
	"io"
	"sync"
)

// Algorithm names a compression codec.
type Algorithm string

const (
	// None passes bytes through unchanged.
	None Algorithm = "none"
	// Gzip compresses with the standard library's gzip writer.
	Gzip Algorithm = "gzip"
)

// CompressStream streams src through algo's compressor into dst, for
// callers that compress a temporary object exactly once and have no
// reuse opportunity that would justify a persistent compressor.
func CompressStream(algo Algorithm, dst io.Writer, src io.Reader) error {
	switch algo {
	case None:
		_, err := io.Copy(dst, src)
		return err
	case Gzip:
		return gzipCompressStream(dst, src)
	default:
		return fmt.Errorf("compression: unsupported algorithm %q", algo)
	}
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.DefaultCompression)
		return w
	},
}

func gzipCompressStream(dst io.Writer, src io.Reader) error {
	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)

	w.Reset(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}
