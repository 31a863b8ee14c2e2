package compression_test

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/compression"
	"github.com/stretchr/testify/require"
)

func TestCompressStreamGzipRoundTrips(t *testing.T) {
	original := []byte("id,name\n1,alice\n2,bob\n")

	var compressed bytes.Buffer
	require.NoError(t, compression.CompressStream(compression.Gzip, &compressed, bytes.NewReader(original)))

	r, err := gzip.NewReader(&compressed)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, original, got)
}

func TestCompressStreamNoneCopiesUnchanged(t *testing.T) {
	original := []byte("passthrough")

	var out bytes.Buffer
	require.NoError(t, compression.CompressStream(compression.None, &out, bytes.NewReader(original)))
	require.Equal(t, original, out.Bytes())
}

func TestCompressStreamRejectsUnknownAlgorithm(t *testing.T) {
	err := compression.CompressStream("bogus", &bytes.Buffer{}, bytes.NewReader(nil))
	require.Error(t, err)
}
