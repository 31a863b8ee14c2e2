package dbcstream

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
)

// SplitAtRecordBoundaries reads a single CSV stream and re-chunks it
// into a DatasetStream of inner streams each targeting approximately
// targetBytes, splitting only at record (line) boundaries and
// repeating the header row at the start of every split.
// namePrefix is used to build a distinct name for each split, e.g.
// "part-0", "part-1".
func SplitAtRecordBoundaries(r io.Reader, targetBytes int64, namePrefix string) (*DatasetStream, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, dbcerrors.Wrap(err, dbcerrors.KindIO, "reading CSV header for splitting")
	}

	partIndex := 0
	eof := false

	return NewDatasetStream(func(ctx context.Context) (OutputStream, bool, error) {
		if eof {
			return OutputStream{}, false, nil
		}
		var buf bytes.Buffer
		buf.WriteString(header)
		for int64(buf.Len()) < targetBytes {
			select {
			case <-ctx.Done():
				return OutputStream{}, false, dbcerrors.Wrap(ctx.Err(), dbcerrors.KindCancelled, "splitting cancelled")
			default:
			}
			line, err := br.ReadString('\n')
			if len(line) > 0 {
				buf.WriteString(line)
			}
			if err == io.EOF {
				eof = true
				break
			}
			if err != nil {
				return OutputStream{}, false, dbcerrors.Wrap(err, dbcerrors.KindIO, "reading CSV row for splitting")
			}
		}
		if buf.Len() == len(header) && eof {
			// nothing but a repeated header was produced; the prior
			// part already consumed the last data row.
			return OutputStream{}, false, nil
		}
		name := indexedName(namePrefix, partIndex)
		partIndex++
		return OutputStream{Name: name, Bytes: io.NopCloser(bytes.NewReader(buf.Bytes()))}, true, nil
	}), nil
}

// Concatenate reads every inner stream of ds in order and writes it
// to w, dropping the header row of every stream after the first so
// the result is a single well-formed CSV file. It is the inverse of
// SplitAtRecordBoundaries, used when the destination wants one file.
func Concatenate(ctx context.Context, ds *DatasetStream, w io.Writer) error {
	first := true
	for {
		out, ok, err := ds.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := copyDroppingHeader(w, out.Bytes, first); err != nil {
			out.Bytes.Close()
			return err
		}
		if err := out.Bytes.Close(); err != nil {
			return dbcerrors.Wrap(err, dbcerrors.KindIO, "closing inner stream")
		}
		first = false
	}
}

func copyDroppingHeader(w io.Writer, r io.Reader, keepHeader bool) error {
	br := bufio.NewReader(r)
	if !keepHeader {
		if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
			return dbcerrors.Wrap(err, dbcerrors.KindIO, "skipping repeated header")
		}
	}
	if _, err := io.Copy(w, br); err != nil {
		return dbcerrors.Wrap(err, dbcerrors.KindIO, "concatenating stream")
	}
	return nil
}

func indexedName(prefix string, i int) string {
	return prefix + "-" + strconv.Itoa(i)
}
