package dbcstream_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceDatasetStreamExhausts(t *testing.T) {
	ds := dbcstream.SliceDatasetStream([]dbcstream.OutputStream{
		{Name: "a", Bytes: io.NopCloser(bytes.NewReader(nil))},
	})
	ctx := context.Background()
	_, ok, err := ds.Next(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = ds.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStreamGateBoundsConcurrency(t *testing.T) {
	gate := dbcstream.NewStreamGate(1)
	ctx := context.Background()
	require.NoError(t, gate.Acquire(ctx))

	acquired := make(chan struct{})
	go func() {
		_ = gate.Acquire(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should not succeed while the gate is held")
	default:
	}

	gate.Release()
	<-acquired
	gate.Release()
}

func TestWorkerPoolPropagatesFirstError(t *testing.T) {
	pool, cancel := dbcstream.NewWorkerPool(context.Background())
	defer cancel()

	boom := errors.New("boom")
	pool.Go(func() error { return boom })
	pool.Go(func() error {
		<-pool.Context().Done()
		return pool.Context().Err()
	})

	err := pool.Wait()
	assert.ErrorIs(t, err, boom)
}

func TestTempRegistryRunsInReverseOrder(t *testing.T) {
	reg := dbcstream.NewTempRegistry()
	var order []string
	reg.Register(dbcstream.Cleanup{Name: "first", Run: func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	}})
	reg.Register(dbcstream.Cleanup{Name: "second", Run: func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	}})

	assert.Equal(t, 2, reg.Len())
	require.NoError(t, reg.Cleanup(context.Background()))
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, 0, reg.Len())
}

func TestTempRegistryContinuesPastFailures(t *testing.T) {
	reg := dbcstream.NewTempRegistry()
	ran := false
	reg.Register(dbcstream.Cleanup{Name: "broken", Run: func(ctx context.Context) error {
		return errors.New("cleanup failed")
	}})
	reg.Register(dbcstream.Cleanup{Name: "ok", Run: func(ctx context.Context) error {
		ran = true
		return nil
	}})

	err := reg.Cleanup(context.Background())
	assert.Error(t, err)
	assert.True(t, ran)
}

func TestSplitAtRecordBoundariesRepeatsHeader(t *testing.T) {
	input := "id,name\n1,a\n2,b\n3,c\n4,d\n"
	ds, err := dbcstream.SplitAtRecordBoundaries(bytes.NewBufferString(input), 12, "part")
	require.NoError(t, err)

	var parts [][]byte
	ctx := context.Background()
	for {
		out, ok, err := ds.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		data, err := io.ReadAll(out.Bytes)
		require.NoError(t, err)
		parts = append(parts, data)
	}
	require.True(t, len(parts) >= 2)
	for _, p := range parts {
		assert.True(t, bytes.HasPrefix(p, []byte("id,name\n")))
	}
}

func TestGatedDatasetStreamBoundsInFlightStreams(t *testing.T) {
	pool, cancel := dbcstream.NewWorkerPool(context.Background())
	defer cancel()
	gate := dbcstream.NewStreamGate(1)

	names := []string{"a", "b", "c"}
	i := 0
	produce := func(ctx context.Context) (dbcstream.OutputStream, bool, error) {
		if i >= len(names) {
			return dbcstream.OutputStream{}, false, nil
		}
		s := dbcstream.OutputStream{Name: names[i], Bytes: io.NopCloser(bytes.NewReader(nil))}
		i++
		return s, true, nil
	}

	gated := dbcstream.GatedDatasetStream(pool, gate, produce)
	ctx := context.Background()
	for _, want := range names {
		out, ok, err := gated.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, out.Name)
		require.NoError(t, out.Bytes.Close())
	}
	_, ok, err := gated.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, pool.Wait())
}

func TestConcatenateDropsRepeatedHeaders(t *testing.T) {
	ds := dbcstream.SliceDatasetStream([]dbcstream.OutputStream{
		{Name: "a", Bytes: io.NopCloser(bytes.NewBufferString("id,name\n1,a\n"))},
		{Name: "b", Bytes: io.NopCloser(bytes.NewBufferString("id,name\n2,b\n"))},
	})
	var out bytes.Buffer
	require.NoError(t, dbcstream.Concatenate(context.Background(), ds, &out))
	assert.Equal(t, "id,name\n1,a\n2,b\n", out.String())
}
