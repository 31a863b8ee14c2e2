package dbcerrors_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndDetails(t *testing.T) {
	err := dbcerrors.New(dbcerrors.KindLocator, "unknown scheme \"foo\"").
		WithDetail("scheme", "foo")
	assert.Equal(t, "locator: unknown scheme \"foo\"", err.Error())
	assert.Equal(t, "foo", err.Details["scheme"])
}

func TestWrapPreservesStack(t *testing.T) {
	inner := dbcerrors.New(dbcerrors.KindIO, "short read")
	outer := dbcerrors.Wrap(inner, dbcerrors.KindInternal, "loading schema file")
	require.NotNil(t, outer)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.Same(t, inner, errorsAsError(t, outer.Unwrap()))
}

func TestWrapNonDbcerror(t *testing.T) {
	outer := dbcerrors.Wrap(io.EOF, dbcerrors.KindNetwork, "reading response")
	require.NotNil(t, outer)
	assert.NotEmpty(t, outer.Stack)
	assert.ErrorIs(t, outer, io.EOF)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, dbcerrors.Wrap(nil, dbcerrors.KindInternal, "unreachable"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, dbcerrors.IsRetryable(dbcerrors.New(dbcerrors.KindNetwork, "dial tcp: timeout")))
	assert.True(t, dbcerrors.IsRetryable(dbcerrors.New(dbcerrors.KindTimeout, "deadline exceeded")))
	assert.False(t, dbcerrors.IsRetryable(dbcerrors.New(dbcerrors.KindInternal, "bug")))
	assert.False(t, dbcerrors.IsRetryable(io.EOF))
}

func TestIs(t *testing.T) {
	err := dbcerrors.New(dbcerrors.KindAlreadyExists, "table already exists")
	assert.True(t, dbcerrors.Is(err, dbcerrors.KindAlreadyExists))
	assert.False(t, dbcerrors.Is(err, dbcerrors.KindNotFound))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, dbcerrors.ExitCode(nil))
	assert.Equal(t, 2, dbcerrors.ExitCode(dbcerrors.New(dbcerrors.KindParse, "bad schema")))
	assert.Equal(t, 2, dbcerrors.ExitCode(dbcerrors.New(dbcerrors.KindLocator, "bad locator")))
	assert.Equal(t, 1, dbcerrors.ExitCode(dbcerrors.New(dbcerrors.KindNetwork, "connection reset")))
	assert.Equal(t, 1, dbcerrors.ExitCode(io.EOF))
}

func errorsAsError(t *testing.T, err error) *dbcerrors.Error {
	t.Helper()
	e, ok := err.(*dbcerrors.Error)
	require.True(t, ok, "expected *dbcerrors.Error, got %T", err)
	return e
}

func ExampleWrap() {
	err := dbcerrors.Wrap(io.EOF, dbcerrors.KindIO, "reading CSV file").
		WithDetail("file", "data.csv")
	fmt.Println(err.Error())
	// Output:
	// io: reading CSV file: EOF
}
