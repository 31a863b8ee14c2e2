package locator_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownScheme(t *testing.T) {
	locator.ResetForTesting()
	_, _, err := locator.Parse("nope://x")
	require.Error(t, err)
}

func TestRegisterAndParse(t *testing.T) {
	locator.ResetForTesting()
	var seen locator.Locator
	locator.Register("csv", func(l locator.Locator) (interface{}, error) {
		seen = l
		return "handle", nil
	})

	l, handle, err := locator.Parse("csv:data.csv#table1?max_streams=4")
	require.NoError(t, err)
	assert.Equal(t, "csv", l.Scheme)
	assert.Equal(t, "data.csv", l.Body)
	assert.Equal(t, "table1", l.Fragment)
	assert.Equal(t, "4", l.Query.Get("max_streams"))
	assert.Equal(t, "handle", handle)
	assert.Equal(t, l, seen)
}

func TestParseNoScheme(t *testing.T) {
	locator.ResetForTesting()
	_, _, err := locator.Parse("no-colon-here")
	require.Error(t, err)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	locator.ResetForTesting()
	locator.Register("gs", func(l locator.Locator) (interface{}, error) { return nil, nil })
	assert.Panics(t, func() {
		locator.Register("gs", func(l locator.Locator) (interface{}, error) { return nil, nil })
	})
}

func TestSchemesSorted(t *testing.T) {
	locator.ResetForTesting()
	locator.Register("s3", func(l locator.Locator) (interface{}, error) { return nil, nil })
	locator.Register("bigquery", func(l locator.Locator) (interface{}, error) { return nil, nil })
	assert.Equal(t, []string{"bigquery", "s3"}, locator.Schemes())
}
