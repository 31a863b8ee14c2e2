package json_test

import (
	"testing"

	dbcjson "github.com/dbcrossbar/dbcrossbar/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMarshalUnmarshalRoundTrips(t *testing.T) {
	in := widget{Name: "bolt", Count: 3}
	data, err := dbcjson.Marshal(in)
	require.NoError(t, err)

	var out widget
	require.NoError(t, dbcjson.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalIndentProducesIndentedOutput(t *testing.T) {
	data, err := dbcjson.MarshalIndent(widget{Name: "nut", Count: 1}, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"name\"")
}
