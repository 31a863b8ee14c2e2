package main

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyValueArgs(t *testing.T) {
	out, err := parseKeyValueArgs([]string{"region=us-east-1", "compress[level]=6"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"region":          "us-east-1",
		"compress[level]": "6",
	}, out)
}

func TestParseKeyValueArgsRejectsMissingEquals(t *testing.T) {
	_, err := parseKeyValueArgs([]string{"no-equals-sign"})
	assert.Error(t, err)
}

func TestParseKeyValueArgsRejectsDuplicateKeys(t *testing.T) {
	_, err := parseKeyValueArgs([]string{"region=us-east-1", "region=eu-west-1"})
	assert.Error(t, err)
}

func TestParseKeyValueArgsEmpty(t *testing.T) {
	out, err := parseKeyValueArgs(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseIfExists(t *testing.T) {
	cases := []struct {
		raw  string
		want driver.IfExists
	}{
		{"", driver.IfExists{Kind: driver.IfExistsError}},
		{"error", driver.IfExists{Kind: driver.IfExistsError}},
		{"append", driver.IfExists{Kind: driver.IfExistsAppend}},
		{"overwrite", driver.IfExists{Kind: driver.IfExistsOverwrite}},
		{"upsert-on:id", driver.IfExists{Kind: driver.IfExistsUpsertOn, Keys: []string{"id"}}},
		{"upsert-on:a,b", driver.IfExists{Kind: driver.IfExistsUpsertOn, Keys: []string{"a", "b"}}},
	}
	for _, c := range cases {
		got, err := parseIfExists(c.raw)
		require.NoError(t, err, c.raw)
		assert.Equal(t, c.want, got, c.raw)
	}
}

func TestParseIfExistsRejectsUnknown(t *testing.T) {
	_, err := parseIfExists("clobber")
	assert.Error(t, err)
}

func TestParseIfExistsRejectsEmptyUpsertKeys(t *testing.T) {
	_, err := parseIfExists("upsert-on:")
	assert.Error(t, err)
}
