package config_test

import (
	"path/filepath"
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDBCrossbarConfigReturnsZeroValueWhenMissing(t *testing.T) {
	cfg, err := config.LoadDBCrossbarConfig(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Temporary)
}

func TestSaveThenLoadRoundTripsTemporaryList(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.DBCrossbarConfig{}
	cfg.AddTemporary("gs://bucket/prefix")
	cfg.AddTemporary("s3://bucket/prefix")
	require.NoError(t, cfg.Save(dir))

	loaded, err := config.LoadDBCrossbarConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"gs://bucket/prefix", "s3://bucket/prefix"}, loaded.Temporary)
}

func TestAddTemporaryIsIdempotent(t *testing.T) {
	cfg := &config.DBCrossbarConfig{}
	cfg.AddTemporary("gs://bucket/prefix")
	cfg.AddTemporary("gs://bucket/prefix")
	assert.Len(t, cfg.Temporary, 1)
}

func TestRemoveTemporaryReportsWhetherPresent(t *testing.T) {
	cfg := &config.DBCrossbarConfig{Temporary: []string{"gs://bucket/prefix"}}
	assert.True(t, cfg.RemoveTemporary("gs://bucket/prefix"))
	assert.False(t, cfg.RemoveTemporary("gs://bucket/prefix"))
}

func TestConfigPathJoinsDirAndFilename(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp/x", "dbcrossbar.toml"), config.ConfigPath("/tmp/x"))
}
