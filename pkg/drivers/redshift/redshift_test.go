package redshift_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/redshift"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFreshRegistry(t *testing.T) {
	t.Helper()
	locator.ResetForTesting()
	t.Cleanup(locator.ResetForTesting)
	locator.Register("redshift", redshift.Parse)
}

func TestParseReusesPostgresGrammar(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("redshift://cluster.example.com/db#widgets")
	require.NoError(t, err)
	loc := handle.(redshift.Locator)
	assert.Equal(t, "widgets", loc.Table)
}

func TestFeaturesDropsUpsertAndRequiresS3Staging(t *testing.T) {
	d := redshift.New(redshift.Locator{}, nil, redshift.StagingArgs{})
	f := d.Features()
	assert.False(t, f.IfExistsUpsertOn)
	assert.Contains(t, f.TemporariesRequired, "s3://")
}
