package snowflake_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/snowflake"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFreshRegistry(t *testing.T) {
	t.Helper()
	locator.ResetForTesting()
	t.Cleanup(locator.ResetForTesting)
	locator.Register("snowflake", snowflake.Parse)
}

func TestParseRequiresTableFragment(t *testing.T) {
	withFreshRegistry(t)
	_, _, err := locator.Parse("snowflake://myaccount/mydb")
	require.Error(t, err)
}

func TestParseAcceptsAccountDBAndTable(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("snowflake://myaccount/mydb#widgets")
	require.NoError(t, err)
	loc := handle.(snowflake.Locator)
	assert.Equal(t, "widgets", loc.Table)
}

func TestFeaturesRequireExternalStageAsTemporary(t *testing.T) {
	d := snowflake.New(snowflake.Locator{}, nil, snowflake.StageArgs{})
	f := d.Features()
	assert.Contains(t, f.TemporariesRequired, "s3://")
	assert.Contains(t, f.TemporariesRequired, "gs://")
	assert.False(t, f.IfExistsUpsertOn)
}
