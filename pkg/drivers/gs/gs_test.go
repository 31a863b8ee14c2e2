package gs_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/gs"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFreshRegistry(t *testing.T) {
	t.Helper()
	locator.ResetForTesting()
	t.Cleanup(locator.ResetForTesting)
	locator.Register("gs", gs.Parse)
}

func TestParseSplitsBucketAndPrefix(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("gs://mybucket/some/prefix/")
	require.NoError(t, err)
	loc := handle.(gs.Locator)
	assert.Equal(t, "mybucket", loc.Bucket)
	assert.Equal(t, "some/prefix/", loc.Prefix)
}

func TestParseAllowsBareBucket(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("gs://mybucket")
	require.NoError(t, err)
	assert.Equal(t, "", handle.(gs.Locator).Prefix)
}

func TestParseRejectsEmptyBucket(t *testing.T) {
	withFreshRegistry(t)
	_, _, err := locator.Parse("gs:///prefix")
	require.Error(t, err)
}
