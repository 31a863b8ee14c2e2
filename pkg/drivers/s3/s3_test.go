package s3_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/s3"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFreshRegistry(t *testing.T) {
	t.Helper()
	locator.ResetForTesting()
	t.Cleanup(locator.ResetForTesting)
	locator.Register("s3", s3.Parse)
}

func TestParseSplitsBucketAndPrefix(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("s3://mybucket/some/prefix/")
	require.NoError(t, err)
	loc := handle.(s3.Locator)
	assert.Equal(t, "mybucket", loc.Bucket)
	assert.Equal(t, "some/prefix/", loc.Prefix)
}

func TestParseRejectsEmptyBucket(t *testing.T) {
	withFreshRegistry(t)
	_, _, err := locator.Parse("s3:///prefix")
	require.Error(t, err)
}
