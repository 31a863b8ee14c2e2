package bigquery_test

import (
	"testing"

	gbq "cloud.google.com/go/bigquery"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/bigquery"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFreshRegistry(t *testing.T) {
	t.Helper()
	locator.ResetForTesting()
	t.Cleanup(locator.ResetForTesting)
	locator.Register("bigquery", bigquery.Parse)
	locator.Register("bigquery-schema", bigquery.ParseSchema)
	locator.Register("bigquery-test-fixture", bigquery.ParseTestFixture)
}

func TestParseSplitsProjectDatasetTable(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("bigquery:proj:ds.tbl")
	require.NoError(t, err)
	loc := handle.(bigquery.Locator)
	assert.Equal(t, "proj", loc.Project)
	assert.Equal(t, "ds", loc.Dataset)
	assert.Equal(t, "tbl", loc.Table)
	assert.Equal(t, "data", loc.Kind)
}

func TestParseRejectsMissingDatasetTableSeparator(t *testing.T) {
	withFreshRegistry(t)
	_, _, err := locator.Parse("bigquery:proj:tbl")
	require.Error(t, err)
}

func TestParseSchemaTagsKind(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("bigquery-schema:proj:ds.tbl")
	require.NoError(t, err)
	assert.Equal(t, "schema", handle.(bigquery.Locator).Kind)
}

func TestSchemaFeaturesAdvertiseCaseInsensitiveNames(t *testing.T) {
	d := bigquery.New(bigquery.Locator{Project: "p", Dataset: "d", Table: "t"}, &gbq.Client{})
	assert.True(t, d.Features().CaseInsensitiveNames)
	assert.False(t, d.Features().IfExistsUpsertOn)
}
