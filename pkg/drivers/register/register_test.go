package register_test

import (
	"testing"

	_ "github.com/dbcrossbar/dbcrossbar/pkg/drivers/register"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/stretchr/testify/assert"
)

func TestBlankImportRegistersEveryScheme(t *testing.T) {
	want := []string{
		"csv", "file", "postgres", "postgres-sql", "redshift", "mysql",
		"bigquery", "bigquery-schema", "bigquery-test-fixture",
		"gs", "s3", "snowflake", "dbcrossbar-schema", "dbcrossbar-ts",
		"bigml", "shopify",
	}
	got := locator.Schemes()
	seen := make(map[string]bool, len(got))
	for _, s := range got {
		seen[s] = true
	}
	for _, scheme := range want {
		assert.True(t, seen[scheme], "expected scheme %q to be registered", scheme)
	}
}
