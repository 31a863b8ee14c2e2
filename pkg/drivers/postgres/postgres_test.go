package postgres_test

import (
	"os"
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbctypes"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/postgres"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/dbcrossbar/dbcrossbar/pkg/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFreshRegistry(t *testing.T) {
	t.Helper()
	locator.ResetForTesting()
	t.Cleanup(locator.ResetForTesting)
	locator.Register("postgres", postgres.Parse)
	locator.Register("postgres-sql", postgres.ParseSQL)
}

func TestParseRequiresTableFragment(t *testing.T) {
	withFreshRegistry(t)
	_, _, err := locator.Parse("postgres://localhost/mydb")
	require.Error(t, err)
}

func TestParseAcceptsHostDBAndTable(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("postgres://localhost/mydb#widgets")
	require.NoError(t, err)
	loc := handle.(postgres.Locator)
	assert.Equal(t, "widgets", loc.Table)
	assert.Equal(t, "postgres://localhost/mydb", loc.ConnString)
	assert.False(t, loc.SQLOnly)
}

func TestParseSQLAllowsMissingFragment(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("postgres-sql://localhost/mydb")
	require.NoError(t, err)
	loc := handle.(postgres.Locator)
	assert.True(t, loc.SQLOnly)
}

// TestCountAgainstLiveDatabase exercises Count against a real
// PostgreSQL instance named by DBCROSSBAR_TEST_POSTGRES_URL. Skipped
// outside integration runs since it needs network access to a live
// server.
func TestCountAgainstLiveDatabase(t *testing.T) {
	testutil.IntegrationTest(t)
	dsn := os.Getenv("DBCROSSBAR_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("DBCROSSBAR_TEST_POSTGRES_URL not set")
	}

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `CREATE TEMP TABLE widgets (id int, name text)`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO widgets VALUES (1, 'a'), (2, 'b')`)
	require.NoError(t, err)

	loc := postgres.Locator{ConnString: dsn, Table: "widgets"}
	d := postgres.New(loc, pool)

	schema, err := dbcschema.New(dbcschema.Table{
		Name: "widgets",
		Columns: []dbcschema.Column{
			{Name: "id", DataType: dbctypes.Int64},
			{Name: "name", DataType: dbctypes.Text},
		},
	}, nil)
	require.NoError(t, err)

	count, ok, err := d.Count(driver.Context{Context: ctx}, schema, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, count)
}
