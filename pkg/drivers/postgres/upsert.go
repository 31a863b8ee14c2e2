package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
)

// upsertFromStaging merges staging's rows into table using INSERT ...
// ON CONFLICT (keys) DO UPDATE, then drops the staging table. Called
// after a COPY into a freshly created staging table, since PostgreSQL
// has no COPY variant that itself understands upsert semantics.
func (d *Driver) upsertFromStaging(ctx context.Context, table *dbcschema.Table, staging string, keys []string) error {
	cols := make([]string, len(table.Columns))
	updates := make([]string, 0, len(table.Columns))
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}
	for i, c := range table.Columns {
		cols[i] = fmt.Sprintf("%q", c.Name)
		if !keySet[c.Name] {
			updates = append(updates, fmt.Sprintf("%q = EXCLUDED.%q", c.Name, c.Name))
		}
	}
	quotedKeys := make([]string, len(keys))
	for i, k := range keys {
		quotedKeys[i] = fmt.Sprintf("%q", k)
	}

	sql := fmt.Sprintf(
		"INSERT INTO %q (%s) SELECT %s FROM %q ON CONFLICT (%s) DO UPDATE SET %s",
		table.Name, strings.Join(cols, ", "), strings.Join(cols, ", "), staging,
		strings.Join(quotedKeys, ", "), strings.Join(updates, ", "),
	)
	if len(updates) == 0 {
		sql = fmt.Sprintf(
			"INSERT INTO %q (%s) SELECT %s FROM %q ON CONFLICT (%s) DO NOTHING",
			table.Name, strings.Join(cols, ", "), strings.Join(cols, ", "), staging,
			strings.Join(quotedKeys, ", "),
		)
	}
	if _, err := d.pool.Exec(ctx, sql); err != nil {
		return dbcerrors.Wrap(err, dbcerrors.KindNetwork, "merging staging table into destination")
	}
	if _, err := d.pool.Exec(ctx, fmt.Sprintf("DROP TABLE %q", staging)); err != nil {
		return dbcerrors.Wrap(err, dbcerrors.KindInternal, "dropping staging table")
	}
	return nil
}
