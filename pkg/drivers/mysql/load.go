package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	mysqldriver "github.com/go-sql-driver/mysql"
)

// loadCSVIntoTable streams out.Bytes into table via LOAD DATA LOCAL
// INFILE, using the go-sql-driver/mysql reader-handler registry to
// hand the driver an io.Reader instead of a real file path.
func loadCSVIntoTable(ctx context.Context, db *sql.DB, table *dbcschema.Table, out dbcstream.OutputStream) (int64, error) {
	handle := fmt.Sprintf("dbcrossbar_%s", table.Name)
	mysqldriver.RegisterReaderHandler(handle, func() io.Reader { return out.Bytes })
	defer mysqldriver.DeregisterReaderHandler(handle)

	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = fmt.Sprintf("`%s`", c.Name)
	}
	stmt := fmt.Sprintf(
		"LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE `%s` FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '\"' LINES TERMINATED BY '\\n' IGNORE 1 LINES (%s)",
		handle, table.Name, strings.Join(cols, ", "),
	)
	result, err := db.ExecContext(ctx, stmt)
	out.Bytes.Close()
	if err != nil {
		return 0, dbcerrors.Wrap(err, dbcerrors.KindNetwork, "LOAD DATA LOCAL INFILE")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
