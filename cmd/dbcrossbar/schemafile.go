package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/bigquery"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/jsonschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/postgres"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/typescript"
)

// loadSchemaFile parses the --schema argument: a path, dispatched to
// a schema codec by file extension, optionally suffixed with
// "#TypeName" for the TypeScript codec which needs an interface name
// to select.
func loadSchemaFile(path string) (*dbcschema.Schema, error) {
	fragment := ""
	if i := strings.IndexByte(path, '#'); i >= 0 {
		fragment = path[i+1:]
		path = path[:i]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dbcerrors.Wrapf(err, dbcerrors.KindIO, "reading --schema file %q", path)
	}
	tableName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if strings.HasSuffix(strings.ToLower(path), ".bq.json") {
		return bigquery.Parse(data, strings.TrimSuffix(tableName, filepath.Ext(tableName)))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return jsonschema.Parse(data)
	case ".sql":
		result, err := postgres.Parse(string(data))
		if err != nil {
			return nil, err
		}
		for _, warning := range result.Warnings {
			stderrf("warning: %s", warning.Message)
		}
		return result.Schema, nil
	case ".ts":
		if fragment == "" {
			return nil, dbcerrors.Newf(dbcerrors.KindParse, "--schema %s needs a #TypeName fragment naming the interface to read", path)
		}
		return typescript.Parse(string(data), fragment, path)
	default:
		return nil, dbcerrors.Newf(dbcerrors.KindParse, "--schema %s: unrecognized extension, expected .json, .sql, .ts, or .bq.json", path)
	}
}
