// Package dbcrossbarschema implements the "dbcrossbar-schema:"
// locator scheme: a schema-only source that reads the native JSON
// schema format from pkg/schemacodec/jsonschema off local disk. It
// never carries data, so its Driver only implements the introspection
// half of driver.Driver; every data-moving method reports "not
// supported" rather than being reachable through the planner.
package dbcrossbarschema

import (
	"os"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/jsonschema"
)

// Locator is the parsed handle for "dbcrossbar-schema:path/to/file.json".
type Locator struct {
	Path string
}

// Parse is registered against the "dbcrossbar-schema:" scheme.
func Parse(l locator.Locator) (interface{}, error) {
	if l.Body == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "dbcrossbar-schema locator has an empty path")
	}
	return Locator{Path: l.Body}, nil
}

func init() { locator.Register("dbcrossbar-schema", Parse) }

// Driver implements driver.Driver's schema-only half over a native
// JSON schema file.
type Driver struct{ loc Locator }

// New builds a Driver for the given parsed locator.
func New(loc Locator) *Driver { return &Driver{loc: loc} }

// Features declares schema support only.
func (d *Driver) Features() driver.FeatureSet {
	return driver.FeatureSet{ReadSchema: true, WriteSchema: true}
}

// Schema reads and parses the JSON schema file.
func (d *Driver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	data, err := os.ReadFile(d.loc.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, dbcerrors.Wrapf(err, dbcerrors.KindIO, "reading %q", d.loc.Path)
	}
	schema, err := jsonschema.Parse(data)
	if err != nil {
		return nil, false, err
	}
	return schema, true, nil
}

// WriteSchema renders schema to the native JSON format and writes it
// to disk; used by `dbcrossbar schema conv` when the destination is a
// "dbcrossbar-schema:" locator.
func (d *Driver) WriteSchema(schema *dbcschema.Schema) error {
	data, err := jsonschema.Render(schema)
	if err != nil {
		return err
	}
	if err := os.WriteFile(d.loc.Path, data, 0o644); err != nil {
		return dbcerrors.Wrapf(err, dbcerrors.KindIO, "writing %q", d.loc.Path)
	}
	return nil
}

func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	return nil, false, nil
}

func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "dbcrossbar-schema locators are schema-only, not a data destination")
}

func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool { return false }

func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "dbcrossbar-schema locators are schema-only, not a data destination")
}

func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	return 0, false, nil
}
