// Package dbcrossbarts implements the "dbcrossbar-ts:" locator
// scheme: a schema-only source/destination that reads and writes the
// TypeScript-subset schema format from pkg/schemacodec/typescript.
package dbcrossbarts

import (
	"os"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/dbcrossbar/dbcrossbar/pkg/schemacodec/typescript"
)

// Locator is the parsed handle for
// "dbcrossbar-ts:path/to/file.ts#InterfaceName".
type Locator struct {
	Path     string
	TypeName string
}

// Parse is registered against the "dbcrossbar-ts:" scheme.
func Parse(l locator.Locator) (interface{}, error) {
	if l.Body == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "dbcrossbar-ts locator has an empty path")
	}
	if l.Fragment == "" {
		return nil, dbcerrors.New(dbcerrors.KindLocator, "dbcrossbar-ts locator needs a #TypeName fragment")
	}
	return Locator{Path: l.Body, TypeName: l.Fragment}, nil
}

func init() { locator.Register("dbcrossbar-ts", Parse) }

// Driver implements driver.Driver's schema-only half over a
// TypeScript-subset schema file.
type Driver struct{ loc Locator }

// New builds a Driver for the given parsed locator.
func New(loc Locator) *Driver { return &Driver{loc: loc} }

// Features declares schema support only.
func (d *Driver) Features() driver.FeatureSet {
	return driver.FeatureSet{ReadSchema: true, WriteSchema: true}
}

// Schema reads and parses the selected interface declaration.
func (d *Driver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	data, err := os.ReadFile(d.loc.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, dbcerrors.Wrapf(err, dbcerrors.KindIO, "reading %q", d.loc.Path)
	}
	schema, err := typescript.Parse(string(data), d.loc.TypeName, d.loc.Path)
	if err != nil {
		return nil, false, err
	}
	return schema, true, nil
}

// WriteSchema renders schema as a TypeScript interface declaration
// and writes it to disk.
func (d *Driver) WriteSchema(schema *dbcschema.Schema) error {
	text, err := typescript.Render(schema)
	if err != nil {
		return err
	}
	if err := os.WriteFile(d.loc.Path, []byte(text), 0o644); err != nil {
		return dbcerrors.Wrapf(err, dbcerrors.KindIO, "writing %q", d.loc.Path)
	}
	return nil
}

func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	return nil, false, nil
}

func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "dbcrossbar-ts locators are schema-only, not a data destination")
}

func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool { return false }

func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, dbcerrors.New(dbcerrors.KindUnsupportedFeature, "dbcrossbar-ts locators are schema-only, not a data destination")
}

func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	return 0, false, nil
}
