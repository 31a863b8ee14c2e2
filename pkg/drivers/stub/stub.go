// Package stub implements locator parsing for the two data sources
// dbcrossbar names but doesn't ship a working connector for in this
// build: "bigml:" and "shopify:". Parsing succeeds so `dbcrossbar
// features` and locator round-tripping work, but LocalData,
// WriteLocalData and WriteRemoteData report KindUnsupportedFeature,
// and Schema and Count report not-supported (ok=false). "shopify:" is additionally
// gated behind --enable-unstable.
package stub

import (
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcstream"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
)

// Locator is the parsed handle for a stubbed scheme: only the raw
// body is kept, since no stub driver does anything with it yet.
type Locator struct {
	Scheme string
	Body   string
}

// ParseBigML is registered against the "bigml:" scheme.
func ParseBigML(l locator.Locator) (interface{}, error) {
	return Locator{Scheme: "bigml", Body: l.Body}, nil
}

// ParseShopify is registered against the "shopify:" scheme. Callers
// must check Unstable and reject the locator up front unless
// --enable-unstable was passed; the driver itself has no way to know
// the CLI flag, so this stays a plain parse-time concern documented
// here rather than enforced in the parser.
func ParseShopify(l locator.Locator) (interface{}, error) {
	return Locator{Scheme: "shopify", Body: l.Body}, nil
}

func init() {
	locator.Register("bigml", ParseBigML)
	locator.Register("shopify", ParseShopify)
}

// Unstable reports whether loc's scheme requires --enable-unstable.
func Unstable(loc Locator) bool { return loc.Scheme == "shopify" }

// Driver implements driver.Driver by reporting every capability as
// unsupported.
type Driver struct{ loc Locator }

// New builds a stub Driver for the given parsed locator.
func New(loc Locator) *Driver { return &Driver{loc: loc} }

// Features declares no capabilities at all.
func (d *Driver) Features() driver.FeatureSet { return driver.FeatureSet{} }

func (d *Driver) unsupported() error {
	return dbcerrors.Newf(dbcerrors.KindUnsupportedFeature, "%s: driver has no working connector in this build", d.loc.Scheme)
}

func (d *Driver) Schema(ctx driver.Context) (*dbcschema.Schema, bool, error) {
	return nil, false, nil
}

func (d *Driver) LocalData(ctx driver.Context, schema *dbcschema.Schema, args driver.SharedArgs) (*dbcstream.DatasetStream, bool, error) {
	return nil, false, d.unsupported()
}

func (d *Driver) WriteLocalData(ctx driver.Context, schema *dbcschema.Schema, input *dbcstream.DatasetStream, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, d.unsupported()
}

func (d *Driver) SupportsWriteRemoteData(source driver.Driver) bool { return false }

func (d *Driver) WriteRemoteData(ctx driver.Context, schema *dbcschema.Schema, source driver.Driver, args driver.SharedArgs) (driver.WriteResult, error) {
	return driver.WriteResult{}, d.unsupported()
}

func (d *Driver) Count(ctx driver.Context, schema *dbcschema.Schema, whereClause string) (int64, bool, error) {
	return 0, false, nil
}
