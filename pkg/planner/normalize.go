package planner

import (
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcschema"
	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
)

// NormalizeSchema is step 2 of the planning algorithm: it
// checks that the source schema's column names survive the
// destination's case-folding rule and returns the schema to write,
// unchanged apart from that check. The portable type model itself
// needs no per-destination rewriting; drivers translate DataType to
// their own dialect at write time.
func NormalizeSchema(source *dbcschema.Schema, features driver.FeatureSet) (*dbcschema.Schema, error) {
	table, err := source.Table0()
	if err != nil {
		return nil, err
	}
	fold := dbcschema.CaseSensitive
	if features.CaseInsensitiveNames {
		fold = dbcschema.CaseInsensitive
	}
	if err := dbcschema.CheckColumnCollisions(table, fold); err != nil {
		return nil, dbcerrors.Wrap(err, dbcerrors.KindSchemaMismatch, "column names collide under the destination's naming rules")
	}
	return source, nil
}
