package driver_test

import (
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/stretchr/testify/assert"
)

func TestFeatureSetSupportsIfExists(t *testing.T) {
	fs := driver.FeatureSet{IfExistsAppend: true, IfExistsUpsertOn: true}
	assert.True(t, fs.SupportsIfExists(driver.IfExistsAppend))
	assert.True(t, fs.SupportsIfExists(driver.IfExistsUpsertOn))
	assert.False(t, fs.SupportsIfExists(driver.IfExistsOverwrite))
	assert.False(t, fs.SupportsIfExists(driver.IfExistsError))
}

func TestContextWithSpan(t *testing.T) {
	ctx := driver.Context{Span: "outer"}
	inner := ctx.WithSpan("inner")
	assert.Equal(t, "outer", ctx.Span)
	assert.Equal(t, "inner", inner.Span)
}
