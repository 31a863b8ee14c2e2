package stub_test

import (
	"context"
	"testing"

	"github.com/dbcrossbar/dbcrossbar/pkg/driver"
	"github.com/dbcrossbar/dbcrossbar/pkg/drivers/stub"
	"github.com/dbcrossbar/dbcrossbar/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFreshRegistry(t *testing.T) {
	t.Helper()
	locator.ResetForTesting()
	t.Cleanup(locator.ResetForTesting)
	locator.Register("bigml", stub.ParseBigML)
	locator.Register("shopify", stub.ParseShopify)
}

func TestShopifyIsMarkedUnstable(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("shopify:mystore")
	require.NoError(t, err)
	assert.True(t, stub.Unstable(handle.(stub.Locator)))
}

func TestBigMLIsNotUnstable(t *testing.T) {
	withFreshRegistry(t)
	_, handle, err := locator.Parse("bigml:mydataset")
	require.NoError(t, err)
	assert.False(t, stub.Unstable(handle.(stub.Locator)))
}

func TestDriverReportsUnsupportedForData(t *testing.T) {
	d := stub.New(stub.Locator{Scheme: "shopify"})
	ctx := driver.Context{Context: context.Background()}
	_, _, err := d.LocalData(ctx, nil, driver.SharedArgs{})
	require.Error(t, err)
}
