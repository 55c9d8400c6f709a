package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbridge/internal/apperr"
	"orderbridge/internal/model"
	"orderbridge/internal/store"
)

type fakeCatalog struct {
	products map[string]*model.ProductSnapshot
	err      error
	calls    int
	lastIDs  []string
}

func (f *fakeCatalog) FetchProducts(ctx context.Context, ids []string) (map[string]*model.ProductSnapshot, error) {
	f.calls++
	f.lastIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]*model.ProductSnapshot{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

const exampleWebhook = `{"id":"1001","order_number":"A1","line_items":[{"product_id":"55","current_quantity":2,"requires_shipping":true,"title":"Widget"}],"shipping_address":{"name":"A B","city":"Helsinki","zip":"00100","country_code":"FI"},"shipping_lines":[{"title":"Standard - Pickup Point"}]}`

func newIngestor(cat *fakeCatalog, st store.Store) *Ingestor {
	return &Ingestor{Catalog: cat, Store: st, Methods: DefaultMethodTable(), Now: func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }}
}

func TestIngest_EndToEndWithoutCatalogMatch(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{}
	st := store.NewMemory(10)
	in := newIngestor(cat, st)

	o, err := in.Ingest(ctx, []byte(exampleWebhook))
	require.NoError(t, err)
	assert.Equal(t, 1, cat.calls)
	assert.Equal(t, []string{"gid://shopify/Product/55"}, cat.lastIDs)

	stored, err := st.FindByExternalID(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, o, stored)
	assert.Equal(t, "A1", stored.OrderNumber)
	assert.Equal(t, 2, stored.TotalItemCount)
	assert.Equal(t, model.MethodServicePoint, stored.ShippingMethod)
	require.Len(t, stored.LineItems, 1)
	assert.Nil(t, stored.LineItems[0].EnrichmentData)
	assert.Equal(t, "Helsinki", stored.ShippingAddress.City)
	assert.Equal(t, "00100", stored.ShippingAddress.Postcode)
}

func TestIngest_ReingestUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{products: map[string]*model.ProductSnapshot{"gid://shopify/Product/55": {ID: "gid://shopify/Product/55", Title: "Widget"}}}
	st := store.NewMemory(10)
	in := newIngestor(cat, st)
	_, err := in.Ingest(ctx, []byte(exampleWebhook))
	require.NoError(t, err)
	_, err = in.Ingest(ctx, []byte(exampleWebhook))
	require.NoError(t, err)
	all, _ := st.ListRecent(ctx, 50)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].LineItems[0].EnrichmentData)
}

func TestIngest_CatalogFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	cat := &fakeCatalog{err: &apperr.UpstreamError{Service: "source", StatusCode: 503}}
	st := store.NewMemory(10)
	_, err := newIngestor(cat, st).Ingest(ctx, []byte(exampleWebhook))
	require.Error(t, err)
	assert.Equal(t, "upstream_error", apperr.Kind(err))
	_, err = st.FindByExternalID(ctx, "1001")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestIngest_InvalidBody(t *testing.T) {
	cat := &fakeCatalog{}
	_, err := newIngestor(cat, store.NewMemory(10)).Ingest(context.Background(), []byte(`{"order_number":"x"}`))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, 0, cat.calls)
}
