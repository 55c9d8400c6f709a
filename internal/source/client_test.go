package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbridge/internal/apperr"
	"orderbridge/internal/config"
	"orderbridge/internal/outbound"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.SourceConfig{URL: srv.URL, Token: "shp_test", APIVersion: "2024-10"}, outbound.Options{Timeout: 2 * time.Second})
}

func decodeGQL(t *testing.T, r *http.Request) gqlRequest {
	t.Helper()
	var req gqlRequest
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestGID(t *testing.T) {
	assert.Equal(t, "gid://shopify/Product/55", GID("Product", "55"))
	assert.Equal(t, "gid://shopify/Product/55", GID("Product", "gid://shopify/Product/55"))
	assert.Equal(t, "", GID("Product", " "))
	assert.Equal(t, "77", NumericID("gid://shopify/FulfillmentOrder/77"))
	assert.Equal(t, "77", NumericID("77"))
}

func TestFetchProducts_SingleBatchedCall(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/admin/api/2024-10/graphql.json", r.URL.Path)
		assert.Equal(t, "shp_test", r.Header.Get("X-Shopify-Access-Token"))
		req := decodeGQL(t, r)
		ids, _ := req.Variables["ids"].([]any)
		assert.Len(t, ids, 2, "duplicates collapse into one batch")
		_, _ = w.Write([]byte(`{"data":{"nodes":[
			{"id":"gid://shopify/Product/1","title":"Widget","handle":"widget","tags":["a"],"featuredImage":{"url":"https://img/1.png"}},
			null
		]}}`))
	})

	got, err := c.FetchProducts(context.Background(), []string{"gid://shopify/Product/1", "gid://shopify/Product/2", "gid://shopify/Product/1", ""})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	require.Contains(t, got, "gid://shopify/Product/1")
	assert.Equal(t, "Widget", got["gid://shopify/Product/1"].Title)
	assert.Equal(t, "https://img/1.png", got["gid://shopify/Product/1"].ImageURL)
	_, ok := got["gid://shopify/Product/2"]
	assert.False(t, ok, "unknown product stays absent")
}

func TestFetchProducts_NoIDsNoCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call to %s", r.URL.Path)
	})
	got, err := c.FetchProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchProducts_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusInternalServerError, `{"errors":"boom"}`},
		{"graphql errors", http.StatusOK, `{"errors":[{"message":"Throttled"}]}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.FetchProducts(context.Background(), []string{"gid://shopify/Product/1"})
			require.Error(t, err)
			assert.Equal(t, "upstream_error", apperr.Kind(err))
		})
	}
}

func TestFulfillmentOrders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/admin/api/2024-10/orders/1001/fulfillment_orders.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"fulfillment_orders":[{"id":9001,"status":"open"},{"id":9002,"status":"closed"}]}`))
	})
	fos, err := c.FulfillmentOrders(context.Background(), "1001")
	require.NoError(t, err)
	require.Len(t, fos, 2)
	assert.Equal(t, "9001", fos[0].ID.String())
}

func TestCreateFulfillment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeGQL(t, r)
		f := req.Variables["fulfillment"].(map[string]any)
		lines := f["lineItemsByFulfillmentOrder"].([]any)
		assert.Equal(t, "gid://shopify/FulfillmentOrder/9001", lines[0].(map[string]any)["fulfillmentOrderId"])
		assert.Equal(t, "JJFI123", f["trackingInfo"].(map[string]any)["number"])
		_, _ = w.Write([]byte(`{"data":{"fulfillmentCreate":{"fulfillment":{"id":"gid://shopify/Fulfillment/5","status":"SUCCESS"},"userErrors":[]}}}`))
	})
	got, err := c.CreateFulfillment(context.Background(), FulfillmentInput{
		FulfillmentOrderID: "9001",
		Tracking:           &TrackingInfo{Company: "Posti", Number: "JJFI123"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Fulfillment/5", got.ID)
}

func TestCreateFulfillment_UserErrorsVerbatim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"fulfillmentCreate":{"fulfillment":null,"userErrors":[{"field":["fulfillment"],"message":"Fulfillment order is closed"}]}}}`))
	})
	_, err := c.CreateFulfillment(context.Background(), FulfillmentInput{FulfillmentOrderID: "9001"})
	var up *apperr.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, []string{"Fulfillment order is closed"}, up.Details)
	assert.JSONEq(t, `[{"field":["fulfillment"],"message":"Fulfillment order is closed"}]`, string(up.Body))
}
