package outbound

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbridge/internal/apperr"
)

func TestJSON_SendsHeadersAndDecodes(t *testing.T) {
	var gotAuth, gotCT, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Authorization", "Bearer tok")
	c := New("carrier", srv.URL+"/", Options{Timeout: time.Second, Header: h, HTTP: srv.Client()})
	var out struct{ OK bool }
	err := c.JSON(context.Background(), http.MethodPost, "/x", url.Values{"a": {"1"}}, map[string]string{"k": "v"}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "a=1", gotQuery)
}

func TestJSON_Non2xxPassesBodyThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"E42","message":"bad postcode"}`))
	}))
	defer srv.Close()

	c := New("carrier", srv.URL, Options{Timeout: time.Second})
	err := c.JSON(context.Background(), http.MethodPost, "/x", nil, struct{}{}, nil)
	var up *apperr.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, 422, up.StatusCode)
	assert.Equal(t, "E42", up.Code)
	assert.Equal(t, "bad postcode", up.Message)
	assert.JSONEq(t, `{"code":"E42","message":"bad postcode"}`, string(up.Body))
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
}

func TestJSON_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New("source", srv.URL, Options{})
	err := c.JSON(context.Background(), http.MethodGet, "/", nil, nil, nil)
	var up *apperr.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Nil(t, up.Body)
	assert.Contains(t, up.Message, "gateway exploded")
}

func TestDo_TimeoutSurfacesAsDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New("catalog", srv.URL, Options{Timeout: 50 * time.Millisecond})
	_, err := c.Do(context.Background(), http.MethodGet, "/slow", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Equal(t, "timeout", apperr.Kind(err))
}

func TestDo_MissingBaseURL(t *testing.T) {
	c := New("carrier", "", Options{})
	_, err := c.Do(context.Background(), http.MethodGet, "/", nil, nil)
	assert.Equal(t, "upstream_error", apperr.Kind(err))
}

func TestDo_RateLimitRefusalIsLocalTimeout(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New("source", srv.URL, Options{Timeout: 100 * time.Millisecond, RPS: 1, Burst: 1})
	require.NoError(t, c.JSON(context.Background(), http.MethodGet, "/", nil, nil, nil))

	// next token is a second away, past the 100ms deadline
	err := c.JSON(context.Background(), http.MethodGet, "/", nil, nil, nil)
	require.Error(t, err)
	var up *apperr.UpstreamError
	assert.False(t, errors.As(err, &up), "got upstream error %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "timeout", apperr.Kind(err))
	assert.Equal(t, http.StatusGatewayTimeout, apperr.HTTPStatus(err))
	assert.EqualValues(t, 1, hits.Load())
}
