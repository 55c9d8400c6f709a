// Package source talks to the storefront Admin API: the batched catalog query used
// for enrichment and the fulfillment-order REST and GraphQL calls.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"orderbridge/internal/apperr"
	"orderbridge/internal/config"
	"orderbridge/internal/outbound"
)

const tokenHeader = "X-Shopify-Access-Token"

type Client struct {
	http    *outbound.Client
	version string
}

func New(cfg config.SourceConfig, o outbound.Options) *Client {
	h := o.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if cfg.Token != "" {
		h.Set(tokenHeader, cfg.Token)
	}
	o.Header = h
	v := cfg.APIVersion
	if v == "" {
		v = config.Default().Source.APIVersion
	}
	return &Client{http: outbound.New("source", cfg.URL, o), version: v}
}

// GID turns a numeric resource id into its global id form. Ids already in gid form are returned as-is.
func GID(resource, id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	return fmt.Sprintf("gid://shopify/%s/%s", resource, id)
}

// NumericID strips the gid prefix, if any.
func NumericID(gid string) string {
	if i := strings.LastIndexByte(gid, '/'); i >= 0 && strings.HasPrefix(gid, "gid://") {
		return gid[i+1:]
	}
	return gid
}

func (c *Client) adminPath(suffix string) string {
	return "/admin/api/" + c.version + suffix
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// graphql runs one Admin GraphQL operation and decodes data into out.
// Top-level GraphQL errors are upstream failures even on HTTP 200.
func (c *Client) graphql(ctx context.Context, query string, vars map[string]any, out any) error {
	var resp gqlResponse
	if err := c.http.JSON(ctx, http.MethodPost, c.adminPath("/graphql.json"), nil, gqlRequest{Query: query, Variables: vars}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		e := &apperr.UpstreamError{Service: "source", StatusCode: http.StatusOK, Message: "graphql errors"}
		for _, ge := range resp.Errors {
			e.Details = append(e.Details, ge.Message)
		}
		return e
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return &apperr.UpstreamError{Service: "source", StatusCode: http.StatusOK, Message: "graphql response without data"}
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return &apperr.UpstreamError{Service: "source", StatusCode: http.StatusOK, Message: "undecodable graphql data", Err: err}
	}
	return nil
}
