// Package ingest turns verified order webhooks into stored orders.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"orderbridge/internal/apperr"
	"orderbridge/internal/model"
)

// ProductFetcher is the catalog lookup used for enrichment.
type ProductFetcher interface {
	FetchProducts(ctx context.Context, ids []string) (map[string]*model.ProductSnapshot, error)
}

// OrderWriter is the part of the order store ingestion needs.
type OrderWriter interface {
	Upsert(ctx context.Context, o model.Order) error
	FindByExternalID(ctx context.Context, id string) (model.Order, error)
}

type Ingestor struct {
	Catalog ProductFetcher
	Store   OrderWriter
	Methods MethodTable
	Now     func() time.Time
	Log     *slog.Logger
}

// Decode parses a webhook body. The body must already be signature-checked.
func Decode(body []byte) (model.WebhookOrder, error) {
	var raw model.WebhookOrder
	if len(bytes.TrimSpace(body)) == 0 {
		return raw, apperr.Invalid("empty body")
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return raw, fmt.Errorf("%w: %v", apperr.Invalid("invalid JSON"), err)
	}
	if raw.ID.String() == "" {
		return raw, apperr.Invalid("missing order id", "id")
	}
	return raw, nil
}

// Ingest decodes, enriches, transforms and upserts one order. Enrichment failure
// aborts the ingestion and nothing is stored.
func (in *Ingestor) Ingest(ctx context.Context, body []byte) (model.Order, error) {
	raw, err := Decode(body)
	if err != nil {
		return model.Order{}, err
	}
	keys := ProductKeys(raw)
	enrichment, err := in.Catalog.FetchProducts(ctx, keys)
	if err != nil {
		return model.Order{}, fmt.Errorf("enrich order %s: %w", raw.ID, err)
	}

	methods := in.Methods
	if methods == nil {
		methods = DefaultMethodTable()
	}
	now := time.Now().UTC()
	if in.Now != nil {
		now = in.Now()
	}
	o := Transform(raw, enrichment, now, methods)
	if err := in.Store.Upsert(ctx, o); err != nil {
		return model.Order{}, fmt.Errorf("store order %s: %w", o.ExternalID, err)
	}
	in.logger().Info("order ingested", "externalId", o.ExternalID, "lines", len(o.LineItems),
		"enriched", len(enrichment), "requested", len(keys), "method", o.ShippingMethod)

	// re-read: the stored record keeps its first-ingest time and operator fields
	if stored, err := in.Store.FindByExternalID(ctx, o.ExternalID); err == nil {
		return stored, nil
	}
	return o, nil
}

func (in *Ingestor) logger() *slog.Logger {
	if in.Log != nil {
		return in.Log
	}
	return slog.Default()
}
