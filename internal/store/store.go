package store

import (
	"context"
	"time"

	"orderbridge/internal/apperr"
	"orderbridge/internal/model"
)

// DefaultListLimit is the page size ListRecent uses for a non-positive limit.
const DefaultListLimit = 50

// ErrNotFound is returned when no order matches the external id.
var ErrNotFound = apperr.ErrNotFound

// Store is the order ledger used by ingestion and the API server.
type Store interface {
	// Upsert inserts the order or overwrites the webhook-owned fields of the
	// existing record with the same external id.
	Upsert(ctx context.Context, o model.Order) error
	FindByExternalID(ctx context.Context, id string) (model.Order, error)
	// ListRecent returns up to limit orders, newest first. A non-positive limit
	// means DefaultListLimit.
	ListRecent(ctx context.Context, limit int) ([]model.Order, error)
	// UpdateFields applies an operator patch. It never creates a record.
	UpdateFields(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error)
	Ping(ctx context.Context) error
}

// mergeUpsert overlays the webhook-owned fields of next onto prev. Operator-owned
// fields and the first-ingest time stay as they were.
func mergeUpsert(prev, next model.Order) model.Order {
	out := prev.Clone()
	n := next.Clone()
	out.OrderNumber = n.OrderNumber
	out.LineItems = n.LineItems
	out.TotalItemCount = n.TotalItemCount
	out.ShippingAddress = n.ShippingAddress
	out.ShippingLines = n.ShippingLines
	out.SourceCreatedAt = n.SourceCreatedAt
	if !prev.MethodOverridden {
		out.ShippingMethod = n.ShippingMethod
	}
	out.UpdatedAt = stamp(n.UpdatedAt)
	return out
}

// insertUpsert is the record a first upsert creates: the webhook-owned fields of o
// with every operator-owned field left empty.
func insertUpsert(o model.Order) model.Order {
	created := stamp(o.CreatedAt)
	out := mergeUpsert(model.Order{ExternalID: o.ExternalID, CreatedAt: created}, o)
	if o.UpdatedAt.IsZero() {
		out.UpdatedAt = created
	}
	return out
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func validateUpsert(o model.Order) error {
	if o.ExternalID == "" {
		return apperr.Invalid("missing external id", "externalId")
	}
	return nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
