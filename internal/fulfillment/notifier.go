// Package fulfillment marks stored orders fulfilled in the source system.
package fulfillment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"orderbridge/internal/apperr"
	"orderbridge/internal/model"
	"orderbridge/internal/source"
)

// Source is the part of the source client the notifier calls.
type Source interface {
	FulfillmentOrders(ctx context.Context, orderID string) ([]source.FulfillmentOrder, error)
	CreateFulfillment(ctx context.Context, in source.FulfillmentInput) (source.Fulfillment, error)
}

// Orders is the part of the order store the notifier needs.
type Orders interface {
	FindByExternalID(ctx context.Context, id string) (model.Order, error)
	UpdateFields(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error)
}

type Notifier struct {
	Source          Source
	Store           Orders
	TrackingCompany string
	NotifyCustomer  bool
	Now             func() time.Time
	Log             *slog.Logger
}

type Result struct {
	Order              model.Order `json:"order"`
	FulfillmentID      string      `json:"fulfillmentId"`
	FulfillmentOrderID string      `json:"fulfillmentOrderId"`
}

// FulfillOrder runs the lookup-then-create sequence once. If the create step fails
// the local record stays unfulfilled and nothing is compensated upstream.
func (n *Notifier) FulfillOrder(ctx context.Context, externalID string) (Result, error) {
	o, err := n.Store.FindByExternalID(ctx, externalID)
	if err != nil {
		return Result{}, err
	}

	fos, err := n.Source.FulfillmentOrders(ctx, o.ExternalID)
	if err != nil {
		return Result{}, fmt.Errorf("list fulfillment orders for %s: %w", o.ExternalID, err)
	}
	if len(fos) == 0 || fos[0].ID.String() == "" {
		return Result{}, apperr.ErrNoFulfillmentOrder
	}
	foID := fos[0].ID.String()

	in := source.FulfillmentInput{FulfillmentOrderID: foID, NotifyCustomer: n.NotifyCustomer}
	if s := o.Shipment; s != nil && len(s.TrackingNumbers) > 0 {
		in.Tracking = &source.TrackingInfo{Company: n.TrackingCompany, Number: s.TrackingNumbers[0]}
	}
	f, err := n.Source.CreateFulfillment(ctx, in)
	if err != nil {
		n.logger().Warn("fulfillment rejected", "externalId", o.ExternalID, "fulfillmentOrderId", foID, "err", err)
		return Result{}, fmt.Errorf("create fulfillment for %s: %w", o.ExternalID, err)
	}

	now := time.Now().UTC()
	if n.Now != nil {
		now = n.Now()
	}
	done := true
	updated, err := n.Store.UpdateFields(ctx, o.ExternalID, model.OrderPatch{IsFulfilled: &done, FulfilledAt: &now, FulfillmentID: &f.ID})
	if err != nil {
		// upstream already fulfilled; surface so the operator can reconcile
		return Result{}, fmt.Errorf("record fulfillment %s for %s: %w", f.ID, o.ExternalID, err)
	}
	n.logger().Info("order fulfilled", "externalId", o.ExternalID, "fulfillmentId", f.ID)
	return Result{Order: updated, FulfillmentID: f.ID, FulfillmentOrderID: foID}, nil
}

func (n *Notifier) logger() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}
