// Package api implements the HTTP surface of the order bridge.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderbridge/internal/auth"
	"orderbridge/internal/carrier"
	"orderbridge/internal/config"
	"orderbridge/internal/fulfillment"
	"orderbridge/internal/metrics"
	"orderbridge/internal/model"
	"orderbridge/internal/store"
)

type WebhookIngestor interface {
	Ingest(ctx context.Context, body []byte) (model.Order, error)
}

type CarrierClient interface {
	RequestShipment(ctx context.Context, o model.Order, serviceID string) (model.ShipmentResult, error)
	SearchPickupPoints(ctx context.Context, q carrier.PickupQuery) ([]model.PickupPoint, error)
}

type FulfillmentNotifier interface {
	FulfillOrder(ctx context.Context, externalID string) (fulfillment.Result, error)
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Store   store.Store
	Ingest  WebhookIngestor
	Carrier CarrierClient
	Fulfill FulfillmentNotifier
	Broker  EventBroker
	Log     *slog.Logger
}

type Server struct {
	Config  config.Config
	Store   store.Store
	Ingest  WebhookIngestor
	Carrier CarrierClient
	Fulfill FulfillmentNotifier
	Auth    *auth.Verifier
	Broker  EventBroker
	Log     *slog.Logger

	validate *validator.Validate
}

func NewServer(cfg config.Config, d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	broker := d.Broker
	if broker == nil {
		broker = NewBroker()
	}
	return &Server{
		Config:   cfg,
		Store:    d.Store,
		Ingest:   d.Ingest,
		Carrier:  d.Carrier,
		Fulfill:  d.Fulfill,
		Auth:     auth.New(cfg.Auth),
		Broker:   broker,
		Log:      log,
		validate: newValidator(),
	}
}

// Routes builds the HTTP handler. Operator endpoints sit behind auth; the webhook,
// health and metrics endpoints do not.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	op := func(h http.HandlerFunc) http.Handler { return s.requireOperator(h) }

	// Inbound webhook (signature checked in the handler)
	mux.HandleFunc("/webhook/orders", s.WebhookOrdersHandler)

	// Orders
	mux.Handle("/orders", op(s.OrdersHandler))
	mux.Handle("/orders/lookup", op(s.LookupHandler))
	mux.Handle("/orders/measurements", op(s.MeasurementsHandler))
	mux.Handle("/orders/pickup-point", op(s.PickupPointHandler))
	mux.Handle("/orders/shipment", op(s.ShipmentHandler))
	mux.Handle("/orders/fulfill", op(s.FulfillHandler))
	mux.Handle("/orders/ws", op(s.OrdersWSHandler))
	mux.Handle("/pickup-points", op(s.PickupPointsHandler))

	// Health & diagnostics
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/info", op(s.DebugJSON))

	return s.logMiddleware(s.corsMiddleware(mux))
}

func (s *Server) publish(typ string, o model.Order) {
	if s.Broker == nil {
		return
	}
	s.Broker.Publish(ordersTopic, newOrderEvent(typ, o))
}
