package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"orderbridge/internal/apperr"
	"orderbridge/internal/carrier"
	"orderbridge/internal/metrics"
	"orderbridge/internal/model"
	"orderbridge/internal/webhooks"
)

const maxWebhookBytes = 2 << 20

// WebhookOrdersHandler handles POST /webhook/orders. The signature is checked over
// the raw bytes before anything is parsed.
func (s *Server) WebhookOrdersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusBadRequest, "Invalid body", "", r.URL.Path)
		return
	}
	if !webhooks.VerifyKey(body, r.Header.Get(webhooks.SignatureHeader), s.Config.WebhookKey()) {
		metrics.WebhookIngests.WithLabelValues("unauthorized").Inc()
		s.writeError(w, r, apperr.ErrUnauthorized)
		return
	}

	o, err := s.Ingest.Ingest(r.Context(), body)
	if err != nil {
		metrics.WebhookIngests.WithLabelValues(apperr.Kind(err)).Inc()
		s.writeError(w, r, err)
		return
	}
	metrics.WebhookIngests.WithLabelValues("ok").Inc()
	s.publish(EventOrderIngested, o)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "externalId": o.ExternalID})
}

// OrdersHandler handles GET /orders: newest first, capped at the configured list limit.
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := s.Config.ListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, apperr.Invalid("limit must be a positive integer", "limit"))
			return
		}
		if n < limit {
			limit = n
		}
	}
	orders, err := s.Store.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type orderIDRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

// LookupHandler handles POST /orders/lookup.
func (s *Server) LookupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req orderIDRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.Store.FindByExternalID(r.Context(), req.OrderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type measurementsRequest struct {
	OrderID    string               `json:"orderId" validate:"required"`
	Dimensions *model.Dimensions    `json:"dimensions" validate:"required"`
	Method     model.ShippingMethod `json:"method,omitempty" validate:"omitempty,oneof=service_point home_delivery"`
}

// MeasurementsHandler handles POST /orders/measurements. A method sent here overrides
// the one inferred from the webhook, including on later re-deliveries.
func (s *Server) MeasurementsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req measurementsRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patch := model.OrderPatch{Dimensions: req.Dimensions}
	if req.Method != "" {
		m := req.Method
		patch.ShippingMethod = &m
	}
	s.applyPatch(w, r, req.OrderID, patch)
}

type pickupPointRequest struct {
	OrderID     string             `json:"orderId" validate:"required"`
	PickupPoint *model.PickupPoint `json:"pickupPoint" validate:"required"`
}

// PickupPointHandler handles POST /orders/pickup-point.
func (s *Server) PickupPointHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req pickupPointRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.applyPatch(w, r, req.OrderID, model.OrderPatch{PickupPoint: req.PickupPoint})
}

func (s *Server) applyPatch(w http.ResponseWriter, r *http.Request, id string, patch model.OrderPatch) {
	o, err := s.Store.UpdateFields(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(EventOrderUpdated, o)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": o})
}

// PickupPointsHandler handles GET /pickup-points, searching either around a stored
// order's address (?orderId=) or around explicit address parameters.
func (s *Server) PickupPointsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, apperr.Invalid("limit must be a positive integer", "limit"))
			return
		}
		limit = n
	}
	var query carrier.PickupQuery
	if id := q.Get("orderId"); id != "" {
		o, err := s.Store.FindByExternalID(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		query = carrier.QueryFor(o, limit)
	} else {
		query = carrier.PickupQuery{
			Street:      q.Get("street"),
			Postcode:    q.Get("postcode"),
			Locality:    q.Get("locality"),
			CountryCode: q.Get("countryCode"),
			Limit:       limit,
		}
	}
	points, err := s.Carrier.SearchPickupPoints(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pickupPoints": points})
}

type shipmentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	ServiceID string `json:"serviceId" validate:"required"`
}

// ShipmentHandler handles POST /orders/shipment. The carrier call is made once; a
// failure is returned to the caller, who decides whether to resubmit.
func (s *Server) ShipmentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req shipmentRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	o, err := s.Store.FindByExternalID(r.Context(), req.OrderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Carrier.RequestShipment(r.Context(), o, req.ServiceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// the label exists at the carrier now; record it even if the client went away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	updated, err := s.Store.UpdateFields(ctx, o.ExternalID, model.OrderPatch{Shipment: &res})
	if err != nil {
		s.logger(r).Error("shipment created but not recorded", "externalId", o.ExternalID, "shipmentId", res.ShipmentID, "err", err)
	} else {
		s.publish(EventOrderShipmentCreated, updated)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "shipment": res})
}

// FulfillHandler handles POST /orders/fulfill.
func (s *Server) FulfillHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req orderIDRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Fulfill.FulfillOrder(r.Context(), req.OrderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(EventOrderFulfilled, res.Order)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "fulfillmentId": res.FulfillmentID, "order": res.Order})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface{ Ping(ctx context.Context) error }
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	for name, dep := range map[string]any{"store": s.Store, "broker": s.Broker} {
		if p, ok := dep.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				writeProblem(w, http.StatusServiceUnavailable, "Not Ready", name+" unavailable", r.URL.Path)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
