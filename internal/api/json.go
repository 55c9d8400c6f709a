package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"orderbridge/internal/apperr"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string           `json:"type"`
	Title    string           `json:"title"`
	Status   int              `json:"status"`
	Code     string           `json:"code,omitempty"`
	Detail   string           `json:"detail,omitempty"`
	Instance string           `json:"instance,omitempty"`
	Fields   []string         `json:"fields,omitempty"`
	Upstream *UpstreamProblem `json:"upstream,omitempty"`
}

// UpstreamProblem carries what a catalog, source or carrier API answered.
type UpstreamProblem struct {
	Service string          `json:"service"`
	Status  int             `json:"status,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Details []string        `json:"details,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Code:     codeForStatus(status),
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps err onto its problem response. Internal errors are logged and
// answered with a generic detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	p := Problem{Type: "about:blank", Status: status, Code: apperr.Kind(err), Instance: r.URL.Path}
	switch p.Code {
	case "unauthorized":
		p.Title = "Unauthorized"
	case "not_found":
		p.Title = "Not Found"
		p.Detail = "order not found"
	case "invalid_input":
		p.Title = "Invalid Input"
		p.Detail = err.Error()
		var inv *apperr.InvalidInputError
		if errors.As(err, &inv) {
			p.Detail = inv.Reason
			p.Fields = inv.Fields
		}
	case "no_fulfillment_order":
		p.Title = "No Fulfillment Order"
		p.Detail = "the source system has no fulfillment order for this order"
	case "timeout":
		p.Title = "Upstream Timeout"
		p.Detail = "an upstream call did not answer in time"
	case "canceled":
		p.Title = "Request Canceled"
	case "upstream_error":
		p.Title = "Upstream Error"
		var up *apperr.UpstreamError
		if errors.As(err, &up) {
			p.Detail = up.Service + " call failed"
			p.Upstream = &UpstreamProblem{
				Service: up.Service,
				Status:  up.StatusCode,
				Code:    up.Code,
				Message: up.Message,
				Details: up.Details,
				Body:    up.Body,
			}
		}
	default:
		p.Title = "Internal Server Error"
		p.Detail = "unexpected error"
	}
	if status >= 500 {
		s.logger(r).Error("request failed", "code", p.Code, "err", err)
	} else {
		s.logger(r).Info("request rejected", "code", p.Code, "err", err)
	}
	writeJSON(w, status, p)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= 500 {
		return "internal"
	}
	return ""
}
