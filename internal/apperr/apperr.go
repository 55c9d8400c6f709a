// Package apperr defines the error taxonomy shared by the ledger, the outbound
// clients and the HTTP layer.
package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNoFulfillmentOrder = errors.New("no fulfillment order")
)

// InvalidInputError lists the request fields that are missing or malformed.
type InvalidInputError struct {
	Reason string
	Fields []string
}

func (e *InvalidInputError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// Invalid builds an InvalidInputError.
func Invalid(reason string, fields ...string) error {
	return &InvalidInputError{Reason: reason, Fields: fields}
}

// UpstreamError is a non-success answer (or transport failure) from the catalog,
// source or carrier API. Body is the upstream's own error payload, if it sent one.
type UpstreamError struct {
	Service    string
	StatusCode int
	Code       string
	Message    string
	Details    []string
	Body       json.RawMessage
	Err        error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " returned %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Kind returns the stable error code used in problem responses and metrics.
func Kind(err error) string {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNoFulfillmentOrder):
		return "no_fulfillment_order"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &upstream):
		return "upstream_error"
	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "unauthorized":
		return http.StatusUnauthorized
	case "not_found":
		return http.StatusNotFound
	case "invalid_input":
		return http.StatusBadRequest
	case "no_fulfillment_order":
		return http.StatusConflict
	case "timeout":
		return http.StatusGatewayTimeout
	case "canceled":
		return http.StatusRequestTimeout
	case "upstream_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
