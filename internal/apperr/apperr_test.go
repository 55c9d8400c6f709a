package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndStatus(t *testing.T) {
	t.Parallel()

	upstream := &UpstreamError{Service: "carrier", StatusCode: 422, Code: "INVALID_POSTCODE", Message: "bad postcode"}
	timeout := &UpstreamError{Service: "catalog", Err: context.DeadlineExceeded}

	tests := []struct {
		name   string
		err    error
		kind   string
		status int
	}{
		{name: "nil", err: nil, kind: "", status: http.StatusOK},
		{name: "unauthorized", err: ErrUnauthorized, kind: "unauthorized", status: http.StatusUnauthorized},
		{name: "not_found_wrapped", err: fmt.Errorf("order 1: %w", ErrNotFound), kind: "not_found", status: http.StatusNotFound},
		{name: "invalid_typed", err: Invalid("missing fields", "city"), kind: "invalid_input", status: http.StatusBadRequest},
		{name: "no_fulfillment_order", err: ErrNoFulfillmentOrder, kind: "no_fulfillment_order", status: http.StatusConflict},
		{name: "upstream", err: fmt.Errorf("ship: %w", upstream), kind: "upstream_error", status: http.StatusBadGateway},
		{name: "upstream_timeout", err: timeout, kind: "timeout", status: http.StatusGatewayTimeout},
		{name: "canceled", err: context.Canceled, kind: "canceled", status: http.StatusRequestTimeout},
		{name: "unknown", err: errors.New("boom"), kind: "internal", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.kind, Kind(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestInvalidInputErrorMessage(t *testing.T) {
	err := Invalid("missing required fields", "dimensions", "shippingAddress.city")
	assert.EqualError(t, err, "missing required fields: dimensions, shippingAddress.city")
}

func TestUpstreamErrorMessage(t *testing.T) {
	err := &UpstreamError{Service: "source", Details: []string{"lineItems: invalid", "tracking: missing"}}
	assert.EqualError(t, err, "source: lineItems: invalid; tracking: missing")
}
