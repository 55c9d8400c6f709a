package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"orderbridge/internal/apperr"
	"orderbridge/internal/model"
)

// FulfillmentOrder is the subset of the REST fulfillment-order resource we use.
type FulfillmentOrder struct {
	ID     model.FlexString `json:"id"`
	Status string           `json:"status"`
}

// FulfillmentOrders lists the fulfillment orders of a source order.
func (c *Client) FulfillmentOrders(ctx context.Context, orderID string) ([]FulfillmentOrder, error) {
	var resp struct {
		FulfillmentOrders []FulfillmentOrder `json:"fulfillment_orders"`
	}
	path := c.adminPath("/orders/" + url.PathEscape(NumericID(orderID)) + "/fulfillment_orders.json")
	if err := c.http.JSON(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.FulfillmentOrders, nil
}

type TrackingInfo struct {
	Company string `json:"company,omitempty"`
	Number  string `json:"number,omitempty"`
	URL     string `json:"url,omitempty"`
}

type FulfillmentInput struct {
	FulfillmentOrderID string // numeric or gid
	NotifyCustomer     bool
	Tracking           *TrackingInfo
}

type Fulfillment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

const fulfillmentCreateMutation = `mutation FulfillmentCreate($fulfillment: FulfillmentInput!) {
  fulfillmentCreate(fulfillment: $fulfillment) {
    fulfillment { id status }
    userErrors { field message }
  }
}`

// CreateFulfillment submits fulfillmentCreate. Business-level userErrors are returned
// verbatim as an UpstreamError.
func (c *Client) CreateFulfillment(ctx context.Context, in FulfillmentInput) (Fulfillment, error) {
	f := map[string]any{
		"notifyCustomer": in.NotifyCustomer,
		"lineItemsByFulfillmentOrder": []map[string]any{
			{"fulfillmentOrderId": GID("FulfillmentOrder", in.FulfillmentOrderID)},
		},
	}
	if in.Tracking != nil {
		f["trackingInfo"] = in.Tracking
	}

	var data struct {
		FulfillmentCreate struct {
			Fulfillment *Fulfillment    `json:"fulfillment"`
			UserErrors  json.RawMessage `json:"userErrors"`
		} `json:"fulfillmentCreate"`
	}
	if err := c.graphql(ctx, fulfillmentCreateMutation, map[string]any{"fulfillment": f}, &data); err != nil {
		return Fulfillment{}, err
	}
	res := data.FulfillmentCreate
	var userErrs []UserError
	if len(res.UserErrors) > 0 {
		_ = json.Unmarshal(res.UserErrors, &userErrs)
	}
	if len(userErrs) > 0 {
		e := &apperr.UpstreamError{Service: "source", StatusCode: http.StatusOK, Message: "fulfillmentCreate rejected", Body: res.UserErrors}
		for _, ue := range userErrs {
			e.Details = append(e.Details, ue.Message)
		}
		return Fulfillment{}, e
	}
	if res.Fulfillment == nil {
		return Fulfillment{}, &apperr.UpstreamError{Service: "source", StatusCode: http.StatusOK, Message: "fulfillmentCreate returned no fulfillment"}
	}
	return *res.Fulfillment, nil
}
