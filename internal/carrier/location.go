package carrier

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"orderbridge/internal/apperr"
	"orderbridge/internal/model"
)

const (
	defaultPickupLimit = 10
	maxPickupLimit     = 50
)

// PickupQuery is a location search around an address.
type PickupQuery struct {
	Street      string
	Postcode    string
	Locality    string
	CountryCode string
	Limit       int
}

// QueryFor builds a pickup-point search around the order's shipping address.
func QueryFor(o model.Order, limit int) PickupQuery {
	q := PickupQuery{Limit: limit}
	if a := o.ShippingAddress; a != nil {
		q.Street = a.Address1
		q.Postcode = a.Postcode
		q.Locality = a.City
		q.CountryCode = a.CountryCode
	}
	return q
}

type location struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address struct {
		StreetAddress string `json:"streetAddress"`
		Postcode      string `json:"postcode"`
		Locality      string `json:"locality"`
		CountryCode   string `json:"countryCode"`
	} `json:"address"`
	Distance float64 `json:"distance"`
}

// SearchPickupPoints asks the carrier for service points near the query address.
func (c *Client) SearchPickupPoints(ctx context.Context, q PickupQuery) ([]model.PickupPoint, error) {
	if strings.TrimSpace(q.Postcode) == "" && strings.TrimSpace(q.Locality) == "" {
		return nil, apperr.Invalid("postcode or locality required", "postcode", "locality")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPickupLimit
	}
	if limit > maxPickupLimit {
		limit = maxPickupLimit
	}
	params := url.Values{}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			params.Set(k, v)
		}
	}
	set("streetAddress", q.Street)
	set("postcode", q.Postcode)
	set("locality", q.Locality)
	set("countryCode", strings.ToUpper(q.CountryCode))
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Locations []location `json:"locations"`
	}
	if err := c.http.JSON(ctx, http.MethodGet, "/location/v1/search", params, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.PickupPoint, 0, len(resp.Locations))
	for _, l := range resp.Locations {
		out = append(out, model.PickupPoint{
			ID:          l.ID,
			Name:        l.Name,
			Street:      l.Address.StreetAddress,
			Postcode:    l.Address.Postcode,
			City:        l.Address.Locality,
			CountryCode: l.Address.CountryCode,
			Type:        l.Type,
			DistanceM:   l.Distance,
		})
	}
	return out, nil
}
