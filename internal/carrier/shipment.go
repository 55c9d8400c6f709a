package carrier

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"orderbridge/internal/apperr"
	"orderbridge/internal/model"
)

type party struct {
	Name        string `json:"name" validate:"required"`
	Street      string `json:"street" validate:"required"`
	Street2     string `json:"street2,omitempty"`
	Postcode    string `json:"postcode" validate:"required"`
	City        string `json:"city" validate:"required"`
	CountryCode string `json:"countryCode" validate:"required,len=2"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

type parcel struct {
	Copies   int     `json:"copies"`
	WeightKg float64 `json:"weightKg"`
	LengthCm float64 `json:"lengthCm"`
	WidthCm  float64 `json:"widthCm"`
	HeightCm float64 `json:"heightCm"`
}

type shipmentRequest struct {
	Reference   string   `json:"reference"`
	ServiceID   string   `json:"serviceId" validate:"required"`
	Sender      party    `json:"sender"`
	Receiver    party    `json:"receiver"`
	Parcels     []parcel `json:"parcels"`
	PickupPoint string   `json:"pickupPointId,omitempty"`
}

type shipmentResponse struct {
	ID              string   `json:"id"`
	ShipmentID      string   `json:"shipmentId"`
	TrackingNumbers []string `json:"trackingNumbers"`
	Parcels         []struct {
		TrackingNumber string `json:"trackingNumber"`
	} `json:"parcels"`
	LabelURL string `json:"labelUrl"`
}

// RequestShipment submits one shipping order for o. It is never retried: a repeated
// submission may create a duplicate shipment.
func (c *Client) RequestShipment(ctx context.Context, o model.Order, serviceID string) (model.ShipmentResult, error) {
	req, err := c.buildShipment(o, serviceID)
	if err != nil {
		return model.ShipmentResult{}, err
	}
	var resp shipmentResponse
	if err := c.http.JSON(ctx, http.MethodPost, "/shipping/v1/orders", nil, req, &resp); err != nil {
		return model.ShipmentResult{}, err
	}
	res := model.ShipmentResult{
		ShipmentID:      firstNonEmpty(resp.ShipmentID, resp.ID),
		ServiceID:       req.ServiceID,
		TrackingNumbers: resp.TrackingNumbers,
		LabelURL:        resp.LabelURL,
		CreatedAt:       time.Now().UTC(),
	}
	if len(res.TrackingNumbers) == 0 {
		for _, p := range resp.Parcels {
			if p.TrackingNumber != "" {
				res.TrackingNumbers = append(res.TrackingNumbers, p.TrackingNumber)
			}
		}
	}
	if res.ShipmentID == "" {
		return model.ShipmentResult{}, &apperr.UpstreamError{Service: "carrier", StatusCode: http.StatusOK, Message: "response without shipment id"}
	}
	return res, nil
}

// buildShipment validates o and maps it to the carrier request. Every missing field
// is reported at once.
func (c *Client) buildShipment(o model.Order, serviceID string) (shipmentRequest, error) {
	req := shipmentRequest{
		Reference: firstNonEmpty(o.OrderNumber, o.ExternalID),
		ServiceID: strings.TrimSpace(serviceID),
		Sender: party{
			Name:        c.sender.Name,
			Street:      c.sender.Street,
			Postcode:    c.sender.Postcode,
			City:        c.sender.City,
			CountryCode: c.sender.CountryCode,
			Phone:       c.sender.Phone,
			Email:       c.sender.Email,
		},
	}
	if a := o.ShippingAddress; a != nil {
		req.Receiver = party{
			Name:        a.Name,
			Street:      a.Address1,
			Street2:     a.Address2,
			Postcode:    a.Postcode,
			City:        a.City,
			CountryCode: a.CountryCode,
			Phone:       a.Phone,
		}
	}

	var fields []string
	var verrs validator.ValidationErrors
	if err := c.validate.Struct(req); err != nil {
		if !errors.As(err, &verrs) {
			return req, err
		}
		for _, fe := range verrs {
			// shipmentRequest.receiver.postcode -> receiver.postcode
			ns := fe.Namespace()
			if i := strings.IndexByte(ns, '.'); i >= 0 {
				ns = ns[i+1:]
			}
			fields = append(fields, ns)
		}
	}

	if d := o.Dimensions; d == nil {
		fields = append(fields, "dimensions")
	} else {
		if err := c.validate.Struct(d); err != nil && errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, "dimensions."+fe.Field())
			}
		}
		req.Parcels = []parcel{{Copies: d.BoxCount, WeightKg: d.WeightKg, LengthCm: d.LengthCm, WidthCm: d.WidthCm, HeightCm: d.HeightCm}}
	}

	if o.ShippingMethod == model.MethodServicePoint {
		if o.PickupPoint == nil || o.PickupPoint.ID == "" {
			fields = append(fields, "pickupPoint")
		} else {
			req.PickupPoint = o.PickupPoint.ID
		}
	}

	if len(fields) > 0 {
		return req, apperr.Invalid("order is not ready for shipment", fields...)
	}
	return req, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
