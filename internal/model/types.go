package model

import "time"

// Core domain types for the order ledger.

type ShippingMethod string

const (
	MethodServicePoint ShippingMethod = "service_point"
	MethodHomeDelivery ShippingMethod = "home_delivery"
)

// Valid reports whether m is one of the known shipping methods.
func (m ShippingMethod) Valid() bool {
	return m == MethodServicePoint || m == MethodHomeDelivery
}

type Order struct {
	ExternalID       string          `json:"externalId"`
	OrderNumber      string          `json:"orderNumber"`
	LineItems        []LineItem      `json:"lineItems"`
	TotalItemCount   int             `json:"totalItemCount"`
	ShippingAddress  *Address        `json:"shippingAddress,omitempty"`
	ShippingLines    []ShippingLine  `json:"shippingLines"`
	Dimensions       *Dimensions     `json:"dimensions,omitempty"`
	PickupPoint      *PickupPoint    `json:"pickupPoint,omitempty"`
	ShippingMethod   ShippingMethod  `json:"shippingMethod"`
	MethodOverridden bool            `json:"methodOverridden,omitempty"`
	Shipment         *ShipmentResult `json:"shipment,omitempty"`
	IsFulfilled      bool            `json:"isFulfilled"`
	FulfilledAt      *time.Time      `json:"fulfilledAt,omitempty"`
	FulfillmentID    string          `json:"fulfillmentId,omitempty"`
	SourceCreatedAt  *time.Time      `json:"sourceCreatedAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type LineItem struct {
	Title             string `json:"title"`
	ProductID         string `json:"productId,omitempty"`
	ExternalProductID string `json:"externalProductId,omitempty"` // enrichment lookup key
	VariantID         string `json:"variantId,omitempty"`
	RequiresShipping  bool   `json:"requiresShipping"`
	Quantity          int    `json:"quantity"`
	// EnrichmentData is nil when the catalog had no match.
	EnrichmentData *ProductSnapshot `json:"enrichmentData"`
}

type Address struct {
	Name        string `json:"name,omitempty"`
	Address1    string `json:"address1,omitempty"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type ShippingLine struct {
	Title string `json:"title"`
	Code  string `json:"code,omitempty"`
	Price string `json:"price,omitempty"`
}

type Dimensions struct {
	LengthCm float64 `json:"lengthCm" validate:"gt=0"`
	WidthCm  float64 `json:"widthCm" validate:"gt=0"`
	HeightCm float64 `json:"heightCm" validate:"gt=0"`
	WeightKg float64 `json:"weightKg" validate:"gt=0"`
	BoxCount int     `json:"boxCount" validate:"gte=1"`
}

// PickupPoint is a carrier location (parcel locker, service point).
type PickupPoint struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name,omitempty"`
	Street      string  `json:"street,omitempty"`
	Postcode    string  `json:"postcode,omitempty"`
	City        string  `json:"city,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
	Type        string  `json:"type,omitempty"`
	DistanceM   float64 `json:"distanceM,omitempty"`
}

// ProductSnapshot is the catalog data attached to a line item.
type ProductSnapshot struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Handle      string   `json:"handle,omitempty"`
	Vendor      string   `json:"vendor,omitempty"`
	ProductType string   `json:"productType,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

type ShipmentResult struct {
	ShipmentID      string    `json:"shipmentId"`
	ServiceID       string    `json:"serviceId"`
	TrackingNumbers []string  `json:"trackingNumbers,omitempty"`
	LabelURL        string    `json:"labelUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// OrderPatch carries operator-owned fields for Store.UpdateFields. Nil fields are left unchanged.
type OrderPatch struct {
	Dimensions     *Dimensions
	PickupPoint    *PickupPoint
	ShippingMethod *ShippingMethod // also marks the method as operator-overridden
	Shipment       *ShipmentResult
	IsFulfilled    *bool
	FulfilledAt    *time.Time
	FulfillmentID  *string
}

// Empty reports whether the patch would change nothing.
func (p OrderPatch) Empty() bool {
	return p.Dimensions == nil && p.PickupPoint == nil && p.ShippingMethod == nil &&
		p.Shipment == nil && p.IsFulfilled == nil && p.FulfilledAt == nil && p.FulfillmentID == nil
}

// Apply copies the non-nil patch fields onto o.
func (p OrderPatch) Apply(o *Order) {
	if p.Dimensions != nil {
		d := *p.Dimensions
		o.Dimensions = &d
	}
	if p.PickupPoint != nil {
		pp := *p.PickupPoint
		o.PickupPoint = &pp
	}
	if p.ShippingMethod != nil {
		o.ShippingMethod = *p.ShippingMethod
		o.MethodOverridden = true
	}
	if p.Shipment != nil {
		s := *p.Shipment
		s.TrackingNumbers = append([]string(nil), p.Shipment.TrackingNumbers...)
		o.Shipment = &s
	}
	if p.IsFulfilled != nil {
		o.IsFulfilled = *p.IsFulfilled
	}
	if p.FulfilledAt != nil {
		t := *p.FulfilledAt
		o.FulfilledAt = &t
	}
	if p.FulfillmentID != nil {
		o.FulfillmentID = *p.FulfillmentID
	}
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	c := o
	if o.LineItems != nil {
		c.LineItems = make([]LineItem, len(o.LineItems))
		for i, li := range o.LineItems {
			c.LineItems[i] = li
			if li.EnrichmentData != nil {
				snap := *li.EnrichmentData
				snap.Tags = append([]string(nil), li.EnrichmentData.Tags...)
				c.LineItems[i].EnrichmentData = &snap
			}
		}
	}
	if o.ShippingLines != nil {
		c.ShippingLines = append([]ShippingLine(nil), o.ShippingLines...)
	}
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		c.ShippingAddress = &a
	}
	if o.Dimensions != nil {
		d := *o.Dimensions
		c.Dimensions = &d
	}
	if o.PickupPoint != nil {
		pp := *o.PickupPoint
		c.PickupPoint = &pp
	}
	if o.Shipment != nil {
		s := *o.Shipment
		s.TrackingNumbers = append([]string(nil), o.Shipment.TrackingNumbers...)
		c.Shipment = &s
	}
	if o.FulfilledAt != nil {
		t := *o.FulfilledAt
		c.FulfilledAt = &t
	}
	if o.SourceCreatedAt != nil {
		t := *o.SourceCreatedAt
		c.SourceCreatedAt = &t
	}
	return c
}
