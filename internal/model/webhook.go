package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound order webhook payload. Only the fields the ledger uses are decoded.

type WebhookOrder struct {
	ID              FlexString            `json:"id"`
	OrderNumber     FlexString            `json:"order_number"`
	LineItems       []WebhookLineItem     `json:"line_items"`
	ShippingAddress *WebhookAddress       `json:"shipping_address"`
	ShippingLines   []WebhookShippingLine `json:"shipping_lines"`
	CreatedAt       string                `json:"created_at"`
}

type WebhookLineItem struct {
	ProductID        FlexString `json:"product_id"`
	VariantID        FlexString `json:"variant_id"`
	Title            string     `json:"title"`
	CurrentQuantity  *int       `json:"current_quantity"`
	Quantity         *int       `json:"quantity"`
	RequiresShipping bool       `json:"requires_shipping"`
}

type WebhookAddress struct {
	Name        string `json:"name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
}

type WebhookShippingLine struct {
	Title string     `json:"title"`
	Code  string     `json:"code"`
	Price FlexString `json:"price"`
}

// FlexString decodes a JSON string or number into its textual form.
// Source systems send ids as 64-bit numbers, which must not pass through float64.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }
