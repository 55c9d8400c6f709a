package ingest

import (
	"strings"
	"time"

	"orderbridge/internal/model"
	"orderbridge/internal/source"
)

// ProductKey is the enrichment lookup key for a webhook product id.
func ProductKey(productID string) string {
	return source.GID("Product", productID)
}

// ProductKeys returns the distinct enrichment keys referenced by the order, in line order.
func ProductKeys(raw model.WebhookOrder) []string {
	seen := map[string]bool{}
	var keys []string
	for _, li := range raw.LineItems {
		k := ProductKey(li.ProductID.String())
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// Transform maps a webhook order and its enrichment lookup into an Order. It does no
// I/O and never fails: missing optional input degrades to absent or default values.
func Transform(raw model.WebhookOrder, enrichment map[string]*model.ProductSnapshot, now time.Time, methods MethodTable) model.Order {
	o := model.Order{
		ExternalID:    strings.TrimSpace(raw.ID.String()),
		OrderNumber:   strings.TrimSpace(raw.OrderNumber.String()),
		LineItems:     make([]model.LineItem, 0, len(raw.LineItems)),
		ShippingLines: make([]model.ShippingLine, 0, len(raw.ShippingLines)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, li := range raw.LineItems {
		qty := quantity(li)
		key := ProductKey(li.ProductID.String())
		item := model.LineItem{
			Title:             li.Title,
			ProductID:         li.ProductID.String(),
			ExternalProductID: key,
			VariantID:         li.VariantID.String(),
			RequiresShipping:  li.RequiresShipping,
			Quantity:          qty,
		}
		if snap := enrichment[key]; snap != nil && key != "" {
			c := *snap
			c.Tags = append([]string(nil), snap.Tags...)
			item.EnrichmentData = &c
		}
		o.LineItems = append(o.LineItems, item)
		o.TotalItemCount += qty
	}

	if a := raw.ShippingAddress; a != nil {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = strings.TrimSpace(a.FirstName + " " + a.LastName)
		}
		o.ShippingAddress = &model.Address{
			Name:        name,
			Address1:    a.Address1,
			Address2:    a.Address2,
			City:        a.City,
			Postcode:    a.Zip,
			CountryCode: strings.ToUpper(a.CountryCode),
			Phone:       a.Phone,
		}
	}

	for _, sl := range raw.ShippingLines {
		o.ShippingLines = append(o.ShippingLines, model.ShippingLine{Title: sl.Title, Code: sl.Code, Price: sl.Price.String()})
	}
	o.ShippingMethod = methods.Resolve(o.ShippingLines)

	if t, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
		t = t.UTC()
		o.SourceCreatedAt = &t
	}
	return o
}

// quantity prefers current_quantity (net of refunds and edits) and clamps at zero.
func quantity(li model.WebhookLineItem) int {
	q := 0
	switch {
	case li.CurrentQuantity != nil:
		q = *li.CurrentQuantity
	case li.Quantity != nil:
		q = *li.Quantity
	}
	if q < 0 {
		return 0
	}
	return q
}
