package ingest

import (
	"fmt"

	"orderbridge/internal/model"
)

// MethodTable maps an exact shipping-line title to the shipping method it selects.
// Titles not in the table select home delivery.
type MethodTable map[string]model.ShippingMethod

// DefaultMethodTable is the built-in title table.
func DefaultMethodTable() MethodTable {
	return MethodTable{
		"Standard - Pickup Point": model.MethodServicePoint,
		"Pickup Point":            model.MethodServicePoint,
	}
}

// NewMethodTable builds a table from configured title → method strings.
func NewMethodTable(titles map[string]string) (MethodTable, error) {
	t := make(MethodTable, len(titles))
	for title, m := range titles {
		method := model.ShippingMethod(m)
		if !method.Valid() {
			return nil, fmt.Errorf("shipping title %q: unknown method %q", title, m)
		}
		t[title] = method
	}
	return t, nil
}

// Resolve returns the method of the first line whose title is in the table.
func (t MethodTable) Resolve(lines []model.ShippingLine) model.ShippingMethod {
	for _, l := range lines {
		if m, ok := t[l.Title]; ok {
			return m
		}
	}
	return model.MethodHomeDelivery
}
