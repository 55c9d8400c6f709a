package store

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbridge/internal/model"
)

func sampleOrder(id string, at time.Time) model.Order {
	return model.Order{
		ExternalID:     id,
		OrderNumber:    "A-" + id,
		LineItems:      []model.LineItem{{Title: "Widget", ProductID: "55", ExternalProductID: "gid://shopify/Product/55", Quantity: 2, RequiresShipping: true}},
		TotalItemCount: 2,
		ShippingAddress: &model.Address{
			Name: "A B", Address1: "Street 1", City: "Helsinki", Postcode: "00100", CountryCode: "FI",
		},
		ShippingLines:  []model.ShippingLine{{Title: "Standard - Pickup Point"}},
		ShippingMethod: model.MethodServicePoint,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestMemory_UpsertKeepsOneRecordAndOverwrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.Upsert(ctx, sampleOrder("1001", t0)))
	next := sampleOrder("1001", t0.Add(time.Hour))
	next.OrderNumber = "A-changed"
	next.TotalItemCount = 5
	next.ShippingMethod = model.MethodHomeDelivery
	require.NoError(t, m.Upsert(ctx, next))

	all, err := m.ListRecent(ctx, 50)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, "A-changed", got.OrderNumber)
	assert.Equal(t, 5, got.TotalItemCount)
	assert.Equal(t, model.MethodHomeDelivery, got.ShippingMethod)
	assert.Equal(t, t0, got.CreatedAt, "first ingestion time is kept")
	assert.Equal(t, t0.Add(time.Hour), got.UpdatedAt)
}

func TestMemory_UpsertPreservesOperatorFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	t0 := time.Now().UTC()
	require.NoError(t, m.Upsert(ctx, sampleOrder("1", t0)))

	dims := model.Dimensions{LengthCm: 10, WidthCm: 20, HeightCm: 30, WeightKg: 1.5, BoxCount: 1}
	method := model.MethodHomeDelivery
	_, err := m.UpdateFields(ctx, "1", model.OrderPatch{Dimensions: &dims, ShippingMethod: &method})
	require.NoError(t, err)

	// webhook re-delivery still says pickup point
	require.NoError(t, m.Upsert(ctx, sampleOrder("1", t0.Add(time.Minute))))
	got, err := m.FindByExternalID(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got.Dimensions)
	assert.Equal(t, dims, *got.Dimensions)
	assert.Equal(t, model.MethodHomeDelivery, got.ShippingMethod)
	assert.True(t, got.MethodOverridden)
}

func TestMemory_UpdateFieldsUnknownIDNeverCreates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	done := true
	_, err := m.UpdateFields(ctx, "nope", model.OrderPatch{IsFulfilled: &done})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.FindByExternalID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	all, _ := m.ListRecent(ctx, 10)
	assert.Empty(t, all)
}

func TestMemory_ListRecentReturnsNewestFifty(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(500)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		require.NoError(t, m.Upsert(ctx, sampleOrder(fmt.Sprintf("o%02d", i), base.Add(time.Duration(i)*time.Second))))
	}
	got, err := m.ListRecent(ctx, 50)
	require.NoError(t, err)
	require.Len(t, got, 50)
	for i, o := range got {
		assert.Equal(t, fmt.Sprintf("o%02d", 59-i), o.ExternalID)
	}
}

func TestMemory_SameTimestampOrderedByInsertion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	at := time.Now().UTC()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Upsert(ctx, sampleOrder(id, at)))
	}
	got, _ := m.ListRecent(ctx, 10)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ExternalID, got[1].ExternalID, got[2].ExternalID})
}

func TestMemory_CapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(3)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Upsert(ctx, sampleOrder(fmt.Sprint(i), base.Add(time.Duration(i)*time.Millisecond))))
	}
	got, _ := m.ListRecent(ctx, 10)
	require.Len(t, got, 3)
	_, err := m.FindByExternalID(ctx, "0")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.FindByExternalID(ctx, "4")
	assert.NoError(t, err)
}

func TestMemory_ConcurrentUpsertsSameID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	at := time.Now().UTC()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := sampleOrder("same", at)
			o.TotalItemCount = i
			_ = m.Upsert(ctx, o)
		}(i)
	}
	wg.Wait()
	got, _ := m.ListRecent(ctx, 10)
	assert.Len(t, got, 1)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	require.NoError(t, m.Upsert(ctx, sampleOrder("1", time.Now().UTC())))
	got, _ := m.FindByExternalID(ctx, "1")
	got.LineItems[0].Title = "mutated"
	got.ShippingAddress.City = "mutated"
	again, _ := m.FindByExternalID(ctx, "1")
	assert.Equal(t, "Widget", again.LineItems[0].Title)
	assert.Equal(t, "Helsinki", again.ShippingAddress.City)
}

func TestMemory_UpsertRequiresExternalID(t *testing.T) {
	m := NewMemory(10)
	err := m.Upsert(context.Background(), model.Order{})
	assert.Error(t, err)
}

func TestJSONArg(t *testing.T) {
	var addr *model.Address
	v, err := jsonArg(addr)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = jsonArg(&model.Dimensions{LengthCm: 1, WidthCm: 1, HeightCm: 1, WeightKg: 1, BoxCount: 1})
	require.NoError(t, err)
	dims, ok := v.(string)
	require.True(t, ok)
	assert.JSONEq(t, `{"boxCount":1,"heightCm":1,"lengthCm":1,"weightKg":1,"widthCm":1}`, dims)

	v, err = jsonArg([]model.LineItem{})
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	_, err = jsonArg(&model.Dimensions{WeightKg: math.NaN()})
	assert.Error(t, err, "unencodable values surface instead of becoming NULL")
}

func TestMemory_UpsertSameResultForInsertAndOverwrite(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fulfilledAt := t0.Add(time.Hour)
	next := sampleOrder("1001", t0)
	next.OrderNumber = "A-next"
	next.Dimensions = &model.Dimensions{LengthCm: 1, WidthCm: 1, HeightCm: 1, WeightKg: 1, BoxCount: 1}
	next.PickupPoint = &model.PickupPoint{ID: "pp-1"}
	next.Shipment = &model.ShipmentResult{ShipmentID: "s-1"}
	next.IsFulfilled = true
	next.FulfilledAt = &fulfilledAt
	next.FulfillmentID = "f-1"

	existing := NewMemory(10)
	require.NoError(t, existing.Upsert(ctx, sampleOrder("1001", t0)))
	require.NoError(t, existing.Upsert(ctx, next))
	overwritten, err := existing.FindByExternalID(ctx, "1001")
	require.NoError(t, err)

	empty := NewMemory(10)
	require.NoError(t, empty.Upsert(ctx, next))
	inserted, err := empty.FindByExternalID(ctx, "1001")
	require.NoError(t, err)

	assert.Equal(t, inserted, overwritten)
	assert.Equal(t, "A-next", inserted.OrderNumber)
	assert.Nil(t, inserted.Dimensions)
	assert.Nil(t, inserted.PickupPoint)
	assert.Nil(t, inserted.Shipment)
	assert.False(t, inserted.IsFulfilled)
	assert.Nil(t, inserted.FulfilledAt)
	assert.Empty(t, inserted.FulfillmentID)
}

func TestMemory_ListRecentNonPositiveLimitUsesDefault(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(500)
	base := time.Now().UTC()
	for i := 0; i < DefaultListLimit+5; i++ {
		require.NoError(t, m.Upsert(ctx, sampleOrder(fmt.Sprint(i), base.Add(time.Duration(i)*time.Second))))
	}
	for _, limit := range []int{0, -1} {
		got, err := m.ListRecent(ctx, limit)
		require.NoError(t, err)
		assert.Len(t, got, DefaultListLimit)
	}
}
