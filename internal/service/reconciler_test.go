package service

import (
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
)

func sampleCatalog() []models.Product {
	return []models.Product{
		{ID: "A", Name: "iPhone XR", Category: "Phones", Cost: 100, Rating: 4},
		{ID: "B", Name: "Basketball", Category: "Sports", Cost: 50, Rating: 5},
		{ID: "C", Name: "Sneakers", Category: "Fashion", Cost: 200, Rating: 3},
	}
}

func TestReconcileDropsUnknownProductsAndPreservesOrder(t *testing.T) {
	raw := []models.CartLine{
		{ProductID: "C", Quantity: 1},
		{ProductID: "ghost", Quantity: 3},
		{ProductID: "A", Quantity: 2},
	}

	cart := Reconcile(raw, sampleCatalog())

	assert.Len(t, cart.Lines, 2)
	assert.Equal(t, "C", cart.Lines[0].Product.ID)
	assert.Equal(t, "A", cart.Lines[1].Product.ID)
	assert.Equal(t, int64(200), cart.Lines[0].LineTotal)
	assert.Equal(t, int64(200), cart.Lines[1].LineTotal)
	assert.Equal(t, int64(400), cart.Subtotal)
}

func TestReconcileIsIdempotent(t *testing.T) {
	raw := []models.CartLine{
		{ProductID: "A", Quantity: 2},
		{ProductID: "B", Quantity: 1},
	}
	catalog := sampleCatalog()

	first := Reconcile(raw, catalog)
	second := Reconcile(raw, catalog)

	assert.Equal(t, first, second)
}

func TestReconcileSkipsZeroQuantityLines(t *testing.T) {
	raw := []models.CartLine{
		{ProductID: "A", Quantity: 0},
		{ProductID: "B", Quantity: 1},
	}

	cart := Reconcile(raw, sampleCatalog())

	assert.Len(t, cart.Lines, 1)
	assert.Equal(t, "B", cart.Lines[0].Product.ID)
	assert.Equal(t, int64(50), cart.Subtotal)
}

func TestReconcileEmptyInputs(t *testing.T) {
	cart := Reconcile(nil, sampleCatalog())
	assert.Empty(t, cart.Lines)
	assert.Equal(t, int64(0), cart.Subtotal)

	cart = Reconcile([]models.CartLine{{ProductID: "A", Quantity: 2}}, nil)
	assert.Empty(t, cart.Lines)
	assert.Equal(t, int64(0), cart.Subtotal)
}

func TestCartContains(t *testing.T) {
	cart := Reconcile([]models.CartLine{{ProductID: "A", Quantity: 2}}, sampleCatalog())

	assert.True(t, cart.Contains("A"))
	assert.False(t, cart.Contains("B"))
}

func TestCartStateDiscardsStaleSnapshots(t *testing.T) {
	state := &CartState{}
	catalog := sampleCatalog()

	older := state.Begin()
	newer := state.Begin()

	fresh := Reconcile([]models.CartLine{{ProductID: "A", Quantity: 1}}, catalog)
	assert.True(t, state.Apply(fresh, newer))

	stale := Reconcile([]models.CartLine{{ProductID: "B", Quantity: 5}}, catalog)
	assert.False(t, state.Apply(stale, older))

	assert.Equal(t, fresh, state.Current())
}

func TestCartStateClear(t *testing.T) {
	state := &CartState{}

	version := state.Begin()
	state.Apply(Reconcile([]models.CartLine{{ProductID: "A", Quantity: 2}}, sampleCatalog()), version)
	state.Clear()

	assert.Empty(t, state.Current().Lines)
	assert.Equal(t, int64(0), state.Current().Subtotal)

	// A snapshot issued before the clear must not resurrect the cart
	assert.False(t, state.Apply(Reconcile([]models.CartLine{{ProductID: "A", Quantity: 2}}, sampleCatalog()), version))
}
