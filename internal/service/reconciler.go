package service

import (
	"sync"

	"storefront/internal/models"
	"storefront/internal/util"
)

// Reconcile joins the raw server cart with a catalog snapshot into a
// display-ready cart. Lines whose product is absent from the snapshot are
// dropped: cart and catalog are fetched independently and may race, and a
// zero-valued line would be worse than no line. Server order is kept.
// Pure and idempotent: same inputs, same cart.
func Reconcile(raw []models.CartLine, catalog []models.Product) models.Cart {
	index := make(map[string]models.Product, len(catalog))
	for _, p := range catalog {
		index[p.ID] = p
	}

	cart := models.Cart{Lines: []models.Line{}}
	for _, line := range raw {
		if line.Quantity <= 0 {
			// qty 0 is equivalent to absence
			continue
		}
		product, ok := index[line.ProductID]
		if !ok {
			util.CartLinesDroppedTotal.Inc()
			continue
		}
		cart.Lines = append(cart.Lines, models.Line{
			Product:   product,
			Quantity:  line.Quantity,
			LineTotal: product.Cost * int64(line.Quantity),
		})
	}

	for _, line := range cart.Lines {
		cart.Subtotal += line.LineTotal
	}
	return cart
}

// CartState holds the session's last-known-good reconciled cart. Writers
// take a version before issuing their fetch; a completion whose version is
// older than the last applied one is discarded, so a late-arriving stale
// response can never overwrite a newer snapshot.
type CartState struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
	cart    models.Cart
}

// Begin allocates the version for a fetch that is about to be issued
func (s *CartState) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Apply installs a reconciled cart if version is not older than the
// latest applied one. Returns whether the snapshot was installed.
func (s *CartState) Apply(cart models.Cart, version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version < s.applied {
		return false
	}
	s.applied = version
	s.cart = cart
	return true
}

// Current returns the last-known-good reconciled cart
func (s *CartState) Current() models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}

// Clear resets the cart after a completed checkout
func (s *CartState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.applied = s.issued
	s.cart = models.Cart{Lines: []models.Line{}}
}
