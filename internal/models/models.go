package models

import "time"

// Product represents a catalog product. Wire names follow the commerce
// backend (_id, image); products are immutable once fetched.
type Product struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Cost     int64  `json:"cost"`
	Rating   int    `json:"rating"`
	ImageURL string `json:"image"`
}

// CartLine is the raw server-side cart entry: product reference plus
// quantity. The authoritative copy lives on the commerce backend.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"qty"`
}

// Line is a raw cart line joined with its product. Derived, never
// persisted; recomputed on every reconciliation.
type Line struct {
	Product   Product `json:"product"`
	Quantity  int     `json:"qty"`
	LineTotal int64   `json:"lineTotal"`
}

// Cart is the reconciled, display-ready cart: enriched lines in the
// server-returned order plus their subtotal.
type Cart struct {
	Lines    []Line `json:"lines"`
	Subtotal int64  `json:"subtotal"`
}

// Contains reports whether the cart holds a line for the given product.
func (c Cart) Contains(productID string) bool {
	for _, line := range c.Lines {
		if line.Product.ID == productID {
			return true
		}
	}
	return false
}

// Address is a delivery address owned by the user's account.
type Address struct {
	ID   string `json:"_id"`
	Text string `json:"address"`
}

// Session carries the authenticated user's token, display name and the
// mirrored wallet balance. It is passed explicitly through every gated
// operation rather than read from ambient state.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
}

// Receipt records a completed order placement. The idempotency key is
// the primary key, so a retried placement never produces a duplicate.
type Receipt struct {
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key"`
	Username       string    `db:"username" json:"username"`
	AddressID      string    `db:"address_id" json:"address_id"`
	Amount         int64     `db:"amount" json:"amount"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
