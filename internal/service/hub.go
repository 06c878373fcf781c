package service

import (
	"sync"
	"time"
)

// SessionEngines bundles the per-session state holders: the cart service,
// the checkout flow and the debounced searcher. One set exists per
// session token; the model is single-session and pull-based, so nothing
// here is shared across tokens.
type SessionEngines struct {
	Cart     *CartService
	Checkout *CheckoutService
	Searcher *Searcher
}

// Hub lazily creates and retains SessionEngines per token
type Hub struct {
	upstream *UpstreamClient
	catalog  *CatalogService
	receipts ReceiptStore
	events   OrderEvents
	debounce time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	engines map[string]*SessionEngines
}

// NewHub creates the engine hub. receipts and events may be nil.
func NewHub(upstream *UpstreamClient, catalog *CatalogService, receipts ReceiptStore, events OrderEvents, debounce, timeout time.Duration) *Hub {
	return &Hub{
		upstream: upstream,
		catalog:  catalog,
		receipts: receipts,
		events:   events,
		debounce: debounce,
		timeout:  timeout,
		engines:  make(map[string]*SessionEngines),
	}
}

// Engines returns the engine set for a token, creating it on first use
func (h *Hub) Engines(token string) *SessionEngines {
	h.mu.Lock()
	defer h.mu.Unlock()

	if engines, ok := h.engines[token]; ok {
		return engines
	}

	cart := NewCartService(h.upstream, h.catalog)
	engines := &SessionEngines{
		Cart:     cart,
		Checkout: NewCheckoutService(h.upstream, cart, h.receipts, h.events),
		Searcher: NewSearcher(h.catalog, h.debounce, h.timeout),
	}
	h.engines[token] = engines
	return engines
}

// Drop discards a token's engines, cancelling any pending search.
// Called on logout.
func (h *Hub) Drop(token string) {
	h.mu.Lock()
	engines, ok := h.engines[token]
	delete(h.engines, token)
	h.mu.Unlock()

	if ok {
		engines.Searcher.Close()
	}
}
