package service

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CartService issues cart mutations against the backend and keeps the
// session's reconciled cart current. Mutations are never optimistic: the
// local cart only changes after the server confirms the write and a fresh
// reconciliation runs, so the display can never show a quantity the
// server rejected.
type CartService struct {
	upstream *UpstreamClient
	catalog  *CatalogService
	state    *CartState
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewCartService creates a cart service for one session
func NewCartService(upstream *UpstreamClient, catalog *CatalogService) *CartService {
	return &CartService{
		upstream: upstream,
		catalog:  catalog,
		state:    &CartState{},
		logger:   util.GetLogger(),
		inflight: make(map[string]bool),
	}
}

// Current returns the last-known-good reconciled cart
func (s *CartService) Current() models.Cart {
	return s.state.Current()
}

// Refresh pulls the raw cart and catalog and reconciles them. Invoked on
// page load, after every confirmed mutation and on catalog refresh.
func (s *CartService) Refresh(ctx context.Context, session models.Session) (models.Cart, error) {
	if err := RequireSession(session); err != nil {
		return models.Cart{}, err
	}

	ctx, span := util.StartSpan(ctx, "CartService.Refresh")
	defer span.End()

	version := s.state.Begin()

	raw, err := s.upstream.FetchCart(ctx, session.Token)
	if err != nil {
		return models.Cart{}, err
	}
	catalog, err := s.catalog.FetchAll(ctx)
	if err != nil {
		return models.Cart{}, err
	}

	cart := Reconcile(raw, catalog)
	if !s.state.Apply(cart, version) {
		s.logger.Debug("Discarded stale cart snapshot", zap.Uint64("version", version))
		return s.state.Current(), nil
	}
	return cart, nil
}

// Add inserts a product into the cart with quantity 1. Addition is
// exclusively for first insertion; quantity changes for a present line
// must go through UpdateQuantity, mirroring the backend contract.
func (s *CartService) Add(ctx context.Context, session models.Session, productID string) (models.Cart, error) {
	if err := RequireSession(session); err != nil {
		util.CartMutationsFailedTotal.WithLabelValues("auth").Inc()
		return models.Cart{}, err
	}

	if s.state.Current().Contains(productID) {
		util.CartMutationsFailedTotal.WithLabelValues("already_in_cart").Inc()
		return models.Cart{}, &ValidationError{
			Msg: "item already in cart, use the quantity stepper to change it",
		}
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	return s.mutate(ctx, session, productID, 1)
}

// UpdateQuantity sets the quantity of an existing line. Quantity 0 is
// sent to the server as removal, never dropped client-side: the server is
// the sole source of truth for cart contents.
func (s *CartService) UpdateQuantity(ctx context.Context, session models.Session, productID string, qty int) (models.Cart, error) {
	if err := RequireSession(session); err != nil {
		util.CartMutationsFailedTotal.WithLabelValues("auth").Inc()
		return models.Cart{}, err
	}
	if qty < 0 {
		util.CartMutationsFailedTotal.WithLabelValues("negative_quantity").Inc()
		return models.Cart{}, &ValidationError{Msg: fmt.Sprintf("quantity must not be negative, got %d", qty)}
	}

	util.CartMutationsTotal.WithLabelValues("update").Inc()
	return s.mutate(ctx, session, productID, qty)
}

// mutate serializes per-line writes: while a request for productID is in
// flight, a second one fails fast with ErrLineBusy so out-of-order writes
// cannot reorder the final quantity. On failure the last-known-good cart
// is left untouched.
func (s *CartService) mutate(ctx context.Context, session models.Session, productID string, qty int) (models.Cart, error) {
	if !s.acquire(productID) {
		util.CartMutationsFailedTotal.WithLabelValues("line_busy").Inc()
		return models.Cart{}, ErrLineBusy
	}
	defer s.release(productID)

	ctx, span := util.StartSpan(ctx, "CartService.mutate")
	defer span.End()

	version := s.state.Begin()

	raw, err := s.upstream.PostCart(ctx, session.Token, productID, qty)
	if err != nil {
		util.CartMutationsFailedTotal.WithLabelValues("upstream").Inc()
		s.logger.Warn("Cart mutation rejected",
			zap.String("product_id", productID),
			zap.Int("qty", qty),
			zap.Error(err))
		return models.Cart{}, err
	}

	catalog, err := s.catalog.FetchAll(ctx)
	if err != nil {
		util.CartMutationsFailedTotal.WithLabelValues("catalog").Inc()
		return models.Cart{}, err
	}

	cart := Reconcile(raw, catalog)
	if !s.state.Apply(cart, version) {
		return s.state.Current(), nil
	}
	return cart, nil
}

// ClearLocal drops the local cart representation after a completed
// checkout; the server has already emptied its copy.
func (s *CartService) ClearLocal() {
	s.state.Clear()
}

func (s *CartService) acquire(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[productID] {
		return false
	}
	s.inflight[productID] = true
	return true
}

func (s *CartService) release(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, productID)
}
