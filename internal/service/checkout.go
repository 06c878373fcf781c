package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutState is one phase of the checkout flow
type CheckoutState string

const (
	CheckoutStateLoading      CheckoutState = "LOADING"
	CheckoutStateReady        CheckoutState = "READY"
	CheckoutStateValidating   CheckoutState = "VALIDATING"
	CheckoutStatePlacingOrder CheckoutState = "PLACING_ORDER"
	CheckoutStateCompleted    CheckoutState = "COMPLETED"
	CheckoutStateFailed       CheckoutState = "FAILED"
)

func (s CheckoutState) String() string { return string(s) }

// IsTerminal reports whether the flow is over. Failed is retryable and
// therefore not terminal: PlaceOrder may be attempted again from it.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCompleted
}

// ReceiptStore persists completed order placements
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, receipt models.Receipt) error
}

// OrderEvents publishes checkout outcomes. Publishing is best-effort and
// never fails the checkout.
type OrderEvents interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishCheckoutFailed(ctx context.Context, event *models.CheckoutFailedEvent) error
}

// CheckoutService owns one session's checkout flow: the address book, the
// single selected address, the wallet pre-check and order placement.
// Addresses and selection are owned here exclusively; every change flows
// through these methods and re-derives state from the backend's response.
type CheckoutService struct {
	upstream *UpstreamClient
	cart     *CartService
	receipts ReceiptStore
	events   OrderEvents
	logger   *zap.Logger

	mu          sync.Mutex
	state       CheckoutState
	addresses   []models.Address
	selected    string
	lastFailure string
	idemKey     string
}

// NewCheckoutService creates a checkout service for one session.
// receipts and events may be nil.
func NewCheckoutService(upstream *UpstreamClient, cart *CartService, receipts ReceiptStore, events OrderEvents) *CheckoutService {
	return &CheckoutService{
		upstream: upstream,
		cart:     cart,
		receipts: receipts,
		events:   events,
		logger:   util.GetLogger(),
		state:    CheckoutStateLoading,
	}
}

// State returns the current checkout phase
func (s *CheckoutService) State() CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addresses returns the loaded address book
func (s *CheckoutService) Addresses() []models.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Address, len(s.addresses))
	copy(out, s.addresses)
	return out
}

// SelectedAddress returns the id of the selected address, empty if none
func (s *CheckoutService) SelectedAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// LastFailure returns the reason recorded by the most recent failed
// placement, empty if none.
func (s *CheckoutService) LastFailure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFailure
}

// Begin loads the address book and reconciles the cart, moving the flow
// to Ready. Entering checkout resets the address selection.
func (s *CheckoutService) Begin(ctx context.Context, session models.Session) error {
	if err := RequireSession(session); err != nil {
		return err
	}

	ctx, span := util.StartSpan(ctx, "CheckoutService.Begin")
	defer span.End()

	s.mu.Lock()
	if s.state == CheckoutStateValidating || s.state == CheckoutStatePlacingOrder {
		s.mu.Unlock()
		return &ValidationError{Msg: "order placement in progress"}
	}
	s.mu.Unlock()

	addresses, err := s.upstream.Addresses(ctx, session.Token)
	if err != nil {
		return err
	}
	if _, err := s.cart.Refresh(ctx, session); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses = addresses
	s.selected = ""
	s.lastFailure = ""
	s.state = CheckoutStateReady
	return nil
}

// AddAddress appends an address to the account. The new address is not
// auto-selected.
func (s *CheckoutService) AddAddress(ctx context.Context, session models.Session, text string) error {
	if err := RequireSession(session); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Msg: "address must not be empty"}
	}

	addresses, err := s.upstream.AddAddress(ctx, session.Token, text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses = addresses
	return nil
}

// DeleteAddress removes an address. If it was the selected one, selection
// reverts to none rather than silently re-pointing elsewhere.
func (s *CheckoutService) DeleteAddress(ctx context.Context, session models.Session, id string) error {
	if err := RequireSession(session); err != nil {
		return err
	}

	addresses, err := s.upstream.DeleteAddress(ctx, session.Token, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses = addresses
	if s.selected == id {
		s.selected = ""
	}
	return nil
}

// SelectAddress marks one address as active. Selecting a new address
// deselects the previous one; at most one is selected at a time.
func (s *CheckoutService) SelectAddress(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, addr := range s.addresses {
		if addr.ID == id {
			s.selected = id
			return nil
		}
	}
	return &ValidationError{Msg: "unknown address"}
}

// PlaceOrder runs the placement flow: local validation against the
// currently reconciled cart, then the backend call. The subtotal is
// recomputed at invocation time, never captured earlier, because the cart
// can change between checkout entry and the placement click. On success
// the local cart is cleared and the session's mirrored balance reduced;
// on failure all cart and address state is left untouched and the flow
// returns to Ready for retry.
func (s *CheckoutService) PlaceOrder(ctx context.Context, session models.Session) (models.Session, error) {
	if err := RequireSession(session); err != nil {
		return session, err
	}

	ctx, span := util.StartSpan(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	s.mu.Lock()
	if s.state != CheckoutStateReady && s.state != CheckoutStateFailed {
		state := s.state
		s.mu.Unlock()
		return session, &ValidationError{Msg: "checkout is not ready, current state: " + state.String()}
	}
	s.state = CheckoutStateValidating

	// Local pre-flight failures leave all state untouched: the flow
	// returns straight to Ready without touching the backend.
	if s.selected == "" {
		s.state = CheckoutStateReady
		s.mu.Unlock()
		util.CheckoutFailedTotal.WithLabelValues("no_address").Inc()
		return session, &ValidationError{Msg: "no address selected"}
	}
	addressID := s.selected

	cart := s.cart.Current()
	if len(cart.Lines) == 0 {
		s.state = CheckoutStateReady
		s.mu.Unlock()
		util.CheckoutFailedTotal.WithLabelValues("empty_cart").Inc()
		return session, &ValidationError{Msg: "cart is empty"}
	}
	if cart.Subtotal > session.Balance {
		s.state = CheckoutStateReady
		s.mu.Unlock()
		util.CheckoutFailedTotal.WithLabelValues("insufficient_balance").Inc()
		return session, &ValidationError{Msg: "insufficient balance"}
	}

	// Key survives a failed attempt so a retry of the same placement can
	// never be recorded twice.
	if s.idemKey == "" {
		s.idemKey = uuid.New().String()
	}
	idemKey := s.idemKey
	s.state = CheckoutStatePlacingOrder
	s.mu.Unlock()

	if err := s.upstream.Checkout(ctx, session.Token, addressID); err != nil {
		s.mu.Lock()
		s.failLocked(err.Error())
		s.mu.Unlock()

		util.CheckoutFailedTotal.WithLabelValues("upstream").Inc()
		s.publishFailure(session.Username, err.Error())
		return session, err
	}

	receipt := models.Receipt{
		IdempotencyKey: idemKey,
		Username:       session.Username,
		AddressID:      addressID,
		Amount:         cart.Subtotal,
	}
	if s.receipts != nil {
		if err := s.receipts.SaveReceipt(ctx, receipt); err != nil {
			s.logger.Error("Failed to save order receipt",
				zap.String("idempotency_key", idemKey),
				zap.Error(err))
		}
	}
	s.publishPlaced(session, addressID, cart)

	s.cart.ClearLocal()

	s.mu.Lock()
	s.state = CheckoutStateCompleted
	s.lastFailure = ""
	s.idemKey = ""
	s.mu.Unlock()

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("username", session.Username),
		zap.String("address_id", addressID),
		zap.Int64("amount", cart.Subtotal))

	session.Balance -= cart.Subtotal
	return session, nil
}

// failLocked records a failure and returns the flow to Failed, which
// permits retry. Caller holds the mutex.
func (s *CheckoutService) failLocked(reason string) {
	s.lastFailure = reason
	s.state = CheckoutStateFailed
}

func (s *CheckoutService) publishPlaced(session models.Session, addressID string, cart models.Cart) {
	if s.events == nil {
		return
	}

	lines := make([]models.OrderLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, models.OrderLine{
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			UnitCost:  line.Product.Cost,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		Username:  session.Username,
		AddressID: addressID,
		Amount:    cart.Subtotal,
		Lines:     lines,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

func (s *CheckoutService) publishFailure(username, reason string) {
	if s.events == nil {
		return
	}

	event := &models.CheckoutFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCheckoutFailed,
			Timestamp: time.Now(),
		},
		Username: username,
		Reason:   reason,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.events.PublishCheckoutFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutFailed event", zap.Error(err))
	}
}
