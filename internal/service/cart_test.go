package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartFixture(t *testing.T, lines []models.CartLine) (*fakeBackend, *CartService, models.Session) {
	t.Helper()

	backend := newFakeBackend(sampleCatalog())
	t.Cleanup(backend.Close)
	backend.lines = lines

	upstream := NewUpstreamClient(backend.URL(), 2*time.Second)
	cart := NewCartService(upstream, NewCatalogService(upstream, nil))
	session := models.Session{Token: "test-token", Username: "alice", Balance: 1000}
	return backend, cart, session
}

func TestRefreshReconcilesServerCart(t *testing.T) {
	_, cart, session := newCartFixture(t, []models.CartLine{{ProductID: "A", Quantity: 2}})

	reconciled, err := cart.Refresh(context.Background(), session)

	require.NoError(t, err)
	require.Len(t, reconciled.Lines, 1)
	assert.Equal(t, int64(200), reconciled.Subtotal)
	assert.Equal(t, reconciled, cart.Current())
}

func TestRefreshRequiresSession(t *testing.T) {
	_, cart, _ := newCartFixture(t, nil)

	_, err := cart.Refresh(context.Background(), models.Session{})

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
}

func TestAddInsertsNewItem(t *testing.T) {
	backend, cart, session := newCartFixture(t, nil)

	reconciled, err := cart.Add(context.Background(), session, "B")

	require.NoError(t, err)
	assert.True(t, reconciled.Contains("B"))
	assert.Equal(t, int64(50), reconciled.Subtotal)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.lastPostQty)
}

func TestAddRejectsItemAlreadyInCart(t *testing.T) {
	backend, cart, session := newCartFixture(t, []models.CartLine{{ProductID: "A", Quantity: 2}})

	_, err := cart.Refresh(context.Background(), session)
	require.NoError(t, err)

	_, err = cart.Add(context.Background(), session, "A")

	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 0, backend.postCalls, "rejected addition must not reach the backend")
}

func TestUpdateQuantityToZeroIsSentAsRemoval(t *testing.T) {
	backend, cart, session := newCartFixture(t, []models.CartLine{{ProductID: "A", Quantity: 2}})

	_, err := cart.Refresh(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, int64(200), cart.Current().Subtotal)

	reconciled, err := cart.UpdateQuantity(context.Background(), session, "A", 0)

	require.NoError(t, err)
	assert.Empty(t, reconciled.Lines)
	assert.Equal(t, int64(0), reconciled.Subtotal)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.postCalls, "removal must be sent to the server, not dropped locally")
	assert.Equal(t, 0, backend.lastPostQty)
}

func TestUpdateQuantityRejectsNegative(t *testing.T) {
	backend, cart, session := newCartFixture(t, nil)

	_, err := cart.UpdateQuantity(context.Background(), session, "A", -1)

	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 0, backend.postCalls)
}

func TestConcurrentMutationOnSameLineIsRejected(t *testing.T) {
	backend, cart, session := newCartFixture(t, []models.CartLine{{ProductID: "A", Quantity: 2}})

	_, err := cart.Refresh(context.Background(), session)
	require.NoError(t, err)

	hold := make(chan struct{})
	backend.mu.Lock()
	backend.postHold = hold
	backend.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := cart.UpdateQuantity(context.Background(), session, "A", 3)
		assert.NoError(t, err)
	}()

	// Wait for the first request to be in flight
	time.Sleep(50 * time.Millisecond)

	_, err = cart.UpdateQuantity(context.Background(), session, "A", 4)
	assert.ErrorIs(t, err, ErrLineBusy)

	close(hold)
	wg.Wait()

	// The serialized write wins; the rejected one never reached the server
	require.Len(t, cart.Current().Lines, 1)
	assert.Equal(t, 3, cart.Current().Lines[0].Quantity)
}

func TestFailedMutationLeavesLastKnownGoodCart(t *testing.T) {
	backend, cart, session := newCartFixture(t, []models.CartLine{{ProductID: "A", Quantity: 2}})

	_, err := cart.Refresh(context.Background(), session)
	require.NoError(t, err)
	before := cart.Current()

	backend.mu.Lock()
	backend.postStatus = 500
	backend.mu.Unlock()

	_, err = cart.UpdateQuantity(context.Background(), session, "A", 5)

	var serverErr *ServerError
	assert.True(t, errors.As(err, &serverErr))
	assert.Equal(t, before, cart.Current(), "no partial mutation may be applied")
}

func TestMutationRequiresSession(t *testing.T) {
	backend, cart, _ := newCartFixture(t, nil)

	_, err := cart.Add(context.Background(), models.Session{}, "A")

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 0, backend.postCalls)
}
