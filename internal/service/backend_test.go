package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"storefront/internal/models"
)

// fakeBackend is an in-process stand-in for the commerce backend,
// implementing the endpoints the storefront consumes.
type fakeBackend struct {
	mu            sync.Mutex
	products      []models.Product
	lines         []models.CartLine
	addresses     []models.Address
	nextAddressID int

	searchCalls   int
	lastSearch    string
	postCalls     int
	lastPostQty   int
	checkoutCalls int

	checkoutStatus int           // non-zero forces that status on checkout
	postStatus     int           // non-zero forces that status on POST /cart
	postHold       chan struct{} // when set, POST /cart blocks until closed

	srv *httptest.Server
}

func newFakeBackend(products []models.Product) *fakeBackend {
	b := &fakeBackend{products: products, nextAddressID: 1}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handle))
	return b
}

func (b *fakeBackend) URL() string { return b.srv.URL }
func (b *fakeBackend) Close()      { b.srv.Close() }

func (b *fakeBackend) authorized(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/products" && r.Method == http.MethodGet:
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, b.products)

	case r.URL.Path == "/products/search" && r.Method == http.MethodGet:
		b.mu.Lock()
		value := r.URL.Query().Get("value")
		b.searchCalls++
		b.lastSearch = value
		var matched []models.Product
		for _, p := range b.products {
			if strings.Contains(strings.ToLower(p.Name), strings.ToLower(value)) {
				matched = append(matched, p)
			}
		}
		b.mu.Unlock()
		if len(matched) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"success": false, "message": "No products found",
			})
			return
		}
		writeJSON(w, http.StatusOK, matched)

	case r.URL.Path == "/cart" && r.Method == http.MethodGet:
		if !b.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false, "message": "Protected route, Oauth2 Bearer token not found",
			})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, b.lines)

	case r.URL.Path == "/cart" && r.Method == http.MethodPost:
		if !b.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false, "message": "Protected route, Oauth2 Bearer token not found",
			})
			return
		}
		var line models.CartLine
		_ = json.NewDecoder(r.Body).Decode(&line)

		b.mu.Lock()
		hold := b.postHold
		forced := b.postStatus
		b.mu.Unlock()
		if hold != nil {
			<-hold
		}
		if forced != 0 {
			writeJSON(w, forced, map[string]interface{}{
				"success": false, "message": "Could not update cart",
			})
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		b.postCalls++
		b.lastPostQty = line.Quantity
		b.setLine(line)
		writeJSON(w, http.StatusOK, b.lines)

	case r.URL.Path == "/user/addresses" && r.Method == http.MethodGet:
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, b.addresses)

	case r.URL.Path == "/user/addresses" && r.Method == http.MethodPost:
		var body struct {
			Address string `json:"address"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.addresses = append(b.addresses, models.Address{
			ID:   "addr-" + strconv.Itoa(b.nextAddressID),
			Text: body.Address,
		})
		b.nextAddressID++
		writeJSON(w, http.StatusOK, b.addresses)

	case strings.HasPrefix(r.URL.Path, "/user/addresses/") && r.Method == http.MethodDelete:
		id := strings.TrimPrefix(r.URL.Path, "/user/addresses/")
		b.mu.Lock()
		defer b.mu.Unlock()
		kept := b.addresses[:0]
		for _, addr := range b.addresses {
			if addr.ID != id {
				kept = append(kept, addr)
			}
		}
		b.addresses = kept
		writeJSON(w, http.StatusOK, b.addresses)

	case r.URL.Path == "/cart/checkout" && r.Method == http.MethodPost:
		b.mu.Lock()
		defer b.mu.Unlock()
		b.checkoutCalls++
		if b.checkoutStatus != 0 {
			writeJSON(w, b.checkoutStatus, map[string]interface{}{
				"success": false, "message": "Wallet balance not sufficient to place order",
			})
			return
		}
		b.lines = nil
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})

	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false, "message": "Not found",
		})
	}
}

// setLine mirrors the backend contract: qty 0 removes, otherwise the
// line is inserted or updated in place.
func (b *fakeBackend) setLine(line models.CartLine) {
	if line.Quantity == 0 {
		kept := b.lines[:0]
		for _, l := range b.lines {
			if l.ProductID != line.ProductID {
				kept = append(kept, l)
			}
		}
		b.lines = kept
		return
	}
	for i, l := range b.lines {
		if l.ProductID == line.ProductID {
			b.lines[i].Quantity = line.Quantity
			return
		}
	}
	b.lines = append(b.lines, line)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
