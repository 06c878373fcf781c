package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// UpstreamClient talks to the commerce backend over JSON/HTTP. Transport
// failures surface as NetworkError, 401/403 as AuthError and any other
// non-2xx status as ServerError with the backend's message when present.
type UpstreamClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewUpstreamClient creates a client for the commerce backend
func NewUpstreamClient(baseURL string, timeout time.Duration) *UpstreamClient {
	return &UpstreamClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  util.GetLogger(),
	}
}

type upstreamError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *UpstreamClient) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var serverMsg upstreamError
		data, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(data, &serverMsg)

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			msg := serverMsg.Message
			if msg == "" {
				msg = "please log in to continue"
			}
			return &AuthError{Msg: msg}
		}

		c.logger.Warn("Upstream returned error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", serverMsg.Message))
		return &ServerError{Status: resp.StatusCode, Msg: serverMsg.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ServerError{Status: resp.StatusCode, Msg: "invalid response body"}
		}
	}
	return nil
}

// Products retrieves the full catalog
func (c *UpstreamClient) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.do(ctx, http.MethodGet, "/products", "", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SearchProducts retrieves the catalog filtered server-side. The backend
// answers 404 when nothing matches; that is an empty result, not a failure.
func (c *UpstreamClient) SearchProducts(ctx context.Context, value string) ([]models.Product, error) {
	var products []models.Product
	path := "/products/search?value=" + url.QueryEscape(value)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &products); err != nil {
		var serverErr *ServerError
		if errors.As(err, &serverErr) && serverErr.Status == http.StatusNotFound {
			return []models.Product{}, nil
		}
		return nil, err
	}
	return products, nil
}

// FetchCart retrieves the raw server-side cart
func (c *UpstreamClient) FetchCart(ctx context.Context, token string) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := c.do(ctx, http.MethodGet, "/cart", token, nil, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// PostCart writes one line's quantity and returns the updated raw cart.
// The backend treats qty 0 as removal.
func (c *UpstreamClient) PostCart(ctx context.Context, token, productID string, qty int) ([]models.CartLine, error) {
	var lines []models.CartLine
	body := models.CartLine{ProductID: productID, Quantity: qty}
	if err := c.do(ctx, http.MethodPost, "/cart", token, body, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Addresses retrieves the user's address book
func (c *UpstreamClient) Addresses(ctx context.Context, token string) ([]models.Address, error) {
	var addresses []models.Address
	if err := c.do(ctx, http.MethodGet, "/user/addresses", token, nil, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// AddAddress appends an address and returns the updated address book
func (c *UpstreamClient) AddAddress(ctx context.Context, token, text string) ([]models.Address, error) {
	var addresses []models.Address
	body := map[string]string{"address": text}
	if err := c.do(ctx, http.MethodPost, "/user/addresses", token, body, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// DeleteAddress removes an address and returns the updated address book
func (c *UpstreamClient) DeleteAddress(ctx context.Context, token, id string) ([]models.Address, error) {
	var addresses []models.Address
	if err := c.do(ctx, http.MethodDelete, "/user/addresses/"+id, token, nil, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// Checkout places the order for the server-held cart against the given
// address. The backend performs the authoritative balance and stock check.
func (c *UpstreamClient) Checkout(ctx context.Context, token, addressID string) error {
	body := map[string]string{"addressId": addressID}
	return c.do(ctx, http.MethodPost, "/cart/checkout", token, body, nil)
}
