package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/go-redis/redis/v8"
)

const catalogKey = "catalog:all"

// Client wraps Redis for the two storefront concerns it carries: the
// catalog snapshot cache and the session registry.
type Client struct {
	rdb        *redis.Client
	catalogTTL time.Duration
	sessionTTL time.Duration
}

// NewClient creates a Redis client and verifies connectivity
func NewClient(addr, password string, db int, catalogTTL, sessionTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:        rdb,
		catalogTTL: catalogTTL,
		sessionTTL: sessionTTL,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetCatalog returns the cached catalog snapshot, or service.ErrCacheMiss
// when none is stored.
func (c *Client) GetCatalog(ctx context.Context) ([]models.Product, error) {
	data, err := c.rdb.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, service.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("catalog cache get failed: %w", err)
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("catalog cache decode failed: %w", err)
	}
	return products, nil
}

// SetCatalog stores a catalog snapshot with the configured TTL
func (c *Client) SetCatalog(ctx context.Context, products []models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("catalog cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, catalogKey, data, c.catalogTTL).Err()
}

// InvalidateCatalog drops the cached catalog snapshot
func (c *Client) InvalidateCatalog(ctx context.Context) error {
	return c.rdb.Del(ctx, catalogKey).Err()
}

func sessionKey(token string) string {
	return "session:" + token
}

// SaveSession registers a session by token
func (c *Client) SaveSession(ctx context.Context, session models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("session encode failed: %w", err)
	}
	return c.rdb.Set(ctx, sessionKey(session.Token), data, c.sessionTTL).Err()
}

// LoadSession retrieves a session by token. An unknown token returns the
// zero session, which fails the gate.
func (c *Client) LoadSession(ctx context.Context, token string) (models.Session, error) {
	data, err := c.rdb.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, nil
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("session get failed: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return models.Session{}, fmt.Errorf("session decode failed: %w", err)
	}
	return session, nil
}

// DeleteSession destroys a session on logout
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, sessionKey(token)).Err()
}
