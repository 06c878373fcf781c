package service

import (
	"context"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

type searchResult struct {
	query    string
	products []models.Product
	err      error
}

// Searcher debounces catalog searches. Each call replaces the pending
// query and re-arms a single timer; when the quiet window elapses exactly
// one search is issued for whatever query arrived last, and every caller
// that joined the burst receives that result. A burst of N keystrokes
// therefore costs one backend call, not N.
type Searcher struct {
	catalog *CatalogService
	window  time.Duration
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	waiters []chan searchResult
	closed  bool
}

// NewSearcher creates a debounced searcher over the catalog service
func NewSearcher(catalog *CatalogService, window, timeout time.Duration) *Searcher {
	return &Searcher{
		catalog: catalog,
		window:  window,
		timeout: timeout,
		logger:  util.GetLogger(),
	}
}

// Do schedules query and blocks until the debounced search completes.
// If a newer query supersedes this one before the quiet window elapses,
// the caller receives the newer query's result.
func (s *Searcher) Do(ctx context.Context, query string) ([]models.Product, error) {
	ch := make(chan searchResult, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &ValidationError{Msg: "search unavailable"}
	}
	s.pending = query
	s.waiters = append(s.waiters, ch)
	if s.timer != nil {
		if s.timer.Stop() {
			util.SearchesSupersededTotal.Inc()
		}
	}
	s.timer = time.AfterFunc(s.window, s.fire)
	s.mu.Unlock()

	select {
	case res := <-ch:
		return res.products, res.err
	case <-ctx.Done():
		return nil, &NetworkError{Err: ctx.Err()}
	}
}

func (s *Searcher) fire() {
	s.mu.Lock()
	query := s.pending
	waiters := s.waiters
	s.waiters = nil
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	products, err := s.catalog.Search(ctx, query)
	if err != nil {
		s.logger.Warn("Debounced search failed", zap.String("query", query), zap.Error(err))
	}

	for _, ch := range waiters {
		ch <- searchResult{query: query, products: products, err: err}
	}
}

// Close cancels any pending search and rejects further calls
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for _, ch := range s.waiters {
		ch <- searchResult{err: &ValidationError{Msg: "search unavailable"}}
	}
	s.waiters = nil
}
