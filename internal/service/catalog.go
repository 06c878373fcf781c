package service

import (
	"context"
	"errors"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ErrCacheMiss is returned by a CatalogCache when no snapshot is stored
var ErrCacheMiss = errors.New("catalog cache miss")

// CatalogCache stores a catalog snapshot with a TTL. Implementations are
// best-effort: the catalog service falls back to the backend on any error.
type CatalogCache interface {
	GetCatalog(ctx context.Context) ([]models.Product, error)
	SetCatalog(ctx context.Context, products []models.Product) error
}

// CatalogService fetches and caches the product catalog
type CatalogService struct {
	upstream *UpstreamClient
	cache    CatalogCache
	logger   *zap.Logger
}

// NewCatalogService creates a catalog service. cache may be nil.
func NewCatalogService(upstream *UpstreamClient, cache CatalogCache) *CatalogService {
	return &CatalogService{
		upstream: upstream,
		cache:    cache,
		logger:   util.GetLogger(),
	}
}

// FetchAll retrieves the full catalog, serving the cached snapshot when
// one is fresh. An empty catalog is a valid result, not an error.
func (s *CatalogService) FetchAll(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.FetchAll")
	defer span.End()

	if s.cache != nil {
		products, err := s.cache.GetCatalog(ctx)
		if err == nil {
			util.CatalogFetchesTotal.WithLabelValues("cache").Inc()
			return products, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("Catalog cache read failed", zap.Error(err))
		}
	}

	products, err := s.upstream.Products(ctx)
	if err != nil {
		return nil, err
	}
	util.CatalogFetchesTotal.WithLabelValues("upstream").Inc()

	if s.cache != nil {
		if err := s.cache.SetCatalog(ctx, products); err != nil {
			s.logger.Warn("Catalog cache write failed", zap.Error(err))
		}
	}
	return products, nil
}

// WarmCache refetches the catalog from the backend and rewrites the
// cached snapshot, bypassing any cached copy.
func (s *CatalogService) WarmCache(ctx context.Context) error {
	products, err := s.upstream.Products(ctx)
	if err != nil {
		return err
	}
	util.CatalogFetchesTotal.WithLabelValues("upstream").Inc()

	if s.cache == nil {
		return nil
	}
	return s.cache.SetCatalog(ctx, products)
}

// Search retrieves the server-side filtered catalog. Callers that react
// to keystrokes go through a Searcher instead of calling this directly.
func (s *CatalogService) Search(ctx context.Context, query string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Search")
	defer span.End()

	util.SearchesIssuedTotal.Inc()
	return s.upstream.SearchProducts(ctx, query)
}
