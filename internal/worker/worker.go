package worker

import (
	"context"
	"log"
	"time"

	"storefront/internal/service"
)

// CatalogWorker keeps the shared catalog snapshot warm by refetching it
// from the backend on a fixed interval, so interactive fetches mostly hit
// the cache and reconciliations see a recent snapshot.
type CatalogWorker struct {
	catalog  *service.CatalogService
	interval time.Duration
}

// NewCatalogWorker creates a catalog refresh worker
func NewCatalogWorker(catalog *service.CatalogService, interval time.Duration) *CatalogWorker {
	return &CatalogWorker{
		catalog:  catalog,
		interval: interval,
	}
}

// Start runs the refresh loop until the context is cancelled
func (w *CatalogWorker) Start(ctx context.Context) error {
	log.Printf("Starting catalog worker, interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Catalog worker context cancelled, stopping...")
			return ctx.Err()
		case <-ticker.C:
			if err := w.catalog.WarmCache(ctx); err != nil {
				log.Printf("Catalog refresh failed: %v", err)
			}
		}
	}
}
