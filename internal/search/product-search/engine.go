// internal/search/product-search/engine.go
package productsearch

import (
	"context"

	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/common/metrics"
	"shop-assistant/internal/models"
)

// Catalog is the read-only product catalog collaborator.
type Catalog interface {
	Search(ctx context.Context, filters models.SearchFilters) ([]models.Product, error)
}

// Result is one search attempt's outcome. Relaxed marks that the free-text
// term was dropped to find the returned products; Exhausted marks that the
// relaxation retry also came back empty.
type Result struct {
	Products  []models.Product
	Filters   models.SearchFilters
	Relaxed   bool
	Exhausted bool
}

// Engine executes filtered catalog lookups with a bounded fallback: when
// the full filter set matches nothing, exactly one retry dropping only the
// free-text term. Structured filters (brand, price, category, stock) carry
// explicit user intent and are never relaxed.
type Engine struct {
	catalog Catalog
	logger  logger.Logger
}

func NewEngine(catalog Catalog, log logger.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"component": "product-search"}),
	}
}

// Search never treats zero matches as an error.
func (e *Engine) Search(ctx context.Context, filters models.SearchFilters) (Result, error) {
	products, err := e.catalog.Search(ctx, filters)
	if err != nil {
		return Result{}, err
	}

	if len(products) > 0 || filters.Query == "" {
		return Result{
			Products:  products,
			Filters:   filters,
			Exhausted: len(products) == 0,
		}, nil
	}

	// Smart fallback: one retry without the text term, structured filters
	// intact. Free-text matching is the most failure-prone filter and the
	// only one safe to relax.
	relaxed := filters.WithoutQuery()
	e.logger.Info("search fallback: retrying without text term", map[string]interface{}{
		"query":    filters.Query,
		"brand":    filters.Brand,
		"category": filters.Category,
	})

	products, err = e.catalog.Search(ctx, relaxed)
	if err != nil {
		return Result{}, err
	}

	if len(products) == 0 {
		metrics.SearchFallbacks.WithLabelValues("exhausted").Inc()
		return Result{Filters: relaxed, Relaxed: true, Exhausted: true}, nil
	}

	metrics.SearchFallbacks.WithLabelValues("recovered").Inc()
	return Result{Products: products, Filters: relaxed, Relaxed: true}, nil
}
