// internal/repository/catalog/elasticsearch.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"shop-assistant/internal/common/logger"
	entityextractor "shop-assistant/internal/nlu/entity-extractor"
	"shop-assistant/internal/models"
)

// ElasticsearchCatalog is the alternative catalog backend, selected with
// catalog.backend=elasticsearch. It answers the same Search contract as
// the Postgres backend.
type ElasticsearchCatalog struct {
	client     *elasticsearch.Client
	index      string
	categories entityextractor.CategoryTable
	logger     logger.Logger
}

func NewElasticsearchCatalog(client *elasticsearch.Client, index string, categories entityextractor.CategoryTable, log logger.Logger) *ElasticsearchCatalog {
	if categories == nil {
		categories = entityextractor.DefaultCategories
	}
	return &ElasticsearchCatalog{
		client:     client,
		index:      index,
		categories: categories,
		logger:     log.WithFields(map[string]interface{}{"component": "catalog-elasticsearch"}),
	}
}

func (c *ElasticsearchCatalog) Search(ctx context.Context, f models.SearchFilters) ([]models.Product, error) {
	query := c.buildQuery(f)

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(c.index),
		c.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("catalog search: status %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	products := make([]models.Product, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		products = append(products, hit.Source)
	}
	return products, nil
}

func (c *ElasticsearchCatalog) buildQuery(f models.SearchFilters) map[string]interface{} {
	var must []map[string]interface{}
	var filter []map[string]interface{}

	if f.Query != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  f.Query,
				"fields": []string{"name^2", "description"},
			},
		})
	}
	if f.Brand != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"brand": f.Brand},
		})
	}
	if f.Category != "" {
		folded := c.categories.Normalize(f.Category)
		if folded == "" {
			folded = strings.ToLower(f.Category)
		}
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"category": folded},
		})
	}

	priceRange := map[string]interface{}{}
	if f.MinPrice != nil {
		priceRange["gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		priceRange["lte"] = *f.MaxPrice
	}
	if len(priceRange) > 0 {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"price": priceRange},
		})
	}
	if f.InStock != nil {
		op := "gt"
		if !*f.InStock {
			op = "lte"
		}
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"stock": map[string]interface{}{op: 0}},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	if len(boolQuery) == 0 {
		boolQuery["must"] = []map[string]interface{}{{"match_all": map[string]interface{}{}}}
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"size":  limit,
		"sort":  []map[string]interface{}{{"name.keyword": map[string]interface{}{"order": "asc"}}},
	}
}
