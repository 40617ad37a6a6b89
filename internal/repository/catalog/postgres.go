// internal/repository/catalog/postgres.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"shop-assistant/internal/common/logger"
	entityextractor "shop-assistant/internal/nlu/entity-extractor"
	"shop-assistant/internal/models"
)

const defaultLimit = 20

// PostgresCatalog serves filtered product lookups from the relational
// store. It is read-only: the dialogue core never writes the catalog.
type PostgresCatalog struct {
	db         *sql.DB
	categories entityextractor.CategoryTable
	logger     logger.Logger
}

func NewPostgresCatalog(db *sql.DB, categories entityextractor.CategoryTable, log logger.Logger) *PostgresCatalog {
	if categories == nil {
		categories = entityextractor.DefaultCategories
	}
	return &PostgresCatalog{
		db:         db,
		categories: categories,
		logger:     log.WithFields(map[string]interface{}{"component": "catalog-postgres"}),
	}
}

// Search builds one filtered query from the given set. Ordering is stable
// (by name) so identical filter sets against an unchanged catalog return
// identical result sequences.
func (c *PostgresCatalog) Search(ctx context.Context, f models.SearchFilters) ([]models.Product, error) {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR description ILIKE %s)", p, p))
	}
	if f.Brand != "" {
		p := arg("%" + f.Brand + "%")
		conds = append(conds, fmt.Sprintf("(brand ILIKE %s OR name ILIKE %s)", p, p))
	}
	if f.MinPrice != nil {
		conds = append(conds, fmt.Sprintf("price >= %s", arg(*f.MinPrice)))
	}
	if f.MaxPrice != nil {
		conds = append(conds, fmt.Sprintf("price <= %s", arg(*f.MaxPrice)))
	}
	if f.Category != "" {
		// Folded form plus the raw term, in case the term is not in the
		// synonym table but is stored verbatim.
		folded := c.categories.Normalize(f.Category)
		if folded == "" {
			folded = strings.ToLower(f.Category)
		}
		p1 := arg(folded)
		p2 := arg(f.Category)
		conds = append(conds, fmt.Sprintf("(category ILIKE %s OR category ILIKE %s)", p1, p2))
	}
	if f.InStock != nil {
		if *f.InStock {
			conds = append(conds, "stock > 0")
		} else {
			conds = append(conds, "stock = 0")
		}
	}

	query := "SELECT id, name, brand, price, category, stock, description FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query += fmt.Sprintf(" ORDER BY name LIMIT %s", arg(limit))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Price, &p.Category, &p.Stock, &p.Description); err != nil {
			return nil, fmt.Errorf("catalog scan: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog rows: %w", err)
	}

	return products, nil
}

// FindByName resolves a product by exact-ish name match for order creation.
func (c *PostgresCatalog) FindByName(ctx context.Context, name string) (*models.Product, error) {
	var p models.Product
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, brand, price, category, stock, description
		FROM products
		WHERE name ILIKE $1
		ORDER BY name
		LIMIT 1`, "%"+name+"%").Scan(
		&p.ID, &p.Name, &p.Brand, &p.Price, &p.Category, &p.Stock, &p.Description,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	return &p, nil
}
