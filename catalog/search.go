package catalog

import (
	"context"
	"strings"

	"repuestos-backoffice/database"
	"repuestos-backoffice/models"
)

const DefaultSearchLimit = 20

// SearchProducts matches term, case-insensitively, against the name, brand,
// codes, description and compatible models of every product. An empty term
// matches nothing.
func (c *Catalog) SearchProducts(ctx context.Context, term string, limit int) ([]models.Product, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []models.Product{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	snaps, err := c.store.Query(ctx, database.Query{Collection: models.CollProducts, OrderBy: "name"})
	if err != nil {
		return nil, err
	}
	all, err := decodeAll[models.Product](snaps)
	if err != nil {
		return nil, err
	}

	out := []models.Product{}
	for _, p := range all {
		if matches(p, term) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func matches(p models.Product, term string) bool {
	for _, field := range []string{p.Name, p.Brand, p.StoreCode, p.SupplierCode, p.Description, p.CompatibleModels} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
