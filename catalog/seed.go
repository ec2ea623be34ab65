package catalog

import (
	"context"
	"time"

	"repuestos-backoffice/database"
	"repuestos-backoffice/models"
)

// Seed loads a small demo catalog when the products collection is empty.
// It is used with the in-memory store, which starts blank.
func Seed(ctx context.Context, store database.Store) error {
	existing, err := store.Query(ctx, database.Query{Collection: models.CollProducts, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now()
	return store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		for _, p := range defaultProducts() {
			p.CreatedAt, p.UpdatedAt = now, now
			if err := tx.Set(database.Doc(models.CollProducts, p.ID), p); err != nil {
				return err
			}
		}
		for _, c := range defaultClients() {
			c.CreatedAt = now
			if err := tx.Set(database.Doc(models.CollClients, c.ID), c); err != nil {
				return err
			}
		}
		for _, e := range defaultEmployees() {
			e.CreatedAt = now
			if err := tx.Set(database.Doc(models.CollEmployees, e.ID), e); err != nil {
				return err
			}
		}
		return nil
	})
}

func defaultProducts() []models.Product {
	return []models.Product{
		{ID: "prd-filtro-aceite", Name: "Filtro de aceite", Brand: "Bosch", StoreCode: "FA-001", SupplierCode: "0986AF0051", Description: "Filtro de aceite roscado", CompatibleModels: "Toyota Corolla, Toyota Yaris", SalePrice: 25.90, Stock: 40},
		{ID: "prd-pastillas-freno", Name: "Pastillas de freno delanteras", Brand: "Brembo", StoreCode: "PF-010", SupplierCode: "P83140", Description: "Juego x4", CompatibleModels: "Hyundai Accent, Kia Rio", SalePrice: 119.00, Stock: 12},
		{ID: "prd-bujia", Name: "Bujía iridium", Brand: "NGK", StoreCode: "BJ-200", SupplierCode: "ILKAR7B11", CompatibleModels: "Nissan Sentra, Toyota Corolla", SalePrice: 38.50, Stock: 64},
		{ID: "prd-espejo", Name: "Espejo retrovisor izquierdo", Brand: "Depo", StoreCode: "ER-031", Description: "Eléctrico con desempañador", Color: "Negro", CompatibleModels: "Kia Picanto 2018", SalePrice: 210.00, Stock: 3},
		{ID: "prd-aceite-5w30", Name: "Aceite 5W-30 sintético 1L", Brand: "Mobil", StoreCode: "AC-530", SupplierCode: "MOB-5W30-1", SalePrice: 42.00, Stock: 80},
	}
}

func defaultClients() []models.Client {
	return []models.Client{
		{ID: "cli-001", Name: "María", LastName: "Quispe", DNI: "45879632", Phone: "987654321"},
		{ID: "cli-002", Name: "Jorge", LastName: "Ramírez", DNI: "40122334"},
	}
}

func defaultEmployees() []models.Employee {
	return []models.Employee{
		{ID: "emp-001", Name: "Luis", LastName: "Torres", Role: "Vendedor"},
		{ID: "emp-002", Name: "Ana", LastName: "Flores", Role: "Administradora"},
	}
}
