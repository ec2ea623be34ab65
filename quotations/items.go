package quotations

import (
	"context"
	"fmt"

	"repuestos-backoffice/database"
	"repuestos-backoffice/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ItemResult is the state after a line-item change.
type ItemResult struct {
	Quotation models.Quotation      `json:"quotation"`
	Item      *models.QuotationItem `json:"item,omitempty"`
}

// AddItem adds quantity units of a product at unitPrice. When the product
// already has a line, quantities are summed, unitPrice replaces the old
// price and the product snapshot is refreshed.
func (s *Service) AddItem(ctx context.Context, quotationID, productID string, quantity int, unitPrice decimal.Decimal) (*ItemResult, error) {
	var res ItemResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		q, err := loadOpen(tx, quotationID)
		if err != nil {
			return err
		}
		p, err := loadProduct(tx, productID, productNotFound)
		if err != nil {
			return err
		}

		existing, err := tx.Query(database.Query{
			Collection: database.Collection(models.CollQuotations, quotationID, models.CollQuotationItems),
			Where:      []database.Filter{{Field: "productId", Value: productID}},
			OrderBy:    "createdAt",
			Limit:      1,
		})
		if err != nil {
			return err
		}

		now := s.now()
		var item models.QuotationItem
		oldSubtotal := 0.0
		if len(existing) > 0 {
			if err := existing[0].Decode(&item); err != nil {
				return err
			}
			oldSubtotal = item.Subtotal
			item.Quantity += quantity
		} else {
			item = models.QuotationItem{
				ID:        s.store.NewID(),
				ProductID: p.ID,
				Quantity:  quantity,
				CreatedAt: now,
			}
		}
		item.ProductName = p.Name
		item.Brand = p.Brand
		item.Code = p.StoreCode
		item.Color = p.Color
		item.Description = p.Description
		item.UnitPrice = amount(unitPrice)
		item.Subtotal = amount(subtotal(item.Quantity, unitPrice))
		item.UpdatedAt = now

		if err := tx.Set(itemPath(quotationID, item.ID), item); err != nil {
			return err
		}
		q.Total = adjustTotal(q.Total, oldSubtotal, item.Subtotal)
		q.UpdatedAt = now
		if err := tx.Update(quotationPath(quotationID), database.Fields{"total": q.Total, "updatedAt": now}); err != nil {
			return err
		}
		res = ItemResult{Quotation: *q, Item: &item}
		return nil
	})
	if err != nil {
		return nil, s.fail("add_item", quotationID, err)
	}
	s.log.Debug("quotation item added",
		zap.String("quotation_id", quotationID),
		zap.String("product_id", productID),
		zap.Int("quantity", res.Item.Quantity),
		zap.Float64("total", res.Quotation.Total))
	return &res, nil
}

// UpdateItem sets the quantity and unit price of a line. Callers validate
// that both are positive.
func (s *Service) UpdateItem(ctx context.Context, quotationID, itemID string, quantity int, unitPrice decimal.Decimal) (*ItemResult, error) {
	var res ItemResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		q, err := loadOpen(tx, quotationID)
		if err != nil {
			return err
		}
		item, err := loadItem(tx, quotationID, itemID)
		if err != nil {
			return err
		}

		now := s.now()
		oldSubtotal := item.Subtotal
		item.Quantity = quantity
		item.UnitPrice = amount(unitPrice)
		item.Subtotal = amount(subtotal(quantity, unitPrice))
		item.UpdatedAt = now

		err = tx.Update(itemPath(quotationID, itemID), database.Fields{
			"quantity":  item.Quantity,
			"unitPrice": item.UnitPrice,
			"subtotal":  item.Subtotal,
			"updatedAt": now,
		})
		if err != nil {
			return err
		}
		q.Total = adjustTotal(q.Total, oldSubtotal, item.Subtotal)
		q.UpdatedAt = now
		if err := tx.Update(quotationPath(quotationID), database.Fields{"total": q.Total, "updatedAt": now}); err != nil {
			return err
		}
		res = ItemResult{Quotation: *q, Item: item}
		return nil
	})
	if err != nil {
		return nil, s.fail("update_item", quotationID, err)
	}
	return &res, nil
}

// RemoveItem deletes a line and subtracts its current subtotal, read in
// the same transaction, from the total.
func (s *Service) RemoveItem(ctx context.Context, quotationID, itemID string) (*ItemResult, error) {
	var res ItemResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		q, err := loadOpen(tx, quotationID)
		if err != nil {
			return err
		}
		item, err := loadItem(tx, quotationID, itemID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.Delete(itemPath(quotationID, itemID)); err != nil {
			return err
		}
		q.Total = adjustTotal(q.Total, item.Subtotal, 0)
		q.UpdatedAt = now
		if err := tx.Update(quotationPath(quotationID), database.Fields{"total": q.Total, "updatedAt": now}); err != nil {
			return err
		}
		res = ItemResult{Quotation: *q}
		return nil
	})
	if err != nil {
		return nil, s.fail("remove_item", quotationID, err)
	}
	return &res, nil
}

func productNotFound(id string) error {
	return fmt.Errorf("%w: el producto %q no existe", ErrNotFound, id)
}
