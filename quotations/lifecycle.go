package quotations

import (
	"context"
	"fmt"
	"time"

	"repuestos-backoffice/database"
	"repuestos-backoffice/events"
	"repuestos-backoffice/models"

	"go.uber.org/zap"
)

// Transitions out of the open states. Confirmed and cancelled are terminal.
var validNext = map[models.QuotationStatus][]models.QuotationStatus{
	models.QuotationDraft:     {models.QuotationPending, models.QuotationConfirmed, models.QuotationCancelled},
	models.QuotationPending:   {models.QuotationConfirmed, models.QuotationCancelled},
	models.QuotationConfirmed: {},
	models.QuotationCancelled: {},
}

func CanTransition(from, to models.QuotationStatus) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ConfirmResult struct {
	Quotation models.Quotation     `json:"quotation"`
	Sale      models.SaleWithItems `json:"sale"`
}

// demand is the total quantity a quotation takes from one product.
type demand struct {
	product  *models.Product
	required int
}

// Confirm converts the quotation into a sale. Stock of every product is
// checked before anything is written; the sale, its lines, the stock
// decrements and the status change commit together or not at all.
// operatorID identifies the user confirming and is recorded on the sale.
func (s *Service) Confirm(ctx context.Context, quotationID, operatorID string) (*ConfirmResult, error) {
	var res ConfirmResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		q, err := loadQuotation(tx, quotationID)
		if err != nil {
			return err
		}
		if !CanTransition(q.Status, models.QuotationConfirmed) {
			return invalidState(q)
		}

		snaps, err := tx.Query(itemsQuery(quotationID))
		if err != nil {
			return err
		}
		items, err := decodeItems(snaps)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyQuotation, quotationID)
		}

		// A product may appear on more than one line, so stock is checked
		// and decremented against the summed quantity.
		var order []string
		demands := make(map[string]*demand)
		for _, it := range items {
			d, ok := demands[it.ProductID]
			if !ok {
				p, err := loadProduct(tx, it.ProductID, func(id string) error {
					return fmt.Errorf("%w: el producto %q (%s) ya no existe", ErrProductNotFound, it.ProductName, id)
				})
				if err != nil {
					return err
				}
				d = &demand{product: p}
				demands[it.ProductID] = d
				order = append(order, it.ProductID)
			}
			d.required += it.Quantity
		}
		for _, id := range order {
			d := demands[id]
			if d.product.Stock < d.required {
				return &StockError{
					ProductID:   id,
					ProductName: d.product.Name,
					Stock:       d.product.Stock,
					Requested:   d.required,
				}
			}
		}

		now := s.now()
		sale := newSale(s.store.NewID(), q, operatorID, now)
		if err := tx.Set(database.Doc(models.CollSales, sale.ID), sale); err != nil {
			return err
		}
		for _, id := range order {
			d := demands[id]
			err := tx.Update(database.Doc(models.CollProducts, id), database.Fields{
				"stock":     d.product.Stock - d.required,
				"updatedAt": now,
			})
			if err != nil {
				return err
			}
		}
		saleItems := make([]models.SaleItem, len(items))
		for i, it := range items {
			saleItems[i] = it
			if err := tx.Set(database.Doc(models.CollSales, sale.ID, models.CollSaleItems, it.ID), it); err != nil {
				return err
			}
		}

		q.Status = models.QuotationConfirmed
		q.SaleID = sale.ID
		q.UpdatedAt = now
		err = tx.Update(quotationPath(quotationID), database.Fields{
			"status":    q.Status,
			"saleId":    sale.ID,
			"updatedAt": now,
		})
		if err != nil {
			return err
		}
		res = ConfirmResult{Quotation: *q, Sale: models.SaleWithItems{Sale: sale, Items: saleItems}}
		return nil
	})
	if err != nil {
		return nil, s.fail("confirm", quotationID, err)
	}

	s.recorder.QuotationConfirmed(res.Sale.Total)
	s.log.Info("quotation confirmed",
		zap.String("quotation_id", quotationID),
		zap.String("sale_id", res.Sale.ID),
		zap.Float64("total", res.Sale.Total),
		zap.Int("items", len(res.Sale.Items)))
	s.publish(ctx, events.EventSaleCreated, quotationID, saleCreatedPayload(&res.Sale))
	return &res, nil
}

// Cancel closes an open quotation without touching stock or lines.
func (s *Service) Cancel(ctx context.Context, quotationID string) (*models.Quotation, error) {
	var cancelled *models.Quotation
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		q, err := loadQuotation(tx, quotationID)
		if err != nil {
			return err
		}
		if !CanTransition(q.Status, models.QuotationCancelled) {
			return invalidState(q)
		}
		q.Status = models.QuotationCancelled
		q.UpdatedAt = s.now()
		cancelled = q
		return tx.Update(quotationPath(quotationID), database.Fields{"status": q.Status, "updatedAt": q.UpdatedAt})
	})
	if err != nil {
		return nil, s.fail("cancel", quotationID, err)
	}

	s.recorder.QuotationCancelled()
	s.log.Info("quotation cancelled", zap.String("quotation_id", quotationID))
	s.publish(ctx, events.EventQuotationCancelled, quotationID, events.QuotationCancelledPayload{QuotationID: quotationID})
	return cancelled, nil
}

func newSale(id string, q *models.Quotation, operatorID string, now time.Time) models.Sale {
	payment := q.PaymentMethod
	if payment == "" {
		payment = models.PaymentCash
	}
	notes := q.Notes
	if notes == "" {
		notes = models.DefaultSaleNotes
	}
	employeeID := operatorID
	if employeeID == "" {
		employeeID = q.EmployeeID
	}
	return models.Sale{
		ID:            id,
		QuotationID:   q.ID,
		ClientID:      q.ClientID,
		ClientName:    q.ClientName,
		ClientDNI:     q.ClientDNI,
		Total:         q.Total,
		SaleDate:      now,
		EmployeeID:    employeeID,
		Notes:         notes,
		Status:        models.SaleCompleted,
		PaymentMethod: payment,
		Origin:        models.SaleQuotationApproved,
		Plate:         q.Plate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func saleCreatedPayload(sale *models.SaleWithItems) events.SaleCreatedPayload {
	items := make([]events.SaleItem, len(sale.Items))
	for i, it := range sale.Items {
		items[i] = events.SaleItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		}
	}
	return events.SaleCreatedPayload{
		SaleID:        sale.ID,
		QuotationID:   sale.QuotationID,
		ClientID:      sale.ClientID,
		EmployeeID:    sale.EmployeeID,
		PaymentMethod: string(sale.PaymentMethod),
		Total:         sale.Total,
		Items:         items,
	}
}

// publish sends an event after a commit. Failures are logged and never
// undo the committed change.
func (s *Service) publish(ctx context.Context, eventType, quotationID string, payload any) {
	env, err := events.New(s.producer, eventType, quotationID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, env)
	}
	if err != nil {
		s.log.Warn("event not published",
			zap.String("event_type", eventType),
			zap.String("quotation_id", quotationID),
			zap.Error(err))
	}
}
