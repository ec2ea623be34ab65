package quotations

import (
	"errors"
	"fmt"

	"repuestos-backoffice/database"
	"repuestos-backoffice/models"
)

var (
	ErrNotFound          = errors.New("no encontrado")
	ErrInvalidState      = errors.New("la cotización no admite cambios")
	ErrEmptyQuotation    = errors.New("la cotización no tiene productos")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrProductNotFound   = errors.New("producto no encontrado")
	ErrInvalidInput      = errors.New("datos inválidos")

	// ErrConflictRetryExhausted is the store error, re-exported so callers
	// need not import database.
	ErrConflictRetryExhausted = database.ErrConflictRetryExhausted
)

// StockError names the product that blocked a confirmation.
type StockError struct {
	ProductID   string
	ProductName string
	Stock       int
	Requested   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("stock insuficiente para el producto %q: stock actual: %d, cantidad solicitada: %d",
		e.ProductName, e.Stock, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

func quotationNotFound(id string) error {
	return fmt.Errorf("%w: la cotización %q no existe", ErrNotFound, id)
}

func itemNotFound(id string) error {
	return fmt.Errorf("%w: el ítem %q no existe en la cotización", ErrNotFound, id)
}

func invalidState(q *models.Quotation) error {
	return fmt.Errorf("%w: la cotización %q está %s", ErrInvalidState, q.ID, q.Status)
}

// reason is the metric label of a failure.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrEmptyQuotation):
		return "empty_quotation"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConflictRetryExhausted):
		return "conflict"
	}
	return "internal"
}

// isBusiness reports whether err is a rule violation rather than an
// infrastructure failure.
func isBusiness(err error) bool {
	r := reason(err)
	return r != "internal" && r != "conflict"
}
