package models

import "time"

type QuotationStatus string

const (
	QuotationDraft     QuotationStatus = "borrador"
	QuotationPending   QuotationStatus = "pendiente"
	QuotationConfirmed QuotationStatus = "confirmada"
	QuotationCancelled QuotationStatus = "cancelada"
)

// Open reports whether the quotation still accepts changes.
func (s QuotationStatus) Open() bool {
	return s == QuotationDraft || s == QuotationPending
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "Efectivo"
	PaymentCard     PaymentMethod = "Tarjeta"
	PaymentTransfer PaymentMethod = "Transferencia"
	PaymentYape     PaymentMethod = "Yape"
	PaymentPlin     PaymentMethod = "Plin"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentYape, PaymentPlin:
		return true
	}
	return false
}

// PendingClientName is shown while a quotation has no client assigned.
const PendingClientName = "Cliente Pendiente"

// Quotation holds denormalized client and employee fields copied when the
// reference was set. They are not refreshed if the source record changes.
type Quotation struct {
	ID            string          `bson:"_id" json:"id"`
	Number        string          `bson:"number,omitempty" json:"number,omitempty"`
	ClientID      string          `bson:"clientId,omitempty" json:"clientId,omitempty"`
	ClientName    string          `bson:"clientName" json:"clientName"`
	ClientDNI     string          `bson:"clientDni,omitempty" json:"clientDni,omitempty"`
	EmployeeID    string          `bson:"employeeId,omitempty" json:"employeeId,omitempty"`
	EmployeeName  string          `bson:"employeeName,omitempty" json:"employeeName,omitempty"`
	EmployeeRole  string          `bson:"employeeRole,omitempty" json:"employeeRole,omitempty"`
	Plate         string          `bson:"plate,omitempty" json:"plate,omitempty"`
	PaymentMethod PaymentMethod   `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	Notes         string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Status        QuotationStatus `bson:"status" json:"status"`
	Total         float64         `bson:"total" json:"total"`
	SaleID        string          `bson:"saleId,omitempty" json:"saleId,omitempty"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// LineItem is the product snapshot shared by quotation and sale lines.
type LineItem struct {
	ID          string    `bson:"_id" json:"id"`
	ProductID   string    `bson:"productId" json:"productId"`
	ProductName string    `bson:"productName" json:"productName"`
	Brand       string    `bson:"brand,omitempty" json:"brand,omitempty"`
	Code        string    `bson:"code,omitempty" json:"code,omitempty"`
	Color       string    `bson:"color,omitempty" json:"color,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Quantity    int       `bson:"quantity" json:"quantity"`
	UnitPrice   float64   `bson:"unitPrice" json:"unitPrice"`
	Subtotal    float64   `bson:"subtotal" json:"subtotal"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

type QuotationItem = LineItem
