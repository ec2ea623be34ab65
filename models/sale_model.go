package models

import "time"

type SaleStatus string

const SaleCompleted SaleStatus = "completada"

type SaleOrigin string

const (
	SaleDirect            SaleOrigin = "directa"
	SaleQuotationApproved SaleOrigin = "cotizacionAprobada"
)

// DefaultSaleNotes is used when a confirmed quotation carries no notes.
const DefaultSaleNotes = "Convertido de cotización"

type Sale struct {
	ID            string        `bson:"_id" json:"id"`
	QuotationID   string        `bson:"quotationId,omitempty" json:"quotationId,omitempty"` // empty for direct sales
	ClientID      string        `bson:"clientId,omitempty" json:"clientId,omitempty"`
	ClientName    string        `bson:"clientName" json:"clientName"`
	ClientDNI     string        `bson:"clientDni,omitempty" json:"clientDni,omitempty"`
	Total         float64       `bson:"total" json:"total"`
	SaleDate      time.Time     `bson:"saleDate" json:"saleDate"`
	EmployeeID    string        `bson:"employeeId,omitempty" json:"employeeId,omitempty"`
	Notes         string        `bson:"notes,omitempty" json:"notes,omitempty"`
	Status        SaleStatus    `bson:"status" json:"status"`
	PaymentMethod PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	Origin        SaleOrigin    `bson:"origin" json:"origin"`
	Plate         string        `bson:"plate,omitempty" json:"plate,omitempty"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`
}

type SaleItem = LineItem

// SaleWithItems is a sale together with its itemsVenta lines.
type SaleWithItems struct {
	Sale
	Items []SaleItem `json:"items"`
}
