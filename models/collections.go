package models

// Collection names of the document store. Quotation and sale lines live in
// subcollections of their parent document.
const (
	CollProducts       = "products"
	CollClients        = "clients"
	CollEmployees      = "employees"
	CollQuotations     = "quotations"
	CollQuotationItems = "itemsCotizacion"
	CollSales          = "sales"
	CollSaleItems      = "itemsVenta"
	CollUsers          = "users"
)
