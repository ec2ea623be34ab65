package models

import "time"

type Product struct {
	ID               string    `bson:"_id" json:"id"`
	Name             string    `bson:"name" json:"name"`
	Brand            string    `bson:"brand" json:"brand"`
	StoreCode        string    `bson:"storeCode" json:"storeCode"`
	SupplierCode     string    `bson:"supplierCode,omitempty" json:"supplierCode,omitempty"`
	Description      string    `bson:"description,omitempty" json:"description,omitempty"`
	Color            string    `bson:"color,omitempty" json:"color,omitempty"`
	CompatibleModels string    `bson:"compatibleModels,omitempty" json:"compatibleModels,omitempty"` // free text, e.g. "Corolla 2015, Yaris"
	SalePrice        float64   `bson:"salePrice" json:"salePrice"`
	Stock            int       `bson:"stock" json:"stock"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Client struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	LastName  string    `bson:"lastName,omitempty" json:"lastName,omitempty"`
	DNI       string    `bson:"dni,omitempty" json:"dni,omitempty"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// FullName joins name and last name, skipping the empty one.
func (c Client) FullName() string {
	return joinName(c.Name, c.LastName)
}

type Employee struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	LastName  string    `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Role      string    `bson:"role,omitempty" json:"role,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (e Employee) FullName() string {
	return joinName(e.Name, e.LastName)
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
