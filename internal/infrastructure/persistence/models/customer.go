package models

import (
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CustomerModel is the persistence model for the Customer aggregate.
// Email is nullable so customers without one never collide on the unique index.
type CustomerModel struct {
	BaseModel
	Document       string                                        `gorm:"type:varchar(14);not null;uniqueIndex:uniq_customers_document"`
	Person         string                                        `gorm:"type:varchar(1);not null"`
	Name           string                                        `gorm:"type:varchar(160);not null"`
	Email          *string                                       `gorm:"type:varchar(254);uniqueIndex:uniq_customers_email"`
	Phone          string                                        `gorm:"type:varchar(40)"`
	Active         bool                                          `gorm:"not null;default:true;index:idx_customers_stage_active,priority:2"`
	Address        valueobject.Address                           `gorm:"type:jsonb;not null"`
	Stage          string                                        `gorm:"type:varchar(20);not null;index:idx_customers_stage_active,priority:1"`
	StageChangedAt time.Time                                     `gorm:"not null"`
	StageHistory   datatypes.JSONSlice[customer.StageTransition] `gorm:"not null"`
	Products       []CustomerProductModel                        `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// CustomerProductModel is one product row owned by a customer
type CustomerProductModel struct {
	ID         string          `gorm:"type:varchar(36);primaryKey"`
	CustomerID string          `gorm:"type:varchar(36);not null;index"`
	Name       string          `gorm:"type:varchar(120);not null"`
	Value      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Active     bool            `gorm:"not null;default:true"`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerProductModel) TableName() string {
	return "customer_products"
}

// ToDomain converts the persistence model to a domain Customer.
// Products must be preloaded in creation order.
func (m *CustomerModel) ToDomain() *customer.Customer {
	products := make([]customer.Product, 0, len(m.Products))
	for i := range m.Products {
		products = append(products, m.Products[i].ToDomain())
	}
	history := make([]customer.StageTransition, 0, len(m.StageHistory))
	history = append(history, m.StageHistory...)

	c := &customer.Customer{
		Document:       m.Document,
		Person:         valueobject.PersonType(m.Person),
		Name:           m.Name,
		Phone:          m.Phone,
		Active:         m.Active,
		Address:        m.Address,
		Stage:          customer.Stage(m.Stage),
		StageChangedAt: m.StageChangedAt,
		StageHistory:   history,
		Products:       products,
	}
	if m.Email != nil {
		c.Email = *m.Email
	}
	c.BaseEntity = m.BaseModel.ToDomain()
	return c
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *customer.Customer) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Document = c.Document
	m.Person = string(c.Person)
	m.Name = c.Name
	m.Email = NullableString(c.Email)
	m.Phone = c.Phone
	m.Active = c.Active
	m.Address = c.Address
	m.Stage = string(c.Stage)
	m.StageChangedAt = c.StageChangedAt
	m.StageHistory = append(datatypes.JSONSlice[customer.StageTransition]{}, c.StageHistory...)
	m.Products = make([]CustomerProductModel, 0, len(c.Products))
	for _, p := range c.Products {
		m.Products = append(m.Products, CustomerProductModelFromDomain(c.ID, p))
	}
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer
func CustomerModelFromDomain(c *customer.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// ToDomain converts the product row to a domain Product
func (m *CustomerProductModel) ToDomain() customer.Product {
	return customer.Product{
		ID:        m.ID,
		Name:      m.Name,
		Value:     m.Value,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// CustomerProductModelFromDomain creates a product row owned by customerID
func CustomerProductModelFromDomain(customerID string, p customer.Product) CustomerProductModel {
	return CustomerProductModel{
		ID:         p.ID,
		CustomerID: customerID,
		Name:       p.Name,
		Value:      p.Value,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// NullableString maps the empty string to NULL
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
