// Package mongodb persists customers as single MongoDB documents with embedded
// products and stage history.
package mongodb

import (
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field names shared by queries, updates and indexes.
const (
	fieldID             = "_id"
	fieldDocument       = "document"
	fieldName           = "name"
	fieldEmail          = "email"
	fieldPhone          = "phone"
	fieldActive         = "active"
	fieldAddress        = "address"
	fieldStage          = "stage"
	fieldStageChangedAt = "stageChangedAt"
	fieldStageHistory   = "stageHistory"
	fieldProducts       = "products"
	fieldUpdatedAt      = "updatedAt"
)

type customerDocument struct {
	ID             string               `bson:"_id"`
	Document       string               `bson:"document"`
	Person         string               `bson:"person"`
	Name           string               `bson:"name"`
	Email          string               `bson:"email,omitempty"`
	Phone          string               `bson:"phone,omitempty"`
	Active         bool                 `bson:"active"`
	Address        valueobject.Address  `bson:"address"`
	Stage          string               `bson:"stage"`
	StageChangedAt time.Time            `bson:"stageChangedAt"`
	StageHistory   []transitionDocument `bson:"stageHistory"`
	Products       []productDocument    `bson:"products"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

type transitionDocument struct {
	From string    `bson:"from"`
	To   string    `bson:"to"`
	At   time.Time `bson:"at"`
	By   string    `bson:"by,omitempty"`
	Note string    `bson:"note,omitempty"`
}

type productDocument struct {
	ID        string               `bson:"_id"`
	Name      string               `bson:"name"`
	Value     primitive.Decimal128 `bson:"value"`
	Active    bool                 `bson:"active"`
	CreatedAt time.Time            `bson:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt"`
}

func newCustomerDocument(c *customer.Customer) (*customerDocument, error) {
	products := make([]productDocument, 0, len(c.Products))
	for _, p := range c.Products {
		pd, err := newProductDocument(p)
		if err != nil {
			return nil, err
		}
		products = append(products, pd)
	}
	history := make([]transitionDocument, 0, len(c.StageHistory))
	for _, t := range c.StageHistory {
		history = append(history, newTransitionDocument(t))
	}

	return &customerDocument{
		ID:             c.ID,
		Document:       c.Document,
		Person:         string(c.Person),
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		Active:         c.Active,
		Address:        c.Address,
		Stage:          string(c.Stage),
		StageChangedAt: c.StageChangedAt,
		StageHistory:   history,
		Products:       products,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}, nil
}

func newTransitionDocument(t customer.StageTransition) transitionDocument {
	return transitionDocument{
		From: string(t.From),
		To:   string(t.To),
		At:   t.At,
		By:   t.By,
		Note: t.Note,
	}
}

func newProductDocument(p customer.Product) (productDocument, error) {
	value, err := toDecimal128(p.Value)
	if err != nil {
		return productDocument{}, err
	}
	return productDocument{
		ID:        p.ID,
		Name:      p.Name,
		Value:     value,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

func (d *customerDocument) toDomain() (*customer.Customer, error) {
	products := make([]customer.Product, 0, len(d.Products))
	for _, p := range d.Products {
		value, err := fromDecimal128(p.Value)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.ID, err)
		}
		products = append(products, customer.Product{
			ID:        p.ID,
			Name:      p.Name,
			Value:     value,
			Active:    p.Active,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	history := make([]customer.StageTransition, 0, len(d.StageHistory))
	for _, t := range d.StageHistory {
		history = append(history, customer.StageTransition{
			From: customer.Stage(t.From),
			To:   customer.Stage(t.To),
			At:   t.At,
			By:   t.By,
			Note: t.Note,
		})
	}

	c := &customer.Customer{
		Document:       d.Document,
		Person:         valueobject.PersonType(d.Person),
		Name:           d.Name,
		Email:          d.Email,
		Phone:          d.Phone,
		Active:         d.Active,
		Address:        d.Address,
		Stage:          customer.Stage(d.Stage),
		StageChangedAt: d.StageChangedAt,
		StageHistory:   history,
		Products:       products,
	}
	c.BaseEntity = shared.BaseEntity{ID: d.ID, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
	return c, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("convert decimal128 %s: %w", v, err)
	}
	return d, nil
}
