package customer

import (
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxNameLength = 160

var emailCaser = cases.Lower(language.Und)

// Customer is the aggregate root of the CRM.
// Document and Person are fixed at creation; Stage only moves through ChangeStage.
type Customer struct {
	shared.BaseAggregateRoot
	Document       string                 `json:"document"`
	Person         valueobject.PersonType `json:"person"`
	Name           string                 `json:"name"`
	Email          string                 `json:"email,omitempty"`
	Phone          string                 `json:"phone,omitempty"`
	Active         bool                   `json:"active"`
	Address        valueobject.Address    `json:"address"`
	Stage          Stage                  `json:"stage"`
	StageChangedAt time.Time              `json:"stageChangedAt"`
	StageHistory   []StageTransition      `json:"stageHistory"`
	Products       []Product              `json:"products"`
}

// NewCustomerInput carries the fields accepted at creation
type NewCustomerInput struct {
	Document string
	Person   valueobject.PersonType
	Name     string
	Email    string
	Phone    string
	Address  valueobject.Address
}

// Patch enumerates the fields Update may change; nil means unchanged.
// An empty Email removes the address.
type Patch struct {
	Name    *string
	Email   *string
	Phone   *string
	Active  *bool
	Address *valueobject.Address
}

// NormalizeEmail trims and lowercases an email
func NormalizeEmail(email string) string {
	return emailCaser.String(strings.TrimSpace(email))
}

// NewCustomer validates the input and returns a LEAD customer with empty history and products
func NewCustomer(in NewCustomerInput) (*Customer, error) {
	doc, err := valueobject.NewDocument(in.Document, in.Person)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	addr, err := valueobject.NewAddress(in.Address)
	if err != nil {
		return nil, err
	}

	c := &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Document:          doc.Number(),
		Person:            doc.PersonType(),
		Name:              name,
		Email:             NormalizeEmail(in.Email),
		Phone:             strings.TrimSpace(in.Phone),
		Active:            true,
		Address:           addr,
		Stage:             StageLead,
		StageHistory:      []StageTransition{},
		Products:          []Product{},
	}
	c.StageChangedAt = c.CreatedAt

	c.AddDomainEvent(NewCustomerCreatedEvent(c))

	return c, nil
}

// Normalize trims and validates the patch
func (p Patch) Normalize() (Patch, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := validateName(name); err != nil {
			return Patch{}, err
		}
		p.Name = &name
	}
	if p.Email != nil {
		email := NormalizeEmail(*p.Email)
		p.Email = &email
	}
	if p.Phone != nil {
		phone := strings.TrimSpace(*p.Phone)
		p.Phone = &phone
	}
	if p.Address != nil {
		addr, err := valueobject.NewAddress(*p.Address)
		if err != nil {
			return Patch{}, err
		}
		p.Address = &addr
	}
	return p, nil
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Active == nil && p.Address == nil
}

// CheckActivation rejects a patch that would reactivate an inactive customer
func (c *Customer) CheckActivation(p Patch) error {
	if p.Active != nil && *p.Active && !c.Active {
		return ErrReactivation
	}
	return nil
}

// Apply applies a normalized patch
func (c *Customer) Apply(p Patch, now time.Time) error {
	if err := c.CheckActivation(p); err != nil {
		return err
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	c.Touch(now)
	return nil
}

// Inactivate moves active from true to false; there is no way back
func (c *Customer) Inactivate(now time.Time) error {
	if !c.Active {
		return ErrAlreadyInactive
	}
	c.Active = false
	c.Touch(now)
	return nil
}

// ChangeStage appends the transition to the history and moves the stage
func (c *Customer) ChangeStage(next Stage, by, note string, now time.Time) (StageTransition, error) {
	t, err := NewStageTransition(c.Stage, next, by, note, now)
	if err != nil {
		return StageTransition{}, err
	}
	c.StageHistory = append(c.StageHistory, t)
	c.Stage = next
	c.StageChangedAt = now
	c.Touch(now)
	return t, nil
}

// CurrentStage projects the stage and when it last changed
func (c *Customer) CurrentStage() CurrentStage {
	return CurrentStage{Stage: c.Stage, ChangedAt: c.StageChangedAt}
}

// FindProduct returns the product with the given id
func (c *Customer) FindProduct(productID string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == productID {
			return p, true
		}
	}
	return Product{}, false
}

// AddProduct appends a product
func (c *Customer) AddProduct(p Product) {
	c.Products = append(c.Products, p)
	c.Touch(p.CreatedAt)
}

// UpdateProduct applies a normalized patch to the product with the given id
func (c *Customer) UpdateProduct(productID string, patch ProductPatch, now time.Time) (Product, error) {
	for i := range c.Products {
		if c.Products[i].ID == productID {
			c.Products[i] = c.Products[i].Apply(patch, now)
			c.Touch(now)
			return c.Products[i], nil
		}
	}
	return Product{}, ErrProductNotFound
}

// RemoveProduct removes the product entry entirely
func (c *Customer) RemoveProduct(productID string, now time.Time) error {
	for i := range c.Products {
		if c.Products[i].ID == productID {
			c.Products = append(c.Products[:i], c.Products[i+1:]...)
			c.Touch(now)
			return nil
		}
	}
	return ErrProductNotFound
}

func validateName(name string) error {
	if name == "" {
		return shared.NewValidationError("name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return shared.NewValidationError("name cannot exceed 160 characters")
	}
	return nil
}
