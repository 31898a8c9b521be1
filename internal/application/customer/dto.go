package customer

import (
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Requests
// =============================================================================

// AddressRequest is the address accepted on create and update
type AddressRequest struct {
	PostalCode string `json:"postalCode" binding:"required,postalcode"`
	Street     string `json:"street" binding:"max=200"`
	Complement string `json:"complement" binding:"max=200"`
	Unit       string `json:"unit" binding:"max=200"`
	District   string `json:"district" binding:"max=200"`
	City       string `json:"city" binding:"max=200"`
	StateCode  string `json:"stateCode" binding:"omitempty,statecode"`
	State      string `json:"state" binding:"max=200"`
	Region     string `json:"region" binding:"max=200"`
}

// ToAddress converts the request into the value object
func (r AddressRequest) ToAddress() valueobject.Address {
	return valueobject.Address{
		PostalCode: r.PostalCode,
		Street:     r.Street,
		Complement: r.Complement,
		Unit:       r.Unit,
		District:   r.District,
		City:       r.City,
		StateCode:  r.StateCode,
		State:      r.State,
		Region:     r.Region,
	}
}

// CreateCustomerRequest represents a request to create a new customer
type CreateCustomerRequest struct {
	Document string         `json:"document" binding:"required,max=18"`
	Person   string         `json:"person" binding:"required,oneof=F J"`
	Name     string         `json:"name" binding:"required,min=1,max=160"`
	Email    string         `json:"email" binding:"omitempty,email,max=200"`
	Phone    string         `json:"phone" binding:"max=30"`
	Address  AddressRequest `json:"address" binding:"required"`
}

// UpdateCustomerRequest represents a request to update a customer.
// Document and person type are not updatable.
type UpdateCustomerRequest struct {
	Name    *string         `json:"name" binding:"omitempty,min=1,max=160"`
	Email   *string         `json:"email" binding:"omitempty,email,max=200"`
	Phone   *string         `json:"phone" binding:"omitempty,max=30"`
	Active  *bool           `json:"active"`
	Address *AddressRequest `json:"address"`
}

// ToPatch converts the request into the domain patch
func (r UpdateCustomerRequest) ToPatch() customer.Patch {
	p := customer.Patch{
		Name:   r.Name,
		Email:  r.Email,
		Phone:  r.Phone,
		Active: r.Active,
	}
	if r.Address != nil {
		addr := r.Address.ToAddress()
		p.Address = &addr
	}
	return p
}

// AddProductRequest represents a request to add a product to a customer
type AddProductRequest struct {
	Name  string          `json:"name" binding:"required,min=1,max=120"`
	Value decimal.Decimal `json:"value"`
}

// UpdateProductRequest represents a request to patch a product
type UpdateProductRequest struct {
	Name   *string          `json:"name" binding:"omitempty,min=1,max=120"`
	Value  *decimal.Decimal `json:"value"`
	Active *bool            `json:"active"`
}

// ToPatch converts the request into the domain patch
func (r UpdateProductRequest) ToPatch() customer.ProductPatch {
	return customer.ProductPatch{Name: r.Name, Value: r.Value, Active: r.Active}
}

// ChangeStageRequest represents a request to move a customer to another stage
type ChangeStageRequest struct {
	NextStage string `json:"nextStage" binding:"required"`
	By        string `json:"by" binding:"max=120"`
	Note      string `json:"note" binding:"max=1000"`
}

// =============================================================================
// Responses
// =============================================================================

// AddressResponse represents an address in API responses
type AddressResponse struct {
	PostalCode string `json:"postalCode"`
	Street     string `json:"street,omitempty"`
	Complement string `json:"complement,omitempty"`
	Unit       string `json:"unit,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	StateCode  string `json:"stateCode,omitempty"`
	State      string `json:"state,omitempty"`
	Region     string `json:"region,omitempty"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// StageTransitionResponse represents a stage history record
type StageTransitionResponse struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
	By   string    `json:"by,omitempty"`
	Note string    `json:"note,omitempty"`
}

// CurrentStageResponse is the current stage projection
type CurrentStageResponse struct {
	Stage     string    `json:"stage"`
	ChangedAt time.Time `json:"changedAt"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID                string                    `json:"id"`
	Document          string                    `json:"document"`
	DocumentFormatted string                    `json:"documentFormatted"`
	Person            string                    `json:"person"`
	Name              string                    `json:"name"`
	Email             string                    `json:"email,omitempty"`
	Phone             string                    `json:"phone,omitempty"`
	Active            bool                      `json:"active"`
	Address           AddressResponse           `json:"address"`
	Stage             string                    `json:"stage"`
	StageChangedAt    time.Time                 `json:"stageChangedAt"`
	StageHistory      []StageTransitionResponse `json:"stageHistory"`
	Products          []ProductResponse         `json:"products"`
	CreatedAt         time.Time                 `json:"createdAt"`
	UpdatedAt         time.Time                 `json:"updatedAt"`
}

// ToAddressResponse converts an address value object
func ToAddressResponse(a valueobject.Address) AddressResponse {
	return AddressResponse{
		PostalCode: a.PostalCode,
		Street:     a.Street,
		Complement: a.Complement,
		Unit:       a.Unit,
		District:   a.District,
		City:       a.City,
		StateCode:  a.StateCode,
		State:      a.State,
		Region:     a.Region,
	}
}

// ToProductResponse converts a domain Product
func ToProductResponse(p customer.Product) ProductResponse {
	return ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Value:     p.Value,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ToProductResponses converts a product sequence, keeping order
func ToProductResponses(products []customer.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = ToProductResponse(p)
	}
	return out
}

// ToStageTransitionResponses converts the stage history, keeping order
func ToStageTransitionResponses(history []customer.StageTransition) []StageTransitionResponse {
	out := make([]StageTransitionResponse, len(history))
	for i, t := range history {
		out[i] = StageTransitionResponse{
			From: t.From.String(),
			To:   t.To.String(),
			At:   t.At,
			By:   t.By,
			Note: t.Note,
		}
	}
	return out
}

// ToCurrentStageResponse converts the current stage projection
func ToCurrentStageResponse(s customer.CurrentStage) CurrentStageResponse {
	return CurrentStageResponse{Stage: s.Stage.String(), ChangedAt: s.ChangedAt}
}

// ToCustomerResponse converts a domain Customer to CustomerResponse
func ToCustomerResponse(c *customer.Customer) CustomerResponse {
	doc := formatDocument(c.Document, c.Person)
	return CustomerResponse{
		ID:                c.ID,
		Document:          c.Document,
		DocumentFormatted: doc,
		Person:            string(c.Person),
		Name:              c.Name,
		Email:             c.Email,
		Phone:             c.Phone,
		Active:            c.Active,
		Address:           ToAddressResponse(c.Address),
		Stage:             c.Stage.String(),
		StageChangedAt:    c.StageChangedAt,
		StageHistory:      ToStageTransitionResponses(c.StageHistory),
		Products:          ToProductResponses(c.Products),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// ToCustomerResponses converts a slice of domain Customers
func ToCustomerResponses(customers []customer.Customer) []CustomerResponse {
	out := make([]CustomerResponse, len(customers))
	for i := range customers {
		out[i] = ToCustomerResponse(&customers[i])
	}
	return out
}

func formatDocument(document string, person valueobject.PersonType) string {
	doc, err := valueobject.NewDocument(document, person)
	if err != nil {
		return document
	}
	return doc.Formatted()
}
