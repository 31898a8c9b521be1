package customer

import (
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxProductNameLength = 120

// Product is a sub-entity of Customer with its own identifier.
// Deactivating a product does not remove it from the sequence.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ProductPatch enumerates the mutable product fields; nil means unchanged
type ProductPatch struct {
	Name   *string
	Value  *decimal.Decimal
	Active *bool
}

// IsEmpty reports whether the patch changes nothing
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Value == nil && p.Active == nil
}

// NewProduct creates an active product with a fresh identifier
func NewProduct(name string, value decimal.Decimal, now time.Time) (Product, error) {
	name = strings.TrimSpace(name)
	if err := validateProductName(name); err != nil {
		return Product{}, err
	}
	if err := validateProductValue(value); err != nil {
		return Product{}, err
	}
	return Product{
		ID:        uuid.NewString(),
		Name:      name,
		Value:     value,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Normalize trims and validates the patch
func (p ProductPatch) Normalize() (ProductPatch, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := validateProductName(name); err != nil {
			return ProductPatch{}, err
		}
		p.Name = &name
	}
	if p.Value != nil {
		if err := validateProductValue(*p.Value); err != nil {
			return ProductPatch{}, err
		}
	}
	return p, nil
}

// Apply returns a copy of the product with the patch applied and UpdatedAt refreshed
func (p Product) Apply(patch ProductPatch, now time.Time) Product {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Value != nil {
		p.Value = *patch.Value
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	p.UpdatedAt = now
	return p
}

func validateProductName(name string) error {
	if name == "" {
		return shared.NewValidationError("product name is required")
	}
	if len([]rune(name)) > maxProductNameLength {
		return shared.NewValidationError("product name cannot exceed 120 characters")
	}
	return nil
}

func validateProductValue(value decimal.Decimal) error {
	if value.IsNegative() {
		return shared.NewValidationError("product value cannot be negative")
	}
	return nil
}
