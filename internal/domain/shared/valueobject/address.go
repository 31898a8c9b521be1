package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crm/backend/internal/domain/shared"
)

const (
	postalCodeLength  = 8
	maxStateCodeLen   = 2
	maxAddressLineLen = 200
)

// Address is the embedded postal address of a customer.
// It has no identity of its own and is replaced as a whole.
type Address struct {
	PostalCode string `json:"postalCode" bson:"postalCode"`
	Street     string `json:"street,omitempty" bson:"street,omitempty"`
	Complement string `json:"complement,omitempty" bson:"complement,omitempty"`
	Unit       string `json:"unit,omitempty" bson:"unit,omitempty"`
	District   string `json:"district,omitempty" bson:"district,omitempty"`
	City       string `json:"city,omitempty" bson:"city,omitempty"`
	StateCode  string `json:"stateCode,omitempty" bson:"stateCode,omitempty"`
	State      string `json:"state,omitempty" bson:"state,omitempty"`
	Region     string `json:"region,omitempty" bson:"region,omitempty"`
}

// NormalizePostalCode strips every non-digit character from a CEP
func NormalizePostalCode(raw string) string {
	return NormalizeDocument(raw)
}

// IsValidPostalCode reports whether raw holds exactly eight digits once normalized
func IsValidPostalCode(raw string) bool {
	return len(NormalizePostalCode(raw)) == postalCodeLength
}

// Normalized returns a copy with trimmed fields, a digits-only postal code
// and an uppercased state code
func (a Address) Normalized() Address {
	return Address{
		PostalCode: NormalizePostalCode(a.PostalCode),
		Street:     strings.TrimSpace(a.Street),
		Complement: strings.TrimSpace(a.Complement),
		Unit:       strings.TrimSpace(a.Unit),
		District:   strings.TrimSpace(a.District),
		City:       strings.TrimSpace(a.City),
		StateCode:  strings.ToUpper(strings.TrimSpace(a.StateCode)),
		State:      strings.TrimSpace(a.State),
		Region:     strings.TrimSpace(a.Region),
	}
}

// Validate checks the normalized address
func (a Address) Validate() error {
	if a.PostalCode == "" {
		return shared.NewValidationError("address postal code is required")
	}
	if len(a.PostalCode) != postalCodeLength {
		return shared.NewValidationError("address postal code must have 8 digits")
	}
	if len(a.StateCode) > maxStateCodeLen {
		return shared.NewValidationError("address state code cannot exceed 2 characters")
	}
	for _, line := range []string{a.Street, a.Complement, a.Unit, a.District, a.City, a.State, a.Region} {
		if len(line) > maxAddressLineLen {
			return shared.NewValidationError(fmt.Sprintf("address fields cannot exceed %d characters", maxAddressLineLen))
		}
	}
	return nil
}

// NewAddress normalizes and validates an address
func NewAddress(a Address) (Address, error) {
	n := a.Normalized()
	if err := n.Validate(); err != nil {
		return Address{}, err
	}
	return n, nil
}

// IsEmpty returns true if no field is set
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// FormattedPostalCode returns the CEP as 00000-000
func (a Address) FormattedPostalCode() string {
	if len(a.PostalCode) != postalCodeLength {
		return a.PostalCode
	}
	return a.PostalCode[:5] + "-" + a.PostalCode[5:]
}

// String returns a single-line representation
func (a Address) String() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{a.Street, a.Complement, a.District, a.City, a.StateCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if a.PostalCode != "" {
		parts = append(parts, a.FormattedPostalCode())
	}
	return strings.Join(parts, ", ")
}

// Value implements driver.Valuer so the address is stored as a JSON column
func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Address", value)
	}
	return json.Unmarshal(data, a)
}
