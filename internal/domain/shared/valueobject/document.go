package valueobject

import (
	"strings"

	"github.com/crm/backend/internal/domain/shared"
)

// PersonType selects which national identifier a document must be.
// The values are part of the storage and wire contract.
type PersonType string

const (
	PersonIndividual   PersonType = "F" // CPF, 11 digits
	PersonOrganization PersonType = "J" // CNPJ, 14 digits
)

// IsValid reports whether the person type is a recognized value
func (p PersonType) IsValid() bool {
	return p == PersonIndividual || p == PersonOrganization
}

const (
	cpfLength  = 11
	cnpjLength = 14
)

// Validation failure reasons
const (
	ReasonDocumentRequired    = "document required"
	ReasonInvalidIndividual   = "invalid individual document"
	ReasonInvalidOrganization = "invalid organization document"
	ReasonUnknownPersonType   = "unknown person type"
)

// DocumentValidation is the outcome of ValidateDocument
type DocumentValidation struct {
	Valid  bool
	Reason string
}

func invalid(reason string) DocumentValidation {
	return DocumentValidation{Reason: reason}
}

// NormalizeDocument strips every non-digit character
func NormalizeDocument(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ValidateDocument checks the check digits of a CPF or CNPJ.
// Punctuation is ignored; an empty document is reported before the person type is examined.
func ValidateDocument(raw string, person PersonType) DocumentValidation {
	digits := NormalizeDocument(raw)
	if digits == "" {
		return invalid(ReasonDocumentRequired)
	}

	switch person {
	case PersonIndividual:
		if !validCPF(digits) {
			return invalid(ReasonInvalidIndividual)
		}
	case PersonOrganization:
		if !validCNPJ(digits) {
			return invalid(ReasonInvalidOrganization)
		}
	default:
		return invalid(ReasonUnknownPersonType)
	}
	return DocumentValidation{Valid: true}
}

// validCPF always runs the checksum. Repeated-digit sequences satisfy both check
// digits, so they are rejected after the checksum passes.
func validCPF(d string) bool {
	if len(d) != cpfLength {
		return false
	}
	if cpfCheckDigit(d[:9], 10) != digitAt(d, 9) || cpfCheckDigit(d[:10], 11) != digitAt(d, 10) {
		return false
	}
	return !allSame(d)
}

func cpfCheckDigit(d string, firstWeight int) int {
	sum := 0
	for i := 0; i < len(d); i++ {
		sum += digitAt(d, i) * (firstWeight - i)
	}
	r := (sum * 10) % 11
	if r == 10 || r == 11 {
		return 0
	}
	return r
}

func validCNPJ(d string) bool {
	if len(d) != cnpjLength || allSame(d) {
		return false
	}
	return cnpjCheckDigit(d[:12]) == digitAt(d, 12) &&
		cnpjCheckDigit(d[:13]) == digitAt(d, 13)
}

// cnpjCheckDigit weights digits right to left with the cycle 2..9
func cnpjCheckDigit(d string) int {
	sum := 0
	weight := 2
	for i := len(d) - 1; i >= 0; i-- {
		sum += digitAt(d, i) * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}

func digitAt(d string, i int) int {
	return int(d[i] - '0')
}

// Document is a validated, digits-only CPF or CNPJ
type Document struct {
	number string
	person PersonType
}

// NewDocument validates raw against person and returns the normalized document
func NewDocument(raw string, person PersonType) (Document, error) {
	if res := ValidateDocument(raw, person); !res.Valid {
		return Document{}, shared.NewValidationError(res.Reason)
	}
	return Document{number: NormalizeDocument(raw), person: person}, nil
}

// Number returns the digits-only document
func (d Document) Number() string {
	return d.number
}

// PersonType returns the person type the document was validated against
func (d Document) PersonType() PersonType {
	return d.person
}

// String returns the digits-only document
func (d Document) String() string {
	return d.number
}

// Formatted returns the punctuated form: 000.000.000-00 or 00.000.000/0000-00
func (d Document) Formatted() string {
	n := d.number
	switch len(n) {
	case cpfLength:
		return n[0:3] + "." + n[3:6] + "." + n[6:9] + "-" + n[9:11]
	case cnpjLength:
		return n[0:2] + "." + n[2:5] + "." + n[5:8] + "/" + n[8:12] + "-" + n[12:14]
	default:
		return n
	}
}
