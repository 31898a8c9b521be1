package valueobject

import (
	"testing"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddress(t *testing.T) {
	tests := []struct {
		name        string
		in          Address
		wantErr     bool
		errContains string
	}{
		{
			name: "valid address with formatted postal code",
			in:   Address{PostalCode: "01310-100", Street: "Avenida Paulista", City: "São Paulo", StateCode: "sp"},
		},
		{
			name: "postal code only",
			in:   Address{PostalCode: "01310100"},
		},
		{
			name:        "missing postal code",
			in:          Address{Street: "Rua A"},
			wantErr:     true,
			errContains: "postal code is required",
		},
		{
			name:        "short postal code",
			in:          Address{PostalCode: "0131010"},
			wantErr:     true,
			errContains: "8 digits",
		},
		{
			name:        "state code too long",
			in:          Address{PostalCode: "01310100", StateCode: "SPX"},
			wantErr:     true,
			errContains: "state code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := NewAddress(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, shared.IsValidationError(err))
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Len(t, addr.PostalCode, 8)
		})
	}
}

func TestAddress_Normalized(t *testing.T) {
	addr := Address{PostalCode: " 01310-100 ", Street: "  Avenida Paulista ", StateCode: " sp "}.Normalized()
	assert.Equal(t, "01310100", addr.PostalCode)
	assert.Equal(t, "Avenida Paulista", addr.Street)
	assert.Equal(t, "SP", addr.StateCode)
}

func TestAddress_String(t *testing.T) {
	addr := Address{PostalCode: "01310100", Street: "Avenida Paulista", City: "São Paulo", StateCode: "SP"}
	assert.Equal(t, "Avenida Paulista, São Paulo, SP, 01310-100", addr.String())
	assert.Equal(t, "", Address{}.String())
	assert.True(t, Address{}.IsEmpty())
}

func TestAddress_ValueScan(t *testing.T) {
	addr := Address{PostalCode: "01310100", City: "São Paulo"}

	v, err := addr.Value()
	require.NoError(t, err)

	var scanned Address
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, addr, scanned)

	require.NoError(t, scanned.Scan([]byte(`{"postalCode":"20040002"}`)))
	assert.Equal(t, "20040002", scanned.PostalCode)

	assert.Error(t, scanned.Scan(42))
}

func TestIsValidPostalCode(t *testing.T) {
	assert.True(t, IsValidPostalCode("01310-100"))
	assert.False(t, IsValidPostalCode("1234"))
	assert.False(t, IsValidPostalCode(""))
}
