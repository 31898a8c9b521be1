package customer

import "github.com/crm/backend/internal/domain/shared"

var (
	ErrCustomerNotFound = shared.NewNotFoundError("customer not found")
	ErrProductNotFound  = shared.NewNotFoundError("product not found")

	ErrDocumentTaken     = shared.NewConflictError("a customer with this document already exists")
	ErrEmailTaken        = shared.NewConflictError("a customer with this email already exists")
	ErrDuplicateCustomer = shared.NewConflictError("customer violates a uniqueness constraint")
	ErrAlreadyInactive   = shared.NewConflictError("customer is already inactive")
	ErrReactivation      = shared.NewConflictError("inactive customers cannot be reactivated")
	ErrSameStage         = shared.NewConflictError("customer is already in this stage")
	ErrStageChanged      = shared.NewConflictError("customer stage was changed by another request")

	ErrInvalidStage = shared.NewValidationError("invalid stage. Use: LEAD, NEGOCIACAO, VENDIDO")
)
