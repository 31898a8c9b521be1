package customer

import (
	"context"
	"time"

	"github.com/crm/backend/internal/domain/shared"
)

// Repository defines customer persistence.
// Every mutation is a single atomic write against one customer; the store's unique
// indexes on document and email are the authoritative uniqueness guarantee.
type Repository interface {
	// FindByID returns ErrCustomerNotFound when absent
	FindByID(ctx context.Context, id string) (*Customer, error)

	// FindByDocument looks up by digits-only document; ErrCustomerNotFound when absent
	FindByDocument(ctx context.Context, document string) (*Customer, error)

	// FindByEmail looks up by normalized email; ErrCustomerNotFound when absent
	FindByEmail(ctx context.Context, email string) (*Customer, error)

	// ExistsByDocument reports whether a customer holds the document
	ExistsByDocument(ctx context.Context, document string) (bool, error)

	// Create inserts a new customer; a unique-index violation is a conflict error
	Create(ctx context.Context, c *Customer) error

	// Update sets the patched fields and returns the updated customer
	Update(ctx context.Context, id string, patch Patch, now time.Time) (*Customer, error)

	// Delete hard-removes a customer; ErrCustomerNotFound when absent
	Delete(ctx context.Context, id string) error

	// List returns active customers, most recently updated first
	List(ctx context.Context, page shared.Page) ([]Customer, error)

	// ListByStage returns active customers in stage, most recently updated first
	ListByStage(ctx context.Context, stage Stage, page shared.Page) ([]Customer, error)

	// Search matches name and email, most relevant first
	Search(ctx context.Context, query string, page shared.Page) ([]Customer, error)

	// AddProduct appends a product and returns the updated customer
	AddProduct(ctx context.Context, customerID string, p Product) (*Customer, error)

	// UpdateProduct patches one product; ErrProductNotFound when the customer has no such product
	UpdateProduct(ctx context.Context, customerID, productID string, patch ProductPatch, now time.Time) (*Customer, error)

	// RemoveProduct pulls one product; ErrProductNotFound when the customer has no such product
	RemoveProduct(ctx context.Context, customerID, productID string, now time.Time) (*Customer, error)

	// ChangeStage moves the stage and appends t to the history in one write, only if the
	// stored stage still equals t.From; otherwise ErrStageChanged
	ChangeStage(ctx context.Context, customerID string, t StageTransition) (*Customer, error)
}
