package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var searchCaser = cases.Lower(language.Und)

// GormCustomerRepository implements customer.Repository on SQL tables.
// Products live in customer_products; each mutation runs in one transaction.
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

var _ customer.Repository = (*GormCustomerRepository)(nil)

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

// FindByDocument finds a customer by digits-only document
func (r *GormCustomerRepository) FindByDocument(ctx context.Context, document string) (*customer.Customer, error) {
	return r.first(r.db.WithContext(ctx), "document = ?", document)
}

// FindByEmail finds a customer by normalized email
func (r *GormCustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	if email == "" {
		return nil, customer.ErrCustomerNotFound
	}
	return r.first(r.db.WithContext(ctx), "email = ?", email)
}

// ExistsByDocument reports whether a customer holds the document
func (r *GormCustomerRepository) ExistsByDocument(ctx context.Context, document string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).
		Where("document = ?", document).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new customer with its products
func (r *GormCustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	model := models.CustomerModelFromDomain(c)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		if len(model.Products) > 0 {
			return tx.Create(&model.Products).Error
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return r.conflict(ctx, c)
	}
	return err
}

// conflict decides which unique index a failed insert hit
func (r *GormCustomerRepository) conflict(ctx context.Context, c *customer.Customer) error {
	if taken, err := r.ExistsByDocument(ctx, c.Document); err == nil && taken {
		return customer.ErrDocumentTaken
	}
	if c.Email != "" {
		if _, err := r.FindByEmail(ctx, c.Email); err == nil {
			return customer.ErrEmailTaken
		}
	}
	return customer.ErrDuplicateCustomer
}

// Update sets the patched fields and returns the updated customer.
// An empty email is stored as NULL.
func (r *GormCustomerRepository) Update(ctx context.Context, id string, patch customer.Patch, now time.Time) (*customer.Customer, error) {
	updates := map[string]any{"updated_at": now}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Email != nil {
		updates["email"] = models.NullableString(*patch.Email)
	}
	if patch.Phone != nil {
		updates["phone"] = *patch.Phone
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}
	if patch.Address != nil {
		updates["address"] = *patch.Address
	}

	var updated *customer.Customer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CustomerModel{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return customer.ErrCustomerNotFound
		}
		var err error
		updated, err = r.first(tx, "id = ?", id)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, customer.ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete hard-removes a customer and its products
func (r *GormCustomerRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("customer_id = ?", id).Delete(&models.CustomerProductModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.CustomerModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return customer.ErrCustomerNotFound
		}
		return nil
	})
}

// List returns active customers, most recently updated first
func (r *GormCustomerRepository) List(ctx context.Context, page shared.Page) ([]customer.Customer, error) {
	query := r.db.WithContext(ctx).Where("active = ?", true)
	return r.find(recentFirst(query), page)
}

// ListByStage returns active customers in stage, most recently updated first
func (r *GormCustomerRepository) ListByStage(ctx context.Context, stage customer.Stage, page shared.Page) ([]customer.Customer, error) {
	query := r.db.WithContext(ctx).Where("stage = ? AND active = ?", string(stage), true)
	return r.find(recentFirst(query), page)
}

// Search matches a case-insensitive substring of name or email.
// Name matches rank before email-only matches; inactive customers are included.
func (r *GormCustomerRepository) Search(ctx context.Context, query string, page shared.Page) ([]customer.Customer, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return []customer.Customer{}, nil
	}
	pattern := "%" + escapeLike(searchCaser.String(term)) + "%"

	q := r.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                `CASE WHEN LOWER(name) LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, updated_at DESC, id ASC`,
			Vars:               []any{pattern},
			WithoutParentheses: true,
		}})
	return r.find(q, page)
}

// AddProduct inserts a product row and returns the updated customer
func (r *GormCustomerRepository) AddProduct(ctx context.Context, customerID string, p customer.Product) (*customer.Customer, error) {
	var updated *customer.Customer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.lock(tx, customerID); err != nil {
			return err
		}
		row := models.CustomerProductModelFromDomain(customerID, p)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := r.touch(tx, customerID, p.CreatedAt); err != nil {
			return err
		}
		var err error
		updated, err = r.first(tx, "id = ?", customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateProduct sets the patched fields of one product row
func (r *GormCustomerRepository) UpdateProduct(ctx context.Context, customerID, productID string, patch customer.ProductPatch, now time.Time) (*customer.Customer, error) {
	updates := map[string]any{"updated_at": now}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Value != nil {
		updates["value"] = *patch.Value
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}

	var updated *customer.Customer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.lock(tx, customerID); err != nil {
			return err
		}
		result := tx.Model(&models.CustomerProductModel{}).
			Where("id = ? AND customer_id = ?", productID, customerID).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return customer.ErrProductNotFound
		}
		if err := r.touch(tx, customerID, now); err != nil {
			return err
		}
		var err error
		updated, err = r.first(tx, "id = ?", customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveProduct deletes one product row
func (r *GormCustomerRepository) RemoveProduct(ctx context.Context, customerID, productID string, now time.Time) (*customer.Customer, error) {
	var updated *customer.Customer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.lock(tx, customerID); err != nil {
			return err
		}
		result := tx.Where("id = ? AND customer_id = ?", productID, customerID).Delete(&models.CustomerProductModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return customer.ErrProductNotFound
		}
		if err := r.touch(tx, customerID, now); err != nil {
			return err
		}
		var err error
		updated, err = r.first(tx, "id = ?", customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeStage appends t to the history and moves the stage. The UPDATE is
// conditioned on the stored stage so a concurrent transition loses with ErrStageChanged.
func (r *GormCustomerRepository) ChangeStage(ctx context.Context, customerID string, t customer.StageTransition) (*customer.Customer, error) {
	var updated *customer.Customer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.lock(tx, customerID)
		if err != nil {
			return err
		}
		if current.Stage != string(t.From) {
			return customer.ErrStageChanged
		}

		history := append(current.StageHistory, t)
		result := tx.Model(&models.CustomerModel{}).
			Where("id = ? AND stage = ?", customerID, string(t.From)).
			Updates(map[string]any{
				"stage":            string(t.To),
				"stage_changed_at": t.At,
				"stage_history":    history,
				"updated_at":       t.At,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return customer.ErrStageChanged
		}

		updated, err = r.first(tx, "id = ?", customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// first loads one customer with its products in creation order
func (r *GormCustomerRepository) first(db *gorm.DB, query string, args ...any) (*customer.Customer, error) {
	var model models.CustomerModel
	if err := withProducts(db).Where(query, args...).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, customer.ErrCustomerNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormCustomerRepository) find(db *gorm.DB, page shared.Page) ([]customer.Customer, error) {
	var customerModels []models.CustomerModel
	if err := withProducts(db).Limit(page.Limit).Offset(page.Offset).Find(&customerModels).Error; err != nil {
		return nil, err
	}
	customers := make([]customer.Customer, len(customerModels))
	for i := range customerModels {
		customers[i] = *customerModels[i].ToDomain()
	}
	return customers, nil
}

// lock reads the customer row, holding a row lock on postgres until the transaction ends
func (r *GormCustomerRepository) lock(tx *gorm.DB, id string) (*models.CustomerModel, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model models.CustomerModel
	if err := q.Where("id = ?", id).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, customer.ErrCustomerNotFound
		}
		return nil, err
	}
	return &model, nil
}

func (r *GormCustomerRepository) touch(tx *gorm.DB, id string, now time.Time) error {
	return tx.Model(&models.CustomerModel{}).Where("id = ?", id).Update("updated_at", now).Error
}

func withProducts(db *gorm.DB) *gorm.DB {
	return db.Preload("Products", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	})
}

func recentFirst(db *gorm.DB) *gorm.DB {
	return db.Order("updated_at DESC, id ASC")
}

// escapeLike escapes LIKE wildcards so the term matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
