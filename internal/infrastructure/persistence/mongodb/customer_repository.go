package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CustomerRepository implements customer.Repository on one collection.
// Every mutation is a single findAndModify so embedded products and history
// change atomically with the parent document.
type CustomerRepository struct {
	coll *mongo.Collection
}

// NewCustomerRepository creates a CustomerRepository
func NewCustomerRepository(coll *mongo.Collection) *CustomerRepository {
	return &CustomerRepository{coll: coll}
}

var _ customer.Repository = (*CustomerRepository)(nil)

func (r *CustomerRepository) findOne(ctx context.Context, filter bson.D) (*customer.Customer, error) {
	var doc customerDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, customer.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return doc.toDomain()
}

// FindByID finds a customer by its ID
func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	return r.findOne(ctx, bson.D{{Key: fieldID, Value: id}})
}

// FindByDocument finds a customer by digits-only document
func (r *CustomerRepository) FindByDocument(ctx context.Context, document string) (*customer.Customer, error) {
	return r.findOne(ctx, bson.D{{Key: fieldDocument, Value: document}})
}

// FindByEmail finds a customer by normalized email
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	if email == "" {
		return nil, customer.ErrCustomerNotFound
	}
	return r.findOne(ctx, bson.D{{Key: fieldEmail, Value: email}})
}

// ExistsByDocument reports whether a customer holds the document
func (r *CustomerRepository) ExistsByDocument(ctx context.Context, document string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: fieldDocument, Value: document}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count customers by document: %w", err)
	}
	return n > 0, nil
}

// Create inserts a new customer
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	doc, err := newCustomerDocument(c)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translateWriteError(err, "insert customer")
	}
	return nil
}

// Update sets the patched fields and returns the updated customer.
// An empty email unsets the field so the partial unique index ignores it.
func (r *CustomerRepository) Update(ctx context.Context, id string, patch customer.Patch, now time.Time) (*customer.Customer, error) {
	set := bson.D{{Key: fieldUpdatedAt, Value: now}}
	unset := bson.D{}
	if patch.Name != nil {
		set = append(set, bson.E{Key: fieldName, Value: *patch.Name})
	}
	if patch.Email != nil {
		if *patch.Email == "" {
			unset = append(unset, bson.E{Key: fieldEmail, Value: ""})
		} else {
			set = append(set, bson.E{Key: fieldEmail, Value: *patch.Email})
		}
	}
	if patch.Phone != nil {
		set = append(set, bson.E{Key: fieldPhone, Value: *patch.Phone})
	}
	if patch.Active != nil {
		set = append(set, bson.E{Key: fieldActive, Value: *patch.Active})
	}
	if patch.Address != nil {
		set = append(set, bson.E{Key: fieldAddress, Value: *patch.Address})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return r.findOneAndUpdate(ctx, bson.D{{Key: fieldID, Value: id}}, update, customer.ErrCustomerNotFound)
}

// Delete hard-removes a customer
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: fieldID, Value: id}})
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if res.DeletedCount == 0 {
		return customer.ErrCustomerNotFound
	}
	return nil
}

// List returns active customers, most recently updated first
func (r *CustomerRepository) List(ctx context.Context, page shared.Page) ([]customer.Customer, error) {
	return r.find(ctx, bson.D{{Key: fieldActive, Value: true}}, pageOptions(page).SetSort(recentFirst))
}

// ListByStage returns active customers in stage, most recently updated first
func (r *CustomerRepository) ListByStage(ctx context.Context, stage customer.Stage, page shared.Page) ([]customer.Customer, error) {
	filter := bson.D{{Key: fieldStage, Value: string(stage)}, {Key: fieldActive, Value: true}}
	return r.find(ctx, filter, pageOptions(page).SetSort(recentFirst))
}

// Search runs a $text query over name and email ordered by text score.
// Inactive customers are included.
func (r *CustomerRepository) Search(ctx context.Context, query string, page shared.Page) ([]customer.Customer, error) {
	score := bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}}}
	opts := pageOptions(page).
		SetProjection(score).
		SetSort(append(score, bson.E{Key: fieldID, Value: 1}))
	filter := bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: strings.TrimSpace(query)}}}}
	return r.find(ctx, filter, opts)
}

// AddProduct pushes a product and returns the updated customer
func (r *CustomerRepository) AddProduct(ctx context.Context, customerID string, p customer.Product) (*customer.Customer, error) {
	pd, err := newProductDocument(p)
	if err != nil {
		return nil, err
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: fieldProducts, Value: pd}}},
		{Key: "$set", Value: bson.D{{Key: fieldUpdatedAt, Value: p.CreatedAt}}},
	}
	return r.findOneAndUpdate(ctx, bson.D{{Key: fieldID, Value: customerID}}, update, customer.ErrCustomerNotFound)
}

// UpdateProduct sets the patched fields of one embedded product through the positional operator
func (r *CustomerRepository) UpdateProduct(ctx context.Context, customerID, productID string, patch customer.ProductPatch, now time.Time) (*customer.Customer, error) {
	set := bson.D{
		{Key: "products.$.updatedAt", Value: now},
		{Key: fieldUpdatedAt, Value: now},
	}
	if patch.Name != nil {
		set = append(set, bson.E{Key: "products.$.name", Value: *patch.Name})
	}
	if patch.Value != nil {
		v, err := toDecimal128(*patch.Value)
		if err != nil {
			return nil, err
		}
		set = append(set, bson.E{Key: "products.$.value", Value: v})
	}
	if patch.Active != nil {
		set = append(set, bson.E{Key: "products.$.active", Value: *patch.Active})
	}

	filter := bson.D{{Key: fieldID, Value: customerID}, {Key: "products._id", Value: productID}}
	c, err := r.findOneAndUpdate(ctx, filter, bson.D{{Key: "$set", Value: set}}, nil)
	if err != nil || c != nil {
		return c, err
	}
	return nil, r.missingProduct(ctx, customerID)
}

// RemoveProduct pulls one embedded product
func (r *CustomerRepository) RemoveProduct(ctx context.Context, customerID, productID string, now time.Time) (*customer.Customer, error) {
	filter := bson.D{{Key: fieldID, Value: customerID}, {Key: "products._id", Value: productID}}
	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: fieldProducts, Value: bson.D{{Key: fieldID, Value: productID}}}}},
		{Key: "$set", Value: bson.D{{Key: fieldUpdatedAt, Value: now}}},
	}
	c, err := r.findOneAndUpdate(ctx, filter, update, nil)
	if err != nil || c != nil {
		return c, err
	}
	return nil, r.missingProduct(ctx, customerID)
}

// ChangeStage sets the stage and pushes the transition only while the stored
// stage still equals t.From
func (r *CustomerRepository) ChangeStage(ctx context.Context, customerID string, t customer.StageTransition) (*customer.Customer, error) {
	filter := bson.D{{Key: fieldID, Value: customerID}, {Key: fieldStage, Value: string(t.From)}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldStage, Value: string(t.To)},
			{Key: fieldStageChangedAt, Value: t.At},
			{Key: fieldUpdatedAt, Value: t.At},
		}},
		{Key: "$push", Value: bson.D{{Key: fieldStageHistory, Value: newTransitionDocument(t)}}},
	}
	c, err := r.findOneAndUpdate(ctx, filter, update, nil)
	if err != nil || c != nil {
		return c, err
	}

	exists, err := r.exists(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, customer.ErrCustomerNotFound
	}
	return nil, customer.ErrStageChanged
}

// findOneAndUpdate returns the post-image. When nothing matched it returns
// notFound, or (nil, nil) when notFound is nil so the caller can tell why.
func (r *CustomerRepository) findOneAndUpdate(ctx context.Context, filter, update bson.D, notFound error) (*customer.Customer, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc customerDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound
	}
	if err != nil {
		return nil, translateWriteError(err, "update customer")
	}
	return doc.toDomain()
}

func (r *CustomerRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]customer.Customer, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find customers: %w", err)
	}
	var docs []customerDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode customers: %w", err)
	}

	customers := make([]customer.Customer, 0, len(docs))
	for i := range docs {
		c, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, nil
}

func (r *CustomerRepository) exists(ctx context.Context, id string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: fieldID, Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count customers by id: %w", err)
	}
	return n > 0, nil
}

func (r *CustomerRepository) missingProduct(ctx context.Context, customerID string) error {
	exists, err := r.exists(ctx, customerID)
	if err != nil {
		return err
	}
	if !exists {
		return customer.ErrCustomerNotFound
	}
	return customer.ErrProductNotFound
}

var recentFirst = bson.D{{Key: fieldUpdatedAt, Value: -1}, {Key: fieldID, Value: 1}}

func pageOptions(page shared.Page) *options.FindOptions {
	return options.Find().SetLimit(int64(page.Limit)).SetSkip(int64(page.Offset))
}

// translateWriteError maps a duplicate key on the unique indexes to a conflict
func translateWriteError(err error, op string) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, IndexDocument):
		return customer.ErrDocumentTaken
	case strings.Contains(msg, IndexEmail):
		return customer.ErrEmailTaken
	default:
		return customer.ErrDuplicateCustomer
	}
}
