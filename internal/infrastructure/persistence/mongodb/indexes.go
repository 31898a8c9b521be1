package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Index names; the duplicate-key mapping in the repository matches on them.
const (
	IndexDocument     = "uniq_document"
	IndexEmail        = "uniq_email"
	IndexText         = "text_name_email"
	IndexStageActive  = "stage_active_updated"
	IndexActiveUpdate = "active_updated"
	IndexProductName  = "products_name_active"
)

// CustomerIndexes returns the index set of the customer collection.
func CustomerIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: fieldDocument, Value: 1}},
			Options: options.Index().SetName(IndexDocument).SetUnique(true),
		},
		{
			// documents without an email never collide
			Keys: bson.D{{Key: fieldEmail, Value: 1}},
			Options: options.Index().SetName(IndexEmail).SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: fieldEmail, Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
		{
			Keys:    bson.D{{Key: fieldName, Value: "text"}, {Key: fieldEmail, Value: "text"}},
			Options: options.Index().SetName(IndexText).SetWeights(bson.D{{Key: fieldName, Value: 10}, {Key: fieldEmail, Value: 5}}),
		},
		{
			Keys:    bson.D{{Key: fieldStage, Value: 1}, {Key: fieldActive, Value: 1}, {Key: fieldUpdatedAt, Value: -1}},
			Options: options.Index().SetName(IndexStageActive),
		},
		{
			Keys:    bson.D{{Key: fieldActive, Value: 1}, {Key: fieldUpdatedAt, Value: -1}},
			Options: options.Index().SetName(IndexActiveUpdate),
		},
		{
			Keys: bson.D{{Key: fieldProducts + ".name", Value: 1}},
			Options: options.Index().SetName(IndexProductName).
				SetPartialFilterExpression(bson.D{{Key: fieldProducts + ".active", Value: true}}),
		},
	}
}

// EnsureIndexes creates the customer indexes. Existing indexes with the same
// definition are left alone.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) ([]string, error) {
	names, err := coll.Indexes().CreateMany(ctx, CustomerIndexes())
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
	}
	return names, nil
}
