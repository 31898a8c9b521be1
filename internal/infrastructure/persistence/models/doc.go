// Package models contains GORM-specific persistence models that map to SQL tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel shared by every table
//   - customer.go: customers and customer_products
//
// Embedded value objects (address, stage history) are stored as JSON columns;
// products live in their own table keyed by customer.
package models
