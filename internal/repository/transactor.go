package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/retail-orders-backend/internal/txctx"
	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

// Transactor runs a unit of work atomically. Repositories called with the
// context handed to fn join the same transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// nested calls reuse the outer transaction
	if _, ok := txctx.Tx(ctx); ok {
		return fn(ctx)
	}
	if t.db == nil {
		return ErrDBNotReady
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(txctx.WithTx(ctx, tx))
	})
}

// conn returns the transaction carried by ctx, or the base handle.
func conn(ctx context.Context, db *gorm.DB) (*gorm.DB, error) {
	if tx, ok := txctx.Tx(ctx); ok {
		return tx, nil
	}
	if db == nil {
		return nil, ErrDBNotReady
	}
	return db.WithContext(ctx), nil
}
