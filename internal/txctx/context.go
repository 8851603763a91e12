package txctx

import (
	"context"

	"gorm.io/gorm"
)

type ctxKey string

const (
	keyTx  ctxKey = "gorm_tx"
	keyRID ctxKey = "request_id"
)

// WithTx stores the active transaction so repositories join it.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, keyTx, tx)
}

// Tx returns the active transaction if present.
func Tx(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(keyTx).(*gorm.DB)
	return tx, ok && tx != nil
}

// WithRID stores the request correlation id for service logs.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRID, rid)
}

// RID returns correlation id if present.
func RID(ctx context.Context) string {
	v, _ := ctx.Value(keyRID).(string)
	return v
}
