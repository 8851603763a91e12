package main

import (
	"context"
	"errors"
	"testing"

	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inTxKey struct{}

type recordingTx struct {
	calls int
	err   error
}

func (t *recordingTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		return err
	}
	return t.err
}

type recordingItems struct {
	repository.ItemRepository
	count     int64
	inTx      bool
	linked    []uint64
	createErr error
}

func (r *recordingItems) Count(ctx context.Context) (int64, error) {
	return r.count, nil
}

func (r *recordingItems) CreatePromotion(ctx context.Context, p *model.Promotion, itemIDs []uint64) error {
	r.inTx, _ = ctx.Value(inTxKey{}).(bool)
	r.linked = itemIDs
	return r.createErr
}

func TestCreatePromotionRunsInTransaction(t *testing.T) {
	tx := &recordingTx{}
	items := &recordingItems{}

	require.NoError(t, createPromotion(context.Background(), tx, items, &model.Promotion{Name: "Launch week"}, []uint64{1, 2}))
	assert.Equal(t, 1, tx.calls)
	assert.True(t, items.inTx)
	assert.Equal(t, []uint64{1, 2}, items.linked)

	items.createErr = errors.New("duplicate link")
	err := createPromotion(context.Background(), tx, items, &model.Promotion{Name: "Launch week"}, []uint64{1})
	assert.ErrorContains(t, err, "create promotion: duplicate link")
}

func TestShouldSeed(t *testing.T) {
	tests := []struct {
		name  string
		count int64
		force string
		want  bool
	}{
		{"empty catalog", 0, "", true},
		{"existing items", 3, "", false},
		{"forced", 3, "TRUE", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FORCE_SEED", tt.force)
			got, err := shouldSeed(context.Background(), &recordingItems{count: tt.count})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
