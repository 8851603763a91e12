package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/retail-orders-backend/internal/model"
)

// ErrCartVersion is returned when the stored cart moved past the version the
// caller read.
var ErrCartVersion = errors.New("cart version mismatch")

type CartRepository interface {
	Get(ctx context.Context, identity string) (*model.CartDocument, error)
	Save(ctx context.Context, identity string, doc *model.CartDocument) error
}

type cartRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCartRepository(client *redis.Client, prefix string, ttl time.Duration) CartRepository {
	if prefix == "" {
		prefix = "cart"
	}
	return &cartRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *cartRepository) key(identity string) string {
	return fmt.Sprintf("%s:%s", r.prefix, identity)
}

// Get returns an empty version-0 document when nothing is stored.
func (r *cartRepository) Get(ctx context.Context, identity string) (*model.CartDocument, error) {
	raw, err := r.client.Get(ctx, r.key(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &model.CartDocument{Lines: []model.CartLine{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCart(raw)
}

// Save writes doc only if the stored version still equals doc.Version, then
// bumps doc.Version.
func (r *cartRepository) Save(ctx context.Context, identity string, doc *model.CartDocument) error {
	key := r.key(identity)
	next := model.CartDocument{Lines: doc.Lines, Version: doc.Version + 1}
	if next.Lines == nil {
		next.Lines = []model.CartLine{}
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return err
	}
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		var current int64
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			stored, err := decodeCart(raw)
			if err != nil {
				return err
			}
			current = stored.Version
		}
		if current != doc.Version {
			return ErrCartVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrCartVersion
	}
	if err != nil {
		return err
	}
	doc.Version = next.Version
	return nil
}

func decodeCart(raw []byte) (*model.CartDocument, error) {
	var doc model.CartDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if doc.Lines == nil {
		doc.Lines = []model.CartLine{}
	}
	return &doc, nil
}
