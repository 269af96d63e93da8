package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

var _ domain.PropertyRepository = (*PropertyRepository)(nil)

// PropertyRepository keeps each record as a JSON string and the insertion
// order in a sorted set scored by a monotonic sequence. Writes that read
// before they write run under WATCH so they apply atomically.
type PropertyRepository struct {
	client *redis.Client
	prefix string
}

func NewPropertyRepository(client *redis.Client, keyPrefix string) *PropertyRepository {
	if keyPrefix == "" {
		keyPrefix = "properties"
	}
	return &PropertyRepository{client: client, prefix: keyPrefix}
}

func (r *PropertyRepository) recordKey(id string) string { return r.prefix + ":record:" + id }
func (r *PropertyRepository) orderKey() string          { return r.prefix + ":order" }
func (r *PropertyRepository) seqKey() string            { return r.prefix + ":seq" }

func (r *PropertyRepository) List(ctx context.Context) ([]domain.Property, error) {
	ids, err := r.client.ZRange(ctx, r.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis PropertyRepository.List: zrange: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Property{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis PropertyRepository.List: mget: %w", err)
	}

	out := make([]domain.Property, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		var p domain.Property
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("redis PropertyRepository.List: decode %s: %w", ids[i], err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *PropertyRepository) FindByID(ctx context.Context, id string) (*domain.Property, error) {
	data, err := r.client.Get(ctx, r.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis PropertyRepository.FindByID %s: %w", id, err)
	}
	var p domain.Property
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("redis PropertyRepository.FindByID %s: decode: %w", id, err)
	}
	return &p, nil
}

func (r *PropertyRepository) Create(ctx context.Context, p domain.Property) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis PropertyRepository.Create: encode: %w", err)
	}
	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("redis PropertyRepository.Create: next sequence: %w", err)
	}

	key := r.recordKey(p.ID)
	err = r.withRetry(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrDuplicateID
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, r.orderKey(), redis.Z{Score: float64(seq), Member: p.ID})
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("redis PropertyRepository.Create %s: %w", p.ID, err)
	}
	return nil
}

func (r *PropertyRepository) Update(ctx context.Context, id string, patch domain.Patch, now time.Time) (*domain.Property, error) {
	key := r.recordKey(id)
	var merged domain.Property
	err := r.withRetry(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrPropertyNotFound
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &merged); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		patch.Apply(&merged, now)
		out, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, fmt.Errorf("redis PropertyRepository.Update %s: %w", id, err)
	}
	return &merged, nil
}

func (r *PropertyRepository) Delete(ctx context.Context, id string) error {
	key := r.recordKey(id)
	err := r.withRetry(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrPropertyNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, r.orderKey(), id)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("redis PropertyRepository.Delete %s: %w", id, err)
	}
	return nil
}

func (r *PropertyRepository) Filter(ctx context.Context, f domain.Filter) ([]domain.Property, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(all), nil
}

func (r *PropertyRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.orderKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis PropertyRepository.Count: %w", err)
	}
	return int(n), nil
}

// Seed writes bootstrap records, skipping ids that already exist.
func (r *PropertyRepository) Seed(ctx context.Context, props []domain.Property) (int, error) {
	loaded := 0
	for _, p := range props {
		err := r.Create(ctx, p)
		if errors.Is(err, domain.ErrDuplicateID) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("redis PropertyRepository.Seed %s: %w", p.ID, err)
		}
		loaded++
	}
	return loaded, nil
}

// withRetry runs fn under WATCH on keys and retries when another client
// touched them before EXEC.
func (r *PropertyRepository) withRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis PropertyRepository: transaction on %v failed after %d attempts", keys, maxTxRetries)
}
