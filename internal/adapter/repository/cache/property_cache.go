package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Abdurahmanit/property-service/internal/platform/logger"
	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTTL = time.Hour

var _ domain.PropertyRepository = (*PropertyRepository)(nil)

// PropertyRepository caches single-record lookups of another store in
// redis. Writes go to the backing store first and then drop the cached
// entry. Cache failures are logged and never fail the call.
type PropertyRepository struct {
	next   domain.PropertyRepository
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *logger.Logger
}

func NewPropertyRepository(next domain.PropertyRepository, client *redis.Client, keyPrefix string, ttl time.Duration, log *logger.Logger) *PropertyRepository {
	if keyPrefix == "" {
		keyPrefix = "properties"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &PropertyRepository{
		next:   next,
		client: client,
		prefix: keyPrefix + ":cache:",
		ttl:    ttl,
		logger: log.Named("PropertyCache"),
	}
}

func (c *PropertyRepository) key(id string) string    { return c.prefix + id }
func (c *PropertyRepository) genKey(id string) string { return c.prefix + id + ":gen" }

// FindByID serves from the cache and fills it on a miss. The fill is
// skipped when an Update or Delete invalidated the id while the backing
// store was being read, so a stale record is never written back.
func (c *PropertyRepository) FindByID(ctx context.Context, id string) (*domain.Property, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		var p domain.Property
		if jerr := json.Unmarshal(data, &p); jerr == nil {
			return &p, nil
		}
		c.logger.Warn("dropping undecodable cache entry", zap.String("property_id", id))
		c.drop(ctx, id)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", zap.String("property_id", id), zap.Error(err))
	}

	gen, genErr := c.client.Get(ctx, c.genKey(id)).Result()
	if errors.Is(genErr, redis.Nil) {
		gen, genErr = "", nil
	}

	p, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		c.fill(ctx, p, gen)
	}
	return p, nil
}

func (c *PropertyRepository) Update(ctx context.Context, id string, patch domain.Patch, now time.Time) (*domain.Property, error) {
	p, err := c.next.Update(ctx, id, patch, now)
	if err != nil {
		return nil, err
	}
	c.drop(ctx, id)
	return p, nil
}

func (c *PropertyRepository) Delete(ctx context.Context, id string) error {
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.drop(ctx, id)
	return nil
}

func (c *PropertyRepository) List(ctx context.Context) ([]domain.Property, error) {
	return c.next.List(ctx)
}

func (c *PropertyRepository) Create(ctx context.Context, p domain.Property) error {
	return c.next.Create(ctx, p)
}

func (c *PropertyRepository) Filter(ctx context.Context, f domain.Filter) ([]domain.Property, error) {
	return c.next.Filter(ctx, f)
}

func (c *PropertyRepository) Count(ctx context.Context) (int, error) {
	return c.next.Count(ctx)
}

// Seed forwards to the backing store when it supports bulk loading.
func (c *PropertyRepository) Seed(ctx context.Context, props []domain.Property) (int, error) {
	seeder, ok := c.next.(domain.Seeder)
	if !ok {
		return 0, nil
	}
	return seeder.Seed(ctx, props)
}

var errStaleFill = errors.New("cache generation changed")

// fill caches p if the id's generation still equals gen.
func (c *PropertyRepository) fill(ctx context.Context, p *domain.Property, gen string) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	genKey := c.genKey(p.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(p.ID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("skipping cache fill after concurrent write", zap.String("property_id", p.ID))
	default:
		c.logger.Warn("cache write failed", zap.String("property_id", p.ID), zap.Error(err))
	}
}

// drop removes the entry and bumps the id's generation.
func (c *PropertyRepository) drop(ctx context.Context, id string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.key(id))
		pipe.Incr(ctx, c.genKey(id))
		pipe.Expire(ctx, c.genKey(id), c.ttl)
		return nil
	})
	if err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("property_id", id), zap.Error(err))
	}
}
