package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abdurahmanit/property-service/internal/platform/clock"
	"github.com/Abdurahmanit/property-service/internal/platform/logger"
	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"github.com/Abdurahmanit/property-service/internal/property/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// maxIDAttempts bounds regeneration when a fresh id collides with a stored one.
	maxIDAttempts = 3
	tracerName    = "property-service/usecase"
)

// MetricsRecorder receives one call per successful mutation.
type MetricsRecorder interface {
	Created()
	Updated()
	Deleted()
	Stored(n int)
}

// PropertyUsecase is the Listing Service: the only writer of the store.
type PropertyUsecase struct {
	repo      domain.PropertyRepository
	schema    *validation.Schema
	publisher domain.EventPublisher
	metrics   MetricsRecorder
	clock     clock.Clock
	ids       clock.IDGenerator
	logger    *logger.Logger
}

// NewPropertyUsecase wires the service. A nil publisher or metrics recorder
// disables that side effect.
func NewPropertyUsecase(
	repo domain.PropertyRepository,
	schema *validation.Schema,
	publisher domain.EventPublisher,
	metrics MetricsRecorder,
	clk clock.Clock,
	ids clock.IDGenerator,
	log *logger.Logger,
) *PropertyUsecase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if ids == nil {
		ids = clock.UUIDGenerator{}
	}
	return &PropertyUsecase{
		repo:      repo,
		schema:    schema,
		publisher: publisher,
		metrics:   metrics,
		clock:     clk,
		ids:       ids,
		logger:    log.Named("PropertyUsecase"),
	}
}

// List returns every listing in insertion order.
func (uc *PropertyUsecase) List(ctx context.Context) ([]domain.Property, error) {
	ctx, span := startSpan(ctx, "PropertyUsecase.List")
	defer span.End()

	props, err := uc.repo.List(ctx)
	if err != nil {
		fail(span, err)
		uc.logger.Error("failed to list properties", zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("property.count", len(props)))
	return props, nil
}

// Get returns domain.ErrPropertyNotFound when the id is unknown.
func (uc *PropertyUsecase) Get(ctx context.Context, id string) (*domain.Property, error) {
	ctx, span := startSpan(ctx, "PropertyUsecase.Get", attribute.String("property.id", id))
	defer span.End()

	p, err := uc.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrPropertyNotFound) {
		span.SetAttributes(attribute.Bool("property.found", false))
		uc.logger.Debug("property not found", zap.String("property_id", id))
		return nil, err
	}
	if err != nil {
		fail(span, err)
		uc.logger.Error("failed to get property", zap.String("property_id", id), zap.Error(err))
		return nil, err
	}
	return p, nil
}

// Create stores a new listing with a generated id and equal timestamps.
func (uc *PropertyUsecase) Create(ctx context.Context, in domain.NewProperty) (*domain.Property, error) {
	ctx, span := startSpan(ctx, "PropertyUsecase.Create",
		attribute.String("property.city", in.City),
		attribute.String("property.type", string(in.Type)))
	defer span.End()

	if err := uc.schema.CheckNew(in); err != nil {
		fail(span, err)
		return nil, err
	}

	now := uc.clock.Now()
	var (
		p   domain.Property
		err error
	)
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		p = in.Build(uc.ids.NewID(), now)
		err = uc.repo.Create(ctx, p)
		if !errors.Is(err, domain.ErrDuplicateID) {
			break
		}
		uc.logger.Warn("generated property id already in use, retrying", zap.String("property_id", p.ID))
	}
	if err != nil {
		fail(span, err)
		uc.logger.Error("failed to create property", zap.Error(err))
		return nil, fmt.Errorf("create property: %w", err)
	}
	span.SetAttributes(attribute.String("property.id", p.ID))

	uc.metrics.Created()
	uc.notify(ctx, "created", p.ID, func(ctx context.Context) error {
		return uc.publisher.PropertyCreated(ctx, p)
	})
	uc.logger.Info("property created", zap.String("property_id", p.ID), zap.String("city", p.City))
	return &p, nil
}

// Update merges patch over the stored listing and refreshes updatedAt.
// An empty patch only refreshes updatedAt.
func (uc *PropertyUsecase) Update(ctx context.Context, id string, patch domain.Patch) (*domain.Property, error) {
	ctx, span := startSpan(ctx, "PropertyUsecase.Update", attribute.String("property.id", id))
	defer span.End()

	if err := uc.schema.CheckPatch(patch); err != nil {
		fail(span, err)
		return nil, err
	}

	p, err := uc.repo.Update(ctx, id, patch, uc.clock.Now())
	if errors.Is(err, domain.ErrPropertyNotFound) {
		span.SetAttributes(attribute.Bool("property.found", false))
		uc.logger.Debug("property not found for update", zap.String("property_id", id))
		return nil, err
	}
	if err != nil {
		fail(span, err)
		uc.logger.Error("failed to update property", zap.String("property_id", id), zap.Error(err))
		return nil, err
	}

	uc.metrics.Updated()
	updated := *p
	uc.notify(ctx, "updated", id, func(ctx context.Context) error {
		return uc.publisher.PropertyUpdated(ctx, updated)
	})
	uc.logger.Info("property updated", zap.String("property_id", id))
	return p, nil
}

// Delete reports false, with a nil error, when nothing had the id.
func (uc *PropertyUsecase) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := startSpan(ctx, "PropertyUsecase.Delete", attribute.String("property.id", id))
	defer span.End()

	err := uc.repo.Delete(ctx, id)
	if errors.Is(err, domain.ErrPropertyNotFound) {
		span.SetAttributes(attribute.Bool("property.found", false))
		uc.logger.Debug("property not found for delete", zap.String("property_id", id))
		return false, nil
	}
	if err != nil {
		fail(span, err)
		uc.logger.Error("failed to delete property", zap.String("property_id", id), zap.Error(err))
		return false, err
	}

	uc.metrics.Deleted()
	uc.notify(ctx, "deleted", id, func(ctx context.Context) error {
		return uc.publisher.PropertyDeleted(ctx, id)
	})
	uc.logger.Info("property deleted", zap.String("property_id", id))
	return true, nil
}

// Filter returns the listings matching every supplied criterion, in
// insertion order. An empty filter is the same as List.
func (uc *PropertyUsecase) Filter(ctx context.Context, f domain.Filter) ([]domain.Property, error) {
	if f.IsEmpty() {
		return uc.List(ctx)
	}
	ctx, span := startSpan(ctx, "PropertyUsecase.Filter",
		attribute.String("filter.city", f.City),
		attribute.String("filter.type", string(f.Type)))
	defer span.End()

	props, err := uc.repo.Filter(ctx, f)
	if err != nil {
		fail(span, err)
		uc.logger.Error("failed to filter properties",
			zap.String("city", f.City),
			zap.String("type", string(f.Type)),
			zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("property.count", len(props)))
	return props, nil
}

// Bootstrap performs the one-time initial load. It writes nothing when the
// store already holds records or cannot accept a bulk load, and returns how
// many records were written.
func (uc *PropertyUsecase) Bootstrap(ctx context.Context, props []domain.Property) (int, error) {
	ctx, span := startSpan(ctx, "PropertyUsecase.Bootstrap", attribute.Int("seed.offered", len(props)))
	defer span.End()

	count, err := uc.repo.Count(ctx)
	if err != nil {
		fail(span, err)
		return 0, fmt.Errorf("bootstrap: count: %w", err)
	}
	if count > 0 {
		uc.logger.Info("store already populated, skipping seed", zap.Int("count", count))
		uc.metrics.Stored(count)
		return 0, nil
	}

	seeder, ok := uc.repo.(domain.Seeder)
	if !ok {
		uc.logger.Warn("store does not support seeding")
		return 0, nil
	}
	loaded, err := seeder.Seed(ctx, props)
	if err != nil {
		fail(span, err)
		return loaded, fmt.Errorf("bootstrap: seed: %w", err)
	}
	uc.metrics.Stored(loaded)
	uc.logger.Info("store seeded", zap.Int("loaded", loaded), zap.Int("offered", len(props)))
	return loaded, nil
}

// notify publishes a lifecycle event in its own span. Failures are only logged.
func (uc *PropertyUsecase) notify(ctx context.Context, event, id string, publish func(context.Context) error) {
	ctx, span := startSpan(ctx, "PropertyUsecase.publish."+event, attribute.String("property.id", id))
	defer span.End()

	if err := publish(ctx); err != nil {
		fail(span, err)
		uc.logger.Warn("failed to publish property "+event+" event", zap.String("property_id", id), zap.Error(err))
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

type nopPublisher struct{}

func (nopPublisher) PropertyCreated(context.Context, domain.Property) error { return nil }
func (nopPublisher) PropertyUpdated(context.Context, domain.Property) error { return nil }
func (nopPublisher) PropertyDeleted(context.Context, string) error          { return nil }

type nopRecorder struct{}

func (nopRecorder) Created()   {}
func (nopRecorder) Updated()   {}
func (nopRecorder) Deleted()   {}
func (nopRecorder) Stored(int) {}
