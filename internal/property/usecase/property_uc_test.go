package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abdurahmanit/property-service/internal/adapter/repository/memory"
	"github.com/Abdurahmanit/property-service/internal/platform/clock"
	"github.com/Abdurahmanit/property-service/internal/platform/logger"
	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"github.com/Abdurahmanit/property-service/internal/property/validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

type MockPropertyRepository struct{ mock.Mock }

func (m *MockPropertyRepository) List(ctx context.Context) ([]domain.Property, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Property), args.Error(1)
}
func (m *MockPropertyRepository) FindByID(ctx context.Context, id string) (*domain.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Property), args.Error(1)
}
func (m *MockPropertyRepository) Create(ctx context.Context, p domain.Property) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
func (m *MockPropertyRepository) Update(ctx context.Context, id string, patch domain.Patch, now time.Time) (*domain.Property, error) {
	args := m.Called(ctx, id, patch, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Property), args.Error(1)
}
func (m *MockPropertyRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockPropertyRepository) Filter(ctx context.Context, f domain.Filter) ([]domain.Property, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Property), args.Error(1)
}
func (m *MockPropertyRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) PropertyCreated(ctx context.Context, p domain.Property) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
func (m *MockEventPublisher) PropertyUpdated(ctx context.Context, p domain.Property) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
func (m *MockEventPublisher) PropertyDeleted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type countingRecorder struct {
	created, updated, deleted, stored int
}

func (r *countingRecorder) Created()     { r.created++ }
func (r *countingRecorder) Updated()     { r.updated++ }
func (r *countingRecorder) Deleted()     { r.deleted++ }
func (r *countingRecorder) Stored(n int) { r.stored = n }

// sequenceIDs hands out the given ids in order, then random ones.
type sequenceIDs struct {
	ids []string
}

func (s *sequenceIDs) NewID() string {
	if len(s.ids) == 0 {
		return uuid.NewString()
	}
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func validNew() domain.NewProperty {
	return domain.NewProperty{
		Title:       "Sunny flat",
		Description: "Bright two-room flat near the river",
		City:        "Paris",
		Address:     "12 rue de Rivoli",
		Price:       300000,
		Surface:     48,
		Rooms:       2,
		Type:        domain.TypeSale,
	}
}

type fixture struct {
	uc    *PropertyUsecase
	repo  *memory.PropertyRepository
	clock *clock.Stub
	rec   *countingRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memory.NewPropertyRepository()
	clk := clock.NewStub(t0)
	rec := &countingRecorder{}
	uc := NewPropertyUsecase(repo, validation.NewSchema(), nil, rec, clk, nil, logger.NewNop())
	return fixture{uc: uc, repo: repo, clock: clk, rec: rec}
}

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.uc.Create(ctx, validNew())
	require.NoError(t, err)
	b, err := f.uc.Create(ctx, validNew())
	require.NoError(t, err)

	_, err = uuid.Parse(a.ID)
	assert.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, t0, a.CreatedAt)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
	assert.Equal(t, 2, f.rec.created)

	got, err := f.uc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, *a, *got)
}

func TestCreate_RejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)
	in := validNew()
	in.Price = 0
	in.Rooms = 0

	_, err := f.uc.Create(context.Background(), in)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, domain.ErrInvalidProperty)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "price", verr.Fields[0].Field)
	assert.Equal(t, "rooms", verr.Fields[1].Field)

	n, _ := f.repo.Count(context.Background())
	assert.Zero(t, n)
}

func TestCreate_RetriesOnIDCollision(t *testing.T) {
	repo := memory.NewPropertyRepository()
	taken := uuid.NewString()
	fresh := uuid.NewString()
	require.NoError(t, repo.Create(context.Background(), domain.Property{ID: taken}))

	ids := &sequenceIDs{ids: []string{taken, fresh}}
	uc := NewPropertyUsecase(repo, validation.NewSchema(), nil, nil, clock.NewStub(t0), ids, logger.NewNop())

	p, err := uc.Create(context.Background(), validNew())
	require.NoError(t, err)
	assert.Equal(t, fresh, p.ID)
}

func TestUpdate_EmptyPatchOnlyAdvancesUpdatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.uc.Create(ctx, validNew())
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	updated, err := f.uc.Update(ctx, created.ID, domain.Patch{})
	require.NoError(t, err)

	want := *created
	want.UpdatedAt = t0.Add(time.Minute)
	assert.Equal(t, want, *updated)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Equal(t, 1, f.rec.updated)
}

func TestUpdate_MergesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.uc.Create(ctx, validNew())
	require.NoError(t, err)

	price := 275000.0
	rent := domain.TypeRent
	f.clock.Advance(time.Hour)
	updated, err := f.uc.Update(ctx, created.ID, domain.Patch{Price: &price, Type: &rent})
	require.NoError(t, err)

	assert.Equal(t, 275000.0, updated.Price)
	assert.Equal(t, domain.TypeRent, updated.Type)
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestUpdate_NotFoundLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.uc.Create(ctx, validNew())
	require.NoError(t, err)

	title := "x-title"
	_, err = f.uc.Update(ctx, uuid.NewString(), domain.Patch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrPropertyNotFound)

	all, err := f.uc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, *created, all[0])
	assert.Zero(t, f.rec.updated)
}

func TestUpdate_RejectsInvalidPatch(t *testing.T) {
	f := newFixture(t)
	neg := -5.0
	_, err := f.uc.Update(context.Background(), uuid.NewString(), domain.Patch{Surface: &neg})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "surface", verr.Fields[0].Field)
}

func TestDelete_SecondCallReportsAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.uc.Create(ctx, validNew())
	require.NoError(t, err)

	ok, err := f.uc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.uc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.rec.deleted)

	_, err = f.uc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrPropertyNotFound)
}

func TestFilter_Scenarios(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paris := validNew()
	lyon := validNew()
	lyon.City = "Lyon"
	rent := validNew()
	rent.Type = domain.TypeRent
	rent.Price = 1500

	p1, err := f.uc.Create(ctx, paris)
	require.NoError(t, err)
	_, err = f.uc.Create(ctx, lyon)
	require.NoError(t, err)
	p3, err := f.uc.Create(ctx, rent)
	require.NoError(t, err)

	lo, hi := 100000.0, 400000.0
	got, err := f.uc.Filter(ctx, domain.Filter{City: "par", MinPrice: &lo, MaxPrice: &hi})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p1.ID, got[0].ID)

	got, err = f.uc.Filter(ctx, domain.Filter{City: "PARIS"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, p1.ID, got[0].ID)
	assert.Equal(t, p3.ID, got[1].ID)

	got, err = f.uc.Filter(ctx, domain.Filter{City: "paris", Type: domain.TypeSale})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p1.ID, got[0].ID)

	got, err = f.uc.Filter(ctx, domain.Filter{City: "Marseille"})
	require.NoError(t, err)
	assert.Empty(t, got)

	all, err := f.uc.List(ctx)
	require.NoError(t, err)
	got, err = f.uc.Filter(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, all, got)
}

func TestFilter_EmptyUsesList(t *testing.T) {
	repo := new(MockPropertyRepository)
	uc := NewPropertyUsecase(repo, validation.NewSchema(), nil, nil, nil, nil, logger.NewNop())
	props := []domain.Property{{ID: "a"}}
	repo.On("List", mock.Anything).Return(props, nil).Once()

	got, err := uc.Filter(context.Background(), domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, props, got)
	repo.AssertNotCalled(t, "Filter", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestRepositoryErrorsPropagate(t *testing.T) {
	repo := new(MockPropertyRepository)
	pub := new(MockEventPublisher)
	uc := NewPropertyUsecase(repo, validation.NewSchema(), pub, nil, clock.NewStub(t0), nil, logger.NewNop())
	boom := errors.New("connection reset")
	ctx := context.Background()

	repo.On("Create", mock.Anything, mock.Anything).Return(boom).Once()
	_, err := uc.Create(ctx, validNew())
	assert.ErrorIs(t, err, boom)

	repo.On("Delete", mock.Anything, "id-1").Return(boom).Once()
	ok, err := uc.Delete(ctx, "id-1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)

	repo.On("FindByID", mock.Anything, "id-2").Return(nil, boom).Once()
	_, err = uc.Get(ctx, "id-2")
	assert.ErrorIs(t, err, boom)

	pub.AssertNotCalled(t, "PropertyCreated", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PropertyDeleted", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestEventsPublishedAndFailuresIgnored(t *testing.T) {
	repo := memory.NewPropertyRepository()
	pub := new(MockEventPublisher)
	uc := NewPropertyUsecase(repo, validation.NewSchema(), pub, nil, clock.NewStub(t0), nil, logger.NewNop())
	ctx := context.Background()

	pub.On("PropertyCreated", mock.Anything, mock.AnythingOfType("domain.Property")).Return(errors.New("nats down")).Once()
	created, err := uc.Create(ctx, validNew())
	require.NoError(t, err)

	pub.On("PropertyUpdated", mock.Anything, mock.MatchedBy(func(p domain.Property) bool { return p.ID == created.ID })).Return(nil).Once()
	_, err = uc.Update(ctx, created.ID, domain.Patch{})
	require.NoError(t, err)

	pub.On("PropertyDeleted", mock.Anything, created.ID).Return(nil).Once()
	ok, err := uc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	pub.AssertExpectations(t)
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedProps := []domain.Property{
		{ID: uuid.NewString(), City: "Paris", Type: domain.TypeSale, Price: 300000, CreatedAt: t0, UpdatedAt: t0},
		{ID: uuid.NewString(), City: "Lyon", Type: domain.TypeRent, Price: 900, CreatedAt: t0, UpdatedAt: t0},
	}

	n, err := f.uc.Bootstrap(ctx, seedProps)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.rec.stored)

	// A second load on a populated store is a no-op.
	n, err = f.uc.Bootstrap(ctx, seedProps)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := f.uc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBootstrap_StoreWithoutSeeder(t *testing.T) {
	repo := new(MockPropertyRepository)
	uc := NewPropertyUsecase(repo, validation.NewSchema(), nil, nil, nil, nil, logger.NewNop())
	repo.On("Count", mock.Anything).Return(0, nil).Once()

	n, err := uc.Bootstrap(context.Background(), []domain.Property{{ID: "a"}})
	require.NoError(t, err)
	assert.Zero(t, n)
	repo.AssertExpectations(t)
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestOperationsAreTraced(t *testing.T) {
	sr := recordSpans(t)
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.uc.Create(ctx, validNew())
	require.NoError(t, err)
	_, err = f.uc.Get(ctx, created.ID)
	require.NoError(t, err)
	ok, err := f.uc.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{
		"PropertyUsecase.publish.created",
		"PropertyUsecase.Create",
		"PropertyUsecase.Get",
		"PropertyUsecase.publish.deleted",
		"PropertyUsecase.Delete",
	}, spanNames(sr.Ended()))

	ended := sr.Ended()
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	for _, s := range ended {
		assert.NotEqual(t, codes.Error, s.Status().Code, s.Name())
	}
}

func TestFailedOperationsMarkSpanError(t *testing.T) {
	sr := recordSpans(t)
	repo := new(MockPropertyRepository)
	pub := new(MockEventPublisher)
	uc := NewPropertyUsecase(repo, validation.NewSchema(), pub, nil, clock.NewStub(t0), nil, logger.NewNop())
	ctx := context.Background()

	repo.On("List", mock.Anything).Return(nil, errors.New("connection reset")).Once()
	_, err := uc.List(ctx)
	require.Error(t, err)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	pub.On("PropertyCreated", mock.Anything, mock.Anything).Return(errors.New("nats down")).Once()
	_, err = uc.Create(ctx, validNew())
	require.NoError(t, err)

	ended := sr.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "PropertyUsecase.List", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "PropertyUsecase.publish.created", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "PropertyUsecase.Create", ended[2].Name())
	assert.NotEqual(t, codes.Error, ended[2].Status().Code)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}
