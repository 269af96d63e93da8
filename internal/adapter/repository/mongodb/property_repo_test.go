package mongodb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Abdurahmanit/property-service/internal/platform/clock"
	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFilterQuery(t *testing.T) {
	lo, hi := 500.0, 1000.0
	q := filterQuery(domain.Filter{City: "st. paul", Type: domain.TypeRent, MinPrice: &lo, MaxPrice: &hi})

	assert.Equal(t, bson.M{"$regex": `st\. paul`, "$options": "i"}, q["city"])
	assert.Equal(t, domain.TypeRent, q["type"])
	assert.Equal(t, bson.M{"$gte": 500.0, "$lte": 1000.0}, q["price"])

	assert.Empty(t, filterQuery(domain.Filter{}))
}

// mongoURI returns MONGO_TEST_URI when set and otherwise starts a
// throwaway mongo container. The test is skipped without Docker.
func mongoURI(t *testing.T) string {
	t.Helper()
	if uri := os.Getenv("MONGO_TEST_URI"); uri != "" {
		return uri
	}
	if testing.Short() {
		t.Skip("skipping mongo container in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}
	pool.MaxWait = time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7.0",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })
	_ = resource.Expire(300)

	uri := fmt.Sprintf("mongodb://%s", resource.GetHostPort("27017/tcp"))
	require.NoError(t, pool.Retry(func() error {
		client, err := NewClient(context.Background(), uri, 2*time.Second)
		if err != nil {
			return err
		}
		return client.Disconnect(context.Background())
	}))
	return uri
}

func newIntegrationRepo(t *testing.T) *PropertyRepository {
	t.Helper()
	uri := mongoURI(t)
	ctx := context.Background()
	client, err := NewClient(ctx, uri, 5*time.Second)
	require.NoError(t, err)

	db := client.Database("property_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	repo := NewPropertyRepository(db, "properties")
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestPropertyRepository_Integration(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()
	now := clock.Real{}.Now()

	a := domain.Property{ID: uuid.NewString(), Title: "Flat", City: "Paris", Price: 1200, Rooms: 2, Type: domain.TypeRent, CreatedAt: now, UpdatedAt: now}
	b := domain.Property{ID: uuid.NewString(), Title: "House", City: "Lyon", Price: 300000, Rooms: 5, Type: domain.TypeSale, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	assert.ErrorIs(t, repo.Create(ctx, a), domain.ErrDuplicateID)

	stored, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, *stored)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, b.ID, all[1].ID)

	price := 1300.0
	updated, err := repo.Update(ctx, a.ID, domain.Patch{Price: &price}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1300.0, updated.Price)
	assert.Equal(t, "Flat", updated.Title)
	assert.True(t, updated.UpdatedAt.Equal(now.Add(time.Hour)))

	got, err := repo.Filter(ctx, domain.Filter{City: "PAR"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), domain.ErrPropertyNotFound)
	_, err = repo.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrPropertyNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
