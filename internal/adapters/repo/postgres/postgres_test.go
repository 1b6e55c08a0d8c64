package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/modularstore/internal/catalog"
	"github.com/phenrril/modularstore/internal/domain"
)

// openTestDB connects to TEST_DB_DSN; the tests are skipped without it.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping postgres integration test")
	}
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Product{}, &SessionRecord{}))
	return db
}

func TestStateRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewStateRepo(db)
	ctx := context.Background()
	key := uuid.NewString()
	t.Cleanup(func() { db.Delete(&SessionRecord{}, "key = ?", key) })

	_, err := repo.Load(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p := catalog.Products()[2]
	st := domain.SessionState{
		Role: domain.RoleWholesale,
		Cart: []domain.CartItem{{
			ID:            "i1",
			Configuration: domain.Configuration{ProductID: p.ID, SelectedModules: []string{"cube-white"}},
			Product:       p,
			Quantity:      12,
		}},
		Orders: []domain.Order{},
	}
	require.NoError(t, repo.Save(ctx, key, st))

	got, err := repo.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleWholesale, got.Role)
	require.Len(t, got.Cart, 1)
	assert.Equal(t, 12, got.Cart[0].Quantity)
	assert.Equal(t, p.AvailableModules, got.Cart[0].Product.AvailableModules)

	st.Cart = []domain.CartItem{}
	require.NoError(t, repo.Save(ctx, key, st))
	got, err = repo.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got.Cart)

	n, err := repo.Purge(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	_, err = repo.Load(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogRepoSeedAndFind(t *testing.T) {
	db := openTestDB(t)
	repo := NewCatalogRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx, catalog.Products()))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	p, err := repo.FindByID(ctx, "modular-desk")
	require.NoError(t, err)
	assert.Equal(t, 8500.0, p.BasePrice)
	m, ok := p.Module("desk-motor-frame")
	require.True(t, ok)
	assert.True(t, m.Excludes("desk-drawer"))

	_, err = repo.FindByID(ctx, "no-such-product")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// a second seed leaves existing rows alone
	require.NoError(t, repo.Seed(ctx, catalog.Products()[:1]))
	again, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, again, len(list))
}
