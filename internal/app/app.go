package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/phenrril/modularstore/internal/adapters/httpserver"
	"github.com/phenrril/modularstore/internal/adapters/payments/paystack"
	"github.com/phenrril/modularstore/internal/adapters/repo/memory"
	"github.com/phenrril/modularstore/internal/adapters/repo/postgres"
	"github.com/phenrril/modularstore/internal/catalog"
	"github.com/phenrril/modularstore/internal/domain"
	"github.com/phenrril/modularstore/internal/usecase"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type App struct {
	DB         *gorm.DB
	Catalog    domain.CatalogRepo
	Store      domain.StateStore
	ProductUC  *usecase.ProductUC
	CheckoutUC *usecase.CheckoutUC
	Registry   *prometheus.Registry

	server      *httpserver.Server
	catalogRepo *postgres.CatalogRepo
	stateRepo   *postgres.StateRepo
	sessionKey  string
	adminToken  string
	secure      bool
}

// Backend reads STATE_BACKEND; anything but "memory" means postgres.
func Backend() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("STATE_BACKEND")), BackendMemory) {
		return BackendMemory
	}
	return BackendPostgres
}

// NewApp wires the stores, gateway and use cases. A nil db keeps catalog and
// session state in process memory.
func NewApp(db *gorm.DB) (*App, error) {
	app := &App{DB: db}
	if db != nil {
		app.catalogRepo = postgres.NewCatalogRepo(db)
		app.stateRepo = postgres.NewStateRepo(db)
		app.Catalog = app.catalogRepo
		app.Store = app.stateRepo
	} else {
		app.Catalog = memory.NewCatalogRepo(catalog.Products())
		app.Store = memory.NewStateRepo()
	}

	secret := os.Getenv("PAYSTACK_SECRET_KEY")
	if secret == "" {
		log.Warn().Msg("PAYSTACK_SECRET_KEY not set, card payments will fail")
	}
	gateway := paystack.NewGateway(secret,
		paystack.WithBaseURL(os.Getenv("PAYSTACK_BASE_URL")),
		paystack.WithCurrency(os.Getenv("PAYSTACK_CURRENCY")),
	)

	baseURL := strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	app.ProductUC = &usecase.ProductUC{Products: app.Catalog}
	app.CheckoutUC = &usecase.CheckoutUC{
		Gateway:       gateway,
		Store:         app.Store,
		Catalog:       app.Catalog,
		Guard:         usecase.NewReferenceGuard(),
		Currency:      gateway.Currency(),
		CallbackURL:   baseURL + "/paystack/return",
		OfflineDelay:  usecase.DefaultOfflineDelay,
		NavigateDelay: usecase.DefaultNavigateDelay,
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	app.Registry = reg

	app.sessionKey = os.Getenv("SESSION_KEY")
	app.adminToken = os.Getenv("ADMIN_TOKEN")
	app.secure = strings.HasPrefix(baseURL, "https://")
	return app, nil
}

func (a *App) HTTPHandler() http.Handler {
	if a.server == nil {
		a.server = httpserver.New(httpserver.Config{
			SessionKey:   a.sessionKey,
			AdminToken:   a.adminToken,
			SecureCookie: a.secure,
			Metrics:      httpserver.NewMetrics(a.Registry),
		}, a.ProductUC, a.CheckoutUC)
	}
	return a.server
}

func (a *App) MigrateAndSeed() error {
	if a.DB == nil {
		return nil
	}
	if err := a.DB.AutoMigrate(&domain.Product{}, &postgres.SessionRecord{}); err != nil {
		return err
	}
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_session_states_updated_at ON session_states(updated_at)").Error
	return a.catalogRepo.Seed(context.Background(), catalog.Products())
}

// PurgeSessions drops persisted sessions idle for longer than ttl. It is a
// no-op for the memory backend.
func (a *App) PurgeSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	if a.stateRepo == nil {
		return 0, nil
	}
	return a.stateRepo.Purge(ctx, time.Now().Add(-ttl))
}

// EvictIdleFlows drops in-process checkout flows unused for longer than idle.
func (a *App) EvictIdleFlows(idle time.Duration) int {
	if a.server == nil {
		return 0
	}
	return a.server.EvictIdle(idle)
}
