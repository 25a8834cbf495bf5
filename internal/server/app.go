package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/app/controllers"
	appgraphql "github.com/shashiranjanraj/catalog/app/graphql"
	"github.com/shashiranjanraj/catalog/app/jobs"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/app/routes"
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/database/schema"
	"github.com/shashiranjanraj/catalog/internal/kernel"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/cache"
	"github.com/shashiranjanraj/catalog/pkg/database"
	"github.com/shashiranjanraj/catalog/pkg/event"
	"github.com/shashiranjanraj/catalog/pkg/graphql"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/shashiranjanraj/catalog/pkg/queue"
	"github.com/shashiranjanraj/catalog/pkg/router"
	"github.com/shashiranjanraj/catalog/pkg/schedule"
	"github.com/shashiranjanraj/catalog/pkg/sse"
	"github.com/shashiranjanraj/catalog/pkg/storage"
	"github.com/shashiranjanraj/catalog/pkg/workerpool"
	"github.com/shashiranjanraj/catalog/pkg/ws"
)

// App is the wired service. Build it with Boot and release it with Close.
type App struct {
	DB       *gorm.DB
	Redis    *redis.Client // nil unless QUEUE_DRIVER=redis
	Cache    *cache.Cache
	Pool     *workerpool.Pool
	Bus      *event.Bus
	Queue    *queue.Manager
	Hub      *ws.Hub
	Events   *sse.Broker
	Schedule *schedule.Scheduler
	Limiter  *middleware.RateLimiter
	Products *repositories.ProductRepository
	Catalog  *services.ProductService
	Auth     *services.AuthService
	Router   *router.Router

	mongo *logger.MongoHandler
}

// SetupLogger configures pkg/logger from APP_ENV and, when LOG_MONGO_URI is
// set, adds the MongoDB sink. A sink that cannot connect is logged and
// skipped. The returned handler, if any, must be closed on shutdown.
func SetupLogger(ctx context.Context) *logger.MongoHandler {
	opts := logger.Options{Production: config.IsProduction()}
	logger.Setup(opts)

	uri := config.LogMongoURI()
	if uri == "" {
		return nil
	}
	h, err := logger.NewMongoHandler(ctx, uri, config.LogMongoDatabase(), "logs", slog.LevelInfo)
	if err != nil {
		logger.Warn("log sink disabled", "sink", "mongodb", "error", err)
		return nil
	}
	opts.Sinks = []slog.Handler{h}
	logger.Setup(opts)
	return h
}

// OpenDB connects with the configured driver and brings the tables up to date.
func OpenDB(ctx context.Context) (*gorm.DB, error) {
	db, err := database.Connect(ctx, database.Options{
		Driver:       config.DatabaseDriver(),
		DSN:          config.DatabaseDSN(),
		MaxOpenConns: config.DatabaseMaxOpenConns(),
	})
	if err != nil {
		return nil, err
	}
	if err := schema.Ensure(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

// Boot loads configuration and wires every component. Nothing is started.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &App{mongo: SetupLogger(ctx)}

	db, err := OpenDB(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.DB = db

	driver, err := a.queueDriver(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Queue = queue.New(queue.Options{Driver: driver, DB: db})

	a.Cache = cache.New(cache.Options{
		MaxEntries:    config.CacheMaxEntries(),
		SweepInterval: config.CacheSweepInterval(),
	})
	a.Pool = workerpool.New(config.Int("EVENT_WORKERS", 4))
	a.Bus = event.NewBus(a.Pool)
	a.Hub = ws.NewHub()
	a.Events = sse.NewBroker()
	a.Limiter = middleware.NewRateLimiter(config.RateLimitRPS(), config.RateLimitBurst())

	a.Products = repositories.NewProductRepository(db)
	audits := repositories.NewAuditRepository(db)
	a.Catalog = services.NewProductService(a.Products, services.ProductServiceOptions{
		Cache:  a.Cache,
		Events: a.Bus,
		TTL:    config.CacheTTL(),
	})
	a.Auth = services.NewAuthService(repositories.NewUserRepository(db), auth.FromConfig())

	a.Queue.Register(jobs.NewRecordAudit(audits))
	jobs.RegisterListeners(a.Bus, a.Queue, a.Hub, a.Events)

	a.Schedule = schedule.New()
	if every := config.ExportInterval(); every > 0 {
		disk, err := storage.Open(ctx, config.StorageDefault())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("export schedule: %w", err)
		}
		exporter := services.NewExportService(a.Products)
		a.Schedule.Every(every, "catalog.export", func(ctx context.Context) error {
			_, _, err := exporter.Export(ctx, disk, "")
			return err
		})
	}

	gqlSchema, err := appgraphql.NewSchema(a.Catalog)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("graphql: %w", err)
	}

	a.Router = kernel.NewRouter(kernel.Options{
		API: routes.API{
			Products: controllers.NewProductController(a.Catalog, audits),
			Auth:     controllers.NewAuthController(a.Auth),
			Authn:    a.Auth,
			Feed:     a.Hub,
			Events:   a.Events,
			GraphQL:  graphql.Handler(gqlSchema),
		},
		Store:        a.Products,
		Limiter:      a.Limiter,
		MaxBodyBytes: config.MaxBodyBytes(),
	})
	return a, nil
}

func (a *App) queueDriver(ctx context.Context) (queue.Driver, error) {
	switch config.QueueDriver() {
	case "redis":
		rdb, err := database.ConnectRedis(ctx, config.RedisAddr(), config.RedisPassword())
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
		return queue.NewRedisDriver(rdb), nil
	case "memory", "":
		return queue.NewMemoryDriver(1000), nil
	default:
		return nil, fmt.Errorf("unsupported QUEUE_DRIVER %q (supported: memory, redis)", config.QueueDriver())
	}
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.Router.Handler() }

// Close releases everything Boot acquired. Background loops must already
// have been stopped.
func (a *App) Close() {
	if a.Events != nil {
		a.Events.Close()
	}
	if a.Pool != nil {
		a.Pool.Shutdown()
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.Limiter != nil {
		a.Limiter.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			logger.Warn("database: close failed", "error", err)
		}
	}
	if a.mongo != nil {
		a.mongo.Close()
	}
}
