package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/castboard/castboard/handlers"
	"github.com/castboard/castboard/internal/config"
	"github.com/castboard/castboard/internal/csrf"
	"github.com/castboard/castboard/internal/database"
	"github.com/castboard/castboard/internal/episode/handler"
	"github.com/castboard/castboard/internal/episode/repository"
	"github.com/castboard/castboard/internal/oidc"
	"github.com/castboard/castboard/internal/router"
	"github.com/castboard/castboard/internal/storage"
	"github.com/castboard/castboard/internal/tokens"
	"github.com/castboard/castboard/internal/users"
	"github.com/castboard/castboard/internal/views"
	"github.com/castboard/castboard/pkg/logger"
	"github.com/castboard/castboard/pkg/metrics"
	"github.com/castboard/castboard/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// app is the assembled service: the gin engine plus the resources it owns.
type app struct {
	engine  *gin.Engine
	handler http.Handler
	store   repository.Store
	redis   *redis.Client
}

func newApp(ctx context.Context, cfg *config.Config, started time.Time) (*app, error) {
	store, userSvc, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{store: store}
	checks := map[string]handlers.Check{"store": store.Ping}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), cors())
	r.Use(middleware.OptionalAuth(newVerifier(ctx, cfg)))

	// Connect to Redis early so the rate-limiter can use it when configured
	if cfg.Redis.Host != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		} else {
			logger.Infof("connected to Redis %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}
	// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(a.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
			checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	csrfMgr, err := csrf.NewManager(cfg.CSRF.Secret, cfg.CSRF.TTL)
	if err != nil {
		return nil, fmt.Errorf("csrf manager: %w", err)
	}
	if cfg.CSRF.Secret == "" {
		logger.Warn("CSRF_SECRET and JWT_SECRET are empty; delete tokens will not survive a restart")
	}

	opts := []handler.Option{handler.WithUsers(userSvc)}
	if cfg.MinIO.Enabled() {
		media, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("media uploads disabled: %v", err)
		} else {
			opts = append(opts, handler.WithMedia(media))
			checks["minio"] = media.Ping
		}
	}

	table := router.NewTable()
	episodes := handler.New(store, csrfMgr, opts...)
	episodes.Register(table)
	if err := views.Install(r, table); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	table.Mount(r)

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, table.MustURL("episode_index"))
	})
	r.NoRoute(episodes.NotFound)

	handlers.RegisterHealth(r, started, checks)
	handlers.RegisterSwagger(r, table)
	handlers.RegisterMe(r.Group("/api/v1"), userSvc)

	// Expose Prometheus metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	a.engine = r
	a.handler = middleware.MethodOverride(r)
	return a, nil
}

// Close releases the store and the Redis client.
func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		logger.Warnf("close store: %v", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// openStore builds the episode store and the matching users service for the configured driver.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, *users.Service, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		return repository.NewMemoryStore(), users.NewService(users.NewMemoryUserRepository()), nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		version, dirty, err := database.MigrateSQLite(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Infof("sqlite %s at schema version %d (dirty=%v)", cfg.Storage.SQLitePath, version, dirty)
		return repository.NewSQLiteStore(db), users.NewService(users.NewMemoryUserRepository()), nil

	case config.DriverMongo:
		client, err := connectMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := repository.NewMongoStore(ctx, client, cfg.MongoDB.Database)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		usersCol := client.Database(cfg.MongoDB.Database).Collection("users")
		return store, users.NewService(users.NewMongoUserRepository(usersCol)), nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// connectMongo retries with backoff to tolerate startup races.
func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	const maxAttempts = 5
	backoff := time.Second
	var errConn error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err == nil {
			return client, nil
		}
		errConn = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("could not connect to MongoDB after %d attempts: %w", maxAttempts, errConn)
}

// newVerifier prefers Keycloak, then the shared JWT secret, then the insecure
// integration-test verifier. nil means every caller is a guest.
func newVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, oidc.KeycloakIssuer(cfg.Keycloak.URL, cfg.Keycloak.Realm), cfg.Keycloak.ClientID)
		if err == nil {
			logger.Infof("verifying tokens against Keycloak realm %q", cfg.Keycloak.Realm)
			return ver
		}
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	if cfg.JWT.Secret != "" {
		return tokens.NewHMACVerifier(cfg.JWT.Secret)
	}
	if cfg.JWT.AllowInsecure {
		logger.Warn("enabling insecure token verifier (integration mode)")
		return oidc.NewInsecureVerifier()
	}
	logger.Warn("no token verifier configured; admin and comment routes are unreachable")
	return nil
}

// cors is a lightweight CORS middleware: common headers and OPTIONS short-circuit.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-CSRF-Token, X-HTTP-Method-Override")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Location")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

