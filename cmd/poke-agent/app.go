package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"pokeagent/internal/agent"
	"pokeagent/internal/check"
	"pokeagent/internal/config"
	"pokeagent/internal/constants"
	"pokeagent/internal/logger"
	"pokeagent/pkg/bootstrap"
	"pokeagent/pkg/health"
	"pokeagent/pkg/logging"
	"pokeagent/pkg/metrics"
	"pokeagent/pkg/middleware"
	"pokeagent/pkg/ratelimit"
	"pokeagent/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	conns          bootstrap.Connections
	agent          *agent.Agent
	health         *health.CheckerRegistry
	limiter        *ratelimit.Limiter
	tracerProvider *tracing.TracerProvider
	router         *gin.Engine
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName(cfg))
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		health:      health.NewCheckerRegistry(),
	}
}

func serviceName(cfg *config.Config) string {
	if cfg.Agent.ServiceName != "" {
		return cfg.Agent.ServiceName
	}
	return constants.ServiceName
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName(a.Config))
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterAgentMetrics()

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	if err := a.InitStore(ctx, a.conns.StoreClients(dbName)); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := a.InitBroker(serviceName(a.Config)); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initAgent(); err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	a.initHealth()

	if a.Config.Server.Port > 0 {
		a.initRouter()
		a.server = &http.Server{
			Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
			Handler:      a.router,
			ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
			WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
		}
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	conns, err := a.dbConnector.InitForStore(ctx)
	if err != nil {
		return err
	}
	a.conns = conns
	return nil
}

func (a *App) initAgent() error {
	getter, err := check.NewHTTPGetter(
		check.WithTimeout(a.Config.Check.Timeout),
		check.WithSkipVerify(a.Config.Check.SkipVerify),
	)
	if err != nil {
		return fmt.Errorf("failed to create http getter: %w", err)
	}

	executor := check.NewExecutor(getter, a.Logger,
		check.WithRateLimit(a.Config.Check.RateLimitPerSecond),
		check.WithVerbose(a.Config.Check.Verbose),
	)

	a.agent = agent.New(a.Consumer, executor, a.Store, agent.Options{
		BufferInterval: a.Config.Agent.BufferInterval(),
		InboxSize:      a.Config.Agent.InboxSize,
		Workers:        a.Config.Check.Workers,
		CheckTimeout:   a.Config.Check.Timeout,
	}, a.Logger)
	return nil
}

func (a *App) initHealth() {
	a.health.Register(health.NewCheckerFunc("agent", a.agent.HealthCheck))
	a.health.Register(health.NewCheckerFunc("store", func(ctx context.Context) error {
		if !a.Store.Healthy() {
			return fmt.Errorf("%w: store circuit breaker is open", health.ErrDegraded)
		}
		return nil
	}))

	if a.conns.Postgres != nil {
		a.health.Register(health.NewPostgreSQLChecker(a.conns.Postgres))
	}
	if a.conns.Redis != nil {
		a.health.Register(health.NewRedisChecker(a.conns.Redis))
	}
	if a.conns.MongoDB != nil {
		a.health.Register(health.NewMongoDBChecker(a.conns.MongoDB))
	}
}

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName(a.Config)))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))

	router.GET("/health", func(c *gin.Context) {
		h := a.health.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	if rl := a.Config.Server.RateLimit; rl.Enabled {
		cfg := ratelimit.DefaultConfig()
		cfg.RPS = rl.RPS
		cfg.Burst = rl.Burst
		a.limiter = ratelimit.New(cfg)
		api.Use(a.limiter.Middleware())
	}
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName(a.Config),
			"broker":  a.Consumer.Name(),
			"store":   a.Store.Name(),
			"agent":   a.agent.Status(),
		})
	})

	a.router = router
}

// Run blocks until ctx is cancelled or a component fails. A broker that
// ends the delivery stream fails the whole group.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.RunSweeper(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		runCtx := logging.WithServiceName(gCtx, serviceName(a.Config))
		return a.agent.Run(runCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName(a.Config))
	a.Logger.InfowCtx(shutdownCtx, "Shutting down poke agent")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		timeoutCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer cancel()

		errs = append(errs, a.dbConnector.ShutdownDatabases(timeoutCtx, a.conns)...)

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(timeoutCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
