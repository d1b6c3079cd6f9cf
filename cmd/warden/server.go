package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/wardenbot/warden/modguard/auditstore"
	"github.com/wardenbot/warden/modguard/cachestore"
	"github.com/wardenbot/warden/modguard/countstore"
	"github.com/wardenbot/warden/modguard/engine"
	"github.com/wardenbot/warden/modguard/platform"
	"github.com/wardenbot/warden/modguard/presence"
	"github.com/wardenbot/warden/modguard/ratestore"
	"github.com/wardenbot/warden/modguard/schedule"
	"github.com/wardenbot/warden/modguard/settings"
	"github.com/wardenbot/warden/util"
)

type Server struct {
	logger     *slog.Logger
	engine     *engine.Engine
	echo       *echo.Echo
	httpd      *http.Server
	events     chan *engine.Event
	eventsURL  string
	adminToken string
}

type Config struct {
	Logger               *slog.Logger
	SettingsPath         string
	AuditPath            string
	DatabaseURL          string
	MaxDBConnections     int
	DBTracing            bool
	RedisURL             string
	BridgeHost           string
	BridgeToken          string
	BridgeEventsURL      string
	BridgeRateLimit      float64
	CacheTTL             time.Duration
	SelfID               string
	SlackWebhookURL      string
	AdminToken           string
	IdleThresholdMinutes int
	ReadOnly             bool
	Bind                 string
}

// size of the in-process event queue between the intake surfaces and the engine
const eventQueueSize = 1024

func NewServer(ctx context.Context, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var backend settings.Backend
	var counters countstore.CountStore
	var cache cachestore.CacheStore
	if config.RedisURL != "" {
		rb, err := settings.NewRedisBackend(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis settings backend: %v", err)
		}
		backend = rb

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, config.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh
	} else {
		backend = settings.NewFileBackend(config.SettingsPath)
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, config.CacheTTL)
	}

	var audit auditstore.AuditStore
	switch {
	case config.DatabaseURL != "":
		db, err := util.SetupDatabase(config.DatabaseURL, config.MaxDBConnections, logger)
		if err != nil {
			return nil, err
		}
		if config.DBTracing {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return nil, err
			}
		}
		sa, err := auditstore.NewSQLAuditStore(db)
		if err != nil {
			return nil, fmt.Errorf("initializing sql auditstore: %v", err)
		}
		audit = sa
	case config.RedisURL != "":
		ra, err := auditstore.NewRedisAuditStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis auditstore: %v", err)
		}
		audit = ra
	default:
		fa, err := auditstore.NewFileAuditStore(config.AuditPath)
		var le *auditstore.LoadError
		switch {
		case errors.As(err, &le):
			// history starts empty; the old file is kept next to the new one
			logger.Warn("audit log not loaded, continuing with empty history", "err", err, "moved_to", auditstore.CorruptPath(le.Path))
		case err != nil:
			return nil, fmt.Errorf("initializing file auditstore: %v", err)
		}
		audit = fa
	}

	mgr := settings.NewManager(backend, logger)
	// a read failure leaves defaults in place; the service still starts
	if err := mgr.Load(ctx); err != nil {
		logger.Warn("settings not loaded from storage", "err", err)
	}

	tracker := presence.NewTracker(logger)
	if err := tracker.SetIdleThreshold(config.IdleThresholdMinutes); err != nil {
		return nil, err
	}

	var dir platform.Directory
	var actions platform.ActionExecutor
	var messenger platform.Messenger
	if config.BridgeHost != "" {
		client := platform.NewClient(config.BridgeHost, config.BridgeToken, config.BridgeRateLimit, logger)
		dir = platform.NewCachedDirectory(client, cache, logger)
		actions = client
		messenger = client
	} else {
		logger.Warn("no platform bridge configured, actions will only be logged")
	}
	if config.ReadOnly || actions == nil {
		le := platform.NewLogExecutor(logger)
		actions = le
		messenger = le
	}

	var notifiers []engine.Notifier
	if config.SlackWebhookURL != "" {
		notifiers = append(notifiers, &engine.SlackNotifier{
			WebhookURL: config.SlackWebhookURL,
			Client:     util.RobustHTTPClient(logger, 10*time.Second),
		})
	}

	eng := engine.Engine{
		Logger:    logger,
		Settings:  mgr,
		Rates:     ratestore.NewTracker(),
		Presence:  tracker,
		Directory: dir,
		Actions:   actions,
		Messenger: messenger,
		Notifiers: notifiers,
		Audit:     audit,
		Counters:  counters,
		Scheduler: schedule.NewTimerScheduler(),
		SelfID:    config.SelfID,
	}

	s := &Server{
		logger:     logger,
		engine:     &eng,
		events:     make(chan *engine.Event, eventQueueSize),
		eventsURL:  config.BridgeEventsURL,
		adminToken: config.AdminToken,
	}
	s.echo = s.newEcho()
	s.httpd = &http.Server{
		Handler:        s.echo,
		Addr:           config.Bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1024 * 1024,
	}
	return s, nil
}

// Run starts the engine, background loops and intake surfaces, and blocks until an exit signal
// arrives or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.engine.Run(gctx, s.events) })
	g.Go(func() error { return s.engine.RunSweeper(gctx) })
	g.Go(func() error { return s.engine.RunIdleChecks(gctx) })
	if s.eventsURL != "" {
		g.Go(func() error { return s.RunConsumer(gctx) })
	}
	g.Go(func() error {
		s.logger.Info("starting api server", "bind", s.httpd.Addr)
		if err := s.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server shutting down unexpectedly: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		return s.Shutdown()
	})

	err := g.Wait()

	// pending unmute and warning timers are dropped; platform timeouts expire on their own
	s.engine.Scheduler.Stop()
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := s.engine.Settings.Flush(flushCtx); ferr != nil {
		s.logger.Error("failed to flush settings on shutdown", "err", ferr)
	}
	s.logger.Info("graceful shutdown complete")
	return err
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpd.Shutdown(ctx)
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// enqueue hands an event to the engine without blocking. Returns false if the queue is full.
func (s *Server) enqueue(evt *engine.Event) bool {
	select {
	case s.events <- evt:
		return true
	default:
		eventsDropped.WithLabelValues(evt.Kind()).Inc()
		return false
	}
}
