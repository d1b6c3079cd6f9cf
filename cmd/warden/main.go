package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"github.com/wardenbot/warden/util/svcutil"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "community anti-spam and voice presence daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"WARDEN_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (json or text)",
			Value:   "json",
			EnvVars: []string{"WARDEN_LOG_FORMAT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

// dataPath returns the flag value, or a location under the XDG data directory
func dataPath(cctx *cli.Context, flag, name string) string {
	if p := cctx.String(flag); p != "" {
		return p
	}
	p, err := xdg.DataFile("warden/" + name)
	if err != nil {
		return "data/warden/" + name
	}
	return p
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "settings-path",
			Usage:   "JSON file holding moderation settings (ignored if redis is configured); defaults to the XDG data directory",
			EnvVars: []string{"WARDEN_SETTINGS_PATH"},
		},
		&cli.StringFlag{
			Name:    "audit-path",
			Usage:   "JSON file holding the punishment log (ignored if a database or redis is configured); defaults to the XDG data directory",
			EnvVars: []string{"WARDEN_AUDIT_PATH"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for the punishment log, eg sqlite://data/warden/warden.db or postgresql://...",
			EnvVars: []string{"WARDEN_DATABASE_URL", "DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   20,
			EnvVars: []string{"WARDEN_MAX_DB_CONNECTIONS"},
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit trace spans for database queries",
			EnvVars: []string{"WARDEN_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for settings, counters and caches",
			EnvVars: []string{"WARDEN_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bridge-host",
			Usage:   "method, hostname, and port of the platform bridge API",
			EnvVars: []string{"WARDEN_BRIDGE_HOST"},
		},
		&cli.StringFlag{
			Name:    "bridge-token",
			Usage:   "bearer token for the platform bridge",
			EnvVars: []string{"WARDEN_BRIDGE_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "bridge-events-url",
			Usage:   "websocket URL (or host) of the bridge event stream; events are only accepted over HTTP if unset",
			EnvVars: []string{"WARDEN_BRIDGE_EVENTS_URL"},
		},
		&cli.Float64Flag{
			Name:    "bridge-rate-limit",
			Usage:   "max requests per second to the platform bridge",
			Value:   20,
			EnvVars: []string{"WARDEN_BRIDGE_RATE_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "how long community and member lookups are cached",
			Value:   5 * time.Minute,
			EnvVars: []string{"WARDEN_CACHE_TTL"},
		},
		&cli.StringFlag{
			Name:    "self-id",
			Usage:   "platform identity of this bot; recorded as moderator for automatic actions",
			Value:   "warden",
			EnvVars: []string{"WARDEN_SELF_ID"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for mute alerts",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "if set, admin API requests must carry this bearer token",
			EnvVars: []string{"WARDEN_ADMIN_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "idle-threshold",
			Usage:   "minutes of voice inactivity before an actor is moved to the idle channel",
			Value:   10,
			EnvVars: []string{"WARDEN_IDLE_THRESHOLD"},
		},
		&cli.BoolFlag{
			Name:    "readonly",
			Usage:   "log platform actions instead of performing them",
			EnvVars: []string{"WARDEN_READONLY", "READONLY"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3999",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		logger := svcutil.ConfigLogger(cctx, os.Stdout)

		shutdownOTEL := configOTEL(logger, "warden")
		defer shutdownOTEL()

		srv, err := NewServer(ctx, Config{
			Logger:               logger,
			SettingsPath:         dataPath(cctx, "settings-path", "settings.json"),
			AuditPath:            dataPath(cctx, "audit-path", "punishments.json"),
			DatabaseURL:          cctx.String("database-url"),
			MaxDBConnections:     cctx.Int("max-db-connections"),
			DBTracing:            cctx.Bool("db-tracing"),
			RedisURL:             cctx.String("redis-url"),
			BridgeHost:           cctx.String("bridge-host"),
			BridgeToken:          cctx.String("bridge-token"),
			BridgeEventsURL:      cctx.String("bridge-events-url"),
			BridgeRateLimit:      cctx.Float64("bridge-rate-limit"),
			CacheTTL:             cctx.Duration("cache-ttl"),
			SelfID:               cctx.String("self-id"),
			SlackWebhookURL:      cctx.String("slack-webhook-url"),
			AdminToken:           cctx.String("admin-token"),
			IdleThresholdMinutes: cctx.Int("idle-threshold"),
			ReadOnly:             cctx.Bool("readonly"),
			Bind:                 cctx.String("bind"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run warden service: %w", err)
		}
		return nil
	},
}
