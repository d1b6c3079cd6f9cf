package svcutil

import (
	"io"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"
)

// ConfigLogger builds the process logger from the "log-level" and "log-format" flags, and installs
// it as the slog default. Levels are slog names ("debug", "warn", also offsets like "info+2"); an
// unknown level falls back to info.
func ConfigLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	badLevel := level.UnmarshalText([]byte(cctx.String("log-level"))) != nil
	if badLevel {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cctx.String("log-format")) {
	case "text", "logfmt":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}
	logger := slog.New(handler).With("service", "warden")
	slog.SetDefault(logger)
	if badLevel {
		logger.Warn("unrecognized log level, using info", "level", cctx.String("log-level"))
	}
	return logger
}
