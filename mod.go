// Package stxdapp holds the process-wide logger and the prometheus collectors
// shared by the flash-loan and prediction-market clients.
package stxdapp

import (
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to set the global log
// level ("trace", "debug", "info", "warn", "error").
const EnvLogLevel = "STXDAPP_LOG_LEVEL"

const defaultLevel = zerolog.InfoLevel

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(levelFromEnv())

// PromCollectors exposes the prometheus collectors of the packages. They are
// registered when the metrics endpoint starts.
var PromCollectors []prometheus.Collector

func levelFromEnv() zerolog.Level {
	raw := strings.TrimSpace(os.Getenv(EnvLogLevel))
	if raw == "" {
		return defaultLevel
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return defaultLevel
	}

	return lvl
}
