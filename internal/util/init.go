// Package util provides initialization utilities for the logger.
package util

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// RuntimeSettings are the non-contractual knobs left to the deployment:
// log level and the bind addresses for the HTTP/WS/metrics servers. These
// have sane defaults and are not part of the per-rollup environment
// contract, so they're read from an optional local TOML file instead of
// requiring yet more env vars.
type RuntimeSettings struct {
	LogLevel     string
	HTTPAddr     string
	MetricsAddr  string
}

// LoadRuntimeSettings reads an optional TOML file at path for ambient
// runtime settings not covered by the per-rollup environment contract. A
// missing file is not an error: defaults apply.
func LoadRuntimeSettings(path string) RuntimeSettings {
	settings := RuntimeSettings{
		LogLevel:    "info",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
	}

	if path == "" {
		return settings
	}
	if _, err := os.Stat(path); err != nil {
		return settings
	}

	ko := koanf.New(".")
	if err := ko.Load(file.Provider(path), toml.Parser()); err != nil {
		return settings
	}

	if v := ko.String("log_level"); v != "" {
		settings.LogLevel = v
	}
	if v := ko.String("http_addr"); v != "" {
		settings.HTTPAddr = v
	}
	if v := ko.String("metrics_addr"); v != "" {
		settings.MetricsAddr = v
	}

	return settings
}

// InitLogger initializes and returns a zerolog logger. It supports both JSON
// (production) and pretty console (development) output, selected by
// whether stdout is a terminal.
func InitLogger() *zerolog.Logger {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var logger zerolog.Logger

	if isTerminal() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().
			Timestamp().
			Caller().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("service", "rollup-sentinel").
			Logger()
	}

	return &logger
}

// UpdateLogLevel sets the global log level from a string (typically the
// log_level runtime setting from LoadRuntimeSettings), defaulting to info on
// empty or unknown values.
func UpdateLogLevel(levelStr string, logger *zerolog.Logger) {
	if levelStr == "" {
		levelStr = "info"
	}

	var level zerolog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
		logger.Warn().
			Str("configured_level", levelStr).
			Str("using_level", "info").
			Msg("unknown log level, defaulting to info")
	}

	zerolog.SetGlobalLevel(level)
	logger.Info().
		Str("level", level.String()).
		Msg("log level set")
}

// isTerminal checks if stdout is a terminal (for pretty console output).
func isTerminal() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
