// Package config loads the rpcd settings from .env files and the process
// environment. Environment variables take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mnehpets/onerpc/server"
)

// Environment keys.
const (
	KeyAddr         = "RPCD_ADDR"
	KeyAdminAddr    = "RPCD_ADMIN_ADDR"
	KeyReadTimeout  = "RPCD_READ_TIMEOUT"
	KeyWorkers      = "RPCD_WORKERS"
	KeyBodyFraming  = "RPCD_BODY_FRAMING"
	KeyMaxBodyBytes = "RPCD_MAX_BODY_BYTES"
	KeyLogLevel     = "RPCD_LOG_LEVEL"
	KeyLogFormat    = "RPCD_LOG_FORMAT"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the daemon settings.
type Config struct {
	Addr         string
	AdminAddr    string // empty disables the admin API
	ReadTimeout  time.Duration
	Workers      int
	Framing      server.Framing
	MaxBodyBytes int64
	LogLevel     logrus.Level
	LogFormat    string
}

// Default returns the settings used for unset keys.
func Default() Config {
	return Config{
		Addr:         ":11122",
		ReadTimeout:  server.DefaultReadTimeout,
		Workers:      server.DefaultWorkers,
		Framing:      server.FramingTimeout,
		MaxBodyBytes: 4 << 20,
		LogLevel:     logrus.InfoLevel,
		LogFormat:    FormatText,
	}
}

// ServerOptions converts the settings into server options.
func (c Config) ServerOptions() []server.Option {
	return []server.Option{
		server.WithReadTimeout(c.ReadTimeout),
		server.WithWorkers(c.Workers),
		server.WithFraming(c.Framing),
		server.WithMaxBodyBytes(c.MaxBodyBytes),
	}
}

// Logger builds a logrus logger with the configured level and format.
func (c Config) Logger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(c.LogLevel)
	if c.LogFormat == FormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

// Error reports an invalid setting.
type Error struct {
	Key   string
	Value string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: invalid %s %q: %v", e.Key, e.Value, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Load reads the given .env files in order, skipping files that do not
// exist, then applies the process environment on top.
func Load(files ...string) (Config, error) {
	return load(os.LookupEnv, files...)
}

func load(lookupEnv func(string) (string, bool), files ...string) (Config, error) {
	values := make(map[string]string)
	for _, f := range files {
		m, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", f, err)
		}
		for k, v := range m {
			values[k] = v
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}

	cfg := Default()
	if v, ok := lookup(KeyAddr); ok {
		cfg.Addr = v
	}
	if v, ok := lookup(KeyAdminAddr); ok {
		cfg.AdminAddr = v
	}
	if v, ok := lookup(KeyReadTimeout); ok {
		d, err := time.ParseDuration(v)
		if err == nil && d <= 0 {
			err = errors.New("must be positive")
		}
		if err != nil {
			return Config{}, &Error{Key: KeyReadTimeout, Value: v, Cause: err}
		}
		cfg.ReadTimeout = d
	}
	if v, ok := lookup(KeyWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, &Error{Key: KeyWorkers, Value: v, Cause: err}
		}
		cfg.Workers = n
	}
	if v, ok := lookup(KeyBodyFraming); ok {
		f, err := server.ParseFraming(v)
		if err != nil {
			return Config{}, &Error{Key: KeyBodyFraming, Value: v, Cause: err}
		}
		cfg.Framing = f
	}
	if v, ok := lookup(KeyMaxBodyBytes); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil && n < 0 {
			err = errors.New("must not be negative")
		}
		if err != nil {
			return Config{}, &Error{Key: KeyMaxBodyBytes, Value: v, Cause: err}
		}
		cfg.MaxBodyBytes = n
	}
	if v, ok := lookup(KeyLogLevel); ok {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return Config{}, &Error{Key: KeyLogLevel, Value: v, Cause: err}
		}
		cfg.LogLevel = lvl
	}
	if v, ok := lookup(KeyLogFormat); ok {
		if v != FormatText && v != FormatJSON {
			return Config{}, &Error{Key: KeyLogFormat, Value: v, Cause: errors.New("want text or json")}
		}
		cfg.LogFormat = v
	}
	return cfg, nil
}
