// Package config loads the engine configuration from YAML or CUE files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the complete engine configuration.
type Config struct {
	Storage  Storage  `yaml:"storage" json:"storage"`
	Server   Server   `yaml:"server" json:"server"`
	Executor Executor `yaml:"executor" json:"executor"`
	Log      Log      `yaml:"log" json:"log"`
}

// Storage locates the engine files.
type Storage struct {
	// Directory holds one folder per catalog and the engine database.
	Directory string `yaml:"directory" json:"directory"`
	// DatabaseFile is the SQLite file name, relative to Directory.
	DatabaseFile string `yaml:"databaseFile" json:"databaseFile"`
}

// Server holds transaction timing limits.
type Server struct {
	// TransactionTimeout bounds the wait for the engine state lock.
	TransactionTimeout Duration `yaml:"transactionTimeout" json:"transactionTimeout"`
	// ShutdownTimeout bounds the wait for in-flight mutations on close.
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// Executor sizes the operator worker pool.
type Executor struct {
	// Workers is the pool size; 0 means one per CPU.
	Workers int `yaml:"workers" json:"workers"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Storage: Storage{
			Directory:    "data",
			DatabaseFile: "engine.db",
		},
		Server: Server{
			TransactionTimeout: Duration(5 * time.Second),
			ShutdownTimeout:    Duration(30 * time.Second),
		},
		Log: Log{
			Level:  "info",
			Format: FormatText,
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .yaml and .yml are YAML, .cue is CUE.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	case ".cue":
		err = decodeCUE(path, data, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DatabasePath is the absolute or working-directory relative path of the
// engine database.
func (c Config) DatabasePath() string {
	if filepath.IsAbs(c.Storage.DatabaseFile) {
		return c.Storage.DatabaseFile
	}
	return filepath.Join(c.Storage.Directory, c.Storage.DatabaseFile)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Storage.Directory == "" {
		errs = append(errs, errors.New("storage.directory must not be empty"))
	}
	if c.Storage.DatabaseFile == "" {
		errs = append(errs, errors.New("storage.databaseFile must not be empty"))
	}
	if c.Server.TransactionTimeout <= 0 {
		errs = append(errs, errors.New("server.transactionTimeout must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdownTimeout must be positive"))
	}
	if c.Executor.Workers < 0 {
		errs = append(errs, errors.New("executor.workers must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		errs = append(errs, fmt.Errorf("log.format %q must be %q or %q", c.Log.Format, FormatText, FormatJSON))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// NewLogger builds a logger writing to w in the configured format. verbose
// forces the debug level.
func (l Log) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
