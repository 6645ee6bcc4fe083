// Package config loads tide configuration from defaults, an optional YAML
// file and TIDE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TIDE_DOWNLOAD_PATH or TIDE_STORE_BACKEND.
const EnvPrefix = "TIDE"

// Keys shared with the CLI flag bindings.
const (
	KeyDownloadPath = "download_path"
	KeyLogLevel     = "log.level"
	KeyLogFormat    = "log.format"
	KeyListenAddr   = "server.listen_addr"
	KeyStoreBackend = "store.backend"
)

// Config holds all tide configuration.
type Config struct {
	// Course material root. Empty means "not configured".
	DownloadPath string `mapstructure:"download_path"`

	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Tim     TimConfig     `mapstructure:"tim"`
	Editor  EditorConfig  `mapstructure:"editor"`
	Tracing TracingConfig `mapstructure:"tracing"`

	v *viper.Viper
	// downloadPath is shared by every Config decoded from v. Readers use it
	// instead of v, which the file watcher reloads on its own goroutine.
	downloadPath *atomic.Pointer[string]
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type ServerConfig struct {
	ListenAddr  string `mapstructure:"listen_addr" validate:"required"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	// APISecret enables bearer-token auth on the HTTP API when set.
	APISecret string `mapstructure:"api_secret"`
}

type StoreConfig struct {
	Backend     string `mapstructure:"backend" validate:"oneof=memory badger sqlite postgres"`
	Path        string `mapstructure:"path" validate:"required_if=Backend badger,required_if=Backend sqlite"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type TimConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EditorConfig struct {
	// Command opens a file; {path} and {line} are substituted.
	Command string `mapstructure:"command"`
	// CloseCommand runs on logout to close open editors. Optional.
	CloseCommand string `mapstructure:"close_command"`
}

type TracingConfig struct {
	Exporter string `mapstructure:"exporter" validate:"oneof=none stdout"`
}

var validate = validator.New()

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v.SetDefault(KeyDownloadPath, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyListenAddr, "127.0.0.1:8787")
	v.SetDefault("server.metrics_addr", "127.0.0.1:9787")
	v.SetDefault("server.api_secret", "")
	v.SetDefault(KeyStoreBackend, "badger")
	v.SetDefault("store.path", filepath.Join(home, ".tide", "store"))
	v.SetDefault("store.database_url", "")
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce", 500*time.Millisecond)
	v.SetDefault("tim.base_url", "https://tim.jyu.fi")
	v.SetDefault("tim.token", "")
	v.SetDefault("tim.timeout", 15*time.Second)
	v.SetDefault("editor.command", "")
	v.SetDefault("editor.close_command", "")
	v.SetDefault("tracing.exporter", "none")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (file, or $HOME/.tide.yaml when empty) into v
// and decodes it. A missing default config file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".tide")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.downloadPath = new(atomic.Pointer[string])
	cfg.storeDownloadPath(cfg.DownloadPath)
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// CurrentDownloadPath returns the latest download path, including changes
// made by Set or picked up by WatchFile. Safe for concurrent use.
func (c *Config) CurrentDownloadPath() string {
	if c.downloadPath == nil {
		return strings.TrimSpace(c.DownloadPath)
	}
	if p := c.downloadPath.Load(); p != nil {
		return *p
	}
	return ""
}

func (c *Config) storeDownloadPath(path string) {
	path = strings.TrimSpace(path)
	c.downloadPath.Store(&path)
}

// File returns the config file in use, if any.
func (c *Config) File() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// Set updates a key and writes the config file, creating
// $HOME/.tide.yaml when no file is in use yet.
func (c *Config) Set(key string, value any) error {
	c.v.Set(key, value)
	if key == KeyDownloadPath && c.downloadPath != nil {
		c.storeDownloadPath(c.v.GetString(KeyDownloadPath))
	}
	if c.v.ConfigFileUsed() != "" {
		return c.v.WriteConfig()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("locate home: %w", err)
	}
	return c.v.WriteConfigAs(filepath.Join(home, ".tide.yaml"))
}

// Watcher delivers reloaded configs after the config file changes.
type Watcher struct {
	mu        sync.Mutex
	current   *Config
	listeners []func(old, updated *Config)
}

// WatchFile starts watching the config file. Invalid edits are ignored and
// reported through onError. Set must not be called once watching started.
func (c *Config) WatchFile(onError func(error)) *Watcher {
	w := &Watcher{current: c}
	c.v.OnConfigChange(func(fsnotify.Event) {
		updated, err := decode(c.v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		updated.downloadPath = c.downloadPath
		if c.downloadPath != nil {
			updated.storeDownloadPath(updated.DownloadPath)
		}
		w.apply(updated)
	})
	c.v.WatchConfig()
	return w
}

// OnChange registers fn for every successful reload.
func (w *Watcher) OnChange(fn func(old, updated *Config)) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watcher) apply(updated *Config) {
	w.mu.Lock()
	old := w.current
	w.current = updated
	listeners := append([]func(old, updated *Config){}, w.listeners...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(old, updated)
	}
}
