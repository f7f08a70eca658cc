// Package config loads livebundle's TOML configuration.
//
// The file lives at $XDG_CONFIG_HOME/livebundle/config.toml unless a path is
// given explicitly. Every key is optional:
//
//	[registry]
//	base_url = "https://unpkg.com/"
//	timeout = "15s"
//
//	[cache]
//	backend = "file"        # file, memory, redis, mongo or none
//	dir = "~/.cache/livebundle"
//	key_prefix = ""
//	redis_addr = "localhost:6379"
//	mongo_uri = "mongodb://localhost:27017"
//	mongo_database = "livebundle"
//
//	[build]
//	target = "es2015"
//	jsx_factory = "React.createElement"
//	jsx_fragment = "React.Fragment"
//
//	[server]
//	addr = "127.0.0.1:5173"
//
//	[watch]
//	debounce = "100ms"
package config

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/livebundle/pkg/cache"
	"github.com/matzehuels/livebundle/pkg/engine"
	lberrors "github.com/matzehuels/livebundle/pkg/errors"
	"github.com/matzehuels/livebundle/pkg/registry"
	"github.com/matzehuels/livebundle/pkg/resolve"
)

const appName = "livebundle"

// Cache backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

var backends = []string{BackendFile, BackendMemory, BackendRedis, BackendMongo, BackendNone}

const (
	DefaultServerAddr    = "127.0.0.1:5173"
	DefaultDebounce      = 100 * time.Millisecond
	DefaultRedisAddr     = "localhost:6379"
	DefaultMongoURI      = "mongodb://localhost:27017"
	DefaultMongoDatabase = appName
)

// Config is the complete configuration.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Cache    CacheConfig    `toml:"cache"`
	Build    BuildConfig    `toml:"build"`
	Server   ServerConfig   `toml:"server"`
	Watch    WatchConfig    `toml:"watch"`
}

type RegistryConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

type CacheConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	KeyPrefix     string `toml:"key_prefix"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

type BuildConfig struct {
	Target      string `toml:"target"`
	JSXFactory  string `toml:"jsx_factory"`
	JSXFragment string `toml:"jsx_fragment"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type WatchConfig struct {
	Debounce time.Duration `toml:"debounce"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills every unset field.
func (c Config) WithDefaults() Config {
	if c.Registry.BaseURL == "" {
		c.Registry.BaseURL = resolve.DefaultRegistryBase
	}
	if c.Registry.Timeout == 0 {
		c.Registry.Timeout = registry.DefaultTimeout
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendFile
	}
	if c.Cache.Dir == "" {
		if dir, err := DefaultCacheDir(); err == nil {
			c.Cache.Dir = dir
		}
	}
	c.Cache.Dir = expandHome(c.Cache.Dir)
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = DefaultRedisAddr
	}
	if c.Cache.MongoURI == "" {
		c.Cache.MongoURI = DefaultMongoURI
	}
	if c.Cache.MongoDatabase == "" {
		c.Cache.MongoDatabase = DefaultMongoDatabase
	}
	d := engine.DefaultOptions()
	if c.Build.Target == "" {
		c.Build.Target = d.Target
	}
	if c.Build.JSXFactory == "" {
		c.Build.JSXFactory = d.JSXFactory
	}
	if c.Build.JSXFragment == "" {
		c.Build.JSXFragment = d.JSXFragment
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = DefaultDebounce
	}
	return c
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.Registry.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return lberrors.New(lberrors.ErrCodeInvalidConfig, "registry.base_url must be an absolute http(s) URL, got %q", c.Registry.BaseURL)
	}
	if c.Registry.Timeout < 0 {
		return lberrors.New(lberrors.ErrCodeInvalidConfig, "registry.timeout must not be negative")
	}
	if !slices.Contains(backends, c.Cache.Backend) {
		return lberrors.New(lberrors.ErrCodeInvalidConfig, "cache.backend must be one of %s, got %q", strings.Join(backends, ", "), c.Cache.Backend)
	}
	if c.Cache.Backend == BackendFile && c.Cache.Dir == "" {
		return lberrors.New(lberrors.ErrCodeInvalidConfig, "cache.dir is required for the file backend")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return lberrors.Wrap(lberrors.ErrCodeInvalidConfig, err, "server.addr %q", c.Server.Addr)
	}
	if c.Watch.Debounce < 0 {
		return lberrors.New(lberrors.ErrCodeInvalidConfig, "watch.debounce must not be negative")
	}
	return nil
}

// Load reads the file at path, applies defaults and validates the result.
// An empty path selects [DefaultPath]; a missing default file yields the
// defaults, while a missing explicit file is an error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	var c Config
	md, err := toml.DecodeFile(path, &c)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return Default(), nil
	case err != nil:
		return Config{}, lberrors.Wrap(lberrors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, lberrors.New(lberrors.ErrCodeInvalidConfig, "unknown config key %q in %s", undecoded[0].String(), path)
	}

	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// EngineOptions returns the engine options selected by the build section.
func (c Config) EngineOptions() engine.Options {
	o := engine.DefaultOptions()
	o.Target = c.Build.Target
	o.JSXFactory = c.Build.JSXFactory
	o.JSXFragment = c.Build.JSXFragment
	return o
}

// Keyer returns the cache key scheme, scoped by key_prefix when set.
func (c Config) Keyer() cache.Keyer {
	if c.Cache.KeyPrefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), c.Cache.KeyPrefix)
}

// OpenCache connects the configured cache backend.
func (c Config) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Cache.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendMemory:
		return cache.NewMemoryCache(), nil
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return rc, nil
	case BackendMongo:
		mc, err := cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:      c.Cache.MongoURI,
			Database: c.Cache.MongoDatabase,
		})
		if err != nil {
			return nil, err
		}
		return mc, nil
	default:
		fc, err := cache.NewFileCache(c.Cache.Dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/livebundle/config.toml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// DefaultCacheDir returns the cache directory using XDG standard
// (~/.cache/livebundle/).
func DefaultCacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
