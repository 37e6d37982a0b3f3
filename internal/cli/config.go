package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/flashlight/pkg/cache"
	"github.com/matzehuels/flashlight/pkg/errors"
)

// Config is the on-disk CLI configuration, loaded from a TOML file. Flags
// override whatever the file says; the file overrides built-in defaults.
type Config struct {
	Gallery GalleryConfig `toml:"gallery"`
	Source  SourceConfig  `toml:"source"`
	Cache   CacheConfig   `toml:"cache"`
	Serve   ServeConfig   `toml:"serve"`
}

// GalleryConfig holds tiling and paging defaults for the browse command.
type GalleryConfig struct {
	// RowThreshold is the cumulative aspect-ratio sum at which a row is
	// full. Zero uses the engine default.
	RowThreshold float64 `toml:"row_threshold"`

	// PageSize is the number of items fetched per page.
	PageSize int `toml:"page_size"`
}

// SourceConfig selects the default gallery source when no flag names one.
type SourceConfig struct {
	Dir   string      `toml:"dir"`
	URL   string      `toml:"url"`
	Mongo MongoConfig `toml:"mongo"`
}

// MongoConfig names a MongoDB collection to browse.
type MongoConfig struct {
	URI         string `toml:"uri"`
	Database    string `toml:"database"`
	Collection  string `toml:"collection"`
	AspectField string `toml:"aspect_field"`
}

// CacheConfig selects the page cache backend for remote sources.
type CacheConfig struct {
	// Backend is one of "file", "redis", or "none".
	Backend string `toml:"backend"`

	// TTL is how long cached pages stay valid (e.g. "24h").
	TTL duration `toml:"ttl"`

	Redis cache.RedisConfig `toml:"redis"`
}

// ServeConfig holds defaults for the serve command.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// duration wraps time.Duration so TOML values like "24h" decode directly.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// defaultConfig returns the built-in defaults applied before any file or
// flag is consulted.
func defaultConfig() Config {
	return Config{
		Gallery: GalleryConfig{PageSize: 60},
		Cache:   CacheConfig{Backend: "file", TTL: duration{24 * time.Hour}},
		Serve:   ServeConfig{Addr: ":8490"},
	}
}

// defaultConfigPath returns the conventional config location, or empty when
// the user config directory cannot be determined.
func defaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "flashlight", "config.toml")
}

// loadConfig reads the TOML config at path layered over the defaults. An
// empty path falls back to the conventional location, where a missing file
// is not an error; an explicitly named file must exist.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "cannot read config %q", path)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "cannot parse config %q", path)
	}
	return cfg, nil
}
