package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/flashlight/pkg/errors"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.Gallery.PageSize != 60 {
		t.Errorf("PageSize = %d, want 60", cfg.Gallery.PageSize)
	}
	if cfg.Cache.Backend != "file" {
		t.Errorf("Backend = %q, want file", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL.Duration != 24*time.Hour {
		t.Errorf("TTL = %v, want 24h", cfg.Cache.TTL.Duration)
	}
	if cfg.Serve.Addr != ":8490" {
		t.Errorf("Addr = %q, want :8490", cfg.Serve.Addr)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[gallery]
row_threshold = 8.0
page_size = 120

[source]
dir = "/data/photos"

[cache]
backend = "redis"
ttl = "1h30m"

[cache.redis]
addr = "cache.internal:6379"
db = 2

[serve]
addr = ":9000"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.Gallery.RowThreshold != 8 {
		t.Errorf("RowThreshold = %v, want 8", cfg.Gallery.RowThreshold)
	}
	if cfg.Gallery.PageSize != 120 {
		t.Errorf("PageSize = %d, want 120", cfg.Gallery.PageSize)
	}
	if cfg.Source.Dir != "/data/photos" {
		t.Errorf("Dir = %q, want /data/photos", cfg.Source.Dir)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("Backend = %q, want redis", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL.Duration != 90*time.Minute {
		t.Errorf("TTL = %v, want 1h30m", cfg.Cache.TTL.Duration)
	}
	if cfg.Cache.Redis.Addr != "cache.internal:6379" || cfg.Cache.Redis.DB != 2 {
		t.Errorf("Redis = %+v, want addr cache.internal:6379 db 2", cfg.Cache.Redis)
	}
	if cfg.Serve.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.Serve.Addr)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("loadConfig error = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadConfigBadTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[cache]\nttl = \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("loadConfig error = %v, want INVALID_CONFIG", err)
	}
}

func TestSourceOptionsApplyConfig(t *testing.T) {
	cfg := Config{
		Gallery: GalleryConfig{PageSize: 40},
		Source: SourceConfig{
			Dir: "/photos",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost",
				Database:   "media",
				Collection: "samples",
			},
		},
	}

	// Flags win over the file.
	o := sourceOptions{dir: "/other", pageSize: 10}
	o.applyConfig(cfg)
	if o.dir != "/other" || o.pageSize != 10 {
		t.Errorf("flag values overwritten: %+v", o)
	}

	// Unset options fall back to the file.
	o = sourceOptions{}
	o.applyConfig(cfg)
	if o.dir != "/photos" || o.pageSize != 40 {
		t.Errorf("config fallback not applied: %+v", o)
	}
	if o.mongoURI != "mongodb://localhost" || o.mongoDB != "media" || o.mongoColl != "samples" {
		t.Errorf("mongo fallback not applied: %+v", o)
	}
}
