package cli

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flashlight/pkg/cache"
	"github.com/matzehuels/flashlight/pkg/errors"
	"github.com/matzehuels/flashlight/pkg/source"
	"github.com/matzehuels/flashlight/pkg/source/local"
	"github.com/matzehuels/flashlight/pkg/source/mongo"
)

// sourceOptions are the flags shared by browse and serve for selecting a
// gallery source. Empty values fall back to the config file.
type sourceOptions struct {
	dir         string
	url         string
	mongoURI    string
	mongoDB     string
	mongoColl   string
	aspectField string
	demo        int
	pageSize    int
}

// bindSourceFlags registers the shared source selection flags on cmd.
func bindSourceFlags(cmd *cobra.Command, o *sourceOptions) {
	f := cmd.Flags()
	f.StringVar(&o.dir, "dir", "", "browse a local directory of images")
	f.StringVar(&o.url, "url", "", "browse a flashlight page server")
	f.StringVar(&o.mongoURI, "mongo-uri", "", "browse a MongoDB collection at this URI")
	f.StringVar(&o.mongoDB, "mongo-db", "", "MongoDB database name")
	f.StringVar(&o.mongoColl, "mongo-collection", "", "MongoDB collection name")
	f.StringVar(&o.aspectField, "aspect-field", "", "document field holding a precomputed aspect ratio")
	f.IntVar(&o.demo, "demo", 0, "browse n generated demo items")
	f.IntVar(&o.pageSize, "page-size", 0, "items per fetched page")
}

// applyConfig fills options left unset by flags from the config file.
func (o *sourceOptions) applyConfig(cfg Config) {
	if o.dir == "" {
		o.dir = cfg.Source.Dir
	}
	if o.url == "" {
		o.url = cfg.Source.URL
	}
	if o.mongoURI == "" {
		o.mongoURI = cfg.Source.Mongo.URI
		if o.mongoDB == "" {
			o.mongoDB = cfg.Source.Mongo.Database
		}
		if o.mongoColl == "" {
			o.mongoColl = cfg.Source.Mongo.Collection
		}
		if o.aspectField == "" {
			o.aspectField = cfg.Source.Mongo.AspectField
		}
	}
	if o.pageSize == 0 {
		o.pageSize = cfg.Gallery.PageSize
	}
}

// buildSource resolves the selected source. The returned name identifies the
// source in logs and cache keys; cleanup releases source resources and is
// never nil.
func buildSource(ctx context.Context, o sourceOptions, logger *log.Logger) (source.Source, string, func(), error) {
	noop := func() {}

	switch {
	case o.dir != "":
		p := newProgress(logger)
		d, err := local.NewDir(o.dir, o.pageSize, logger)
		if err != nil {
			return nil, "", noop, err
		}
		p.done(fmt.Sprintf("Scanned %d images", d.Len()))
		return d, "dir:" + o.dir, noop, nil

	case o.url != "":
		s, err := source.NewHTTP(o.url, o.pageSize)
		if err != nil {
			return nil, "", noop, err
		}
		return s, "http:" + o.url, noop, nil

	case o.mongoURI != "":
		c, err := mongo.New(ctx, mongo.Config{
			URI:         o.mongoURI,
			Database:    o.mongoDB,
			Collection:  o.mongoColl,
			AspectField: o.aspectField,
			PageSize:    o.pageSize,
		})
		if err != nil {
			return nil, "", noop, err
		}
		cleanup := func() { _ = c.Close(context.Background()) }
		return c, fmt.Sprintf("mongo:%s/%s", o.mongoDB, o.mongoColl), cleanup, nil

	case o.demo > 0:
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		s := source.NewSlice(source.GenerateItems(o.demo, rng), o.pageSize)
		return s, fmt.Sprintf("demo:%d", o.demo), noop, nil

	default:
		return nil, "", noop, errors.New(errors.ErrCodeInvalidSource,
			"no source selected; pass --dir, --url, --mongo-uri, or --demo")
	}
}

// buildCache wires the configured page cache backend.
func buildCache(ctx context.Context, cfg CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return cache.NewNullCache(), nil
	case "file":
		dir, err := cacheDir()
		if err != nil {
			return nil, err
		}
		return cache.NewFileCache(dir)
	case "redis":
		return cache.NewRedisCache(ctx, cfg.Redis)
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", cfg.Backend)
	}
}
