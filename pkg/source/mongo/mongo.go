// Package mongo serves gallery pages from a MongoDB collection.
//
// Pagination is keyset-based on _id: each page's cursor is the hex id of its
// last document, and the next page filters on _id greater than that. Unlike
// skip/limit pagination this stays stable while documents are inserted
// behind the reader, which matters for galleries over live datasets.
package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/flashlight/pkg/errors"
	"github.com/matzehuels/flashlight/pkg/source"
	"github.com/matzehuels/flashlight/pkg/tiler"
)

// Config describes the collection to page over and where to find intrinsic
// sizes in its documents.
type Config struct {
	// URI is the MongoDB connection string.
	URI string

	// Database and Collection name the collection to read.
	Database   string
	Collection string

	// AspectField is the document field holding a precomputed width/height
	// ratio. When empty (or absent on a document), WidthField and
	// HeightField are consulted instead.
	AspectField string

	// WidthField and HeightField hold intrinsic pixel sizes.
	// Default "width" and "height".
	WidthField  string
	HeightField string

	// PageSize is the number of documents per page (default 60).
	PageSize int
}

// Collection is a paginated source over one MongoDB collection.
type Collection struct {
	coll *mongo.Collection
	cfg  Config
}

// New connects to MongoDB and verifies the connection with a ping.
// The caller owns the returned source and must Close it.
func New(ctx context.Context, cfg Config) (*Collection, error) {
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "mongo source requires database and collection names")
	}
	if cfg.WidthField == "" {
		cfg.WidthField = "width"
	}
	if cfg.HeightField == "" {
		cfg.HeightField = "height"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 60
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "cannot connect to %q", cfg.URI)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "mongo ping failed")
	}

	return &Collection{
		coll: client.Database(cfg.Database).Collection(cfg.Collection),
		cfg:  cfg,
	}, nil
}

// Get returns the page after the document id carried by key; nil starts at
// the first document in _id order.
func (c *Collection) Get(ctx context.Context, key source.RequestKey) (source.Page, error) {
	filter := bson.M{}
	switch k := key.(type) {
	case nil:
	case string:
		oid, err := primitive.ObjectIDFromHex(k)
		if err != nil {
			return source.Page{}, errors.Wrap(errors.ErrCodeInvalidKey, err, "mongo source expects object-id cursors")
		}
		filter["_id"] = bson.M{"$gt": oid}
	default:
		return source.Page{}, errors.New(errors.ErrCodeInvalidKey, "mongo source expects string cursors, got %T", key)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(c.cfg.PageSize) + 1) // one extra to detect the final page

	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return source.Page{}, errors.Wrap(errors.ErrCodeNetwork, err, "mongo find failed")
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return source.Page{}, errors.Wrap(errors.ErrCodeNetwork, err, "mongo cursor read failed")
	}

	more := len(docs) > c.cfg.PageSize
	if more {
		docs = docs[:c.cfg.PageSize]
	}

	page := source.Page{Items: make([]tiler.Item, 0, len(docs))}
	var lastID string
	for _, doc := range docs {
		oid, ok := doc["_id"].(primitive.ObjectID)
		if !ok {
			return source.Page{}, errors.New(errors.ErrCodeInternal, "document _id is %T, want ObjectID", doc["_id"])
		}
		lastID = oid.Hex()
		page.Items = append(page.Items, tiler.Item{
			ID:          lastID,
			AspectRatio: c.aspect(doc),
			Data:        doc,
		})
	}
	if more {
		page.Next = lastID
	}
	return page, nil
}

// aspect extracts the intrinsic aspect ratio from a document, preferring the
// configured aspect field over width/height, and defaulting to square when
// neither is usable.
func (c *Collection) aspect(doc bson.M) float64 {
	if c.cfg.AspectField != "" {
		if ar, ok := numeric(doc[c.cfg.AspectField]); ok && ar > 0 {
			return ar
		}
	}
	w, wok := numeric(doc[c.cfg.WidthField])
	h, hok := numeric(doc[c.cfg.HeightField])
	if wok && hok && w > 0 && h > 0 {
		return w / h
	}
	return 1
}

// numeric coerces the BSON number types a size field may decode to.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Close disconnects the underlying client.
func (c *Collection) Close(ctx context.Context) error {
	return c.coll.Database().Client().Disconnect(ctx)
}

// Ensure Collection implements source.Source.
var _ source.Source = (*Collection)(nil)
