package mongo

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestAspectExtraction(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		doc  bson.M
		want float64
	}{
		{
			name: "precomputed aspect field",
			cfg:  Config{AspectField: "ar", WidthField: "width", HeightField: "height"},
			doc:  bson.M{"ar": 1.75},
			want: 1.75,
		},
		{
			name: "width and height fallback",
			cfg:  Config{AspectField: "ar", WidthField: "width", HeightField: "height"},
			doc:  bson.M{"width": int32(200), "height": int32(100)},
			want: 2,
		},
		{
			name: "int64 sizes",
			cfg:  Config{WidthField: "width", HeightField: "height"},
			doc:  bson.M{"width": int64(100), "height": int64(400)},
			want: 0.25,
		},
		{
			name: "missing sizes default to square",
			cfg:  Config{WidthField: "width", HeightField: "height"},
			doc:  bson.M{"label": "cat"},
			want: 1,
		},
		{
			name: "degenerate zero height defaults to square",
			cfg:  Config{WidthField: "width", HeightField: "height"},
			doc:  bson.M{"width": int32(100), "height": int32(0)},
			want: 1,
		},
		{
			name: "non-numeric aspect falls through",
			cfg:  Config{AspectField: "ar", WidthField: "width", HeightField: "height"},
			doc:  bson.M{"ar": "wide", "width": 300.0, "height": 100.0},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Collection{cfg: tt.cfg}
			if got := c.aspect(tt.doc); got != tt.want {
				t.Errorf("aspect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRequiresNames(t *testing.T) {
	if _, err := New(context.Background(), Config{URI: "mongodb://localhost"}); err == nil {
		t.Error("New without database/collection should fail")
	}
}
