package cli

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flashlight/pkg/httputil"
	"github.com/matzehuels/flashlight/pkg/source"
)

// pageItemDoc is the JSON form of an item on the page endpoint. It matches
// the wire format the HTTP source consumes.
type pageItemDoc struct {
	ID          string  `json:"id"`
	AspectRatio float64 `json:"aspect_ratio"`
	Data        any     `json:"data,omitempty"`
}

// pageDoc is the JSON form of a page. An empty next token signals end of
// stream.
type pageDoc struct {
	Items []pageItemDoc `json:"items"`
	Next  string        `json:"next,omitempty"`
}

// newServeCmd creates the serve command, which exposes any gallery source as
// a paginated HTTP endpoint other flashlight instances can browse with --url.
func newServeCmd(configPath *string) *cobra.Command {
	var (
		opts sourceOptions
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve gallery pages over HTTP",
		Long:  `Serve exposes a gallery source (a directory of images, a MongoDB collection, or demo data) as a paginated JSON endpoint at /api/items. Cursors are opaque tokens; a missing next token in a response means the gallery is exhausted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			opts.applyConfig(cfg)
			if addr == "" {
				addr = cfg.Serve.Addr
			}

			src, name, cleanup, err := buildSource(ctx, opts, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)
			r.Use(requestLogger(logger))
			r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
				httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "source": name})
			})
			r.Get("/api/items", itemsHandler(src))

			srv := &http.Server{
				Addr:              addr,
				Handler:           r,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutCtx)
			}()

			logger.Info("serving gallery pages", "addr", addr, "source", name)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	bindSourceFlags(cmd, &opts)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8490)")
	return cmd
}

// itemsHandler serves one page per request. The key parameter carries the
// cursor from the previous response; numeric tokens address offset-cursor
// sources (directories, demo data) and everything else passes through as an
// opaque string. The limit parameter is advisory, the source's configured
// page size wins.
func itemsHandler(src source.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var key source.RequestKey
		if raw := r.URL.Query().Get("key"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				key = n
			} else {
				key = raw
			}
		}

		page, err := src.Get(r.Context(), key)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		doc := pageDoc{Items: make([]pageItemDoc, len(page.Items))}
		for i, it := range page.Items {
			doc.Items[i] = pageItemDoc{ID: it.ID, AspectRatio: it.AspectRatio, Data: it.Data}
		}
		if page.Next != nil {
			doc.Next = fmt.Sprint(page.Next)
		}
		httputil.WriteJSON(w, http.StatusOK, doc)
	}
}

// requestLogger logs each request at debug level with its status, size, and
// duration.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).Round(time.Millisecond),
				"id", middleware.GetReqID(r.Context()))
		})
	}
}
