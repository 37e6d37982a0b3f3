package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flashlight/pkg/cache"
	"github.com/matzehuels/flashlight/pkg/source"
)

// newBrowseCmd creates the browse command, the interactive terminal gallery.
func newBrowseCmd(configPath *string) *cobra.Command {
	var (
		opts      sourceOptions
		threshold float64
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse a gallery in the terminal",
		Long: `Browse opens an endlessly scrolling tiled gallery over the selected source.

Keys:
  up/down, j/k    scroll
  pgup/pgdn       scroll a screen
  home/end        jump to the first or last fetched item
  r               reset and refetch from the start
  q               quit

The mouse wheel scrolls and a left click selects an item.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			opts.applyConfig(cfg)
			if threshold == 0 {
				threshold = cfg.Gallery.RowThreshold
			}

			src, name, cleanup, err := buildSource(ctx, opts, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			// Remote sources get a page cache so revisiting a gallery does
			// not refetch everything. Local and demo sources are already
			// cheap to page.
			if !noCache && (opts.url != "" || opts.mongoURI != "") {
				pc, err := buildCache(ctx, cfg.Cache)
				if err != nil {
					return err
				}
				defer pc.Close()
				src = source.NewCached(src, pc, cache.NewDefaultKeyer(), name, cfg.Cache.TTL.Duration)
				logger.Debug("page cache enabled", "backend", cfg.Cache.Backend)
			}

			model, err := newGalleryModel(ctx, galleryParams{
				src:       src,
				name:      name,
				threshold: threshold,
				logger:    logger,
			})
			if err != nil {
				return err
			}

			prog := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithMouseCellMotion(),
				tea.WithContext(ctx))
			_, err = prog.Run()
			return err
		},
	}

	bindSourceFlags(cmd, &opts)
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "row aspect-ratio threshold (default 5)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the page cache")
	return cmd
}
