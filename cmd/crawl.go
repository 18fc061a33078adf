package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seoscope/crawler/internal/api"
	"github.com/seoscope/crawler/internal/archive"
	"github.com/seoscope/crawler/internal/config"
	"github.com/seoscope/crawler/internal/crawl"
	"github.com/seoscope/crawler/internal/extract"
	"github.com/seoscope/crawler/internal/fetch"
	"github.com/seoscope/crawler/internal/filter"
	"github.com/seoscope/crawler/internal/progress"
	"github.com/seoscope/crawler/internal/progress/sinks"
	"github.com/seoscope/crawler/internal/publish"
	"github.com/seoscope/crawler/internal/render"
	"github.com/seoscope/crawler/internal/robots"
	"github.com/seoscope/crawler/internal/sitemap"
	"github.com/seoscope/crawler/internal/store"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one full crawl
// session from the configured seed URL.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Starts a crawl from the configured seed URL",
		Long: `Runs a breadth-first crawl of the configured site: robots.txt is
honored (unless overridden), discovered links are filtered against the
include/exclude patterns, and every visited page is recorded with its
extracted SEO fields. Results can be persisted to Postgres, archived to
blob storage, and announced over Pub/Sub when configured.`,
		RunE: runCrawlCommand,
	}
	cmd.Flags().String("seed", "", "seed URL (overrides crawl.seed_url)")
	cmd.Flags().String("listen", "", "address for the progress API (overrides server.listen, enables the server)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	seedFlag, _ := cmd.Flags().GetString("seed")
	listenFlag, _ := cmd.Flags().GetString("listen")
	cfg, logger, err := loadConfigAndLogger(func(c *config.Config) {
		if seedFlag != "" {
			c.Crawl.SeedURL = seedFlag
		}
		if listenFlag != "" {
			c.Server.Listen = listenFlag
			c.Server.Enabled = true
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	latest := sinks.NewLatestStore()
	hub := progress.NewHub(progress.Config{
		MinInterval: cfg.ProgressInterval(),
		BaseContext: ctx,
		Logger:      logger.Named("progress"),
	},
		sinks.NewLogSink(logger.Named("progress")),
		sinks.NewPrometheusSink(),
		latest,
	)
	deps.Progress = hub

	holder := &api.SessionHolder{}
	var apiServer *http.Server
	if cfg.Server.Enabled {
		apiServer = startAPIServer(cfg, latest, holder, logger)
		defer shutdownAPIServer(apiServer, logger)
	}

	scheduler, err := crawl.NewScheduler(crawl.Config{
		SeedURL:        cfg.Crawl.SeedURL,
		MaxPages:       cfg.Crawl.MaxPages,
		MaxDepth:       cfg.Crawl.MaxDepth,
		Concurrency:    cfg.Crawl.Concurrency,
		OverrideRobots: cfg.Crawl.OverrideRobots,
		IgnoreNoindex:  cfg.Crawl.IgnoreNoindex,
		UseSitemap:     cfg.Crawl.UseSitemap,
	}, deps)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	session, runErr := scheduler.Run(ctx)
	if session == nil {
		return runErr
	}
	export := session.Export()
	holder.Set(export)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}

	if err := finishSession(closeCtx, cfg, export, logger); err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// buildDeps constructs the scheduler collaborators from config. The returned
// cleanup closes everything that holds resources.
func buildDeps(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawl.Deps, func(), error) {
	userAgent := cfg.HTTP.UserAgent
	if userAgent == "" {
		userAgent = fetch.DefaultUserAgent
	}

	fetcher, err := fetch.NewClient(fetch.Config{
		UserAgent:    userAgent,
		Timeout:      cfg.HTTPTimeout(),
		MaxRedirects: cfg.HTTP.MaxRedirects,
		Concurrency:  cfg.Crawl.Concurrency,
	}, logger.Named("fetch"))
	if err != nil {
		return crawl.Deps{}, nil, fmt.Errorf("init fetcher: %w", err)
	}

	delayMin, delayMax := cfg.DelayBounds()
	politeness := robots.NewController(robots.Config{
		UserAgent:    userAgent,
		FetchTimeout: cfg.HTTPTimeout(),
		DelayMin:     delayMin,
		DelayMax:     delayMax,
	}, logger.Named("robots"))

	urlFilter, err := buildFilter(cfg)
	if err != nil {
		return crawl.Deps{}, nil, err
	}

	deps := crawl.Deps{
		Fetcher:    fetcher,
		Extractor:  extract.New(logger.Named("extract")),
		Politeness: politeness,
		Filter:     urlFilter,
		Logger:     logger.Named("crawl"),
	}
	var cleanups []func()

	if cfg.Crawl.UseSitemap {
		deps.Sitemaps = sitemap.NewDiscoverer(sitemap.Config{
			UserAgent:    userAgent,
			FetchTimeout: cfg.HTTPTimeout(),
		}, logger.Named("sitemap"))
	}

	if cfg.Render.Enabled {
		renderer, err := render.NewChromeRenderer(render.Config{
			UserAgent:      userAgent,
			MaxConcurrency: cfg.Render.MaxParallel,
			Timeout:        cfg.RenderTimeout(),
			DomainQPS:      cfg.Render.DomainQPS,
		}, logger.Named("render"))
		switch {
		case err == nil:
			deps.Renderer = renderer
			deps.Detector = render.NewDetector(cfg.Render.MinHTMLBytes, nil, render.DefaultSPAKeywords)
			cleanups = append(cleanups, func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if cerr := renderer.Close(closeCtx); cerr != nil {
					logger.Warn("renderer close failed", zap.Error(cerr))
				}
			})
		case errors.Is(err, render.ErrDisabled):
			logger.Warn("rendering enabled but concurrency is zero, skipping")
		default:
			return crawl.Deps{}, nil, fmt.Errorf("init renderer: %w", err)
		}
	}

	pageArchive, err := archive.New(ctx, archive.Config{
		Backend: cfg.Archive.Backend,
		BaseDir: cfg.Archive.BaseDir,
		Bucket:  cfg.Archive.Bucket,
	})
	if err != nil {
		return crawl.Deps{}, nil, fmt.Errorf("init archive: %w", err)
	}
	deps.Archive = pageArchive

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	return deps, cleanup, nil
}

func buildFilter(cfg config.Config) (*filter.Filter, error) {
	toPatterns := func(exprs []string) []filter.Pattern {
		out := make([]filter.Pattern, 0, len(exprs))
		for _, expr := range exprs {
			out = append(out, filter.Pattern{Expr: expr, Regex: cfg.Crawl.PatternsAreRe})
		}
		return out
	}
	f, err := filter.New(toPatterns(cfg.Crawl.IncludePatterns), toPatterns(cfg.Crawl.ExcludePatterns))
	if err != nil {
		return nil, fmt.Errorf("compile url patterns: %w", err)
	}
	return f, nil
}

func startAPIServer(cfg config.Config, latest *sinks.LatestStore, holder *api.SessionHolder, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.NewServer(latest, holder, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server started", zap.String("listen", cfg.Server.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()
	return srv
}

func shutdownAPIServer(srv *http.Server, logger *zap.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}

// finishSession persists and announces the finished crawl where configured.
func finishSession(ctx context.Context, cfg config.Config, export crawl.Export, logger *zap.Logger) error {
	if cfg.DB.DSN != "" {
		sessions, err := store.NewSessionStore(ctx, store.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		}, logger.Named("store"))
		if err != nil {
			return fmt.Errorf("init session store: %w", err)
		}
		defer sessions.Close()
		if err := sessions.SaveSession(ctx, export); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
		logger.Info("session persisted", zap.String("session_id", export.ID.String()))
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		publisher, err := publish.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger.Named("publish"))
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				logger.Warn("publisher close failed", zap.Error(cerr))
			}
		}()
		err = publisher.PublishCompletion(ctx, publish.CompletionEvent{
			SessionID: export.ID,
			Seed:      export.Seed,
			Visited:   len(export.Pages),
			Failed:    export.Counters.Failed,
			Finished:  export.Finished,
		})
		if err != nil {
			return fmt.Errorf("publish completion: %w", err)
		}
	}
	return nil
}
