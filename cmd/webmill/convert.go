package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/webmill/batch"
	"github.com/c360studio/webmill/cache"
	"github.com/c360studio/webmill/config"
	"github.com/c360studio/webmill/extract"
	"github.com/c360studio/webmill/fetch"
	"github.com/c360studio/webmill/links"
	"github.com/c360studio/webmill/markdown"
	"github.com/c360studio/webmill/pipeline"
)

// services bundles the wired pipeline with the resources it owns.
type services struct {
	pipeline *pipeline.Pipeline
	browser  *fetch.Browser
	cache    *cache.Cache
}

func (s *services) close() {
	s.browser.Close()
	s.cache.Close()
}

// buildServices constructs the full pipeline from configuration.
func buildServices(cfg *config.Config, logger *slog.Logger) (*services, error) {
	browser, err := fetch.NewBrowser(fetch.Config{
		MaxConcurrentPages: cfg.Fetcher.MaxConcurrentPages,
		UserAgent:          cfg.Fetcher.UserAgent,
		ViewportWidth:      cfg.Fetcher.ViewportWidth,
		ViewportHeight:     cfg.Fetcher.ViewportHeight,
		Headless:           cfg.Fetcher.GetHeadless(),
		NavigationTimeout:  cfg.Fetcher.GetNavigationTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	store := cache.New(cache.Config{
		ContentTTL:      cfg.Cache.GetContentTTL(),
		MetadataTTL:     cfg.Cache.GetMetadataTTL(),
		ContentMaxKeys:  cfg.Cache.ContentMaxKeys,
		MetadataMaxKeys: cfg.Cache.MetadataMaxKeys,
		SweepInterval:   cfg.Cache.GetSweepInterval(),
	}, logger)

	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.RateLimitPerDomain = cfg.RateLimit.RequestsPerDomain
	pipeCfg.RateLimitWindow = cfg.RateLimit.GetWindow()
	pipeCfg.CacheTTL = cfg.Cache.GetContentTTL()

	batchCfg := batch.Config{
		MaxConcurrent:     cfg.Batch.MaxConcurrent,
		ChunkSize:         cfg.Batch.ChunkSize,
		InterRequestDelay: cfg.Batch.GetInterRequestDelay(),
		InterChunkDelay:   cfg.Batch.GetInterChunkDelay(),
		MaxRetries:        cfg.Batch.MaxRetries,
	}

	converter := markdown.New(markdown.Options{
		HeadingStyle: markdown.HeadingStyle(cfg.Markdown.HeadingStyle),
		BulletMarker: cfg.Markdown.BulletMarker,
		LinkStyle:    cfg.Markdown.LinkStyle,
	})

	p := pipeline.New(pipeCfg, batchCfg, browser, extract.New(logger), converter, store, nil, logger)
	return &services{pipeline: p, browser: browser, cache: store}, nil
}

// pipelineOptions maps config to per-request options.
func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Fetch: fetch.Options{
			Timeout:   cfg.Fetcher.GetNavigationTimeout(),
			WaitUntil: fetch.WaitUntil(cfg.Fetcher.WaitUntil),
		},
		Extract: extract.Options{
			RemoveSelectors:  cfg.Extract.RemoveSelectors,
			ContentSelectors: cfg.Extract.ContentSelectors,
		},
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func convertCmd(configPath, logLevel *string) *cobra.Command {
	var (
		bypassCache bool
		selector    string
	)

	cmd := &cobra.Command{
		Use:   "convert <url>",
		Short: "Convert a single web page to Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)
			cfg, err := loadConfig(*configPath, logger)
			if err != nil {
				return err
			}

			svc, err := buildServices(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.close()

			ctx, cancel := signalContext()
			defer cancel()

			opts := pipelineOptions(cfg)
			opts.BypassCache = bypassCache
			opts.Fetch.WaitForSelector = selector

			result, err := svc.pipeline.ConvertURL(ctx, args[0], opts)
			// The envelope carries the categorized error; print it either way.
			if printErr := printJSON(result); printErr != nil {
				return printErr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&bypassCache, "no-cache", false, "Skip the content cache")
	cmd.Flags().StringVar(&selector, "wait-for", "", "CSS selector to wait for before capture")
	return cmd
}

func batchCmd(configPath, logLevel *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "batch <url>...",
		Short: "Convert multiple web pages with bounded concurrency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)
			cfg, err := loadConfig(*configPath, logger)
			if err != nil {
				return err
			}

			svc, err := buildServices(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.close()

			ctx, cancel := signalContext()
			defer cancel()

			result, err := svc.pipeline.ConvertURLsBatch(ctx, userID, args, pipelineOptions(cfg))
			if result != nil {
				if printErr := printJSON(result); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID for history tracking")
	return cmd
}

func linksCmd(configPath, logLevel *string) *cobra.Command {
	var (
		includeImages bool
		dedupe        bool
	)

	cmd := &cobra.Command{
		Use:   "links <url>",
		Short: "Discover and categorize the links on a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)
			cfg, err := loadConfig(*configPath, logger)
			if err != nil {
				return err
			}

			svc, err := buildServices(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.close()

			ctx, cancel := signalContext()
			defer cancel()

			result, err := svc.pipeline.DiscoverLinks(ctx, args[0], pipeline.DiscoverOptions{
				Fetch: fetch.Options{
					Timeout:   cfg.Fetcher.GetNavigationTimeout(),
					WaitUntil: fetch.WaitUntil(cfg.Fetcher.WaitUntil),
				},
				Links: links.Options{
					IncludeImages:    includeImages,
					RemoveDuplicates: dedupe,
				},
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().BoolVar(&includeImages, "images", false, "Include image sources")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "Remove duplicate URLs, keeping the longest title")
	return cmd
}
