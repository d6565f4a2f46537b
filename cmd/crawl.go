package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/config"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/fetch"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/listing"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/orchestrator"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/processor"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs a full harvest
// pass over the guidance catalog.
func newCrawlCmd() *cobra.Command {
	var (
		limit       int
		concurrency int
		rateLimit   float64
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Harvests the guidance document catalog",
		Long: `Acquires the catalog listing, enriches each document from its detail
page, and downloads PDF attachments into the database under a new
session. Document-level failures are counted against the session
without stopping the run.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			cfg := app.cfg
			if cmd.Flags().Changed("limit") {
				cfg.Crawler.TestLimit = limit
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Crawler.Concurrency = concurrency
			}
			if cmd.Flags().Changed("rate-limit") {
				cfg.Crawler.RateLimit = rateLimit
			}

			o, err := buildHarvestOrchestrator(app, cfg)
			if err != nil {
				return err
			}

			sess, err := o.Crawl(cmd.Context())
			if sess.ID != uuid.Nil {
				fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("crawl: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "process at most N documents (0 = all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker pool size override")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "requests per second override")

	return cmd
}

func buildHarvestOrchestrator(app *application, cfg config.Config) (*orchestrator.Orchestrator, error) {
	clientCfg := fetch.ClientConfig{
		UserAgent:        cfg.Crawler.UserAgent,
		Timeout:          cfg.RequestTimeout(),
		MaxRetries:       cfg.HTTP.MaxRetries,
		BackoffInitial:   time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:       time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
		MaxDownloadBytes: cfg.HTTP.MaxAttachmentBytes,
	}

	chain, err := buildListingChain(cfg, app.logger)
	if err != nil {
		return nil, err
	}

	detail, err := fetch.NewDetailScraper(clientCfg, cfg.Listing.BaseURL, app.logger.Named("detail"))
	if err != nil {
		return nil, fmt.Errorf("init detail scraper: %w", err)
	}

	downloader := fetch.NewDownloader(fetch.NewHTTPClient(clientCfg), clientCfg, app.logger.Named("download"))
	proc := processor.New(app.docs, app.sessions, detail, downloader, app.logger.Named("processor"))

	return orchestrator.New(cfg, chain, app.docs, app.sessions, proc, nil, app.logger.Named("orchestrator")), nil
}

func buildListingChain(cfg config.Config, logger *zap.Logger) (*listing.Chain, error) {
	apiStrategy, err := listing.NewAPIStrategy(listing.APIConfig{
		APIURL:    cfg.Listing.APIURL,
		BaseURL:   cfg.Listing.BaseURL,
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	}, logger.Named("listing"))
	if err != nil {
		return nil, fmt.Errorf("init api strategy: %w", err)
	}

	strategies := []guidance.ListingStrategy{apiStrategy}

	if cfg.Browser.Enabled {
		browserStrategy, err := listing.NewBrowserStrategy(listing.BrowserConfig{
			CatalogURL: cfg.Listing.CatalogURL,
			BaseURL:    cfg.Listing.BaseURL,
			UserAgent:  cfg.Crawler.UserAgent,
			NavTimeout: time.Duration(cfg.Browser.NavTimeoutSec) * time.Second,
		}, logger.Named("listing"))
		if err != nil {
			return nil, fmt.Errorf("init browser strategy: %w", err)
		}
		strategies = append(strategies, browserStrategy)
	}

	strategies = append(strategies, listing.NewStaticStrategy())

	return listing.NewChain(logger.Named("listing"), strategies...)
}
