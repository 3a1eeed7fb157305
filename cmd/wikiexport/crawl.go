package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/wikiexport/internal/config"
	"github.com/nao1215/wikiexport/internal/crawler"
	"github.com/nao1215/wikiexport/internal/database"
	"github.com/nao1215/wikiexport/internal/extract"
	"github.com/nao1215/wikiexport/internal/httpclient"
	"github.com/nao1215/wikiexport/internal/log"
	"github.com/nao1215/wikiexport/internal/output"
	"github.com/nao1215/wikiexport/internal/pipeline"
	"github.com/nao1215/wikiexport/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a wiki and write its pages as Markdown",
		Long: `Crawl starts at the seed page, follows links to other articles on the
same host and writes each article to <out>/pages/<slug>.md. Every written
page is also appended to <out>/manifest.jsonl.

Pages are fetched one at a time. The delay between requests comes from
--delay, then the site file, then robots.txt Crawl-delay, then the 2s
default. Press Ctrl+C to stop: the current page is abandoned, links are
rewritten for the pages already exported and a partial summary is printed.

Examples:
  # Export a wiki into ./wiki_export
  wikiexport crawl https://wiki.example.org/wiki/Main_Page

  # Export at most 200 pages into ./docs, replacing an earlier export
  wikiexport crawl -n 200 -o docs -f https://wiki.example.org/wiki/Main_Page

  # Follow every path on the host, not only /wiki/ articles
  wikiexport crawl --wiki-prefix "" https://wiki.example.org/

  # Print the summary as JSON
  wikiexport crawl --format json https://wiki.example.org/wiki/Main_Page

Site file (.wikiexport) example:
  sites:
    wiki.example.org:
      crawlDelay: 5s
      headers:
        Authorization: "Bearer token"
      excludeNamespaces: [Portal]`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Output flags
	cmd.Flags().StringP("out", "o", config.DefaultOutputDir,
		"Output directory for pages/ and manifest.jsonl")
	cmd.Flags().BoolP("force", "f", false,
		"Clear a previous export in the output directory")
	cmd.Flags().Bool("no-front-matter", false,
		"Do not prefix pages with YAML front matter")

	// Crawl behavior flags
	cmd.Flags().IntP("max-pages", "n", config.DefaultMaxPages,
		"Maximum number of pages to attempt (0 means unlimited)")
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Delay between requests; overrides robots.txt Crawl-delay when set")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header and robots.txt agent name")
	cmd.Flags().String("wiki-prefix", config.DefaultWikiPrefix,
		"Only follow links whose path starts with this prefix (empty follows all)")
	cmd.Flags().Bool("same-host", true,
		"Only follow links on the seed's host")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt (not recommended)")
	cmd.Flags().Bool("strict-robots", false,
		"Treat an unreachable or failing robots.txt as disallowing everything")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (host:port)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Site file path (default: .wikiexport in current or home directory)")

	// Report flags
	cmd.Flags().String("format", config.DefaultReportFormat,
		"Summary format: text, json or markdown")
	cmd.Flags().String("report-file", "",
		"Also write the summary to this file (.json, .md or text)")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")
	cmd.Flags().String("history-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	return runWithSignals(cmd.Context(), logger, func(ctx context.Context) error {
		return runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
	})
}

// runWithSignals runs fn with a context cancelled on SIGINT or SIGTERM.
// The signal watcher and fn run in one errgroup; fn's error is returned.
func runWithSignals(parent context.Context, logger *slog.Logger, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	var g errgroup.Group

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Warn("received shutdown signal, finishing the export", "signal", sig.String())
			cancel()
		case <-done:
		}
		return nil
	})

	g.Go(func() error {
		defer close(done)
		return fn(ctx)
	})

	return g.Wait()
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the site file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if len(args) > 0 {
		cfg.SeedURL = args[0]
	}

	if cfg.OutputDir, err = flags.GetString("out"); err != nil {
		return nil, err
	}
	if cfg.Force, err = flags.GetBool("force"); err != nil {
		return nil, err
	}
	noFrontMatter, err := flags.GetBool("no-front-matter")
	if err != nil {
		return nil, err
	}
	cfg.FrontMatter = !noFrontMatter

	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}

	// An explicit --delay beats the site file and robots.txt Crawl-delay.
	delay, err := flags.GetDuration("delay")
	if err != nil {
		return nil, err
	}
	if flags.Changed("delay") {
		cfg.DelayOverride = delay
		cfg.DelayOverridden = true
	}

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.WikiPrefix, err = flags.GetString("wiki-prefix"); err != nil {
		return nil, err
	}
	if cfg.SameHost, err = flags.GetBool("same-host"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	noRobots, err := flags.GetBool("no-robots")
	if err != nil {
		return nil, err
	}
	cfg.RespectRobots = !noRobots
	if cfg.StrictRobots, err = flags.GetBool("strict-robots"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}

	if cfg.ReportFormat, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory
	if cfg.HistoryDir, err = flags.GetString("history-dir"); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if err := loadSiteFile(cfg); err != nil {
		return nil, err
	}

	// A wiki prefix given on the command line beats the site file.
	if flags.Changed("wiki-prefix") {
		prefix := cfg.WikiPrefix
		cfg.SiteConfigs.Defaults.WikiPrefix = &prefix
		for host, site := range cfg.SiteConfigs.Sites {
			site.WikiPrefix = &prefix
			cfg.SiteConfigs.Sites[host] = site
		}
	}

	return cfg, nil
}

// loadSiteFile loads the site file into cfg.SiteConfigs.
// An explicitly given path must exist; a missing default file is fine.
func loadSiteFile(cfg *config.Config) error {
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		siteConfigs, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = siteConfigs
	case explicitConfigPath:
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}
	return nil
}

// setupLogger creates the structured logger for a command.
func setupLogger(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	if jsonFormat {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}

// runCrawl wires the crawl components, runs the crawl and prints the summary.
// The summary is printed even when the run fails, so partial progress is
// visible; the error is returned afterwards.
func runCrawl(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	seedURL, err := url.Parse(cfg.SeedURL)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidSeedURL, err)
	}
	host := seedURL.Hostname()
	site := cfg.Site(host)
	logger.Debug("site configuration",
		"host", host,
		"wiki_prefix", cfg.EffectiveWikiPrefix(host),
		"crawl_delay", site.CrawlDelay,
		"headers", site.Headers,
	)

	stdoutWriter, err := report.New(cfg.ReportFormat, stdout, getVersion())
	if err != nil {
		return err
	}
	var writer report.Writer = stdoutWriter
	if cfg.ReportFile != "" {
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path is given by the user
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		writer = report.NewMultiWriter(stdoutWriter, report.ForFile(cfg.ReportFile, f, getVersion()))
	}

	client, err := httpclient.New(httpclient.Options{
		ProxyAddress: cfg.ProxyAddress,
		Timeout:      cfg.Timeout,
		UserAgent:    cfg.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	if cfg.ProxyAddress != "" {
		if status := client.CheckConnection(ctx); status != httpclient.ProxyStatusOK {
			return fmt.Errorf("proxy check failed: %s (is a SOCKS5 proxy running at %s?): %w",
				status, cfg.ProxyAddress, status.Error())
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	scope := crawler.NewScope(seedURL,
		crawler.WithSameHost(cfg.SameHost),
		crawler.WithWikiPrefix(cfg.EffectiveWikiPrefix(host)),
		crawler.WithExcludedNamespaces(site.ExcludeNamespaces),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
	)

	frontier, err := crawler.NewFrontier(cfg.SeedURL,
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithScope(scope),
		crawler.WithFrontierLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("invalid seed URL: %w", err)
	}

	fetcher := crawler.NewFetcher(client.NewHTTPClient(site.Headers), fetcherOptions(cfg, scope, logger)...)

	out, err := output.Open(cfg.OutputDir,
		output.WithForce(cfg.Force),
		output.WithFrontMatter(cfg.FrontMatter),
		output.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer out.Close()
	logger.Debug("export directory", "dir", cfg.OutputDir, "manifest", out.ManifestPath())

	ext, err := extract.New(extractorOptions(site, out, scope, logger)...)
	if err != nil {
		return fmt.Errorf("invalid site selectors: %w", err)
	}

	runnerOpts := []pipeline.RunnerOption{
		pipeline.WithFinisher(out),
		pipeline.WithOutputDir(cfg.OutputDir),
		pipeline.WithRunnerLogger(logger),
	}

	var db *database.HistoryDB
	if cfg.SaveHistory {
		db, err = database.Open(cfg.HistoryDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()

		runID, err := db.BeginRun(ctx, cfg.SeedURL, cfg.OutputDir, time.Now())
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		runnerOpts = append(runnerOpts, pipeline.WithRecorder(db, runID))
		logger.Debug("history enabled", "db", db.Path(), "run", runID)
	}

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewFetchStep(fetcher, pipeline.WithVisitMarker(frontier), pipeline.WithFetchLogger(logger)),
		pipeline.NewExtractStep(ext, pipeline.WithExtractLogger(logger)),
		pipeline.NewPersistStep(out, pipeline.WithPersistLogger(logger)),
		pipeline.NewDiscoverStep(frontier, pipeline.WithDiscoverLogger(logger)),
	)

	fmt.Fprintf(stderr, "Crawling %s into %s...\n", cfg.SeedURL, cfg.OutputDir)

	summary, runErr := pipeline.NewRunner(p, frontier, runnerOpts...).Run(ctx)
	if summary.SeedURL == "" {
		summary.SeedURL = cfg.SeedURL
	}

	if db != nil {
		if err := db.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
			logger.Warn("failed to finish run in history", "run", summary.RunID, "error", err)
		}
	}

	if _, err := writer.Write(summary); err != nil {
		logger.Error("failed to write summary", "error", err)
	}

	return runErr
}

// fetcherOptions translates the configuration into fetcher options.
func fetcherOptions(cfg *config.Config, scope *crawler.Scope, logger *slog.Logger) []crawler.FetcherOption {
	opts := []crawler.FetcherOption{
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithDefaultDelay(cfg.CrawlDelay),
		crawler.WithSiteDelay(func(host string) time.Duration {
			return cfg.Site(host).CrawlDelay
		}),
		crawler.WithRobots(cfg.RespectRobots, cfg.StrictRobots),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithRedirectScope(scope),
		crawler.WithFetcherLogger(logger),
	}
	if cfg.DelayOverridden {
		opts = append(opts, crawler.WithDelayOverride(cfg.DelayOverride))
	}
	return opts
}

// extractorOptions translates the site file into extractor options.
func extractorOptions(site config.SiteConfig, resolver extract.LinkResolver, scope *crawler.Scope, logger *slog.Logger) []extract.Option {
	opts := []extract.Option{
		extract.WithLinkResolver(resolver),
		extract.WithLinkScope(scope.InHost),
		extract.WithLogger(logger),
	}
	if len(site.ChromeSelectors) > 0 {
		opts = append(opts, extract.WithExtraChromeSelectors(site.ChromeSelectors))
	}
	if len(site.DisableChromeRules) > 0 {
		opts = append(opts, extract.WithoutChromeRules(site.DisableChromeRules...))
	}
	if len(site.ContentSelectors) > 0 {
		opts = append(opts, extract.WithContentSelectors(site.ContentSelectors))
	}
	return opts
}
