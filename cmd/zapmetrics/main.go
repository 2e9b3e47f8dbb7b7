package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/zapdesk/zapmetrics/internal/analytics"
	"github.com/zapdesk/zapmetrics/internal/config"
	"github.com/zapdesk/zapmetrics/internal/db"
	"github.com/zapdesk/zapmetrics/internal/logger"
	"github.com/zapdesk/zapmetrics/internal/metrics"
	"github.com/zapdesk/zapmetrics/internal/scope"
	"github.com/zapdesk/zapmetrics/internal/server"
	"github.com/zapdesk/zapmetrics/internal/watch"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	lexiconDebounce = 500 * time.Millisecond
	shutdownTimeout = 10 * time.Second
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "report":
			if err := runReport(os.Args[2:], os.Stdout); err != nil {
				fmt.Fprintln(os.Stderr, "report:", err)
				os.Exit(1)
			}
			return
		case "set-lexicon":
			runSetLexicon(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("zapmetrics %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`zapmetrics %s - conversation analytics for WhatsApp service teams

Computes agent productivity, response times, sentiment and
activity trends from the messaging store and serves them over HTTP.

Usage:
  zapmetrics [flags]                Start the server (default command)
  zapmetrics serve [flags]          Start the server (explicit)
  zapmetrics report [flags]         Print a report as JSON or XLSX
  zapmetrics set-lexicon <path>     Persist the sentiment lexicon path
  zapmetrics version                Show version information
  zapmetrics help                   Show this help

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 8080)
  -db string          SQLite database path
  -lexicon string     JSON sentiment lexicon, reloaded on change
  -log-level string   debug, info, warn or error (default "info")
  -no-metrics         Disable the /metrics endpoint

Report flags:
  -org string         Organization id (required)
  -user string        Caller user id (required)
  -kind string        dashboard, metrics, productivity or xlsx
  -from, -to string   Window bounds (YYYY-MM-DD)
  -period string      today, 24h, 7d, 30d, current_month, ...
  -agent string       Narrow to one agent
  -timezone string    IANA timezone for the heatmap

Environment variables:
  ZAPMETRICS_DATA_DIR        Data directory (database, config)
  ZAPMETRICS_DB_PATH         SQLite database path
  ZAPMETRICS_LEXICON         Sentiment lexicon path
  ZAPMETRICS_AGENT_ALIASES   Extra agent role names, comma separated
  ZAPMETRICS_WATCH_INTERVAL  Live dashboard refresh (e.g. 30s)
  LOG_LEVEL, ENVIRONMENT     Logging level and format

A .env file in the working directory is read at startup.
Data is stored in ~/.zapmetrics/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig(args)
	log := newLogger(cfg)
	m := metrics.New()

	database := mustOpenDB(cfg, log, db.WithPageObserver(m.PageFetched))
	defer database.Close()

	lex := loadLexicon(cfg, log)
	stopWatcher := startLexiconWatcher(cfg, lex, m, log)
	defer stopWatcher()

	engine := newEngine(cfg, database, lex, log,
		analytics.WithObserver(m))

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		log.Warnf("port %d in use, using %d", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg, engine,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
		server.WithLogger(log),
		server.WithMetrics(m),
	)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.Infof("zapmetrics %s listening at http://%s:%d",
		version, cfg.Host, cfg.Port)
	if err := srv.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server error")
	}
}

func mustLoadConfig(args []string) config.Config {
	fs := flag.NewFlagSet("zapmetrics", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: zapmetrics [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "parsing flags: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating data dir: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newLogger(cfg config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
	})
}

func mustOpenDB(
	cfg config.Config, log *logger.Logger, opts ...db.Option,
) *db.DB {
	if cfg.PageSize > 0 {
		opts = append(opts, db.WithPageSize(cfg.PageSize))
	}
	database, err := db.Open(cfg.DBPath, opts...)
	if err != nil {
		log.WithError(err).Fatal("opening database")
	}
	return database
}

// loadLexicon returns the active lexicon store. A configured file
// that cannot be read leaves the built-in lexicon in place.
func loadLexicon(
	cfg config.Config, log *logger.Logger,
) *analytics.LexiconStore {
	store := analytics.NewLexiconStore(nil)
	if cfg.LexiconPath == "" {
		return store
	}
	if err := store.Reload(cfg.LexiconPath); err != nil {
		log.WithError(err).
			WithField("path", cfg.LexiconPath).
			Warn("lexicon unavailable, using defaults")
	}
	return store
}

func startLexiconWatcher(
	cfg config.Config, lex *analytics.LexiconStore,
	m *metrics.Metrics, log *logger.Logger,
) func() {
	if cfg.LexiconPath == "" {
		return func() {}
	}
	onChange := func(path string) {
		err := lex.Reload(path)
		m.LexiconReloaded(err)
		if err != nil {
			log.WithError(err).WithField("path", path).
				Warn("lexicon reload failed, keeping previous")
			return
		}
		log.WithField("path", path).Info("lexicon reloaded")
	}
	w, err := watch.New(lexiconDebounce, log, onChange)
	if err != nil {
		log.WithError(err).Warn("lexicon watcher unavailable")
		return func() {}
	}
	if err := w.Add(cfg.LexiconPath); err != nil {
		log.WithError(err).Warn("watching lexicon")
		w.Stop()
		return func() {}
	}
	w.Start()
	return w.Stop
}

// agentAliases merges the lexicon's role aliases with the ones
// from the config. The lexicon part follows reloads.
func agentAliases(
	cfg config.Config, lex *analytics.LexiconStore,
) func() []string {
	extra := cfg.AgentAliases
	return func() []string {
		base := lex.AgentAliases()
		if len(extra) == 0 {
			return base
		}
		out := make([]string, 0, len(base)+len(extra))
		out = append(out, base...)
		return append(out, extra...)
	}
}

func newEngine(
	cfg config.Config, database *db.DB,
	lex *analytics.LexiconStore, log *logger.Logger,
	opts ...analytics.Option,
) *analytics.Engine {
	resolver := scope.NewResolver(database, agentAliases(cfg, lex))
	opts = append([]analytics.Option{
		analytics.WithLexicon(lex),
		analytics.WithLogger(log),
	}, opts...)
	if cfg.RecentLimit > 0 {
		opts = append(opts, analytics.WithRecentLimit(cfg.RecentLimit))
	}
	return analytics.New(database, resolver, opts...)
}

func runSetLexicon(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: zapmetrics set-lexicon <path>")
		os.Exit(2)
	}
	if _, err := analytics.LoadLexicon(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "invalid lexicon: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadMinimal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.SaveLexiconPath(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Lexicon set to %s\n", args[0])
}
