package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zapdesk/zapmetrics/internal/analytics"
	"github.com/zapdesk/zapmetrics/internal/config"
	"github.com/zapdesk/zapmetrics/internal/db"
	"github.com/zapdesk/zapmetrics/internal/export"
	"github.com/zapdesk/zapmetrics/internal/logger"
	"github.com/zapdesk/zapmetrics/internal/timeutil"
)

type reportFlags struct {
	org, user, kind  string
	from, to, period string
	granularity      string
	agent, timezone  string
}

func parseReportFlags(args []string) (reportFlags, error) {
	var f reportFlags
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.StringVar(&f.org, "org", "", "Organization id")
	fs.StringVar(&f.user, "user", "", "Caller user id")
	fs.StringVar(&f.kind, "kind", "metrics",
		"dashboard, metrics, productivity or xlsx")
	fs.StringVar(&f.from, "from", "", "Window start (YYYY-MM-DD)")
	fs.StringVar(&f.to, "to", "", "Window end (YYYY-MM-DD)")
	fs.StringVar(&f.period, "period", "", "Named period, e.g. 7d")
	fs.StringVar(&f.granularity, "granularity", "", "hour, day or week")
	fs.StringVar(&f.agent, "agent", "", "Narrow to one agent")
	fs.StringVar(&f.timezone, "timezone", "UTC", "IANA timezone")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.org == "" || f.user == "" {
		return f, errors.New("-org and -user are required")
	}
	switch f.kind {
	case "dashboard", "metrics", "productivity", "xlsx":
	default:
		return f, fmt.Errorf("unknown report kind %q", f.kind)
	}
	return f, nil
}

func (f reportFlags) request() (analytics.Request, error) {
	loc, err := time.LoadLocation(f.timezone)
	if err != nil {
		return analytics.Request{}, fmt.Errorf(
			"invalid timezone %q: %w", f.timezone, err,
		)
	}
	return analytics.Request{
		OrgID:    f.org,
		CallerID: f.user,
		AgentID:  f.agent,
		Window: timeutil.WindowInput{
			DateStart:   f.from,
			DateEnd:     f.to,
			Period:      f.period,
			Granularity: f.granularity,
		},
		Location: loc,
	}, nil
}

// runReport computes one report against the configured database
// and writes it to out.
func runReport(args []string, out io.Writer) error {
	f, err := parseReportFlags(args)
	if err != nil {
		return err
	}
	req, err := f.request()
	if err != nil {
		return err
	}
	cfg, err := config.LoadMinimal()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr so the report can be piped.
	log := logger.New(logger.Options{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		Output:      os.Stderr,
	})
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	lex := loadLexicon(cfg, log)
	engine := newEngine(cfg, database, lex, log)
	return writeReport(context.Background(), engine, f.kind, req, out)
}

func writeReport(
	ctx context.Context, engine *analytics.Engine,
	kind string, req analytics.Request, out io.Writer,
) error {
	var v any
	switch kind {
	case "dashboard":
		rep, err := engine.Dashboard(ctx, req)
		if err != nil {
			return err
		}
		v = rep
	case "productivity", "xlsx":
		rep, err := engine.ProductivityReport(ctx, req)
		if err != nil {
			return err
		}
		if kind == "xlsx" {
			return export.WriteProductivity(out, rep)
		}
		v = rep
	default:
		rep, err := engine.Metrics(ctx, req)
		if err != nil {
			return err
		}
		v = rep
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
