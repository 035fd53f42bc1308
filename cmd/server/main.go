package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/climmo/pkg/api"
	"github.com/hazyhaar/climmo/pkg/cache"
	"github.com/hazyhaar/climmo/pkg/chassis"
	"github.com/hazyhaar/climmo/pkg/geo"
	"github.com/hazyhaar/climmo/pkg/importer"
	"github.com/hazyhaar/climmo/pkg/logger"
	"github.com/hazyhaar/climmo/pkg/report"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "import":
		cmdImport(os.Args[2:])
	case "build":
		cmdBuild(os.Args[2:])
	case "classify":
		cmdClassify(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: climmo <command>

Commands:
  serve      Start the HTTP API and MCP endpoint
  import     Download the public datasets (DVF, risques, communes)
  build      Write the pre-aggregated summary tables
  classify   Classify department codes
  mcp        Serve the MCP tools on stdin/stdout
`)
}

// app holds what every command derived from the configuration shares.
type app struct {
	cfg     config
	logger  *slog.Logger
	geo     *geo.Registry
	reports *report.Service
}

func setup(cfgPath string) *app {
	return setupWith(cfgPath, nil)
}

// setupWith lets a command override the loaded configuration before the
// services are built.
func setupWith(cfgPath string, override func(*config)) *app {
	boot := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := loadConfig(cfgPath, boot)
	if override != nil {
		override(&cfg)
	}
	l := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	reg := geo.NewRegistry(cfg.ReferenceDir)
	if err := reg.Load(); err != nil {
		l.Error("failed to load reference table", "dir", cfg.ReferenceDir, "error", err)
		os.Exit(1)
	}
	l.Info("reference table loaded", "version", reg.Version(), "departements", reg.Table().Len())

	results := cache.NewResults(cache.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), cfg.Redis.TTL)
	if results.Enabled() {
		l.Info("shared result cache enabled", "redis", cfg.Redis.Addr)
	}
	svc := report.NewService(cfg.Datasets, cfg.Filters, reg, cache.NewFrames(cfg.Cache.MaxFrames), results, l)

	return &app{cfg: cfg, logger: l, geo: reg, reports: svc}
}

func (a *app) deps() api.Deps {
	return api.Deps{Reports: a.reports, Geo: a.geo, DataDir: a.cfg.DataDir, Logger: a.logger}
}

// reload swaps the reference table and drops every cached dataset, since
// cleaned frames embed the department classification.
func (a *app) reload(ctx context.Context) {
	if err := a.geo.Reload(); err != nil {
		a.logger.Error("reload failed", "error", err)
		return
	}
	n := a.reports.Invalidate(ctx, "")
	a.logger.Info("reference table reloaded", "version", a.geo.Version(), "dropped", n)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	a := setup(*cfgPath)
	logger := a.logger

	mcpSrv := api.NewMCPServer(a.deps(), version)
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpSrv))
	mux.Handle("/", api.NewRouter(a.deps()))

	srv, err := chassis.New(chassis.Config{
		Addr:     a.cfg.Addr,
		TLSMode:  a.cfg.TLS.Mode,
		CertFile: a.cfg.TLS.CertFile,
		KeyFile:  a.cfg.TLS.KeyFile,
		Handler:  mux,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("server setup", "error", err)
		os.Exit(1)
	}

	// SIGHUP: hot reload the reference table.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, reloading reference table")
			a.reload(ctx)
		}
	}()

	if a.cfg.Checker.Interval > 0 {
		sdb, err := importer.OpenSourceDB(filepath.Join(a.cfg.DataDir, "sources.db"))
		if err != nil {
			logger.Error("open sources.db", "error", err)
			os.Exit(1)
		}
		defer sdb.Close()
		if err := sdb.Seed(importer.All()); err != nil {
			logger.Warn("seed sources", "error", err)
		}
		go importer.NewChecker(sdb, logger, a.cfg.Checker.Interval).Start(ctx)
	}

	// Start returns once ctx is cancelled.
	logger.Info("climmo starting", "addr", a.cfg.Addr, "tls", a.cfg.TLS.Mode, "version", version)
	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutting down")
	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	a := setup(*cfgPath)
	if err := server.ServeStdio(api.NewMCPServer(a.deps(), version)); err != nil {
		a.logger.Error("mcp stdio", "error", err)
		os.Exit(1)
	}
}

func cmdClassify(args []string) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	refDir := fs.String("reference-dir", "", "reference table directory (default: embedded table)")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Println("Usage :")
		fmt.Println("  climmo classify [--reference-dir <dir>] <code>...")
		return
	}
	reg := geo.NewRegistry(*refDir)
	if err := reg.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Erreur chargement référentiel: %v\n", err)
		os.Exit(1)
	}
	for _, raw := range fs.Args() {
		c := reg.Classify(raw)
		name := c.Name
		if !c.Known {
			name = "(inconnu)"
		}
		fmt.Printf("%-6s  %-4s  %-28s  %-30s  %s\n", raw, c.Code, name, c.Region, c.Zone)
	}
}
