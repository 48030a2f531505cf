// insights - match statistics dashboard server and tools
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/VedaVachan/COD-Mobile-insights/internal/api"
	"github.com/VedaVachan/COD-Mobile-insights/internal/config"
	"github.com/VedaVachan/COD-Mobile-insights/internal/dashboard"
	"github.com/VedaVachan/COD-Mobile-insights/internal/events"
	"github.com/VedaVachan/COD-Mobile-insights/internal/gallery"
	"github.com/VedaVachan/COD-Mobile-insights/internal/loader"
	"github.com/VedaVachan/COD-Mobile-insights/internal/logging"
)

var version = "dev"

const defaultConfigPath = "insights.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	case "summary":
		cmdSummary(os.Args[2:])
	case "timeline":
		cmdTimeline(os.Args[2:])
	case "dashboard":
		cmdDashboard(os.Args[2:])
	case "export":
		cmdExport(os.Args[2:])
	case "sample":
		cmdSample(os.Args[2:])
	case "weapons":
		cmdWeapons(os.Args[2:])
	case "watch":
		cmdWatch(os.Args[2:])
	case "version":
		fmt.Printf("insights %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: insights <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init [--force]                      Write a default config file")
	fmt.Println("  serve                               Start the dashboard server")
	fmt.Println("  summary <file|url>                  Show summary cards and map/mode breakdowns")
	fmt.Println("  timeline <file|url> [--limit N]     Show matches newest first (default: 20)")
	fmt.Println("  dashboard                           Show the running server's dashboard")
	fmt.Println("  export <file|url> --out <path> [--format csv|sqlite]")
	fmt.Println("                                      Export normalized matches")
	fmt.Println("  sample [--count N] [--seed S] [--out path] [--format json|csv]")
	fmt.Println("                                      Generate sample match rows")
	fmt.Println("  weapons [srcDir] [--out dir] [--size N]")
	fmt.Println("                                      Build the weapons gallery thumbnails")
	fmt.Println("  watch [--nats url] [--subject s]    Print dataset events from NATS")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default insights.yml)")
	fmt.Println("  --url <url>        Base URL of the insights server (default: derived from config)")
	fmt.Println()
	fmt.Println("Environment variables prefixed with INSIGHTS_ override the config file,")
	fmt.Println("e.g. INSIGHTS_DATA_STATIC_SOURCE=https://example.com/matches.json")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  insights init")
	fmt.Println("  insights serve --config insights.yml")
	fmt.Println("  insights summary data/matches.csv")
	fmt.Println("  insights export data/matches.json --out snapshot.db")
	fmt.Println("  insights sample --count 90 --seed 7 --out data/sample.json")
}

// resolveConfigPath returns path, or the default config file when it exists
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(resolveConfigPath(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// cmdInit writes a default configuration file
func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path of the config file to write")
	force := fs.Bool("force", false, "overwrite an existing config file")
	fs.Parse(args)

	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Printf("Config already exists at %s.\n", *configPath)
		fmt.Println("Use --force to overwrite it.")
		return
	}

	cfg := config.Default()
	cfg.Data.StaticSource = filepath.Join("data", "matches.json")
	cfg.Server.StaticDir = "web"
	cfg.Gallery.SourceDir = filepath.Join("assets", "weapons")
	cfg.Gallery.OutputDir = filepath.Join("web", "weapons")

	if err := config.Save(*configPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  insights sample --count 60 --out %s\n", cfg.Data.StaticSource)
	fmt.Printf("  insights serve --config %s\n", *configPath)
}

// cmdServe starts the dashboard server
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Insights starting", zap.String("version", version))

	// Optional in-process broker
	var embedded *events.EmbeddedServer
	natsURL := cfg.Events.NATSURL
	if cfg.Events.Embedded {
		embedded, err = events.StartEmbedded(cfg.Events.EmbeddedHost, cfg.Events.EmbeddedPort)
		if err != nil {
			logger.Fatal("Failed to start embedded NATS server", zap.Error(err))
		}
		if natsURL == "" {
			natsURL = embedded.ClientURL()
		}
		logger.Info("Embedded NATS server started", zap.String("url", embedded.ClientURL()))
	}

	hub := api.NewWebSocketHub(logger)
	go hub.Run()

	publishers := events.Multi{hub}
	var natsPub *events.NATSPublisher
	if natsURL != "" {
		natsPub, err = events.ConnectNATS(natsURL, cfg.Events.Subject, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.String("url", natsURL), zap.Error(err))
		}
		publishers = append(publishers, natsPub)
		logger.Info("Publishing events to NATS", zap.String("subject", cfg.Events.Subject))
	}

	l := loader.New(&http.Client{Timeout: cfg.Data.FetchTimeout}, logger)
	svc := dashboard.NewService(l, dashboard.Options{
		StaticSource: cfg.Data.StaticSource,
		CacheSize:    cfg.Data.CacheSize,
		CacheTTL:     cfg.Data.CacheTTL,
	}, publishers, logger)
	if svc.Source() == "" {
		logger.Warn("No static source configured; only uploads and samples are available")
	}

	if cfg.Gallery.SourceDir != "" && cfg.Gallery.OutputDir != "" {
		if _, err := gallery.Build(context.Background(), cfg.Gallery.SourceDir, cfg.Gallery.OutputDir, cfg.Gallery.ThumbSize, logger); err != nil {
			logger.Warn("Weapons gallery not built", zap.Error(err))
		}
	}

	router := api.NewRouter(svc, hub, cfg, logger)
	if cfg.Server.StaticDir != "" {
		logger.Info("Serving static files", zap.String("dir", cfg.Server.StaticDir))
	}

	addr := cfg.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Fatal("HTTP server error", zap.Error(err))
	}

	// Sequential shutdown
	logger.Info("Shutting down HTTP server")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Stopping WebSocket hub")
	hub.Stop()

	if natsPub != nil {
		logger.Info("Draining NATS connection")
		if err := natsPub.Close(); err != nil {
			logger.Warn("NATS drain error", zap.Error(err))
		}
	}
	if embedded != nil {
		embedded.Shutdown()
	}

	logger.Info("Shutdown complete")
}
