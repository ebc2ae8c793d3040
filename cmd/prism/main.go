// Command prism computes and serves implausibility projections for the
// sine-wave demonstration model.
//
// Usage:
//
//	prism project [flags]   compute projections and write figures
//	prism serve [flags]     run the projection HTTP service
//	prism migrate <up|down|status> [flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prism-data/prism/internal/api"
	"github.com/prism-data/prism/internal/config"
	"github.com/prism-data/prism/internal/emul"
	"github.com/prism-data/prism/internal/param"
	"github.com/prism-data/prism/internal/projection"
	"github.com/prism-data/prism/internal/projstore"
	"github.com/prism-data/prism/internal/render"
	"github.com/prism-data/prism/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("prism ")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "project":
		runProject(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version", "-version", "--version":
		fmt.Printf("prism %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: prism <command> [flags]

Commands:
  project   compute projections for the demonstration model and write figures
  serve     run the projection HTTP service
  migrate   manage the projection store schema (up, down, status)
  version   print build information

Run 'prism <command> -h' for command flags.`)
}

// loadConfig reads the config file when one is given, otherwise falls back to
// the canonical defaults file if present, otherwise built-in defaults.
func loadConfig(path string) *config.ProjectionConfig {
	if path != "" {
		cfg, err := config.LoadProjectionConfig(path)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		return cfg
	}
	if cfg, err := config.LoadProjectionConfig(config.DefaultConfigPath); err == nil {
		return cfg
	}
	return config.EmptyProjectionConfig()
}

// buildModel constructs the sine-wave emulator registry with the given number
// of refocused iterations, using the configured cut-off vector.
func buildModel(iterations int, cfg *config.ProjectionConfig) (*emul.Registry, *param.Space) {
	reg, space, err := emul.NewSineWaveRegistry(iterations, cfg.GetImplCut()...)
	if err != nil {
		log.Fatalf("failed to construct model: %v", err)
	}
	return reg, space
}

func runProject(args []string) {
	fs := flag.NewFlagSet("project", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to projection config JSON")
	dbPath := fs.String("db", "", "Projection store path (overrides config)")
	iterations := fs.Int("iterations", 3, "Number of emulator iterations to construct")
	iteration := fs.Int("iteration", 0, "Iteration to project (0 = latest)")
	params := fs.String("params", "", "Comma-separated parameter names (empty = all active)")
	projType := fs.String("type", "both", `Projection type: "2D", "3D" or "both"`)
	force := fs.Bool("force", false, "Recompute even when a stored projection exists")
	smooth := fs.Bool("smooth", false, "Apply artifact smoothing")
	noFigure := fs.Bool("no-figure", false, "Skip figure rendering")
	outputDir := fs.String("out", "", "Figure output directory (overrides config)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *outputDir != "" {
		cfg.OutputDir = outputDir
	}

	reg, space := buildModel(*iterations, cfg)

	store, err := projstore.Open(cfg.GetDBPath(), nil)
	if err != nil {
		log.Fatalf("failed to open projection store: %v", err)
	}
	defer store.Close()

	opts := cfg.Options()
	opts.Smooth = opts.Smooth || *smooth
	if *noFigure {
		opts.Figure = false
	}
	opts.Force = *force

	var names []string
	if *params != "" {
		for _, name := range strings.Split(*params, ",") {
			names = append(names, strings.TrimSpace(name))
		}
	}

	resolver := projection.NewResolver(space, reg)
	compute, cached, err := resolver.Resolve(*iteration, names, projection.Type(*projType), store, opts.Force)
	if err != nil {
		log.Fatalf("failed to resolve projection request: %v", err)
	}
	log.Printf("resolved %d projection(s) to compute, %d stored", len(compute), len(cached))

	agg := projection.NewAggregator(space, reg)
	renderer := render.NewRenderer(space, cfg.GetOutputDir())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, key := range append(append([]projection.Key(nil), compute...), cached...) {
		ds, hit, err := store.GetOrCompute(ctx, key, opts.Force,
			func(ctx context.Context, k projection.Key) (*projection.Dataset, error) {
				return agg.Project(ctx, k, opts)
			})
		if err != nil {
			log.Fatalf("projection %s failed: %v", key, err)
		}

		source := "computed"
		if hit {
			source = "stored"
		}
		if opts.Figure {
			path, err := renderer.Render(ds, opts)
			if err != nil {
				log.Fatalf("failed to render %s: %v", key, err)
			}
			if err := store.RecordFigure(key, path); err != nil {
				log.Fatalf("failed to record figure for %s: %v", key, err)
			}
			log.Printf("%s (%s): %d cells -> %s", key, source, len(ds.Cells), path)
		} else {
			log.Printf("%s (%s): %d cells", key, source, len(ds.Cells))
		}
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to projection config JSON")
	listen := fs.String("listen", "", "Listen address (overrides config)")
	dbPath := fs.String("db", "", "Projection store path (overrides config)")
	iterations := fs.Int("iterations", 3, "Number of emulator iterations to construct")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *listen != "" {
		cfg.ListenAddr = listen
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}

	reg, space := buildModel(*iterations, cfg)

	store, err := projstore.Open(cfg.GetDBPath(), nil)
	if err != nil {
		log.Fatalf("failed to open projection store: %v", err)
	}
	defer store.Close()

	mux := api.NewServer(space, reg, store, cfg).ServeMux()
	server := &http.Server{
		Addr:    cfg.GetListenAddr(),
		Handler: api.LoggingMiddleware(mux),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("graceful shutdown complete")
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to projection config JSON")
	dbPath := fs.String("db", "", "Projection store path (overrides config)")

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: prism migrate <up|down|status> [flags]")
		os.Exit(2)
	}
	action := args[0]
	fs.Parse(args[1:])

	cfg := loadConfig(*configPath)
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}

	// Open runs pending migrations itself, so "up" is implied; the explicit
	// subcommands exist for rollback and inspection.
	store, err := projstore.Open(cfg.GetDBPath(), nil)
	if err != nil {
		log.Fatalf("failed to open projection store: %v", err)
	}
	defer store.Close()

	switch action {
	case "up":
		if err := store.MigrateUp(); err != nil {
			log.Fatalf("migrate up failed: %v", err)
		}
		log.Println("migrations applied")
	case "down":
		if err := store.MigrateDown(); err != nil {
			log.Fatalf("migrate down failed: %v", err)
		}
		log.Println("rolled back one migration")
	case "status":
		version, dirty, err := store.MigrateVersion()
		if err != nil {
			log.Fatalf("migrate status failed: %v", err)
		}
		log.Printf("schema version %d (dirty=%v)", version, dirty)
	default:
		fmt.Fprintf(os.Stderr, "unknown migrate action %q\n", action)
		os.Exit(2)
	}
}
