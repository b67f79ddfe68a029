package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ironsheep/smart-tools-mcp/internal/config"
	"github.com/ironsheep/smart-tools-mcp/internal/geometry"
	"github.com/ironsheep/smart-tools-mcp/internal/httpapi"
	"github.com/ironsheep/smart-tools-mcp/internal/logging"
	"github.com/ironsheep/smart-tools-mcp/internal/server"
	"github.com/ironsheep/smart-tools-mcp/internal/session"
	"github.com/ironsheep/smart-tools-mcp/internal/vision"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("smart-tools-mcp - MCP server for smart annotation tools")
	fmt.Println()
	fmt.Println("Usage: smart-tools-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config PATH    YAML configuration file")
	fmt.Println("  --http ADDR      Serve HTTP on ADDR instead of MCP over stdio")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  SMART_TOOLS_LOG_LEVEL=debug         Enable debug logging")
	fmt.Println("  SMART_TOOLS_SERVER_TRANSPORT=http   Select the transport")
	fmt.Println("  SMART_TOOLS_<SECTION>_<KEY>         Override any configuration key")
	fmt.Println()
	fmt.Println("In stdio mode the server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

func main() {
	var (
		configPath  string
		httpAddr    string
		showVersion bool
		showHelp    bool
	)
	flags := flag.NewFlagSet("smart-tools-mcp", flag.ExitOnError)
	flags.Usage = usage
	flags.StringVar(&configPath, "config", "", "YAML configuration file")
	flags.StringVar(&httpAddr, "http", "", "serve HTTP on this address")
	flags.BoolVar(&showVersion, "version", false, "print version information")
	flags.BoolVar(&showVersion, "v", false, "print version information")
	flags.BoolVar(&showHelp, "help", false, "print help")
	flags.BoolVar(&showHelp, "h", false, "print help")
	_ = flags.Parse(os.Args[1:])

	switch {
	case showVersion:
		fmt.Printf("smart-tools-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		fmt.Printf("  Vision:     %s\n", vision.Load())
		return
	case showHelp:
		usage()
		return
	}

	if err := run(configPath, httpAddr); err != nil {
		fmt.Fprintf(os.Stderr, "smart-tools-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, httpAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if httpAddr != "" {
		cfg.Server.Transport = config.TransportHTTP
		cfg.Server.HTTPAddr = httpAddr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	lib := vision.Load()
	server.Version = Version
	logger.Info("starting smart-tools-mcp",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("vision", lib.String()),
		zap.String("transport", cfg.Server.Transport))

	sessions := session.NewRegistry(session.Options{
		Library:    lib,
		QueueSize:  cfg.Worker.QueueSize,
		DebugArena: cfg.Arena.Debug,
		GrabCut:    cfg.GrabCut.Segmenter(),
		Scissors:   cfg.Scissors.Tracer(),
		SSIM:       cfg.SSIM.Matcher(),
		Logger:     logger,
	})
	defer sessions.CloseAll()

	srv := server.New(sessions,
		server.WithLogger(logger),
		server.WithDefaultShapeType(geometry.ShapeType(cfg.SAM.DefaultType)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Transport == config.TransportHTTP {
		router := httpapi.NewRouter(srv, httpapi.BuildInfo{
			Version:   Version,
			BuildTime: BuildTime,
			GitCommit: GitCommit,
		}, cfg.Server.Mode, logger)
		return httpapi.Serve(ctx, cfg.Server.HTTPAddr, router, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, logger)
	}

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
