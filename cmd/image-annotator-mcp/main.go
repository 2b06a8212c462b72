package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ironsheep/image-annotator-mcp/internal/config"
	"github.com/ironsheep/image-annotator-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	fs := flag.NewFlagSet("image-annotator-mcp", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("IMAGE_ANNOTATOR_CONFIG"), "path to a TOML config file")
	labelsPath := fs.String("labels", "", "label configuration (YAML); overrides the config file")
	logLevel := fs.String("log-level", os.Getenv("IMAGE_ANNOTATOR_LOG_LEVEL"), "debug, info, warn or error")
	showVersion := fs.Bool("version", false, "print version information")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "image-annotator-mcp - MCP server for annotating images with regions")
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Usage: image-annotator-mcp [options]")
		fmt.Fprintln(fs.Output())
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Environment variables:")
		fmt.Fprintln(fs.Output(), "  IMAGE_ANNOTATOR_CONFIG       Config file path")
		fmt.Fprintln(fs.Output(), "  IMAGE_ANNOTATOR_LOG_LEVEL    Log level")
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "This server communicates via MCP protocol over stdin/stdout.")
	}
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("image-annotator-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	if err := run(*configPath, *labelsPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "image-annotator-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, labelsPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if labelsPath != "" {
		cfg.Labels.File = labelsPath
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	// stdout is for MCP protocol
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger.Debug("starting", "version", Version, "built", BuildTime, "commit", GitCommit, "config", configPath)

	srv, err := server.New(cfg, server.Deps{Logger: logger})
	if err != nil {
		return err
	}
	defer srv.Close()
	return srv.Run()
}
