package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"overwatch/internal/application"
	"overwatch/internal/config"
	"overwatch/pkg/log"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	configPath := flag.String("config", "overwatch.config.yaml", "Path to configuration file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Overwatch orchestration agent version: %s\n", version)
		os.Exit(0)
	}

	if *showHelp {
		fmt.Println("Overwatch orchestration agent")
		fmt.Println("Usage: overwatch [options]")
		fmt.Println("Options:")
		fmt.Println("  --version  Show version information")
		fmt.Println("  --help     Show help information")
		fmt.Println("  --config   Path to configuration file (default: overwatch.config.yaml)")
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", *configPath, err)
	}
	log.InitLog(cfg.LogLevel)
	log.Info("Configuration loaded", "path", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("Received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()

	runner, err := application.NewRunner(ctx, cfg, *configPath)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil {
		log.Fatalf("Runner failed: %v", err)
	}

	<-ctx.Done()
	log.Info("Context canceled, shutting down")
}
