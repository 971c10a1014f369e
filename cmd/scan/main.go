// Package main scans a single image file and prints the detected foods and recipes as JSON
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"github.com/fooder/fooder/internal/infrastructure/container"
	"github.com/fooder/fooder/internal/ports/inbound"
)

func main() {
	imagePath := flag.String("image", "", "Image file to scan")
	limit := flag.Int("limit", 0, "Maximum number of recipes; 0 uses the configured default")
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: scan -image <path> [-limit n] [-config file]")
		os.Exit(2)
	}

	if err := run(*imagePath, *limit, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
}

func run(imagePath string, limit int, configPath string) error {
	var scans inbound.ScanService
	app := fx.New(
		fx.NopLogger,
		fx.Supply(container.ConfigPath(configPath)),
		container.CoreModule,
		fx.Populate(&scans),
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()

	result, err := scans.ScanFile(ctx, imagePath, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
