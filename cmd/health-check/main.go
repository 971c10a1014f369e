// Package main provides a standalone health check command for Fooder
// This command can be used for Docker health checks, monitoring scripts, and debugging
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/fooder/fooder/internal/infrastructure/container"
	"github.com/fooder/fooder/pkg/healthcheck"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
	exitCodeError   = 2
)

// Config holds command-line configuration
type Config struct {
	URL            string
	Timeout        time.Duration
	Verbose        bool
	OutputFormat   string
	ExpectedStatus string
	RetryCount     int
	RetryDelay     time.Duration
	ConfigPath     string
	LocalCheck     bool
}

func main() {
	cfg := parseFlags()

	if cfg.LocalCheck {
		os.Exit(runLocalHealthCheck(cfg))
	}
	os.Exit(runRemoteHealthCheck(cfg))
}

// parseFlags parses command-line flags
func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.URL, "url", "", "Health check endpoint URL (e.g., http://localhost:5000/health)")
	flag.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "Request timeout")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	flag.StringVar(&cfg.OutputFormat, "format", "text", "Output format: text, json, compact")
	flag.StringVar(&cfg.ExpectedStatus, "expect", "healthy", "Expected status: healthy, degraded")
	flag.IntVar(&cfg.RetryCount, "retry", 0, "Number of retries on failure")
	flag.DurationVar(&cfg.RetryDelay, "retry-delay", time.Second, "Delay between retries")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Configuration file path")
	flag.BoolVar(&cfg.LocalCheck, "local", false, "Check the backends directly instead of a running server")

	flag.Parse()

	if cfg.URL == "" {
		cfg.URL = os.Getenv("HEALTH_CHECK_URL")
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:5000/health"
	}

	return cfg
}

// runRemoteHealthCheck asks a running server for its health
func runRemoteHealthCheck(cfg Config) int {
	checker := healthcheck.NewServerChecker("fooder", cfg.URL, cfg.Timeout)

	var result healthcheck.Check
	for attempt := 0; attempt <= cfg.RetryCount; attempt++ {
		if attempt > 0 {
			if cfg.Verbose {
				fmt.Printf("Retrying in %v... (attempt %d/%d)\n", cfg.RetryDelay, attempt, cfg.RetryCount)
			}
			time.Sleep(cfg.RetryDelay)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		result = checker.Check(ctx)
		cancel()

		if result.Status != healthcheck.StatusUnhealthy {
			break
		}
		if cfg.Verbose {
			fmt.Printf("Check failed: %s\n", result.Message)
		}
	}

	return outputResult(healthcheck.Response{
		Status:        result.Status,
		Timestamp:     result.LastChecked,
		Checks:        []healthcheck.Check{result},
		TotalDuration: result.Duration,
	}, cfg)
}

// runLocalHealthCheck builds the backends from configuration and checks them in-process
func runLocalHealthCheck(cfg Config) int {
	var health *healthcheck.HealthCheck
	app := fx.New(
		fx.NopLogger,
		fx.Supply(container.ConfigPath(cfg.ConfigPath)),
		container.CoreModule,
		fx.Populate(&health),
	)
	if err := app.Err(); err != nil {
		fmt.Printf("Failed to initialise components: %v\n", err)
		return exitCodeError
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	defer func() { _ = app.Stop(ctx) }()

	return outputResult(health.Check(ctx), cfg)
}

// outputResult prints the result and maps its status to an exit code
func outputResult(result healthcheck.Response, cfg Config) int {
	switch cfg.OutputFormat {
	case "json":
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	case "compact":
		data, _ := json.Marshal(result)
		fmt.Println(string(data))
	default:
		outputText(result, cfg.Verbose)
	}

	expected := healthcheck.Status(cfg.ExpectedStatus)
	switch {
	case result.Status == expected:
		return exitCodeSuccess
	case result.Status == healthcheck.StatusUnhealthy:
		return exitCodeFailure
	case result.Status == healthcheck.StatusDegraded && expected == healthcheck.StatusHealthy:
		return exitCodeFailure
	}
	return exitCodeSuccess
}

// outputText outputs the result in text format
func outputText(r healthcheck.Response, verbose bool) {
	fmt.Printf("Status: %s\n", r.Status)
	if r.Version != "" {
		fmt.Printf("Version: %s\n", r.Version)
	}
	fmt.Printf("Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Printf("Duration: %dms\n", r.TotalDuration.Milliseconds())

	if verbose && len(r.Checks) > 0 {
		fmt.Println("\nChecks:")
		for _, check := range r.Checks {
			fmt.Printf("  %s: %s", check.Name, check.Status)
			if check.Message != "" {
				fmt.Printf(" (%s)", check.Message)
			}
			fmt.Printf(" [%dms]\n", check.Duration.Milliseconds())
		}
	}
}
