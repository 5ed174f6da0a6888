package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gsbingo17/csv-to-salesforce/pkg/config"
	"github.com/gsbingo17/csv-to-salesforce/pkg/logger"
	"github.com/gsbingo17/csv-to-salesforce/pkg/migration"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "csv_to_salesforce_config.json", "Path to configuration file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	dryRun := flag.Bool("dry-run", false, "Resolve, validate, and assemble without loading any data")
	help := flag.Bool("help", false, "Display help information")
	flag.Parse()

	// Display help if requested
	if *help {
		displayUsage()
		os.Exit(0)
	}

	// Create logger
	log := logger.New()
	log.SetLevel(*logLevel)

	// Load configuration
	log.Info("Loading configuration...")
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.LogFile != "" {
		log.EnableFile(logger.FileOptions{Path: cfg.LogFile})
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Info("Received interrupt signal. Shutting down...")
		cancel()
		// Give some time for graceful shutdown
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	// Create migrator
	migrator := migration.NewMigrator(cfg, log)
	migrator.DryRun = *dryRun

	// Start the load
	startTime := time.Now()
	log.Infof("Starting CSV to Salesforce migration for object %s", cfg.Target.Object)

	result, err := migrator.Run(ctx)
	if err != nil {
		// Check if the error is due to context cancellation (Ctrl+C)
		if err == context.Canceled {
			log.Info("Process stopped due to user interrupt (Ctrl+C)")
			return
		}
		log.Fatalf("Error during migration process: %v", err)
	}

	// Log completion
	duration := time.Since(startTime)
	if *dryRun {
		log.Infof("Dry run completed in %.2f seconds: %d rows, %d mapped columns, %d cells would be skipped",
			duration.Seconds(), result.Total, len(result.Mapping.Mapped()), result.SkippedCells)
		return
	}

	log.Infof("Migration completed in %.2f seconds: %d succeeded, %d failed out of %d rows",
		duration.Seconds(), result.Succeeded, result.Failed, result.Total)
	for i, msg := range result.Errors {
		// Cap the error dump; full details belong in the log file
		if i >= 20 {
			log.Warnf("... and %d more record errors", len(result.Errors)-i)
			break
		}
		log.Warnf("Record error: %s", msg)
	}
}

// displayUsage displays usage information
func displayUsage() {
	fmt.Println("\nCSV to Salesforce Migration Tool")
	fmt.Println("================================")
	fmt.Println("Usage: migrate [options]")
	fmt.Println("Options:")
	fmt.Println("  -config string")
	fmt.Println("        Path to configuration file (default \"csv_to_salesforce_config.json\")")
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: debug, info, warn, error (default \"info\")")
	fmt.Println("  -dry-run")
	fmt.Println("        Resolve, validate, and assemble without loading any data")
	fmt.Println("  -help")
	fmt.Println("        Display this help information")
	fmt.Println("Examples:")
	fmt.Println("  migrate")
	fmt.Println("  migrate -config=custom_config.json -log-level=debug -dry-run")
}
