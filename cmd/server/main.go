// Package main is the entry point for the watchme server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (environment variables, optionally seeded from .env)
// 2. Create the logger
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// Each executable gets its own directory with its own main.go.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/watchme/internal/config"
	"github.com/sakif/watchme/internal/logging"
	"github.com/sakif/watchme/internal/server"
)

func main() {
	if err := run(); err != nil {
		// The logger may not exist yet, so the last word goes to stderr.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// === 1. READ CONFIGURATION ===
	// Values in the real environment win over the .env file.
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	// === 2. SET UP LOGGING ===
	// stdout always, plus a rotating file when LOG_FILE is set.
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
