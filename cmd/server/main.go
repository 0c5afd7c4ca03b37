package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/queuejam/backend/internal/config"
	"github.com/queuejam/backend/internal/logging"
	"github.com/queuejam/backend/internal/router"
)

func main() {
	// .env is optional; real environment variables take precedence
	godotenv.Load()

	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	// Load configuration
	cfg := config.Load()

	// Create router (owns session store and real-time hub)
	r := router.New(cfg)

	// Start server
	addr := ":" + cfg.Port
	slog.Info("starting server", slog.String("addr", addr))

	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
