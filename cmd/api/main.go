package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sms-ledger/internal/api/handlers"
	"github.com/dvloznov/sms-ledger/internal/api/middleware"
	"github.com/dvloznov/sms-ledger/internal/ingest"
	"github.com/dvloznov/sms-ledger/internal/logger"
	"github.com/dvloznov/sms-ledger/internal/notify"
	"github.com/dvloznov/sms-ledger/internal/settings"
	"github.com/dvloznov/sms-ledger/internal/sms"
	"github.com/dvloznov/sms-ledger/internal/store"
	"github.com/dvloznov/sms-ledger/internal/store/inmemory"
	"github.com/dvloznov/sms-ledger/internal/store/postgres"
)

func main() {
	var (
		port        = flag.String("port", "8080", "HTTP server port")
		storeKind   = flag.String("store", "memory", "Store backend: memory or postgres")
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (or set DATABASE_URL env)")
		msgTimeout  = flag.Duration("message-timeout", ingest.DefaultMessageTimeout, "Per-message ingestion deadline")
	)
	flag.Parse()

	log := logger.New("api")

	cfg, err := settings.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid settings")
	}
	log.Info().Stringer("settings", cfg).Msg("Settings loaded")

	ctx := context.Background()

	var st store.TransactionStore
	switch *storeKind {
	case "memory":
		st = inmemory.New(log)
	case "postgres":
		if *databaseURL == "" {
			log.Fatal().Msg("-database-url is required for the postgres store")
		}
		pg, err := postgres.New(ctx, *databaseURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open postgres store")
		}
		st = pg
	default:
		log.Fatal().Str("store", *storeKind).Msg("Unknown store backend")
	}
	defer st.Close()

	coordinator := ingest.New(log, sms.NewParser(log), st, notify.NewLogNotifier(log), cfg).
		WithTimeout(*msgTimeout)

	mux := http.NewServeMux()
	handlers.Routes(mux,
		handlers.NewMessagesHandler(coordinator, log),
		handlers.NewTransactionsHandler(st, coordinator, log),
		handlers.NewStreamHandler(st, log),
	)

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("store", *storeKind).Msg("Starting ledger API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
