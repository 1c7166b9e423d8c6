// main package for the speech-gateway
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/speech-gateway/internal/cache"
	"github.com/book-expert/speech-gateway/internal/config"
	"github.com/book-expert/speech-gateway/internal/core"
	"github.com/book-expert/speech-gateway/internal/deepgram"
	"github.com/book-expert/speech-gateway/internal/gemini"
	"github.com/book-expert/speech-gateway/internal/notify"
	"github.com/book-expert/speech-gateway/internal/server"
	"github.com/book-expert/speech-gateway/internal/store"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "speech-gateway.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

// serve wires the collaborators together and runs the HTTP server until a
// termination signal arrives.
func serve(cfg *config.Config, log *logger.Logger) error {
	artifactStore, natsConnection, err := buildStore(cfg)
	if err != nil {
		return err
	}

	if natsConnection != nil {
		defer natsConnection.Close()
	}

	notifier := buildNotifier(cfg, natsConnection)

	ttsTimeout := time.Duration(cfg.TTS.TimeoutSeconds) * time.Second
	transcribeTimeout := time.Duration(cfg.Transcribe.TimeoutSeconds) * time.Second

	synthesizer := deepgram.NewClient(cfg.DeepgramAPIKey, ttsTimeout)
	transcriber := gemini.NewClient(cfg.GeminiAPIKey, cfg.Transcribe.Model, transcribeTimeout)

	cacheManager := cache.New(artifactStore, synthesizer, notifier, cfg.TTS.Workers, ttsTimeout, log)

	gatewayServer := server.New(
		cacheManager,
		artifactStore,
		transcriber,
		cfg.TTS.DefaultModel,
		cfg.Transcribe.AllowedMediaTypes,
		transcribeTimeout,
		log,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           gatewayServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	log.System("Speech gateway listening on %s (storage backend: %s)", httpServer.Addr, cfg.Storage.Backend)

	select {
	case err = <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.System("Shutdown signal received, draining connections.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	return nil
}

// buildStore selects the artifact store backend. The NATS connection is
// returned so the notifier can share it; it is nil for the filesystem backend
// unless event publishing requires one.
func buildStore(cfg *config.Config) (core.ArtifactStore, *nats.Conn, error) {
	switch cfg.Storage.Backend {
	case config.BackendNATS:
		natsConnection, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS at '%s': %w", cfg.NATS.URL, err)
		}

		jetstreamContext, err := natsConnection.JetStream()
		if err != nil {
			natsConnection.Close()

			return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		natsStore, err := store.NewNatsStore(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
		if err != nil {
			natsConnection.Close()

			return nil, nil, err
		}

		return natsStore, natsConnection, nil
	default:
		fsStore, err := store.NewFSStore(cfg.Server.StaticDir)
		if err != nil {
			return nil, nil, err
		}

		var natsConnection *nats.Conn

		if cfg.NATS.URL != "" && cfg.NATS.AudioChunkCreatedSubject != "" {
			natsConnection, err = nats.Connect(cfg.NATS.URL)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect to NATS at '%s': %w", cfg.NATS.URL, err)
			}
		}

		return fsStore, natsConnection, nil
	}
}

// buildNotifier returns a NATS notifier when a connection and subject are
// configured, or nil when event publishing is disabled.
func buildNotifier(cfg *config.Config, natsConnection *nats.Conn) core.Notifier {
	if natsConnection == nil || cfg.NATS.AudioChunkCreatedSubject == "" {
		return nil
	}

	return notify.NewNatsNotifier(natsConnection, cfg.NATS.AudioChunkCreatedSubject)
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
