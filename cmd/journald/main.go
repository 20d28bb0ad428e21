// Package main provides the trailbook companion daemon (journald). The
// capture shell talks to it over REST/WebSocket on localhost.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wayfound/trailbook/cmd/journald/handlers"
	"github.com/wayfound/trailbook/internal/connectivity"
	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/logging"
	"github.com/wayfound/trailbook/internal/models"
	"github.com/wayfound/trailbook/internal/remote"
	"github.com/wayfound/trailbook/internal/status"
	"github.com/wayfound/trailbook/internal/store"
	"github.com/wayfound/trailbook/internal/sync"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "journald",
		Short: "Offline journal capture and sync daemon",
		Long: `journald is the local companion engine of the trailbook journal.
It keeps entries captured offline in a durable on-device queue and drains
them to the remote journal store whenever connectivity allows.`,
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	flags := serveCmd.Flags()
	flags.Int("port", 8091, "localhost port to listen on")
	flags.String("data-dir", defaultDataDir(), "directory for the local store")
	flags.String("remote-url", "", "remote journal store base URL (overrides saved settings)")
	flags.String("remote-token", "", "remote API token (overrides saved settings)")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.String("log-file", "", "log file path (stderr when empty)")
	flags.Duration("retry-interval", 5*time.Minute, "background re-drain interval")
	flags.Bool("watch-network", true, "poll host interfaces for connectivity")

	viper.SetEnvPrefix("TRAILBOOK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(serveCmd)
	return rootCmd
}

// defaultDataDir resolves the per-user data directory.
func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "./data"
	}
	return base + "/trailbook"
}

// initLogging configures the global logger, rotating the file when one is
// configured.
func initLogging() {
	level := logging.ParseLevel(viper.GetString("log-level"))

	if logFile := viper.GetString("log-file"); logFile != "" {
		logging.Init(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		}, level)
		return
	}
	logging.Init(os.Stderr, level)
}

// machineID derives the key material for at-rest token encryption.
func machineID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "trailbook-default"
	}
	return hostname
}

// resolveRemote builds the remote client from flags or saved settings.
// Returns nil when no remote is configured yet; the daemon still serves
// capture and queue inspection, only drains are refused.
func resolveRemote(settings *store.SettingsStore) remote.Client {
	if url := viper.GetString("remote-url"); url != "" {
		return remote.NewHTTPClient(remote.Config{
			BaseURL: url,
			Token:   viper.GetString("remote-token"),
		})
	}

	config, err := settings.GetRemoteConfig()
	if err != nil {
		if !errors.Is(err, errors.ErrRemoteNotConfigured) {
			logging.Warn("Failed to load remote configuration",
				map[string]interface{}{"error": err.Error()})
		}
		return nil
	}
	return remote.NewHTTPClient(remote.Config{
		BaseURL: config.Endpoint,
		Token:   config.Token,
	})
}

// notConfigured refuses every delivery until a remote is configured.
// Captures still queue; each drain marks entries with a clear error the
// shell can surface as "set up your journal account".
type notConfigured struct{}

func (notConfigured) CreateEntry(ctx context.Context, _ *models.EntryPayload) (*remote.RemoteEntry, error) {
	return nil, errors.New(errors.ErrRemoteNotConfigured, "no remote journal store configured")
}

func (notConfigured) UploadMedia(ctx context.Context, _ string, _ *models.PendingMedia) error {
	return errors.New(errors.ErrRemoteNotConfigured, "no remote journal store configured")
}

func runServe() error {
	initLogging()

	dataDir := viper.GetString("data-dir")
	logging.Info("Starting journald",
		map[string]interface{}{"data_dir": dataDir, "port": viper.GetInt("port")})

	db, err := store.Open(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	migrator := store.NewMigrator(db.DB)
	if err := migrator.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	queue, err := store.NewQueueStore(db.DB)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer queue.Close()

	settings := store.NewSettingsStore(db.DB, machineID())

	// Resolved again at the start of every drain, so an endpoint saved or
	// changed through the settings API takes effect without a restart.
	clientProvider := func() remote.Client {
		if client := resolveRemote(settings); client != nil {
			return client
		}
		return notConfigured{}
	}
	if resolveRemote(settings) == nil {
		logging.Warn("No remote configured; captures queue locally until one is set", nil)
	}

	// The daemon starts offline; the shell or the watcher flips it online.
	monitor := connectivity.NewMonitor(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watcher *connectivity.Watcher
	if viper.GetBool("watch-network") {
		watcher = connectivity.NewWatcher(monitor, connectivity.InterfaceSignal{}, 10*time.Second)
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	orchestrator := sync.NewOrchestratorWithProvider(queue, clientProvider, monitor)
	facade := status.NewFacade(queue, orchestrator, monitor)
	defer facade.Close()
	facade.StartRetryLoop(ctx, viper.GetDuration("retry-interval"))

	hub := NewWSHub()
	monitor.Subscribe(func(online bool) {
		hub.BroadcastConnectivityChanged(online)
	})
	facade.Subscribe(func(s status.Snapshot) {
		hub.BroadcastQueueUpdated(s.PendingCount)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", viper.GetInt("port")),
		Handler: buildRouter(queue, facade, monitor, settings, hub),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// buildRouter wires the REST and WebSocket surface.
func buildRouter(queue *store.QueueStore, facade *status.Facade, monitor *connectivity.Monitor, settings *store.SettingsStore, hub *WSHub) http.Handler {
	entriesHandler := handlers.NewEntriesHandler(queue, facade)
	syncHandler := handlers.NewSyncHandler(facade, monitor)
	settingsHandler := handlers.NewSettingsHandler(settings)

	if hub != nil {
		entriesHandler.SetWebSocketHub(hub)
		syncHandler.SetWebSocketHub(hub)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", syncHandler.Health)

		r.Route("/queue", func(r chi.Router) {
			r.Post("/", entriesHandler.Create)
			r.Get("/", entriesHandler.List)
			r.Get("/count", entriesHandler.Count)
			r.Delete("/{id}", entriesHandler.Delete)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", syncHandler.Status)
			r.Post("/now", syncHandler.TriggerSync)
		})

		r.Put("/connectivity", syncHandler.SetConnectivity)

		r.Route("/settings/remote", func(r chi.Router) {
			r.Get("/", settingsHandler.GetRemote)
			r.Post("/", settingsHandler.SetRemote)
			r.Delete("/", settingsHandler.DeleteRemote)
		})
	})

	if hub != nil {
		r.Get("/ws", HandleWebSocket(hub))
	}

	return r
}
