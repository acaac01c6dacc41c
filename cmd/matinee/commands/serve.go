package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/matinee/ai/provider"
	"github.com/teranos/matinee/ai/tracker"
	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/server"
)

// ServeCmd starts the matinee recommendation server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the matinee HTTP/WebSocket server",
	Long: `Launch the recommendation server. It serves synchronous JSON endpoints,
SSE progress streams, and a WebSocket channel for interactive clients, and
reloads AI model settings and allowed origins when the managed config file
changes.`,
	RunE: runServe,
}

var servePort int

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config; 0 = use config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Default to 1 (Info) for the server so startup and run summaries show
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
		if err := logger.InitializeWithVerbosity(false, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	port := servePort
	if port == 0 {
		port = config.GetServerPort()
	}

	srv := server.New(server.Options{
		Config:   a.cfg,
		Pipeline: a.pipe,
		Profiles: a.profiles,
		Scraper:  a.scraper,
		Cache:    a.cache,
		Usage:    a.usage,
	})

	// Hot reload: origin list and AI client follow the managed config file.
	// No managed file yet means nothing to watch; runs fine without it.
	if path := config.GetManagedConfigPath(); path != "" {
		if watcher, werr := config.NewConfigWatcher(path); werr != nil {
			logger.Debugw("Config hot reload disabled", logger.FieldError, werr)
		} else {
			watcher.OnReload(func(next *config.Config) error {
				srv.SetAllowedOrigins(next.GetServerAllowedOrigins())
				client, cerr := provider.NewAIClient(next, logger.ComponentLogger("ai"))
				if cerr != nil {
					return errors.Wrap(cerr, "failed to rebuild AI client")
				}
				a.ai.Swap(tracker.Wrap(client, a.usage, string(provider.ActiveProvider(next))))
				logger.Infow("AI client refreshed from config",
					"provider", string(provider.ActiveProvider(next)))
				return nil
			})
			watcher.Start()
			config.SetGlobalWatcher(watcher)
			defer watcher.Stop()
		}
	}

	printStartupBanner(verbosity, port, string(provider.ActiveProvider(a.cfg)))

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	// Wait for shutdown signal (Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		// Server failed to start or stopped unexpectedly
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		// First Ctrl+C - graceful shutdown
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			// Second Ctrl+C - force immediate exit
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
