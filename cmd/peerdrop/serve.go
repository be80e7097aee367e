package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avelinot/peerdrop"
	"github.com/avelinot/peerdrop/blobstore"
	"github.com/avelinot/peerdrop/config"
	pdhttp "github.com/avelinot/peerdrop/http"
	"github.com/avelinot/peerdrop/identity"
	"github.com/avelinot/peerdrop/node"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway node",
	Long: `Start the peerdrop node: bring up the peer endpoint, blob store,
and protocol router, then serve the HTTP gateway.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 3000, "HTTP server port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Startup is strictly ordered; any failure below aborts before the
	// HTTP server accepts a single request. Tickets issued without a
	// live peer endpoint would be unreachable and misleading.
	secret, err := identity.LoadOrCreate(cfg.Identity.KeyFile)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	slog.Info("identity ready", "node_id", secret.Public().String(), "key_file", cfg.Identity.KeyFile)

	ep, err := node.Bind(secret, cfg.Node.ListenAddr)
	if err != nil {
		return fmt.Errorf("bind endpoint: %w", err)
	}

	if err = os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
		_ = ep.Close()
		return fmt.Errorf("create storage directory: %w", err)
	}

	root, err := os.OpenRoot(cfg.Storage.Path)
	if err != nil {
		_ = ep.Close()
		return fmt.Errorf("open storage root: %w", err)
	}
	defer func() { _ = root.Close() }()

	store, err := blobstore.Open(ctx, root, cfg.Storage.IndexDSN)
	if err != nil {
		_ = ep.Close()
		return fmt.Errorf("open blob store: %w", err)
	}

	running, err := node.NewRouter(ep).
		Attach(node.BlobALPN, node.NewBlobServer(store)).
		Start(ctx)
	if err != nil {
		_ = store.Close()
		_ = ep.Close()
		return fmt.Errorf("start router: %w", err)
	}

	gw := peerdrop.NewGateway(store, running.NodeAddr())

	handlerConfig := pdhttp.HandlerConfig{
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}
	handler := pdhttp.NewHandler(&handlerConfig, gw)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "node_id", running.NodeAddr().ID)
	serveErr := server.ListenAndServe()

	// Mirror of startup: router first, then store. Each step runs even
	// if an earlier one reported an error.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := running.Shutdown(shutdownCtx); err != nil {
		slog.Error("node shutdown error", "err", err)
	}
	if err := store.Close(); err != nil {
		slog.Error("blob store close error", "err", err)
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", serveErr)
	}

	return nil
}
