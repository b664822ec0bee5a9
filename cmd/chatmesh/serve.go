package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/internal/server"
	"github.com/hupe1980/chatmesh/model"
)

var (
	serveAddr   string
	accessLog   bool
	watchConfig bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat API",
	Long: `Starts the HTTP API:
  POST   /chat                      stream a turn as server-sent events
  POST   /chat/call                 direct model call
  GET    /chat/sessions/:thread_id  fetch a session
  DELETE /chat/sessions/:thread_id  delete a session
  GET    /chat/models               list models of a provider
  POST   /chat/models/update        replace the model list of a provider`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	serveCmd.Flags().BoolVar(&accessLog, "access-log", false, "log every request")
	serveCmd.Flags().BoolVar(&watchConfig, "watch", false, "reload model lists when the config file changes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mesh, closer, err := buildMesh(ctx)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if watchConfig && configPath != "" {
		if _, err := config.Watch(configPath, func(c *config.AppConfig, err error) {
			reloadModels(mesh.Models(), c, err)
		}); err != nil {
			return err
		}
	}

	srv := server.New(mesh, func(o *server.Options) {
		o.Logger = logger
		o.AccessLog = accessLog
	})

	addr := cfg.Server.Address
	if serveAddr != "" {
		addr = serveAddr
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func reloadModels(reg *model.Registry, c *config.AppConfig, err error) {
	if err != nil {
		logger.Warn("Ignoring invalid config revision", "error", err)
		return
	}
	if len(c.Model.Models) == 0 {
		return
	}
	names, err := reg.SetModels(c.Model.Provider, c.Model.Models)
	if err != nil {
		logger.Warn("Model list reload failed", "provider", c.Model.Provider, "error", err)
		return
	}
	logger.Info("Model list reloaded", "provider", c.Model.Provider, "models", names)
}
