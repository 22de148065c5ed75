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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dispatchline/internal/db"
	"dispatchline/internal/engine"
	"dispatchline/internal/migrate"
	"dispatchline/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	var insecureDev bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dispatch HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, true)
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") {
				basePath = cfg.Server.BasePath
			}
			if !cmd.Flags().Changed("insecure-dev") {
				insecureDev = cfg.Server.InsecureDev
			}
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			if secret == "" && !insecureDev {
				return fmt.Errorf("CAD_JWT_SECRET (or server.jwt_secret) is required unless --insecure-dev is set")
			}

			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.MigrateContext(cmd.Context(), conn)
			if err != nil {
				return err
			}
			logger.WithField("applied", applied).Debug("migrations complete")

			hub := server.NewHub(logger)
			e := engine.New(conn).WithPublisher(hub)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, InsecureDev: insecureDev},
				Hub:      hub,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			server.StartWebhookDispatcher(ctx, e, cfg.Webhooks, logger)

			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			logger.WithField("addr", addr).WithField("base_path", basePath).Info("serving dispatch API (OpenAPI at /openapi.json, docs at /docs)")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	cmd.Flags().BoolVar(&insecureDev, "insecure-dev", false, "treat unauthenticated requests as a dispatcher")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}
