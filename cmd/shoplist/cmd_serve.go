package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/shared-lists/internal/auth"
	"github.com/nhle/shared-lists/internal/server"
)

func newServeCmd(st *cliState) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the shopping-list HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = st.cfg.Server.Addr
			}

			rt, err := st.runtime(cmd)
			if err != nil {
				return err
			}

			verifier, err := auth.NewTokenVerifier(ctx, jwksURL(st.cfg), st.cfg.Auth.InsecureSkipVerify)
			if err != nil {
				return err
			}
			if st.cfg.Auth.InsecureSkipVerify {
				st.log.Warn().Msg("token signatures are not verified; do not use in production")
			}

			srv := server.New(rt.storeFor, verifier,
				server.WithLogger(st.log.With().Str("component", "http").Logger()),
				server.WithBodyLimit(st.cfg.Server.BodyLimit),
			)

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				st.log.Info().Str("addr", addr).Str("backend", st.cfg.Store.Backend).Msg("HTTP server listening")
				if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
					errCh <- serveErr
				}
			}()

			select {
			case <-ctx.Done():
				st.log.Info().Msg("received shutdown signal")
			case serveErr := <-errCh:
				return serveErr
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return err
			}
			st.log.Info().Msg("server stopped gracefully")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	return cmd
}
