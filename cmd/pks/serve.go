package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/fakeapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveFakeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "serve-fake",
		Short:       "Run an in-memory API server for local use and tests",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationStandalone: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serveFake(cmd.Context())
		},
	}
	cmd.Flags().String("address", "", "Listen address")
	cmd.Flags().String("signing-secret", "", "HS256 secret for issued tokens")
	cmd.Flags().Duration("token-ttl", 0, "Access token lifetime")
	for key, flag := range map[string]string{
		"fake.address":        "address",
		"fake.signing_secret": "signing-secret",
		"fake.token_ttl":      "token-ttl",
	} {
		if err := c.viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func (c *cli) serveFake(ctx context.Context) error {
	if err := c.config.ValidateFake(); err != nil {
		return err
	}
	logger := c.logger.Named("fakeapi")
	handler, err := fakeapi.New(fakeapi.Config{
		SigningSecret: c.config.FakeSigningSecret,
		TokenTTL:      c.config.FakeTokenTTL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.config.FakeAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", c.config.FakeAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
