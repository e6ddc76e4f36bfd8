package fakeapi

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const metricsNamespace = "pks_fake"

// Config assembles a complete fake server.
type Config struct {
	SigningSecret string
	TokenTTL      time.Duration
	BcryptCost    int
	Clock         func() time.Time
	Logger        *zap.Logger
}

// New builds the handler with a fresh backend and its own metrics registry.
func New(cfg Config) (http.Handler, error) {
	tokens, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte(cfg.SigningSecret),
		Issuer:        DefaultIssuer,
		TokenTTL:      cfg.TokenTTL,
		Clock:         cfg.Clock,
	})
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	return NewHTTPHandler(Dependencies{
		Tokens:   tokens,
		Backend:  NewBackend(BackendConfig{Clock: cfg.Clock, BcryptCost: cfg.BcryptCost}),
		Metrics:  metrics.NewCollector(registry, metricsNamespace),
		Gatherer: registry,
		Logger:   cfg.Logger,
	})
}
