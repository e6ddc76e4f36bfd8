// Package search runs global searches, optionally debounced for keystroke input.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/MarcoPoloResearchLab/pks/internal/debounce"
	"github.com/MarcoPoloResearchLab/pks/internal/serviceerr"
	"go.uber.org/zap"
)

var errMissingClient = errors.New("search: api client is required")

const (
	opNew      = "search.new"
	opSearch   = "search.search"
	opAdvanced = "search.advanced"
)

// ServiceError is returned by every store operation; Code reports operation.reason.
type ServiceError = serviceerr.Error

var newServiceError = serviceerr.New

type Client interface {
	Search(ctx context.Context, query api.SearchQuery) (api.SearchResult, error)
	Advanced(ctx context.Context, query api.AdvancedSearch) (api.SearchResult, error)
}

type Config struct {
	Client Client
	Delay  time.Duration
	Logger *zap.Logger
}

type Searcher struct {
	client    Client
	debouncer *debounce.Debouncer[api.SearchResult]
	logger    *zap.Logger
}

func New(cfg Config) (*Searcher, error) {
	if cfg.Client == nil {
		return nil, newServiceError(opNew, "missing_client", errMissingClient)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		client:    cfg.Client,
		debouncer: debounce.New[api.SearchResult](cfg.Delay),
		logger:    logger,
	}, nil
}

// Search trims the keywords; a blank query returns an empty result without a request.
func (s *Searcher) Search(ctx context.Context, query api.SearchQuery) (api.SearchResult, error) {
	query.Q = strings.TrimSpace(query.Q)
	if query.Q == "" {
		return api.SearchResult{}, nil
	}
	if query.Type == "" {
		query.Type = api.SearchAll
	}
	result, err := s.client.Search(ctx, query)
	if err != nil {
		s.logger.Debug("search failed",
			zap.String("operation", opSearch),
			zap.String("query", query.Q),
			zap.Error(err))
		return api.SearchResult{}, err
	}
	return result, nil
}

// Debounced is Search behind the debouncer. Calls replaced by a newer one return debounce.ErrSuperseded.
func (s *Searcher) Debounced(ctx context.Context, query api.SearchQuery) (api.SearchResult, error) {
	return s.debouncer.Do(ctx, func(ctx context.Context) (api.SearchResult, error) {
		return s.Search(ctx, query)
	})
}

func (s *Searcher) Advanced(ctx context.Context, query api.AdvancedSearch) (api.SearchResult, error) {
	query.Keywords = strings.TrimSpace(query.Keywords)
	result, err := s.client.Advanced(ctx, query)
	if err != nil {
		s.logger.Debug("advanced search failed",
			zap.String("operation", opAdvanced),
			zap.Error(err))
		return api.SearchResult{}, err
	}
	return result, nil
}
