// Package app assembles the client: transport, session, resource clients and stores.
package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/MarcoPoloResearchLab/pks/internal/cards"
	"github.com/MarcoPoloResearchLab/pks/internal/events"
	"github.com/MarcoPoloResearchLab/pks/internal/metrics"
	"github.com/MarcoPoloResearchLab/pks/internal/search"
	"github.com/MarcoPoloResearchLab/pks/internal/session"
	"github.com/MarcoPoloResearchLab/pks/internal/storage"
	"github.com/MarcoPoloResearchLab/pks/internal/tags"
	"github.com/MarcoPoloResearchLab/pks/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var errMissingStorage = errors.New("app: storage is required")

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	HTTPClient     *http.Client
	RateLimitRPS   float64
	RateLimitBurst int
	PageSize       int
	SearchDelay    time.Duration
	Storage        storage.KeyValueStore
	Navigator      session.Navigator
	Notifier       transport.Notifier
	Metrics        metrics.Recorder
	Logger         *zap.Logger
	Clock          func() time.Time
}

// App is the wired client. Every store publishes on Events.
type App struct {
	Events    *events.Dispatcher
	Transport *transport.Client
	Session   *session.Store
	Auth      *api.AuthClient
	Cards     *cards.Store
	Tags      *tags.Store
	Kanban    *api.KanbanClient
	Links     *api.LinksClient
	Search    *search.Searcher
}

func New(cfg Config) (*App, error) {
	if cfg.Storage == nil {
		return nil, errMissingStorage
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := events.NewDispatcher()

	sessions, err := session.NewStore(session.Config{
		Storage:   cfg.Storage,
		Navigator: cfg.Navigator,
		Events:    dispatcher,
		Logger:    logger.Named("session"),
		Clock:     cfg.Clock,
	})
	if err != nil {
		return nil, err
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = transport.NewLogNotifier(logger.Named("notices"))
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	pipeline, err := transport.NewClient(transport.Config{
		BaseURL:    cfg.BaseURL,
		HTTPClient: cfg.HTTPClient,
		Timeout:    cfg.Timeout,
		Session:    sessions,
		Notifier:   transport.Notifiers(notifier, transport.NewEventNotifier(dispatcher)),
		Limiter:    limiter,
		Metrics:    cfg.Metrics,
		Logger:     logger.Named("transport"),
		Clock:      cfg.Clock,
	})
	if err != nil {
		return nil, err
	}

	auth := api.NewAuthClient(pipeline)
	sessions.UseAuthenticator(auth)

	cardStore, err := cards.NewStore(cards.Config{
		Client:   api.NewCardsClient(pipeline),
		PageSize: cfg.PageSize,
		Events:   dispatcher,
		Logger:   logger.Named("cards"),
	})
	if err != nil {
		return nil, err
	}
	tagStore, err := tags.NewStore(tags.Config{
		Client: api.NewTagsClient(pipeline),
		Events: dispatcher,
		Logger: logger.Named("tags"),
	})
	if err != nil {
		return nil, err
	}
	searcher, err := search.New(search.Config{
		Client: api.NewSearchClient(pipeline),
		Delay:  cfg.SearchDelay,
		Logger: logger.Named("search"),
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Events:    dispatcher,
		Transport: pipeline,
		Session:   sessions,
		Auth:      auth,
		Cards:     cardStore,
		Tags:      tagStore,
		Kanban:    api.NewKanbanClient(pipeline),
		Links:     api.NewLinksClient(pipeline),
		Search:    searcher,
	}, nil
}
