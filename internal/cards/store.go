// Package cards holds the resident page of cards and the active filter.
package cards

import (
	"context"
	"errors"
	"sync"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/MarcoPoloResearchLab/pks/internal/events"
	"github.com/MarcoPoloResearchLab/pks/internal/pagination"
	"github.com/MarcoPoloResearchLab/pks/internal/serviceerr"
	"go.uber.org/zap"
)

var errMissingClient = errors.New("cards: api client is required")

const (
	opNew         = "cards.new"
	opFetch       = "cards.fetch"
	opBatchRemove = "cards.batch_remove"
)

const (
	ActionFetched  = "fetched"
	ActionSelected = "selected"
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionRemoved  = "removed"
	ActionTagged   = "tagged"
	ActionFiltered = "filtered"
)

// ServiceError is returned by every store operation; Code reports operation.reason.
type ServiceError = serviceerr.Error

var newServiceError = serviceerr.New

// Client is the remote card resource.
type Client interface {
	List(ctx context.Context, query api.CardQuery) (api.CardPage, error)
	Get(ctx context.Context, id int64) (api.Card, error)
	Create(ctx context.Context, input api.CardInput) (api.Card, error)
	Update(ctx context.Context, id int64, patch api.CardPatch) (api.Card, error)
	Delete(ctx context.Context, id int64) error
	BatchDelete(ctx context.Context, ids []int64) (api.BatchDeleteResult, error)
	BatchTag(ctx context.Context, cardIDs, tagIDs []int64) (api.BatchTagResult, error)
}

type Config struct {
	Client   Client
	PageSize int
	Events   events.Publisher
	Logger   *zap.Logger
}

// Snapshot is a copy of the store state.
type Snapshot struct {
	Cards      []api.Card
	Current    *api.Card
	Filter     Filter
	Pagination pagination.State
}

// Store mutates only after the server confirms a write; there is no rollback path.
type Store struct {
	client Client
	events events.Publisher
	logger *zap.Logger
	pager  *pagination.Controller[api.Card]

	mu      sync.RWMutex
	filter  Filter
	cards   []api.Card
	current *api.Card
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, newServiceError(opNew, "missing_client", errMissingClient)
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &Store{
		client: cfg.Client,
		events: publisher,
		logger: logger,
		filter: DefaultFilter(),
		cards:  []api.Card{},
	}
	store.pager = pagination.New(store.fetchPage, pagination.Options[api.Card]{
		PageSize: cfg.PageSize,
		Apply:    store.applyPage,
	})
	return store, nil
}

// Fetch requests the current page with the active filter; opts override it for this request only.
// WithPage and WithPageSize replace the pagination parameters of this request.
func (s *Store) Fetch(ctx context.Context, opts ...FilterOption) (pagination.Page[api.Card], error) {
	var extra map[string]string
	if len(opts) > 0 {
		extra = s.Filter().with(opts...).params()
	}
	return s.pager.FetchData(ctx, extra)
}

// ChangePage moves to page and fetches it.
func (s *Store) ChangePage(ctx context.Context, page int) (pagination.Page[api.Card], error) {
	return s.pager.ChangePage(ctx, page)
}

// ChangePageSize returns to the first page and fetches it with size.
func (s *Store) ChangePageSize(ctx context.Context, size int) (pagination.Page[api.Card], error) {
	return s.pager.ChangePageSize(ctx, size)
}

// Seek moves to page without fetching.
func (s *Store) Seek(page int) {
	s.pager.Seek(page)
}

func (s *Store) fetchPage(ctx context.Context, params pagination.Params) (pagination.Page[api.Card], error) {
	filter, err := s.Filter().override(params.Extra)
	if err != nil {
		return pagination.Page[api.Card]{}, newServiceError(opFetch, "invalid_filter", err)
	}
	page, err := s.client.List(ctx, filter.query(params.Page, params.PageSize))
	if err != nil {
		return pagination.Page[api.Card]{}, err
	}
	return pagination.Page[api.Card]{Items: page.Items, Total: page.Total, Page: page.Page}, nil
}

func (s *Store) applyPage(page pagination.Page[api.Card]) {
	items := make([]api.Card, len(page.Items))
	copy(items, page.Items)
	s.mu.Lock()
	s.cards = items
	s.mu.Unlock()
	s.publish(ActionFetched, nil)
}

// FetchDetail selects a single card independently of the resident page.
func (s *Store) FetchDetail(ctx context.Context, id int64) (api.Card, error) {
	card, err := s.client.Get(ctx, id)
	if err != nil {
		return api.Card{}, err
	}
	s.mu.Lock()
	s.current = &card
	s.mu.Unlock()
	s.publish(ActionSelected, []int64{card.ID})
	return card, nil
}

// Create prepends the confirmed card without re-fetching the page.
func (s *Store) Create(ctx context.Context, input api.CardInput) (api.Card, error) {
	card, err := s.client.Create(ctx, input)
	if err != nil {
		return api.Card{}, err
	}
	s.mu.Lock()
	s.cards = append([]api.Card{card}, s.cards...)
	s.mu.Unlock()
	s.pager.AdjustTotal(1)
	s.publish(ActionCreated, []int64{card.ID})
	return card, nil
}

// Update replaces the resident copy and the selection when they match id.
func (s *Store) Update(ctx context.Context, id int64, patch api.CardPatch) (api.Card, error) {
	card, err := s.client.Update(ctx, id, patch)
	if err != nil {
		return api.Card{}, err
	}
	s.mu.Lock()
	for i := range s.cards {
		if s.cards[i].ID == id {
			s.cards[i] = card
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		updated := card
		s.current = &updated
	}
	s.mu.Unlock()
	s.publish(ActionUpdated, []int64{id})
	return card, nil
}

func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.client.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	s.cards = without(s.cards, map[int64]struct{}{id: {}})
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	s.mu.Unlock()
	s.pager.AdjustTotal(-1)
	s.publish(ActionRemoved, []int64{id})
	return nil
}

// BatchRemove deletes ids in one request and lowers the total by len(ids), the server's
// count being authoritative only on the next fetch. It returns the server's deleted count.
func (s *Store) BatchRemove(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := s.client.BatchDelete(ctx, ids)
	if err != nil {
		return 0, err
	}
	removed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		removed[id] = struct{}{}
	}
	s.mu.Lock()
	s.cards = without(s.cards, removed)
	if s.current != nil {
		if _, ok := removed[s.current.ID]; ok {
			s.current = nil
		}
	}
	s.mu.Unlock()
	s.pager.AdjustTotal(-len(ids))
	if result.DeletedCount != len(ids) {
		s.logger.Debug("batch delete count differs from request",
			zap.String("operation", opBatchRemove),
			zap.Int("requested", len(ids)),
			zap.Int("deleted", result.DeletedCount))
	}
	s.publish(ActionRemoved, ids)
	return result.DeletedCount, nil
}

// BatchTag attaches tagIDs to cardIDs. Tags on resident cards refresh on the next fetch.
func (s *Store) BatchTag(ctx context.Context, cardIDs, tagIDs []int64) (int, error) {
	result, err := s.client.BatchTag(ctx, cardIDs, tagIDs)
	if err != nil {
		return 0, err
	}
	s.publish(ActionTagged, cardIDs)
	return result.AffectedCount, nil
}

// SetFilter merges opts into the active filter and returns to the first page.
func (s *Store) SetFilter(opts ...FilterOption) {
	s.mu.Lock()
	s.filter = s.filter.with(opts...)
	s.filter.page, s.filter.pageSize = 0, 0
	s.mu.Unlock()
	s.pager.Seek(1)
	s.publish(ActionFiltered, nil)
}

// ResetFilter restores the default filter and returns to the first page.
func (s *Store) ResetFilter() {
	s.mu.Lock()
	s.filter = DefaultFilter()
	s.mu.Unlock()
	s.pager.Seek(1)
	s.publish(ActionFiltered, nil)
}

func (s *Store) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter.with()
}

func (s *Store) Cards() []api.Card {
	return s.selectCards(func(api.Card) bool { return true })
}

func (s *Store) Current() (api.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return api.Card{}, false
	}
	return *s.current, true
}

func (s *Store) Pinned() []api.Card {
	return s.selectCards(func(card api.Card) bool { return card.IsPinned })
}

func (s *Store) Regular() []api.Card {
	return s.selectCards(func(card api.Card) bool { return !card.IsPinned })
}

func (s *Store) ByType(cardType api.CardType) []api.Card {
	return s.selectCards(func(card api.Card) bool { return card.CardType == cardType })
}

func (s *Store) ByTag(tagID int64) []api.Card {
	return s.selectCards(func(card api.Card) bool { return card.HasTag(tagID) })
}

func (s *Store) Pagination() pagination.State {
	return s.pager.State()
}

func (s *Store) Snapshot() Snapshot {
	state := s.pager.State()
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := Snapshot{
		Cards:      append([]api.Card(nil), s.cards...),
		Filter:     s.filter.with(),
		Pagination: state,
	}
	if s.current != nil {
		current := *s.current
		snapshot.Current = &current
	}
	return snapshot
}

func (s *Store) selectCards(keep func(api.Card) bool) []api.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	selected := make([]api.Card, 0, len(s.cards))
	for _, card := range s.cards {
		if keep(card) {
			selected = append(selected, card)
		}
	}
	return selected
}

func (s *Store) publish(action string, ids []int64) {
	s.events.Publish(events.Event{Topic: events.TopicCards, Action: action, IDs: ids})
}

func without(cards []api.Card, ids map[int64]struct{}) []api.Card {
	kept := make([]api.Card, 0, len(cards))
	for _, card := range cards {
		if _, ok := ids[card.ID]; !ok {
			kept = append(kept, card)
		}
	}
	return kept
}
