package cards

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/MarcoPoloResearchLab/pks/internal/events"
	"github.com/MarcoPoloResearchLab/pks/internal/transport"
)

type fakeClient struct {
	mu          sync.Mutex
	queries     []api.CardQuery
	page        api.CardPage
	listErr     error
	card        api.Card
	writeErr    error
	deleted     []int64
	batchResult api.BatchDeleteResult
	batches     [][]int64
}

func (f *fakeClient) List(_ context.Context, query api.CardQuery) (api.CardPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.page, f.listErr
}

func (f *fakeClient) Get(_ context.Context, id int64) (api.Card, error) {
	card := f.card
	card.ID = id
	return card, f.writeErr
}

func (f *fakeClient) Create(context.Context, api.CardInput) (api.Card, error) {
	return f.card, f.writeErr
}

func (f *fakeClient) Update(_ context.Context, id int64, patch api.CardPatch) (api.Card, error) {
	card := f.card
	card.ID = id
	if patch.Title != nil {
		card.Title = *patch.Title
	}
	return card, f.writeErr
}

func (f *fakeClient) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return f.writeErr
}

func (f *fakeClient) BatchDelete(_ context.Context, ids []int64) (api.BatchDeleteResult, error) {
	f.batches = append(f.batches, ids)
	return f.batchResult, f.writeErr
}

func (f *fakeClient) BatchTag(_ context.Context, cardIDs, _ []int64) (api.BatchTagResult, error) {
	return api.BatchTagResult{AffectedCount: len(cardIDs)}, f.writeErr
}

func (f *fakeClient) lastQuery(t *testing.T) api.CardQuery {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		t.Fatalf("no list request issued")
	}
	return f.queries[len(f.queries)-1]
}

func pageOf(first int64, count, total, page int) api.CardPage {
	items := make([]api.Card, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, api.Card{ID: first + int64(i), Title: "card", CardType: api.CardTypeNote})
	}
	return api.CardPage{Items: items, Total: total, Page: page, PageSize: count}
}

func newTestStore(t *testing.T, client *fakeClient) *Store {
	t.Helper()
	store, err := NewStore(Config{Client: client})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store
}

func TestFetchReplacesResidentPage(t *testing.T) {
	client := &fakeClient{page: pageOf(1, 20, 57, 1)}
	store := newTestStore(t, client)

	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(store.Cards()) != 20 || store.Pagination().Total != 57 || store.Pagination().CurrentPage != 1 {
		t.Fatalf("unexpected state %#v", store.Snapshot().Pagination)
	}
	query := client.lastQuery(t)
	if query.Page != 1 || query.PageSize != 20 || query.SortBy != api.SortByCreatedAt || query.Order != api.OrderDesc {
		t.Fatalf("unexpected query %#v", query)
	}
	if query.TagID != nil || query.IsPinned != nil || query.CardType != "" || query.Search != "" {
		t.Fatalf("unset filter fields must be omitted, got %#v", query)
	}
	if store.Pagination().TotalPages() != 3 {
		t.Fatalf("expected 3 pages")
	}
}

func TestFetchCallerOverridesWin(t *testing.T) {
	client := &fakeClient{page: pageOf(1, 1, 1, 1)}
	store := newTestStore(t, client)
	store.SetFilter(WithTagID(4), WithCardType(api.CardTypeCode))

	if _, err := store.Fetch(context.Background(), WithoutTag(), WithSort(api.SortByViewCount, api.OrderAsc)); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	query := client.lastQuery(t)
	if query.TagID != nil || query.CardType != api.CardTypeCode || query.SortBy != api.SortByViewCount || query.Order != api.OrderAsc {
		t.Fatalf("unexpected overridden query %#v", query)
	}
	if filter := store.Filter(); filter.TagID == nil || *filter.TagID != 4 || filter.SortBy != api.SortByCreatedAt {
		t.Fatalf("overrides must not leak into the active filter, got %#v", filter)
	}

	if _, err := store.ChangePage(context.Background(), 2); err != nil {
		t.Fatalf("change page failed: %v", err)
	}
	if query := client.lastQuery(t); query.TagID == nil || *query.TagID != 4 || query.Page != 2 {
		t.Fatalf("page changes must keep the active filter, got %#v", query)
	}
}

func TestFetchPageOverridesApplyToOneRequest(t *testing.T) {
	client := &fakeClient{page: pageOf(41, 10, 120, 3)}
	store := newTestStore(t, client)

	if _, err := store.Fetch(context.Background(), WithPage(3), WithPageSize(50)); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if query := client.lastQuery(t); query.Page != 3 || query.PageSize != 50 {
		t.Fatalf("expected page 3 of size 50, got %#v", query)
	}
	state := store.Pagination()
	if state.CurrentPage != 3 || state.PageSize != 20 || state.Total != 120 {
		t.Fatalf("unexpected pagination %#v", state)
	}

	client.page = pageOf(1, 10, 120, 1)
	store.SetFilter(WithPage(7), WithPageSize(5))
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if query := client.lastQuery(t); query.Page != 1 || query.PageSize != 20 {
		t.Fatalf("page overrides must not be stored by SetFilter, got %#v", query)
	}
}

func TestFetchErrorLeavesStateAndPropagates(t *testing.T) {
	client := &fakeClient{page: pageOf(1, 5, 5, 1)}
	store := newTestStore(t, client)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	client.listErr = &transport.Error{Kind: transport.KindServer, Message: "internal error"}
	if _, err := store.Fetch(context.Background()); !errors.Is(err, transport.ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if len(store.Cards()) != 5 || store.Pagination().Total != 5 || store.Pagination().Loading {
		t.Fatalf("failed fetch must not change the resident page")
	}
}

func TestCreatePrependsAndIncrementsTotal(t *testing.T) {
	client := &fakeClient{page: pageOf(1, 20, 57, 1)}
	store := newTestStore(t, client)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	client.card = api.Card{ID: 101, Title: "new"}
	if _, err := store.Create(context.Background(), api.CardInput{Title: "new", Content: "body"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	cards := store.Cards()
	if cards[0].ID != 101 || len(cards) != 21 || store.Pagination().Total != 58 {
		t.Fatalf("unexpected state after create: first=%d len=%d total=%d", cards[0].ID, len(cards), store.Pagination().Total)
	}
	if len(client.queries) != 1 {
		t.Fatalf("create must not re-fetch")
	}
}

func TestCreateFailureDoesNotMutate(t *testing.T) {
	client := &fakeClient{page: pageOf(1, 2, 2, 1)}
	store := newTestStore(t, client)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	client.writeErr = &transport.Error{Kind: transport.KindValidation, Message: "validation failed"}
	if _, err := store.Create(context.Background(), api.CardInput{Title: "x", Content: "y"}); !errors.Is(err, transport.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.Cards()) != 2 || store.Pagination().Total != 2 {
		t.Fatalf("failed create must leave the store untouched")
	}
}

func TestUpdateReplacesResidentAndCurrent(t *testing.T) {
	client := &fakeClient{page: pageOf(1, 3, 3, 1)}
	store := newTestStore(t, client)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if _, err := store.FetchDetail(context.Background(), 2); err != nil {
		t.Fatalf("fetch detail failed: %v", err)
	}

	title := "renamed"
	if _, err := store.Update(context.Background(), 2, api.CardPatch{Title: &title}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if store.Cards()[1].Title != "renamed" {
		t.Fatalf("expected in-place replacement")
	}
	if current, ok := store.Current(); !ok || current.Title != "renamed" {
		t.Fatalf("expected current card to be replaced")
	}

	before := store.Cards()
	if _, err := store.Update(context.Background(), 99, api.CardPatch{Title: &title}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	after := store.Cards()
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Title != after[i].Title {
			t.Fatalf("update of a non-resident card must not change the list")
		}
	}
}

func TestRemoveDropsCardAndSelection(t *testing.T) {
	client := &fakeClient{page: pageOf(1, 3, 3, 1)}
	store := newTestStore(t, client)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if _, err := store.FetchDetail(context.Background(), 3); err != nil {
		t.Fatalf("fetch detail failed: %v", err)
	}
	if err := store.Remove(context.Background(), 3); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(store.Cards()) != 2 || store.Pagination().Total != 2 {
		t.Fatalf("expected card removed and total decremented")
	}
	if _, ok := store.Current(); ok {
		t.Fatalf("expected selection cleared")
	}
}

func TestBatchRemoveDecrementsByRequestedCount(t *testing.T) {
	client := &fakeClient{page: api.CardPage{Items: []api.Card{{ID: 1}, {ID: 7}}, Total: 10, Page: 1}, batchResult: api.BatchDeleteResult{DeletedCount: 3}}
	store := newTestStore(t, client)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	deleted, err := store.BatchRemove(context.Background(), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("batch remove failed: %v", err)
	}
	cards := store.Cards()
	if len(cards) != 1 || cards[0].ID != 7 {
		t.Fatalf("expected only card 1 removed, got %#v", cards)
	}
	if store.Pagination().Total != 7 || deleted != 3 {
		t.Fatalf("expected total 7 and deleted 3, got %d and %d", store.Pagination().Total, deleted)
	}
	if len(client.batches) != 1 || len(client.batches[0]) != 3 {
		t.Fatalf("expected a single request with all ids")
	}

	if _, err := store.BatchRemove(context.Background(), []int64{4, 5, 6, 8, 9, 10, 11, 12}); err != nil {
		t.Fatalf("batch remove failed: %v", err)
	}
	if store.Pagination().Total != 0 {
		t.Fatalf("expected total floored at zero")
	}
}

func TestSetFilterResetsPageWithoutFetching(t *testing.T) {
	client := &fakeClient{page: pageOf(1, 20, 100, 0)}
	store := newTestStore(t, client)
	filters := [][]FilterOption{
		{WithCardType(api.CardTypeLink)},
		{WithPinned(true), WithSearch("go")},
		{WithoutPinned()},
		{},
	}
	for _, opts := range filters {
		store.Seek(4)
		store.SetFilter(opts...)
		if store.Pagination().CurrentPage != 1 {
			t.Fatalf("expected page 1 after SetFilter")
		}
	}
	store.Seek(3)
	store.ResetFilter()
	if store.Pagination().CurrentPage != 1 || store.Filter() != DefaultFilter() {
		t.Fatalf("expected defaults after ResetFilter")
	}
	if len(client.queries) != 0 {
		t.Fatalf("filter changes must not fetch")
	}
}

func TestDerivedViews(t *testing.T) {
	client := &fakeClient{page: api.CardPage{Items: []api.Card{
		{ID: 1, IsPinned: true, CardType: api.CardTypeNote, Tags: []api.TagRef{{ID: 5}}},
		{ID: 2, CardType: api.CardTypeLink},
		{ID: 3, CardType: api.CardTypeNote, Tags: []api.TagRef{{ID: 5}, {ID: 6}}},
	}, Total: 3, Page: 1}}
	store := newTestStore(t, client)
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(store.Pinned()) != 1 || len(store.Regular()) != 2 {
		t.Fatalf("unexpected pinned split")
	}
	if len(store.ByType(api.CardTypeNote)) != 2 || len(store.ByTag(5)) != 2 || len(store.ByTag(6)) != 1 {
		t.Fatalf("unexpected derived views")
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	dispatcher := events.NewDispatcher()
	stream, cleanup := dispatcher.Subscribe(context.Background(), events.TopicCards)
	defer cleanup()

	client := &fakeClient{page: pageOf(1, 1, 1, 1), card: api.Card{ID: 9}}
	store, err := NewStore(Config{Client: client, Events: dispatcher})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	if _, err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if _, err := store.Create(context.Background(), api.CardInput{Title: "t", Content: "c"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	first, second := <-stream, <-stream
	if first.Action != ActionFetched || second.Action != ActionCreated || second.IDs[0] != 9 {
		t.Fatalf("unexpected events %#v %#v", first, second)
	}
}

func TestNewStoreRequiresClient(t *testing.T) {
	_, err := NewStore(Config{})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "cards.new.missing_client" {
		t.Fatalf("expected missing client error, got %v", err)
	}
}
