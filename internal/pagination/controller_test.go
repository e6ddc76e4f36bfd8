package pagination

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingFetch struct {
	mu     sync.Mutex
	calls  []Params
	total  int
	echo   bool
	err    error
	gate   chan struct{}
	inside chan struct{}
}

func (r *recordingFetch) fetch(_ context.Context, params Params) (Page[int], error) {
	r.mu.Lock()
	r.calls = append(r.calls, params)
	r.mu.Unlock()
	if r.inside != nil {
		r.inside <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	if r.err != nil {
		return Page[int]{}, r.err
	}
	page := Page[int]{Items: make([]int, params.PageSize), Total: r.total}
	if r.echo {
		page.Page = params.Page
	}
	return page, nil
}

func TestFetchDataMergesExtraAndUpdatesTotal(t *testing.T) {
	source := &recordingFetch{total: 57, echo: true}
	controller := New(source.fetch, Options[int]{})

	if _, err := controller.FetchData(context.Background(), map[string]string{"sort_by": "created_at"}); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	call := source.calls[0]
	if call.Page != 1 || call.PageSize != DefaultPageSize || call.Extra["sort_by"] != "created_at" {
		t.Fatalf("unexpected params %#v", call)
	}
	state := controller.State()
	if state.Total != 57 || state.CurrentPage != 1 || state.Loading {
		t.Fatalf("unexpected state %#v", state)
	}
	if controller.TotalPages() != 3 {
		t.Fatalf("expected 3 pages, got %d", controller.TotalPages())
	}
}

func TestChangePageSizeResetsPageAndFetchesOnce(t *testing.T) {
	for _, size := range PageSizeOptions {
		source := &recordingFetch{total: 200}
		controller := New(source.fetch, Options[int]{})
		controller.Seek(4)

		if _, err := controller.ChangePageSize(context.Background(), size); err != nil {
			t.Fatalf("change page size failed: %v", err)
		}
		if len(source.calls) != 1 || source.calls[0].PageSize != size || source.calls[0].Page != 1 {
			t.Fatalf("expected one fetch with size %d on page 1, got %#v", size, source.calls)
		}
		if state := controller.State(); state.CurrentPage != 1 || state.PageSize != size {
			t.Fatalf("unexpected state %#v", state)
		}
	}
}

func TestChangePageFetchesRequestedPage(t *testing.T) {
	source := &recordingFetch{total: 45}
	controller := New(source.fetch, Options[int]{PageSize: 10})
	if _, err := controller.ChangePage(context.Background(), 3); err != nil {
		t.Fatalf("change page failed: %v", err)
	}
	if source.calls[0].Page != 3 || controller.State().CurrentPage != 3 {
		t.Fatalf("expected page 3, got %#v", source.calls[0])
	}
	if _, err := controller.ChangePage(context.Background(), 0); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("expected invalid page error, got %v", err)
	}
	if _, err := controller.ChangePageSize(context.Background(), 0); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected invalid page size error, got %v", err)
	}
}

func TestFetchDataClearsLoadingOnFailure(t *testing.T) {
	failure := errors.New("boom")
	source := &recordingFetch{err: failure}
	controller := New(source.fetch, Options[int]{})
	if _, err := controller.FetchData(context.Background(), nil); !errors.Is(err, failure) {
		t.Fatalf("expected failure to propagate, got %v", err)
	}
	if controller.State().Loading {
		t.Fatalf("loading must be cleared after failure")
	}
}

func TestLoadingWhileInFlight(t *testing.T) {
	source := &recordingFetch{gate: make(chan struct{}), inside: make(chan struct{})}
	controller := New(source.fetch, Options[int]{})
	done := make(chan error)
	go func() {
		_, err := controller.FetchData(context.Background(), nil)
		done <- err
	}()
	<-source.inside
	if !controller.State().Loading {
		t.Fatalf("expected loading while a fetch is in flight")
	}
	close(source.gate)
	if err := <-done; err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if controller.State().Loading {
		t.Fatalf("expected loading to clear")
	}
}

func TestResetRestoresDefaultsWithoutFetching(t *testing.T) {
	source := &recordingFetch{total: 90}
	controller := New(source.fetch, Options[int]{PageSize: 50})
	if _, err := controller.ChangePageSize(context.Background(), 10); err != nil {
		t.Fatalf("change page size failed: %v", err)
	}
	controller.Seek(5)
	controller.Reset()

	state := controller.State()
	if state.CurrentPage != 1 || state.PageSize != 50 || state.Total != 0 {
		t.Fatalf("unexpected state after reset %#v", state)
	}
	if len(source.calls) != 1 {
		t.Fatalf("reset must not fetch")
	}
}

func TestStaleResponseIsNotApplied(t *testing.T) {
	var applied []int
	slow := make(chan struct{})
	started := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	fetch := func(_ context.Context, params Params) (Page[int], error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-slow
			return Page[int]{Total: 10, Page: params.Page}, nil
		}
		return Page[int]{Total: 99, Page: params.Page}, nil
	}
	controller := New(fetch, Options[int]{Apply: func(page Page[int]) { applied = append(applied, page.Total) }})

	done := make(chan Page[int])
	go func() {
		page, _ := controller.FetchData(context.Background(), nil)
		done <- page
	}()
	<-started

	if _, err := controller.ChangePage(context.Background(), 2); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	close(slow)
	stale := <-done

	if stale.Total != 10 {
		t.Fatalf("stale response must still reach its caller, got %#v", stale)
	}
	state := controller.State()
	if state.Total != 99 || state.CurrentPage != 2 {
		t.Fatalf("stale response overwrote newer state %#v", state)
	}
	if len(applied) != 1 || applied[0] != 99 {
		t.Fatalf("expected only the newer response to be applied, got %v", applied)
	}
}

func TestAdjustTotalFloorsAtZero(t *testing.T) {
	controller := New((&recordingFetch{total: 2}).fetch, Options[int]{})
	if _, err := controller.FetchData(context.Background(), nil); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	controller.AdjustTotal(-5)
	if controller.State().Total != 0 {
		t.Fatalf("expected total floored at zero")
	}
	controller.AdjustTotal(1)
	if controller.TotalPages() != 1 {
		t.Fatalf("expected one page")
	}
}
