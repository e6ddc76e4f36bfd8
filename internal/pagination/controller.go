// Package pagination tracks page, page size and total for any paged fetch.
package pagination

import (
	"context"
	"errors"
	"sync"
)

const DefaultPageSize = 20

// PageSizeOptions are the sizes offered to the user.
var PageSizeOptions = []int{10, 20, 50, 100}

var (
	ErrInvalidPage     = errors.New("pagination: page must be at least 1")
	ErrInvalidPageSize = errors.New("pagination: page size must be positive")
)

// Params is what a FetchFunc receives. Extra carries caller-specific query fields.
type Params struct {
	Page     int
	PageSize int
	Extra    map[string]string
}

// Page is one response. A zero Page leaves the current page as is.
type Page[T any] struct {
	Items []T
	Total int
	Page  int
}

type FetchFunc[T any] func(ctx context.Context, params Params) (Page[T], error)

// State is a snapshot of the controller.
type State struct {
	CurrentPage int
	PageSize    int
	Total       int
	Loading     bool
}

// TotalPages is ceil(Total/PageSize), and 0 when there is nothing to show.
func (s State) TotalPages() int {
	if s.Total <= 0 || s.PageSize <= 0 {
		return 0
	}
	return (s.Total + s.PageSize - 1) / s.PageSize
}

type Options[T any] struct {
	PageSize int
	// Apply sees every response that is not older than one already applied.
	Apply func(Page[T])
}

// Controller is safe for concurrent use. Responses resolving out of issue order are
// returned to their callers but never applied over a newer one.
type Controller[T any] struct {
	fetch           FetchFunc[T]
	apply           func(Page[T])
	defaultPageSize int

	// applyMu orders the apply hook with the generation check.
	applyMu sync.Mutex

	mu          sync.Mutex
	currentPage int
	pageSize    int
	total       int
	inFlight    int
	issued      uint64
	applied     uint64
}

func New[T any](fetch FetchFunc[T], opts Options[T]) *Controller[T] {
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Controller[T]{
		fetch:           fetch,
		apply:           opts.Apply,
		defaultPageSize: size,
		currentPage:     1,
		pageSize:        size,
	}
}

// FetchData requests the current page merged with extra.
func (c *Controller[T]) FetchData(ctx context.Context, extra map[string]string) (Page[T], error) {
	c.mu.Lock()
	c.issued++
	generation := c.issued
	c.inFlight++
	params := Params{Page: c.currentPage, PageSize: c.pageSize, Extra: cloneExtra(extra)}
	c.mu.Unlock()

	page, err := c.fetch(ctx, params)

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	c.inFlight--
	if err != nil {
		c.mu.Unlock()
		return page, err
	}
	fresh := generation > c.applied
	if fresh {
		c.applied = generation
		c.total = page.Total
		if page.Page > 0 {
			c.currentPage = page.Page
		}
	}
	c.mu.Unlock()

	if fresh && c.apply != nil {
		c.apply(page)
	}
	return page, nil
}

// ChangePage moves to page and fetches it.
func (c *Controller[T]) ChangePage(ctx context.Context, page int) (Page[T], error) {
	if page < 1 {
		return Page[T]{}, ErrInvalidPage
	}
	c.Seek(page)
	return c.FetchData(ctx, nil)
}

// ChangePageSize resets to the first page and fetches once with the new size.
func (c *Controller[T]) ChangePageSize(ctx context.Context, size int) (Page[T], error) {
	if size <= 0 {
		return Page[T]{}, ErrInvalidPageSize
	}
	c.mu.Lock()
	c.pageSize = size
	c.currentPage = 1
	c.mu.Unlock()
	return c.FetchData(ctx, nil)
}

// Reset restores the first page, the default size and a zero total without fetching.
func (c *Controller[T]) Reset() {
	c.mu.Lock()
	c.currentPage = 1
	c.pageSize = c.defaultPageSize
	c.total = 0
	c.mu.Unlock()
}

// Seek moves to page without fetching.
func (c *Controller[T]) Seek(page int) {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.currentPage = page
	c.mu.Unlock()
}

// AdjustTotal adds delta to the total, flooring at zero.
func (c *Controller[T]) AdjustTotal(delta int) {
	c.mu.Lock()
	c.total += delta
	if c.total < 0 {
		c.total = 0
	}
	c.mu.Unlock()
}

func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		CurrentPage: c.currentPage,
		PageSize:    c.pageSize,
		Total:       c.total,
		Loading:     c.inFlight > 0,
	}
}

func (c *Controller[T]) TotalPages() int {
	return c.State().TotalPages()
}

func cloneExtra(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	cloned := make(map[string]string, len(extra))
	for key, value := range extra {
		cloned[key] = value
	}
	return cloned
}
