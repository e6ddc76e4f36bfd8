package cards

import (
	"fmt"
	"strconv"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
)

const (
	keyCardType = "card_type"
	keyTagID    = "tag_id"
	keyIsPinned = "is_pinned"
	keySearch   = "search"
	keySortBy   = "sort_by"
	keyOrder    = "order"
	keyPage     = "page"
	keyPageSize = "page_size"
)

// Filter narrows the card list. Zero and nil fields are left out of the query.
type Filter struct {
	CardType api.CardType
	TagID    *int64
	IsPinned *bool
	Search   string
	SortBy   api.SortField
	Order    api.SortOrder

	// page and pageSize override pagination for a single Fetch and are never stored.
	page     int
	pageSize int
}

func DefaultFilter() Filter {
	return Filter{SortBy: api.SortByCreatedAt, Order: api.OrderDesc}
}

type FilterOption func(*Filter)

func WithCardType(cardType api.CardType) FilterOption {
	return func(f *Filter) { f.CardType = cardType }
}

func WithTagID(tagID int64) FilterOption {
	return func(f *Filter) { f.TagID = &tagID }
}

func WithoutTag() FilterOption {
	return func(f *Filter) { f.TagID = nil }
}

func WithPinned(pinned bool) FilterOption {
	return func(f *Filter) { f.IsPinned = &pinned }
}

func WithoutPinned() FilterOption {
	return func(f *Filter) { f.IsPinned = nil }
}

func WithSearch(text string) FilterOption {
	return func(f *Filter) { f.Search = text }
}

func WithSort(field api.SortField, order api.SortOrder) FilterOption {
	return func(f *Filter) {
		f.SortBy = field
		f.Order = order
	}
}

// WithPage requests page for one Fetch; the store's current page follows the response.
func WithPage(page int) FilterOption {
	return func(f *Filter) { f.page = page }
}

// WithPageSize requests size items for one Fetch without changing the store's page size.
func WithPageSize(size int) FilterOption {
	return func(f *Filter) { f.pageSize = size }
}

func (f Filter) with(opts ...FilterOption) Filter {
	if f.TagID != nil {
		tagID := *f.TagID
		f.TagID = &tagID
	}
	if f.IsPinned != nil {
		pinned := *f.IsPinned
		f.IsPinned = &pinned
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}
	return f
}

// params lists every filter key; "" marks an unset field so overrides can clear it.
func (f Filter) params() map[string]string {
	params := map[string]string{
		keyCardType: string(f.CardType),
		keyTagID:    "",
		keyIsPinned: "",
		keySearch:   f.Search,
		keySortBy:   string(f.SortBy),
		keyOrder:    string(f.Order),
	}
	if f.TagID != nil {
		params[keyTagID] = strconv.FormatInt(*f.TagID, 10)
	}
	if f.IsPinned != nil {
		params[keyIsPinned] = strconv.FormatBool(*f.IsPinned)
	}
	if f.page > 0 {
		params[keyPage] = strconv.Itoa(f.page)
	}
	if f.pageSize > 0 {
		params[keyPageSize] = strconv.Itoa(f.pageSize)
	}
	return params
}

func (f Filter) override(params map[string]string) (Filter, error) {
	f = f.with()
	for key, value := range params {
		switch key {
		case keyCardType:
			f.CardType = api.CardType(value)
		case keyTagID:
			if value == "" {
				f.TagID = nil
				continue
			}
			tagID, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return f, fmt.Errorf("tag_id %q: %w", value, err)
			}
			f.TagID = &tagID
		case keyIsPinned:
			if value == "" {
				f.IsPinned = nil
				continue
			}
			pinned, err := strconv.ParseBool(value)
			if err != nil {
				return f, fmt.Errorf("is_pinned %q: %w", value, err)
			}
			f.IsPinned = &pinned
		case keySearch:
			f.Search = value
		case keySortBy:
			f.SortBy = api.SortField(value)
		case keyOrder:
			f.Order = api.SortOrder(value)
		case keyPage, keyPageSize:
			number, err := strconv.Atoi(value)
			if err != nil || number < 1 {
				return f, fmt.Errorf("%s %q must be a positive integer", key, value)
			}
			if key == keyPage {
				f.page = number
			} else {
				f.pageSize = number
			}
		}
	}
	return f, nil
}

func (f Filter) query(page, pageSize int) api.CardQuery {
	if f.page > 0 {
		page = f.page
	}
	if f.pageSize > 0 {
		pageSize = f.pageSize
	}
	return api.CardQuery{
		Page:     page,
		PageSize: pageSize,
		CardType: f.CardType,
		TagID:    f.TagID,
		IsPinned: f.IsPinned,
		Search:   f.Search,
		SortBy:   f.SortBy,
		Order:    f.Order,
	}
}
