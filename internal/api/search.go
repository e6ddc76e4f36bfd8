package api

import (
	"context"
	"net/http"

	"github.com/MarcoPoloResearchLab/pks/internal/transport"
)

const (
	pathSearch         = "/search"
	pathSearchAdvanced = "/search/advanced"
)

type SearchClient struct {
	requester Requester
}

func NewSearchClient(requester Requester) *SearchClient {
	return &SearchClient{requester: requester}
}

func (c *SearchClient) Search(ctx context.Context, query SearchQuery) (SearchResult, error) {
	var result SearchResult
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodGet, Path: pathSearch, Query: query.Values()}, &result)
	return result, err
}

func (c *SearchClient) Advanced(ctx context.Context, query AdvancedSearch) (SearchResult, error) {
	var result SearchResult
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: pathSearchAdvanced, Body: query}, &result)
	return result, err
}
