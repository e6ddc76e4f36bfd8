package api

import (
	"context"
	"net/http"

	"github.com/MarcoPoloResearchLab/pks/internal/transport"
)

const (
	pathCards            = "/cards"
	pathCardsBatchDelete = "/cards/batch-delete"
	pathCardsBatchTag    = "/cards/batch-tag"
)

type batchDeleteRequest struct {
	CardIDs []int64 `json:"card_ids" validate:"required,min=1"`
}

type batchTagRequest struct {
	CardIDs []int64 `json:"card_ids" validate:"required,min=1"`
	TagIDs  []int64 `json:"tag_ids" validate:"required,min=1"`
}

type CardsClient struct {
	requester Requester
}

func NewCardsClient(requester Requester) *CardsClient {
	return &CardsClient{requester: requester}
}

func (c *CardsClient) List(ctx context.Context, query CardQuery) (CardPage, error) {
	var page CardPage
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodGet, Path: pathCards, Query: query.Values()}, &page)
	return page, err
}

func (c *CardsClient) Get(ctx context.Context, id int64) (Card, error) {
	var card Card
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodGet, Path: resourcePath(pathCards, id)}, &card)
	return card, err
}

func (c *CardsClient) Create(ctx context.Context, input CardInput) (Card, error) {
	var card Card
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: pathCards, Body: input}, &card)
	return card, err
}

func (c *CardsClient) Update(ctx context.Context, id int64, patch CardPatch) (Card, error) {
	var card Card
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPut, Path: resourcePath(pathCards, id), Body: patch}, &card)
	return card, err
}

func (c *CardsClient) Delete(ctx context.Context, id int64) error {
	return c.requester.Do(ctx, transport.Request{Method: http.MethodDelete, Path: resourcePath(pathCards, id)}, nil)
}

func (c *CardsClient) BatchDelete(ctx context.Context, ids []int64) (BatchDeleteResult, error) {
	var result BatchDeleteResult
	err := c.requester.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   pathCardsBatchDelete,
		Body:   batchDeleteRequest{CardIDs: ids},
	}, &result)
	return result, err
}

func (c *CardsClient) BatchTag(ctx context.Context, cardIDs, tagIDs []int64) (BatchTagResult, error) {
	var result BatchTagResult
	err := c.requester.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   pathCardsBatchTag,
		Body:   batchTagRequest{CardIDs: cardIDs, TagIDs: tagIDs},
	}, &result)
	return result, err
}
