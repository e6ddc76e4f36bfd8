package api

import (
	"context"
	"net/http"

	"github.com/MarcoPoloResearchLab/pks/internal/transport"
)

const (
	pathKanban          = "/kanban"
	pathKanbanColumns   = "/kanban/columns"
	pathKanbanMove      = "/kanban/cards/move"
	pathKanbanBatchMove = "/kanban/cards/batch-move"
)

type KanbanClient struct {
	requester Requester
}

func NewKanbanClient(requester Requester) *KanbanClient {
	return &KanbanClient{requester: requester}
}

func (c *KanbanClient) Board(ctx context.Context) (Board, error) {
	var board Board
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodGet, Path: pathKanban}, &board)
	return board, err
}

func (c *KanbanClient) CreateColumn(ctx context.Context, input ColumnInput) (Column, error) {
	var column Column
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: pathKanbanColumns, Body: input}, &column)
	return column, err
}

func (c *KanbanClient) UpdateColumn(ctx context.Context, id int64, patch ColumnPatch) (Column, error) {
	var column Column
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPut, Path: resourcePath(pathKanbanColumns, id), Body: patch}, &column)
	return column, err
}

func (c *KanbanClient) DeleteColumn(ctx context.Context, id int64) error {
	return c.requester.Do(ctx, transport.Request{Method: http.MethodDelete, Path: resourcePath(pathKanbanColumns, id)}, nil)
}

func (c *KanbanClient) MoveCard(ctx context.Context, move MoveCard) (MoveCard, error) {
	var placed MoveCard
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: pathKanbanMove, Body: move}, &placed)
	return placed, err
}

func (c *KanbanClient) BatchMove(ctx context.Context, move BatchMove) (BatchMoveResult, error) {
	var result BatchMoveResult
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: pathKanbanBatchMove, Body: move}, &result)
	return result, err
}
