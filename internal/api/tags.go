package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/pks/internal/transport"
)

const pathTags = "/tags"

type TagsClient struct {
	requester Requester
}

func NewTagsClient(requester Requester) *TagsClient {
	return &TagsClient{requester: requester}
}

// List accepts both a bare array and an {"items": [...]} object.
func (c *TagsClient) List(ctx context.Context, query TagQuery) ([]Tag, error) {
	var raw json.RawMessage
	if err := c.requester.Do(ctx, transport.Request{Method: http.MethodGet, Path: pathTags, Query: query.Values()}, &raw); err != nil {
		return nil, err
	}
	return decodeTagList(raw)
}

func decodeTagList(raw json.RawMessage) ([]Tag, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Tag{}, nil
	}
	if trimmed[0] == '[' {
		var tags []Tag
		if err := json.Unmarshal(trimmed, &tags); err != nil {
			return nil, fmt.Errorf("api: decode tag list: %w", err)
		}
		return tags, nil
	}
	var wrapped struct {
		Items []Tag `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("api: decode tag list: %w", err)
	}
	if wrapped.Items == nil {
		return []Tag{}, nil
	}
	return wrapped.Items, nil
}

func (c *TagsClient) Get(ctx context.Context, id int64) (Tag, error) {
	var tag Tag
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodGet, Path: resourcePath(pathTags, id)}, &tag)
	return tag, err
}

func (c *TagsClient) Create(ctx context.Context, input TagInput) (Tag, error) {
	var tag Tag
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: pathTags, Body: input}, &tag)
	return tag, err
}

func (c *TagsClient) Update(ctx context.Context, id int64, patch TagPatch) (Tag, error) {
	var tag Tag
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPut, Path: resourcePath(pathTags, id), Body: patch}, &tag)
	return tag, err
}

func (c *TagsClient) Delete(ctx context.Context, id int64) error {
	return c.requester.Do(ctx, transport.Request{Method: http.MethodDelete, Path: resourcePath(pathTags, id)}, nil)
}
