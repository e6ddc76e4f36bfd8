package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/MarcoPoloResearchLab/pks/internal/transport"
)

type LinksClient struct {
	requester Requester
}

func NewLinksClient(requester Requester) *LinksClient {
	return &LinksClient{requester: requester}
}

func linksPath(cardID int64) string {
	return resourcePath(pathCards, cardID) + "/links"
}

func (c *LinksClient) Create(ctx context.Context, cardID int64, input LinkInput) (LinkedCard, error) {
	var linked LinkedCard
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: linksPath(cardID), Body: input}, &linked)
	return linked, err
}

// List returns both directions; an empty linkType keeps every type.
func (c *LinksClient) List(ctx context.Context, cardID int64, linkType LinkType) (CardLinks, error) {
	var query url.Values
	if linkType != "" {
		query = url.Values{"link_type": {string(linkType)}}
	}
	var links CardLinks
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodGet, Path: linksPath(cardID), Query: query}, &links)
	return links, err
}

func (c *LinksClient) Delete(ctx context.Context, cardID, targetCardID int64) error {
	path := fmt.Sprintf("%s/%d", linksPath(cardID), targetCardID)
	return c.requester.Do(ctx, transport.Request{Method: http.MethodDelete, Path: path}, nil)
}
