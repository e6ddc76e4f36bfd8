package api

import (
	"context"
	"net/http"

	"github.com/MarcoPoloResearchLab/pks/internal/transport"
)

const (
	pathRegister = "/auth/register"
	pathLogin    = "/auth/login"
	pathRefresh  = "/auth/refresh"
	pathMe       = "/auth/me"
	pathLogout   = "/auth/logout"
)

type AuthClient struct {
	requester Requester
}

func NewAuthClient(requester Requester) *AuthClient {
	return &AuthClient{requester: requester}
}

func (c *AuthClient) Register(ctx context.Context, registration Registration) (AuthResult, error) {
	var result AuthResult
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: pathRegister, Body: registration}, &result)
	return result, err
}

func (c *AuthClient) Login(ctx context.Context, credentials Credentials) (AuthResult, error) {
	var result AuthResult
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: pathLogin, Body: credentials}, &result)
	return result, err
}

func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	err := c.requester.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   pathRefresh,
		Body:   RefreshRequest{RefreshToken: refreshToken},
	}, &pair)
	return pair, err
}

func (c *AuthClient) Me(ctx context.Context) (User, error) {
	var user User
	err := c.requester.Do(ctx, transport.Request{Method: http.MethodGet, Path: pathMe}, &user)
	return user, err
}

// Logout asks the server to forget the session. Servers without the endpoint answer 404.
func (c *AuthClient) Logout(ctx context.Context) error {
	return c.requester.Do(ctx, transport.Request{Method: http.MethodPost, Path: pathLogout}, nil)
}
