package fakeapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultIssuer   = "pks-fake"
	defaultTokenTTL = 30 * time.Minute
	refreshTTLScale = 7 * 24

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrMissingSigningSecret = errors.New("fakeapi: signing secret required")
	ErrMissingToken         = errors.New("fakeapi: token required")
	ErrInvalidToken         = errors.New("fakeapi: invalid token")
	ErrExpiredToken         = errors.New("fakeapi: token expired")
	ErrWrongTokenType       = errors.New("fakeapi: wrong token type")
)

type tokenClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures the HS256 issuer for access and refresh tokens.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer signs and validates the fake server's JWTs.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		secret: append([]byte(nil), cfg.SigningSecret...),
		issuer: issuer,
		ttl:    ttl,
		clock:  clock,
	}, nil
}

// Issue returns an access token and a longer-lived refresh token for userID.
func (i *TokenIssuer) Issue(userID int64) (string, string, error) {
	access, err := i.sign(userID, tokenTypeAccess, i.ttl)
	if err != nil {
		return "", "", err
	}
	refresh, err := i.sign(userID, tokenTypeRefresh, i.ttl*refreshTTLScale)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (i *TokenIssuer) sign(userID int64, tokenType string, ttl time.Duration) (string, error) {
	now := i.clock().UTC()
	claims := tokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Validate parses token, checks it is of tokenType and returns the user id.
func (i *TokenIssuer) Validate(token, tokenType string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrMissingToken
	}
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	if claims.Type != tokenType {
		return 0, ErrWrongTokenType
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: subject %q", ErrInvalidToken, claims.Subject)
	}
	return userID, nil
}
