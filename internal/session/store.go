// Package session owns the credential pair and the signed-in user.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/MarcoPoloResearchLab/pks/internal/events"
	"github.com/MarcoPoloResearchLab/pks/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/pks/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	errMissingStorage       = errors.New("session: persistent storage is required")
	errMissingAuthenticator = errors.New("session: authenticator is required")
	errMissingRefreshToken  = errors.New("session: no refresh token")
	errLoginInProgress      = errors.New("session: authentication already in progress")
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

const (
	opNew      = "session.new"
	opLogin    = "session.login"
	opRegister = "session.register"
	opRefresh  = "session.refresh"
	opProfile  = "session.fetch_current_user"
	opLogout   = "session.logout"
	opRestore  = "session.restore"
	opExpire   = "session.expire"
)

const (
	ActionLogin     = "login"
	ActionLogout    = "logout"
	ActionExpired   = "expired"
	ActionRefreshed = "refreshed"
	ActionRestored  = "restored"
	ActionProfile   = "profile"
)

// ServiceError is returned by every store operation; Code reports operation.reason.
type ServiceError = serviceerr.Error

var newServiceError = serviceerr.New

// Authenticator is the remote half of the session lifecycle.
type Authenticator interface {
	Register(ctx context.Context, registration api.Registration) (api.AuthResult, error)
	Login(ctx context.Context, credentials api.Credentials) (api.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (api.TokenPair, error)
	Me(ctx context.Context) (api.User, error)
	Logout(ctx context.Context) error
}

// Navigator moves the user to the login entry point.
type Navigator interface {
	ToLogin(reason string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(reason string)

func (f NavigatorFunc) ToLogin(reason string) {
	f(reason)
}

type Config struct {
	Storage       storage.KeyValueStore
	Authenticator Authenticator
	Navigator     Navigator
	Events        events.Publisher
	Logger        *zap.Logger
	Clock         func() time.Time
}

// Store is safe for concurrent use. Network calls run without holding either lock.
type Store struct {
	storage   storage.KeyValueStore
	navigator Navigator
	events    events.Publisher
	logger    *zap.Logger
	clock     func() time.Time

	// writeMu pairs every credential change in memory with its write to storage,
	// so a logout cannot be undone by a persist that started before it.
	writeMu sync.Mutex

	mu           sync.RWMutex
	auth         Authenticator
	state        State
	accessToken  string
	refreshToken string
	user         *api.User
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Storage == nil {
		return nil, newServiceError(opNew, "missing_storage", errMissingStorage)
	}
	navigator := cfg.Navigator
	if navigator == nil {
		navigator = NavigatorFunc(func(string) {})
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		storage:   cfg.Storage,
		navigator: navigator,
		events:    publisher,
		logger:    logger,
		clock:     clock,
		auth:      cfg.Authenticator,
	}, nil
}

// UseAuthenticator installs the auth client once the transport it depends on exists.
func (s *Store) UseAuthenticator(auth Authenticator) {
	s.mu.Lock()
	s.auth = auth
	s.mu.Unlock()
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != ""
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) CurrentUser() (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return api.User{}, false
	}
	return *s.user, true
}

func (s *Store) Login(ctx context.Context, credentials api.Credentials) (api.User, error) {
	return s.authenticate(ctx, opLogin, func(auth Authenticator) (api.AuthResult, error) {
		return auth.Login(ctx, credentials)
	})
}

func (s *Store) Register(ctx context.Context, registration api.Registration) (api.User, error) {
	return s.authenticate(ctx, opRegister, func(auth Authenticator) (api.AuthResult, error) {
		return auth.Register(ctx, registration)
	})
}

func (s *Store) authenticate(ctx context.Context, operation string, call func(Authenticator) (api.AuthResult, error)) (api.User, error) {
	auth, err := s.beginAuthentication(operation)
	if err != nil {
		return api.User{}, err
	}

	result, err := call(auth)
	if err != nil {
		s.abortAuthentication()
		return api.User{}, err
	}

	s.writeMu.Lock()
	if err := s.persist(ctx, map[string]string{
		storage.KeyAccessToken:  result.AccessToken,
		storage.KeyRefreshToken: result.RefreshToken,
	}, &result.User); err != nil {
		s.writeMu.Unlock()
		s.abortAuthentication()
		s.logError(operation, "persist_failed", err)
		return api.User{}, newServiceError(operation, "persist_failed", err)
	}

	user := result.User
	s.mu.Lock()
	s.accessToken = result.AccessToken
	s.refreshToken = result.RefreshToken
	s.user = &user
	s.state = Authenticated
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.publish(ActionLogin, "")
	s.logger.Info("session authenticated", zap.String("operation", operation), zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *Store) beginAuthentication(operation string) (Authenticator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auth == nil {
		return nil, newServiceError(operation, "missing_authenticator", errMissingAuthenticator)
	}
	if s.state == Authenticating {
		return nil, newServiceError(operation, "in_progress", errLoginInProgress)
	}
	s.state = Authenticating
	return s.auth, nil
}

// abortAuthentication derives the state from the credential, which an intervening Expire may have cleared.
func (s *Store) abortAuthentication() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken != "" {
		s.state = Authenticated
	} else {
		s.state = Anonymous
	}
}

// FetchCurrentUser refreshes the cached profile only; credentials are never touched.
func (s *Store) FetchCurrentUser(ctx context.Context) (api.User, error) {
	auth := s.authenticator()
	if auth == nil {
		return api.User{}, newServiceError(opProfile, "missing_authenticator", errMissingAuthenticator)
	}
	user, err := auth.Me(ctx)
	if err != nil {
		return api.User{}, err
	}

	s.writeMu.Lock()
	s.mu.Lock()
	if s.accessToken == "" {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return user, nil
	}
	s.user = &user
	s.mu.Unlock()

	err = s.persist(ctx, nil, &user)
	s.writeMu.Unlock()
	if err != nil {
		s.logError(opProfile, "persist_failed", err)
		return user, newServiceError(opProfile, "persist_failed", err)
	}
	s.publish(ActionProfile, "")
	return user, nil
}

// Refresh trades the refresh token for a new pair.
func (s *Store) Refresh(ctx context.Context) error {
	auth := s.authenticator()
	if auth == nil {
		return newServiceError(opRefresh, "missing_authenticator", errMissingAuthenticator)
	}
	refreshToken := s.RefreshToken()
	if refreshToken == "" {
		return newServiceError(opRefresh, "missing_refresh_token", errMissingRefreshToken)
	}

	pair, err := auth.Refresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	s.writeMu.Lock()
	s.mu.Lock()
	if s.refreshToken != refreshToken {
		// Logged out or replaced while the call was in flight.
		s.mu.Unlock()
		s.writeMu.Unlock()
		return nil
	}
	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	if s.accessToken != "" {
		s.state = Authenticated
	}
	s.mu.Unlock()

	err = s.persist(ctx, map[string]string{
		storage.KeyAccessToken:  pair.AccessToken,
		storage.KeyRefreshToken: pair.RefreshToken,
	}, nil)
	s.writeMu.Unlock()
	if err != nil {
		s.logError(opRefresh, "persist_failed", err)
		return newServiceError(opRefresh, "persist_failed", err)
	}
	s.publish(ActionRefreshed, "")
	return nil
}

// RefreshIfExpiring refreshes when the access token's exp claim falls within skew.
// Tokens that are not JWTs or carry no exp are left alone.
func (s *Store) RefreshIfExpiring(ctx context.Context, skew time.Duration) (bool, error) {
	token := s.AccessToken()
	if token == "" || s.RefreshToken() == "" {
		return false, nil
	}
	expiresAt, ok := tokenExpiry(token)
	if !ok || expiresAt.After(s.clock().Add(skew)) {
		return false, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Logout always clears local state. The remote call is best effort.
func (s *Store) Logout(ctx context.Context) error {
	auth := s.authenticator()
	if auth != nil && s.IsAuthenticated() {
		if err := auth.Logout(ctx); err != nil {
			s.logger.Info("remote logout failed",
				zap.String("operation", opLogout),
				zap.String("reason", "remote_failed"),
				zap.Error(err))
		}
	}

	err := s.clear(ctx)
	s.publish(ActionLogout, "")
	if err != nil {
		s.logError(opLogout, "clear_failed", err)
		return newServiceError(opLogout, "clear_failed", err)
	}
	return nil
}

// Expire tears the session down after the server rejected the credential.
func (s *Store) Expire(ctx context.Context, reason string) {
	s.writeMu.Lock()
	s.mu.Lock()
	hadSession := s.accessToken != ""
	s.mu.Unlock()
	err := s.clearLocked(ctx)
	s.writeMu.Unlock()
	if err != nil {
		s.logError(opExpire, "clear_failed", err)
	}
	if !hadSession {
		return
	}
	s.logger.Info("session expired", zap.String("reason", reason))
	s.publish(ActionExpired, reason)
	s.navigator.ToLogin(reason)
}

// RestoreFromPersistence becomes Authenticated without a network call when a credential and profile are stored.
func (s *Store) RestoreFromPersistence(ctx context.Context) (bool, error) {
	accessToken, hasAccess, err := s.storage.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		s.logError(opRestore, "read_failed", err)
		return false, newServiceError(opRestore, "read_failed", err)
	}
	rawUser, hasUser, err := s.storage.Get(ctx, storage.KeyUserInfo)
	if err != nil {
		s.logError(opRestore, "read_failed", err)
		return false, newServiceError(opRestore, "read_failed", err)
	}
	if !hasAccess || !hasUser || accessToken == "" {
		return false, nil
	}
	refreshToken, _, err := s.storage.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		s.logError(opRestore, "read_failed", err)
		return false, newServiceError(opRestore, "read_failed", err)
	}

	var user api.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logError(opRestore, "corrupt_profile", err)
		if deleteErr := s.storage.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyUserInfo); deleteErr != nil {
			s.logError(opRestore, "clear_failed", deleteErr)
		}
		return false, nil
	}

	s.mu.Lock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	s.user = &user
	s.state = Authenticated
	s.mu.Unlock()
	s.publish(ActionRestored, "")
	return true, nil
}

func (s *Store) persist(ctx context.Context, entries map[string]string, user *api.User) error {
	if entries == nil {
		entries = make(map[string]string, 1)
	}
	if user != nil {
		encoded, err := json.Marshal(user)
		if err != nil {
			return err
		}
		entries[storage.KeyUserInfo] = string(encoded)
	}
	return s.storage.Put(ctx, entries)
}

func (s *Store) clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.clearLocked(ctx)
}

// clearLocked requires writeMu.
func (s *Store) clearLocked(ctx context.Context) error {
	s.clearMemory()
	return s.storage.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyUserInfo)
}

func (s *Store) clearMemory() {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.user = nil
	s.state = Anonymous
	s.mu.Unlock()
}

func (s *Store) authenticator() Authenticator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

func (s *Store) publish(action, message string) {
	s.events.Publish(events.Event{Topic: events.TopicSession, Action: action, Message: message})
}

func (s *Store) logError(operation, reason string, err error) {
	if err == nil {
		return
	}
	s.logger.Error("session operation failed",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err))
}
