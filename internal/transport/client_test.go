package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

type stubSession struct {
	mu      sync.Mutex
	token   string
	expired []string
}

func (s *stubSession) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *stubSession) Expire(_ context.Context, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expired = append(s.expired, reason)
}

func newTestClient(t *testing.T, serverURL string, session Session, notifier Notifier) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:  serverURL + "/api/v1",
		Session:  session,
		Notifier: notifier,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func TestSendUnwrapsEnvelopeAndAttachesBearer(t *testing.T) {
	var gotAuth, gotRequestID, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(headerRequestID)
		gotQuery = r.URL.RawQuery
		if r.URL.Path != "/api/v1/cards" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"code":0,"message":"success","data":{"items":[{"id":1}],"total":1,"page":1}}`)
	}))
	defer server.Close()

	notifier := &recordingNotifier{}
	client := newTestClient(t, server.URL, &stubSession{token: "token-abc"}, notifier)

	var page struct {
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
		Total int `json:"total"`
	}
	err := client.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/cards",
		Query:  url.Values{"page": {"1"}, "page_size": {"20"}},
	}, &page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer token-abc" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatalf("expected request id header")
	}
	if gotQuery != "page=1&page_size=20" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != 1 {
		t.Fatalf("unexpected payload %#v", page)
	}
	if len(notifier.all()) != 0 {
		t.Fatalf("did not expect notices on success")
	}
}

func TestSendWithoutCredentialPassesThrough(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, `{"code":0,"data":null}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &stubSession{}, nil)
	result := client.Send(context.Background(), Request{Method: http.MethodPost, Path: "/auth/login", Body: map[string]string{"username": "ann"}})
	if !result.OK {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if gotAuth != "" {
		t.Fatalf("expected no authorization header, got %q", gotAuth)
	}

	unbound := newTestClient(t, server.URL, nil, nil)
	if result := unbound.Send(context.Background(), Request{Path: "/search"}); !result.OK {
		t.Fatalf("expected success without a session, got %v", result.Err)
	}
}

func TestSendTreatsNoContentAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil, nil)
	result := client.Send(context.Background(), Request{Method: http.MethodDelete, Path: "/cards/7"})
	if !result.OK || result.Data != nil {
		t.Fatalf("expected empty success, got %#v", result)
	}
}

func TestSendReportsApplicationErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantCode    int
	}{
		{name: "server-message", body: `{"code":1001,"message":"title too long","data":null}`, wantMessage: "title too long", wantCode: 1001},
		{name: "fallback", body: `{"code":7}`, wantMessage: "request failed", wantCode: 7},
		{name: "not-an-envelope", body: `<html></html>`, wantMessage: "request failed"},
		{name: "missing-code", body: `{"data":{}}`, wantMessage: "request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			notifier := &recordingNotifier{}
			client := newTestClient(t, server.URL, nil, notifier)
			err := client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/cards"}, nil)
			if !errors.Is(err, ErrApplication) {
				t.Fatalf("expected application error, got %v", err)
			}
			var transportErr *Error
			errors.As(err, &transportErr)
			if transportErr.Message != tt.wantMessage || transportErr.Code != tt.wantCode {
				t.Fatalf("unexpected error %#v", transportErr)
			}
			notices := notifier.all()
			if len(notices) != 1 || notices[0].Message != tt.wantMessage {
				t.Fatalf("expected one notice with %q, got %#v", tt.wantMessage, notices)
			}
		})
	}
}

func TestSendClassifiesHTTPFailures(t *testing.T) {
	tests := []struct {
		status      int
		body        string
		wantKind    Kind
		wantMessage string
	}{
		{status: http.StatusForbidden, body: `{"message":"not your card"}`, wantKind: KindForbidden, wantMessage: "not your card"},
		{status: http.StatusForbidden, body: ``, wantKind: KindForbidden, wantMessage: "forbidden"},
		{status: http.StatusNotFound, body: `{"detail":"card missing"}`, wantKind: KindNotFound, wantMessage: "card missing"},
		{status: http.StatusNotFound, body: `{}`, wantKind: KindNotFound, wantMessage: "not found"},
		{status: http.StatusUnprocessableEntity, body: `{"detail":[{"loc":["body","title"]}]}`, wantKind: KindValidation, wantMessage: "validation failed"},
		{status: http.StatusTooManyRequests, body: ``, wantKind: KindRateLimited, wantMessage: "too many requests"},
		{status: http.StatusInternalServerError, body: `oops`, wantKind: KindServer, wantMessage: "internal error"},
		{status: http.StatusTeapot, body: ``, wantKind: KindHTTP, wantMessage: "request failed (418)"},
		{status: http.StatusBadGateway, body: `{"message":"upstream down"}`, wantKind: KindHTTP, wantMessage: "upstream down"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status)+"/"+tt.wantMessage, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			notifier := &recordingNotifier{}
			session := &stubSession{token: "still-valid"}
			client := newTestClient(t, server.URL, session, notifier)
			result := client.Send(context.Background(), Request{Path: "/cards/1"})
			if result.OK {
				t.Fatalf("expected failure")
			}
			if result.Kind() != tt.wantKind || result.Err.Status != tt.status || result.Err.Message != tt.wantMessage {
				t.Fatalf("unexpected failure %#v", result.Err)
			}
			if len(notifier.all()) != 1 {
				t.Fatalf("expected exactly one notice")
			}
			if session.AccessToken() != "still-valid" {
				t.Fatalf("non-401 failures must not expire the session")
			}
		})
	}
}

func TestSendExpiresSessionOnUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"token expired"}`)
	}))
	defer server.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	notifier := &recordingNotifier{}
	session := &stubSession{token: "expired-token"}
	client, err := NewClient(Config{BaseURL: server.URL, Session: session, Notifier: notifier, Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	err = client.Do(context.Background(), Request{Path: "/auth/me"}, nil)
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected auth expired error, got %v", err)
	}
	if len(session.expired) != 1 || session.expired[0] != "token expired" {
		t.Fatalf("expected session to be expired once, got %v", session.expired)
	}
	if notices := notifier.all(); len(notices) != 1 || notices[0].Kind != KindAuthExpired {
		t.Fatalf("expected auth expired notice, got %#v", notices)
	}
	entries := logs.FilterMessage("request failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected one info-level failure log, got %#v", entries)
	}
}

func TestSendReportsNetworkFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	notifier := &recordingNotifier{}
	client := newTestClient(t, serverURL, nil, notifier)
	result := client.Send(context.Background(), Request{Path: "/cards"})
	if result.Kind() != KindNetwork || result.Err.Message != "network unreachable" {
		t.Fatalf("expected network failure, got %#v", result.Err)
	}
	if len(notifier.all()) != 1 {
		t.Fatalf("expected network failure notice")
	}
}

func TestSendDoesNotNotifyCancelledRequests(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	notifier := &recordingNotifier{}
	client := newTestClient(t, server.URL, nil, notifier)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	result := client.Send(ctx, Request{Path: "/cards"})
	if result.Kind() != KindNetwork {
		t.Fatalf("expected network failure kind, got %v", result.Kind())
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected cancellation cause, got %v", result.Err)
	}
	if len(notifier.all()) != 0 {
		t.Fatalf("cancelled requests must not be notified")
	}
}

type invalidBody struct {
	Title string `json:"title" validate:"required,max=5"`
}

func TestSendReportsConfigurationErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	notifier := &recordingNotifier{}
	client := newTestClient(t, server.URL, nil, notifier)

	requests := []Request{
		{Method: http.MethodPost, Path: "/cards", Body: invalidBody{Title: "far too long"}},
		{Method: http.MethodPost, Path: "/cards", Body: &invalidBody{}},
		{Method: http.MethodPost, Path: "/cards", Body: map[string]any{"bad": func() {}}},
		{Method: http.MethodGet, Path: "cards"},
		{Method: "BAD METHOD", Path: "/cards"},
	}
	for _, request := range requests {
		result := client.Send(context.Background(), request)
		if result.Kind() != KindConfiguration || result.Err.Message != "invalid request" {
			t.Fatalf("expected configuration error for %#v, got %#v", request, result.Err)
		}
	}
	if calls != 0 {
		t.Fatalf("invalid requests must not reach the server")
	}
	if len(notifier.all()) != len(requests) {
		t.Fatalf("expected one notice per invalid request")
	}
}

func TestSendRecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"code":0,"data":{}}`)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg, "pks_client")
	client, err := NewClient(Config{BaseURL: server.URL, Metrics: collector})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	client.Send(context.Background(), Request{Path: "/present"})
	client.Send(context.Background(), Request{Path: "/missing"})

	expected := `
# HELP pks_client_requests_total Requests by method and outcome.
# TYPE pks_client_requests_total counter
pks_client_requests_total{method="GET",outcome="not_found"} 1
pks_client_requests_total{method="GET",outcome="ok"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "pks_client_requests_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error for missing base url")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty kind for foreign errors")
	}
	wrapped := errors.Join(errors.New("context"), &Error{Kind: KindRateLimited, Message: "slow down"})
	if KindOf(wrapped) != KindRateLimited || !errors.Is(wrapped, ErrRateLimited) {
		t.Fatalf("expected wrapped rate limited error to be detected")
	}
}
