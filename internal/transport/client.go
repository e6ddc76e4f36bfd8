package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 10 * time.Second
	maxResponseBytes  = 8 << 20
	headerRequestID   = "X-Request-ID"
	outcomeOK         = "ok"
	contentTypeJSON   = "application/json"
	authorizationType = "Bearer "
)

var errMissingBaseURL = errors.New("transport: base url is required")

// Session is the slice of the session store the pipeline depends on.
type Session interface {
	// AccessToken returns the current access credential or "".
	AccessToken() string
	// Expire tears the session down after the server rejected the credential.
	Expire(ctx context.Context, reason string)
}

// Request describes one call relative to the API base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Result is the outcome of Send: either OK with the unwrapped data or a classified failure.
type Result struct {
	OK   bool
	Data json.RawMessage
	Err  *Error
}

// Kind returns the failure kind, or "" for a success.
func (r Result) Kind() Kind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Detail  any    `json:"detail"`
}

// Config wires the pipeline's collaborators.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Session    Session
	Notifier   Notifier
	Limiter    *rate.Limiter
	Metrics    metrics.Recorder
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Client sends requests to the API and classifies their outcomes.
type Client struct {
	baseURL   string
	http      *http.Client
	notifier  Notifier
	limiter   *rate.Limiter
	metrics   metrics.Recorder
	validator *validator.Validate
	logger    *zap.Logger
	clock     func() time.Time
	session   Session
}

// NewClient constructs the pipeline.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("transport: invalid base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = Notifiers()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Nop
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Client{
		baseURL:   baseURL,
		http:      httpClient,
		notifier:  notifier,
		limiter:   cfg.Limiter,
		metrics:   recorder,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		clock:     clock,
		session:   cfg.Session,
	}, nil
}

// Do sends request and decodes the unwrapped data into out when out is non-nil.
func (c *Client) Do(ctx context.Context, request Request, out any) error {
	result := c.Send(ctx, request)
	if !result.OK {
		return result.Err
	}
	if out == nil || len(result.Data) == 0 || string(result.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		failure := &Error{Kind: KindApplication, Status: http.StatusOK, Message: messageApplication, cause: err}
		c.report(ctx, request, "", failure)
		return failure
	}
	return nil
}

// Send runs the full pipeline: build, authorize, send, unwrap, classify.
func (c *Client) Send(ctx context.Context, request Request) Result {
	started := c.clock()
	requestID := newRequestID()
	method := strings.ToUpper(strings.TrimSpace(request.Method))
	if method == "" {
		method = http.MethodGet
	}
	request.Method = method

	result := c.send(ctx, request, requestID)
	outcome := outcomeOK
	if !result.OK {
		outcome = string(result.Err.Kind)
		c.report(ctx, request, requestID, result.Err)
	} else {
		c.logger.Debug("request completed",
			zap.String("method", method),
			zap.String("path", request.Path),
			zap.String("request_id", requestID))
	}
	c.metrics.RecordRequest(method, outcome, c.clock().Sub(started))
	return result
}

func (c *Client) send(ctx context.Context, request Request, requestID string) Result {
	httpRequest, err := c.buildRequest(ctx, request, requestID)
	if err != nil {
		return failed(&Error{Kind: KindConfiguration, Message: messageConfiguration, cause: err})
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return failed(&Error{Kind: KindNetwork, Message: messageNetwork, cause: err})
		}
	}

	response, err := c.http.Do(httpRequest)
	if err != nil {
		return failed(&Error{Kind: KindNetwork, Message: messageNetwork, cause: err})
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return failed(&Error{Kind: KindNetwork, Status: response.StatusCode, Message: messageNetwork, cause: err})
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return unwrapEnvelope(response.StatusCode, body)
	}

	kind, fallback := classifyStatus(response.StatusCode)
	message := messageFromBody(body)
	if message == "" {
		message = fallback
	}
	return failed(&Error{Kind: kind, Status: response.StatusCode, Message: message})
}

func (c *Client) buildRequest(ctx context.Context, request Request, requestID string) (*http.Request, error) {
	if !strings.HasPrefix(request.Path, "/") {
		return nil, fmt.Errorf("path %q must be absolute", request.Path)
	}
	target, err := url.Parse(c.baseURL + request.Path)
	if err != nil {
		return nil, err
	}
	if len(request.Query) > 0 {
		query := target.Query()
		for key, values := range request.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if request.Body != nil {
		if err := c.validateBody(request.Body); err != nil {
			return nil, err
		}
		payload, err := json.Marshal(request.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, request.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		httpRequest.Header.Set("Content-Type", contentTypeJSON)
	}
	httpRequest.Header.Set(headerRequestID, requestID)
	if session := c.session; session != nil {
		if token := session.AccessToken(); token != "" {
			httpRequest.Header.Set("Authorization", authorizationType+token)
		}
	}
	return httpRequest, nil
}

func (c *Client) validateBody(body any) error {
	value := reflect.ValueOf(body)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}
	return c.validator.Struct(body)
}

// report performs the side effects every failure carries: session teardown on 401, notification, logging.
func (c *Client) report(ctx context.Context, request Request, requestID string, failure *Error) {
	if failure.Kind == KindAuthExpired {
		if session := c.session; session != nil {
			session.Expire(context.WithoutCancel(ctx), failure.Message)
		}
	}

	fields := []zap.Field{
		zap.String("kind", string(failure.Kind)),
		zap.Int("status", failure.Status),
		zap.String("method", request.Method),
		zap.String("path", request.Path),
		zap.String("request_id", requestID),
	}
	if failure.cause != nil {
		fields = append(fields, zap.Error(failure.cause))
	}

	if failure.Kind == KindNetwork && ctx.Err() != nil {
		c.logger.Debug("request abandoned by caller", fields...)
		return
	}
	if failure.Kind == KindAuthExpired {
		c.logger.Info("request failed", fields...)
	} else {
		c.logger.Warn("request failed", fields...)
	}

	c.notifier.Notify(Notice{
		Kind:      failure.Kind,
		Status:    failure.Status,
		Message:   failure.Message,
		Method:    request.Method,
		Path:      request.Path,
		RequestID: requestID,
	})
}

func unwrapEnvelope(status int, body []byte) Result {
	if len(bytes.TrimSpace(body)) == 0 {
		return Result{OK: true}
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return failed(&Error{Kind: KindApplication, Status: status, Message: messageApplication, cause: err})
	}
	if env.Code == nil {
		return failed(&Error{Kind: KindApplication, Status: status, Message: messageApplication})
	}
	if *env.Code != 0 {
		message := strings.TrimSpace(env.Message)
		if message == "" {
			message = messageApplication
		}
		return failed(&Error{Kind: KindApplication, Status: status, Code: *env.Code, Message: message})
	}
	return Result{OK: true, Data: env.Data}
}

func messageFromBody(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if message := strings.TrimSpace(parsed.Message); message != "" {
		return message
	}
	if detail, ok := parsed.Detail.(string); ok {
		return strings.TrimSpace(detail)
	}
	return ""
}

func failed(err *Error) Result {
	return Result{Err: err}
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
