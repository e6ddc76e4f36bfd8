// Package fakeapi serves the PKS HTTP API from memory for tests and local use.
package fakeapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	BasePath = "/api/v1"

	userIDContextKey = "pks_user_id"
	defaultPage      = 1
	defaultPageSize  = 20
	maxPageSize      = 100
)

var (
	errMissingTokenIssuer   = errors.New("token issuer dependency required")
	errMissingBackend       = errors.New("backend dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

type Dependencies struct {
	Tokens   *TokenIssuer
	Backend  *Backend
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.Backend == nil {
		return nil, errMissingBackend
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Nop
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	router.Use(recordRequests(recorder))

	handler := &httpHandler{
		tokens:    deps.Tokens,
		backend:   deps.Backend,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group(BasePath)
	v1.POST("/auth/register", handler.handleRegister)
	v1.POST("/auth/login", handler.handleLogin)
	v1.POST("/auth/refresh", handler.handleRefresh)

	protected := v1.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/auth/me", handler.handleMe)
	protected.POST("/auth/logout", handler.handleLogout)

	protected.GET("/cards", handler.handleListCards)
	protected.POST("/cards", handler.handleCreateCard)
	protected.POST("/cards/batch-delete", handler.handleBatchDelete)
	protected.POST("/cards/batch-tag", handler.handleBatchTag)
	protected.GET("/cards/:id", handler.handleGetCard)
	protected.PUT("/cards/:id", handler.handleUpdateCard)
	protected.DELETE("/cards/:id", handler.handleDeleteCard)
	protected.POST("/cards/:id/links", handler.handleCreateLink)
	protected.GET("/cards/:id/links", handler.handleListLinks)
	protected.DELETE("/cards/:id/links/:target", handler.handleDeleteLink)

	protected.GET("/tags", handler.handleListTags)
	protected.POST("/tags", handler.handleCreateTag)
	protected.GET("/tags/:id", handler.handleGetTag)
	protected.PUT("/tags/:id", handler.handleUpdateTag)
	protected.DELETE("/tags/:id", handler.handleDeleteTag)

	protected.GET("/kanban", handler.handleBoard)
	protected.POST("/kanban/columns", handler.handleCreateColumn)
	protected.PUT("/kanban/columns/:id", handler.handleUpdateColumn)
	protected.DELETE("/kanban/columns/:id", handler.handleDeleteColumn)
	protected.POST("/kanban/cards/move", handler.handleMoveCard)
	protected.POST("/kanban/cards/batch-move", handler.handleBatchMove)

	protected.GET("/search", handler.handleSearch)
	protected.POST("/search/advanced", handler.handleAdvancedSearch)

	return router, nil
}

type httpHandler struct {
	tokens    *TokenIssuer
	backend   *Backend
	validator *validator.Validate
	logger    *zap.Logger
}

func recordRequests(recorder metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
			c.Header("X-Request-ID", requestID)
		}
		c.Next()
		recorder.RecordRequest(c.Request.Method, metrics.StatusOutcome(c.Writer.Status()), time.Since(started))
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if !strings.HasPrefix(header, "Bearer ") || token == "" {
		h.logger.Debug("authorization rejected", zap.Error(errInvalidAuthorization))
		abort(c, http.StatusUnauthorized, messageUnauthorized)
		return
	}
	userID, err := h.tokens.Validate(token, tokenTypeAccess)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		abort(c, http.StatusUnauthorized, messageUnauthorized)
		return
	}
	if _, err := h.backend.User(userID); err != nil {
		abort(c, http.StatusUnauthorized, messageUnauthorized)
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func currentUser(c *gin.Context) int64 {
	return c.GetInt64(userIDContextKey)
}

// respond wraps data in the success envelope.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"code": 0, "message": "success", "data": data})
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message})
}

func (h *httpHandler) fail(c *gin.Context, err error) {
	if apiErr, ok := asAPIError(err); ok {
		abort(c, apiErr.status, apiErr.message)
		return
	}
	h.logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	abort(c, http.StatusInternalServerError, "Internal server error")
}

// bind decodes the JSON body into target and runs its validate tags.
func (h *httpHandler) bind(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		abort(c, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		abort(c, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) || len(invalid) == 0 {
		return "Invalid request body"
	}
	first := invalid[0]
	return "Field " + strings.ToLower(first.Field()) + " failed " + first.Tag() + " validation"
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abort(c, http.StatusUnprocessableEntity, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// pageParams reads page and page_size with the server defaults and bounds.
func pageParams(c *gin.Context) (int, int, bool) {
	page, size := defaultPage, defaultPageSize
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			abort(c, http.StatusUnprocessableEntity, "Invalid page")
			return 0, 0, false
		}
		page = parsed
	}
	if raw := c.Query("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxPageSize {
			abort(c, http.StatusUnprocessableEntity, "Invalid page_size")
			return 0, 0, false
		}
		size = parsed
	}
	return page, size, true
}
