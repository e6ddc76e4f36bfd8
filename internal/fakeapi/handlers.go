package fakeapi

import (
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type batchCardsPayload struct {
	CardIDs []int64 `json:"card_ids" validate:"required,min=1"`
	TagIDs  []int64 `json:"tag_ids"`
}

func (h *httpHandler) issue(c *gin.Context, status int, user api.User) {
	access, refresh, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, status, api.AuthResult{AccessToken: access, RefreshToken: refresh, TokenType: "bearer", User: user})
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var input api.Registration
	if !h.bind(c, &input) {
		return
	}
	user, err := h.backend.Register(input)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("user registered", zap.Int64("user_id", user.ID))
	h.issue(c, http.StatusCreated, user)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var input api.Credentials
	if !h.bind(c, &input) {
		return
	}
	user, err := h.backend.Authenticate(input)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issue(c, http.StatusOK, user)
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	var input api.RefreshRequest
	if !h.bind(c, &input) {
		return
	}
	userID, err := h.tokens.Validate(input.RefreshToken, tokenTypeRefresh)
	if err != nil {
		h.logger.Info("refresh rejected", zap.Error(err))
		abort(c, http.StatusUnauthorized, messageUnauthorized)
		return
	}
	if _, err := h.backend.User(userID); err != nil {
		h.fail(c, err)
		return
	}
	access, refresh, err := h.tokens.Issue(userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, api.TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	user, err := h.backend.User(currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	respond(c, http.StatusOK, nil)
}

func (h *httpHandler) handleListCards(c *gin.Context) {
	page, size, ok := pageParams(c)
	if !ok {
		return
	}
	query := api.CardQuery{
		Page:     page,
		PageSize: size,
		CardType: api.CardType(c.Query("card_type")),
		Search:   c.Query("search"),
		SortBy:   api.SortField(c.DefaultQuery("sort_by", string(api.SortByCreatedAt))),
		Order:    api.SortOrder(c.DefaultQuery("order", string(api.OrderDesc))),
	}
	if query.Order != api.OrderAsc && query.Order != api.OrderDesc {
		abort(c, http.StatusUnprocessableEntity, "Invalid order")
		return
	}
	if raw := c.Query("tag_id"); raw != "" {
		tagID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			abort(c, http.StatusUnprocessableEntity, "Invalid tag_id")
			return
		}
		query.TagID = &tagID
	}
	if raw := c.Query("is_pinned"); raw != "" {
		pinned, err := strconv.ParseBool(raw)
		if err != nil {
			abort(c, http.StatusUnprocessableEntity, "Invalid is_pinned")
			return
		}
		query.IsPinned = &pinned
	}
	respond(c, http.StatusOK, h.backend.ListCards(currentUser(c), query))
}

func (h *httpHandler) handleGetCard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	card, err := h.backend.Card(currentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, card)
}

func (h *httpHandler) handleCreateCard(c *gin.Context) {
	var input api.CardInput
	if !h.bind(c, &input) {
		return
	}
	card, err := h.backend.CreateCard(currentUser(c), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, card)
}

func (h *httpHandler) handleUpdateCard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch api.CardPatch
	if !h.bind(c, &patch) {
		return
	}
	card, err := h.backend.UpdateCard(currentUser(c), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, card)
}

func (h *httpHandler) handleDeleteCard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.backend.DeleteCard(currentUser(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleBatchDelete(c *gin.Context) {
	var input batchCardsPayload
	if !h.bind(c, &input) {
		return
	}
	deleted := h.backend.BatchDelete(currentUser(c), input.CardIDs)
	respond(c, http.StatusOK, api.BatchDeleteResult{DeletedCount: deleted})
}

func (h *httpHandler) handleBatchTag(c *gin.Context) {
	var input batchCardsPayload
	if !h.bind(c, &input) {
		return
	}
	if len(input.TagIDs) == 0 {
		abort(c, http.StatusUnprocessableEntity, "Field tag_ids failed min validation")
		return
	}
	affected, err := h.backend.BatchTag(currentUser(c), input.CardIDs, input.TagIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, api.BatchTagResult{AffectedCount: affected})
}

func (h *httpHandler) handleCreateLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input api.LinkInput
	if !h.bind(c, &input) {
		return
	}
	linked, err := h.backend.CreateLink(currentUser(c), id, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, linked)
}

func (h *httpHandler) handleListLinks(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	linkType := api.LinkType(c.Query("link_type"))
	switch linkType {
	case "", api.LinkTypeReference, api.LinkTypeRelated, api.LinkTypeParent:
	default:
		abort(c, http.StatusUnprocessableEntity, "Invalid link_type")
		return
	}
	links, err := h.backend.Links(currentUser(c), id, linkType)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, links)
}

func (h *httpHandler) handleDeleteLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	target, ok := pathID(c, "target")
	if !ok {
		return
	}
	if err := h.backend.DeleteLink(currentUser(c), id, target); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListTags(c *gin.Context) {
	var parentID *int64
	if raw := c.Query("parent_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			abort(c, http.StatusUnprocessableEntity, "Invalid parent_id")
			return
		}
		parentID = &parsed
	}
	respond(c, http.StatusOK, h.backend.Tags(currentUser(c), parentID))
}

func (h *httpHandler) handleGetTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tag, err := h.backend.Tag(currentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, tag)
}

func (h *httpHandler) handleCreateTag(c *gin.Context) {
	var input api.TagInput
	if !h.bind(c, &input) {
		return
	}
	tag, err := h.backend.CreateTag(currentUser(c), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, tag)
}

func (h *httpHandler) handleUpdateTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch api.TagPatch
	if !h.bind(c, &patch) {
		return
	}
	tag, err := h.backend.UpdateTag(currentUser(c), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, tag)
}

func (h *httpHandler) handleDeleteTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.backend.DeleteTag(currentUser(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleBoard(c *gin.Context) {
	respond(c, http.StatusOK, h.backend.Board(currentUser(c)))
}

func (h *httpHandler) handleCreateColumn(c *gin.Context) {
	var input api.ColumnInput
	if !h.bind(c, &input) {
		return
	}
	respond(c, http.StatusCreated, h.backend.CreateColumn(currentUser(c), input))
}

func (h *httpHandler) handleUpdateColumn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch api.ColumnPatch
	if !h.bind(c, &patch) {
		return
	}
	column, err := h.backend.UpdateColumn(currentUser(c), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, column)
}

func (h *httpHandler) handleDeleteColumn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.backend.DeleteColumn(currentUser(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMoveCard(c *gin.Context) {
	var input api.MoveCard
	if !h.bind(c, &input) {
		return
	}
	placed, err := h.backend.MoveCard(currentUser(c), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, placed)
}

func (h *httpHandler) handleBatchMove(c *gin.Context) {
	var input api.BatchMove
	if !h.bind(c, &input) {
		return
	}
	moved, err := h.backend.BatchMove(currentUser(c), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, api.BatchMoveResult{MovedCount: moved})
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	page, size, ok := pageParams(c)
	if !ok {
		return
	}
	query := api.SearchQuery{
		Q:        c.Query("q"),
		Type:     api.SearchScope(c.DefaultQuery("type", string(api.SearchAll))),
		Page:     page,
		PageSize: size,
	}
	if query.Q == "" {
		abort(c, http.StatusUnprocessableEntity, "Field q is required")
		return
	}
	switch query.Type {
	case api.SearchAll, api.SearchCards, api.SearchTags:
	default:
		abort(c, http.StatusUnprocessableEntity, "Invalid type")
		return
	}
	respond(c, http.StatusOK, h.backend.Search(currentUser(c), query))
}

func (h *httpHandler) handleAdvancedSearch(c *gin.Context) {
	var input api.AdvancedSearch
	if !h.bind(c, &input) {
		return
	}
	respond(c, http.StatusOK, h.backend.AdvancedSearch(currentUser(c), input))
}
