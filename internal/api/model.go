package api

import (
	"net/url"
	"strconv"
	"time"
)

type CardType string

const (
	CardTypeNote  CardType = "note"
	CardTypeLink  CardType = "link"
	CardTypeImage CardType = "image"
	CardTypeCode  CardType = "code"
)

type LinkType string

const (
	LinkTypeReference LinkType = "reference"
	LinkTypeRelated   LinkType = "related"
	LinkTypeParent    LinkType = "parent"
)

type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
	SortByViewCount SortField = "view_count"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

type SearchScope string

const (
	SearchAll   SearchScope = "all"
	SearchCards SearchScope = "cards"
	SearchTags  SearchScope = "tags"
)

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuthResult is the payload of register and login.
type AuthResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	User         User   `json:"user"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
}

// Credentials identify the user by username or email.
type Credentials struct {
	Username string `json:"username,omitempty" validate:"required_without=Email"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TagRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Card struct {
	ID        int64     `json:"id"`
	CardType  CardType  `json:"card_type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	URL       *string   `json:"url,omitempty"`
	IsPinned  bool      `json:"is_pinned"`
	ViewCount int       `json:"view_count"`
	Tags      []TagRef  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTag reports whether tagID is attached to the card.
func (c Card) HasTag(tagID int64) bool {
	for _, tag := range c.Tags {
		if tag.ID == tagID {
			return true
		}
	}
	return false
}

type CardInput struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Content  string   `json:"content" validate:"required"`
	CardType CardType `json:"card_type,omitempty" validate:"omitempty,oneof=note link image code"`
	URL      string   `json:"url,omitempty" validate:"required_if=CardType link,max=500"`
	TagIDs   []int64  `json:"tag_ids,omitempty"`
	LinkIDs  []int64  `json:"link_ids,omitempty"`
}

// CardPatch carries only the fields to change.
type CardPatch struct {
	Title    *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content  *string   `json:"content,omitempty" validate:"omitempty,min=1"`
	CardType *CardType `json:"card_type,omitempty" validate:"omitempty,oneof=note link image code"`
	URL      *string   `json:"url,omitempty" validate:"omitempty,max=500"`
	IsPinned *bool     `json:"is_pinned,omitempty"`
	TagIDs   *[]int64  `json:"tag_ids,omitempty"`
}

// CardQuery is the query of GET /cards. Zero and nil fields are omitted.
type CardQuery struct {
	Page     int
	PageSize int
	CardType CardType
	TagID    *int64
	IsPinned *bool
	Search   string
	SortBy   SortField
	Order    SortOrder
}

func (q CardQuery) Values() url.Values {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.CardType != "" {
		values.Set("card_type", string(q.CardType))
	}
	if q.TagID != nil {
		values.Set("tag_id", strconv.FormatInt(*q.TagID, 10))
	}
	if q.IsPinned != nil {
		values.Set("is_pinned", strconv.FormatBool(*q.IsPinned))
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.SortBy != "" {
		values.Set("sort_by", string(q.SortBy))
	}
	if q.Order != "" {
		values.Set("order", string(q.Order))
	}
	return values
}

type CardPage struct {
	Items      []Card `json:"items"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

type BatchDeleteResult struct {
	DeletedCount int `json:"deleted_count"`
}

type BatchTagResult struct {
	AffectedCount int `json:"affected_count"`
}

type Tag struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ParentID      *int64    `json:"parent_id"`
	Color         string    `json:"color"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ChildrenCount int       `json:"children_count,omitempty"`
	CardsCount    int       `json:"cards_count,omitempty"`
}

type TagInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Color    string `json:"color,omitempty" validate:"omitempty,hexcolor,len=7"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type TagPatch struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Color *string `json:"color,omitempty" validate:"omitempty,hexcolor,len=7"`
}

// TagQuery filters GET /tags; a nil ParentID lists every tag.
type TagQuery struct {
	ParentID *int64
}

func (q TagQuery) Values() url.Values {
	values := url.Values{}
	if q.ParentID != nil {
		values.Set("parent_id", strconv.FormatInt(*q.ParentID, 10))
	}
	return values
}

type Column struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ColumnWithCards struct {
	Column
	CardsCount int    `json:"cards_count"`
	Cards      []Card `json:"cards"`
}

type Board struct {
	Columns []ColumnWithCards `json:"columns"`
}

type ColumnInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Position int    `json:"position" validate:"gte=0"`
}

type ColumnPatch struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Position *int    `json:"position,omitempty" validate:"omitempty,gte=0"`
}

type MoveCard struct {
	CardID   int64 `json:"card_id" validate:"required"`
	ColumnID int64 `json:"column_id" validate:"required"`
	Position int   `json:"position" validate:"gte=0"`
}

type BatchMove struct {
	CardIDs        []int64 `json:"card_ids" validate:"required,min=1"`
	TargetColumnID int64   `json:"target_column_id" validate:"required"`
}

type BatchMoveResult struct {
	MovedCount int `json:"moved_count"`
}

type LinkInput struct {
	TargetCardID int64    `json:"target_card_id" validate:"required"`
	LinkType     LinkType `json:"link_type,omitempty" validate:"omitempty,oneof=reference related parent"`
}

type LinkedCard struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	LinkType LinkType `json:"link_type"`
}

type CardLinks struct {
	Outgoing []LinkedCard `json:"outgoing"`
	Incoming []LinkedCard `json:"incoming"`
	Total    int          `json:"total"`
}

type SearchQuery struct {
	Q        string
	Type     SearchScope
	Page     int
	PageSize int
}

func (q SearchQuery) Values() url.Values {
	values := url.Values{}
	values.Set("q", q.Q)
	if q.Type != "" {
		values.Set("type", string(q.Type))
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return values
}

type AdvancedSearch struct {
	Keywords  string     `json:"keywords" validate:"required"`
	CardTypes []CardType `json:"card_types,omitempty"`
	TagIDs    []int64    `json:"tag_ids,omitempty"`
	IsPinned  *bool      `json:"is_pinned,omitempty"`
	Page      int        `json:"page,omitempty" validate:"gte=0"`
	PageSize  int        `json:"page_size,omitempty" validate:"gte=0,lte=100"`
}

type SearchCard struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CardType  CardType  `json:"card_type"`
	Highlight string    `json:"highlight,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SearchTag struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	CardsCount int    `json:"cards_count"`
}

type CardHits struct {
	Items []SearchCard `json:"items"`
	Total int          `json:"total"`
}

type TagHits struct {
	Items []SearchTag `json:"items"`
	Total int         `json:"total"`
}

// SearchResult leaves a section nil when the query scope excluded it.
type SearchResult struct {
	Cards *CardHits `json:"cards,omitempty"`
	Tags  *TagHits  `json:"tags,omitempty"`
	Total int       `json:"total"`
}
