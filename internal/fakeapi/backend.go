package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"golang.org/x/crypto/bcrypt"
)

const (
	messageBadCredentials = "Incorrect username or password"
	messageUnauthorized   = "Could not validate credentials"
)

// apiError is a failure with the HTTP status the handlers answer with.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d: %s", e.status, e.message)
}

func failure(status int, format string, args ...any) error {
	return &apiError{status: status, message: fmt.Sprintf(format, args...)}
}

func notFound(resource string, id int64) error {
	return failure(http.StatusNotFound, "%s %d not found", resource, id)
}

type userRecord struct {
	user         api.User
	passwordHash []byte
}

type cardRecord struct {
	owner    int64
	card     api.Card
	tagIDs   []int64
	columnID int64
	position int
}

type tagRecord struct {
	owner int64
	tag   api.Tag
}

type columnRecord struct {
	owner  int64
	column api.Column
}

type linkRecord struct {
	source   int64
	target   int64
	linkType api.LinkType
}

// BackendConfig configures the in-memory data set.
type BackendConfig struct {
	Clock      func() time.Time
	BcryptCost int
}

// Backend holds every user's cards, tags, columns and links in memory.
type Backend struct {
	clock      func() time.Time
	bcryptCost int

	mu      sync.Mutex
	lastID  int64
	users   map[int64]*userRecord
	cards   map[int64]*cardRecord
	tags    map[int64]*tagRecord
	columns map[int64]*columnRecord
	links   []linkRecord
}

func NewBackend(cfg BackendConfig) *Backend {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Backend{
		clock:      clock,
		bcryptCost: cost,
		users:      map[int64]*userRecord{},
		cards:      map[int64]*cardRecord{},
		tags:       map[int64]*tagRecord{},
		columns:    map[int64]*columnRecord{},
	}
}

func (b *Backend) nextIDLocked() int64 {
	b.lastID++
	return b.lastID
}

func (b *Backend) now() time.Time {
	return b.clock().UTC()
}

// Register creates a user; usernames and emails are unique.
func (b *Backend) Register(input api.Registration) (api.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), b.bcryptCost)
	if err != nil {
		return api.User{}, fmt.Errorf("hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, record := range b.users {
		if strings.EqualFold(record.user.Username, input.Username) {
			return api.User{}, failure(http.StatusConflict, "Username already registered")
		}
		if strings.EqualFold(record.user.Email, input.Email) {
			return api.User{}, failure(http.StatusConflict, "Email already registered")
		}
	}
	now := b.now()
	user := api.User{
		ID:        b.nextIDLocked(),
		Username:  input.Username,
		Email:     input.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.users[user.ID] = &userRecord{user: user, passwordHash: hash}
	return user, nil
}

// Authenticate matches by username, or by email when no username is given.
func (b *Backend) Authenticate(credentials api.Credentials) (api.User, error) {
	b.mu.Lock()
	var found *userRecord
	for _, record := range b.users {
		if credentials.Username != "" && strings.EqualFold(record.user.Username, credentials.Username) {
			found = record
			break
		}
		if credentials.Username == "" && strings.EqualFold(record.user.Email, credentials.Email) {
			found = record
			break
		}
	}
	b.mu.Unlock()

	if found == nil {
		return api.User{}, failure(http.StatusUnauthorized, messageBadCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(found.passwordHash, []byte(credentials.Password)); err != nil {
		return api.User{}, failure(http.StatusUnauthorized, messageBadCredentials)
	}
	if !found.user.IsActive {
		return api.User{}, failure(http.StatusForbidden, "User is inactive")
	}
	return found.user, nil
}

func (b *Backend) User(id int64) (api.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.users[id]
	if !ok {
		return api.User{}, failure(http.StatusUnauthorized, messageUnauthorized)
	}
	return record.user, nil
}

func (b *Backend) ownedCardLocked(owner, id int64) (*cardRecord, error) {
	record, ok := b.cards[id]
	if !ok || record.owner != owner {
		return nil, notFound("card", id)
	}
	return record, nil
}

func (b *Backend) ownedTagsLocked(owner int64, ids []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(ids))
	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		record, ok := b.tags[id]
		if !ok || record.owner != owner {
			return nil, notFound("tag", id)
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			kept = append(kept, id)
		}
	}
	return kept, nil
}

func (b *Backend) cardViewLocked(record *cardRecord) api.Card {
	card := record.card
	card.Tags = make([]api.TagRef, 0, len(record.tagIDs))
	for _, id := range record.tagIDs {
		if tag, ok := b.tags[id]; ok {
			card.Tags = append(card.Tags, api.TagRef{ID: tag.tag.ID, Name: tag.tag.Name, Color: tag.tag.Color})
		}
	}
	return card
}

func (b *Backend) ListCards(owner int64, query api.CardQuery) api.CardPage {
	b.mu.Lock()
	defer b.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(query.Search))
	matched := make([]*cardRecord, 0)
	for _, record := range b.cards {
		if record.owner != owner {
			continue
		}
		card := record.card
		if query.CardType != "" && card.CardType != query.CardType {
			continue
		}
		if query.IsPinned != nil && card.IsPinned != *query.IsPinned {
			continue
		}
		if query.TagID != nil && !slices.Contains(record.tagIDs, *query.TagID) {
			continue
		}
		if search != "" && !matchesText(search, card.Title, card.Content) {
			continue
		}
		matched = append(matched, record)
	}
	sortCards(matched, query.SortBy, query.Order)

	page, size := query.Page, query.PageSize
	items := make([]api.Card, 0, size)
	for _, record := range window(matched, page, size) {
		items = append(items, b.cardViewLocked(record))
	}
	return api.CardPage{
		Items:      items,
		Total:      len(matched),
		Page:       page,
		PageSize:   size,
		TotalPages: (len(matched) + size - 1) / size,
	}
}

// Card returns the card and counts the view.
func (b *Backend) Card(owner, id int64) (api.Card, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, err := b.ownedCardLocked(owner, id)
	if err != nil {
		return api.Card{}, err
	}
	record.card.ViewCount++
	return b.cardViewLocked(record), nil
}

func (b *Backend) CreateCard(owner int64, input api.CardInput) (api.Card, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tagIDs, err := b.ownedTagsLocked(owner, input.TagIDs)
	if err != nil {
		return api.Card{}, err
	}
	cardType := input.CardType
	if cardType == "" {
		cardType = api.CardTypeNote
	}
	now := b.now()
	record := &cardRecord{
		owner: owner,
		card: api.Card{
			ID:        b.nextIDLocked(),
			CardType:  cardType,
			Title:     input.Title,
			Content:   input.Content,
			CreatedAt: now,
			UpdatedAt: now,
		},
		tagIDs: tagIDs,
	}
	if input.URL != "" {
		link := input.URL
		record.card.URL = &link
	}
	b.cards[record.card.ID] = record
	for _, target := range input.LinkIDs {
		if _, err := b.ownedCardLocked(owner, target); err == nil && target != record.card.ID {
			b.links = append(b.links, linkRecord{source: record.card.ID, target: target, linkType: api.LinkTypeReference})
		}
	}
	return b.cardViewLocked(record), nil
}

func (b *Backend) UpdateCard(owner, id int64, patch api.CardPatch) (api.Card, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, err := b.ownedCardLocked(owner, id)
	if err != nil {
		return api.Card{}, err
	}
	if patch.TagIDs != nil {
		tagIDs, err := b.ownedTagsLocked(owner, *patch.TagIDs)
		if err != nil {
			return api.Card{}, err
		}
		record.tagIDs = tagIDs
	}
	if patch.Title != nil {
		record.card.Title = *patch.Title
	}
	if patch.Content != nil {
		record.card.Content = *patch.Content
	}
	if patch.CardType != nil {
		record.card.CardType = *patch.CardType
	}
	if patch.URL != nil {
		link := *patch.URL
		record.card.URL = &link
	}
	if patch.IsPinned != nil {
		record.card.IsPinned = *patch.IsPinned
	}
	record.card.UpdatedAt = b.now()
	return b.cardViewLocked(record), nil
}

func (b *Backend) DeleteCard(owner, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.ownedCardLocked(owner, id); err != nil {
		return err
	}
	b.deleteCardLocked(id)
	return nil
}

func (b *Backend) deleteCardLocked(id int64) {
	delete(b.cards, id)
	kept := b.links[:0]
	for _, link := range b.links {
		if link.source != id && link.target != id {
			kept = append(kept, link)
		}
	}
	b.links = kept
}

// BatchDelete removes the owned cards among ids and counts them.
func (b *Backend) BatchDelete(owner int64, ids []int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, err := b.ownedCardLocked(owner, id); err != nil {
			continue
		}
		b.deleteCardLocked(id)
		deleted++
	}
	return deleted
}

// BatchTag attaches every tag to every owned card and counts the cards touched.
func (b *Backend) BatchTag(owner int64, cardIDs, tagIDs []int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tagIDs, err := b.ownedTagsLocked(owner, tagIDs)
	if err != nil {
		return 0, err
	}
	affected := 0
	for _, id := range cardIDs {
		record, err := b.ownedCardLocked(owner, id)
		if err != nil {
			continue
		}
		for _, tagID := range tagIDs {
			if !slices.Contains(record.tagIDs, tagID) {
				record.tagIDs = append(record.tagIDs, tagID)
			}
		}
		affected++
	}
	return affected, nil
}

func (b *Backend) ownedTagLocked(owner, id int64) (*tagRecord, error) {
	record, ok := b.tags[id]
	if !ok || record.owner != owner {
		return nil, notFound("tag", id)
	}
	return record, nil
}

func (b *Backend) tagViewLocked(record *tagRecord) api.Tag {
	tag := record.tag
	tag.ChildrenCount = 0
	tag.CardsCount = 0
	for _, other := range b.tags {
		if other.tag.ParentID != nil && *other.tag.ParentID == tag.ID {
			tag.ChildrenCount++
		}
	}
	for _, card := range b.cards {
		if slices.Contains(card.tagIDs, tag.ID) {
			tag.CardsCount++
		}
	}
	return tag
}

// Tags lists the owner's tags in creation order, optionally only the children of parentID.
func (b *Backend) Tags(owner int64, parentID *int64) []api.Tag {
	b.mu.Lock()
	defer b.mu.Unlock()
	records := make([]*tagRecord, 0)
	for _, record := range b.tags {
		if record.owner != owner {
			continue
		}
		if parentID != nil && (record.tag.ParentID == nil || *record.tag.ParentID != *parentID) {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].tag.ID < records[j].tag.ID })
	tags := make([]api.Tag, 0, len(records))
	for _, record := range records {
		tags = append(tags, b.tagViewLocked(record))
	}
	return tags
}

func (b *Backend) Tag(owner, id int64) (api.Tag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, err := b.ownedTagLocked(owner, id)
	if err != nil {
		return api.Tag{}, err
	}
	return b.tagViewLocked(record), nil
}

func (b *Backend) CreateTag(owner int64, input api.TagInput) (api.Tag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if input.ParentID != nil {
		if _, err := b.ownedTagLocked(owner, *input.ParentID); err != nil {
			return api.Tag{}, err
		}
	}
	for _, record := range b.tags {
		if record.owner == owner && strings.EqualFold(record.tag.Name, input.Name) && sameParent(record.tag.ParentID, input.ParentID) {
			return api.Tag{}, failure(http.StatusConflict, "Tag %q already exists", input.Name)
		}
	}
	color := input.Color
	if color == "" {
		color = "#1890ff"
	}
	now := b.now()
	record := &tagRecord{
		owner: owner,
		tag: api.Tag{
			ID:        b.nextIDLocked(),
			Name:      input.Name,
			ParentID:  copyID(input.ParentID),
			Color:     color,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	b.tags[record.tag.ID] = record
	return b.tagViewLocked(record), nil
}

func (b *Backend) UpdateTag(owner, id int64, patch api.TagPatch) (api.Tag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, err := b.ownedTagLocked(owner, id)
	if err != nil {
		return api.Tag{}, err
	}
	if patch.Name != nil {
		record.tag.Name = *patch.Name
	}
	if patch.Color != nil {
		record.tag.Color = *patch.Color
	}
	record.tag.UpdatedAt = b.now()
	return b.tagViewLocked(record), nil
}

// DeleteTag removes the tag and its descendants and detaches them from cards.
func (b *Backend) DeleteTag(owner, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.ownedTagLocked(owner, id); err != nil {
		return err
	}
	doomed := map[int64]struct{}{id: {}}
	for grew := true; grew; {
		grew = false
		for tagID, record := range b.tags {
			if _, gone := doomed[tagID]; gone || record.tag.ParentID == nil {
				continue
			}
			if _, parentGone := doomed[*record.tag.ParentID]; parentGone {
				doomed[tagID] = struct{}{}
				grew = true
			}
		}
	}
	for tagID := range doomed {
		delete(b.tags, tagID)
	}
	for _, card := range b.cards {
		kept := card.tagIDs[:0]
		for _, tagID := range card.tagIDs {
			if _, gone := doomed[tagID]; !gone {
				kept = append(kept, tagID)
			}
		}
		card.tagIDs = kept
	}
	return nil
}

func (b *Backend) ownedColumnLocked(owner, id int64) (*columnRecord, error) {
	record, ok := b.columns[id]
	if !ok || record.owner != owner {
		return nil, notFound("column", id)
	}
	return record, nil
}

// Board lists columns by position, each with its cards by position.
func (b *Backend) Board(owner int64) api.Board {
	b.mu.Lock()
	defer b.mu.Unlock()
	columns := make([]*columnRecord, 0)
	for _, record := range b.columns {
		if record.owner == owner {
			columns = append(columns, record)
		}
	}
	sort.Slice(columns, func(i, j int) bool {
		if columns[i].column.Position != columns[j].column.Position {
			return columns[i].column.Position < columns[j].column.Position
		}
		return columns[i].column.ID < columns[j].column.ID
	})

	board := api.Board{Columns: make([]api.ColumnWithCards, 0, len(columns))}
	for _, column := range columns {
		placed := make([]*cardRecord, 0)
		for _, card := range b.cards {
			if card.owner == owner && card.columnID == column.column.ID {
				placed = append(placed, card)
			}
		}
		sort.Slice(placed, func(i, j int) bool {
			if placed[i].position != placed[j].position {
				return placed[i].position < placed[j].position
			}
			return placed[i].card.ID < placed[j].card.ID
		})
		cards := make([]api.Card, 0, len(placed))
		for _, card := range placed {
			cards = append(cards, b.cardViewLocked(card))
		}
		board.Columns = append(board.Columns, api.ColumnWithCards{
			Column:     column.column,
			CardsCount: len(cards),
			Cards:      cards,
		})
	}
	return board
}

func (b *Backend) CreateColumn(owner int64, input api.ColumnInput) api.Column {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	record := &columnRecord{
		owner: owner,
		column: api.Column{
			ID:        b.nextIDLocked(),
			Name:      input.Name,
			Position:  input.Position,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	b.columns[record.column.ID] = record
	return record.column
}

func (b *Backend) UpdateColumn(owner, id int64, patch api.ColumnPatch) (api.Column, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, err := b.ownedColumnLocked(owner, id)
	if err != nil {
		return api.Column{}, err
	}
	if patch.Name != nil {
		record.column.Name = *patch.Name
	}
	if patch.Position != nil {
		record.column.Position = *patch.Position
	}
	record.column.UpdatedAt = b.now()
	return record.column, nil
}

// DeleteColumn removes the column; its cards leave the board.
func (b *Backend) DeleteColumn(owner, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.ownedColumnLocked(owner, id); err != nil {
		return err
	}
	delete(b.columns, id)
	for _, card := range b.cards {
		if card.columnID == id {
			card.columnID = 0
			card.position = 0
		}
	}
	return nil
}

func (b *Backend) MoveCard(owner int64, move api.MoveCard) (api.MoveCard, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	card, err := b.ownedCardLocked(owner, move.CardID)
	if err != nil {
		return api.MoveCard{}, err
	}
	if _, err := b.ownedColumnLocked(owner, move.ColumnID); err != nil {
		return api.MoveCard{}, err
	}
	card.columnID = move.ColumnID
	card.position = move.Position
	return move, nil
}

// BatchMove appends the owned cards among move.CardIDs to the end of the target column.
func (b *Backend) BatchMove(owner int64, move api.BatchMove) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.ownedColumnLocked(owner, move.TargetColumnID); err != nil {
		return 0, err
	}
	next := 0
	for _, card := range b.cards {
		if card.columnID == move.TargetColumnID && card.position >= next {
			next = card.position + 1
		}
	}
	moved := 0
	for _, id := range move.CardIDs {
		card, err := b.ownedCardLocked(owner, id)
		if err != nil {
			continue
		}
		card.columnID = move.TargetColumnID
		card.position = next
		next++
		moved++
	}
	return moved, nil
}

func (b *Backend) CreateLink(owner, source int64, input api.LinkInput) (api.LinkedCard, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if source == input.TargetCardID {
		return api.LinkedCard{}, failure(http.StatusBadRequest, "A card cannot link to itself")
	}
	if _, err := b.ownedCardLocked(owner, source); err != nil {
		return api.LinkedCard{}, err
	}
	target, err := b.ownedCardLocked(owner, input.TargetCardID)
	if err != nil {
		return api.LinkedCard{}, err
	}
	for _, link := range b.links {
		if link.source == source && link.target == input.TargetCardID {
			return api.LinkedCard{}, failure(http.StatusConflict, "Link already exists")
		}
	}
	linkType := input.LinkType
	if linkType == "" {
		linkType = api.LinkTypeReference
	}
	b.links = append(b.links, linkRecord{source: source, target: input.TargetCardID, linkType: linkType})
	return api.LinkedCard{ID: target.card.ID, Title: target.card.Title, LinkType: linkType}, nil
}

func (b *Backend) Links(owner, cardID int64, linkType api.LinkType) (api.CardLinks, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.ownedCardLocked(owner, cardID); err != nil {
		return api.CardLinks{}, err
	}
	links := api.CardLinks{Outgoing: []api.LinkedCard{}, Incoming: []api.LinkedCard{}}
	for _, link := range b.links {
		if linkType != "" && link.linkType != linkType {
			continue
		}
		switch cardID {
		case link.source:
			if other, ok := b.cards[link.target]; ok {
				links.Outgoing = append(links.Outgoing, api.LinkedCard{ID: other.card.ID, Title: other.card.Title, LinkType: link.linkType})
			}
		case link.target:
			if other, ok := b.cards[link.source]; ok {
				links.Incoming = append(links.Incoming, api.LinkedCard{ID: other.card.ID, Title: other.card.Title, LinkType: link.linkType})
			}
		}
	}
	links.Total = len(links.Outgoing) + len(links.Incoming)
	return links, nil
}

func (b *Backend) DeleteLink(owner, source, target int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.ownedCardLocked(owner, source); err != nil {
		return err
	}
	for i, link := range b.links {
		if link.source == source && link.target == target {
			b.links = append(b.links[:i], b.links[i+1:]...)
			return nil
		}
	}
	return failure(http.StatusNotFound, "Link from %d to %d not found", source, target)
}

// Search matches cards by title or content and tags by name, case-insensitively.
func (b *Backend) Search(owner int64, query api.SearchQuery) api.SearchResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.ToLower(strings.TrimSpace(query.Q))
	var result api.SearchResult
	if query.Type == api.SearchAll || query.Type == api.SearchCards {
		matched := make([]*cardRecord, 0)
		for _, record := range b.cards {
			if record.owner == owner && matchesText(text, record.card.Title, record.card.Content) {
				matched = append(matched, record)
			}
		}
		result.Cards = b.cardHitsLocked(matched, query.Page, query.PageSize)
		result.Total += result.Cards.Total
	}
	if query.Type == api.SearchAll || query.Type == api.SearchTags {
		matched := make([]*tagRecord, 0)
		for _, record := range b.tags {
			if record.owner == owner && matchesText(text, record.tag.Name) {
				matched = append(matched, record)
			}
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].tag.ID < matched[j].tag.ID })
		hits := &api.TagHits{Items: []api.SearchTag{}, Total: len(matched)}
		for _, record := range window(matched, query.Page, query.PageSize) {
			view := b.tagViewLocked(record)
			hits.Items = append(hits.Items, api.SearchTag{ID: view.ID, Name: view.Name, Color: view.Color, CardsCount: view.CardsCount})
		}
		result.Tags = hits
		result.Total += hits.Total
	}
	return result
}

// AdvancedSearch narrows keyword matches by type, tags and pin state; it only returns cards.
func (b *Backend) AdvancedSearch(owner int64, query api.AdvancedSearch) api.SearchResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.ToLower(strings.TrimSpace(query.Keywords))
	matched := make([]*cardRecord, 0)
	for _, record := range b.cards {
		card := record.card
		if record.owner != owner || !matchesText(text, card.Title, card.Content) {
			continue
		}
		if len(query.CardTypes) > 0 && !slices.Contains(query.CardTypes, card.CardType) {
			continue
		}
		if query.IsPinned != nil && card.IsPinned != *query.IsPinned {
			continue
		}
		if len(query.TagIDs) > 0 && !slices.ContainsFunc(query.TagIDs, func(id int64) bool { return slices.Contains(record.tagIDs, id) }) {
			continue
		}
		matched = append(matched, record)
	}
	page, size := query.Page, query.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	hits := b.cardHitsLocked(matched, page, size)
	return api.SearchResult{Cards: hits, Total: hits.Total}
}

func (b *Backend) cardHitsLocked(matched []*cardRecord, page, size int) *api.CardHits {
	sortCards(matched, api.SortByCreatedAt, api.OrderDesc)
	hits := &api.CardHits{Items: []api.SearchCard{}, Total: len(matched)}
	for _, record := range window(matched, page, size) {
		card := record.card
		hits.Items = append(hits.Items, api.SearchCard{
			ID:        card.ID,
			Title:     card.Title,
			Content:   card.Content,
			CardType:  card.CardType,
			CreatedAt: card.CreatedAt,
		})
	}
	return hits
}

func sortCards(records []*cardRecord, field api.SortField, order api.SortOrder) {
	less := func(a, b *cardRecord) bool {
		switch field {
		case api.SortByUpdatedAt:
			if !a.card.UpdatedAt.Equal(b.card.UpdatedAt) {
				return a.card.UpdatedAt.Before(b.card.UpdatedAt)
			}
		case api.SortByViewCount:
			if a.card.ViewCount != b.card.ViewCount {
				return a.card.ViewCount < b.card.ViewCount
			}
		default:
			if !a.card.CreatedAt.Equal(b.card.CreatedAt) {
				return a.card.CreatedAt.Before(b.card.CreatedAt)
			}
		}
		return a.card.ID < b.card.ID
	}
	sort.Slice(records, func(i, j int) bool {
		if order == api.OrderAsc {
			return less(records[i], records[j])
		}
		return less(records[j], records[i])
	})
}

func window[T any](items []T, page, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func matchesText(needle string, fields ...string) bool {
	if needle == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}

func asAPIError(err error) (*apiError, bool) {
	var target *apiError
	ok := errors.As(err, &target)
	return target, ok
}
