// Package tags holds the flat tag list and the tree derived from it.
package tags

import (
	"context"
	"errors"
	"sync"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
	"github.com/MarcoPoloResearchLab/pks/internal/events"
	"github.com/MarcoPoloResearchLab/pks/internal/serviceerr"
	"go.uber.org/zap"
)

var errMissingClient = errors.New("tags: api client is required")

const (
	opNew     = "tags.new"
	opRebuild = "tags.rebuild"
)

const (
	ActionFetched = "fetched"
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionRemoved = "removed"
)

// ServiceError is returned by every store operation; Code reports operation.reason.
type ServiceError = serviceerr.Error

var newServiceError = serviceerr.New

// Client is the remote tag resource.
type Client interface {
	List(ctx context.Context, query api.TagQuery) ([]api.Tag, error)
	Create(ctx context.Context, input api.TagInput) (api.Tag, error)
	Update(ctx context.Context, id int64, patch api.TagPatch) (api.Tag, error)
	Delete(ctx context.Context, id int64) error
}

type Config struct {
	Client Client
	Events events.Publisher
	Logger *zap.Logger
}

// Store rebuilds the whole tree after every change to the flat list. When a rebuild
// fails the flat list keeps the change, the tree is emptied and the error is returned.
type Store struct {
	client Client
	events events.Publisher
	logger *zap.Logger

	mu    sync.RWMutex
	tags  []api.Tag
	tree  []*TreeNode
	index map[int64]int
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, newServiceError(opNew, "missing_client", errMissingClient)
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client: cfg.Client,
		events: publisher,
		logger: logger,
		tags:   []api.Tag{},
		tree:   []*TreeNode{},
		index:  map[int64]int{},
	}, nil
}

func (s *Store) Fetch(ctx context.Context, query api.TagQuery) ([]api.Tag, error) {
	tags, err := s.client.List(ctx, query)
	if err != nil {
		return nil, err
	}
	return tags, s.mutate(ActionFetched, nil, func([]api.Tag) []api.Tag {
		return append([]api.Tag(nil), tags...)
	})
}

func (s *Store) Create(ctx context.Context, input api.TagInput) (api.Tag, error) {
	tag, err := s.client.Create(ctx, input)
	if err != nil {
		return api.Tag{}, err
	}
	return tag, s.mutate(ActionCreated, []int64{tag.ID}, func(current []api.Tag) []api.Tag {
		return append(current, tag)
	})
}

func (s *Store) Update(ctx context.Context, id int64, patch api.TagPatch) (api.Tag, error) {
	tag, err := s.client.Update(ctx, id, patch)
	if err != nil {
		return api.Tag{}, err
	}
	return tag, s.mutate(ActionUpdated, []int64{id}, func(current []api.Tag) []api.Tag {
		for i := range current {
			if current[i].ID == id {
				current[i] = tag
				break
			}
		}
		return current
	})
}

// Remove drops the tag locally. Its descendants stay in the flat list and become orphans.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.client.Delete(ctx, id); err != nil {
		return err
	}
	return s.mutate(ActionRemoved, []int64{id}, func(current []api.Tag) []api.Tag {
		kept := current[:0]
		for _, tag := range current {
			if tag.ID != id {
				kept = append(kept, tag)
			}
		}
		return kept
	})
}

func (s *Store) mutate(action string, ids []int64, change func([]api.Tag) []api.Tag) error {
	s.mu.Lock()
	working := append([]api.Tag(nil), s.tags...)
	s.tags = change(working)
	err := s.rebuildLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("tag tree rebuild failed",
			zap.String("operation", opRebuild),
			zap.String("reason", action),
			zap.Error(err))
		err = newServiceError(opRebuild, action, err)
	}
	s.events.Publish(events.Event{Topic: events.TopicTags, Action: action, IDs: ids})
	return err
}

func (s *Store) rebuildLocked() error {
	index := make(map[int64]int, len(s.tags))
	for i, tag := range s.tags {
		if _, exists := index[tag.ID]; !exists {
			index[tag.ID] = i
		}
	}
	s.index = index
	tree, err := BuildTree(s.tags)
	if err != nil {
		s.tree = []*TreeNode{}
		return err
	}
	s.tree = tree
	return nil
}

func (s *Store) GetByID(id int64) (api.Tag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return api.Tag{}, false
	}
	return s.tags[i], true
}

func (s *Store) Tags() []api.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Tag(nil), s.tags...)
}

// Tree returns the current forest. Nodes are shared with the store and must not be modified.
func (s *Store) Tree() []*TreeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*TreeNode(nil), s.tree...)
}

func (s *Store) Roots() []api.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roots := make([]api.Tag, 0)
	for _, tag := range s.tags {
		if tag.ParentID == nil {
			roots = append(roots, tag)
		}
	}
	return roots
}

func (s *Store) Children(parentID int64) []api.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	children := make([]api.Tag, 0)
	for _, tag := range s.tags {
		if tag.ParentID != nil && *tag.ParentID == parentID {
			children = append(children, tag)
		}
	}
	return children
}
