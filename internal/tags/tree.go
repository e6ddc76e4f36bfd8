package tags

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/pks/internal/api"
)

var (
	ErrCyclicHierarchy = errors.New("tags: cyclic parent hierarchy")
	ErrDuplicateTag    = errors.New("tags: duplicate tag id")
)

// CyclicHierarchyError names the parent chain that loops back on itself.
type CyclicHierarchyError struct {
	Chain []int64
}

func (e *CyclicHierarchyError) Error() string {
	parts := make([]string, 0, len(e.Chain))
	for _, id := range e.Chain {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("%v: %s", ErrCyclicHierarchy, strings.Join(parts, " -> "))
}

func (e *CyclicHierarchyError) Is(target error) bool {
	return target == ErrCyclicHierarchy
}

// TreeNode is a tag with its children in flat-list order.
type TreeNode struct {
	api.Tag
	Children []*TreeNode `json:"children"`
}

// BuildTree derives the forest from a flat list. Roots have no parent; tags whose
// parent is missing are unreachable and left out. Duplicate ids and parent cycles fail.
func BuildTree(tags []api.Tag) ([]*TreeNode, error) {
	position := make(map[int64]int, len(tags))
	for i, tag := range tags {
		if _, exists := position[tag.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateTag, tag.ID)
		}
		position[tag.ID] = i
	}
	if err := detectCycle(tags, position); err != nil {
		return nil, err
	}

	children := make(map[int64][]int, len(tags))
	roots := make([]*TreeNode, 0)
	for i, tag := range tags {
		if tag.ParentID == nil {
			roots = append(roots, &TreeNode{Tag: tag, Children: []*TreeNode{}})
			continue
		}
		children[*tag.ParentID] = append(children[*tag.ParentID], i)
	}

	pending := append([]*TreeNode(nil), roots...)
	for len(pending) > 0 {
		node := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		for _, index := range children[node.ID] {
			child := &TreeNode{Tag: tags[index], Children: []*TreeNode{}}
			node.Children = append(node.Children, child)
			pending = append(pending, child)
		}
	}
	return roots, nil
}

const (
	unvisited = iota
	walking
	settled
)

func detectCycle(tags []api.Tag, position map[int64]int) error {
	marks := make([]int, len(tags))
	for start := range tags {
		if marks[start] != unvisited {
			continue
		}
		var path []int
		current := start
		for {
			marks[current] = walking
			path = append(path, current)
			parent := tags[current].ParentID
			if parent == nil {
				break
			}
			next, found := position[*parent]
			if !found || marks[next] == settled {
				break
			}
			if marks[next] == walking {
				return &CyclicHierarchyError{Chain: loopFrom(tags, path, next)}
			}
			current = next
		}
		for _, index := range path {
			marks[index] = settled
		}
	}
	return nil
}

func loopFrom(tags []api.Tag, path []int, entry int) []int64 {
	chain := make([]int64, 0, len(path)+1)
	looping := false
	for _, index := range path {
		if index == entry {
			looping = true
		}
		if looping {
			chain = append(chain, tags[index].ID)
		}
	}
	return append(chain, tags[entry].ID)
}

// Flatten lists the tree in pre-order.
func Flatten(roots []*TreeNode) []api.Tag {
	flat := make([]api.Tag, 0, len(roots))
	pending := make([]*TreeNode, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		pending = append(pending, roots[i])
	}
	for len(pending) > 0 {
		node := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		flat = append(flat, node.Tag)
		for i := len(node.Children) - 1; i >= 0; i-- {
			pending = append(pending, node.Children[i])
		}
	}
	return flat
}
