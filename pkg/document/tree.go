package document

import (
	"encoding/json"
	"fmt"
)

type treeNode struct {
	id       string
	name     string
	parent   string // "" for root nodes
	children []string
}

// Forest is the collection tree, stored as an arena of nodes keyed by id
// with parent pointers and ordered child-id lists. Insert, move and delete
// are O(depth) index updates; the cycle check on move walks parent links.
// Every operation validates its arguments before touching any state, so a
// failed call leaves the forest unchanged. A Forest is not safe for
// concurrent use; the owning room serializes access to it.
//
// The JSON form is the nested {id, name, children} shape clients see.
type Forest struct {
	roots []string
	nodes map[string]*treeNode
}

// NewForest returns an empty forest.
func NewForest() *Forest {
	return &Forest{
		roots: []string{},
		nodes: make(map[string]*treeNode),
	}
}

// Len returns the number of nodes in the forest.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Contains reports whether a node with the given id exists.
func (f *Forest) Contains(id string) bool {
	_, ok := f.nodes[id]
	return ok
}

// Name returns the name of the node with the given id.
func (f *Forest) Name(id string) (string, bool) {
	n, ok := f.nodes[id]
	if !ok {
		return "", false
	}
	return n.name, true
}

// Insert appends a new node as the last child of parentID, or as a new
// root when parentID is empty.
func (f *Forest) Insert(parentID, id, name string) error {
	if _, ok := f.nodes[id]; ok {
		return fmt.Errorf("collection %s already exists: %w", id, ErrInvalidOperation)
	}
	if parentID != "" {
		parent, ok := f.nodes[parentID]
		if !ok {
			return fmt.Errorf("parent collection %s: %w", parentID, ErrNotFound)
		}
		parent.children = append(parent.children, id)
	} else {
		f.roots = append(f.roots, id)
	}
	f.nodes[id] = &treeNode{id: id, name: name, parent: parentID, children: []string{}}
	return nil
}

// Rename replaces the name of the node with the given id. A missing id is
// a no-op; the return value lets callers surface "not found" where their
// contract requires it.
func (f *Forest) Rename(id, name string) bool {
	n, ok := f.nodes[id]
	if !ok {
		return false
	}
	n.name = name
	return true
}

// SubtreeIDs returns id plus every descendant id. The set is empty when id
// is absent.
func (f *Forest) SubtreeIDs(id string) map[string]struct{} {
	ids := make(map[string]struct{})
	if _, ok := f.nodes[id]; !ok {
		return ids
	}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids[cur] = struct{}{}
		stack = append(stack, f.nodes[cur].children...)
	}
	return ids
}

// DeleteSubtree removes the node with the given id and all of its
// descendants. A missing id is a no-op.
func (f *Forest) DeleteSubtree(id string) {
	node, ok := f.nodes[id]
	if !ok {
		return
	}
	for victim := range f.SubtreeIDs(id) {
		delete(f.nodes, victim)
	}
	f.detach(node)
}

// Move detaches the subtree rooted at id and reattaches it as the last
// child of newParentID, or as a new root when newParentID is empty. Moving
// a node onto itself fails with ErrInvalidOperation; moving it under one
// of its own descendants fails with ErrCycleDetected.
func (f *Forest) Move(id, newParentID string) error {
	if id == "" {
		return fmt.Errorf("missing collection id: %w", ErrInvalidOperation)
	}
	if id == newParentID {
		return fmt.Errorf("cannot move collection %s into itself: %w", id, ErrInvalidOperation)
	}
	node, ok := f.nodes[id]
	if !ok {
		return fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	if newParentID != "" {
		if _, ok := f.nodes[newParentID]; !ok {
			return fmt.Errorf("parent collection %s: %w", newParentID, ErrNotFound)
		}
		// Walk parent links upward from the target; hitting the moved
		// node means the target lives inside the subtree being moved.
		for cur := newParentID; cur != ""; cur = f.nodes[cur].parent {
			if cur == id {
				return fmt.Errorf("collection %s is inside the subtree of %s: %w", newParentID, id, ErrCycleDetected)
			}
		}
	}

	f.detach(node)
	if newParentID == "" {
		f.roots = append(f.roots, id)
	} else {
		parent := f.nodes[newParentID]
		parent.children = append(parent.children, id)
	}
	node.parent = newParentID
	return nil
}

// detach removes the node from its parent's child list (or the root list)
// without deleting it from the arena.
func (f *Forest) detach(node *treeNode) {
	if node.parent == "" {
		f.roots = removeID(f.roots, node.id)
		return
	}
	parent := f.nodes[node.parent]
	parent.children = removeID(parent.children, node.id)
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Tree renders the forest in its nested client-facing form. Child order is
// insertion order.
func (f *Forest) Tree() []CollectionNode {
	return f.buildNodes(f.roots)
}

func (f *Forest) buildNodes(ids []string) []CollectionNode {
	out := make([]CollectionNode, 0, len(ids))
	for _, id := range ids {
		n := f.nodes[id]
		out = append(out, CollectionNode{
			ID:       n.id,
			Name:     n.name,
			Children: f.buildNodes(n.children),
		})
	}
	return out
}

// MarshalJSON serializes the forest as the nested node array.
func (f *Forest) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Tree())
}

// UnmarshalJSON rebuilds the arena from a nested node array. Duplicate ids
// cannot be represented and fail with ErrInvalidDocument.
func (f *Forest) UnmarshalJSON(data []byte) error {
	var roots []CollectionNode
	if err := json.Unmarshal(data, &roots); err != nil {
		return err
	}
	rebuilt := NewForest()
	for _, root := range roots {
		if err := rebuilt.addSubtree("", root); err != nil {
			return err
		}
	}
	*f = *rebuilt
	return nil
}

func (f *Forest) addSubtree(parentID string, node CollectionNode) error {
	if node.ID == "" {
		return fmt.Errorf("collection without id: %w", ErrInvalidDocument)
	}
	if _, ok := f.nodes[node.ID]; ok {
		return fmt.Errorf("duplicate collection id %s: %w", node.ID, ErrInvalidDocument)
	}
	if err := f.Insert(parentID, node.ID, node.Name); err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := f.addSubtree(node.ID, child); err != nil {
			return err
		}
	}
	return nil
}
