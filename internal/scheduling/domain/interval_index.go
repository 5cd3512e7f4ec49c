package domain

import (
	"time"
)

// IntervalIndex is an augmented AVL tree over entity intervals.
// Nodes are ordered by (start, id) and carry the maximum end of their subtree,
// so overlap queries skip every subtree that ends before the query begins.
type IntervalIndex struct {
	root *indexNode
	byID map[string]TimeInterval
}

type indexNode struct {
	entity ScheduledEntity
	maxEnd time.Time
	height int
	left   *indexNode
	right  *indexNode
}

// NewIntervalIndex builds an index holding entities.
func NewIntervalIndex(entities ...ScheduledEntity) *IntervalIndex {
	idx := &IntervalIndex{byID: make(map[string]TimeInterval, len(entities))}
	for _, e := range entities {
		idx.Insert(e)
	}
	return idx
}

// Len returns the number of indexed entities.
func (x *IntervalIndex) Len() int {
	return len(x.byID)
}

// Insert adds an entity; an existing entity with the same id is replaced.
// Entities with malformed intervals are ignored.
func (x *IntervalIndex) Insert(e ScheduledEntity) {
	if !e.Interval.Valid() {
		return
	}
	if _, ok := x.byID[e.ID]; ok {
		x.Remove(e.ID)
	}
	x.root = insertNode(x.root, e.Clone())
	x.byID[e.ID] = e.Interval
}

// Remove deletes the entity with id, reporting whether it was present.
func (x *IntervalIndex) Remove(id string) bool {
	iv, ok := x.byID[id]
	if !ok {
		return false
	}
	x.root = removeNode(x.root, iv.Start, id)
	delete(x.byID, id)
	return true
}

// Get returns the indexed entity with id.
func (x *IntervalIndex) Get(id string) (ScheduledEntity, bool) {
	iv, ok := x.byID[id]
	if !ok {
		return ScheduledEntity{}, false
	}
	n := x.root
	for n != nil {
		c := compareKey(iv.Start, id, n.entity)
		switch {
		case c == 0:
			return n.entity.Clone(), true
		case c < 0:
			n = n.left
		default:
			n = n.right
		}
	}
	return ScheduledEntity{}, false
}

// QueryOverlapping returns every entity overlapping iv, ordered by start then id.
func (x *IntervalIndex) QueryOverlapping(iv TimeInterval) []ScheduledEntity {
	out := make([]ScheduledEntity, 0)
	if x.root == nil || !iv.Valid() {
		return out
	}
	queryNode(x.root, iv, &out)
	return out
}

// All returns every entity in (start, id) order.
func (x *IntervalIndex) All() []ScheduledEntity {
	out := make([]ScheduledEntity, 0, len(x.byID))
	walkNode(x.root, &out)
	return out
}

func queryNode(n *indexNode, iv TimeInterval, out *[]ScheduledEntity) {
	if n == nil || !n.maxEnd.After(iv.Start) {
		return
	}
	queryNode(n.left, iv, out)
	if n.entity.Interval.Overlaps(iv) {
		*out = append(*out, n.entity.Clone())
	}
	// Right subtree starts at or after this node; nothing there can overlap
	// once this node already starts at or after the query end.
	if n.entity.Interval.Start.Before(iv.End) {
		queryNode(n.right, iv, out)
	}
}

func walkNode(n *indexNode, out *[]ScheduledEntity) {
	if n == nil {
		return
	}
	walkNode(n.left, out)
	*out = append(*out, n.entity.Clone())
	walkNode(n.right, out)
}

func compareKey(start time.Time, id string, e ScheduledEntity) int {
	if c := start.Compare(e.Interval.Start); c != 0 {
		return c
	}
	switch {
	case id < e.ID:
		return -1
	case id > e.ID:
		return 1
	}
	return 0
}

func insertNode(n *indexNode, e ScheduledEntity) *indexNode {
	if n == nil {
		return &indexNode{entity: e, maxEnd: e.Interval.End, height: 1}
	}
	if compareKey(e.Interval.Start, e.ID, n.entity) < 0 {
		n.left = insertNode(n.left, e)
	} else {
		n.right = insertNode(n.right, e)
	}
	return rebalance(n)
}

func removeNode(n *indexNode, start time.Time, id string) *indexNode {
	if n == nil {
		return nil
	}
	switch c := compareKey(start, id, n.entity); {
	case c < 0:
		n.left = removeNode(n.left, start, id)
	case c > 0:
		n.right = removeNode(n.right, start, id)
	default:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		succ := n.right
		for succ.left != nil {
			succ = succ.left
		}
		n.entity = succ.entity
		n.right = removeNode(n.right, succ.entity.Interval.Start, succ.entity.ID)
	}
	return rebalance(n)
}

func height(n *indexNode) int {
	if n == nil {
		return 0
	}
	return n.height
}

func update(n *indexNode) {
	n.height = 1 + max(height(n.left), height(n.right))
	n.maxEnd = n.entity.Interval.End
	if n.left != nil && n.left.maxEnd.After(n.maxEnd) {
		n.maxEnd = n.left.maxEnd
	}
	if n.right != nil && n.right.maxEnd.After(n.maxEnd) {
		n.maxEnd = n.right.maxEnd
	}
}

func rotateRight(n *indexNode) *indexNode {
	l := n.left
	n.left = l.right
	l.right = n
	update(n)
	update(l)
	return l
}

func rotateLeft(n *indexNode) *indexNode {
	r := n.right
	n.right = r.left
	r.left = n
	update(n)
	update(r)
	return r
}

func rebalance(n *indexNode) *indexNode {
	update(n)
	balance := height(n.left) - height(n.right)
	switch {
	case balance > 1:
		if height(n.left.left) < height(n.left.right) {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	case balance < -1:
		if height(n.right.right) < height(n.right.left) {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}
