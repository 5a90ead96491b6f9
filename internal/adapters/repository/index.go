package repository

import (
	"math/rand/v2"
	"time"
)

// Treap ordered index of report ids.
//
// Ordering: CreatedAt DESC, then id DESC, which matches List. "before"
// means the key comes earlier in an in-order traversal.

type indexKey struct {
	created int64 // unix nanoseconds
	id      string
}

func keyOf(id string, createdAt time.Time) indexKey {
	return indexKey{created: createdAt.UnixNano(), id: id}
}

func before(a, b indexKey) bool {
	if a.created != b.created {
		return a.created > b.created
	}
	return a.id > b.id
}

// treap node
type node struct {
	key   indexKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k indexKey, prio uint64) *node {
	if n == nil {
		return &node{key: k, prio: prio, size: 1}
	}
	if before(k, n.key) {
		n.left = insert(n.left, k, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k indexKey) *node {
	if n == nil {
		return nil
	}
	switch {
	case k == n.key:
		// Rotate the higher priority child up until n is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case before(k, n.key):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// collectFirst appends up to limit ids in index order.
func collectFirst(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectFirst(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.key.id)
	}
	if len(*out) < limit {
		collectFirst(n.right, limit, out)
	}
}

// index is a treap over report keys. It is not safe for concurrent use.
type index struct {
	root *node
}

func (ix *index) put(k indexKey) {
	ix.root = insert(ix.root, k, rand.Uint64())
}

func (ix *index) remove(k indexKey) {
	ix.root = deleteNode(ix.root, k)
}

func (ix *index) first(limit int) []string {
	out := make([]string, 0, min(limit, nsize(ix.root)))
	collectFirst(ix.root, limit, &out)
	return out
}

func (ix *index) len() int { return nsize(ix.root) }
