package timeline

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// IntervalEntry is anything that can live on an IntervalTree: an event
// active over the span [Low, High].
type IntervalEntry[T constraints.Ordered] interface {
	comparable
	Low() T
	High() T
}

type intervalNode[T constraints.Ordered, E IntervalEntry[T]] struct {
	entry     E
	low, high T
	max       T
	height    int
	parent    *intervalNode[T, E]
	left      *intervalNode[T, E]
	right     *intervalNode[T, E]
}

// IntervalTree is a self-balancing binary search tree of intervals, keyed by
// Low and augmented with the maximum High of each subtree so point queries
// can prune whole subtrees. It answers "which intervals contain this point"
// in better than linear time, which a flat sorted list cannot.
//
// Containment is inclusive at both ends: an interval [low, high] contains
// high itself, so a repeat with duration d still fires on the tick exactly
// d after its start.
type IntervalTree[T constraints.Ordered, E IntervalEntry[T]] struct {
	root *intervalNode[T, E]
	size int
}

// NewIntervalTree creates an empty IntervalTree.
func NewIntervalTree[T constraints.Ordered, E IntervalEntry[T]]() *IntervalTree[T, E] {
	return &IntervalTree[T, E]{}
}

func (t *IntervalTree[T, E]) Len() int {
	return t.size
}

// Add inserts the entry. The entry's span must be non-empty.
func (t *IntervalTree[T, E]) Add(entry E) error {
	if entry.High() <= entry.Low() {
		return fmt.Errorf("interval must end after it starts (low=%v high=%v)", entry.Low(), entry.High())
	}
	n := &intervalNode[T, E]{
		entry: entry,
		low:   entry.Low(),
		high:  entry.High(),
		max:   entry.High(),
	}
	if t.root == nil {
		t.root = n
	} else {
		cur := t.root
		for {
			if n.low <= cur.low {
				if cur.left == nil {
					cur.setLeft(n)
					break
				}
				cur = cur.left
			} else {
				if cur.right == nil {
					cur.setRight(n)
					break
				}
				cur = cur.right
			}
		}
	}
	t.size++
	for iter := n.parent; iter != nil; iter = iter.parent {
		iter.update()
		t.rebalance(iter)
	}
	return nil
}

// Remove takes the entry out of the tree, preserving the balance invariant.
func (t *IntervalTree[T, E]) Remove(entry E) {
	var nodes []*intervalNode[T, E]
	t.searchPoint(t.root, entry.Low(), &nodes)
	for _, n := range nodes {
		if n.entry == entry {
			t.removeNode(n)
			t.size--
			return
		}
	}
}

// Get returns the entry among all intervals containing the point whose low
// bound is largest: the most recently started interval still active there.
func (t *IntervalTree[T, E]) Get(point T) (E, bool) {
	var zero E
	var nodes []*intervalNode[T, E]
	t.searchPoint(t.root, point, &nodes)
	if len(nodes) == 0 {
		return zero, false
	}
	best := nodes[0]
	for _, n := range nodes[1:] {
		if n.low >= best.low {
			best = n
		}
	}
	return best.entry, true
}

// ForEachAtTime visits every entry whose interval contains the point.
func (t *IntervalTree[T, E]) ForEachAtTime(point T, fn func(E)) {
	var nodes []*intervalNode[T, E]
	t.searchPoint(t.root, point, &nodes)
	for _, n := range nodes {
		fn(n.entry)
	}
}

// ForEachAfter visits every entry whose interval starts at or after the
// given time.
func (t *IntervalTree[T, E]) ForEachAfter(time T, fn func(E)) {
	var nodes []*intervalNode[T, E]
	t.searchAfter(t.root, time, &nodes)
	for _, n := range nodes {
		fn(n.entry)
	}
}

// ForEach visits every entry in low order.
func (t *IntervalTree[T, E]) ForEach(fn func(E)) {
	var walk func(n *intervalNode[T, E])
	walk = func(n *intervalNode[T, E]) {
		if n == nil {
			return
		}
		walk(n.left)
		fn(n.entry)
		walk(n.right)
	}
	walk(t.root)
}

// Cancel removes every entry whose interval starts at or after the given
// time. Entries are re-located one at a time because each removal can
// restructure the tree under the collected nodes.
func (t *IntervalTree[T, E]) Cancel(after T) {
	var entries []E
	t.ForEachAfter(after, func(e E) {
		entries = append(entries, e)
	})
	for _, e := range entries {
		t.Remove(e)
	}
}

// searchPoint collects every node whose interval contains the point. A
// subtree is skipped entirely when the point exceeds its max bound, and the
// right subtree is skipped when the point precedes the node's own start.
func (t *IntervalTree[T, E]) searchPoint(n *intervalNode[T, E], point T, out *[]*intervalNode[T, E]) {
	if n == nil || point > n.max {
		return
	}
	t.searchPoint(n.left, point, out)
	if n.low <= point && point <= n.high {
		*out = append(*out, n)
	}
	if point < n.low {
		return
	}
	t.searchPoint(n.right, point, out)
}

func (t *IntervalTree[T, E]) searchAfter(n *intervalNode[T, E], time T, out *[]*intervalNode[T, E]) {
	if n == nil {
		return
	}
	if n.low >= time {
		*out = append(*out, n)
		t.searchAfter(n.left, time, out)
	}
	t.searchAfter(n.right, time, out)
}

func (t *IntervalTree[T, E]) removeNode(n *intervalNode[T, E]) {
	if n.left != nil && n.right != nil {
		// Two children: splice in the neighbor from the taller subtree so
		// the delete tends to shorten the heavier side.
		var s *intervalNode[T, E]
		if n.balance() > 0 {
			s = n.left
			for s.right != nil {
				s = s.right
			}
		} else {
			s = n.right
			for s.left != nil {
				s = s.left
			}
		}
		n.entry, n.low, n.high = s.entry, s.low, s.high
		n = s
	}
	child := n.left
	if child == nil {
		child = n.right
	}
	parent := n.parent
	t.replaceChild(n, child)
	for iter := parent; iter != nil; iter = iter.parent {
		iter.update()
		t.rebalance(iter)
	}
}

func (t *IntervalTree[T, E]) replaceChild(n, child *intervalNode[T, E]) {
	switch {
	case n.parent == nil:
		t.root = child
		if child != nil {
			child.parent = nil
		}
	case n.parent.left == n:
		n.parent.setLeft(child)
	default:
		n.parent.setRight(child)
	}
}

// rebalance rotates around the node if its children's heights differ by
// more than one. The rotation direction follows the sign of the heavier
// child's own balance, turning would-be double rotations into two singles.
func (t *IntervalTree[T, E]) rebalance(n *intervalNode[T, E]) {
	b := n.balance()
	if b > 1 {
		if n.left.balance() < 0 {
			t.rotateLeft(n.left)
		}
		t.rotateRight(n)
	} else if b < -1 {
		if n.right.balance() > 0 {
			t.rotateRight(n.right)
		}
		t.rotateLeft(n)
	}
}

func (t *IntervalTree[T, E]) rotateLeft(n *intervalNode[T, E]) {
	pivot := n.right
	parent := n.parent
	wasLeft := parent != nil && parent.left == n
	n.setRight(pivot.left)
	pivot.setLeft(n)
	if parent == nil {
		pivot.parent = nil
		t.root = pivot
	} else if wasLeft {
		parent.setLeft(pivot)
	} else {
		parent.setRight(pivot)
	}
	n.update()
	pivot.update()
}

func (t *IntervalTree[T, E]) rotateRight(n *intervalNode[T, E]) {
	pivot := n.left
	parent := n.parent
	wasLeft := parent != nil && parent.left == n
	n.setLeft(pivot.right)
	pivot.setRight(n)
	if parent == nil {
		pivot.parent = nil
		t.root = pivot
	} else if wasLeft {
		parent.setLeft(pivot)
	} else {
		parent.setRight(pivot)
	}
	n.update()
	pivot.update()
}

func (n *intervalNode[T, E]) setLeft(c *intervalNode[T, E]) {
	n.left = c
	if c != nil {
		c.parent = n
	}
}

func (n *intervalNode[T, E]) setRight(c *intervalNode[T, E]) {
	n.right = c
	if c != nil {
		c.parent = n
	}
}

func nodeHeight[T constraints.Ordered, E IntervalEntry[T]](n *intervalNode[T, E]) int {
	if n == nil {
		return -1
	}
	return n.height
}

func (n *intervalNode[T, E]) balance() int {
	return nodeHeight(n.left) - nodeHeight(n.right)
}

// update recomputes the node's height and subtree max from its children.
func (n *intervalNode[T, E]) update() {
	lh, rh := nodeHeight(n.left), nodeHeight(n.right)
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
	n.max = n.high
	if n.left != nil && n.left.max > n.max {
		n.max = n.left.max
	}
	if n.right != nil && n.right.max > n.max {
		n.max = n.right.max
	}
}
