package timeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testInterval struct {
	low, high float64
	name      string
}

func (e *testInterval) Low() float64  { return e.low }
func (e *testInterval) High() float64 { return e.high }

func span(low, high float64, name string) *testInterval {
	return &testInterval{low: low, high: high, name: name}
}

// checkAVL walks the tree verifying heights, balance factors and max
// augmentation, returning the node count.
func checkAVL(t *testing.T, tree *IntervalTree[float64, *testInterval]) int {
	t.Helper()
	var walk func(n *intervalNode[float64, *testInterval]) (height int, max float64, count int)
	walk = func(n *intervalNode[float64, *testInterval]) (int, float64, int) {
		if n == nil {
			return -1, math.Inf(-1), 0
		}
		lh, lmax, lc := walk(n.left)
		rh, rmax, rc := walk(n.right)
		require.LessOrEqual(t, abs(lh-rh), 1, "unbalanced at %q", n.entry.name)
		wantHeight := lh
		if rh > wantHeight {
			wantHeight = rh
		}
		wantHeight++
		require.Equal(t, wantHeight, n.height, "stale height at %q", n.entry.name)
		wantMax := math.Max(n.high, math.Max(lmax, rmax))
		require.Equal(t, wantMax, n.max, "stale max at %q", n.entry.name)
		return n.height, wantMax, lc + rc + 1
	}
	_, _, count := walk(tree.root)
	return count
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestIntervalTreeAddValidation(t *testing.T) {
	t.Parallel()

	tree := NewIntervalTree[float64, *testInterval]()
	err := tree.Add(span(5, 5, "empty"))
	require.Error(t, err)
	err = tree.Add(span(5, 3, "inverted"))
	require.Error(t, err)
	assert.Equal(t, 0, tree.Len())
}

func TestIntervalTreeGetContainment(t *testing.T) {
	t.Parallel()

	tree := NewIntervalTree[float64, *testInterval]()
	require.NoError(t, tree.Add(span(0, 10, "wide")))
	require.NoError(t, tree.Add(span(2, 5, "mid")))
	require.NoError(t, tree.Add(span(4, 6, "late")))
	require.NoError(t, tree.Add(span(20, 30, "far")))

	ev, ok := tree.Get(1)
	require.True(t, ok)
	assert.Equal(t, "wide", ev.name)

	// multiple overlaps resolve to the largest low
	ev, ok = tree.Get(4.5)
	require.True(t, ok)
	assert.Equal(t, "late", ev.name)

	// containment is inclusive at the high end
	ev, ok = tree.Get(6)
	require.True(t, ok)
	assert.Equal(t, "late", ev.name)

	_, ok = tree.Get(15)
	assert.False(t, ok)

	_, ok = tree.Get(-1)
	assert.False(t, ok)
}

func TestIntervalTreeInfiniteDuration(t *testing.T) {
	t.Parallel()

	tree := NewIntervalTree[float64, *testInterval]()
	require.NoError(t, tree.Add(span(4, math.Inf(1), "forever")))

	ev, ok := tree.Get(1e12)
	require.True(t, ok)
	assert.Equal(t, "forever", ev.name)
	_, ok = tree.Get(3)
	assert.False(t, ok)
}

func TestIntervalTreeBalanceUnderChurn(t *testing.T) {
	t.Parallel()

	tree := NewIntervalTree[float64, *testInterval]()
	var all []*testInterval
	// ascending insert is the classic degenerate case for an unbalanced BST
	for i := 0; i < 64; i++ {
		iv := span(float64(i), float64(i)+3, "")
		all = append(all, iv)
		require.NoError(t, tree.Add(iv))
		checkAVL(t, tree)
	}
	require.Equal(t, 64, checkAVL(t, tree))

	// remove every other entry
	for i := 0; i < len(all); i += 2 {
		tree.Remove(all[i])
		checkAVL(t, tree)
	}
	require.Equal(t, 32, tree.Len())

	// the survivors still answer point queries
	ev, ok := tree.Get(1.5)
	require.True(t, ok)
	assert.Equal(t, 1.0, ev.low)
}

func TestIntervalTreeForEachAtTimeMatchesBruteForce(t *testing.T) {
	t.Parallel()

	tree := NewIntervalTree[float64, *testInterval]()
	var all []*testInterval
	for i := 0; i < 40; i++ {
		iv := span(float64(i%10), float64(i%10)+float64(i%7)+1, "")
		all = append(all, iv)
		require.NoError(t, tree.Add(iv))
	}

	for _, point := range []float64{0, 2.5, 5, 9, 12, 16, 30} {
		want := 0
		for _, iv := range all {
			if iv.low <= point && point <= iv.high {
				want++
			}
		}
		got := 0
		tree.ForEachAtTime(point, func(e *testInterval) {
			require.LessOrEqual(t, e.low, point)
			require.GreaterOrEqual(t, e.high, point)
			got++
		})
		assert.Equal(t, want, got, "point %v", point)
	}
}

func TestIntervalTreeCancel(t *testing.T) {
	t.Parallel()

	tree := NewIntervalTree[float64, *testInterval]()
	require.NoError(t, tree.Add(span(0, 100, "keep")))
	require.NoError(t, tree.Add(span(10, 20, "drop-a")))
	require.NoError(t, tree.Add(span(15, 40, "drop-b")))
	require.NoError(t, tree.Add(span(9, 12, "keep-b")))

	tree.Cancel(10)
	require.Equal(t, 2, tree.Len())
	checkAVL(t, tree)

	var names []string
	tree.ForEach(func(e *testInterval) {
		names = append(names, e.name)
	})
	assert.ElementsMatch(t, []string{"keep", "keep-b"}, names)
}

func TestIntervalTreeForEachAfter(t *testing.T) {
	t.Parallel()

	tree := NewIntervalTree[float64, *testInterval]()
	require.NoError(t, tree.Add(span(0, 5, "a")))
	require.NoError(t, tree.Add(span(5, 9, "b")))
	require.NoError(t, tree.Add(span(8, 12, "c")))

	var names []string
	tree.ForEachAfter(5, func(e *testInterval) {
		names = append(names, e.name)
	})
	assert.ElementsMatch(t, []string{"b", "c"}, names)
}
