package layout

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hm(h, m int) int { return h*60 + m }

func lanesByKey(res Result) map[string]Positioned {
	out := make(map[string]Positioned, len(res.Items))
	for _, p := range res.Items {
		out[p.Key] = p
	}
	return out
}

func TestLayout_Empty(t *testing.T) {
	res := Layout(nil, Options{MaxColumns: 3})
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Overflows)
}

func TestLayout_SingleEvent(t *testing.T) {
	res := Layout([]Item{{Key: "a", StartMin: hm(9, 0), EndMin: hm(10, 0)}}, Options{MaxColumns: 3})
	require.Len(t, res.Items, 1)
	assert.Equal(t, 0, res.Items[0].Lane)
	assert.Equal(t, 1, res.Items[0].LanesTotal)
}

func TestLayout_ThreeWayOverlapWithTwoColumns(t *testing.T) {
	items := []Item{
		{Key: "event1", StartMin: hm(9, 0), EndMin: hm(10, 0)},
		{Key: "event2", StartMin: hm(9, 30), EndMin: hm(10, 30)},
		{Key: "event3", StartMin: hm(9, 45), EndMin: hm(10, 15)},
	}
	res := Layout(items, Options{MaxColumns: 2})

	got := lanesByKey(res)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got["event1"].Lane)
	assert.Equal(t, 1, got["event2"].Lane)
	assert.Equal(t, 2, got["event1"].LanesTotal)
	assert.Equal(t, 2, got["event2"].LanesTotal)

	require.Len(t, res.Overflows, 1)
	assert.Equal(t, 1, res.Overflows[0].Count)
	assert.Equal(t, hm(9, 45), res.Overflows[0].StartMin)
	assert.Equal(t, []string{"event3"}, res.Overflows[0].Keys)
}

func TestLayout_BackToBackShareLane(t *testing.T) {
	items := []Item{
		{Key: "b", StartMin: hm(10, 0), EndMin: hm(11, 0)},
		{Key: "a", StartMin: hm(9, 0), EndMin: hm(10, 0)},
	}
	res := Layout(items, Options{MaxColumns: 3})
	require.Len(t, res.Items, 2)
	for _, p := range res.Items {
		assert.Equal(t, 0, p.Lane, p.Key)
		assert.Equal(t, 1, p.LanesTotal, p.Key)
	}
	assert.Len(t, Clusters(items), 2)
	assert.Equal(t, "a", res.Items[0].Key)
	assert.Equal(t, 1, res.Items[0].Index)
}

func TestLayout_LaneReuseInsideCluster(t *testing.T) {
	// a spans the morning, b and c follow each other beside it.
	items := []Item{
		{Key: "a", StartMin: hm(8, 0), EndMin: hm(12, 0)},
		{Key: "b", StartMin: hm(9, 0), EndMin: hm(10, 0)},
		{Key: "c", StartMin: hm(10, 0), EndMin: hm(11, 0)},
	}
	res := Layout(items, Options{})
	got := lanesByKey(res)
	assert.Equal(t, 0, got["a"].Lane)
	assert.Equal(t, 1, got["b"].Lane)
	assert.Equal(t, 1, got["c"].Lane)
	for _, p := range res.Items {
		assert.Equal(t, 2, p.LanesTotal)
	}
	assert.Len(t, Clusters(items), 1)
}

func TestLayout_ClusterWidthsAreIndependent(t *testing.T) {
	items := []Item{
		{Key: "a", StartMin: hm(8, 0), EndMin: hm(9, 0)},
		{Key: "b", StartMin: hm(8, 30), EndMin: hm(9, 0)},
		{Key: "c", StartMin: hm(13, 0), EndMin: hm(14, 0)},
	}
	got := lanesByKey(Layout(items, Options{MaxColumns: 4}))
	assert.Equal(t, 2, got["a"].LanesTotal)
	assert.Equal(t, 2, got["b"].LanesTotal)
	assert.Equal(t, 1, got["c"].LanesTotal)
}

func TestLayout_UnboundedColumns(t *testing.T) {
	var items []Item
	for i := 0; i < 6; i++ {
		items = append(items, Item{Key: fmt.Sprintf("e%d", i), StartMin: hm(9, 0), EndMin: hm(10, 0)})
	}
	res := Layout(items, Options{MaxColumns: 0})
	assert.Len(t, res.Items, 6)
	assert.Empty(t, res.Overflows)
	for i, p := range res.Items {
		assert.Equal(t, fmt.Sprintf("e%d", i), p.Key)
		assert.Equal(t, i, p.Lane)
		assert.Equal(t, 6, p.LanesTotal)
	}
}

func TestLayout_TiesBrokenByKey(t *testing.T) {
	items := []Item{
		{Key: "zeta", StartMin: hm(9, 0), EndMin: hm(10, 0)},
		{Key: "alpha", StartMin: hm(9, 0), EndMin: hm(10, 0)},
	}
	got := lanesByKey(Layout(items, Options{MaxColumns: 1}))
	require.Len(t, got, 1)
	assert.Contains(t, got, "alpha")
}

func randomItems(r *rand.Rand, n int) []Item {
	items := make([]Item, n)
	for i := range items {
		start := r.Intn(20 * 60)
		dur := 1 + r.Intn(180)
		// Duplicate bounds are frequent on purpose.
		if i > 0 && r.Intn(5) == 0 {
			start, dur = items[i-1].StartMin, items[i-1].EndMin-items[i-1].StartMin
		}
		items[i] = Item{Key: fmt.Sprintf("k%03d", i), StartMin: start, EndMin: start + dur}
	}
	return items
}

func TestLayout_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		items := randomItems(r, 1+r.Intn(30))
		maxCols := 1 + r.Intn(4)
		res := Layout(items, Options{MaxColumns: maxCols})

		// Bounds.
		for _, p := range res.Items {
			require.GreaterOrEqual(t, p.Lane, 0)
			require.Less(t, p.Lane, p.LanesTotal)
			require.LessOrEqual(t, p.LanesTotal, maxCols)
			require.Equal(t, items[p.Index].Key, p.Key)
		}

		// Same lane means disjoint intervals.
		for i := range res.Items {
			for j := i + 1; j < len(res.Items); j++ {
				a, b := res.Items[i], res.Items[j]
				if a.Lane != b.Lane {
					continue
				}
				overlap := a.StartMin < b.EndMin && b.StartMin < a.EndMin
				require.False(t, overlap, "round %d: %s and %s share lane %d", round, a.Key, b.Key, a.Lane)
			}
		}

		// Every input is either placed or counted in an overflow.
		hidden := 0
		for _, o := range res.Overflows {
			require.Positive(t, o.Count)
			require.Len(t, o.Keys, o.Count)
			hidden += o.Count
		}
		require.Equal(t, len(items), len(res.Items)+hidden)

		// Shared width inside each cluster.
		clusterOf := make(map[int]int)
		for c, idxs := range Clusters(items) {
			for _, idx := range idxs {
				clusterOf[idx] = c
			}
		}
		width := make(map[int]int)
		for _, p := range res.Items {
			c := clusterOf[p.Index]
			if w, ok := width[c]; ok {
				require.Equal(t, w, p.LanesTotal)
			}
			width[c] = p.LanesTotal
		}
	}
}

func TestLayout_OverflowMatchesExcessLanes(t *testing.T) {
	// Five simultaneous events: each excess lane holds exactly one event.
	var items []Item
	for i := 0; i < 5; i++ {
		items = append(items, Item{Key: fmt.Sprintf("e%d", i), StartMin: hm(12, 0), EndMin: hm(13, i)})
	}
	res := Layout(items, Options{MaxColumns: 3})
	require.Len(t, res.Overflows, 1)
	assert.Equal(t, 5-3, res.Overflows[0].Count)
	assert.Len(t, res.Items, 3)
}

func TestLayout_OverflowCountsEventsOfReusedLane(t *testing.T) {
	items := []Item{
		{Key: "a", StartMin: hm(9, 0), EndMin: hm(12, 0)},
		{Key: "b", StartMin: hm(9, 0), EndMin: hm(12, 0)},
		{Key: "c", StartMin: hm(9, 30), EndMin: hm(10, 0)},
		{Key: "d", StartMin: hm(10, 0), EndMin: hm(11, 0)},
	}
	res := Layout(items, Options{MaxColumns: 2})

	// c and d share the third lane; both are hidden.
	require.Len(t, res.Items, 2)
	assert.Equal(t, []string{"a", "b"}, []string{res.Items[0].Key, res.Items[1].Key})
	require.Len(t, res.Overflows, 1)
	assert.Equal(t, Overflow{StartMin: hm(9, 30), Count: 2, Keys: []string{"c", "d"}}, res.Overflows[0])
}

func TestLayout_DeterministicUnderShuffle(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		items := randomItems(r, 25)
		want := lanesByKey(Layout(items, Options{MaxColumns: 3}))

		shuffled := append([]Item(nil), items...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := lanesByKey(Layout(shuffled, Options{MaxColumns: 3}))

		require.Len(t, got, len(want))
		for k, p := range want {
			require.Equal(t, p.Lane, got[k].Lane, k)
			require.Equal(t, p.LanesTotal, got[k].LanesTotal, k)
		}
	}
}
