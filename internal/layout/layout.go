// Package layout packs the timed events of a single day into columns.
//
// Events are grouped into overlap clusters (maximal runs of events that
// transitively intersect). Inside a cluster every event gets the lowest free
// lane, and all events share the cluster's lane count so fractional widths
// line up. Lanes beyond MaxColumns are not laid out; they are reported as
// one Overflow per cluster instead.
//
// Intervals are half-open: an event ending at 10:00 does not overlap one
// starting at 10:00. Inputs must have EndMin > StartMin.
package layout

import (
	"sort"
)

// Item is one timed event in minutes from the start of the day.
type Item struct {
	// Key breaks ties between events with identical bounds.
	Key      string
	StartMin int
	EndMin   int
}

type Options struct {
	// MaxColumns bounds the visible lanes per cluster; <= 0 means unbounded.
	MaxColumns int
}

// Positioned is an Item with its lane geometry.
type Positioned struct {
	Item
	// Index is the item's position in the slice passed to Layout.
	Index      int
	Lane       int
	LanesTotal int
}

// Overflow describes events of one cluster that did not get a visible lane.
type Overflow struct {
	StartMin int
	// Count is the number of dropped events. An overflow lane reused by
	// back-to-back events contributes each of them, so Count can exceed the
	// number of excess lanes.
	Count int
	Keys     []string
}

type Result struct {
	Items     []Positioned
	Overflows []Overflow
}

// Layout assigns lanes to items. Output order is (StartMin, EndMin, Key) and
// does not depend on the order of the input.
func Layout(items []Item, opts Options) Result {
	res := Result{
		Items:     make([]Positioned, 0, len(items)),
		Overflows: []Overflow{},
	}
	for _, cluster := range Clusters(items) {
		layoutCluster(items, cluster, opts.MaxColumns, &res)
	}
	return res
}

// Clusters returns input indices grouped into overlap clusters, each in
// sorted order.
func Clusters(items []Item) [][]int {
	order := sortedOrder(items)
	var (
		clusters [][]int
		current  []int
		end      int
	)
	for _, idx := range order {
		it := items[idx]
		if len(current) > 0 && it.StartMin >= end {
			clusters = append(clusters, current)
			current = nil
		}
		if len(current) == 0 || it.EndMin > end {
			end = it.EndMin
		}
		current = append(current, idx)
	}
	if len(current) > 0 {
		clusters = append(clusters, current)
	}
	return clusters
}

func layoutCluster(items []Item, cluster []int, maxColumns int, res *Result) {
	// laneEnds[l] is the end minute of the event last placed in lane l.
	var laneEnds []int
	lanes := make([]int, len(cluster))

	for i, idx := range cluster {
		it := items[idx]
		lane := -1
		for l, end := range laneEnds {
			if end <= it.StartMin {
				lane = l
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, it.EndMin)
		} else {
			laneEnds[lane] = it.EndMin
		}
		lanes[i] = lane
	}

	total := len(laneEnds)
	visible := total
	if maxColumns > 0 && total > maxColumns {
		visible = maxColumns
	}

	var overflow *Overflow
	for i, idx := range cluster {
		it := items[idx]
		if lanes[i] >= visible {
			if overflow == nil {
				overflow = &Overflow{StartMin: it.StartMin}
			}
			overflow.Count++
			overflow.Keys = append(overflow.Keys, it.Key)
			continue
		}
		res.Items = append(res.Items, Positioned{
			Item:       it,
			Index:      idx,
			Lane:       lanes[i],
			LanesTotal: visible,
		})
	}
	if overflow != nil {
		res.Overflows = append(res.Overflows, *overflow)
	}
}

func sortedOrder(items []Item) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := items[order[a]], items[order[b]]
		if x.StartMin != y.StartMin {
			return x.StartMin < y.StartMin
		}
		if x.EndMin != y.EndMin {
			return x.EndMin < y.EndMin
		}
		return x.Key < y.Key
	})
	return order
}
