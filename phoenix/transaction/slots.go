package transaction

import (
	"sort"

	"github.com/kysee/phoenix/phoenix/common"
)

// slots is a bounded list of items. Capacity is fixed at construction.
type slots struct {
	items    []*Item
	capacity int
}

func newSlots(capacity int) slots {
	return slots{items: make([]*Item, 0, capacity), capacity: capacity}
}

func (s *slots) push(it *Item) error {
	if len(s.items) >= s.capacity {
		return common.ErrMaximumNotesExceeded
	}
	s.items = append(s.items, it)
	return nil
}

// swapRemove removes item i by moving the last item into its place.
// It is O(1) and does not preserve order.
func (s *slots) swapRemove(i int) (*Item, bool) {
	if i < 0 || i >= len(s.items) {
		return nil, false
	}
	removed := s.items[i]
	last := len(s.items) - 1
	s.items[i] = s.items[last]
	s.items[last] = nil
	s.items = s.items[:last]
	return removed, true
}

func (s *slots) len() int {
	return len(s.items)
}

func (s *slots) sort() {
	sort.SliceStable(s.items, func(i, j int) bool {
		return less(s.items[i], s.items[j])
	})
}

// clones returns deep copies of the active items.
func (s *slots) clones() []*Item {
	out := make([]*Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

func (s *slots) clone() slots {
	c := newSlots(s.capacity)
	c.items = append(c.items, s.clones()...)
	return c
}
