package users

import (
	"slices"
	"sync"
)

// Selection tracks the records an operator has checked for bulk actions.
type Selection struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[int64]struct{})}
}

// SelectAll replaces the selection with visible when checked and clears it
// otherwise. It never unions with what was selected before.
func (s *Selection) SelectAll(visible []int64, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[int64]struct{}, len(visible))
	if !checked {
		return
	}
	for _, id := range visible {
		s.ids[id] = struct{}{}
	}
}

func (s *Selection) Toggle(id int64, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checked {
		s.ids[id] = struct{}{}
		return
	}
	delete(s.ids, id)
}

func (s *Selection) Remove(id int64) {
	s.Toggle(id, false)
}

func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[int64]struct{})
}

func (s *Selection) Has(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the selected ids in ascending order.
func (s *Selection) IDs() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}

// IsAllSelected reports whether visible is non-empty and fully selected.
func (s *Selection) IsAllSelected(visible []int64) bool {
	if len(visible) == 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range visible {
		if _, ok := s.ids[id]; !ok {
			return false
		}
	}
	return true
}

func (s *Selection) IsIndeterminate(visible []int64) bool {
	return s.Len() > 0 && !s.IsAllSelected(visible)
}

// SelectionState is a point-in-time view of the selection against the
// visible page.
type SelectionState struct {
	IDs           []int64 `json:"ids"`
	AllSelected   bool    `json:"all_selected"`
	Indeterminate bool    `json:"indeterminate"`
}

func (s *Selection) State(visible []int64) SelectionState {
	return SelectionState{
		IDs:           s.IDs(),
		AllSelected:   s.IsAllSelected(visible),
		Indeterminate: s.IsIndeterminate(visible),
	}
}
