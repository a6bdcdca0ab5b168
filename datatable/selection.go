package datatable

import "fmt"

// Selection indices are relative to the displayed page. They are cleared on
// every page, filter, sort or search change.

// ToggleRow flips the selection of the displayed row at index i.
func (t *Table) ToggleRow(i int) error {
	return t.updateSelection(func(s *tableState) (bool, error) {
		if i < 0 || i >= len(s.rows) {
			return false, fmt.Errorf("%w: %d", ErrInvalidRow, i)
		}
		if _, ok := s.selected[i]; ok {
			delete(s.selected, i)
		} else {
			s.selected[i] = struct{}{}
		}
		return true, nil
	})
}

// SetRowSelected selects or deselects the displayed row at index i.
func (t *Table) SetRowSelected(i int, selected bool) error {
	return t.updateSelection(func(s *tableState) (bool, error) {
		if i < 0 || i >= len(s.rows) {
			return false, fmt.Errorf("%w: %d", ErrInvalidRow, i)
		}
		_, was := s.selected[i]
		if was == selected {
			return false, nil
		}
		if selected {
			s.selected[i] = struct{}{}
		} else {
			delete(s.selected, i)
		}
		return true, nil
	})
}

// ToggleAllOnPage selects every displayed row, or clears the selection when
// all of them are already selected.
func (t *Table) ToggleAllOnPage() error {
	return t.updateSelection(func(s *tableState) (bool, error) {
		if len(s.rows) == 0 {
			return false, nil
		}
		if len(s.selected) == len(s.rows) {
			s.selected = make(map[int]struct{})
			return true, nil
		}
		for i := range s.rows {
			s.selected[i] = struct{}{}
		}
		return true, nil
	})
}

// ClearSelection deselects every row.
func (t *Table) ClearSelection() error {
	return t.updateSelection(func(s *tableState) (bool, error) {
		if len(s.selected) == 0 {
			return false, nil
		}
		s.selected = make(map[int]struct{})
		return true, nil
	})
}

// AllSelected reports whether every displayed row is selected.
func (t *Table) AllSelected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.st.rows) > 0 && len(t.st.selected) == len(t.st.rows)
}

// IsSelected reports whether the displayed row at index i is selected.
func (t *Table) IsSelected(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.st.selected[i]
	return ok
}

// Selected returns the selected indices in ascending order.
func (t *Table) Selected() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedIndices(t.st.selected)
}

// SelectedRows resolves the selection against the displayed rows.
func (t *Table) SelectedRows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := sortedIndices(t.st.selected)
	out := make([]Row, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.st.rows[i])
	}
	return out
}

func (t *Table) updateSelection(fn func(s *tableState) (bool, error)) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if !t.cfg.RowSelection {
		t.mu.Unlock()
		return ErrSelectionDisabled
	}
	changed, err := fn(&t.st)
	if err != nil || !changed {
		t.mu.Unlock()
		return err
	}
	t.noticeLocked(notice{selection: true})
	t.mu.Unlock()

	t.deliver()
	return nil
}
