package schedule

import "fmt"

// Issue describes one invariant violation found by CheckIntegrity.
type Issue struct {
	RowID   string `json:"row_id,omitempty"`
	Message string `json:"message"`
}

// CheckIntegrity verifies the snapshot invariants:
// every row pairs with exactly one instructor (and vice versa), event ids are unique
// within a row, and the active week is ordered.
// INVARIANT: the state is not mutated
func (s State) CheckIntegrity() []Issue {
	var issues []Issue

	if err := s.Config.CurrentWeek.Validate(); err != nil {
		issues = append(issues, Issue{Message: err.Error()})
	}

	instructors := make(map[string]int, len(s.Instructors))
	for _, in := range s.Instructors {
		instructors[in.ID]++
	}
	rows := make(map[string]int, len(s.Rows))
	for _, r := range s.Rows {
		rows[r.ID]++
	}

	seenRow := make(map[string]bool, len(s.Rows))
	for _, r := range s.Rows {
		if seenRow[r.ID] {
			continue
		}
		seenRow[r.ID] = true
		if n := rows[r.ID]; n > 1 {
			issues = append(issues, Issue{RowID: r.ID, Message: fmt.Sprintf("row id appears %d times", n)})
		}
		if n := instructors[r.ID]; n != 1 {
			issues = append(issues, Issue{RowID: r.ID, Message: fmt.Sprintf("row has %d matching instructors", n)})
		}
	}
	for _, in := range s.Instructors {
		if rows[in.ID] == 0 {
			issues = append(issues, Issue{RowID: in.ID, Message: "instructor has no schedule row"})
		}
	}

	for _, r := range s.Rows {
		ids := make(map[string]bool)
		for _, k := range r.DayKeys() {
			for _, ev := range r.Events[k] {
				if ids[ev.ID] {
					issues = append(issues, Issue{RowID: r.ID, Message: "duplicate event id " + ev.ID})
				}
				ids[ev.ID] = true
			}
		}
	}
	return issues
}
