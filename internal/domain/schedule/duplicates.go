package schedule

// duplicateKey identifies events that are the same session regardless of id or colour.
type duplicateKey struct {
	rowID    string
	dayKey   string
	title    string
	time     string
	location string
}

// RemoveDuplicates drops every event that repeats an earlier (rowID, dayKey, title, time, location).
// The first occurrence in row order, then ascending day key, then bucket order is kept.
// Rows are mutated in place.
// POST: returns the number of events removed; a second call returns 0
func RemoveDuplicates(rows []Row) int {
	seen := make(map[duplicateKey]bool)
	removed := 0
	for i := range rows {
		row := &rows[i]
		for _, k := range row.DayKeys() {
			kept := row.Events[k][:0:0]
			for _, ev := range row.Events[k] {
				key := duplicateKey{rowID: row.ID, dayKey: k, title: ev.Title, time: ev.Time, location: ev.Location}
				if seen[key] {
					removed++
					continue
				}
				seen[key] = true
				kept = append(kept, ev)
			}
			row.Events[k] = kept
		}
	}
	return removed
}
