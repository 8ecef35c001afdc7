package mapengine

// DayFilter holds the selected day. The zero value shows every day.
type DayFilter struct {
	day      int
	selected bool
}

// Select restricts the map to one day; nil selects all days.
func (f *DayFilter) Select(day *int) {
	if day == nil {
		f.day, f.selected = 0, false
		return
	}
	f.day, f.selected = *day, true
}

// Selected returns the selected day and whether a single day is selected.
func (f *DayFilter) Selected() (int, bool) {
	return f.day, f.selected
}

func (f *DayFilter) Matches(dayNumber int) bool {
	return !f.selected || f.day == dayNumber
}
