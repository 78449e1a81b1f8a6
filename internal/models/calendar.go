package models

// CalendarCell is one slot in the fixed 6x7 month grid. Padding cells
// before day 1 and after the last day carry a zero Date and no events.
type CalendarCell struct {
	Date    DateOnly         `json:"date,omitempty"`
	Padding bool             `json:"padding"`
	Events  []PlacementEvent `json:"events,omitempty"`
}

// MonthGrid is the 42-cell calendar view for one displayed month.
type MonthGrid struct {
	Year      int            `json:"year"`
	Month     int            `json:"month"`
	Cells     []CalendarCell `json:"cells"`
	FromCache bool           `json:"-"`
}

// DayDetail lists the events surfaced for a selected day plus whether
// the day may host a new event.
type DayDetail struct {
	Date        DateOnly         `json:"date"`
	Events      []PlacementEvent `json:"events"`
	CanCreate   bool             `json:"can_create"`
	OngoingView bool             `json:"ongoing_view"`
}
