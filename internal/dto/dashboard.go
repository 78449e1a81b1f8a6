package dto

// DashboardEvent is a simplified event entry for dashboard payloads.
type DashboardEvent struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Company   string `json:"company"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Status    string `json:"status"`
}

// AdminDashboardResponse aggregates portal-wide placement activity.
type AdminDashboardResponse struct {
	TotalEvents     int              `json:"totalEvents"`
	ScheduledEvents int              `json:"scheduledEvents"`
	OngoingEvents   int              `json:"ongoingEvents"`
	CompletedEvents int              `json:"completedEvents"`
	CancelledEvents int              `json:"cancelledEvents"`
	TotalStudents   int              `json:"totalStudents"`
	TotalSelections int              `json:"totalSelections"`
	Upcoming        []DashboardEvent `json:"upcoming"`
}

// StudentDashboardResponse is the personalised student view.
type StudentDashboardResponse struct {
	Upcoming      []DashboardEvent `json:"upcoming"`
	Ongoing       []DashboardEvent `json:"ongoing"`
	Notifications int              `json:"notifications"`
}
