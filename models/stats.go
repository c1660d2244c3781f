// api/models/stats.go
package models

// DAUBucket is one day of the daily-active-users series.
type DAUBucket struct {
	Date        string `json:"date"`
	UniqueUsers uint64 `json:"unique_users"`
}

// TopEvent is one row of the top-event-types ranking.
type TopEvent struct {
	EventType string `json:"event_type"`
	Count     uint64 `json:"count"`
}

// RetentionWindow is one week of a cohort retention series.
type RetentionWindow struct {
	Week          int     `json:"week"`
	WeekStart     string  `json:"week_start"`
	RetainedUsers uint64  `json:"retained_users"`
	RetentionRate float64 `json:"retention_rate"`
}

// RetentionResponse reports weekly retention for the cohort of users active
// during the week starting at StartDate.
type RetentionResponse struct {
	StartDate  string            `json:"start_date"`
	CohortSize uint64            `json:"cohort_size"`
	Retention  []RetentionWindow `json:"retention"`
}
