package models

import "time"

// Visit is a persisted closed visit. Times are seconds from stream start
// at full precision; rounding happens only when reporting.
type Visit struct {
	ID         int64   `json:"id"`
	RunID      string  `json:"run_id"`
	CustomerID int     `json:"customer_id"`
	Counter    string  `json:"counter"`
	EntryTime  float64 `json:"entry_time"`
	ExitTime   float64 `json:"exit_time"`
	Duration   float64 `json:"duration"`
	Reason     string  `json:"reason"`
}

// Snapshot records an entry image saved to disk.
type Snapshot struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	CustomerID int       `json:"customer_id"`
	Counter    string    `json:"counter"`
	At         float64   `json:"at"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"filepath"`
	FileSize   int64     `json:"filesize"`
	CreatedAt  time.Time `json:"created_at"`
}

// VisitFilter narrows visit queries. Zero values match everything.
type VisitFilter struct {
	RunID   string
	Counter string
	Limit   int
	Offset  int
}
