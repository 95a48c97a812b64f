package dto

// Event types pushed to viewers and the message broker.
const (
	EventEntry   = "entry"
	EventExit    = "exit"
	EventRun     = "run"
	EventPreview = "preview"
)

// VisitEvent announces a customer entering or leaving a counter.
// Times are seconds from stream start; exit fields are zero on entry.
type VisitEvent struct {
	Type       string  `json:"type"`
	RunID      string  `json:"run_id"`
	CustomerID int     `json:"customer_id"`
	Counter    string  `json:"counter"`
	EntryTime  float64 `json:"entry_time"`
	ExitTime   float64 `json:"exit_time,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// RunEvent announces a run status change.
type RunEvent struct {
	Type   string `json:"type"`
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Frames int    `json:"frames"`
	Visits int    `json:"visits"`
	Error  string `json:"error,omitempty"`
}

// PreviewFrame carries one annotated frame as base64 JPEG.
type PreviewFrame struct {
	Type  string  `json:"type"`
	RunID string  `json:"run_id"`
	Time  float64 `json:"time"`
	Image string  `json:"image"`
}
