package dto

import (
	"countertime/internal/models"
	"countertime/internal/report"
)

// ReportData is the JSON payload of a run report.
type ReportData struct {
	Run     *models.Run             `json:"run"`
	Rows    []report.Row            `json:"rows"`
	Summary []report.CounterSummary `json:"summary"`
	Message string                  `json:"message,omitempty"`
}

// RunsData lists recent runs.
type RunsData struct {
	Runs   []models.Run `json:"runs"`
	Active string       `json:"active,omitempty"`
}

// ZoneInfo describes a configured counter polygon.
type ZoneInfo struct {
	Name    string   `json:"name"`
	Polygon [][2]int `json:"polygon"`
}

// SnapshotsData is a payload for the snapshot gallery of one run.
type SnapshotsData struct {
	RunID     string            `json:"runId"`
	Snapshots []models.Snapshot `json:"snapshots"`
	Size      int64             `json:"size"`
	Length    int               `json:"length"`
}
