package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"countertime/internal/dto"
	"countertime/internal/logger"
	"countertime/internal/models"
	"countertime/internal/report"
	"countertime/internal/repository"
	"countertime/internal/services/analysis"
)

var errNoRun = errors.New("run not found")

// ReportService resolves the rows of a run: the live ledger for the run in
// progress, stored visits for older runs.
type ReportService struct {
	runner *analysis.Runner
	runs   repository.RunRepository
	visits repository.VisitRepository
}

func NewReportService(runner *analysis.Runner, runs repository.RunRepository, visits repository.VisitRepository) *ReportService {
	return &ReportService{runner: runner, runs: runs, visits: visits}
}

// Load returns the run with the given id, or the latest when id is empty.
func (s *ReportService) Load(id string) (*models.Run, []report.Row, error) {
	if cur, session, ok := s.runner.Current(); ok && (id == "" || id == cur.ID) {
		return &cur, report.FromLedger(session.Ledger()), nil
	}

	var (
		run *models.Run
		err error
	)
	if id == "" {
		run, err = s.runs.Latest()
	} else {
		run, err = s.runs.GetByID(id)
	}
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, errNoRun
	}

	visits, err := s.visits.GetAll(&models.VisitFilter{RunID: run.ID})
	if err != nil {
		return nil, nil, err
	}
	return run, report.FromStored(visits), nil
}

func (s *ReportService) counters() []string {
	zones := s.runner.Zones().Zones()
	names := make([]string, 0, len(zones))
	for _, z := range zones {
		names = append(names, z.Name)
	}
	return names
}

func (s *ReportService) load(w http.ResponseWriter, r *http.Request, logger *logger.Logger) (*models.Run, []report.Row, bool) {
	run, rows, err := s.Load(r.URL.Query().Get("run"))
	if errors.Is(err, errNoRun) {
		http.Error(w, "No analysis run found", http.StatusNotFound)
		return nil, nil, false
	}
	if err != nil {
		logger.Error("Failed to load report: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, nil, false
	}
	return run, rows, true
}

// ReportHandler serves GET /api/report[?run=<id>] as JSON.
func ReportHandler(s *ReportService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, rows, ok := s.load(w, r, logger)
		if !ok {
			return
		}
		data := dto.ReportData{
			Run:     run,
			Rows:    rows,
			Summary: report.Summarize(rows, s.counters()),
		}
		if len(rows) == 0 {
			data.Message = report.EmptyMessage
		}
		writeJSON(w, http.StatusOK, data, logger)
	}
}

// ReportCSVHandler serves GET /api/report.csv as a file download.
func ReportCSVHandler(s *ReportService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, rows, ok := s.load(w, r, logger)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
		if err := report.WriteCSV(w, rows); err != nil {
			logger.Error("Error writing CSV report: %v", err)
		}
	}
}

// ReportChartHandler serves GET /api/report/chart as an HTML bar chart.
func ReportChartHandler(s *ReportService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, rows, ok := s.load(w, r, logger)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		title := fmt.Sprintf("%s (%s)", run.Source, run.ID)
		if err := report.RenderChart(w, title, report.Summarize(rows, s.counters())); err != nil {
			logger.Error("Error rendering chart: %v", err)
		}
	}
}
