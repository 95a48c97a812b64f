package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"countertime/internal/config"
	"countertime/internal/dto"
	"countertime/internal/logger"
	"countertime/internal/repository"
	"countertime/internal/services/analysis"
	"countertime/internal/zone"
)

// RunsHandler lists recent runs, newest first. ?limit= caps the list.
func RunsHandler(runner *analysis.Runner, runs repository.RunRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := runs.GetAll(atoiDefault(r.URL.Query().Get("limit"), 50))
		if err != nil {
			logger.Error("Error querying runs: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := dto.RunsData{Runs: list}
		if cur, _, ok := runner.Current(); ok {
			if !cur.Finished() {
				data.Active = cur.ID
			}
			// The stored row lags behind a live run.
			for i := range data.Runs {
				if data.Runs[i].ID == cur.ID {
					data.Runs[i] = cur
				}
			}
		}
		writeJSON(w, http.StatusOK, data, logger)
	}
}

// DeleteRunHandler removes a finished run, its visits and snapshot files.
func DeleteRunHandler(runner *analysis.Runner, runs repository.RunRepository, snapshots repository.SnapshotRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("run")
		if id == "" {
			http.Error(w, "run parameter is required", http.StatusBadRequest)
			return
		}
		if cur, _, ok := runner.Current(); ok && cur.ID == id && !cur.Finished() {
			http.Error(w, "Run is still in progress", http.StatusConflict)
			return
		}

		files, err := snapshots.GetByRunID(id)
		if err != nil {
			logger.Error("Error listing snapshots of run %s: %v", id, err)
		}
		for _, f := range files {
			if err := os.Remove(f.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warning("Error deleting snapshot %s: %v", f.Filename, err)
			}
		}

		if err := runs.Delete(id); err != nil {
			logger.Error("Error deleting run %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		logger.Info("Run %s deleted", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ZonesHandler lists the configured counters in match order.
func ZonesHandler(zones *zone.Set, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make([]dto.ZoneInfo, 0, zones.Len())
		for _, z := range zones.Zones() {
			info := dto.ZoneInfo{Name: z.Name, Polygon: make([][2]int, 0, len(z.Polygon))}
			for _, p := range z.Polygon {
				info.Polygon = append(info.Polygon, [2]int{p.X, p.Y})
			}
			out = append(out, info)
		}
		writeJSON(w, http.StatusOK, out, logger)
	}
}

// SnapshotsHandler lists the entry snapshots of a run (?run=, default the
// latest run).
func SnapshotsHandler(reports *ReportService, snapshots repository.SnapshotRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, _, ok := reports.load(w, r, logger)
		if !ok {
			return
		}
		list, err := snapshots.GetByRunID(run.ID)
		if err != nil {
			logger.Error("Error querying snapshots: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := dto.SnapshotsData{RunID: run.ID, Snapshots: list, Length: len(list)}
		for _, s := range list {
			data.Size += s.FileSize
		}
		writeJSON(w, http.StatusOK, data, logger)
	}
}

// ViewSnapshotHandler serves a single snapshot named by the "image" query
// parameter.
func ViewSnapshotHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.SnapshotDirectory, filepath.Base(image)))
	}
}
