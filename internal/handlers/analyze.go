package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"countertime/internal/config"
	"countertime/internal/logger"
	"countertime/internal/services/analysis"
)

// maxUploadMemory is kept in memory while parsing an upload; the rest of the
// file is spooled to disk by net/http.
const maxUploadMemory = 32 << 20

// VideoAnalyzer builds pipelines for video files.
type VideoAnalyzer interface {
	VideoPipeline(path string, trackLog io.Writer) analysis.Pipeline
}

// AnalyzeHandler accepts POST /api/analyze with a multipart "video" file, or
// a "tracks" file holding a JSON-lines track log, and starts a run. The
// upload is removed once the run ends. Responds 202 with the run.
func AnalyzeHandler(runner *analysis.Runner, videos VideoAnalyzer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			http.Error(w, "Invalid upload", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		field, kind := "video", "video"
		if _, ok := r.MultipartForm.File["video"]; !ok {
			field, kind = "tracks", "tracks"
		}
		file, header, err := r.FormFile(field)
		if err != nil {
			http.Error(w, "A video or tracks file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		path, err := saveUpload(cfg.UploadDirectory, header.Filename, file)
		if err != nil {
			logger.Error("Failed to store upload %s: %v", header.Filename, err)
			http.Error(w, "Failed to store upload", http.StatusInternalServerError)
			return
		}
		cleanup := func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warning("Failed to remove upload %s: %v", path, err)
			}
		}

		var pipeline analysis.Pipeline
		switch {
		case kind == "tracks":
			pipeline = analysis.TrackLogPipeline(path)
		case videos != nil:
			pipeline = videos.VideoPipeline(path, nil)
		default:
			cleanup()
			http.Error(w, "Video analysis is not available", http.StatusServiceUnavailable)
			return
		}

		run, err := runner.Start(header.Filename, pipeline, cleanup)
		if errors.Is(err, analysis.ErrBusy) {
			cleanup()
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			cleanup()
			logger.Error("Failed to start analysis: %v", err)
			http.Error(w, "Failed to start analysis", http.StatusInternalServerError)
			return
		}

		logger.Info("Upload %s (%d bytes) queued as run %s", header.Filename, header.Size, run.ID)
		writeJSON(w, http.StatusAccepted, run, logger)
	}
}

func saveUpload(dir, name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
