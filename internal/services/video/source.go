package video

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"gocv.io/x/gocv"
)

var ErrOpen = errors.New("could not open video")

// FileSource decodes a video file frame by frame.
type FileSource struct {
	path    string
	capture *gocv.VideoCapture
	fps     float64
	index   int
	last    time.Duration
}

// Open opens path for decoding.
func Open(path string) (*FileSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrOpen, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w at %s", ErrOpen, path)
	}
	return &FileSource{
		path:    path,
		capture: capture,
		fps:     capture.Get(gocv.VideoCaptureFPS),
	}, nil
}

func (s *FileSource) Path() string { return s.path }

// FPS is the nominal frame rate reported by the container, 0 if unknown.
func (s *FileSource) FPS() float64 { return s.fps }

// FrameCount is the container's frame count estimate, 0 if unknown.
func (s *FileSource) FrameCount() int {
	return int(s.capture.Get(gocv.VideoCaptureFrameCount))
}

// Read decodes the next frame into mat and returns its presentation time.
// It returns io.EOF after the last frame.
func (s *FileSource) Read(mat *gocv.Mat) (time.Duration, error) {
	if ok := s.capture.Read(mat); !ok || mat.Empty() {
		return 0, io.EOF
	}
	s.index++

	at := s.frameTime()
	// Some containers report 0 or a stale position; never go backwards.
	if at < s.last {
		at = s.last
	}
	s.last = at
	return at, nil
}

// frameTime prefers the decoder position and falls back to index / fps.
func (s *FileSource) frameTime() time.Duration {
	msec := s.capture.Get(gocv.VideoCapturePosMsec)
	if msec > 0 && !math.IsNaN(msec) {
		return time.Duration(math.Round(msec * float64(time.Millisecond)))
	}
	if s.fps > 0 {
		return time.Duration(math.Round(float64(s.index-1) / s.fps * float64(time.Second)))
	}
	return s.last
}

func (s *FileSource) Close() error {
	return s.capture.Close()
}
