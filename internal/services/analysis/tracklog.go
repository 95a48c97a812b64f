package analysis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"time"

	"countertime/internal/occupancy"
	"countertime/internal/services/tracking"
)

// ErrTrackLog marks a malformed track log line.
var ErrTrackLog = errors.New("invalid track log")

// TrackLogLine is one frame of a track log, stored as one JSON object per
// line:
//
//	{"t":10.0,"detections":[{"id":5,"box":[100,200,140,300]}]}
//
// T is seconds from stream start; Box is left, top, right, bottom and may be
// fractional.
type TrackLogLine struct {
	T          float64          `json:"t"`
	Detections []TrackLogDetect `json:"detections"`
}

type TrackLogDetect struct {
	ID  int       `json:"id"`
	Box []float64 `json:"box"`
}

// TrackLogReader reads frames from a track log produced by an external
// detector and tracker, or by TrackLogWriter.
type TrackLogReader struct {
	scanner *bufio.Scanner
	line    int
}

func NewTrackLogReader(r io.Reader) *TrackLogReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &TrackLogReader{scanner: s}
}

// Next returns the next frame, or io.EOF at the end of the log.
func (r *TrackLogReader) Next(ctx context.Context) (occupancy.Frame, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var l TrackLogLine
		if err := json.Unmarshal(raw, &l); err != nil {
			return occupancy.Frame{}, fmt.Errorf("%w: line %d: %v", ErrTrackLog, r.line, err)
		}
		if math.IsNaN(l.T) || math.IsInf(l.T, 0) || l.T < 0 {
			return occupancy.Frame{}, fmt.Errorf("%w: line %d: bad time %v", ErrTrackLog, r.line, l.T)
		}

		f := occupancy.Frame{
			Time:       time.Duration(math.Round(l.T * float64(time.Second))),
			Detections: make([]occupancy.Detection, 0, len(l.Detections)),
		}
		for _, d := range l.Detections {
			if len(d.Box) != 4 {
				return occupancy.Frame{}, fmt.Errorf("%w: line %d: box of track %d needs 4 values, got %d", ErrTrackLog, r.line, d.ID, len(d.Box))
			}
			f.Detections = append(f.Detections, occupancy.Detection{TrackID: d.ID, Anchor: boxAnchor(d.Box)})
		}
		return f, nil
	}
	if err := r.scanner.Err(); err != nil {
		return occupancy.Frame{}, err
	}
	return occupancy.Frame{}, io.EOF
}

// boxAnchor is the bottom-center of l, t, r, b, truncated to whole pixels.
func boxAnchor(box []float64) image.Point {
	return image.Pt(int((box[0]+box[2])/2), int(box[3]))
}

// TrackLogWriter records tracked frames so a video run can be replayed
// without decoding it again.
type TrackLogWriter struct {
	enc *json.Encoder
}

func NewTrackLogWriter(w io.Writer) *TrackLogWriter {
	return &TrackLogWriter{enc: json.NewEncoder(w)}
}

// Write appends one frame.
func (w *TrackLogWriter) Write(at time.Duration, tracks []tracking.Track) error {
	l := TrackLogLine{T: at.Seconds(), Detections: make([]TrackLogDetect, 0, len(tracks))}
	for _, t := range tracks {
		l.Detections = append(l.Detections, TrackLogDetect{
			ID:  t.ID,
			Box: []float64{float64(t.Box.Min.X), float64(t.Box.Min.Y), float64(t.Box.Max.X), float64(t.Box.Max.Y)},
		})
	}
	return w.enc.Encode(l)
}
