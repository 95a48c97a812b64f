package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"gocv.io/x/gocv"

	"countertime/internal/config"
	"countertime/internal/dto"
	"countertime/internal/logger"
	"countertime/internal/occupancy"
	"countertime/internal/services/ai"
	"countertime/internal/services/analysis"
	"countertime/internal/services/annotate"
	"countertime/internal/services/storage"
	"countertime/internal/services/tracking"
	"countertime/internal/services/video"
	"countertime/internal/zone"
)

const progressEvery = 250

// Manager turns video files into occupancy sessions: decode, detect, track,
// annotate, snapshot and preview.
type Manager struct {
	detector      *ai.DetectorService
	bufferService *storage.BufferService
	hub           analysis.Broadcaster
	zones         *zone.Set
	logger        *logger.Logger

	maxDistance     float64
	maxAge          int
	persist         bool
	previewEveryNth int
}

// NewManager wires the video pipeline. bufferService and hub may be nil to
// skip snapshots and live preview.
func NewManager(detector *ai.DetectorService, bufferService *storage.BufferService, hub analysis.Broadcaster, zones *zone.Set, config *config.Config, logger *logger.Logger) *Manager {
	return &Manager{
		detector:        detector,
		bufferService:   bufferService,
		hub:             hub,
		zones:           zones,
		logger:          logger,
		maxDistance:     config.TrackMaxDistance,
		maxAge:          config.TrackMaxAge,
		persist:         config.TrackPersist,
		previewEveryNth: max(config.PreviewEveryNth, 0),
	}
}

// VideoPipeline returns a pipeline analysing the file at path. When
// trackLog is set every tracked frame is also recorded there.
func (m *Manager) VideoPipeline(path string, trackLog io.Writer) analysis.Pipeline {
	return func(ctx context.Context, session *analysis.Session) error {
		if !m.detector.Ready() {
			return errors.New("detection network not initialized")
		}

		src, err := video.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		m.logger.Info("Analysing %s: %.2f fps, ~%d frames", path, src.FPS(), src.FrameCount())

		var recorder *analysis.TrackLogWriter
		if trackLog != nil {
			recorder = analysis.NewTrackLogWriter(trackLog)
		}

		p := &framePipeline{
			manager: m,
			session: session,
			tracker: tracking.NewTracker(m.maxDistance, m.maxAge, src.FPS(), m.persist),
			log:     recorder,
		}

		mat := gocv.NewMat()
		defer mat.Close()

		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			at, err := src.Read(&mat)
			if errors.Is(err, io.EOF) {
				session.Finish()
				return nil
			}
			if err != nil {
				return err
			}
			if err := p.process(&mat, at); err != nil {
				return err
			}
		}
	}
}

type framePipeline struct {
	manager *Manager
	session *analysis.Session
	tracker *tracking.Tracker
	log     *analysis.TrackLogWriter
	index   int
}

func (p *framePipeline) process(mat *gocv.Mat, at time.Duration) error {
	m := p.manager
	p.index++

	detections, err := m.detector.Detect(*mat)
	if err != nil {
		return fmt.Errorf("frame %d: %w", p.index, err)
	}
	boxes := make([]image.Rectangle, 0, len(detections))
	for _, d := range detections {
		boxes = append(boxes, d.Box())
	}
	tracks, err := p.tracker.Update(boxes)
	if err != nil {
		return fmt.Errorf("frame %d: track: %w", p.index, err)
	}

	if p.log != nil {
		if err := p.log.Write(at, tracks); err != nil {
			return fmt.Errorf("write track log: %w", err)
		}
	}

	res, err := p.session.Step(occupancy.Frame{Time: at, Detections: analysis.Detections(tracks)})
	if err != nil {
		return err
	}

	if p.index%progressEvery == 0 {
		m.logger.Info("Run %s: %d frames, %d visits", p.session.RunID(), p.index, p.session.Ledger().Len())
	}

	wantPreview := m.hub != nil && m.previewEveryNth > 0 && p.index%m.previewEveryNth == 0
	wantSnapshots := m.bufferService != nil && len(res.Opened) > 0
	if !wantPreview && !wantSnapshots {
		return nil
	}

	active := make(map[int]bool)
	for _, v := range p.session.Open() {
		active[v.TrackID] = true
	}
	if err := annotate.Zones(mat, m.zones.Zones()); err != nil {
		m.logger.Warning("%v", err)
	}
	if err := annotate.Tracks(mat, tracks, active); err != nil {
		m.logger.Warning("%v", err)
	}

	if wantSnapshots {
		p.snapshot(*mat, res.Opened)
	}
	if wantPreview {
		p.preview(*mat, at)
	}
	return nil
}

// snapshot saves the counter region of the annotated frame for every entry.
func (p *framePipeline) snapshot(mat gocv.Mat, opened []occupancy.OpenVisit) {
	m := p.manager
	for _, v := range opened {
		z, ok := m.zones.Lookup(v.Zone)
		if !ok {
			continue
		}
		data, err := annotate.CropJPEG(mat, z.Bounds())
		if err != nil {
			m.logger.Warning("Snapshot of customer %d failed: %v", v.TrackID, err)
			continue
		}
		m.bufferService.AddSnapshot(dto.BufferedSnapshot{
			RunID:      p.session.RunID(),
			CustomerID: v.TrackID,
			Counter:    v.Zone,
			At:         v.EntryTime.Seconds(),
			Data:       data,
		})
	}
}

func (p *framePipeline) preview(mat gocv.Mat, at time.Duration) {
	m := p.manager
	data, err := annotate.EncodeJPEG(mat)
	if err != nil {
		m.logger.Error("Preview encode failed: %v", err)
		return
	}
	msg, err := json.Marshal(dto.PreviewFrame{
		Type:  dto.EventPreview,
		RunID: p.session.RunID(),
		Time:  at.Seconds(),
		Image: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return
	}
	m.hub.Broadcast(msg)
}
