package ai

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"countertime/internal/config"
	"countertime/internal/dto"
	"countertime/internal/logger"
	"countertime/internal/services/ai/coco"
)

// DetectorService finds people in frames with an SSD MobileNet network.
type DetectorService struct {
	net        gocv.Net
	ready      bool
	modelPath  string
	configPath string
	filter     coco.Filter
	logger     *logger.Logger
}

// NewDetectorService loads the network. A missing model is reported by
// Ready and by every Detect call.
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		filter:     coco.NewFilter(config.DetectClasses, config.DetectionThreshold),
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
	}
	return service
}

func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Ready reports whether the network loaded.
func (s *DetectorService) Ready() bool {
	return s.ready
}

// Detect returns the wanted detections in mat, boxes clamped to the frame.
func (s *DetectorService) Detect(mat gocv.Mat) ([]dto.DetectionResult, error) {
	if !s.ready {
		return nil, fmt.Errorf("detection network not initialized")
	}
	if mat.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	cols, rows := mat.Cols(), mat.Rows()
	detections := output.Reshape(1, output.Total()/7)
	defer detections.Close()

	var results []dto.DetectionResult
	for i := 0; i < detections.Rows(); i++ {
		confidence := float64(detections.GetFloatAt(i, 2))
		label := coco.Label(int(detections.GetFloatAt(i, 1)))
		if !s.filter.Keep(label, confidence) {
			continue
		}

		box := image.Rect(
			int(detections.GetFloatAt(i, 3)*float32(cols)),
			int(detections.GetFloatAt(i, 4)*float32(rows)),
			int(detections.GetFloatAt(i, 5)*float32(cols)),
			int(detections.GetFloatAt(i, 6)*float32(rows)),
		)
		box, ok := coco.Clamp(box, cols, rows)
		if !ok {
			continue
		}

		results = append(results, dto.DetectionResult{
			Label:      label,
			Confidence: confidence,
			X:          box.Min.X,
			Y:          box.Min.Y,
			Width:      box.Dx(),
			Height:     box.Dy(),
		})
	}
	return results, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	if s.ready {
		s.ready = false
		return s.net.Close()
	}
	return nil
}
