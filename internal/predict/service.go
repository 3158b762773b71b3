package predict

import (
	"context"
	"time"

	"github.com/Brownie44l1/acne-api/internal/imageproc"
	"github.com/Brownie44l1/acne-api/internal/logger"
)

// Service runs one upload through normalization, detection and severity
// classification. The models are shared and read-only; Service holds no
// per-request state.
type Service struct {
	detection *DetectionAdapter
	severity  *SeverityAdapter
	maxPixels int
	logger    *logger.Logger
}

// Options tunes a Service.
type Options struct {
	Confidence float32 // detection threshold
	MaxPixels  int     // decoded image size limit, 0 for imageproc.DefaultMaxPixels
}

func NewService(d Detector, c Classifier, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Service{
		detection: NewDetectionAdapter(d, opts.Confidence),
		severity:  NewSeverityAdapter(c),
		maxPixels: opts.MaxPixels,
		logger:    log,
	}
}

// Predict returns the assembled response, or a *ValidationError,
// *DecodeError or *InferenceError. There are no partial results.
func (s *Service) Predict(ctx context.Context, data []byte) (*Response, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Msg: "uploaded image is empty"}
	}

	start := time.Now()
	norm, err := imageproc.Normalize(data, s.maxPixels)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	counts := ClassCounts{}
	detections, err := s.detection.Detect(ctx, norm.Image, counts)
	if err != nil {
		return nil, err
	}

	severity, err := s.severity.Classify(ctx, norm.Image)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Prediction complete",
		"format", norm.Format,
		"width", norm.Width,
		"height", norm.Height,
		"orientation", norm.Orientation,
		"detections", len(detections),
		"severity", severity.Label,
		"duration", time.Since(start),
	)

	return Assemble(norm.Width, norm.Height, *severity, detections, counts), nil
}
