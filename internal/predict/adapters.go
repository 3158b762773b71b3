package predict

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/Brownie44l1/acne-api/internal/model"
)

// Detector is the object-detection model as the pipeline sees it.
type Detector interface {
	Detect(ctx context.Context, img image.Image, conf float32) ([]model.Box, error)
	Names() []string
}

// Classifier is the single-label severity model as the pipeline sees it.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (*model.Classification, error)
	Names() []string
}

// DefaultConfidence is the minimum score for a region to be reported.
const DefaultConfidence = 0.25

// Detection is one reported region.
type Detection struct {
	Box        [4]int  `json:"box"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Severity is the top-1 severity class.
type Severity struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ClassCounts maps a label to the number of detections carrying it.
type ClassCounts map[string]int

// DetectionAdapter calls the detector at a fixed threshold and shapes its
// boxes into Detections.
type DetectionAdapter struct {
	detector   Detector
	confidence float32
}

func NewDetectionAdapter(d Detector, confidence float32) *DetectionAdapter {
	return &DetectionAdapter{detector: d, confidence: confidence}
}

// Detect returns detections in detector order and adds each label to counts.
func (a *DetectionAdapter) Detect(ctx context.Context, img image.Image, counts ClassCounts) ([]Detection, error) {
	boxes, err := a.detector.Detect(ctx, img, a.confidence)
	if err != nil {
		return nil, &InferenceError{Stage: "detection", Err: err}
	}

	names := a.detector.Names()
	out := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		if b.ClassID < 0 || b.ClassID >= len(names) {
			return nil, &InferenceError{Stage: "detection", Err: fmt.Errorf("unknown class id %d", b.ClassID)}
		}
		label := names[b.ClassID]
		out = append(out, Detection{
			Box: [4]int{
				int(math.RoundToEven(b.X1)),
				int(math.RoundToEven(b.Y1)),
				int(math.RoundToEven(b.X2)),
				int(math.RoundToEven(b.Y2)),
			},
			Label:      label,
			Confidence: round4(float64(b.Confidence)),
		})
		counts[label]++
	}
	return out, nil
}

// SeverityAdapter reports the classifier's top-1 class.
type SeverityAdapter struct {
	classifier Classifier
}

func NewSeverityAdapter(c Classifier) *SeverityAdapter {
	return &SeverityAdapter{classifier: c}
}

func (a *SeverityAdapter) Classify(ctx context.Context, img image.Image) (*Severity, error) {
	res, err := a.classifier.Classify(ctx, img)
	if err != nil {
		return nil, &InferenceError{Stage: "severity", Err: err}
	}

	names := a.classifier.Names()
	if res.Top1 < 0 || res.Top1 >= len(names) {
		return nil, &InferenceError{Stage: "severity", Err: fmt.Errorf("unknown class id %d", res.Top1)}
	}
	return &Severity{
		Label:      names[res.Top1],
		Confidence: round4(float64(res.Top1Conf)),
	}, nil
}

// round4 rounds half to even at 4 decimal places.
func round4(v float64) float64 {
	return math.RoundToEven(v*1e4) / 1e4
}
