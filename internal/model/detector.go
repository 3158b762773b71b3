package model

import (
	"context"
	"fmt"
	"image"
	"sort"
	"time"
)

// DetectorOptions configures a YOLOv8 detection model.
type DetectorOptions struct {
	ModelPath     string
	MetadataPath  string
	IoU           float32
	MaxDetections int
	PoolSize      int
	DrainTimeout  time.Duration
}

// Detector runs a YOLOv8 detection export whose output is [1, 4+nc, anchors]:
// rows 0-3 hold cx, cy, w, h in input pixels, the rest per-class scores.
type Detector struct {
	Metadata      Metadata
	runner        runner
	iou           float32
	maxDetections int
	numAnchors    int
}

// LoadDetector reads metadata and opens a session pool for the model.
func LoadDetector(opts DetectorOptions) (*Detector, error) {
	meta, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}
	if err := checkDetectorShape(meta); err != nil {
		return nil, err
	}

	pool, err := NewSessionPool(opts.ModelPath, meta, opts.PoolSize, opts.DrainTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to load detector %s: %w", opts.ModelPath, err)
	}
	return newDetector(*meta, pool, opts), nil
}

func newDetector(meta Metadata, r runner, opts DetectorOptions) *Detector {
	if opts.IoU <= 0 {
		opts.IoU = 0.7
	}
	if opts.MaxDetections <= 0 {
		opts.MaxDetections = 300
	}
	return &Detector{
		Metadata:      meta,
		runner:        r,
		iou:           opts.IoU,
		maxDetections: opts.MaxDetections,
		numAnchors:    int(meta.OutputShape[2]),
	}
}

func checkDetectorShape(meta *Metadata) error {
	if len(meta.OutputShape) != 3 {
		return fmt.Errorf("detector output_shape must be [1, 4+nc, anchors], got %v", meta.OutputShape)
	}
	if want := int64(4 + len(meta.Classes)); meta.OutputShape[1] != want {
		return fmt.Errorf("detector output has %d rows, %d classes need %d", meta.OutputShape[1], len(meta.Classes), want)
	}
	return nil
}

// Names returns the class table indexed by class id.
func (d *Detector) Names() []string {
	return d.Metadata.Classes
}

// Detect returns boxes scoring above conf, after per-class NMS, ordered by
// confidence.
func (d *Detector) Detect(ctx context.Context, img image.Image, conf float32) ([]Box, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	input := toCHW(img, d.Metadata.ImageSize)
	output, err := d.runner.Run(ctx, input)
	if err != nil {
		return nil, err
	}

	candidates := decodeDetections(output, len(d.Metadata.Classes), d.numAnchors, conf, d.Metadata.ImageSize, b.Dx(), b.Dy())
	boxes := nonMaxSuppression(candidates, d.iou)
	if len(boxes) > d.maxDetections {
		boxes = boxes[:d.maxDetections]
	}
	return boxes, nil
}

func (d *Detector) Close() error {
	return d.runner.Close()
}

// decodeDetections turns raw head output into boxes in original image
// coordinates, keeping candidates whose best class score exceeds conf.
func decodeDetections(out []float32, numClasses, anchors int, conf float32, inputSize, imgW, imgH int) []Box {
	if len(out) < (4+numClasses)*anchors {
		return nil
	}

	sx := float64(imgW) / float64(inputSize)
	sy := float64(imgH) / float64(inputSize)

	var boxes []Box
	for i := 0; i < anchors; i++ {
		classID, score := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if v := out[(4+c)*anchors+i]; classID < 0 || v > score {
				classID, score = c, v
			}
		}
		if score <= conf {
			continue
		}

		cx := float64(out[i])
		cy := float64(out[anchors+i])
		w := float64(out[2*anchors+i])
		h := float64(out[3*anchors+i])

		boxes = append(boxes, Box{
			X1:         limit((cx-w/2)*sx, float64(imgW)),
			Y1:         limit((cy-h/2)*sy, float64(imgH)),
			X2:         limit((cx+w/2)*sx, float64(imgW)),
			Y2:         limit((cy+h/2)*sy, float64(imgH)),
			Confidence: score,
			ClassID:    classID,
		})
	}
	return boxes
}

func limit(v, hi float64) float64 {
	return min(max(v, 0), hi)
}

// nonMaxSuppression keeps the highest scoring box of every overlapping
// group of the same class. The result is sorted by confidence, descending.
func nonMaxSuppression(boxes []Box, threshold float32) []Box {
	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Box, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].ClassID != sorted[i].ClassID {
				continue
			}
			if iou(sorted[i], sorted[j]) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b Box) float32 {
	x1 := max(a.X1, b.X1)
	y1 := max(a.Y1, b.Y1)
	x2 := min(a.X2, b.X2)
	y2 := min(a.Y2, b.Y2)

	inter := max(0, x2-x1) * max(0, y2-y1)
	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - inter
	if union <= 0 {
		return 0
	}
	return float32(inter / union)
}
