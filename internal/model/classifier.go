package model

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"
)

// ClassifierOptions configures a single-label classification model.
type ClassifierOptions struct {
	ModelPath    string
	MetadataPath string
	PoolSize     int
	DrainTimeout time.Duration
}

// Classifier runs a YOLOv8-cls export with output [1, nc].
type Classifier struct {
	Metadata Metadata
	runner   runner
}

func LoadClassifier(opts ClassifierOptions) (*Classifier, error) {
	meta, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}
	if n := meta.outputLen(); n != len(meta.Classes) {
		return nil, fmt.Errorf("classifier output has %d values for %d classes", n, len(meta.Classes))
	}

	pool, err := NewSessionPool(opts.ModelPath, meta, opts.PoolSize, opts.DrainTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier %s: %w", opts.ModelPath, err)
	}
	return &Classifier{Metadata: *meta, runner: pool}, nil
}

func (c *Classifier) Names() []string {
	return c.Metadata.Classes
}

// Classify center-crops img, runs the model and picks the top-1 class.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (*Classification, error) {
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}

	input := toCHW(centerSquare(img), c.Metadata.ImageSize)
	output, err := c.runner.Run(ctx, input)
	if err != nil {
		return nil, err
	}

	probs := output[:len(c.Metadata.Classes)]
	if c.Metadata.ApplySoftmax {
		probs = softmax(probs)
	}
	top := argmax(probs)
	return &Classification{Top1: top, Top1Conf: probs[top]}, nil
}

func (c *Classifier) Close() error {
	return c.runner.Close()
}

func softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// argmax returns the index of the largest value, the first one on ties.
func argmax(values []float32) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
