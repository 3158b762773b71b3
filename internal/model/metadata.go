package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LoadMetadata reads a model_metadata.json file and fills defaults.
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := meta.normalize(); err != nil {
		return nil, fmt.Errorf("invalid metadata %s: %w", path, err)
	}
	return &meta, nil
}

// normalize checks the NCHW input contract and fills names and image size.
func (m *Metadata) normalize() error {
	if len(m.InputShape) != 4 || m.InputShape[1] != 3 {
		return fmt.Errorf("input_shape must be [N,3,H,W], got %v", m.InputShape)
	}
	if m.InputShape[2] != m.InputShape[3] {
		return fmt.Errorf("input must be square, got %dx%d", m.InputShape[3], m.InputShape[2])
	}
	if len(m.Classes) == 0 {
		return errors.New("classes must not be empty")
	}
	if len(m.OutputShape) == 0 {
		return errors.New("output_shape must not be empty")
	}
	if m.ImageSize == 0 {
		m.ImageSize = int(m.InputShape[2])
	}
	if int64(m.ImageSize) != m.InputShape[2] {
		return fmt.Errorf("image_size %d does not match input_shape %v", m.ImageSize, m.InputShape)
	}
	if m.InputName == "" {
		m.InputName = "images"
	}
	if m.OutputName == "" {
		m.OutputName = "output0"
	}
	return nil
}

func (m *Metadata) inputLen() int {
	return volume(m.InputShape)
}

func (m *Metadata) outputLen() int {
	return volume(m.OutputShape)
}

func volume(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}
