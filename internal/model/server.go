package model

import (
	"context"
	"fmt"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

// runner executes one forward pass: flat input in, flat output out.
type runner interface {
	Run(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

// InitRuntime loads the onnxruntime shared library and creates the global
// environment. libPath may be empty to use the library's default lookup.
func InitRuntime(libPath string) error {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// DestroyRuntime tears down the global environment. Call it after every
// model has been closed.
func DestroyRuntime() error {
	return ort.DestroyEnvironment()
}

type session struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func newSession(modelPath string, meta *Metadata) (*session, error) {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	s, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &session{session: s, inputTensor: inputTensor, outputTensor: outputTensor}, nil
}

func (s *session) destroy() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
}

// SessionPool owns a fixed number of sessions over the same model file.
// A session's tensors are bound at creation, so each session serves one
// forward pass at a time.
type SessionPool struct {
	sessions     chan *session
	all          []*session
	inLen        int
	outLen       int
	drainTimeout time.Duration
}

// DefaultDrainTimeout bounds how long Close waits for busy sessions.
const DefaultDrainTimeout = 30 * time.Second

// NewSessionPool creates size sessions for modelPath and warms each one up.
// drainTimeout bounds Close; zero means DefaultDrainTimeout.
func NewSessionPool(modelPath string, meta *Metadata, size int, drainTimeout time.Duration) (*SessionPool, error) {
	if size < 1 {
		size = 1
	}
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}

	p := &SessionPool{
		sessions:     make(chan *session, size),
		inLen:        meta.inputLen(),
		outLen:       meta.outputLen(),
		drainTimeout: drainTimeout,
	}
	for i := 0; i < size; i++ {
		s, err := newSession(modelPath, meta)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		p.all = append(p.all, s)
		p.sessions <- s
	}

	if err := p.warmup(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// warmup runs one zero input through every session so the first request
// does not pay for lazy allocation inside the runtime.
func (p *SessionPool) warmup() error {
	zero := make([]float32, p.inLen)
	for i := range p.all {
		if _, err := p.Run(context.Background(), zero); err != nil {
			return fmt.Errorf("warmup session %d: %w", i, err)
		}
	}
	return nil
}

// Run copies input into a free session, runs it and returns a copy of the
// output.
func (p *SessionPool) Run(ctx context.Context, input []float32) ([]float32, error) {
	if len(input) != p.inLen {
		return nil, fmt.Errorf("expected %d input values, got %d", p.inLen, len(input))
	}

	var s *session
	select {
	case s = <-p.sessions:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.sessions <- s }()

	copy(s.inputTensor.GetData(), input)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, p.outLen)
	copy(out, s.outputTensor.GetData())
	return out, nil
}

// Close waits for in-flight runs to hand their sessions back, then destroys
// them. Sessions still busy after the drain timeout are left alive and
// reported in the error.
func (p *SessionPool) Close() error {
	if p == nil || len(p.all) == 0 {
		return nil
	}

	timer := time.NewTimer(p.drainTimeout)
	defer timer.Stop()

	total := len(p.all)
	p.all = nil
	for idle := 0; idle < total; idle++ {
		select {
		case s := <-p.sessions:
			s.destroy()
		case <-timer.C:
			return fmt.Errorf("%d of %d sessions still busy after %v", total-idle, total, p.drainTimeout)
		}
	}
	return nil
}
