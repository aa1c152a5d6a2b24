package imagegen

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
)

// MockImageGenerator is a mock implementation of ImageGenerator.
type MockImageGenerator struct {
	GenerateFunc func(ctx context.Context, req GenerationRequest) (*GenerationResult, error)

	calls atomic.Int64
	mu    sync.Mutex
	seen  []GenerationRequest
}

func (m *MockImageGenerator) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.seen = append(m.seen, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &GenerationResult{Request: req}, nil
}

func (m *MockImageGenerator) Calls() int {
	return int(m.calls.Load())
}

func (m *MockImageGenerator) Requests() []GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GenerationRequest, len(m.seen))
	copy(out, m.seen)
	return out
}

// MockProber is a mock implementation of Prober.
type MockProber struct {
	Err   error
	Calls int
}

func (p *MockProber) Probe(ctx context.Context, model Model) error {
	p.Calls++
	return p.Err
}

// imagesFor returns a generator that answers with req.NumberOfImages payloads.
func imagesFor(payload string) func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	return func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
		res := &GenerationResult{Request: req}
		for i := 0; i < req.NumberOfImages; i++ {
			res.Images = append(res.Images, GeneratedImage{
				Data:     base64.StdEncoding.EncodeToString([]byte(payload + req.Prompt)),
				MIMEType: string(req.OutputFormat),
				Index:    i,
			})
		}
		return res, nil
	}
}
