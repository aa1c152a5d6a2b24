package imagegen

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mhpenta/imagen-mcp/internal/metrics"
)

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLogger sets a structured logger for the manager.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.With(zap.String("component", "manager"))
		}
	}
}

// WithStorage replaces the default LocalStorage rooted at Settings.OutputDir.
func WithStorage(storage Storage) ManagerOption {
	return func(m *Manager) {
		m.storage = storage
	}
}

// WithHistory replaces the default in-memory ledger.
func WithHistory(history History) ManagerOption {
	return func(m *Manager) {
		m.history = history
	}
}

// WithProber sets the probe used by HealthCheck.
func WithProber(prober Prober) ManagerOption {
	return func(m *Manager) {
		m.prober = prober
	}
}

// WithMetrics records batch chunks and written bytes on c.
func WithMetrics(c *metrics.Collector) ManagerOption {
	return func(m *Manager) {
		m.metrics = c
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// WithClock sets the time source used for filenames.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager that generates through gen.
//
// Example:
//
//	client, err := imagen.New(apiKey)
//	if err != nil {
//	    return err
//	}
//	manager := imagegen.NewManager(client, imagegen.DefaultSettings())
//
// With options:
//
//	manager := imagegen.NewManager(client, settings,
//	    imagegen.WithLogger(logger),
//	    imagegen.WithProber(prober),
//	)
func NewManager(gen ImageGenerator, settings Settings, opts ...ManagerOption) *Manager {
	if settings.DefaultModel == "" {
		settings.DefaultModel = ModelDefault
	}

	m := &Manager{
		generator: gen,
		settings:  settings,
		logger:    zap.NewNop(),
		tracer:    defaultTracer(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.storage == nil {
		m.storage = NewLocalStorage(settings.OutputDir)
	}
	if m.history == nil {
		m.history = NewMemoryHistory()
	}

	m.scheduler = NewBatchScheduler(settings.MaxBatchSize).OnChunk(func(chunk, size int) {
		m.metrics.RecordBatchChunk(size)
		m.logger.Debug("starting batch chunk", zap.Int("chunk", chunk+1), zap.Int("size", size))
	})

	return m
}
