package imagegen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mhpenta/imagen-mcp/internal/metrics"
)

const tracerName = "github.com/mhpenta/imagen-mcp"

// Settings is the orchestrator's read-only view of the server configuration.
type Settings struct {
	DefaultModel       Model
	BatchEnabled       bool
	MaxBatchSize       int
	OutputDir          string
	RecordBatchHistory bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		DefaultModel: ModelDefault,
		BatchEnabled: true,
		MaxBatchSize: 4,
		OutputDir:    "generated-images",
	}
}

// Manager turns tool requests into generated files. It owns the ledger,
// storage and scheduler it was built with; nothing is process global.
type Manager struct {
	generator ImageGenerator
	prober    Prober
	storage   Storage
	history   History
	scheduler *BatchScheduler
	settings  Settings

	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
	now     func() time.Time
}

// GenerateImage runs one predict call and saves every returned image.
// Errors are reported inside the returned result, never as a Go error.
func (m *Manager) GenerateImage(ctx context.Context, req GenerationRequest) *ToolResult {
	req = req.WithDefaults(m.settings.DefaultModel)

	ctx, span := m.tracer.Start(ctx, "imagegen.GenerateImage", trace.WithAttributes(
		attribute.String("imagen.model", req.Model.String()),
		attribute.Int("imagen.number_of_images", req.NumberOfImages),
	))
	defer span.End()

	start := time.Now()
	m.logger.Debug("starting image generation",
		zap.String("model", req.Model.String()),
		zap.Int("prompt_length", len(req.Prompt)),
		zap.Int("number_of_images", req.NumberOfImages),
	)

	result, err := m.generator.Generate(ctx, req)
	if err != nil {
		return m.failure(span, "generation failed", err, zap.String("model", req.Model.String()))
	}

	blocks := make([]ContentBlock, 0, len(result.Images)+1)
	var saved []string
	for i, img := range result.Images {
		artifact, err := m.save(ctx, req, img, i+1)
		if err != nil {
			res := m.failure(span, "saving image failed", err,
				zap.String("model", req.Model.String()),
				zap.Strings("saved", saved),
			)
			return withSavedFiles(res, saved)
		}
		saved = append(saved, displayPath(artifact.Path))
		blocks = append(blocks, TextBlock(fmt.Sprintf("Image %d saved to `%s` (size: %s)",
			i+1, displayPath(artifact.Path), FormatBytes(artifact.Size))))
	}

	id := m.history.Record(historyEntry(OperationGenerate, req, len(result.Images)))

	m.logger.Info("generation completed",
		zap.String("model", req.Model.String()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Int("image_count", len(result.Images)),
		zap.String("history_id", id),
	)
	span.SetAttributes(attribute.Int("imagen.image_count", len(result.Images)))

	if len(result.Images) == 0 {
		return TextResult("No images were generated. The prompt may have been filtered by safety settings; try a different prompt.")
	}

	summary := TextBlock(fmt.Sprintf("Generated %d image(s) with %s for prompt: %q",
		len(result.Images), req.Model, req.Prompt))
	return &ToolResult{Content: append([]ContentBlock{summary}, blocks...)}
}

// BatchGenerate generates one image per prompt through the batch scheduler.
func (m *Manager) BatchGenerate(ctx context.Context, job BatchJob) *ToolResult {
	if !m.settings.BatchEnabled {
		return ErrorResult("Batch processing is disabled. Restart the server with batch processing enabled to use batch_generate.")
	}
	if len(job.Prompts) == 0 {
		return ErrorResult("No prompts provided. batch_generate needs at least one prompt.")
	}

	reqs := job.Requests(m.settings.DefaultModel)
	model := reqs[0].Model

	ctx, span := m.tracer.Start(ctx, "imagegen.BatchGenerate", trace.WithAttributes(
		attribute.String("imagen.model", model.String()),
		attribute.Int("imagen.prompt_count", len(reqs)),
		attribute.Int("imagen.max_batch_size", m.scheduler.Size()),
	))
	defer span.End()

	start := time.Now()
	m.logger.Info("starting batch generation",
		zap.String("model", model.String()),
		zap.Int("prompts", len(reqs)),
		zap.Int("max_batch_size", m.scheduler.Size()),
	)

	results, err := m.scheduler.Run(ctx, m.generator, reqs)
	if err != nil {
		return m.failure(span, "batch generation failed", err, zap.String("model", model.String()))
	}

	var blocks []ContentBlock
	total := 0
	for pi, result := range results {
		req := reqs[pi]
		label := fmt.Sprintf("Prompt %d (%q)", pi+1, truncatePrompt(req.Prompt))

		if len(result.Images) == 0 {
			blocks = append(blocks, TextBlock(label+": no images generated"))
		}
		for ii, img := range result.Images {
			artifact, err := m.save(ctx, req, img, ii+1)
			if err != nil {
				return m.failure(span, "saving batch image failed", err, zap.Int("prompt_index", pi))
			}
			blocks = append(blocks, TextBlock(fmt.Sprintf("%s: image %d saved to `%s` (size: %s)",
				label, ii+1, displayPath(artifact.Path), FormatBytes(artifact.Size))))
			total++
		}

		if m.settings.RecordBatchHistory {
			m.history.Record(historyEntry(OperationBatch, req, len(result.Images)))
		}
	}

	m.logger.Info("batch generation completed",
		zap.String("model", model.String()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Int("prompts", len(reqs)),
		zap.Int("image_count", total),
	)
	span.SetAttributes(attribute.Int("imagen.image_count", total))

	blocks = append(blocks, TextBlock(fmt.Sprintf("Batch complete: %d images generated from %d prompts.", total, len(reqs))))
	return &ToolResult{Content: blocks}
}

// ListModels describes every supported model.
func (m *Manager) ListModels() *ToolResult {
	var b strings.Builder
	b.WriteString("Available Imagen models:\n")
	for _, info := range Catalog {
		marker := ""
		if info.Name == m.settings.DefaultModel {
			marker = " (default)"
		}
		fmt.Fprintf(&b, "\n- %s%s: %s\n", info.Name, marker, info.DisplayName)
		fmt.Fprintf(&b, "  %s\n", info.Description)
		fmt.Fprintf(&b, "  Images per request: 1-%d, price: $%.2f per image\n",
			info.Capabilities.MaxOutputImages, info.Pricing.PerImage)
		fmt.Fprintf(&b, "  Aspect ratios: %s\n", joinStrings(info.ImageConstraints.SupportedAspectRatios))
		fmt.Fprintf(&b, "  Output formats: %s\n", joinStrings(info.ImageConstraints.SupportedFormats))
		fmt.Fprintf(&b, "  Optional parameters: %s\n", optionalParameters(info.Capabilities))
	}

	fmt.Fprintf(&b, "\nPerson generation: %s", joinStrings(PersonGenerationPolicies))

	return TextResult(b.String())
}

func joinStrings[T fmt.Stringer](values []T) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return strings.Join(out, ", ")
}

func optionalParameters(c ModelCapabilities) string {
	var params []string
	if c.SupportsNegativePrompt {
		params = append(params, "negative_prompt")
	}
	if c.SupportsSeed {
		params = append(params, "seed")
	}
	if len(params) == 0 {
		return "none"
	}
	return strings.Join(params, ", ")
}

// HealthCheck reports configuration and probes the remote API.
func (m *Manager) HealthCheck(ctx context.Context) *ToolResult {
	ctx, span := m.tracer.Start(ctx, "imagegen.HealthCheck")
	defer span.End()

	apiStatus := "not checked (no prober configured)"
	healthy := true
	if m.prober != nil {
		if err := m.prober.Probe(ctx, m.settings.DefaultModel); err != nil {
			healthy = false
			apiStatus = "FAILED: " + UserMessage(err)
			span.RecordError(err)
			m.logger.Warn("health probe failed", zap.Error(err))
		} else {
			apiStatus = "OK"
		}
	}

	outputDir, err := m.storage.Root()
	if err != nil {
		outputDir = m.settings.OutputDir + " (unresolved: " + err.Error() + ")"
	}

	batch := "disabled"
	if m.settings.BatchEnabled {
		batch = fmt.Sprintf("enabled (max %d concurrent)", m.scheduler.Size())
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	lines := []string{
		"Imagen MCP server status: " + status,
		"Default model: " + m.settings.DefaultModel.String(),
		"Batch processing: " + batch,
		"Output directory: " + outputDir,
		fmt.Sprintf("Generations recorded: %d", m.history.Len()),
		"API connectivity: " + apiStatus,
	}
	return TextResult(strings.Join(lines, "\n"))
}

// History returns every recorded generation in insertion order.
func (m *Manager) History() []HistoryEntry {
	return m.history.List()
}

// Settings returns the settings the manager was built with.
func (m *Manager) Settings() Settings {
	return m.settings
}

func (m *Manager) save(ctx context.Context, req GenerationRequest, img GeneratedImage, index int) (Artifact, error) {
	name := ResolveFilename(req.Prompt, req.Model, index, m.now())
	artifact, err := m.storage.Save(ctx, img.Data, name)
	if err != nil {
		return Artifact{}, err
	}
	m.metrics.RecordBytesWritten(artifact.Size)
	m.logger.Debug("image saved",
		zap.String("path", artifact.Path),
		zap.Int64("size", artifact.Size),
	)
	return artifact, nil
}

func (m *Manager) failure(span trace.Span, msg string, err error, fields ...zap.Field) *ToolResult {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	m.logger.Error(msg, append(fields, zap.Error(err))...)
	return ErrorResult(UserMessage(err))
}

// withSavedFiles lists images written before a save failure; they stay on disk.
func withSavedFiles(res *ToolResult, saved []string) *ToolResult {
	if len(saved) == 0 {
		return res
	}
	lines := make([]string, len(saved))
	for i, p := range saved {
		lines[i] = fmt.Sprintf("- `%s`", p)
	}
	res.Content = append(res.Content, TextBlock(fmt.Sprintf("%d image(s) were saved before the failure:\n%s",
		len(saved), strings.Join(lines, "\n"))))
	return res
}

func historyEntry(op Operation, req GenerationRequest, imageCount int) HistoryEntry {
	return HistoryEntry{
		Operation:        op,
		Prompt:           req.Prompt,
		Model:            req.Model,
		NumberOfImages:   req.NumberOfImages,
		AspectRatio:      req.AspectRatio,
		PersonGeneration: req.PersonGeneration,
		NegativePrompt:   req.NegativePrompt,
		Seed:             req.Seed,
		ImageCount:       imageCount,
	}
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
