package imagegen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 6, 1, 12, 30, 45, 123_000_000, time.UTC)

func newTestManager(t *testing.T, gen ImageGenerator, mutate func(*Settings), opts ...ManagerOption) (*Manager, string) {
	t.Helper()

	dir := t.TempDir()
	settings := DefaultSettings()
	settings.OutputDir = dir
	if mutate != nil {
		mutate(&settings)
	}

	opts = append([]ManagerOption{
		WithLogger(zap.NewNop()),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewManager(gen, settings, opts...), settings.OutputDir
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestManager_GenerateImage_BlocksAndHistory(t *testing.T) {
	for k := MinImagesPerRequest; k <= MaxImagesPerRequest; k++ {
		t.Run(fmt.Sprintf("%d images", k), func(t *testing.T) {
			gen := &MockImageGenerator{GenerateFunc: imagesFor("png-bytes")}
			m, dir := newTestManager(t, gen, nil)

			res := m.GenerateImage(context.Background(), GenerationRequest{
				Prompt:         "A red fox in snow",
				NumberOfImages: k,
			})

			require.False(t, res.IsError, res.Text())
			assert.Len(t, res.Content, 1+k)
			assert.Contains(t, res.Content[0].Text, fmt.Sprintf("Generated %d image(s)", k))
			for i := 1; i <= k; i++ {
				assert.Contains(t, res.Content[i].Text, fmt.Sprintf("Image %d saved to `", i))
			}

			history := m.History()
			require.Len(t, history, 1)
			assert.Equal(t, k, history[0].ImageCount)
			assert.Equal(t, OperationGenerate, history[0].Operation)
			assert.Len(t, listFiles(t, dir), k)
			assert.Equal(t, 1, gen.Calls())
		})
	}
}

func TestManager_GenerateImage_TwoDistinctFiles(t *testing.T) {
	gen := &MockImageGenerator{GenerateFunc: imagesFor("data")}
	m, dir := newTestManager(t, gen, nil)

	res := m.GenerateImage(context.Background(), GenerationRequest{Prompt: "x", NumberOfImages: 2})
	require.False(t, res.IsError, res.Text())

	files := listFiles(t, dir)
	require.Len(t, files, 2)
	assert.NotEqual(t, files[0], files[1])
	assert.Equal(t, "imagen-3.0-generate-002_2025-06-01T12-30-45-123Z_x_1.png", files[0])
	assert.Equal(t, "imagen-3.0-generate-002_2025-06-01T12-30-45-123Z_x_2.png", files[1])

	data, err := os.ReadFile(filepath.Join(dir, files[0]))
	require.NoError(t, err)
	assert.Equal(t, "datax", string(data))

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].ImageCount)
	assert.Equal(t, 2, history[0].NumberOfImages)
	assert.Equal(t, "x", history[0].Prompt)
}

func TestManager_GenerateImage_ZeroImages(t *testing.T) {
	gen := &MockImageGenerator{}
	m, dir := newTestManager(t, gen, nil)

	res := m.GenerateImage(context.Background(), GenerationRequest{Prompt: "filtered", NumberOfImages: 3})

	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Contains(t, res.Content[0].Text, "No images were generated")
	assert.Contains(t, res.Content[0].Text, "try a different prompt")

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].ImageCount)
	assert.Equal(t, 3, history[0].NumberOfImages)
	assert.Empty(t, listFiles(t, dir))
}

func TestManager_GenerateImage_AppliesDefaults(t *testing.T) {
	gen := &MockImageGenerator{}
	m, _ := newTestManager(t, gen, func(s *Settings) { s.DefaultModel = ModelImagen4Fast })

	m.GenerateImage(context.Background(), GenerationRequest{Prompt: "defaults"})

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, ModelImagen4Fast, reqs[0].Model)
	assert.Equal(t, 1, reqs[0].NumberOfImages)
	assert.Equal(t, AspectRatio1x1, reqs[0].AspectRatio)
	assert.Equal(t, PersonGenerationAllowAdult, reqs[0].PersonGeneration)
	assert.Equal(t, OutputFormatPNG, reqs[0].OutputFormat)
}

func TestManager_GenerateImage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "authentication",
			err:     &RemoteAPIError{StatusCode: 403, Category: CategoryAuthentication, Body: "forbidden"},
			wantMsg: "check that your API key",
		},
		{
			name:    "remote rate limit",
			err:     &RemoteAPIError{StatusCode: 429, Category: CategoryRateLimit, Body: "slow down"},
			wantMsg: "wait a moment",
		},
		{
			name:    "local rate limit",
			err:     &RateLimitError{Model: "imagen-3.0-generate-002", LimitType: "requests", RetryAfter: 3 * time.Second},
			wantMsg: "Please wait 3s",
		},
		{
			name:    "content policy",
			err:     &RemoteAPIError{StatusCode: 400, Category: CategoryContentPolicy, Body: "SAFETY"},
			wantMsg: "rephrase your prompt",
		},
		{
			name:    "generic",
			err:     &RemoteAPIError{StatusCode: 500, Category: CategoryGeneric, Body: "boom"},
			wantMsg: "API error (status 500): boom",
		},
		{
			name:    "unclassified",
			err:     errors.New("socket closed"),
			wantMsg: "Image generation failed: socket closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &MockImageGenerator{
				GenerateFunc: func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
					return nil, tt.err
				},
			}
			m, _ := newTestManager(t, gen, nil)

			res := m.GenerateImage(context.Background(), GenerationRequest{Prompt: "p"})

			assert.True(t, res.IsError)
			assert.Contains(t, res.Text(), tt.wantMsg)
			assert.Empty(t, m.History())
		})
	}
}

func TestManager_GenerateImage_FilesystemError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	gen := &MockImageGenerator{GenerateFunc: imagesFor("img")}
	m, _ := newTestManager(t, gen, func(s *Settings) { s.OutputDir = filepath.Join(blocker, "out") })

	res := m.GenerateImage(context.Background(), GenerationRequest{Prompt: "p"})

	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "Failed to save image")
}

// failAfterStorage saves the first n images, then fails every save.
type failAfterStorage struct {
	*LocalStorage
	n     int
	saves int
}

func (s *failAfterStorage) Save(ctx context.Context, data, filename string) (Artifact, error) {
	s.saves++
	if s.saves > s.n {
		return Artifact{}, &FilesystemError{Op: "write", Path: filename, Err: os.ErrPermission}
	}
	return s.LocalStorage.Save(ctx, data, filename)
}

func TestManager_GenerateImage_PartialSaveListsWrittenFiles(t *testing.T) {
	dir := t.TempDir()
	storage := &failAfterStorage{LocalStorage: NewLocalStorage(dir), n: 2}
	gen := &MockImageGenerator{GenerateFunc: imagesFor("img")}
	m, _ := newTestManager(t, gen, func(s *Settings) { s.OutputDir = dir }, WithStorage(storage))

	res := m.GenerateImage(context.Background(), GenerationRequest{Prompt: "three owls", NumberOfImages: 3})

	require.True(t, res.IsError)
	require.Len(t, res.Content, 2)
	assert.Contains(t, res.Content[0].Text, "Failed to save image")
	assert.Contains(t, res.Content[1].Text, "2 image(s) were saved before the failure:")

	files := listFiles(t, dir)
	require.Len(t, files, 2)
	for _, name := range files {
		assert.Contains(t, res.Content[1].Text, name)
	}
	assert.Empty(t, m.History())
}

func TestManager_BatchGenerate_Disabled(t *testing.T) {
	gen := &MockImageGenerator{GenerateFunc: imagesFor("img")}
	m, _ := newTestManager(t, gen, func(s *Settings) { s.BatchEnabled = false })

	res := m.BatchGenerate(context.Background(), BatchJob{Prompts: []string{"a", "b"}})

	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "disabled")
	assert.Zero(t, gen.Calls())
}

func TestManager_BatchGenerate_EmptyPrompts(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		t.Run(fmt.Sprintf("enabled=%v", enabled), func(t *testing.T) {
			gen := &MockImageGenerator{GenerateFunc: imagesFor("img")}
			m, _ := newTestManager(t, gen, func(s *Settings) { s.BatchEnabled = enabled })

			res := m.BatchGenerate(context.Background(), BatchJob{})

			assert.True(t, res.IsError)
			assert.Zero(t, gen.Calls())
		})
	}
}

func TestManager_BatchGenerate_Success(t *testing.T) {
	gen := &MockImageGenerator{GenerateFunc: imagesFor("img")}
	m, dir := newTestManager(t, gen, func(s *Settings) { s.MaxBatchSize = 2 })

	prompts := []string{"one", "two", "three", strings.Repeat("long prompt ", 10), "five"}
	res := m.BatchGenerate(context.Background(), BatchJob{
		Prompts: prompts,
		Model:   ModelImagen4,
		Shared:  SharedSettings{AspectRatio: AspectRatio16x9},
	})

	require.False(t, res.IsError, res.Text())
	require.Len(t, res.Content, len(prompts)+1)
	for i := range prompts {
		assert.True(t, strings.HasPrefix(res.Content[i].Text, fmt.Sprintf("Prompt %d (", i+1)), res.Content[i].Text)
		assert.Contains(t, res.Content[i].Text, "image 1 saved to `")
	}
	assert.Contains(t, res.Content[3].Text, truncatePrompt(prompts[3]))
	assert.NotContains(t, res.Content[3].Text, prompts[3])
	assert.Equal(t, "Batch complete: 5 images generated from 5 prompts.", res.Content[len(prompts)].Text)

	assert.Equal(t, len(prompts), gen.Calls())
	for _, req := range gen.Requests() {
		assert.Equal(t, ModelImagen4, req.Model)
		assert.Equal(t, AspectRatio16x9, req.AspectRatio)
		assert.Equal(t, 1, req.NumberOfImages)
	}
	assert.Len(t, listFiles(t, dir), len(prompts))
	assert.Empty(t, m.History())
}

func TestManager_BatchGenerate_RecordHistory(t *testing.T) {
	gen := &MockImageGenerator{GenerateFunc: imagesFor("img")}
	m, _ := newTestManager(t, gen, func(s *Settings) { s.RecordBatchHistory = true })

	res := m.BatchGenerate(context.Background(), BatchJob{Prompts: []string{"a", "b", "c"}})
	require.False(t, res.IsError, res.Text())

	history := m.History()
	require.Len(t, history, 3)
	for i, entry := range history {
		assert.Equal(t, OperationBatch, entry.Operation)
		assert.Equal(t, []string{"a", "b", "c"}[i], entry.Prompt)
		assert.Equal(t, 1, entry.ImageCount)
	}
}

func TestManager_BatchGenerate_FailureAbortsBatch(t *testing.T) {
	gen := &MockImageGenerator{
		GenerateFunc: func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
			if req.Prompt == "bad" {
				return nil, &RemoteAPIError{StatusCode: 400, Category: CategoryContentPolicy, Body: "SAFETY"}
			}
			return imagesFor("img")(ctx, req)
		},
	}
	m, dir := newTestManager(t, gen, func(s *Settings) { s.MaxBatchSize = 2 })

	res := m.BatchGenerate(context.Background(), BatchJob{Prompts: []string{"a", "bad", "c", "d"}})

	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "Batch generation failed on prompt 2")
	assert.Contains(t, res.Text(), "rephrase your prompt")
	assert.Equal(t, 2, gen.Calls())
	assert.Empty(t, listFiles(t, dir))
}

func TestManager_BatchGenerate_PromptWithoutImages(t *testing.T) {
	gen := &MockImageGenerator{
		GenerateFunc: func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
			if req.Prompt == "empty" {
				return &GenerationResult{Request: req}, nil
			}
			return imagesFor("img")(ctx, req)
		},
	}
	m, _ := newTestManager(t, gen, nil)

	res := m.BatchGenerate(context.Background(), BatchJob{Prompts: []string{"empty", "full"}})

	require.False(t, res.IsError)
	require.Len(t, res.Content, 3)
	assert.Equal(t, `Prompt 1 ("empty"): no images generated`, res.Content[0].Text)
	assert.Equal(t, "Batch complete: 1 images generated from 2 prompts.", res.Content[2].Text)
}

func TestManager_ListModels(t *testing.T) {
	m, _ := newTestManager(t, &MockImageGenerator{}, nil)

	text := m.ListModels().Text()
	for _, model := range Models {
		assert.Contains(t, text, string(model))
	}
	assert.Contains(t, text, "imagen-3.0-generate-002 (default)")
	assert.Contains(t, text, "Aspect ratios: 1:1, 3:4, 4:3, 9:16, 16:9")
	assert.Contains(t, text, "Output formats: image/png, image/jpeg")
	assert.Contains(t, text, "Optional parameters: negative_prompt, seed")
	assert.Contains(t, text, "Images per request: 1-1")
	assert.Contains(t, text, "Person generation: dont_allow, allow_adult, allow_all")
}

func TestOptionalParameters(t *testing.T) {
	assert.Equal(t, "none", optionalParameters(ModelCapabilities{}))
	assert.Equal(t, "seed", optionalParameters(ModelCapabilities{SupportsSeed: true}))
	assert.Equal(t, "negative_prompt, seed",
		optionalParameters(ModelCapabilities{SupportsNegativePrompt: true, SupportsSeed: true}))
}

func TestManager_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		prober := &MockProber{}
		m, dir := newTestManager(t, &MockImageGenerator{}, nil, WithProber(prober))

		text := m.HealthCheck(context.Background()).Text()

		assert.Equal(t, 1, prober.Calls)
		assert.Contains(t, text, "status: healthy")
		assert.Contains(t, text, "API connectivity: OK")
		assert.Contains(t, text, "Output directory: "+dir)
		assert.Contains(t, text, "Batch processing: enabled (max 4 concurrent)")
	})

	t.Run("probe fails", func(t *testing.T) {
		prober := &MockProber{Err: &RemoteAPIError{StatusCode: 403, Category: CategoryAuthentication}}
		m, _ := newTestManager(t, &MockImageGenerator{}, nil, WithProber(prober))

		res := m.HealthCheck(context.Background())

		assert.False(t, res.IsError)
		assert.Contains(t, res.Text(), "status: unhealthy")
		assert.Contains(t, res.Text(), "API connectivity: FAILED: Authentication failed")
	})

	t.Run("no prober", func(t *testing.T) {
		m, _ := newTestManager(t, &MockImageGenerator{}, func(s *Settings) { s.BatchEnabled = false })

		text := m.HealthCheck(context.Background()).Text()
		assert.Contains(t, text, "not checked")
		assert.Contains(t, text, "Batch processing: disabled")
	})
}
