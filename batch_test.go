package imagegen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func promptRequests(n int) []GenerationRequest {
	reqs := make([]GenerationRequest, n)
	for i := range reqs {
		reqs[i] = GenerationRequest{Prompt: fmt.Sprintf("p%d", i)}.WithDefaults("")
	}
	return reqs
}

func TestNewBatchScheduler_ClampsSize(t *testing.T) {
	assert.Equal(t, 1, NewBatchScheduler(0).Size())
	assert.Equal(t, 3, NewBatchScheduler(3).Size())
	assert.Equal(t, MaxBatchSize, NewBatchScheduler(100).Size())
}

func TestChunks(t *testing.T) {
	assert.Nil(t, Chunks(0, 3))
	assert.Equal(t, [][2]int{{0, 3}, {3, 6}, {6, 7}}, Chunks(7, 3))
	assert.Equal(t, [][2]int{{0, 2}}, Chunks(2, 8))
}

func TestBatchScheduler_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(t, "prompts")
		size := rapid.IntRange(MinBatchSize, MaxBatchSize).Draw(t, "size")

		chunks := 0
		s := NewBatchScheduler(size).OnChunk(func(chunk, chunkSize int) {
			if chunk != chunks {
				t.Fatalf("chunk %d started out of order, expected %d", chunk, chunks)
			}
			if chunkSize > size {
				t.Fatalf("chunk of %d exceeds max %d", chunkSize, size)
			}
			chunks++
		})

		gen := &MockImageGenerator{}
		results, err := s.Run(context.Background(), gen, promptRequests(n))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if want := (n + size - 1) / size; chunks != want {
			t.Fatalf("chunks = %d, want %d", chunks, want)
		}
		if len(results) != n {
			t.Fatalf("results = %d, want %d", len(results), n)
		}
		for i, res := range results {
			if res.Request.Prompt != fmt.Sprintf("p%d", i) {
				t.Fatalf("result %d is for %q", i, res.Request.Prompt)
			}
		}
	})
}

func TestBatchScheduler_ConcurrencyBounded(t *testing.T) {
	const size = 3

	var inFlight, peak atomic.Int64
	gen := &MockImageGenerator{
		GenerateFunc: func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return &GenerationResult{Request: req}, nil
		},
	}

	_, err := NewBatchScheduler(size).Run(context.Background(), gen, promptRequests(10))
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int64(size))
	assert.Equal(t, 10, gen.Calls())
}

func TestBatchScheduler_FailureStopsLaterChunks(t *testing.T) {
	apiErr := &RemoteAPIError{StatusCode: 429, Category: CategoryRateLimit}
	gen := &MockImageGenerator{
		GenerateFunc: func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
			if req.Prompt == "p3" {
				return nil, apiErr
			}
			return &GenerationResult{Request: req}, nil
		},
	}

	results, err := NewBatchScheduler(2).Run(context.Background(), gen, promptRequests(8))

	assert.Nil(t, results)
	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 1, batchErr.Chunk)
	assert.Equal(t, 3, batchErr.PromptIndex)
	assert.True(t, IsRateLimitError(err))

	// Chunks 0 and 1 ran; chunks 2 and 3 never started.
	assert.Equal(t, 4, gen.Calls())
	for _, req := range gen.Requests() {
		assert.NotContains(t, []string{"p4", "p5", "p6", "p7"}, req.Prompt)
	}
}

func TestBatchScheduler_FailingChunkRunsToCompletion(t *testing.T) {
	var mu sync.Mutex
	finished := map[string]bool{}

	gen := &MockImageGenerator{
		GenerateFunc: func(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
			if req.Prompt == "p0" {
				return nil, errors.New("fail fast")
			}
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			finished[req.Prompt] = true
			mu.Unlock()
			return &GenerationResult{Request: req}, nil
		},
	}

	_, err := NewBatchScheduler(3).Run(context.Background(), gen, promptRequests(3))
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, finished["p1"])
	assert.True(t, finished["p2"])
}

func TestBatchScheduler_ContextCheckedBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewBatchScheduler(2).OnChunk(func(chunk, size int) {
		if chunk == 0 {
			cancel()
		}
	})
	gen := &MockImageGenerator{}

	_, err := s.Run(ctx, gen, promptRequests(6))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, gen.Calls())
}
