package imagegen

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchScheduler runs requests in sequential chunks of at most size calls.
// Calls inside a chunk run concurrently. The first failure aborts the batch:
// the failing chunk is allowed to finish, later chunks never start, and no
// partial results are returned.
type BatchScheduler struct {
	size    int
	onChunk func(chunk, size int)
}

// NewBatchScheduler creates a scheduler. size is clamped to [1, MaxBatchSize].
func NewBatchScheduler(size int) *BatchScheduler {
	return &BatchScheduler{size: min(max(size, MinBatchSize), MaxBatchSize)}
}

// OnChunk registers a hook called before each chunk starts.
func (s *BatchScheduler) OnChunk(fn func(chunk, size int)) *BatchScheduler {
	s.onChunk = fn
	return s
}

// Size returns the effective chunk size.
func (s *BatchScheduler) Size() int {
	return s.size
}

// Chunks partitions n items into consecutive [start, end) ranges of at most size.
func Chunks(n, size int) [][2]int {
	if n <= 0 || size <= 0 {
		return nil
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// Run executes reqs against gen and returns results in input order.
// The context is checked between chunks; an in-flight chunk is not cancelled.
func (s *BatchScheduler) Run(ctx context.Context, gen ImageGenerator, reqs []GenerationRequest) ([]*GenerationResult, error) {
	results := make([]*GenerationResult, len(reqs))

	for chunk, bounds := range Chunks(len(reqs), s.size) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.onChunk != nil {
			s.onChunk(chunk, bounds[1]-bounds[0])
		}

		// Plain Group: members of a chunk are not cancelled when a sibling fails.
		var g errgroup.Group
		for i := bounds[0]; i < bounds[1]; i++ {
			g.Go(func() error {
				res, err := gen.Generate(ctx, reqs[i])
				if err != nil {
					return &BatchError{Chunk: chunk, PromptIndex: i, Err: err}
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return results, nil
}
