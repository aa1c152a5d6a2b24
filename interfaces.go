package imagegen

import "context"

// ImageGenerator issues one generation call per request.
// Implementations must not retry; failures are surfaced to the caller as is.
type ImageGenerator interface {
	// Generate runs a single predict call. A result with zero images is not an error.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// Prober checks that the remote API is reachable with the configured credential.
type Prober interface {
	Probe(ctx context.Context, model Model) error
}

// Storage persists base64 encoded images.
type Storage interface {
	// Save decodes data and writes it as filename under the storage root.
	// A second save with the same filename replaces the first.
	Save(ctx context.Context, data string, filename string) (Artifact, error)

	// Root returns the absolute output directory.
	Root() (string, error)
}

// History is the in-process ledger of completed generation requests.
type History interface {
	// Record appends entry and returns the key it was stored under.
	Record(entry HistoryEntry) string

	// List returns every entry in insertion order.
	List() []HistoryEntry

	// Len returns the number of recorded entries. It must agree with len(List()).
	Len() int
}
