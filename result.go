package imagegen

import (
	"strings"
	"time"
)

// GeneratedImage represents a single generated image result.
type GeneratedImage struct {
	// Data is the base64 encoded payload as returned by the API
	Data string

	// MIMEType of the generated image
	MIMEType string

	// Index is the position in a multi-image result (0-indexed)
	Index int
}

// GenerationResult holds the outcome of one predict call. Zero images is a valid result.
type GenerationResult struct {
	Images  []GeneratedImage
	Request GenerationRequest
}

// Artifact is one persisted image file.
type Artifact struct {
	Path string
	Size int64
}

// Operation identifies which tool produced a history entry.
type Operation string

const (
	OperationGenerate Operation = "generate"
	OperationBatch    Operation = "batch"
)

// HistoryEntry records one completed generation request.
type HistoryEntry struct {
	ID               string           `json:"id"`
	Timestamp        time.Time        `json:"timestamp"`
	Operation        Operation        `json:"operation"`
	Prompt           string           `json:"prompt"`
	Model            Model            `json:"model"`
	NumberOfImages   int              `json:"numberOfImages"`
	AspectRatio      AspectRatio      `json:"aspectRatio"`
	PersonGeneration PersonGeneration `json:"personGeneration"`
	NegativePrompt   string           `json:"negativePrompt,omitempty"`
	Seed             *int64           `json:"seed,omitempty"`
	ImageCount       int              `json:"imageCount"`
}

// ContentType is the kind of a ContentBlock.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// ContentBlock is one typed block of a tool response.
type ContentBlock struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	Data     string      `json:"data,omitempty"`
	MIMEType string      `json:"mimeType,omitempty"`
}

// ToolResult is the response returned to the protocol layer.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// TextResult builds a single-block, non-error result.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{TextBlock(text)}}
}

// ErrorResult builds a single-block result flagged as an error.
func ErrorResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{TextBlock(text)}, IsError: true}
}

// Text joins all text blocks with newlines.
func (r *ToolResult) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, block := range r.Content {
		if block.Type == ContentTypeText {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
