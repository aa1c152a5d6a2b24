package imagegen

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCategory classifies a RemoteAPIError.
type ErrorCategory string

const (
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryRateLimit      ErrorCategory = "rate_limit"
	CategoryContentPolicy  ErrorCategory = "content_policy"
	CategoryGeneric        ErrorCategory = "generic"
)

// RemoteAPIError is returned when the generation API answers with a non-success status.
// StatusCode is 0 when the request never got a response.
type RemoteAPIError struct {
	StatusCode int
	Category   ErrorCategory
	Status     string // Google RPC status, e.g. "RESOURCE_EXHAUSTED"
	Message    string // Parsed error message, if the body carried one
	Body       string // Raw response body
	Err        error
}

func (e *RemoteAPIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("imagen api request failed: %v", e.Err)
	}
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("imagen api error (status %d, %s): %s", e.StatusCode, e.Category, msg)
}

func (e *RemoteAPIError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when a local rate limiter refuses a request.
type RateLimitError struct {
	RetryAfter time.Duration
	LimitType  string
	Model      string
	Err        error // Underlying limiter error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %s limit, retry after %v",
		e.Model, e.LimitType, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// FilesystemError is returned when an artifact cannot be persisted.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// BatchError reports which prompt aborted a batch.
type BatchError struct {
	Chunk       int // 0-indexed chunk number
	PromptIndex int // 0-indexed position in the batch
	Err         error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch chunk %d, prompt %d: %v", e.Chunk+1, e.PromptIndex+1, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// ErrInvalidImageData is returned when an image payload is not valid base64.
var ErrInvalidImageData = errors.New("invalid image data")

func categoryOf(err error) (ErrorCategory, bool) {
	var apiErr *RemoteAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Category, true
	}
	return "", false
}

// IsRateLimitError reports whether err came from a local limiter or a remote rate limit.
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return true
	}
	cat, ok := categoryOf(err)
	return ok && cat == CategoryRateLimit
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	cat, ok := categoryOf(err)
	return ok && cat == CategoryAuthentication
}

// IsContentPolicyError reports whether err is a safety filter rejection.
func IsContentPolicyError(err error) bool {
	cat, ok := categoryOf(err)
	return ok && cat == CategoryContentPolicy
}

// UserMessage renders err as the text shown to the tool caller.
func UserMessage(err error) string {
	var (
		rlErr    *RateLimitError
		apiErr   *RemoteAPIError
		fsErr    *FilesystemError
		batchErr *BatchError
	)

	prefix := ""
	if errors.As(err, &batchErr) {
		prefix = fmt.Sprintf("Batch generation failed on prompt %d: ", batchErr.PromptIndex+1)
	}

	switch {
	case errors.As(err, &rlErr):
		return prefix + fmt.Sprintf("Rate limit exceeded for %s. Please wait %v before trying again.",
			rlErr.Model, rlErr.RetryAfter.Round(time.Second))
	case errors.As(err, &apiErr):
		switch apiErr.Category {
		case CategoryAuthentication:
			return prefix + "Authentication failed. Please check that your API key is valid and has access to the Imagen API."
		case CategoryRateLimit:
			return prefix + "Rate limit exceeded. Please wait a moment before trying again."
		case CategoryContentPolicy:
			return prefix + "The request was blocked by content safety filters. Please rephrase your prompt and try again."
		default:
			if apiErr.StatusCode == 0 {
				return prefix + fmt.Sprintf("API request failed: %v", apiErr.Err)
			}
			return prefix + fmt.Sprintf("API error (status %d): %s", apiErr.StatusCode, apiErr.Body)
		}
	case errors.As(err, &fsErr):
		return prefix + fmt.Sprintf("Failed to save image: %v", fsErr)
	case isValidationError(err):
		return prefix + fmt.Sprintf("Invalid request: %v", err)
	default:
		return prefix + fmt.Sprintf("Image generation failed: %v", err)
	}
}
