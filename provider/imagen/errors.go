package imagen

import (
	"encoding/json"
	"net/http"
	"strings"

	imagegen "github.com/mhpenta/imagen-mcp"
)

// googleErrorEnvelope is the error body returned by Google APIs.
type googleErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

func newRemoteAPIError(statusCode int, body []byte) *imagegen.RemoteAPIError {
	apiErr := &imagegen.RemoteAPIError{
		StatusCode: statusCode,
		Body:       strings.TrimSpace(string(body)),
	}

	var env googleErrorEnvelope
	markers := []string{string(body)}
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Status = env.Error.Status
		apiErr.Message = env.Error.Message
		markers = append(markers, env.Error.Status, env.Error.Message)
		for _, d := range env.Error.Details {
			markers = append(markers, d.Reason)
		}
	}

	apiErr.Category = classify(statusCode, markers...)
	return apiErr
}

// classify maps a status code plus any error text to a category.
// Status codes win over text markers.
func classify(statusCode int, markers ...string) imagegen.ErrorCategory {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return imagegen.CategoryAuthentication
	case http.StatusTooManyRequests:
		return imagegen.CategoryRateLimit
	}

	text := strings.ToUpper(strings.Join(markers, " "))
	switch {
	case strings.Contains(text, "API_KEY"), strings.Contains(text, "API KEY"):
		return imagegen.CategoryAuthentication
	case strings.Contains(text, "RESOURCE_EXHAUSTED"), strings.Contains(text, "RATE_LIMIT"):
		return imagegen.CategoryRateLimit
	case strings.Contains(text, "SAFETY"):
		return imagegen.CategoryContentPolicy
	default:
		return imagegen.CategoryGeneric
	}
}
