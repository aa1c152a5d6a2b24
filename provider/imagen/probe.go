package imagen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	imagegen "github.com/mhpenta/imagen-mcp"
)

// Prober checks API reachability and key validity by fetching model metadata
// through the genai SDK. It never generates images.
type Prober struct {
	client *genai.Client
}

var _ imagegen.Prober = (*Prober)(nil)

// ProberConfig configures NewProber. Empty fields use the Gemini API defaults.
type ProberConfig struct {
	APIKey     string
	BaseURL    string
	APIVersion string
}

// NewProber creates a Prober backed by the Gemini API.
func NewProber(ctx context.Context, cfg ProberConfig) (*Prober, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	}
	if cfg.APIVersion != "" {
		clientCfg.HTTPOptions.APIVersion = cfg.APIVersion
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Prober{client: client}, nil
}

// Probe fetches metadata for model. API failures come back as *imagegen.RemoteAPIError.
func (p *Prober) Probe(ctx context.Context, model imagegen.Model) error {
	if model == "" {
		model = imagegen.ModelDefault
	}
	_, err := p.client.Models.Get(ctx, string(model), nil)
	return mapProbeError(err)
}

func mapProbeError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return &imagegen.RemoteAPIError{Category: imagegen.CategoryGeneric, Err: err}
	}

	return &imagegen.RemoteAPIError{
		StatusCode: apiErr.Code,
		Category:   classify(apiErr.Code, apiErr.Status, apiErr.Message),
		Status:     apiErr.Status,
		Message:    apiErr.Message,
		Err:        err,
	}
}
