package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	imagegen "github.com/mhpenta/imagen-mcp"
)

// Tool names.
const (
	ToolGenerateImage = "generate_image"
	ToolBatchGenerate = "batch_generate"
	ToolListModels    = "list_models"
	ToolHealthCheck   = "health_check"
)

// Resource URIs.
const (
	ResourceHistory = "imagen://history"
	ResourceConfig  = "imagen://config"
)

type generateImageArgs struct {
	Prompt           string `json:"prompt"`
	Model            string `json:"model,omitempty"`
	NumberOfImages   int    `json:"number_of_images,omitempty"`
	AspectRatio      string `json:"aspect_ratio,omitempty"`
	PersonGeneration string `json:"person_generation,omitempty"`
	NegativePrompt   string `json:"negative_prompt,omitempty"`
	Seed             *int64 `json:"seed,omitempty"`
	OutputFormat     string `json:"output_format,omitempty"`
}

func (a generateImageArgs) request() imagegen.GenerationRequest {
	return imagegen.GenerationRequest{
		Prompt:           a.Prompt,
		Model:            imagegen.Model(a.Model),
		NumberOfImages:   a.NumberOfImages,
		AspectRatio:      imagegen.AspectRatio(a.AspectRatio),
		PersonGeneration: imagegen.PersonGeneration(a.PersonGeneration),
		NegativePrompt:   a.NegativePrompt,
		Seed:             a.Seed,
		OutputFormat:     imagegen.OutputFormat(a.OutputFormat),
	}
}

type sharedSettingsArgs struct {
	AspectRatio      string `json:"aspect_ratio,omitempty"`
	PersonGeneration string `json:"person_generation,omitempty"`
	OutputFormat     string `json:"output_format,omitempty"`
}

type batchGenerateArgs struct {
	Prompts        []string           `json:"prompts"`
	Model          string             `json:"model,omitempty"`
	SharedSettings sharedSettingsArgs `json:"shared_settings"`
}

func (a batchGenerateArgs) job() imagegen.BatchJob {
	return imagegen.BatchJob{
		Prompts: a.Prompts,
		Model:   imagegen.Model(a.Model),
		Shared: imagegen.SharedSettings{
			AspectRatio:      imagegen.AspectRatio(a.SharedSettings.AspectRatio),
			PersonGeneration: imagegen.PersonGeneration(a.SharedSettings.PersonGeneration),
			OutputFormat:     imagegen.OutputFormat(a.SharedSettings.OutputFormat),
		},
	}
}

func optionProperties() map[string]any {
	return map[string]any{
		"aspect_ratio": map[string]any{
			"type":        "string",
			"enum":        enumOf(imagegen.AspectRatios),
			"description": "Aspect ratio of the generated images (default 1:1)",
		},
		"person_generation": map[string]any{
			"type":        "string",
			"enum":        enumOf(imagegen.PersonGenerationPolicies),
			"description": "Whether people may appear in the images (default allow_adult)",
		},
		"output_format": map[string]any{
			"type":        "string",
			"enum":        enumOf(imagegen.OutputFormats),
			"description": "MIME type requested from the API (default image/png)",
		},
	}
}

func modelProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"enum":        enumOf(imagegen.Models),
		"description": "Imagen model to use; defaults to the server's configured model",
	}
}

func generateImageSchema() map[string]any {
	props := optionProperties()
	props["prompt"] = map[string]any{
		"type":        "string",
		"minLength":   1,
		"description": "Text description of the image to generate",
	}
	props["model"] = modelProperty()
	props["number_of_images"] = map[string]any{
		"type":        "integer",
		"minimum":     imagegen.MinImagesPerRequest,
		"maximum":     imagegen.MaxImagesPerRequest,
		"description": "How many images to generate (default 1)",
	}
	props["negative_prompt"] = map[string]any{
		"type":        "string",
		"description": "What the images should not contain",
	}
	props["seed"] = map[string]any{
		"type":        "integer",
		"description": "Seed for reproducible output",
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             []any{"prompt"},
		"additionalProperties": false,
	}
}

// An empty prompts array passes the schema so the caller gets a readable message.
func batchGenerateSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompts": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string", "minLength": 1},
				"description": "Prompts to generate, one image each",
			},
			"model": modelProperty(),
			"shared_settings": map[string]any{
				"type":                 "object",
				"properties":           optionProperties(),
				"additionalProperties": false,
				"description":          "Settings applied to every prompt",
			},
		},
		"required":             []any{"prompts"},
		"additionalProperties": false,
	}
}

func emptySchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
}

// RegisterTools exposes m's operations and read-only state on s.
func RegisterTools(s *Server, m *imagegen.Manager) error {
	settings := m.Settings()

	tools := []struct {
		def     ToolDefinition
		handler ToolHandler
	}{
		{
			def: ToolDefinition{
				Name:        ToolGenerateImage,
				Description: "Generate images from a text prompt with Google Imagen and save them to the output directory",
				InputSchema: generateImageSchema(),
			},
			handler: func(ctx context.Context, raw json.RawMessage) (*imagegen.ToolResult, error) {
				var args generateImageArgs
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				req := args.request()
				if err := imagegen.ValidateRequest(req.WithDefaults(settings.DefaultModel)); err != nil {
					return nil, err
				}
				return m.GenerateImage(ctx, req), nil
			},
		},
		{
			def: ToolDefinition{
				Name:        ToolBatchGenerate,
				Description: fmt.Sprintf("Generate one image per prompt, running up to %d requests at a time", settings.MaxBatchSize),
				InputSchema: batchGenerateSchema(),
			},
			handler: func(ctx context.Context, raw json.RawMessage) (*imagegen.ToolResult, error) {
				var args batchGenerateArgs
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				return m.BatchGenerate(ctx, args.job()), nil
			},
		},
		{
			def: ToolDefinition{
				Name:        ToolListModels,
				Description: "List the available Imagen models and their options",
				InputSchema: emptySchema(),
			},
			handler: func(ctx context.Context, raw json.RawMessage) (*imagegen.ToolResult, error) {
				return m.ListModels(), nil
			},
		},
		{
			def: ToolDefinition{
				Name:        ToolHealthCheck,
				Description: "Report server configuration and check connectivity to the Imagen API",
				InputSchema: emptySchema(),
			},
			handler: func(ctx context.Context, raw json.RawMessage) (*imagegen.ToolResult, error) {
				return m.HealthCheck(ctx), nil
			},
		},
	}

	for _, t := range tools {
		if err := s.RegisterTool(t.def, t.handler); err != nil {
			return err
		}
	}

	if err := s.RegisterResource(Resource{
		URI:         ResourceHistory,
		Name:        "Generation history",
		Description: "Every recorded generation in insertion order",
		MimeType:    "application/json",
	}, func(ctx context.Context) (string, error) {
		return marshalText(m.History())
	}); err != nil {
		return err
	}

	return s.RegisterResource(Resource{
		URI:         ResourceConfig,
		Name:        "Server configuration",
		Description: "Active, non-secret server settings",
		MimeType:    "application/json",
	}, func(ctx context.Context) (string, error) {
		return marshalText(configView{
			DefaultModel:       settings.DefaultModel,
			BatchEnabled:       settings.BatchEnabled,
			MaxBatchSize:       settings.MaxBatchSize,
			OutputDir:          settings.OutputDir,
			RecordBatchHistory: settings.RecordBatchHistory,
		})
	})
}

type configView struct {
	DefaultModel       imagegen.Model `json:"defaultModel"`
	BatchEnabled       bool           `json:"batchEnabled"`
	MaxBatchSize       int            `json:"maxBatchSize"`
	OutputDir          string         `json:"outputDir"`
	RecordBatchHistory bool           `json:"recordBatchHistory"`
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func marshalText(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
