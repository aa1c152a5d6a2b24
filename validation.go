package imagegen

import (
	"errors"
	"fmt"
	"slices"
)

// Validation errors
var (
	ErrEmptyPrompt             = errors.New("prompt cannot be empty")
	ErrInvalidModel            = errors.New("unsupported model")
	ErrInvalidImageCount       = errors.New("number of images out of range")
	ErrInvalidAspectRatio      = errors.New("unsupported aspect ratio")
	ErrInvalidPersonGeneration = errors.New("unsupported person generation policy")
	ErrInvalidOutputFormat     = errors.New("unsupported output format")
	ErrInvalidBatchSize        = errors.New("max batch size out of range")
	ErrUnsupportedParameter    = errors.New("parameter not supported by model")
)

var validationErrors = []error{
	ErrEmptyPrompt,
	ErrInvalidModel,
	ErrInvalidImageCount,
	ErrInvalidAspectRatio,
	ErrInvalidPersonGeneration,
	ErrInvalidOutputFormat,
	ErrInvalidBatchSize,
	ErrUnsupportedParameter,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Batch size limits
const (
	MinBatchSize = 1
	MaxBatchSize = 8
)

// ValidatePrompt validates a text prompt.
func ValidatePrompt(prompt string) error {
	if prompt == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// ValidateModel checks model against the catalog.
func ValidateModel(model Model) error {
	if _, ok := LookupModel(model); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidModel, model)
	}
	return nil
}

// ValidateRequest validates a request after defaults have been applied.
func ValidateRequest(req GenerationRequest) error {
	if err := ValidatePrompt(req.Prompt); err != nil {
		return err
	}
	if err := ValidateModel(req.Model); err != nil {
		return err
	}
	if req.NumberOfImages < MinImagesPerRequest || req.NumberOfImages > MaxImagesPerRequest {
		return fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidImageCount,
			req.NumberOfImages, MinImagesPerRequest, MaxImagesPerRequest)
	}
	if !slices.Contains(AspectRatios, req.AspectRatio) {
		return fmt.Errorf("%w: %s", ErrInvalidAspectRatio, req.AspectRatio)
	}
	if !slices.Contains(PersonGenerationPolicies, req.PersonGeneration) {
		return fmt.Errorf("%w: %s", ErrInvalidPersonGeneration, req.PersonGeneration)
	}
	if !slices.Contains(OutputFormats, req.OutputFormat) {
		return fmt.Errorf("%w: %s", ErrInvalidOutputFormat, req.OutputFormat)
	}

	info, _ := LookupModel(req.Model)
	return validateCapabilities(info, req)
}

// validateCapabilities checks req against what one model can do.
func validateCapabilities(info ModelInfo, req GenerationRequest) error {
	c := info.Capabilities
	if req.NumberOfImages > c.MaxOutputImages {
		return fmt.Errorf("%w: %d (%s allows at most %d)", ErrInvalidImageCount,
			req.NumberOfImages, info.Name, c.MaxOutputImages)
	}
	if !slices.Contains(info.ImageConstraints.SupportedAspectRatios, req.AspectRatio) {
		return fmt.Errorf("%w: %s for %s", ErrInvalidAspectRatio, req.AspectRatio, info.Name)
	}
	if !slices.Contains(info.ImageConstraints.SupportedFormats, req.OutputFormat) {
		return fmt.Errorf("%w: %s for %s", ErrInvalidOutputFormat, req.OutputFormat, info.Name)
	}
	if req.NegativePrompt != "" && !c.SupportsNegativePrompt {
		return fmt.Errorf("%w: negative_prompt on %s", ErrUnsupportedParameter, info.Name)
	}
	if req.Seed != nil && !c.SupportsSeed {
		return fmt.Errorf("%w: seed on %s", ErrUnsupportedParameter, info.Name)
	}
	return nil
}

// ValidateBatchSize checks a configured max batch size.
func ValidateBatchSize(size int) error {
	if size < MinBatchSize || size > MaxBatchSize {
		return fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidBatchSize, size, MinBatchSize, MaxBatchSize)
	}
	return nil
}
