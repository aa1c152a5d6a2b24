package imagegen

// ModelCapabilities describes what features a model supports.
type ModelCapabilities struct {
	SupportsNegativePrompt bool
	SupportsSeed           bool

	MaxOutputImages int // Max images generated per request
}

// RateLimits defines rate limiting parameters for a model.
type RateLimits struct {
	RequestsPerMinute int
	ImagesPerMinute   int // 0 = unlimited
}

// Pricing defines cost information for a model.
type Pricing struct {
	PerImage float64 // USD
}

// ImageConstraints defines supported image configurations for a model.
type ImageConstraints struct {
	SupportedAspectRatios []AspectRatio
	SupportedFormats      []OutputFormat
}

// ModelInfo contains complete metadata for a model.
type ModelInfo struct {
	Name        Model
	DisplayName string
	Description string

	Capabilities     ModelCapabilities
	ImageConstraints ImageConstraints
	RateLimits       RateLimits
	Pricing          Pricing
}

var imagenConstraints = ImageConstraints{
	SupportedAspectRatios: AspectRatios,
	SupportedFormats:      OutputFormats,
}

// Catalog is the static capability table served by list_models.
// Pricing as of mid 2025, Gemini API paid tier.
var Catalog = []ModelInfo{
	{
		Name:        ModelImagen3,
		DisplayName: "Imagen 3",
		Description: "General purpose text-to-image model with strong prompt adherence.",
		Capabilities: ModelCapabilities{
			SupportsNegativePrompt: true,
			SupportsSeed:           true,
			MaxOutputImages:        4,
		},
		ImageConstraints: imagenConstraints,
		RateLimits:       RateLimits{RequestsPerMinute: 20, ImagesPerMinute: 80},
		Pricing:          Pricing{PerImage: 0.03},
	},
	{
		Name:        ModelImagen4,
		DisplayName: "Imagen 4",
		Description: "Higher fidelity text rendering and detail than Imagen 3.",
		Capabilities: ModelCapabilities{
			SupportsNegativePrompt: true,
			SupportsSeed:           true,
			MaxOutputImages:        4,
		},
		ImageConstraints: imagenConstraints,
		RateLimits:       RateLimits{RequestsPerMinute: 20, ImagesPerMinute: 80},
		Pricing:          Pricing{PerImage: 0.04},
	},
	{
		Name:        ModelImagen4Ultra,
		DisplayName: "Imagen 4 Ultra",
		Description: "Highest quality Imagen model; slower and more expensive.",
		Capabilities: ModelCapabilities{
			SupportsNegativePrompt: true,
			SupportsSeed:           true,
			MaxOutputImages:        1,
		},
		ImageConstraints: imagenConstraints,
		RateLimits:       RateLimits{RequestsPerMinute: 10, ImagesPerMinute: 40},
		Pricing:          Pricing{PerImage: 0.06},
	},
	{
		Name:        ModelImagen4Fast,
		DisplayName: "Imagen 4 Fast",
		Description: "Low latency variant of Imagen 4 for drafts and iteration.",
		Capabilities: ModelCapabilities{
			SupportsNegativePrompt: true,
			SupportsSeed:           true,
			MaxOutputImages:        4,
		},
		ImageConstraints: imagenConstraints,
		RateLimits:       RateLimits{RequestsPerMinute: 30, ImagesPerMinute: 120},
		Pricing:          Pricing{PerImage: 0.02},
	},
}

// LookupModel returns the catalog entry for a model.
func LookupModel(model Model) (ModelInfo, bool) {
	for _, info := range Catalog {
		if info.Name == model {
			return info, true
		}
	}
	return ModelInfo{}, false
}
