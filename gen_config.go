package imagegen

// Model represents a specific Imagen model.
type Model string

const (
	ModelImagen3      Model = "imagen-3.0-generate-002"
	ModelImagen4      Model = "imagen-4.0-generate-001"
	ModelImagen4Ultra Model = "imagen-4.0-ultra-generate-001"
	ModelImagen4Fast  Model = "imagen-4.0-fast-generate-001"
	ModelDefault      Model = ModelImagen3
)

// AspectRatio represents the aspect ratio for generated images.
type AspectRatio string

const (
	AspectRatio1x1  AspectRatio = "1:1"
	AspectRatio3x4  AspectRatio = "3:4"
	AspectRatio4x3  AspectRatio = "4:3"
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio16x9 AspectRatio = "16:9"
)

// PersonGeneration controls whether people may appear in generated images.
type PersonGeneration string

const (
	PersonGenerationDontAllow  PersonGeneration = "dont_allow"
	PersonGenerationAllowAdult PersonGeneration = "allow_adult"
	PersonGenerationAllowAll   PersonGeneration = "allow_all"
)

// OutputFormat is the MIME type requested from the API.
type OutputFormat string

const (
	OutputFormatPNG  OutputFormat = "image/png"
	OutputFormatJPEG OutputFormat = "image/jpeg"
)

// Image count bounds for a single request.
const (
	MinImagesPerRequest = 1
	MaxImagesPerRequest = 4
)

// Models lists every model the server accepts, default first.
var Models = []Model{ModelImagen3, ModelImagen4, ModelImagen4Ultra, ModelImagen4Fast}

// AspectRatios lists the supported aspect ratios.
var AspectRatios = []AspectRatio{AspectRatio1x1, AspectRatio3x4, AspectRatio4x3, AspectRatio9x16, AspectRatio16x9}

// PersonGenerationPolicies lists the supported person generation policies.
var PersonGenerationPolicies = []PersonGeneration{PersonGenerationDontAllow, PersonGenerationAllowAdult, PersonGenerationAllowAll}

// OutputFormats lists the supported output MIME types.
var OutputFormats = []OutputFormat{OutputFormatPNG, OutputFormatJPEG}

// GenerationRequest is the normalized input to one predict call.
type GenerationRequest struct {
	Prompt           string
	Model            Model
	NumberOfImages   int
	AspectRatio      AspectRatio
	PersonGeneration PersonGeneration
	NegativePrompt   string
	Seed             *int64
	OutputFormat     OutputFormat
}

// WithDefaults returns a copy of the request with every unset field filled in.
// An empty model resolves to defaultModel, or ModelDefault when that is empty too.
func (r GenerationRequest) WithDefaults(defaultModel Model) GenerationRequest {
	if r.Model == "" {
		r.Model = defaultModel
	}
	if r.Model == "" {
		r.Model = ModelDefault
	}
	if r.NumberOfImages == 0 {
		r.NumberOfImages = 1
	}
	if r.AspectRatio == "" {
		r.AspectRatio = AspectRatio1x1
	}
	if r.PersonGeneration == "" {
		r.PersonGeneration = PersonGenerationAllowAdult
	}
	if r.OutputFormat == "" {
		r.OutputFormat = OutputFormatPNG
	}
	if r.Seed != nil {
		seed := *r.Seed
		r.Seed = &seed
	}
	return r
}

// SharedSettings are applied to every prompt of a batch.
type SharedSettings struct {
	AspectRatio      AspectRatio
	PersonGeneration PersonGeneration
	OutputFormat     OutputFormat
}

// BatchJob is an ordered list of prompts generated with one shared parameter set.
type BatchJob struct {
	Prompts []string
	Model   Model
	Shared  SharedSettings
}

// Requests expands the job into one single-image request per prompt, in order.
func (j BatchJob) Requests(defaultModel Model) []GenerationRequest {
	reqs := make([]GenerationRequest, len(j.Prompts))
	for i, prompt := range j.Prompts {
		reqs[i] = GenerationRequest{
			Prompt:           prompt,
			Model:            j.Model,
			NumberOfImages:   1,
			AspectRatio:      j.Shared.AspectRatio,
			PersonGeneration: j.Shared.PersonGeneration,
			OutputFormat:     j.Shared.OutputFormat,
		}.WithDefaults(defaultModel)
	}
	return reqs
}

// String returns the model identifier.
func (m Model) String() string {
	return string(m)
}

// String returns the ratio as sent in aspectRatio, e.g. "16:9".
func (a AspectRatio) String() string {
	return string(a)
}

// String returns the policy as sent in personGeneration.
func (p PersonGeneration) String() string {
	return string(p)
}

// String returns the MIME type.
func (f OutputFormat) String() string {
	return string(f)
}
