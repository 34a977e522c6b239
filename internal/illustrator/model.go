package illustrator

import "strings"

// Model IDs
//
// | Model                         | API Model ID               | Use                          |
// |-------------------------------|----------------------------|------------------------------|
// | Gemini 2.5 Flash              | gemini-2.5-flash           | style analysis (default)     |
// | Gemini 2.5 Pro                | gemini-2.5-pro             | style analysis, higher cost  |
// | Imagen 4                      | imagen-4.0-generate-001    | illustration (default)       |
// | Gemini 2.5 Flash Image        | gemini-2.5-flash-image     | illustration via Gemini      |
// | Gemini 3 Pro Image (Preview)  | gemini-3-pro-image-preview | illustration via Gemini      |
const (
	// ModelGemini25Flash is stable, balanced performance.
	ModelGemini25Flash = "gemini-2.5-flash"

	// ModelGemini25Pro is stable, for high-reasoning tasks.
	ModelGemini25Pro = "gemini-2.5-pro"

	// ModelImagen4 generates images from a text prompt.
	ModelImagen4 = "imagen-4.0-generate-001"

	// ModelGemini25FlashImage generates images through generateContent.
	ModelGemini25FlashImage = "gemini-2.5-flash-image"

	// ModelGemini3ProImage is for advanced image generation.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"
)

const (
	// DefaultAnalysisModel describes reference images.
	DefaultAnalysisModel = ModelGemini25Flash

	// DefaultImageModel renders page illustrations.
	DefaultImageModel = ModelImagen4
)

// IsImagenModel reports whether model is served by the predict (Imagen)
// endpoint rather than generateContent.
func IsImagenModel(model string) bool {
	return strings.HasPrefix(strings.TrimPrefix(model, "models/"), "imagen-")
}
