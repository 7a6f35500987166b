package ai

// GenerateRequest is the generateContent request body. It is the
// provider-neutral request shape; other providers translate from it.
type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

// Content is one turn of the request.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is either inline binary data or text.
type Part struct {
	InlineData *InlineData `json:"inlineData,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// InlineData carries a base64 encoded payload and its MIME type.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GenerationConfig controls sampling.
type GenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

// DefaultTemperature is used for every analysis request.
const DefaultTemperature = 0.4

// RequestBuilder builds the request body for the given model identifier.
type RequestBuilder func(model string) GenerateRequest

// StatusFunc receives human-readable progress messages.
type StatusFunc func(msg string)

// VisionRequest returns a builder for an image plus instruction prompt.
func VisionRequest(mimeType, base64Data, prompt string) RequestBuilder {
	return func(string) GenerateRequest {
		return GenerateRequest{
			Contents: []Content{{
				Parts: []Part{
					{InlineData: &InlineData{MimeType: mimeType, Data: base64Data}},
					{Text: prompt},
				},
			}},
			GenerationConfig: GenerationConfig{Temperature: DefaultTemperature},
		}
	}
}

// TextRequest returns a builder for a single text prompt.
func TextRequest(prompt string) RequestBuilder {
	return func(string) GenerateRequest {
		return GenerateRequest{
			Contents:         []Content{{Parts: []Part{{Text: prompt}}}},
			GenerationConfig: GenerationConfig{Temperature: DefaultTemperature},
		}
	}
}
