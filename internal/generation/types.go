package generation

import "errors"

var (
	// ErrAuthentication marks an API-key rejection; never retried on the
	// fallback tier.
	ErrAuthentication = errors.New("generation backend rejected credentials")

	// ErrEmptyResponse is returned when the model produced no text at all.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrMalformedResponse is returned when neither strict parsing nor the
	// brace-scan fallback yields a usable payload.
	ErrMalformedResponse = errors.New("failed to parse model response")
)

// ChatMessage is one transcript entry as sent to the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Question is a clarifying question the model wants answered before it
// commits to an implementation.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// Image is an inline attachment forwarded with the prompt.
type Image struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// Result is the structured payload the model returns. Files, when present,
// is a partial patch: present keys replace or add, absent keys are left
// untouched by the caller.
type Result struct {
	Files     map[string]string `json:"files,omitempty"`
	Answer    string            `json:"answer"`
	Thought   string            `json:"thought,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Questions []Question        `json:"questions,omitempty"`
}

// Request carries everything one generation call needs.
type Request struct {
	Prompt       string
	CurrentFiles map[string]string
	History      []ChatMessage
	Image        *Image
	HighTier     bool
	SupabaseURL  string
	SupabaseKey  string
}
