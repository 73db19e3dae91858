package ai

import (
	"errors"
	"fmt"
)

// Message is the provider-agnostic chat turn exchanged with upstreams.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Family identifies the wire dialect an upstream speaks. Request bodies,
// auth headers, and streaming fragment paths all key off it.
type Family string

const (
	// FamilyOpenAI: bearer auth, choices[0].delta.content streaming.
	FamilyOpenAI Family = "openai"
	// FamilyAnthropic: x-api-key auth + version header, content[0].text.
	FamilyAnthropic Family = "anthropic"
	// FamilyOpenAICompat: OpenAI wire shape on a different base URL and key.
	FamilyOpenAICompat Family = "openai-compat"
)

// ModelInfo is one row of the provider registry: everything needed to turn a
// client-facing model id into an upstream call.
type ModelInfo struct {
	// Model is the client-facing id.
	Model string
	// UpstreamModel is what the provider is actually asked for; it can
	// differ from Model (gpt-4o-mini is served by gpt-4 upstream).
	UpstreamModel string
	Family        Family
	Endpoint      string
	APIKey        string
	// Reasoning model variants reject sampling parameters; the translator
	// omits temperature for them.
	Reasoning bool
}

// ErrUnknownModel is returned by Registry.Lookup for ids outside the table.
var ErrUnknownModel = errors.New("unknown model")

// UpstreamError is a non-2xx reply from a provider. Message carries the
// provider's own error text when it could be parsed out of the body.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("API error: %s", e.Message)
}
