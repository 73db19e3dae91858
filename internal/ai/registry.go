package ai

import (
	"fmt"
	"strings"

	"github.com/quillchat/quillchat/internal/config"
)

// Registry is the static model table: one lookup turns a client-facing model
// id into everything provider-specific. Adding a provider means adding rows
// here, not branching anywhere else. Built once at startup; read-only after,
// so it is shared across requests without locking.
type Registry struct {
	models map[string]ModelInfo
}

func NewRegistry(cfg config.Config) *Registry {
	openAI := strings.TrimRight(cfg.OpenAIBaseURL, "/") + "/chat/completions"
	anthropic := strings.TrimRight(cfg.AnthropicBaseURL, "/") + "/messages"
	deepSeek := strings.TrimRight(cfg.DeepSeekBaseURL, "/") + "/chat/completions"

	r := &Registry{models: make(map[string]ModelInfo)}

	add := func(info ModelInfo) {
		r.models[strings.ToLower(info.Model)] = info
	}

	for _, m := range []string{"gpt-4-turbo", "gpt-4", "gpt-3.5-turbo", "gpt-4o"} {
		add(ModelInfo{Model: m, UpstreamModel: m, Family: FamilyOpenAI, Endpoint: openAI, APIKey: cfg.OpenAIAPIKey})
	}
	// gpt-4o-mini is served by gpt-4 upstream, intentionally.
	add(ModelInfo{Model: "gpt-4o-mini", UpstreamModel: "gpt-4", Family: FamilyOpenAI, Endpoint: openAI, APIKey: cfg.OpenAIAPIKey})

	for _, m := range []string{"claude-3-opus", "claude-3-sonnet", "claude-2"} {
		add(ModelInfo{Model: m, UpstreamModel: m, Family: FamilyAnthropic, Endpoint: anthropic, APIKey: cfg.AnthropicAPIKey})
	}

	for _, m := range []string{"deepseek-chat", "deepseek-coder"} {
		add(ModelInfo{Model: m, UpstreamModel: m, Family: FamilyOpenAICompat, Endpoint: deepSeek, APIKey: cfg.DeepSeekAPIKey})
	}
	add(ModelInfo{Model: "deepseek-reasoner", UpstreamModel: "deepseek-reasoner", Family: FamilyOpenAICompat, Endpoint: deepSeek, APIKey: cfg.DeepSeekAPIKey, Reasoning: true})

	return r
}

// Lookup resolves a client-facing model id.
func (r *Registry) Lookup(model string) (ModelInfo, error) {
	info, ok := r.models[strings.ToLower(strings.TrimSpace(model))]
	if !ok {
		return ModelInfo{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return info, nil
}

// Models returns the client-facing ids in the table, for diagnostics.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.models))
	for m := range r.models {
		out = append(out, m)
	}
	return out
}
