package ai

import (
	"encoding/json"
	"fmt"
)

const (
	maxOutputTokens  = 4000
	anthropicVersion = "2023-06-01"
)

// UpstreamRequest is a fully translated provider call, ready to dispatch.
type UpstreamRequest struct {
	URL     string
	Headers map[string]string
	Body    []byte

	// Family decides which streaming fragment path the accumulator uses.
	Family Family
}

type openAIChatReq struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type anthropicChatReq struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	MaxTokens int       `json:"max_tokens"`
}

// BuildRequest shapes the provider-agnostic message list into the wire form
// the resolved provider expects, and attaches its auth scheme.
func BuildRequest(info ModelInfo, msgs []Message) (*UpstreamRequest, error) {
	headers := map[string]string{"Content-Type": "application/json"}

	var body []byte
	var err error

	switch info.Family {
	case FamilyOpenAI, FamilyOpenAICompat:
		req := openAIChatReq{
			Model:     info.UpstreamModel,
			Messages:  msgs,
			Stream:    true,
			MaxTokens: maxOutputTokens,
		}
		// Reasoning variants reject sampling parameters outright.
		if !info.Reasoning {
			t := 0.7
			req.Temperature = &t
		}
		body, err = json.Marshal(req)
		headers["Authorization"] = "Bearer " + info.APIKey

	case FamilyAnthropic:
		// Anthropic forbids inline system messages: everything that is
		// not a user turn is relayed as assistant.
		renamed := make([]Message, 0, len(msgs))
		for _, m := range msgs {
			role := RoleAssistant
			if m.Role == RoleUser {
				role = RoleUser
			}
			renamed = append(renamed, Message{Role: role, Content: m.Content})
		}
		body, err = json.Marshal(anthropicChatReq{
			Model:     info.UpstreamModel,
			Messages:  renamed,
			Stream:    true,
			MaxTokens: maxOutputTokens,
		})
		headers["x-api-key"] = info.APIKey
		headers["anthropic-version"] = anthropicVersion

	default:
		return nil, fmt.Errorf("unsupported model family %q for %s", info.Family, info.Model)
	}
	if err != nil {
		return nil, err
	}

	return &UpstreamRequest{
		URL:     info.Endpoint,
		Headers: headers,
		Body:    body,
		Family:  info.Family,
	}, nil
}
