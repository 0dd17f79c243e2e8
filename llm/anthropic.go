package llm

import (
	"encoding/json"
	"fmt"
)

// AnthropicAdapter translates between unified types and the Anthropic
// Messages API body accepted by Claude models on Bedrock.
type AnthropicAdapter struct{}

// NewAnthropicAdapter creates a new AnthropicAdapter.
func NewAnthropicAdapter() *AnthropicAdapter {
	return &AnthropicAdapter{}
}

func (a *AnthropicAdapter) Provider() string { return "anthropic" }

const (
	anthropicBedrockVersion = "bedrock-2023-05-31"
	anthropicDefaultMax     = 4096
)

// --- Anthropic request types ---

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           []anthropicContent `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Tools            []anthropicTool    `json:"tools,omitempty"`
	ToolChoice       any                `json:"tool_choice,omitempty"`
	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	TopK             *int               `json:"top_k,omitempty"`
	StopSequences    []string           `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type         string           `json:"type"`
	Text         string           `json:"text,omitempty"`
	Source       *anthropicSource `json:"source,omitempty"`
	ID           string           `json:"id,omitempty"`
	Name         string           `json:"name,omitempty"`
	Input        json.RawMessage  `json:"input,omitempty"`
	ToolUseID    string           `json:"tool_use_id,omitempty"`
	Content      string           `json:"content,omitempty"`
	IsError      *bool            `json:"is_error,omitempty"`
	Thinking     string           `json:"thinking,omitempty"`
	Signature    string           `json:"signature,omitempty"`
	CacheControl *cacheControl    `json:"cache_control,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"` // base64 on the wire
}

type cacheControl struct {
	Type string `json:"type"`
}

type anthropicTool struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	CacheControl *cacheControl   `json:"cache_control,omitempty"`
}

func (a *AnthropicAdapter) BuildInvokeInput(req *Request) (*InvokeInput, error) {
	ar := anthropicRequest{
		AnthropicVersion: anthropicBedrockVersion,
		MaxTokens:        anthropicDefaultMax,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
	}
	if req.MaxTokens != nil {
		ar.MaxTokens = *req.MaxTokens
	}
	if len(req.StopSequences) > 0 {
		ar.StopSequences = req.StopSequences
	}

	var nonSystem []Message
	for _, m := range req.Messages {
		if m.Role != RoleSystem {
			nonSystem = append(nonSystem, m)
			continue
		}
		for _, p := range m.Content {
			if p.Kind == ContentText {
				ar.System = append(ar.System, anthropicContent{Type: "text", Text: p.Text})
			}
		}
	}
	if len(ar.System) > 0 {
		ar.System[len(ar.System)-1].CacheControl = &cacheControl{Type: "ephemeral"}
	}

	for _, m := range nonSystem {
		am, err := a.translateMessage(m)
		if err != nil {
			return nil, &Error{Kind: ErrInvalidRequest, Provider: a.Provider(), Message: err.Error()}
		}
		// strict user/assistant alternation: merge consecutive same-role messages
		if n := len(ar.Messages); n > 0 && ar.Messages[n-1].Role == am.Role {
			ar.Messages[n-1].Content = append(ar.Messages[n-1].Content, am.Content...)
		} else {
			ar.Messages = append(ar.Messages, am)
		}
	}

	if len(req.Tools) > 0 {
		for _, td := range req.Tools {
			ar.Tools = append(ar.Tools, anthropicTool{
				Name:        td.Name,
				Description: td.Description,
				InputSchema: td.Parameters,
			})
		}
		ar.Tools[len(ar.Tools)-1].CacheControl = &cacheControl{Type: "ephemeral"}
	}

	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case ToolChoiceAuto:
			ar.ToolChoice = map[string]string{"type": "auto"}
		case ToolChoiceNone:
			ar.Tools = nil
			ar.ToolChoice = nil
		case ToolChoiceRequired:
			ar.ToolChoice = map[string]string{"type": "any"}
		case ToolChoiceNamed:
			ar.ToolChoice = map[string]string{"type": "tool", "name": req.ToolChoice.ToolName}
		}
	}

	body, err := json.Marshal(ar)
	if err != nil {
		return nil, adapterError(a.Provider(), "failed to marshal request", err, nil)
	}
	return jsonInvokeInput(req.Model, body), nil
}

func (a *AnthropicAdapter) translateMessage(m Message) (anthropicMessage, error) {
	am := anthropicMessage{Role: "user"}
	if m.Role == RoleAssistant {
		am.Role = "assistant"
	}

	for _, p := range m.Content {
		switch p.Kind {
		case ContentText:
			am.Content = append(am.Content, anthropicContent{Type: "text", Text: p.Text})
		case ContentImage:
			if p.Media == nil || len(p.Media.Data) == 0 {
				return am, fmt.Errorf("image content has no bytes")
			}
			am.Content = append(am.Content, anthropicContent{
				Type:   "image",
				Source: &anthropicSource{Type: "base64", MediaType: "image/" + p.Media.Format, Data: p.Media.Data},
			})
		case ContentDocument:
			if p.Media == nil || p.Media.Format != "pdf" {
				return am, fmt.Errorf("only pdf documents are supported")
			}
			am.Content = append(am.Content, anthropicContent{
				Type:   "document",
				Source: &anthropicSource{Type: "base64", MediaType: "application/pdf", Data: p.Media.Data},
			})
		case ContentVideo:
			return am, fmt.Errorf("video content is not supported")
		case ContentToolCall:
			am.Content = append(am.Content, anthropicContent{
				Type:  "tool_use",
				ID:    p.ToolCall.ID,
				Name:  p.ToolCall.Name,
				Input: p.ToolCall.Arguments,
			})
		case ContentToolResult:
			c := anthropicContent{
				Type:      "tool_result",
				ToolUseID: p.ToolResult.ToolCallID,
				Content:   p.ToolResult.Content,
			}
			if p.ToolResult.IsError {
				isErr := true
				c.IsError = &isErr
			}
			am.Content = append(am.Content, c)
		case ContentThinking:
			am.Content = append(am.Content, anthropicContent{
				Type:      "thinking",
				Thinking:  p.Thinking.Text,
				Signature: p.Thinking.Signature,
			})
		}
	}

	return am, nil
}

// --- Anthropic response types ---

type anthropicResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

func (a *AnthropicAdapter) ParseResponse(body []byte, req *Request) (*Response, error) {
	var ar anthropicResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, adapterError(a.Provider(), "failed to unmarshal response", err, body)
	}
	if ar.Role != "" && ar.Role != "assistant" {
		return nil, adapterError(a.Provider(), fmt.Sprintf("unexpected response role %q", ar.Role), nil, body)
	}

	msg := Message{Role: RoleAssistant}
	for _, c := range ar.Content {
		switch c.Type {
		case "text":
			msg.Content = append(msg.Content, TextPart(c.Text))
		case "tool_use":
			msg.Content = append(msg.Content, ContentPart{
				Kind:     ContentToolCall,
				ToolCall: &ToolCallData{ID: c.ID, Name: c.Name, Arguments: c.Input},
			})
		case "thinking":
			msg.Content = append(msg.Content, ContentPart{
				Kind:     ContentThinking,
				Thinking: &ThinkingData{Text: c.Thinking, Signature: c.Signature},
			})
		}
	}

	model := ar.Model
	if model == "" {
		model = req.Model
	}

	return &Response{
		ID:           ar.ID,
		Model:        model,
		Provider:     a.Provider(),
		Message:      msg,
		FinishReason: mapAnthropicStopReason(ar.StopReason),
		Usage: Usage{
			InputTokens:      ar.Usage.InputTokens,
			OutputTokens:     ar.Usage.OutputTokens,
			CacheReadTokens:  ar.Usage.CacheReadInputTokens,
			CacheWriteTokens: ar.Usage.CacheCreationInputTokens,
		},
		Raw: body,
	}, nil
}

func mapAnthropicStopReason(raw string) FinishReason {
	switch raw {
	case "end_turn", "stop_sequence":
		return FinishReason{Reason: FinishReasonStop, Raw: raw}
	case "max_tokens":
		return FinishReason{Reason: FinishReasonLength, Raw: raw}
	case "tool_use":
		return FinishReason{Reason: FinishReasonToolUse, Raw: raw}
	case "refusal":
		return FinishReason{Reason: FinishReasonContentFilter, Raw: raw}
	default:
		return FinishReason{Reason: raw, Raw: raw}
	}
}
