package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// GptOss20B is the smallest Bedrock-hosted gpt-oss model.
const GptOss20B = "openai.gpt-oss-20b-1:0"

// OpenAIAdapter translates between unified types and the Chat Completions
// body accepted by the gpt-oss models on Bedrock.
type OpenAIAdapter struct{}

// NewOpenAIAdapter creates a new OpenAIAdapter.
func NewOpenAIAdapter() *OpenAIAdapter {
	return &OpenAIAdapter{}
}

func (a *OpenAIAdapter) Provider() string { return "openai" }

// --- OpenAI request types ---

type openaiRequest struct {
	Model           string          `json:"model"`
	Messages        []openaiMessage `json:"messages"`
	Tools           []openaiTool    `json:"tools,omitempty"`
	ToolChoice      any             `json:"tool_choice,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	MaxTokens       *int            `json:"max_tokens,omitempty"`
	Stop            []string        `json:"stop,omitempty"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content"` // string or null
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiToolFunction `json:"function"`
}

type openaiToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiTool struct {
	Type     string        `json:"type"`
	Function openaiToolDef `json:"function"`
}

type openaiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

var reasoningEfforts = map[string]bool{"low": true, "medium": true, "high": true}

// BuildInvokeInput renders req as a Chat Completions body. gpt-oss on Bedrock
// takes text only, so media parts are rejected rather than dropped.
func (a *OpenAIAdapter) BuildInvokeInput(req *Request) (*InvokeInput, error) {
	if req.ReasoningEffort != "" && !reasoningEfforts[req.ReasoningEffort] {
		return nil, &Error{Kind: ErrInvalidRequest, Provider: a.Provider(),
			Message: fmt.Sprintf("reasoning effort %q is not one of low, medium, high", req.ReasoningEffort)}
	}

	or := openaiRequest{
		Model:           req.Model,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxTokens:       req.MaxTokens,
		Stop:            req.StopSequences,
		ReasoningEffort: req.ReasoningEffort,
		ToolChoice:      openaiToolChoice(req.ToolChoice),
	}

	var err error
	for _, m := range req.Messages {
		if or.Messages, err = a.appendMessage(or.Messages, m); err != nil {
			return nil, err
		}
	}

	for _, td := range req.Tools {
		or.Tools = append(or.Tools, openaiTool{
			Type:     "function",
			Function: openaiToolDef{Name: td.Name, Description: td.Description, Parameters: td.Parameters},
		})
	}

	body, err := json.Marshal(or)
	if err != nil {
		return nil, adapterError(a.Provider(), "failed to marshal request", err, nil)
	}
	return jsonInvokeInput(req.Model, body), nil
}

func openaiToolChoice(tc *ToolChoice) any {
	if tc == nil {
		return nil
	}
	switch tc.Mode {
	case ToolChoiceAuto, ToolChoiceNone, ToolChoiceRequired:
		return string(tc.Mode)
	case ToolChoiceNamed:
		return map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tc.ToolName},
		}
	}
	return nil
}

// appendMessage adds the Chat Completions form of m to dst. A tool message
// carrying several results becomes one "tool" message per result.
func (a *OpenAIAdapter) appendMessage(dst []openaiMessage, m Message) ([]openaiMessage, error) {
	for _, p := range m.Content {
		switch p.Kind {
		case ContentImage, ContentVideo, ContentDocument:
			return nil, &Error{Kind: ErrInvalidRequest, Provider: a.Provider(),
				Message: fmt.Sprintf("%s content is not supported by gpt-oss", p.Kind)}
		}
	}

	switch m.Role {
	case RoleSystem, RoleUser:
		return append(dst, openaiMessage{Role: string(m.Role), Content: m.Text()}), nil

	case RoleAssistant:
		om := openaiMessage{Role: "assistant"}
		for _, tc := range m.ToolCalls() {
			om.ToolCalls = append(om.ToolCalls, openaiToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: openaiToolFunction{Name: tc.Name, Arguments: string(tc.Arguments)},
			})
		}
		// content must be null, not "", alongside tool calls
		if text := m.Text(); text != "" || len(om.ToolCalls) == 0 {
			om.Content = text
		}
		return append(dst, om), nil

	case RoleTool:
		for _, p := range m.Content {
			if p.Kind != ContentToolResult || p.ToolResult == nil {
				continue
			}
			dst = append(dst, openaiMessage{
				Role:       "tool",
				Content:    p.ToolResult.Content,
				ToolCallID: p.ToolResult.ToolCallID,
			})
		}
		return dst, nil
	}

	return nil, &Error{Kind: ErrInvalidRequest, Provider: a.Provider(), Message: fmt.Sprintf("unsupported role %q", m.Role)}
}

// --- OpenAI response types ---

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiRespMsg `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiRespMsg struct {
	Role      string           `json:"role"`
	Content   *string          `json:"content"`
	ToolCalls []openaiToolCall `json:"tool_calls,omitempty"`
}

type openaiUsage struct {
	PromptTokens      int                      `json:"prompt_tokens"`
	CompletionTokens  int                      `json:"completion_tokens"`
	PromptDetails     *openaiPromptDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionDetails *openaiCompletionDetails `json:"completion_tokens_details,omitempty"`
}

type openaiPromptDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

type openaiCompletionDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}

func (a *OpenAIAdapter) ParseResponse(body []byte, req *Request) (*Response, error) {
	var or openaiResponse
	if err := json.Unmarshal(body, &or); err != nil {
		return nil, adapterError(a.Provider(), "failed to unmarshal response", err, body)
	}

	if len(or.Choices) == 0 {
		return nil, adapterError(a.Provider(), "response has no choices", nil, body)
	}

	choice := or.Choices[0]
	msg := Message{Role: RoleAssistant}

	if choice.Message.Content != nil && *choice.Message.Content != "" {
		reasoning, text := splitReasoning(*choice.Message.Content)
		if reasoning != "" {
			msg.Content = append(msg.Content, ContentPart{Kind: ContentThinking, Thinking: &ThinkingData{Text: reasoning}})
		}
		if text != "" {
			msg.Content = append(msg.Content, TextPart(text))
		}
	}

	for _, tc := range choice.Message.ToolCalls {
		msg.Content = append(msg.Content, ContentPart{
			Kind: ContentToolCall,
			ToolCall: &ToolCallData{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			},
		})
	}

	usage := Usage{
		InputTokens:  or.Usage.PromptTokens,
		OutputTokens: or.Usage.CompletionTokens,
	}
	if or.Usage.PromptDetails != nil {
		usage.CacheReadTokens = or.Usage.PromptDetails.CachedTokens
	}
	if or.Usage.CompletionDetails != nil {
		usage.ReasoningTokens = or.Usage.CompletionDetails.ReasoningTokens
	}

	model := or.Model
	if model == "" {
		model = req.Model
	}

	return &Response{
		ID:           or.ID,
		Model:        model,
		Provider:     a.Provider(),
		Message:      msg,
		FinishReason: mapOpenAIFinishReason(choice.FinishReason),
		Usage:        usage,
		Raw:          body,
	}, nil
}

func mapOpenAIFinishReason(raw string) FinishReason {
	switch raw {
	case "stop":
		return FinishReason{Reason: FinishReasonStop, Raw: raw}
	case "length":
		return FinishReason{Reason: FinishReasonLength, Raw: raw}
	case "tool_calls", "function_call":
		return FinishReason{Reason: FinishReasonToolUse, Raw: raw}
	case "content_filter":
		return FinishReason{Reason: FinishReasonContentFilter, Raw: raw}
	default:
		return FinishReason{Reason: raw, Raw: raw}
	}
}

var reasoningRe = regexp.MustCompile(`(?s)^\s*<reasoning>(.*?)</reasoning>`)

// splitReasoning separates the leading <reasoning> block gpt-oss emits
// inline from the answer text.
func splitReasoning(content string) (reasoning, text string) {
	m := reasoningRe.FindStringSubmatchIndex(content)
	if m == nil {
		return "", content
	}
	return strings.TrimSpace(content[m[2]:m[3]]), strings.TrimSpace(content[m[1]:])
}
