package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role represents a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind identifies the type of a ContentPart.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentImage      ContentKind = "image"
	ContentVideo      ContentKind = "video"
	ContentDocument   ContentKind = "document"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
	ContentThinking   ContentKind = "thinking"
)

// ContentPart is a tagged union. Only the field matching Kind is populated.
type ContentPart struct {
	Kind       ContentKind
	Text       string          // ContentText
	Media      *MediaData      // ContentImage, ContentVideo, ContentDocument
	ToolCall   *ToolCallData   // ContentToolCall
	ToolResult *ToolResultData // ContentToolResult
	Thinking   *ThinkingData   // ContentThinking
}

// MediaData carries an image, video or document attachment.
//
// Exactly one of Data and S3URI is set. Bedrock only accepts S3 locations for
// video.
type MediaData struct {
	Format string // bedrock format name, e.g. "png", "mp4", "pdf"
	Data   []byte // raw bytes
	S3URI  string // s3://bucket/key
	Name   string // document name, required by Bedrock for documents
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// ImagePart returns an inline image content part.
func ImagePart(format string, data []byte) ContentPart {
	return ContentPart{Kind: ContentImage, Media: &MediaData{Format: format, Data: data}}
}

// VideoPart returns an inline video content part.
func VideoPart(format string, data []byte) ContentPart {
	return ContentPart{Kind: ContentVideo, Media: &MediaData{Format: format, Data: data}}
}

// S3VideoPart returns a video content part that references an S3 object.
func S3VideoPart(format, uri string) ContentPart {
	return ContentPart{Kind: ContentVideo, Media: &MediaData{Format: format, S3URI: uri}}
}

// DocumentPart returns an inline document content part.
func DocumentPart(format, name string, data []byte) ContentPart {
	return ContentPart{Kind: ContentDocument, Media: &MediaData{Format: format, Name: name, Data: data}}
}

type ToolCallData struct {
	ID        string          // provider-assigned unique ID
	Name      string          // tool name
	Arguments json.RawMessage // JSON arguments
}

// ParseArgs unmarshals the tool call's JSON arguments into a ToolCallArgs map.
func (tc ToolCallData) ParseArgs() (ToolCallArgs, error) {
	args := make(ToolCallArgs)
	if len(tc.Arguments) > 0 {
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// Result creates a successful tool result message for this call.
func (tc ToolCallData) Result(content string) Message {
	return ToolResultMessage(tc.ID, content, false)
}

// ErrorResult creates an error tool result message for this call.
func (tc ToolCallData) ErrorResult(content string) Message {
	return ToolResultMessage(tc.ID, content, true)
}

// ToolCallArgs provides typed access to parsed tool call arguments.
type ToolCallArgs map[string]any

// String returns the string value for the given key.
func (a ToolCallArgs) String(name string) (string, bool) {
	v, ok := a[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float64 returns the float64 value for the given key.
func (a ToolCallArgs) Float64(name string) (float64, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Int returns the value for the given key as an int (truncating any decimal).
func (a ToolCallArgs) Int(name string) (int, bool) {
	f, ok := a.Float64(name)
	if !ok {
		return 0, false
	}
	return int(f), ok
}

// Bool returns the boolean value for the given key.
func (a ToolCallArgs) Bool(name string) (bool, bool) {
	v, ok := a[name]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

type ToolResultData struct {
	ToolCallID string // correlates to ToolCallData.ID
	Content    string
	IsError    bool
}

type ThinkingData struct {
	Text      string
	Signature string // needed to send the block back to Anthropic models
}

// Message is a single message in a conversation.
type Message struct {
	Role       Role
	Content    []ContentPart
	ToolCallID string // tool result messages only
}

// Text concatenates all text content parts in the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if p.Kind == ContentText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the tool calls in the message, in order.
func (m Message) ToolCalls() []ToolCallData {
	var calls []ToolCallData
	for _, p := range m.Content {
		if p.Kind == ContentToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// SystemMessage creates a system message with a single text part.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(text)}}
}

// UserMessage creates a user message. The text comes first, followed by any
// extra parts such as attachments.
func UserMessage(text string, parts ...ContentPart) Message {
	content := make([]ContentPart, 0, len(parts)+1)
	content = append(content, TextPart(text))
	content = append(content, parts...)
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message with a single text part.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart(text)}}
}

// ToolResultMessage creates a tool result message.
func ToolResultMessage(callID, content string, isError bool) Message {
	return Message{
		Role: RoleTool,
		Content: []ContentPart{{
			Kind: ContentToolResult,
			ToolResult: &ToolResultData{
				ToolCallID: callID,
				Content:    content,
				IsError:    isError,
			},
		}},
		ToolCallID: callID,
	}
}

// ToolChoiceMode controls how the model selects tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNamed    ToolChoiceMode = "named"
)

// ToolChoice specifies how the model should select tools.
type ToolChoice struct {
	Mode     ToolChoiceMode
	ToolName string // required when Mode == ToolChoiceNamed
}

// ToolDefinition describes a tool the model can call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema with root type "object"
	params      []Param         // retained from NewTool for ParseArgs
}

// ParseArgs unmarshals a tool call's arguments and validates them against
// the parameter definitions.
func (td ToolDefinition) ParseArgs(tc ToolCallData) (ToolCallArgs, error) {
	args, err := tc.ParseArgs()
	if err != nil {
		return nil, err
	}
	for _, p := range td.params {
		v, ok := args[p.Name]
		if !ok {
			if p.Required {
				return nil, fmt.Errorf("missing required parameter %q", p.Name)
			}
			continue
		}
		var typeOK bool
		switch p.Type {
		case "string":
			_, typeOK = v.(string)
		case "number", "integer":
			_, typeOK = v.(float64)
		case "boolean":
			_, typeOK = v.(bool)
		case "array":
			_, typeOK = v.([]any)
		default:
			typeOK = true
		}
		if !typeOK {
			return nil, fmt.Errorf("parameter %q: expected %s, got %T", p.Name, p.Type, v)
		}
	}
	return args, nil
}

// Param describes a single tool input parameter.
type Param struct {
	Name        string
	Type        string // "string", "number", "integer", "boolean", "array"
	Description string
	Required    bool
}

func newParam(name, typ string, required bool, desc []string) Param {
	p := Param{Name: name, Type: typ, Required: required}
	if len(desc) > 0 {
		p.Description = desc[0]
	}
	return p
}

// StringParam creates a required string parameter.
func StringParam(name string, desc ...string) Param { return newParam(name, "string", true, desc) }

// OptionalStringParam creates an optional string parameter.
func OptionalStringParam(name string, desc ...string) Param {
	return newParam(name, "string", false, desc)
}

// NumberParam creates a required number parameter.
func NumberParam(name string, desc ...string) Param { return newParam(name, "number", true, desc) }

// OptionalNumberParam creates an optional number parameter.
func OptionalNumberParam(name string, desc ...string) Param {
	return newParam(name, "number", false, desc)
}

// IntegerParam creates a required integer parameter.
func IntegerParam(name string, desc ...string) Param { return newParam(name, "integer", true, desc) }

// OptionalIntegerParam creates an optional integer parameter.
func OptionalIntegerParam(name string, desc ...string) Param {
	return newParam(name, "integer", false, desc)
}

// BoolParam creates a required boolean parameter.
func BoolParam(name string, desc ...string) Param { return newParam(name, "boolean", true, desc) }

// OptionalBoolParam creates an optional boolean parameter.
func OptionalBoolParam(name string, desc ...string) Param {
	return newParam(name, "boolean", false, desc)
}

// ArrayParam creates a required array parameter.
func ArrayParam(name string, desc ...string) Param { return newParam(name, "array", true, desc) }

// NewTool creates a ToolDefinition with a JSON Schema built from params.
func NewTool(name, description string, params ...Param) ToolDefinition {
	properties := make(map[string]map[string]string, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		prop := map[string]string{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	raw, _ := json.Marshal(schema)
	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  raw,
		params:      params,
	}
}

// Request is the unified InvokeModel request handed to an Adapter.
type Request struct {
	Model           string
	Messages        []Message
	Provider        string
	Tools           []ToolDefinition
	ToolChoice      *ToolChoice
	Temperature     *float64
	TopP            *float64
	TopK            *int
	MaxTokens       *int
	StopSequences   []string
	ReasoningEffort string // "low", "medium", "high"
}

// FinishReason describes why generation stopped.
type FinishReason struct {
	Reason string // one of the FinishReason* constants, or Raw when unmapped
	Raw    string // provider's native string
}

const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolUse       = "tool_use"
	FinishReasonContentFilter = "content_filter"
)

// Usage contains token counts from the response.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	ReasoningTokens  int
}

// Add sums two Usage values.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + other.InputTokens,
		OutputTokens:     u.OutputTokens + other.OutputTokens,
		CacheReadTokens:  u.CacheReadTokens + other.CacheReadTokens,
		CacheWriteTokens: u.CacheWriteTokens + other.CacheWriteTokens,
		ReasoningTokens:  u.ReasoningTokens + other.ReasoningTokens,
	}
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Response is the unified response from either call shape.
type Response struct {
	ID           string // provider message id, when the body carries one
	RequestID    string // Bedrock request id
	Model        string
	Provider     string
	Message      Message
	FinishReason FinishReason
	Usage        Usage
	Raw          []byte // raw InvokeModel body; nil for Converse
}

// Text returns concatenated text from all text content parts.
func (r *Response) Text() string {
	return r.Message.Text()
}

// ToolCalls returns all tool call content parts from the response message.
func (r *Response) ToolCalls() []ToolCallData {
	return r.Message.ToolCalls()
}
