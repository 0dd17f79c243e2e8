package llm

import (
	"slices"

	"github.com/jinzhu/copier"
)

// InferenceConfig holds the optional generation parameters for a Conversation.
type InferenceConfig struct {
	MaxTokens     *int
	Temperature   *float64
	TopP          *float64
	StopSequences []string
	ToolChoice    *ToolChoice
}

func (c InferenceConfig) empty() bool {
	return c.MaxTokens == nil && c.Temperature == nil && c.TopP == nil && len(c.StopSequences) == 0
}

// Conversation is the full state of a multi-turn Converse exchange.
//
// A Conversation is a value: Client.Send returns an updated copy and leaves
// its argument untouched, so a failed turn never corrupts the history.
type Conversation struct {
	Model    string
	System   []string
	Messages []Message
	Tools    []ToolDefinition
	Config   InferenceConfig
	Usage    Usage // accumulated across turns
}

// ConversationOption configures a new Conversation.
type ConversationOption func(*Conversation)

// NewConversation starts an empty conversation with the given model or
// inference profile id.
func NewConversation(model string, opts ...ConversationOption) Conversation {
	conv := Conversation{Model: model}
	for _, o := range opts {
		o(&conv)
	}
	return conv
}

// WithSystem appends system prompt blocks.
func WithSystem(text ...string) ConversationOption {
	return func(c *Conversation) {
		for _, t := range text {
			if t != "" {
				c.System = append(c.System, t)
			}
		}
	}
}

func WithMaxTokens(n int) ConversationOption {
	return func(c *Conversation) { c.Config.MaxTokens = &n }
}

func WithTemperature(t float64) ConversationOption {
	return func(c *Conversation) { c.Config.Temperature = &t }
}

func WithTopP(p float64) ConversationOption {
	return func(c *Conversation) { c.Config.TopP = &p }
}

func WithStopSequences(seqs ...string) ConversationOption {
	return func(c *Conversation) { c.Config.StopSequences = append(c.Config.StopSequences, seqs...) }
}

// WithTools makes tools available to the model.
func WithTools(tools ...ToolDefinition) ConversationOption {
	return func(c *Conversation) { c.Tools = append(c.Tools, tools...) }
}

// WithToolChoice sets how the model picks among the tools.
func WithToolChoice(tc ToolChoice) ConversationOption {
	return func(c *Conversation) { c.Config.ToolChoice = &tc }
}

// Clone returns a copy of the conversation whose message history shares no
// memory with the receiver.
func (c Conversation) Clone() (Conversation, error) {
	out := c
	out.System = slices.Clone(c.System)
	out.Tools = slices.Clone(c.Tools)
	out.Config.StopSequences = slices.Clone(c.Config.StopSequences)
	out.Messages = nil
	if len(c.Messages) > 0 {
		if err := copier.CopyWithOption(&out.Messages, &c.Messages, copier.Option{DeepCopy: true}); err != nil {
			return Conversation{}, err
		}
	}
	return out, nil
}

// Turns returns the number of completed user/assistant exchanges.
func (c Conversation) Turns() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleAssistant {
			n++
		}
	}
	return n
}
