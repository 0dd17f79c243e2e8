package llm

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// NovaLiteProfile is the cross-region inference profile for Nova Lite.
// Nova text models are only reachable through inference profiles in most
// regions, so this is used instead of the bare model id.
const NovaLiteProfile = "us.amazon.nova-lite-v1:0"

// NovaAdapter translates between unified types and the Amazon Nova text
// InvokeModel schema.
//
// See https://docs.aws.amazon.com/nova/latest/userguide/complete-request-schema.html
type NovaAdapter struct{}

// NewNovaAdapter creates a new NovaAdapter.
func NewNovaAdapter() *NovaAdapter {
	return &NovaAdapter{}
}

func (a *NovaAdapter) Provider() string { return "amazon" }

// --- Nova request types ---

type novaRequest struct {
	System          []novaText           `json:"system,omitempty"`
	Messages        []novaMessage        `json:"messages"`
	InferenceConfig *novaInferenceConfig `json:"inferenceConfig,omitempty"`
}

type novaText struct {
	Text string `json:"text"`
}

type novaMessage struct {
	Role    string        `json:"role"`
	Content []novaContent `json:"content"`
}

type novaContent struct {
	Text             *string        `json:"text,omitempty"`
	Image            *novaImage     `json:"image,omitempty"`
	Video            *novaVideo     `json:"video,omitempty"`
	Document         *novaDocument  `json:"document,omitempty"`
	ReasoningContent *novaReasoning `json:"reasoningContent,omitempty"`
}

type novaImage struct {
	Format string     `json:"format"`
	Source novaSource `json:"source"`
}

type novaVideo struct {
	Format string     `json:"format"`
	Source novaSource `json:"source"`
}

type novaDocument struct {
	Format string     `json:"format"`
	Name   string     `json:"name"`
	Source novaSource `json:"source"`
}

// novaSource holds either base64 bytes or an S3 location. []byte marshals
// to standard base64, which is what Nova expects.
type novaSource struct {
	Bytes      []byte          `json:"bytes,omitempty"`
	S3Location *novaS3Location `json:"s3Location,omitempty"`
}

type novaS3Location struct {
	URI string `json:"uri"`
}

type novaReasoning struct {
	ReasoningText *novaText `json:"reasoningText,omitempty"`
}

type novaInferenceConfig struct {
	MaxNewTokens  *int     `json:"max_new_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`
}

func (c novaInferenceConfig) empty() bool {
	return c.MaxNewTokens == nil && c.Temperature == nil && c.TopP == nil && c.TopK == nil && len(c.StopSequences) == 0
}

func (a *NovaAdapter) BuildInvokeInput(req *Request) (*InvokeInput, error) {
	if len(req.Tools) > 0 {
		return nil, &Error{Kind: ErrConfig, Provider: a.Provider(), Message: "tools are not supported over InvokeModel for nova; use Converse"}
	}

	nr := novaRequest{}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			for _, p := range m.Content {
				if p.Kind == ContentText {
					nr.System = append(nr.System, novaText{Text: p.Text})
				}
			}
		case RoleUser, RoleAssistant:
			nm := novaMessage{Role: string(m.Role)}
			for _, p := range m.Content {
				c, err := toNovaContent(p)
				if err != nil {
					return nil, &Error{Kind: ErrInvalidRequest, Provider: a.Provider(), Message: err.Error()}
				}
				nm.Content = append(nm.Content, c)
			}
			nr.Messages = append(nr.Messages, nm)
		default:
			return nil, &Error{Kind: ErrInvalidRequest, Provider: a.Provider(), Message: fmt.Sprintf("unsupported role %q", m.Role)}
		}
	}

	if len(nr.Messages) == 0 || nr.Messages[0].Role != string(RoleUser) {
		return nil, &Error{Kind: ErrInvalidRequest, Provider: a.Provider(), Message: "first message must have the user role"}
	}

	ic := novaInferenceConfig{
		MaxNewTokens:  req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
	}
	if !ic.empty() {
		nr.InferenceConfig = &ic
	}

	body, err := json.Marshal(nr)
	if err != nil {
		return nil, adapterError(a.Provider(), "failed to marshal request", err, nil)
	}
	return jsonInvokeInput(req.Model, body), nil
}

func toNovaContent(p ContentPart) (novaContent, error) {
	switch p.Kind {
	case ContentText:
		text := p.Text
		return novaContent{Text: &text}, nil
	case ContentImage:
		if p.Media == nil || len(p.Media.Data) == 0 {
			return novaContent{}, fmt.Errorf("image content has no bytes")
		}
		return novaContent{Image: &novaImage{Format: p.Media.Format, Source: novaSource{Bytes: p.Media.Data}}}, nil
	case ContentVideo:
		if p.Media == nil {
			return novaContent{}, fmt.Errorf("video content has no source")
		}
		v := &novaVideo{Format: p.Media.Format}
		switch {
		case p.Media.S3URI != "":
			v.Source.S3Location = &novaS3Location{URI: p.Media.S3URI}
		case len(p.Media.Data) > 0:
			v.Source.Bytes = p.Media.Data
		default:
			return novaContent{}, fmt.Errorf("video content has no source")
		}
		return novaContent{Video: v}, nil
	case ContentDocument:
		if p.Media == nil || len(p.Media.Data) == 0 {
			return novaContent{}, fmt.Errorf("document content has no bytes")
		}
		return novaContent{Document: &novaDocument{Format: p.Media.Format, Name: p.Media.Name, Source: novaSource{Bytes: p.Media.Data}}}, nil
	default:
		return novaContent{}, fmt.Errorf("unsupported content kind %q", p.Kind)
	}
}

// --- Nova response types ---
//
// There is no published response schema; this follows observed responses:
//
//	{"output":{"message":{"content":[{"text":"Hello!"}],"role":"assistant"}},
//	 "stopReason":"end_turn",
//	 "usage":{"inputTokens":4,"outputTokens":35,"totalTokens":39}}

type novaResponse struct {
	Output struct {
		Message novaMessage `json:"message"`
	} `json:"output"`
	StopReason string    `json:"stopReason"`
	Usage      novaUsage `json:"usage"`
}

type novaUsage struct {
	InputTokens               int `json:"inputTokens"`
	OutputTokens              int `json:"outputTokens"`
	TotalTokens               int `json:"totalTokens"`
	CacheReadInputTokenCount  int `json:"cacheReadInputTokenCount"`
	CacheWriteInputTokenCount int `json:"cacheWriteInputTokenCount"`
}

func (a *NovaAdapter) ParseResponse(body []byte, req *Request) (*Response, error) {
	var nr novaResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return nil, adapterError(a.Provider(), "failed to unmarshal response", err, body)
	}

	if nr.Output.Message.Role != string(RoleAssistant) {
		return nil, adapterError(a.Provider(), fmt.Sprintf("unexpected response role %q", nr.Output.Message.Role), nil, body)
	}

	msg := Message{Role: RoleAssistant}
	for _, c := range nr.Output.Message.Content {
		switch {
		case c.Text != nil:
			msg.Content = append(msg.Content, TextPart(*c.Text))
		case c.ReasoningContent != nil && c.ReasoningContent.ReasoningText != nil:
			msg.Content = append(msg.Content, ContentPart{
				Kind:     ContentThinking,
				Thinking: &ThinkingData{Text: c.ReasoningContent.ReasoningText.Text},
			})
		case c.Image != nil:
			return nil, adapterError(a.Provider(), req.Model+" returned image output, which is not supported", nil, body)
		case c.Video != nil:
			return nil, adapterError(a.Provider(), req.Model+" returned video output, which is not supported", nil, body)
		}
	}

	return &Response{
		Model:        req.Model,
		Provider:     a.Provider(),
		Message:      msg,
		FinishReason: mapStopReason(types.StopReason(nr.StopReason)),
		Usage: Usage{
			InputTokens:      nr.Usage.InputTokens,
			OutputTokens:     nr.Usage.OutputTokens,
			CacheReadTokens:  nr.Usage.CacheReadInputTokenCount,
			CacheWriteTokens: nr.Usage.CacheWriteInputTokenCount,
		},
		Raw: body,
	}, nil
}
