package llm

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Adapter translates between unified types and a model family's native
// InvokeModel JSON.
type Adapter interface {
	// Provider returns the provider name (e.g., "amazon", "anthropic").
	Provider() string

	// BuildInvokeInput translates a unified Request into InvokeModel parameters.
	BuildInvokeInput(req *Request) (*InvokeInput, error)

	// ParseResponse translates a raw InvokeModel body into a unified Response.
	ParseResponse(body []byte, req *Request) (*Response, error)
}

// InvokeInput carries the parameters for a Bedrock InvokeModel call.
type InvokeInput struct {
	ModelID     string // model or inference profile id
	Body        []byte // serialized JSON in the provider's native format
	ContentType string
	Accept      string
}

func jsonInvokeInput(modelID string, body []byte) *InvokeInput {
	return &InvokeInput{
		ModelID:     modelID,
		Body:        body,
		ContentType: "application/json",
		Accept:      "application/json",
	}
}

// InvokeOutput is the raw result of an InvokeModel call.
type InvokeOutput struct {
	Body        []byte
	ContentType string
	RequestID   string
}

// BedrockInvoker abstracts the Bedrock InvokeModel call for testing.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConverser abstracts the Bedrock Converse call for testing.
type BedrockConverser interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockRuntime is satisfied by *bedrockruntime.Client.
type BedrockRuntime interface {
	BedrockInvoker
	BedrockConverser
}
