package llm

import (
	"context"
	"errors"
	"strings"

	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithymiddleware "github.com/aws/smithy-go/middleware"
)

// SendFunc is the signature for the core Converse call and middleware next functions.
type SendFunc func(ctx context.Context, conv *Conversation) (*Response, error)

// Middleware wraps a Converse call.
type Middleware func(ctx context.Context, conv *Conversation, next SendFunc) (*Response, error)

// TraceDirection tells a TraceFunc which way a body is travelling.
type TraceDirection string

const (
	TraceRequest  TraceDirection = "request"
	TraceResponse TraceDirection = "response"
)

// TraceFunc observes raw InvokeModel bodies. Used for verbose output.
type TraceFunc func(dir TraceDirection, modelID string, body []byte)

// Client sends Converse and InvokeModel requests to Bedrock.
type Client struct {
	bedrock         BedrockRuntime
	adapters        map[string]Adapter
	defaultProvider string
	middleware      []Middleware
	trace           TraceFunc
}

type clientConfig struct {
	adapters        []Adapter
	defaultProvider string
	middleware      []Middleware
	trace           TraceFunc
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// WithAdapter registers an adapter with the client.
func WithAdapter(a Adapter) ClientOption {
	return func(c *clientConfig) {
		c.adapters = append(c.adapters, a)
	}
}

// WithDefaultProvider sets the adapter used for requests that don't name one.
func WithDefaultProvider(provider string) ClientOption {
	return func(c *clientConfig) {
		c.defaultProvider = provider
	}
}

// WithMiddleware adds Converse middleware to the client.
func WithMiddleware(m ...Middleware) ClientOption {
	return func(c *clientConfig) {
		c.middleware = append(c.middleware, m...)
	}
}

// WithTrace installs a hook that sees every InvokeModel request and response body.
func WithTrace(fn TraceFunc) ClientOption {
	return func(c *clientConfig) {
		c.trace = fn
	}
}

// NewClient creates a new Client with the given Bedrock runtime and options.
func NewClient(bedrock BedrockRuntime, opts ...ClientOption) *Client {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}

	adapters := make(map[string]Adapter, len(cfg.adapters))
	for _, a := range cfg.adapters {
		adapters[a.Provider()] = a
	}

	return &Client{
		bedrock:         bedrock,
		adapters:        adapters,
		defaultProvider: cfg.defaultProvider,
		middleware:      cfg.middleware,
		trace:           cfg.trace,
	}
}

// Send appends msgs to the conversation, sends the whole history through
// Converse, and returns the conversation extended with the assistant reply.
// conv itself is not modified; on error it is returned unchanged.
func (c *Client) Send(ctx context.Context, conv Conversation, msgs ...Message) (Conversation, *Response, error) {
	next, err := conv.Clone()
	if err != nil {
		return conv, nil, &Error{Kind: ErrConfig, Provider: ProviderFromModelID(conv.Model), Message: "copy conversation", Cause: err}
	}
	next.Messages = append(next.Messages, msgs...)

	core := func(ctx context.Context, conv *Conversation) (*Response, error) {
		provider := ProviderFromModelID(conv.Model)
		out, err := c.bedrock.Converse(ctx, toConverseInput(conv))
		if err != nil {
			return nil, classifyBedrockError(provider, err)
		}

		msg, usage, reason, err := fromConverseOutput(out)
		if err != nil {
			return nil, &Error{Kind: ErrAdapter, Provider: provider, Message: err.Error(), Cause: err}
		}

		return &Response{
			RequestID:    requestID(out.ResultMetadata),
			Model:        conv.Model,
			Provider:     provider,
			Message:      *msg,
			FinishReason: reason,
			Usage:        *usage,
		}, nil
	}

	// first registered = outermost
	fn := core
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		inner := fn
		fn = func(ctx context.Context, conv *Conversation) (*Response, error) {
			return mw(ctx, conv, inner)
		}
	}

	resp, err := fn(ctx, &next)
	if err != nil {
		return conv, nil, err
	}

	next.Messages = append(next.Messages, resp.Message)
	next.Usage = next.Usage.Add(resp.Usage)
	return next, resp, nil
}

// Complete routes req to the adapter for its provider and calls InvokeModel.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	provider := req.Provider
	if provider == "" {
		provider = c.defaultProvider
	}
	if provider == "" {
		return nil, &Error{Kind: ErrConfig, Message: "no provider specified and no default provider set"}
	}

	adapter, ok := c.adapters[provider]
	if !ok {
		return nil, &Error{Kind: ErrConfig, Provider: provider, Message: "no adapter registered for provider"}
	}

	input, err := adapter.BuildInvokeInput(req)
	if err != nil {
		return nil, err
	}

	output, err := c.invoke(ctx, provider, input)
	if err != nil {
		return nil, err
	}

	resp, err := adapter.ParseResponse(output.Body, req)
	if err != nil {
		return nil, err
	}
	resp.RequestID = output.RequestID
	return resp, nil
}

// Invoke sends a pre-built body through InvokeModel.
func (c *Client) Invoke(ctx context.Context, input *InvokeInput) (*InvokeOutput, error) {
	return c.invoke(ctx, ProviderFromModelID(input.ModelID), input)
}

func (c *Client) invoke(ctx context.Context, provider string, input *InvokeInput) (*InvokeOutput, error) {
	if input.ModelID == "" {
		return nil, &Error{Kind: ErrConfig, Provider: provider, Message: "model id is empty"}
	}
	if c.trace != nil {
		c.trace(TraceRequest, input.ModelID, input.Body)
	}

	params := &bedrockruntime.InvokeModelInput{
		ModelId: strPtr(input.ModelID),
		Body:    input.Body,
	}
	if input.ContentType != "" {
		params.ContentType = strPtr(input.ContentType)
	}
	if input.Accept != "" {
		params.Accept = strPtr(input.Accept)
	}

	output, err := c.bedrock.InvokeModel(ctx, params)
	if err != nil {
		return nil, classifyBedrockError(provider, err)
	}

	if c.trace != nil {
		c.trace(TraceResponse, input.ModelID, output.Body)
	}

	return &InvokeOutput{
		Body:        output.Body,
		ContentType: derefStr(output.ContentType),
		RequestID:   requestID(output.ResultMetadata),
	}, nil
}

// ProviderFromModelID extracts the provider segment from a model or
// inference profile id: "us.anthropic.claude-3-5-sonnet-20241022-v2:0" is
// "anthropic", "amazon.nova-canvas-v1:0" is "amazon".
func ProviderFromModelID(modelID string) string {
	id := modelID
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:] // inference profile ARN
	}
	parts := strings.Split(id, ".")
	if len(parts) < 2 {
		return ""
	}
	switch parts[0] {
	case "us", "eu", "apac", "jp", "au", "ca", "global", "us-gov":
		if len(parts) > 2 {
			return parts[1]
		}
	}
	return parts[0]
}

func requestID(md smithymiddleware.Metadata) string {
	id, _ := awsmiddleware.GetRequestIDMetadata(md)
	return id
}

func classifyBedrockError(provider string, err error) error {
	var kind ErrorKind
	msg := err.Error()

	var accessDenied *types.AccessDeniedException
	var validation *types.ValidationException
	var notFound *types.ResourceNotFoundException
	var throttling *types.ThrottlingException
	var quota *types.ServiceQuotaExceededException
	var timeout *types.ModelTimeoutException
	var internal *types.InternalServerException
	var modelErr *types.ModelErrorException
	var unavailable *types.ServiceUnavailableException
	var notReady *types.ModelNotReadyException
	var apiErr smithy.APIError

	switch {
	case errors.As(err, &accessDenied):
		kind = ErrAuthentication
	case errors.As(err, &validation):
		kind = classifyMessage(msg, ErrInvalidRequest)
	case errors.As(err, &notFound):
		kind = ErrNotFound
	case errors.As(err, &throttling), errors.As(err, &quota):
		kind = ErrRateLimit
	case errors.As(err, &timeout), errors.As(err, &internal), errors.As(err, &modelErr),
		errors.As(err, &unavailable), errors.As(err, &notReady):
		kind = ErrServer
	case errors.As(err, &apiErr):
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException":
			kind = ErrAuthentication
		default:
			kind = classifyMessage(msg, ErrServer)
		}
	default:
		kind = classifyMessage(msg, ErrServer)
	}

	out := &Error{
		Kind:     kind,
		Provider: provider,
		Message:  msg,
		Cause:    err,
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		out.RequestID = respErr.ServiceRequestID()
	}
	return out
}

func classifyMessage(msg string, fallback ErrorKind) ErrorKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		return ErrContextLength
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "guardrail"):
		return ErrContentFilter
	default:
		return fallback
	}
}
