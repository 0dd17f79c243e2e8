package llm

import (
	"fmt"
	"strings"
)

// ErrorKind says which part of a Bedrock call went wrong.
type ErrorKind uint8

const (
	ErrConfig         ErrorKind = iota // client or request set up wrong before any call
	ErrAdapter                         // a body could not be built or parsed
	ErrAuthentication                  // credentials rejected or permission missing
	ErrNotFound                        // unknown model or inference profile
	ErrInvalidRequest                  // Bedrock rejected the request shape
	ErrRateLimit                       // throttled or over quota
	ErrServer                          // Bedrock or the model failed
	ErrContextLength                   // input too large for the model
	ErrContentFilter                   // blocked by a guardrail or safety filter
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConfig:
		return "config"
	case ErrAdapter:
		return "adapter"
	case ErrAuthentication:
		return "authentication"
	case ErrNotFound:
		return "not_found"
	case ErrInvalidRequest:
		return "invalid_request"
	case ErrRateLimit:
		return "rate_limit"
	case ErrServer:
		return "server"
	case ErrContextLength:
		return "context_length"
	case ErrContentFilter:
		return "content_filter"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Error is returned by every Client call and adapter.
type Error struct {
	Kind      ErrorKind
	Provider  string
	Message   string
	RequestID string // Bedrock request id, when the call reached Bedrock
	Cause     error
	Raw       []byte // body that failed to parse
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "llm [%s]", e.Kind)
	if e.Provider != "" {
		b.WriteString(" " + e.Provider)
	}
	b.WriteString(": " + e.Message)
	if e.RequestID != "" {
		b.WriteString(" (request id " + e.RequestID + ")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so callers can test
// errors.Is(err, &llm.Error{Kind: llm.ErrRateLimit}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == ""
}

// Retryable reports whether the same call may succeed if issued again.
func (e *Error) Retryable() bool {
	return e.Kind == ErrRateLimit || e.Kind == ErrServer
}

// Hint suggests what the user can change, or returns "" when there is
// nothing useful to say.
func (e *Error) Hint() string {
	switch e.Kind {
	case ErrAuthentication:
		return "check the AWS profile's credentials and that it may call bedrock:InvokeModel on this model"
	case ErrNotFound:
		return "check the model id; some models, including Amazon Nova, must be called through an inference profile such as us.amazon.nova-lite-v1:0"
	case ErrRateLimit:
		return "the request was throttled; wait and try again"
	case ErrContextLength:
		return "shorten the prompt or the conversation history"
	case ErrContentFilter:
		return "the request or response was blocked by a content filter"
	}
	return ""
}

func adapterError(provider, msg string, cause error, raw []byte) *Error {
	return &Error{Kind: ErrAdapter, Provider: provider, Message: msg, Cause: cause, Raw: raw}
}
