// Package bedrocktest provides an in-memory stand-in for the Bedrock runtime
// and control-plane clients, for tests of the command packages.
package bedrocktest

import (
	"context"
	"sync"

	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithymiddleware "github.com/aws/smithy-go/middleware"
)

// Fake satisfies llm.BedrockRuntime and llm.ModelLister. It records every
// input it receives.
type Fake struct {
	mu sync.Mutex

	// RequestID is attached to every successful output.
	RequestID string
	// InvokeBody is returned by every InvokeModel call.
	InvokeBody []byte
	// Replies are returned by successive Converse calls; the last one repeats.
	Replies []types.Message
	// Models is returned by ListFoundationModels.
	Models []bedrocktypes.FoundationModelSummary
	// Err, when set, fails every call.
	Err error

	Invocations   []*bedrockruntime.InvokeModelInput
	Conversations []*bedrockruntime.ConverseInput
}

func (f *Fake) metadata() smithymiddleware.Metadata {
	var md smithymiddleware.Metadata
	if f.RequestID != "" {
		awsmiddleware.SetRequestIDMetadata(&md, f.RequestID)
	}
	return md
}

func (f *Fake) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Invocations = append(f.Invocations, in)
	if f.Err != nil {
		return nil, f.Err
	}
	ct := "application/json"
	return &bedrockruntime.InvokeModelOutput{
		Body:           f.InvokeBody,
		ContentType:    &ct,
		ResultMetadata: f.metadata(),
	}, nil
}

func (f *Fake) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Conversations = append(f.Conversations, in)
	if f.Err != nil {
		return nil, f.Err
	}

	msg := types.Message{
		Role:    types.ConversationRoleAssistant,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "ok"}},
	}
	if n := len(f.Replies); n > 0 {
		idx := len(f.Conversations) - 1
		if idx >= n {
			idx = n - 1
		}
		msg = f.Replies[idx]
	}

	in32, out32 := int32(10), int32(5)
	total := in32 + out32
	return &bedrockruntime.ConverseOutput{
		Output:     &types.ConverseOutputMemberMessage{Value: msg},
		StopReason: types.StopReasonEndTurn,
		Usage: &types.TokenUsage{
			InputTokens:  &in32,
			OutputTokens: &out32,
			TotalTokens:  &total,
		},
		ResultMetadata: f.metadata(),
	}, nil
}

func (f *Fake) ListFoundationModels(_ context.Context, _ *bedrock.ListFoundationModelsInput, _ ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return &bedrock.ListFoundationModelsOutput{ModelSummaries: f.Models}, nil
}

// TextReply builds an assistant message holding text blocks.
func TextReply(text ...string) types.Message {
	msg := types.Message{Role: types.ConversationRoleAssistant}
	for _, t := range text {
		msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: t})
	}
	return msg
}
