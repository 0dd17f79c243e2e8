package llm

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// toConverseInput translates a Conversation into a Bedrock ConverseInput.
func toConverseInput(conv *Conversation) *bedrockruntime.ConverseInput {
	anthropic := isAnthropicModel(conv.Model)
	input := &bedrockruntime.ConverseInput{
		ModelId: strPtr(conv.Model),
	}

	for _, s := range conv.System {
		input.System = append(input.System, &types.SystemContentBlockMemberText{Value: s})
	}
	for _, m := range conv.Messages {
		if m.Role == RoleSystem {
			for _, p := range m.Content {
				if p.Kind == ContentText {
					input.System = append(input.System, &types.SystemContentBlockMemberText{Value: p.Text})
				}
			}
			continue
		}
		// roles must alternate, so consecutive turns from the same side
		// (parallel tool results) share one message
		msg := toConverseMessage(m, anthropic)
		if n := len(input.Messages); n > 0 && input.Messages[n-1].Role == msg.Role {
			input.Messages[n-1].Content = append(input.Messages[n-1].Content, msg.Content...)
			continue
		}
		input.Messages = append(input.Messages, msg)
	}
	// Anthropic: cache point after the last system block
	if anthropic && len(input.System) > 0 {
		input.System = append(input.System, &types.SystemContentBlockMemberCachePoint{
			Value: types.CachePointBlock{Type: types.CachePointTypeDefault},
		})
	}

	if !conv.Config.empty() {
		ic := &types.InferenceConfiguration{}
		if conv.Config.MaxTokens != nil {
			v := int32(*conv.Config.MaxTokens)
			ic.MaxTokens = &v
		}
		if conv.Config.Temperature != nil {
			v := float32(*conv.Config.Temperature)
			ic.Temperature = &v
		}
		if conv.Config.TopP != nil {
			v := float32(*conv.Config.TopP)
			ic.TopP = &v
		}
		if len(conv.Config.StopSequences) > 0 {
			ic.StopSequences = conv.Config.StopSequences
		}
		input.InferenceConfig = ic
	}

	if len(conv.Tools) > 0 {
		input.ToolConfig = toToolConfiguration(conv.Tools, conv.Config.ToolChoice, anthropic)
	}

	return input
}

func toToolConfiguration(tools []ToolDefinition, choice *ToolChoice, anthropic bool) *types.ToolConfiguration {
	tc := &types.ToolConfiguration{}
	for _, td := range tools {
		var doc any
		_ = json.Unmarshal(td.Parameters, &doc)
		spec := types.ToolSpecification{
			Name:        strPtr(td.Name),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(doc)},
		}
		if td.Description != "" {
			spec.Description = strPtr(td.Description)
		}
		tc.Tools = append(tc.Tools, &types.ToolMemberToolSpec{Value: spec})
	}
	// Anthropic: cache point after the last tool
	if anthropic {
		tc.Tools = append(tc.Tools, &types.ToolMemberCachePoint{
			Value: types.CachePointBlock{Type: types.CachePointTypeDefault},
		})
	}

	if choice != nil {
		switch choice.Mode {
		case ToolChoiceAuto:
			tc.ToolChoice = &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}
		case ToolChoiceRequired:
			tc.ToolChoice = &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}
		case ToolChoiceNamed:
			tc.ToolChoice = &types.ToolChoiceMemberTool{
				Value: types.SpecificToolChoice{Name: strPtr(choice.ToolName)},
			}
		case ToolChoiceNone:
			return nil
		}
	}
	return tc
}

func toConverseMessage(m Message, anthropic bool) types.Message {
	msg := types.Message{}

	switch m.Role {
	case RoleAssistant:
		msg.Role = types.ConversationRoleAssistant
	default:
		// tool results travel as user turns
		msg.Role = types.ConversationRoleUser
	}

	for _, p := range m.Content {
		if block := toContentBlock(p, anthropic); block != nil {
			msg.Content = append(msg.Content, block)
		}
	}

	return msg
}

func toContentBlock(p ContentPart, anthropic bool) types.ContentBlock {
	switch p.Kind {
	case ContentText:
		return &types.ContentBlockMemberText{Value: p.Text}
	case ContentImage:
		if p.Media == nil || len(p.Media.Data) == 0 {
			return nil
		}
		return &types.ContentBlockMemberImage{Value: types.ImageBlock{
			Format: types.ImageFormat(p.Media.Format),
			Source: &types.ImageSourceMemberBytes{Value: p.Media.Data},
		}}
	case ContentVideo:
		if p.Media == nil {
			return nil
		}
		var src types.VideoSource
		switch {
		case p.Media.S3URI != "":
			src = &types.VideoSourceMemberS3Location{Value: types.S3Location{Uri: strPtr(p.Media.S3URI)}}
		case len(p.Media.Data) > 0:
			src = &types.VideoSourceMemberBytes{Value: p.Media.Data}
		default:
			return nil
		}
		return &types.ContentBlockMemberVideo{Value: types.VideoBlock{
			Format: types.VideoFormat(p.Media.Format),
			Source: src,
		}}
	case ContentDocument:
		if p.Media == nil || len(p.Media.Data) == 0 {
			return nil
		}
		return &types.ContentBlockMemberDocument{Value: types.DocumentBlock{
			Format: types.DocumentFormat(p.Media.Format),
			Name:   strPtr(p.Media.Name),
			Source: &types.DocumentSourceMemberBytes{Value: p.Media.Data},
		}}
	case ContentToolCall:
		var doc any
		_ = json.Unmarshal(p.ToolCall.Arguments, &doc)
		return &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
			ToolUseId: strPtr(p.ToolCall.ID),
			Name:      strPtr(p.ToolCall.Name),
			Input:     document.NewLazyDocument(doc),
		}}
	case ContentToolResult:
		status := types.ToolResultStatusSuccess
		if p.ToolResult.IsError {
			status = types.ToolResultStatusError
		}
		return &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
			ToolUseId: strPtr(p.ToolResult.ToolCallID),
			Content: []types.ToolResultContentBlock{
				&types.ToolResultContentBlockMemberText{Value: p.ToolResult.Content},
			},
			Status: status,
		}}
	case ContentThinking:
		// only Anthropic models accept reasoning blocks back
		if !anthropic || p.Thinking == nil {
			return nil
		}
		return &types.ContentBlockMemberReasoningContent{
			Value: &types.ReasoningContentBlockMemberReasoningText{
				Value: types.ReasoningTextBlock{
					Text:      strPtr(p.Thinking.Text),
					Signature: strPtr(p.Thinking.Signature),
				},
			},
		}
	}
	return nil
}

// fromConverseOutput translates a Bedrock ConverseOutput into our types.
func fromConverseOutput(out *bedrockruntime.ConverseOutput) (*Message, *Usage, FinishReason, error) {
	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, nil, FinishReason{}, fmt.Errorf("unexpected output type: %T", out.Output)
	}
	if msgOut.Value.Role != types.ConversationRoleAssistant {
		return nil, nil, FinishReason{}, fmt.Errorf("unexpected response role: %q", msgOut.Value.Role)
	}

	msg := &Message{Role: RoleAssistant}
	for _, block := range msgOut.Value.Content {
		if part, ok := fromContentBlock(block); ok {
			msg.Content = append(msg.Content, part)
		}
	}

	usage := &Usage{}
	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			usage.InputTokens = int(*out.Usage.InputTokens)
		}
		if out.Usage.OutputTokens != nil {
			usage.OutputTokens = int(*out.Usage.OutputTokens)
		}
		if out.Usage.CacheReadInputTokens != nil {
			usage.CacheReadTokens = int(*out.Usage.CacheReadInputTokens)
		}
		if out.Usage.CacheWriteInputTokens != nil {
			usage.CacheWriteTokens = int(*out.Usage.CacheWriteInputTokens)
		}
	}

	return msg, usage, mapStopReason(out.StopReason), nil
}

func fromContentBlock(block types.ContentBlock) (ContentPart, bool) {
	switch b := block.(type) {
	case *types.ContentBlockMemberText:
		return TextPart(b.Value), true
	case *types.ContentBlockMemberToolUse:
		var args json.RawMessage
		if b.Value.Input != nil {
			if data, err := b.Value.Input.MarshalSmithyDocument(); err == nil {
				args = data
			}
		}
		return ContentPart{
			Kind: ContentToolCall,
			ToolCall: &ToolCallData{
				ID:        derefStr(b.Value.ToolUseId),
				Name:      derefStr(b.Value.Name),
				Arguments: args,
			},
		}, true
	case *types.ContentBlockMemberReasoningContent:
		if rt, ok := b.Value.(*types.ReasoningContentBlockMemberReasoningText); ok {
			return ContentPart{
				Kind: ContentThinking,
				Thinking: &ThinkingData{
					Text:      derefStr(rt.Value.Text),
					Signature: derefStr(rt.Value.Signature),
				},
			}, true
		}
	case *types.ContentBlockMemberImage:
		media := &MediaData{Format: string(b.Value.Format)}
		if src, ok := b.Value.Source.(*types.ImageSourceMemberBytes); ok {
			media.Data = src.Value
		}
		return ContentPart{Kind: ContentImage, Media: media}, true
	case *types.ContentBlockMemberVideo:
		media := &MediaData{Format: string(b.Value.Format)}
		switch src := b.Value.Source.(type) {
		case *types.VideoSourceMemberBytes:
			media.Data = src.Value
		case *types.VideoSourceMemberS3Location:
			media.S3URI = derefStr(src.Value.Uri)
		}
		return ContentPart{Kind: ContentVideo, Media: media}, true
	case *types.ContentBlockMemberDocument:
		media := &MediaData{Format: string(b.Value.Format), Name: derefStr(b.Value.Name)}
		if src, ok := b.Value.Source.(*types.DocumentSourceMemberBytes); ok {
			media.Data = src.Value
		}
		return ContentPart{Kind: ContentDocument, Media: media}, true
	}
	return ContentPart{}, false
}

func mapStopReason(sr types.StopReason) FinishReason {
	raw := string(sr)
	switch sr {
	case types.StopReasonEndTurn, types.StopReasonStopSequence:
		return FinishReason{Reason: FinishReasonStop, Raw: raw}
	case types.StopReasonMaxTokens, types.StopReasonModelContextWindowExceeded:
		return FinishReason{Reason: FinishReasonLength, Raw: raw}
	case types.StopReasonToolUse:
		return FinishReason{Reason: FinishReasonToolUse, Raw: raw}
	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		return FinishReason{Reason: FinishReasonContentFilter, Raw: raw}
	default:
		return FinishReason{Reason: raw, Raw: raw}
	}
}

func isAnthropicModel(model string) bool {
	return ProviderFromModelID(model) == "anthropic"
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }
