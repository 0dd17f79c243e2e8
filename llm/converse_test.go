package llm

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const claudeSonnet = "us.anthropic.claude-3-5-sonnet-20241022-v2:0"

func assistantOutput(stop types.StopReason, blocks ...types.ContentBlock) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{Role: types.ConversationRoleAssistant, Content: blocks},
		},
		StopReason: stop,
		Usage:      &types.TokenUsage{InputTokens: int32Ptr(1), OutputTokens: int32Ptr(1), TotalTokens: int32Ptr(2)},
	}
}

func TestToConverseInput_SystemAndCachePoint(t *testing.T) {
	conv := NewConversation(claudeSonnet,
		WithSystem("Be helpful.", "", "Be brief."),
		WithMaxTokens(1024),
		WithTemperature(0.5),
	)
	conv.Messages = []Message{UserMessage("hello")}

	input := toConverseInput(&conv)

	if *input.ModelId != claudeSonnet {
		t.Errorf("ModelId = %q", *input.ModelId)
	}
	// two text blocks (the empty one is dropped) + cache point
	if len(input.System) != 3 {
		t.Fatalf("System len = %d, want 3", len(input.System))
	}
	sysText, ok := input.System[1].(*types.SystemContentBlockMemberText)
	if !ok || sysText.Value != "Be brief." {
		t.Errorf("System[1] = %#v", input.System[1])
	}
	if _, ok := input.System[2].(*types.SystemContentBlockMemberCachePoint); !ok {
		t.Errorf("System[2] should be CachePoint, got %T", input.System[2])
	}
	if input.Messages[0].Role != types.ConversationRoleUser {
		t.Errorf("Role = %v", input.Messages[0].Role)
	}
	if *input.InferenceConfig.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d", *input.InferenceConfig.MaxTokens)
	}
	if *input.InferenceConfig.Temperature != 0.5 {
		t.Errorf("Temperature = %v", *input.InferenceConfig.Temperature)
	}
	if input.InferenceConfig.TopP != nil {
		t.Errorf("TopP = %v, want nil", *input.InferenceConfig.TopP)
	}
}

func TestToConverseInput_NovaNoCachePointNoConfig(t *testing.T) {
	conv := NewConversation(NovaLiteProfile, WithSystem("Be helpful."))
	conv.Messages = []Message{UserMessage("hello")}

	input := toConverseInput(&conv)

	if len(input.System) != 1 {
		t.Fatalf("System len = %d, want 1", len(input.System))
	}
	if input.InferenceConfig != nil {
		t.Errorf("InferenceConfig = %+v, want nil", input.InferenceConfig)
	}
	if input.ToolConfig != nil {
		t.Errorf("ToolConfig = %+v, want nil", input.ToolConfig)
	}
}

func TestToConverseInput_SystemRoleMessagesFolded(t *testing.T) {
	conv := NewConversation(NovaLiteProfile)
	conv.Messages = []Message{SystemMessage("inline system"), UserMessage("hi")}

	input := toConverseInput(&conv)

	if len(input.System) != 1 {
		t.Fatalf("System len = %d, want 1", len(input.System))
	}
	if len(input.Messages) != 1 {
		t.Errorf("Messages len = %d, want 1", len(input.Messages))
	}
}

func TestToConverseInput_Attachments(t *testing.T) {
	conv := NewConversation(NovaLiteProfile)
	conv.Messages = []Message{UserMessage("describe",
		ImagePart("png", []byte{1, 2}),
		VideoPart("mp4", []byte{3}),
		S3VideoPart("mov", "s3://bucket/clip.mov"),
		DocumentPart("pdf", "report", []byte{4}),
		ImagePart("png", nil), // dropped: no bytes
	)}

	input := toConverseInput(&conv)
	blocks := input.Messages[0].Content
	if len(blocks) != 5 {
		t.Fatalf("Content len = %d, want 5", len(blocks))
	}

	img, ok := blocks[1].(*types.ContentBlockMemberImage)
	if !ok {
		t.Fatalf("blocks[1] = %T", blocks[1])
	}
	if img.Value.Format != types.ImageFormatPng {
		t.Errorf("image format = %q", img.Value.Format)
	}
	if src, ok := img.Value.Source.(*types.ImageSourceMemberBytes); !ok || len(src.Value) != 2 {
		t.Errorf("image source = %#v", img.Value.Source)
	}

	vid, ok := blocks[2].(*types.ContentBlockMemberVideo)
	if !ok {
		t.Fatalf("blocks[2] = %T", blocks[2])
	}
	if _, ok := vid.Value.Source.(*types.VideoSourceMemberBytes); !ok {
		t.Errorf("video source = %T", vid.Value.Source)
	}

	s3, ok := blocks[3].(*types.ContentBlockMemberVideo)
	if !ok {
		t.Fatalf("blocks[3] = %T", blocks[3])
	}
	loc, ok := s3.Value.Source.(*types.VideoSourceMemberS3Location)
	if !ok || *loc.Value.Uri != "s3://bucket/clip.mov" {
		t.Errorf("s3 video source = %#v", s3.Value.Source)
	}
	if s3.Value.Format != types.VideoFormatMov {
		t.Errorf("s3 video format = %q", s3.Value.Format)
	}

	doc, ok := blocks[4].(*types.ContentBlockMemberDocument)
	if !ok {
		t.Fatalf("blocks[4] = %T", blocks[4])
	}
	if *doc.Value.Name != "report" || doc.Value.Format != types.DocumentFormatPdf {
		t.Errorf("document = %+v", doc.Value)
	}
}

func TestToConverseInput_WithTools(t *testing.T) {
	tool := NewTool("get_weather", "Get weather", StringParam("city"), IntegerParam("time_horizon"))
	conv := NewConversation(claudeSonnet, WithTools(tool))
	conv.Messages = []Message{UserMessage("weather?")}

	input := toConverseInput(&conv)

	if input.ToolConfig == nil {
		t.Fatal("ToolConfig is nil")
	}
	if len(input.ToolConfig.Tools) != 2 {
		t.Fatalf("Tools len = %d, want 2", len(input.ToolConfig.Tools))
	}
	spec, ok := input.ToolConfig.Tools[0].(*types.ToolMemberToolSpec)
	if !ok {
		t.Fatalf("Tool[0] type = %T", input.ToolConfig.Tools[0])
	}
	if *spec.Value.Name != "get_weather" || *spec.Value.Description != "Get weather" {
		t.Errorf("spec = %+v", spec.Value)
	}
	if _, ok := input.ToolConfig.Tools[1].(*types.ToolMemberCachePoint); !ok {
		t.Errorf("Tool[1] should be CachePoint, got %T", input.ToolConfig.Tools[1])
	}
}

func TestToConverseInput_ToolChoice(t *testing.T) {
	tool := NewTool("my_tool", "A tool")
	tests := []struct {
		name   string
		choice ToolChoice
		check  func(t *testing.T, tc types.ToolChoice)
	}{
		{"auto", ToolChoice{Mode: ToolChoiceAuto}, func(t *testing.T, tc types.ToolChoice) {
			if _, ok := tc.(*types.ToolChoiceMemberAuto); !ok {
				t.Errorf("expected Auto, got %T", tc)
			}
		}},
		{"required", ToolChoice{Mode: ToolChoiceRequired}, func(t *testing.T, tc types.ToolChoice) {
			if _, ok := tc.(*types.ToolChoiceMemberAny); !ok {
				t.Errorf("expected Any, got %T", tc)
			}
		}},
		{"named", ToolChoice{Mode: ToolChoiceNamed, ToolName: "my_tool"}, func(t *testing.T, tc types.ToolChoice) {
			named, ok := tc.(*types.ToolChoiceMemberTool)
			if !ok || *named.Value.Name != "my_tool" {
				t.Errorf("expected Tool my_tool, got %#v", tc)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := NewConversation(NovaLiteProfile, WithTools(tool), WithToolChoice(tt.choice))
			conv.Messages = []Message{UserMessage("go")}
			input := toConverseInput(&conv)
			if input.ToolConfig == nil {
				t.Fatal("ToolConfig is nil")
			}
			tt.check(t, input.ToolConfig.ToolChoice)
		})
	}

	conv := NewConversation(NovaLiteProfile, WithTools(tool), WithToolChoice(ToolChoice{Mode: ToolChoiceNone}))
	conv.Messages = []Message{UserMessage("go")}
	if input := toConverseInput(&conv); input.ToolConfig != nil {
		t.Error("expected nil ToolConfig for ToolChoiceNone")
	}
}

func TestToConverseInput_ToolRoundTrip(t *testing.T) {
	call := ToolCallData{ID: "call-1", Name: "get_weather", Arguments: []byte(`{"city":"Paris"}`)}
	conv := NewConversation(NovaLiteProfile)
	conv.Messages = []Message{
		UserMessage("go"),
		{Role: RoleAssistant, Content: []ContentPart{{Kind: ContentToolCall, ToolCall: &call}}},
		call.Result("sunny"),
		call.ErrorResult("no data for tomorrow"),
	}

	input := toConverseInput(&conv)
	if len(input.Messages) != 3 {
		t.Fatalf("Messages len = %d, want 3", len(input.Messages))
	}

	use, ok := input.Messages[1].Content[0].(*types.ContentBlockMemberToolUse)
	if !ok {
		t.Fatalf("assistant content = %T", input.Messages[1].Content[0])
	}
	if *use.Value.ToolUseId != "call-1" || *use.Value.Name != "get_weather" {
		t.Errorf("tool use = %+v", use.Value)
	}

	results := input.Messages[2]
	if results.Role != types.ConversationRoleUser {
		t.Errorf("tool result role = %v", results.Role)
	}
	if len(results.Content) != 2 {
		t.Fatalf("tool result blocks = %d, want 2", len(results.Content))
	}
	for i, want := range []types.ToolResultStatus{types.ToolResultStatusSuccess, types.ToolResultStatusError} {
		tr, ok := results.Content[i].(*types.ContentBlockMemberToolResult)
		if !ok {
			t.Fatalf("content type = %T", results.Content[i])
		}
		if tr.Value.Status != want {
			t.Errorf("Status = %v, want %v", tr.Value.Status, want)
		}
	}
}

func TestToConverseInput_ParallelToolResultsAlternate(t *testing.T) {
	weather := ToolCallData{ID: "call-1", Name: "get_weather", Arguments: []byte(`{"city":"Paris"}`)}
	clock := ToolCallData{ID: "call-2", Name: "get_time", Arguments: []byte(`{"city":"Paris"}`)}
	conv := NewConversation(claudeSonnet)
	conv.Messages = []Message{
		UserMessage("weather and time in Paris?"),
		{Role: RoleAssistant, Content: []ContentPart{
			{Kind: ContentToolCall, ToolCall: &weather},
			{Kind: ContentToolCall, ToolCall: &clock},
		}},
		weather.Result("sunny"),
		clock.Result("14:00"),
		AssistantMessage("Sunny, and it is 2pm."),
		UserMessage("thanks"),
	}

	input := toConverseInput(&conv)

	wantRoles := []types.ConversationRole{
		types.ConversationRoleUser,
		types.ConversationRoleAssistant,
		types.ConversationRoleUser,
		types.ConversationRoleAssistant,
		types.ConversationRoleUser,
	}
	if len(input.Messages) != len(wantRoles) {
		t.Fatalf("Messages len = %d, want %d", len(input.Messages), len(wantRoles))
	}
	for i, want := range wantRoles {
		if input.Messages[i].Role != want {
			t.Errorf("Messages[%d].Role = %v, want %v", i, input.Messages[i].Role, want)
		}
	}

	var ids []string
	for _, block := range input.Messages[2].Content {
		tr, ok := block.(*types.ContentBlockMemberToolResult)
		if !ok {
			t.Fatalf("content type = %T", block)
		}
		ids = append(ids, *tr.Value.ToolUseId)
	}
	if len(ids) != 2 || ids[0] != "call-1" || ids[1] != "call-2" {
		t.Errorf("tool result ids = %v", ids)
	}
}

func TestToConverseInput_CachePointAfterInlineSystem(t *testing.T) {
	conv := NewConversation(claudeSonnet, WithSystem("Be helpful."))
	conv.Messages = []Message{SystemMessage("Answer in French."), UserMessage("hi")}

	input := toConverseInput(&conv)

	if len(input.System) != 3 {
		t.Fatalf("System len = %d, want 3", len(input.System))
	}
	if text, ok := input.System[1].(*types.SystemContentBlockMemberText); !ok || text.Value != "Answer in French." {
		t.Errorf("System[1] = %#v", input.System[1])
	}
	if _, ok := input.System[2].(*types.SystemContentBlockMemberCachePoint); !ok {
		t.Errorf("System[2] should be CachePoint, got %T", input.System[2])
	}
}

func TestToConverseInput_ThinkingOnlyForAnthropic(t *testing.T) {
	assistant := Message{Role: RoleAssistant, Content: []ContentPart{
		{Kind: ContentThinking, Thinking: &ThinkingData{Text: "hmm", Signature: "sig"}},
		TextPart("answer"),
	}}

	for model, want := range map[string]int{claudeSonnet: 2, NovaLiteProfile: 1} {
		conv := NewConversation(model)
		conv.Messages = []Message{UserMessage("q"), assistant}
		input := toConverseInput(&conv)
		if got := len(input.Messages[1].Content); got != want {
			t.Errorf("%s: assistant blocks = %d, want %d", model, got, want)
		}
	}
}

func TestFromConverseOutput_SimpleText(t *testing.T) {
	out := simpleConverseOutput("Hello!")
	msg, usage, reason, err := fromConverseOutput(out)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Role != RoleAssistant {
		t.Errorf("Role = %v", msg.Role)
	}
	if msg.Text() != "Hello!" {
		t.Errorf("Text = %q", msg.Text())
	}
	if reason.Reason != FinishReasonStop || reason.Raw != "end_turn" {
		t.Errorf("FinishReason = %+v", reason)
	}
	if usage.InputTokens != 10 || usage.OutputTokens != 5 {
		t.Errorf("Usage = %+v", usage)
	}
}

func TestFromConverseOutput_RejectsUserRole(t *testing.T) {
	out := simpleConverseOutput("x")
	out.Output = &types.ConverseOutputMemberMessage{Value: types.Message{
		Role:    types.ConversationRoleUser,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "x"}},
	}}
	if _, _, _, err := fromConverseOutput(out); err == nil {
		t.Fatal("expected error for user-role output")
	}
}

func TestFromConverseOutput_ToolUse(t *testing.T) {
	out := assistantOutput(types.StopReasonToolUse,
		&types.ContentBlockMemberText{Value: "Let me check."},
		&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
			ToolUseId: strPtr("call-1"),
			Name:      strPtr("get_weather"),
			Input:     document.NewLazyDocument(map[string]any{"city": "Paris", "time_horizon": 3}),
		}},
	)
	msg, _, reason, err := fromConverseOutput(out)
	if err != nil {
		t.Fatal(err)
	}
	if reason.Reason != FinishReasonToolUse {
		t.Errorf("FinishReason = %q", reason.Reason)
	}
	calls := msg.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("ToolCalls len = %d", len(calls))
	}
	if calls[0].ID != "call-1" || calls[0].Name != "get_weather" {
		t.Errorf("ToolCall = %+v", calls[0])
	}
	var args map[string]any
	if err := json.Unmarshal(calls[0].Arguments, &args); err != nil {
		t.Fatalf("unmarshal args: %v", err)
	}
	if args["city"] != "Paris" {
		t.Errorf("city = %v", args["city"])
	}
}

func TestFromConverseOutput_MediaAndReasoning(t *testing.T) {
	out := assistantOutput(types.StopReasonEndTurn,
		&types.ContentBlockMemberReasoningContent{Value: &types.ReasoningContentBlockMemberReasoningText{
			Value: types.ReasoningTextBlock{Text: strPtr("thinking"), Signature: strPtr("sig")},
		}},
		&types.ContentBlockMemberImage{Value: types.ImageBlock{
			Format: types.ImageFormatJpeg,
			Source: &types.ImageSourceMemberBytes{Value: []byte{0xff}},
		}},
		&types.ContentBlockMemberVideo{Value: types.VideoBlock{
			Format: types.VideoFormatMp4,
			Source: &types.VideoSourceMemberS3Location{Value: types.S3Location{Uri: strPtr("s3://b/k.mp4")}},
		}},
		&types.ContentBlockMemberDocument{Value: types.DocumentBlock{
			Format: types.DocumentFormatTxt,
			Name:   strPtr("notes"),
			Source: &types.DocumentSourceMemberBytes{Value: []byte("hi")},
		}},
	)
	msg, _, _, err := fromConverseOutput(out)
	if err != nil {
		t.Fatal(err)
	}

	wantKinds := []ContentKind{ContentThinking, ContentImage, ContentVideo, ContentDocument}
	if len(msg.Content) != len(wantKinds) {
		t.Fatalf("Content len = %d", len(msg.Content))
	}
	for i, k := range wantKinds {
		if msg.Content[i].Kind != k {
			t.Errorf("Content[%d].Kind = %q, want %q", i, msg.Content[i].Kind, k)
		}
	}
	if msg.Content[0].Thinking.Signature != "sig" {
		t.Errorf("Signature = %q", msg.Content[0].Thinking.Signature)
	}
	if msg.Content[2].Media.S3URI != "s3://b/k.mp4" {
		t.Errorf("S3URI = %q", msg.Content[2].Media.S3URI)
	}
	if msg.Content[3].Media.Name != "notes" {
		t.Errorf("Name = %q", msg.Content[3].Media.Name)
	}
}

func TestFromConverseOutput_CacheTokens(t *testing.T) {
	out := simpleConverseOutput("ok")
	out.Usage = &types.TokenUsage{
		InputTokens:           int32Ptr(100),
		OutputTokens:          int32Ptr(50),
		TotalTokens:           int32Ptr(150),
		CacheReadInputTokens:  int32Ptr(80),
		CacheWriteInputTokens: int32Ptr(20),
	}
	_, usage, _, err := fromConverseOutput(out)
	if err != nil {
		t.Fatal(err)
	}
	if usage.CacheReadTokens != 80 || usage.CacheWriteTokens != 20 {
		t.Errorf("Usage = %+v", usage)
	}
	if usage.Total() != 150 {
		t.Errorf("Total = %d", usage.Total())
	}
}

func TestMapStopReason(t *testing.T) {
	tests := []struct {
		stop types.StopReason
		want string
	}{
		{types.StopReasonEndTurn, FinishReasonStop},
		{types.StopReasonStopSequence, FinishReasonStop},
		{types.StopReasonMaxTokens, FinishReasonLength},
		{types.StopReasonModelContextWindowExceeded, FinishReasonLength},
		{types.StopReasonToolUse, FinishReasonToolUse},
		{types.StopReasonContentFiltered, FinishReasonContentFilter},
		{types.StopReasonGuardrailIntervened, FinishReasonContentFilter},
		{"something_new", "something_new"},
	}
	for _, tt := range tests {
		t.Run(string(tt.stop), func(t *testing.T) {
			got := mapStopReason(tt.stop)
			if got.Reason != tt.want {
				t.Errorf("got %q, want %q", got.Reason, tt.want)
			}
			if got.Raw != string(tt.stop) {
				t.Errorf("Raw = %q", got.Raw)
			}
		})
	}
}
