package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOpenAIBuildInvokeInput_SimpleText(t *testing.T) {
	input, err := NewOpenAIAdapter().BuildInvokeInput(&Request{
		Model:    GptOss20B,
		Messages: []Message{UserMessage("Hello")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if input.ModelID != GptOss20B {
		t.Errorf("model = %q", input.ModelID)
	}
	assertJSONEqual(t, input.Body, loadGolden(t, "openai/request_simple_text.json"))
}

func TestOpenAIBuildInvokeInput_ToolRoundTrip(t *testing.T) {
	call := ToolCallData{ID: "call-1", Name: "get_weather", Arguments: json.RawMessage(`{"city":"Paris"}`)}
	input, err := NewOpenAIAdapter().BuildInvokeInput(&Request{
		Model: GptOss20B,
		Messages: []Message{
			SystemMessage("You are helpful."),
			UserMessage("What is the weather?"),
			{Role: RoleAssistant, Content: []ContentPart{{Kind: ContentToolCall, ToolCall: &call}}},
			call.Result("18C and cloudy"),
		},
		Tools:           []ToolDefinition{NewTool("get_weather", "Get weather", StringParam("city"))},
		ToolChoice:      &ToolChoice{Mode: ToolChoiceAuto},
		MaxTokens:       intPtr(256),
		ReasoningEffort: "low",
	})
	if err != nil {
		t.Fatal(err)
	}
	assertJSONEqual(t, input.Body, loadGolden(t, "openai/request_tool_round_trip.json"))
}

func TestOpenAIBuildInvokeInput_ToolChoiceNamed(t *testing.T) {
	input, err := NewOpenAIAdapter().BuildInvokeInput(&Request{
		Model:      GptOss20B,
		Messages:   []Message{UserMessage("go")},
		Tools:      []ToolDefinition{NewTool("my_tool", "A tool")},
		ToolChoice: &ToolChoice{Mode: ToolChoiceNamed, ToolName: "my_tool"},
	})
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		ToolChoice struct {
			Type     string `json:"type"`
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tool_choice"`
	}
	if err := json.Unmarshal(input.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body.ToolChoice.Type != "function" || body.ToolChoice.Function.Name != "my_tool" {
		t.Errorf("tool_choice = %+v", body.ToolChoice)
	}
}

func TestOpenAIBuildInvokeInput_RejectsMedia(t *testing.T) {
	_, err := NewOpenAIAdapter().BuildInvokeInput(&Request{
		Model:    GptOss20B,
		Messages: []Message{UserMessage("what is this?", ImagePart("png", []byte{1, 2, 3}))},
	})
	var llmErr *Error
	if !errors.As(err, &llmErr) || llmErr.Kind != ErrInvalidRequest {
		t.Fatalf("err = %v, want invalid_request", err)
	}
}

func TestOpenAIBuildInvokeInput_ReasoningEffort(t *testing.T) {
	_, err := NewOpenAIAdapter().BuildInvokeInput(&Request{
		Model:           GptOss20B,
		Messages:        []Message{UserMessage("hi")},
		ReasoningEffort: "extreme",
	})
	if !errors.Is(err, &Error{Kind: ErrInvalidRequest}) {
		t.Fatalf("err = %v, want invalid_request", err)
	}
}

func TestOpenAIBuildInvokeInput_SplitsToolResults(t *testing.T) {
	results := Message{Role: RoleTool}
	results.Content = append(results.Content, ToolResultMessage("a", "1", false).Content...)
	results.Content = append(results.Content, ToolResultMessage("b", "2", false).Content...)

	input, err := NewOpenAIAdapter().BuildInvokeInput(&Request{
		Model:    GptOss20B,
		Messages: []Message{UserMessage("go"), results},
	})
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Messages []struct {
			Role       string `json:"role"`
			Content    string `json:"content"`
			ToolCallID string `json:"tool_call_id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(input.Body, &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(body.Messages))
	}
	for i, want := range []string{"a", "b"} {
		m := body.Messages[i+1]
		if m.Role != "tool" || m.ToolCallID != want {
			t.Errorf("message %d = %+v", i+1, m)
		}
	}
}

func TestOpenAIParseResponse_SplitsReasoning(t *testing.T) {
	resp, err := NewOpenAIAdapter().ParseResponse(loadGolden(t, "openai/response_reasoning.json"), &Request{Model: GptOss20B})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text() != "Hello! How can I help?" {
		t.Errorf("Text = %q", resp.Text())
	}
	if len(resp.Message.Content) != 2 || resp.Message.Content[0].Kind != ContentThinking {
		t.Fatalf("Content = %+v", resp.Message.Content)
	}
	if resp.Message.Content[0].Thinking.Text != "The user greets me." {
		t.Errorf("Thinking = %q", resp.Message.Content[0].Thinking.Text)
	}
	if resp.FinishReason.Reason != FinishReasonStop {
		t.Errorf("FinishReason = %+v", resp.FinishReason)
	}
	want := Usage{InputTokens: 21, OutputTokens: 14, ReasoningTokens: 6}
	if resp.Usage != want {
		t.Errorf("Usage = %+v, want %+v", resp.Usage, want)
	}
}

func TestOpenAIParseResponse_ToolCalls(t *testing.T) {
	body := `{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":null,
		"tool_calls":[{"id":"call-9","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Oslo\"}"}}]},
		"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":3,"completion_tokens":4}}`
	resp, err := NewOpenAIAdapter().ParseResponse([]byte(body), &Request{Model: GptOss20B})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Model != GptOss20B {
		t.Errorf("Model = %q, want request model", resp.Model)
	}
	if resp.FinishReason.Reason != FinishReasonToolUse || resp.FinishReason.Raw != "tool_calls" {
		t.Errorf("FinishReason = %+v", resp.FinishReason)
	}
	calls := resp.ToolCalls()
	if len(calls) != 1 || calls[0].ID != "call-9" {
		t.Fatalf("ToolCalls = %+v", calls)
	}
	if city, _ := mustArgs(t, calls[0]).String("city"); city != "Oslo" {
		t.Errorf("city = %q", city)
	}
}

func TestOpenAIParseResponse_NoChoices(t *testing.T) {
	_, err := NewOpenAIAdapter().ParseResponse([]byte(`{"id":"x","choices":[]}`), &Request{Model: GptOss20B})
	var llmErr *Error
	if !errors.As(err, &llmErr) || llmErr.Kind != ErrAdapter {
		t.Fatalf("err = %v, want adapter error", err)
	}
}

func TestSplitReasoning(t *testing.T) {
	tests := []struct {
		in, reasoning, text string
	}{
		{"plain answer", "", "plain answer"},
		{"<reasoning>a\nb</reasoning>\n\nanswer", "a\nb", "answer"},
		{"  <reasoning>r</reasoning>", "r", ""},
		{"answer <reasoning>late</reasoning>", "", "answer <reasoning>late</reasoning>"},
	}
	for _, tt := range tests {
		r, text := splitReasoning(tt.in)
		if r != tt.reasoning || text != tt.text {
			t.Errorf("splitReasoning(%q) = %q, %q; want %q, %q", tt.in, r, text, tt.reasoning, tt.text)
		}
	}
}

func mustArgs(t *testing.T, tc ToolCallData) ToolCallArgs {
	t.Helper()
	args, err := tc.ParseArgs()
	if err != nil {
		t.Fatal(err)
	}
	return args
}
