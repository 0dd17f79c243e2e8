package llm

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const claudeHaiku = "us.anthropic.claude-3-5-haiku-20241022-v1:0"

func loadGolden(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read golden file %s: %v", path, err)
	}
	return data
}

func assertJSONEqual(t *testing.T, got, want []byte) {
	t.Helper()
	var gotVal, wantVal any
	if err := json.Unmarshal(got, &gotVal); err != nil {
		t.Fatalf("failed to parse got JSON: %v\nraw: %s", err, got)
	}
	if err := json.Unmarshal(want, &wantVal); err != nil {
		t.Fatalf("failed to parse want JSON: %v\nraw: %s", err, want)
	}
	gotNorm, _ := json.MarshalIndent(gotVal, "", "  ")
	wantNorm, _ := json.MarshalIndent(wantVal, "", "  ")
	if string(gotNorm) != string(wantNorm) {
		t.Errorf("JSON mismatch.\ngot:\n%s\nwant:\n%s", gotNorm, wantNorm)
	}
}

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestAnthropicBuildInvokeInput_SimpleText(t *testing.T) {
	input, err := NewAnthropicAdapter().BuildInvokeInput(&Request{
		Model:    claudeHaiku,
		Messages: []Message{UserMessage("Hello, Claude")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if input.ModelID != claudeHaiku {
		t.Errorf("model = %q", input.ModelID)
	}
	if input.ContentType != "application/json" || input.Accept != "application/json" {
		t.Errorf("content type = %q, accept = %q", input.ContentType, input.Accept)
	}
	assertJSONEqual(t, input.Body, loadGolden(t, "anthropic/request_simple_text.json"))
}

func TestAnthropicBuildInvokeInput_SystemAndTools(t *testing.T) {
	input, err := NewAnthropicAdapter().BuildInvokeInput(&Request{
		Model: claudeHaiku,
		Messages: []Message{
			SystemMessage("You are a helpful assistant."),
			UserMessage("What is the weather in Paris?"),
		},
		Tools:       []ToolDefinition{NewTool("get_weather", "Get the current weather", StringParam("city"))},
		ToolChoice:  &ToolChoice{Mode: ToolChoiceRequired},
		Temperature: float64Ptr(0.2),
		MaxTokens:   intPtr(512),
	})
	if err != nil {
		t.Fatal(err)
	}
	assertJSONEqual(t, input.Body, loadGolden(t, "anthropic/request_system_tools.json"))
}

func TestAnthropicBuildInvokeInput_ToolResultMergesUserTurns(t *testing.T) {
	input, err := NewAnthropicAdapter().BuildInvokeInput(&Request{
		Model: claudeHaiku,
		Messages: []Message{
			UserMessage("What is the weather?"),
			{Role: RoleAssistant, Content: []ContentPart{{
				Kind:     ContentToolCall,
				ToolCall: &ToolCallData{ID: "call-1", Name: "get_weather", Arguments: json.RawMessage(`{"city":"Paris"}`)},
			}}},
			ToolResultMessage("call-1", "18C and cloudy", false),
			UserMessage("Thanks"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	assertJSONEqual(t, input.Body, loadGolden(t, "anthropic/request_tool_result.json"))
}

func TestAnthropicBuildInvokeInput_Image(t *testing.T) {
	input, err := NewAnthropicAdapter().BuildInvokeInput(&Request{
		Model:    claudeHaiku,
		Messages: []Message{UserMessage("what is this?", ImagePart("png", []byte{1, 2}))},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"anthropic_version":"bedrock-2023-05-31","max_tokens":4096,"messages":[{"role":"user","content":[
		{"type":"text","text":"what is this?"},
		{"type":"image","source":{"type":"base64","media_type":"image/png","data":"AQI="}}]}]}`
	assertJSONEqual(t, input.Body, []byte(want))
}

func TestAnthropicBuildInvokeInput_UnsupportedMedia(t *testing.T) {
	for name, part := range map[string]ContentPart{
		"video":    S3VideoPart("mp4", "s3://b/v.mp4"),
		"document": DocumentPart("csv", "data", []byte("a,b")),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewAnthropicAdapter().BuildInvokeInput(&Request{
				Model:    claudeHaiku,
				Messages: []Message{UserMessage("x", part)},
			})
			var llmErr *Error
			if !errors.As(err, &llmErr) || llmErr.Kind != ErrInvalidRequest {
				t.Fatalf("err = %v, want invalid_request", err)
			}
		})
	}
}

func TestAnthropicBuildInvokeInput_ToolChoiceNone(t *testing.T) {
	input, err := NewAnthropicAdapter().BuildInvokeInput(&Request{
		Model:      claudeHaiku,
		Messages:   []Message{UserMessage("hi")},
		Tools:      []ToolDefinition{NewTool("my_tool", "A tool")},
		ToolChoice: &ToolChoice{Mode: ToolChoiceNone},
	})
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	if err := json.Unmarshal(input.Body, &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["tools"]; ok {
		t.Error("tools should be omitted for ToolChoiceNone")
	}
	if _, ok := body["tool_choice"]; ok {
		t.Error("tool_choice should be omitted for ToolChoiceNone")
	}
}

func TestAnthropicParseResponse_ToolUse(t *testing.T) {
	body := loadGolden(t, "anthropic/response_tool_use.json")
	resp, err := NewAnthropicAdapter().ParseResponse(body, &Request{Model: claudeHaiku})
	if err != nil {
		t.Fatal(err)
	}

	if resp.ID != "msg_bdrk_01" || resp.Provider != "anthropic" {
		t.Errorf("ID = %q, Provider = %q", resp.ID, resp.Provider)
	}
	if resp.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("Model = %q", resp.Model)
	}
	if resp.FinishReason.Reason != FinishReasonToolUse || resp.FinishReason.Raw != "tool_use" {
		t.Errorf("FinishReason = %+v", resp.FinishReason)
	}
	if resp.Text() != "Let me check." {
		t.Errorf("Text = %q", resp.Text())
	}
	if th := resp.Message.Content[0].Thinking; th == nil || th.Signature != "sig-abc" {
		t.Errorf("Thinking = %+v", th)
	}

	calls := resp.ToolCalls()
	if len(calls) != 1 || calls[0].ID != "toolu_01" || calls[0].Name != "get_weather" {
		t.Fatalf("ToolCalls = %+v", calls)
	}
	args, err := calls[0].ParseArgs()
	if err != nil {
		t.Fatal(err)
	}
	if days, _ := args.Int("time_horizon"); days != 2 {
		t.Errorf("time_horizon = %d", days)
	}

	want := Usage{InputTokens: 120, OutputTokens: 40, CacheReadTokens: 100, CacheWriteTokens: 7}
	if resp.Usage != want {
		t.Errorf("Usage = %+v, want %+v", resp.Usage, want)
	}
	if string(resp.Raw) != string(body) {
		t.Error("Raw should hold the response body")
	}
}

func TestAnthropicParseResponse_Errors(t *testing.T) {
	tests := map[string]string{
		"malformed": `{"content":`,
		"user role": `{"role":"user","content":[{"type":"text","text":"x"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewAnthropicAdapter().ParseResponse([]byte(body), &Request{Model: claudeHaiku})
			var llmErr *Error
			if !errors.As(err, &llmErr) || llmErr.Kind != ErrAdapter {
				t.Fatalf("err = %v, want adapter error", err)
			}
			if string(llmErr.Raw) != body {
				t.Errorf("Raw = %s", llmErr.Raw)
			}
		})
	}
}

func TestAnthropicStopReasons(t *testing.T) {
	for raw, want := range map[string]string{
		"end_turn":      FinishReasonStop,
		"stop_sequence": FinishReasonStop,
		"max_tokens":    FinishReasonLength,
		"tool_use":      FinishReasonToolUse,
		"refusal":       FinishReasonContentFilter,
		"pause_turn":    "pause_turn",
	} {
		if got := mapAnthropicStopReason(raw); got.Reason != want || got.Raw != raw {
			t.Errorf("mapAnthropicStopReason(%q) = %+v, want %q", raw, got, want)
		}
	}
}
