package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/walkabout/scorecard/pkg/media"
)

const claudeReply = `{
  "id": "msg_test",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20240620",
  "content": [{"type": "text", "text": "{\"image1\": {}}"}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 1200, "output_tokens": 300}
}`

func testImages() []*media.ImageUnit {
	return []*media.ImageUnit{
		{Data: []byte("first"), MediaType: media.MediaTypeJPEG, Label: "a"},
		{Data: []byte("second"), MediaType: media.MediaTypePNG, Label: "b"},
	}
}

func TestClaudeProviderSendsTextThenImages(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("X-Api-Key = %q, want test-key", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(claudeReply))
	}))
	defer server.Close()

	p := NewClaudeProvider("test-key", server.URL, option.WithMaxRetries(0))
	resp, err := p.Chat(context.Background(), []Message{
		{Role: "user", Content: "parse these", Images: testImages()},
	}, "claude-3-5-sonnet-20240620", map[string]interface{}{"max_tokens": 2500})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if resp.Content != `{"image1": {}}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 1500 {
		t.Errorf("TotalTokens = %d, want 1500", resp.Usage.TotalTokens)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", resp.FinishReason)
	}

	if body["max_tokens"] != float64(2500) {
		t.Errorf("max_tokens = %v, want 2500", body["max_tokens"])
	}
	msgs := body["messages"].([]interface{})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	content := msgs[0].(map[string]interface{})["content"].([]interface{})
	if len(content) != 3 {
		t.Fatalf("got %d content blocks, want 3", len(content))
	}
	if content[0].(map[string]interface{})["type"] != "text" {
		t.Errorf("first block = %v, want text", content[0])
	}
	for i, img := range testImages() {
		block := content[i+1].(map[string]interface{})
		if block["type"] != "image" {
			t.Errorf("block %d type = %v, want image", i+1, block["type"])
			continue
		}
		src := block["source"].(map[string]interface{})
		if src["type"] != "base64" || src["media_type"] != img.MediaType {
			t.Errorf("block %d source = %v", i+1, src)
		}
		if src["data"] != base64.StdEncoding.EncodeToString(img.Data) {
			t.Errorf("block %d data = %v", i+1, src["data"])
		}
	}
}

func TestClaudeProviderReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad image"}}`))
	}))
	defer server.Close()

	p := NewClaudeProvider("test-key", server.URL, option.WithMaxRetries(0))
	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}, "m", nil)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "claude API call") {
		t.Errorf("error = %v, want claude API call prefix", err)
	}
}

func TestBuildClaudeParamsSystemAndDefaults(t *testing.T) {
	params := buildClaudeParams([]Message{
		{Role: "system", Content: "be precise"},
		{Role: "user", Content: "hi"},
	}, "model-x", map[string]interface{}{"temperature": 0.2})

	if len(params.System) != 1 || params.System[0].Text != "be precise" {
		t.Errorf("System = %+v", params.System)
	}
	if params.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096 default", params.MaxTokens)
	}
	if string(params.Model) != "model-x" {
		t.Errorf("Model = %q", params.Model)
	}
}
