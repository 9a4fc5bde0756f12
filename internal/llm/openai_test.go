package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newChatServer(t *testing.T, content, finishReason string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}

		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if format, ok := req["response_format"].(map[string]any); !ok || format["type"] != "json_object" {
			t.Errorf("response_format = %v, want json_object", req["response_format"])
		}

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   DefaultOpenAIModel,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			}},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 900, "total_tokens": 1000},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIGenerate(t *testing.T) {
	payload, _ := json.Marshal(Visualization{Code: validScene, Description: "demo"})
	server := newChatServer(t, string(payload), "stop")
	defer server.Close()

	backend := NewOpenAI(&Config{APIKey: "test-key", BaseURL: server.URL})
	if backend.Name() != "openai" {
		t.Errorf("Name() = %q", backend.Name())
	}

	v, usage, err := backend.Generate(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if v.Code != validScene {
		t.Errorf("Code = %q", v.Code)
	}
	if usage.InputTokens != 100 || usage.OutputTokens != 900 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestOpenAIGenerate_Truncated(t *testing.T) {
	server := newChatServer(t, `{"manim_code": "from manim`, "length")
	defer server.Close()

	backend := NewOpenAI(&Config{APIKey: "test-key", BaseURL: server.URL})
	_, _, err := backend.Generate(context.Background(), "system", "user")
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("error = %v, want ErrTruncated", err)
	}
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		wantName string
		wantErr  bool
	}{
		{"nil config", nil, "", true},
		{"missing key", &Config{Backend: "anthropic"}, "", true},
		{"unknown backend", &Config{Backend: "llama", APIKey: "k"}, "", true},
		{"anthropic", &Config{Backend: "anthropic", APIKey: "k"}, "anthropic", false},
		{"openai", &Config{Backend: "openai", APIKey: "k"}, "openai", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewBackend(context.Background(), tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && backend.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", backend.Name(), tt.wantName)
			}
			if !tt.wantErr && tt.config.Model != DefaultModel(tt.config.Backend) {
				t.Errorf("Model = %q, want default", tt.config.Model)
			}
		})
	}
}

func TestOpenAIListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %s, want /models", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o","object":"model"},{"id":"tts-1","object":"model"}]}`))
	}))
	defer server.Close()

	o := NewOpenAI(&Config{APIKey: "test-key", BaseURL: server.URL})
	ids, err := o.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "gpt-4o" || ids[1] != "tts-1" {
		t.Errorf("ListModels() = %v", ids)
	}
}
