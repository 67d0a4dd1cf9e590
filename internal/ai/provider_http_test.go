package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGeminiChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing API key header")
		}
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "seja conciso" {
			t.Error("system message must become system_instruction")
		}
		if len(req.Contents) != 2 || req.Contents[1].Role != "model" {
			t.Errorf("assistant turns must map to model role, got %+v", req.Contents)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "resposta"}}}},
			},
			"usageMetadata": map[string]any{"promptTokenCount": 42, "candidatesTokenCount": 7},
		})
	}))
	defer server.Close()

	g := newGemini(ProviderConfig{APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: server.URL})
	c, err := g.Chat(context.Background(), []Message{
		{Role: "system", Content: "seja conciso"},
		{Role: "user", Content: "oi"},
		{Role: "assistant", Content: "olá"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if c.Text != "resposta" {
		t.Errorf("text = %q", c.Text)
	}
	if c.PromptTokens != 42 || c.CompletionTokens != 7 {
		t.Errorf("tokens = %d/%d, want 42/7", c.PromptTokens, c.CompletionTokens)
	}
}

func TestGeminiChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "API key not valid"},
		})
	}))
	defer server.Close()

	g := newGemini(ProviderConfig{APIKey: "bad", BaseURL: server.URL})
	_, err := g.Chat(context.Background(), []Message{{Role: "user", Content: "oi"}})
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestGeminiGenerateImage(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.GenerationConfig == nil || len(req.GenerationConfig.ResponseModalities) != 2 {
			t.Error("image request must set TEXT+IMAGE response modalities")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "here is your image"},
					{"inlineData": map[string]any{
						"mimeType": "image/png",
						"data":     base64.StdEncoding.EncodeToString(pngBytes),
					}},
				}}},
			},
		})
	}))
	defer server.Close()

	g := newGemini(ProviderConfig{APIKey: "k", ModelImage: "gemini-2.0-flash-exp-image-generation", BaseURL: server.URL})
	img, err := g.GenerateImage(context.Background(), "um gato")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.ContentType != "image/png" {
		t.Errorf("content type = %q", img.ContentType)
	}
	if string(img.Data) != string(pngBytes) {
		t.Error("image bytes do not round-trip")
	}
}

func TestOpenRouterChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer or-key" {
			t.Error("missing bearer token")
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "routed reply"}},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3},
		})
	}))
	defer server.Close()

	o := newOpenRouter(ProviderConfig{APIKey: "or-key", Model: "test/model", BaseURL: server.URL})
	c, err := o.Chat(context.Background(), []Message{{Role: "user", Content: "oi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if c.Text != "routed reply" {
		t.Errorf("text = %q", c.Text)
	}
	if c.PromptTokens != 12 || c.CompletionTokens != 3 {
		t.Errorf("tokens = %d/%d", c.PromptTokens, c.CompletionTokens)
	}
}

func TestOpenAIAssistantChat(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("OpenAI-Beta") != "assistants=v2" {
			t.Error("missing assistants v2 header")
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/threads/runs":
			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["assistant_id"] != "asst_123" {
				t.Errorf("assistant_id = %v", payload["assistant_id"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id": "run_1", "thread_id": "thread_1", "status": "queued",
			})
		case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_1/runs/run_1":
			polls++
			status := "in_progress"
			if polls >= 2 {
				status = "completed"
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id": "run_1", "thread_id": "thread_1", "status": status, "model": "gpt-4o",
				"usage": map[string]any{"prompt_tokens": 30, "completion_tokens": 9},
			})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/threads/thread_1/messages"):
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"role": "assistant", "content": []map[string]any{
						{"type": "text", "text": map[string]any{"value": "assistant reply"}},
					}},
					{"role": "user", "content": []map[string]any{
						{"type": "text", "text": map[string]any{"value": "oi"}},
					}},
				},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	o := newOpenAIAssistant(ProviderConfig{APIKey: "k", AssistantID: "asst_123", BaseURL: server.URL})
	o.pollInterval = time.Millisecond

	c, err := o.Chat(context.Background(), []Message{
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "oi"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if c.Text != "assistant reply" {
		t.Errorf("text = %q", c.Text)
	}
	if c.Model != "gpt-4o" {
		t.Errorf("model = %q", c.Model)
	}
	if c.PromptTokens != 30 || c.CompletionTokens != 9 {
		t.Errorf("tokens = %d/%d", c.PromptTokens, c.CompletionTokens)
	}
	if polls < 2 {
		t.Errorf("expected at least 2 polls, got %d", polls)
	}
}

func TestOpenAIAssistantRunFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "run_1", "thread_id": "thread_1", "status": "failed",
			"last_error": map[string]any{"code": "rate_limit_exceeded", "message": "quota"},
		})
	}))
	defer server.Close()

	o := newOpenAIAssistant(ProviderConfig{APIKey: "k", AssistantID: "asst_123", BaseURL: server.URL})
	o.pollInterval = time.Millisecond

	_, err := o.Chat(context.Background(), []Message{{Role: "user", Content: "oi"}})
	if err == nil || !strings.Contains(err.Error(), "rate_limit_exceeded") {
		t.Errorf("expected run failure error, got %v", err)
	}
}

func TestFreepikGenerateImage(t *testing.T) {
	var server *httptest.Server
	polls := 0
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/image.jpg" && r.Header.Get("x-freepik-api-key") != "fp-key" {
			t.Error("missing freepik API key header")
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/ai/mystic":
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"task_id": "task_1", "status": "CREATED"},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/ai/mystic/task_1":
			polls++
			if polls < 2 {
				json.NewEncoder(w).Encode(map[string]any{
					"data": map[string]any{"task_id": "task_1", "status": "IN_PROGRESS"},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"task_id": "task_1", "status": "COMPLETED",
					"generated": []string{server.URL + "/image.jpg"},
				},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/image.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	f := newFreepik(ProviderConfig{APIKey: "fp-key", BaseURL: server.URL})
	f.pollInterval = time.Millisecond

	img, err := f.GenerateImage(context.Background(), "um cachorro")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(img.Data) != "jpeg-bytes" {
		t.Error("image bytes do not round-trip")
	}
	if img.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", img.ContentType)
	}
}

func TestFreepikTaskFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"task_id": "task_1", "status": "FAILED"},
		})
	}))
	defer server.Close()

	f := newFreepik(ProviderConfig{APIKey: "k", BaseURL: server.URL})
	f.pollInterval = time.Millisecond

	if _, err := f.GenerateImage(context.Background(), "x"); err == nil {
		t.Error("expected error for failed task")
	}
}

func TestElevenLabsGenerateSpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "el-key" {
			t.Error("missing xi-api-key header")
		}
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["text"] != "bom dia" {
			t.Errorf("text = %v", payload["text"])
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	e := newElevenLabs(ProviderConfig{APIKey: "el-key", BaseURL: server.URL})
	speech, err := e.GenerateSpeech(context.Background(), "bom dia")
	if err != nil {
		t.Fatalf("GenerateSpeech: %v", err)
	}
	if string(speech.Data) != "mp3-bytes" {
		t.Error("audio bytes do not round-trip")
	}
	if speech.ContentType != "audio/mpeg" {
		t.Errorf("content type = %q", speech.ContentType)
	}
}

func TestOpenAIModerator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/moderations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"flagged": true, "categories": map[string]bool{"violence": true, "hate": false}},
			},
		})
	}))
	defer server.Close()

	m := newOpenAIModerator("k", server.URL)
	result, err := m.CheckSafety(context.Background(), "bad prompt")
	if err != nil {
		t.Fatalf("CheckSafety: %v", err)
	}
	if result.Safe {
		t.Error("flagged prompt must not be safe")
	}
	if len(result.Categories) != 1 || result.Categories[0] != "violence" {
		t.Errorf("categories = %v", result.Categories)
	}
}
