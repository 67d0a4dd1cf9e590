package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	name  string
	reply string
	err   error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Chat(_ context.Context, _ []Message) (*Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Text: f.reply, Model: f.name + "-model", PromptTokens: 10, CompletionTokens: 5}, nil
}

type captureRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureRecorder) RecordCall(provider, model, kind string, _ *Completion, _ int, _ time.Duration, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, provider+"/"+kind)
}

func TestRegistrySkipsUnconfiguredProviders(t *testing.T) {
	r := NewRegistry("gemini", map[string]ProviderConfig{
		"gemini":     {APIKey: "key", Model: "gemini-2.0-flash"},
		"openrouter": {APIKey: ""},
	})

	if !r.HasChatProvider("gemini") {
		t.Error("gemini should be configured")
	}
	if r.HasChatProvider("openrouter") {
		t.Error("openrouter has no API key and should be skipped")
	}
	if len(r.ChatProviders()) != 1 {
		t.Errorf("expected 1 chat provider, got %d", len(r.ChatProviders()))
	}
}

func TestRegistrySetActive(t *testing.T) {
	r := NewRegistry("gemini", nil)
	r.RegisterChat("gemini", &fakeProvider{name: "gemini"})
	r.RegisterChat("openrouter", &fakeProvider{name: "openrouter"})

	if err := r.SetActive("openrouter"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if r.ActiveName() != "openrouter" {
		t.Errorf("active = %q, want openrouter", r.ActiveName())
	}

	if err := r.SetActive("nonexistent"); err == nil {
		t.Error("expected error switching to unconfigured provider")
	}
	if r.ActiveName() != "openrouter" {
		t.Error("failed switch must not change the active provider")
	}
}

func TestRegistryChatRecordsUsage(t *testing.T) {
	r := NewRegistry("fake", nil)
	r.RegisterChat("fake", &fakeProvider{name: "fake", reply: "olá"})
	rec := &captureRecorder{}
	r.SetRecorder(rec)

	c, err := r.Chat(context.Background(), []Message{{Role: "user", Content: "oi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if c.Text != "olá" {
		t.Errorf("text = %q", c.Text)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "fake/chat" {
		t.Errorf("recorder calls = %v", rec.calls)
	}
}

func TestRegistryChatRecordsFailures(t *testing.T) {
	r := NewRegistry("fake", nil)
	r.RegisterChat("fake", &fakeProvider{name: "fake", err: errors.New("upstream down")})
	rec := &captureRecorder{}
	r.SetRecorder(rec)

	if _, err := r.Chat(context.Background(), nil); err == nil {
		t.Fatal("expected provider error")
	}
	if len(rec.calls) != 1 {
		t.Errorf("failed calls must still be recorded, got %v", rec.calls)
	}
}

func TestRegistryChatWithUnknownProvider(t *testing.T) {
	r := NewRegistry("gemini", nil)
	if _, err := r.ChatWith(context.Background(), "gemini", nil); err == nil {
		t.Error("expected error for unconfigured provider")
	}
}

func TestCheckPromptWithoutModerator(t *testing.T) {
	r := NewRegistry("gemini", nil)

	result, err := r.CheckPrompt(context.Background(), "anything")
	if err != nil {
		t.Fatalf("CheckPrompt: %v", err)
	}
	if !result.Safe {
		t.Error("prompt must pass when no moderator is configured")
	}
}

func TestRegistryCapabilityLookups(t *testing.T) {
	r := NewRegistry("gemini", map[string]ProviderConfig{
		"gemini":     {APIKey: "key", ModelImage: "gemini-2.0-flash-exp-image-generation"},
		"freepik":    {APIKey: "key"},
		"elevenlabs": {APIKey: "key"},
	})

	if !r.SupportsImageGeneration("gemini") {
		t.Error("gemini with image model should generate images")
	}
	if !r.SupportsImageGeneration("freepik") {
		t.Error("freepik should generate images")
	}
	if r.SupportsImageGeneration("openrouter") {
		t.Error("openrouter does not generate images")
	}
	if !r.SupportsSpeechGeneration("elevenlabs") {
		t.Error("elevenlabs should generate speech")
	}
	if len(r.ImageProviders()) != 2 {
		t.Errorf("expected 2 image providers, got %v", r.ImageProviders())
	}
	if len(r.SpeechProviders()) != 1 {
		t.Errorf("expected 1 speech provider, got %v", r.SpeechProviders())
	}
}
