// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ai provides a unified interface for the external AI providers
// used by the chat and studio surfaces: Gemini and OpenRouter for chat,
// OpenAI Assistants for the persistent-thread assistant, Freepik and
// Gemini for images, ElevenLabs for speech. The Registry selects
// providers by name and reports every call to an optional Recorder.
package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Message is one turn of a chat transcript sent to a provider.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Completion is the result of a chat call, including token usage when the
// provider reports it.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Provider defines the interface that all chat-capable AI providers
// implement. Each provider handles its own HTTP communication and
// response parsing.
type Provider interface {
	// Chat sends a transcript to the model and returns the completion.
	Chat(ctx context.Context, messages []Message) (*Completion, error)

	// Name returns the provider identifier (e.g., "gemini", "openrouter").
	Name() string
}

// ProviderConfig holds the credentials and settings for a single provider.
type ProviderConfig struct {
	APIKey      string
	Model       string
	ModelImage  string
	BaseURL     string
	AssistantID string // OpenAI Assistants only
	VoiceID     string // ElevenLabs only
}

// Recorder receives one event per provider call. Implementations append
// to the usage log and update metrics; errors there must not fail the
// caller's request.
type Recorder interface {
	RecordCall(provider, model, kind string, c *Completion, images int, latency time.Duration, callErr error)
}

// Registry manages available AI providers and selects between them by
// name. Chat, image and speech capabilities are tracked separately since
// most providers implement only one. All methods are safe for concurrent
// use.
type Registry struct {
	mu        sync.RWMutex
	chat      map[string]Provider
	images    map[string]ImageGenerator
	speech    map[string]SpeechGenerator
	active    string
	moderator Moderator // may be nil if no moderation API is available
	recorder  Recorder  // may be nil
}

// NewRegistry creates a registry and initialises providers for every
// config that has a non-empty API key. Providers without keys are
// silently skipped, so the app runs with whatever subset is configured.
func NewRegistry(active string, configs map[string]ProviderConfig) *Registry {
	r := &Registry{
		chat:   make(map[string]Provider),
		images: make(map[string]ImageGenerator),
		speech: make(map[string]SpeechGenerator),
		active: active,
	}

	for name, cfg := range configs {
		if cfg.APIKey == "" {
			continue
		}
		switch name {
		case "gemini":
			p := newGemini(cfg)
			r.chat[name] = p
			if cfg.ModelImage != "" {
				r.images[name] = p
			}
		case "openrouter":
			r.chat[name] = newOpenRouter(cfg)
		case "openai":
			r.chat[name] = newOpenAIAssistant(cfg)
		case "freepik":
			r.images[name] = newFreepik(cfg)
		case "elevenlabs":
			r.speech[name] = newElevenLabs(cfg)
		}
	}

	// Prompt moderation rides on the OpenAI key when present; the
	// endpoint is free for key holders.
	if cfg, ok := configs["openai"]; ok && cfg.APIKey != "" {
		r.moderator = newOpenAIModerator(cfg.APIKey, cfg.BaseURL)
	}

	return r
}

// SetRecorder attaches a usage recorder. Pass nil to disable recording.
func (r *Registry) SetRecorder(rec Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// Chat calls the active provider with the transcript.
func (r *Registry) Chat(ctx context.Context, messages []Message) (*Completion, error) {
	return r.ChatWith(ctx, r.ActiveName(), messages)
}

// ChatWith calls a specific chat provider by name.
func (r *Registry) ChatWith(ctx context.Context, name string, messages []Message) (*Completion, error) {
	r.mu.RLock()
	p, ok := r.chat[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ai: no chat provider configured for %q", name)
	}

	start := time.Now()
	c, err := p.Chat(ctx, messages)
	r.record(name, modelOf(c), "chat", c, 0, time.Since(start), err)
	return c, err
}

// Active returns the currently active chat provider.
func (r *Registry) Active() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.chat[r.active]
	if !ok {
		return nil, fmt.Errorf("ai: no chat provider configured for %q", r.active)
	}
	return p, nil
}

// SetActive switches the active chat provider at runtime. Returns an
// error if the named provider has no API key configured.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chat[name]; !ok {
		return fmt.Errorf("ai: provider %q is not available (no API key?)", name)
	}
	r.active = name
	return nil
}

// ActiveName returns the name of the currently active chat provider.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.active
}

// ChatProviders returns the names of all chat providers that have valid
// API keys.
func (r *Registry) ChatProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name := range r.chat {
		names = append(names, name)
	}
	return names
}

// ImageProviders returns the names of all configured image generators.
func (r *Registry) ImageProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name := range r.images {
		names = append(names, name)
	}
	return names
}

// SpeechProviders returns the names of all configured speech generators.
func (r *Registry) SpeechProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name := range r.speech {
		names = append(names, name)
	}
	return names
}

// RegisterChat adds or replaces a chat provider in the registry. This
// allows injecting custom providers at runtime (e.g. for testing).
func (r *Registry) RegisterChat(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat[name] = p
}

// RegisterImage adds or replaces an image generator in the registry.
func (r *Registry) RegisterImage(name string, g ImageGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[name] = g
}

// RegisterSpeech adds or replaces a speech generator in the registry.
func (r *Registry) RegisterSpeech(name string, g SpeechGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speech[name] = g
}

// HasChatProvider checks whether a named chat provider is configured.
func (r *Registry) HasChatProvider(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.chat[name]
	return ok
}

// CheckPrompt runs the user prompt through the moderation API before
// generation. Returns Safe=true if the prompt passes or if no moderator
// is configured (graceful degradation — providers still have their own
// built-in safety filters).
func (r *Registry) CheckPrompt(ctx context.Context, prompt string) (*ModerationResult, error) {
	r.mu.RLock()
	m := r.moderator
	r.mu.RUnlock()

	if m == nil {
		return &ModerationResult{Safe: true}, nil
	}

	start := time.Now()
	result, err := m.CheckSafety(ctx, prompt)
	r.record("openai", "omni-moderation-latest", "moderation", nil, 0, time.Since(start), err)
	return result, err
}

func (r *Registry) record(provider, model, kind string, c *Completion, images int, latency time.Duration, err error) {
	r.mu.RLock()
	rec := r.recorder
	r.mu.RUnlock()

	if rec != nil {
		rec.RecordCall(provider, model, kind, c, images, latency, err)
	}
}

func modelOf(c *Completion) string {
	if c == nil {
		return ""
	}
	return c.Model
}
