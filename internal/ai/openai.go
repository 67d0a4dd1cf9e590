// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIAssistant implements Provider on top of the OpenAI Assistants API
// (v2). Each Chat call creates a fresh thread seeded with the transcript,
// runs the configured assistant on it, and polls the run until it
// completes. The assistant carries its own instructions and knowledge, so
// system messages in the transcript are dropped.
type openAIAssistant struct {
	apiKey       string
	assistantID  string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

func newOpenAIAssistant(cfg ProviderConfig) *openAIAssistant {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIAssistant{
		apiKey:       cfg.APIKey,
		assistantID:  cfg.AssistantID,
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 120 * time.Second},
		pollInterval: time.Second,
	}
}

func (o *openAIAssistant) Name() string { return "openai" }

type assistantRun struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
	Model    string `json:"model"`
	Usage    *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type assistantMessageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

func (o *openAIAssistant) Chat(ctx context.Context, messages []Message) (*Completion, error) {
	if o.assistantID == "" {
		return nil, fmt.Errorf("openai: no assistant ID configured")
	}

	// Thread messages may only be user/assistant turns.
	var threadMessages []Message
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		threadMessages = append(threadMessages, m)
	}
	if len(threadMessages) == 0 {
		return nil, fmt.Errorf("openai: transcript has no user messages")
	}

	run, err := o.createThreadAndRun(ctx, threadMessages)
	if err != nil {
		return nil, err
	}

	run, err = o.waitForRun(ctx, run)
	if err != nil {
		return nil, err
	}

	text, err := o.latestAssistantMessage(ctx, run.ThreadID)
	if err != nil {
		return nil, err
	}

	c := &Completion{Text: text, Model: run.Model}
	if run.Usage != nil {
		c.PromptTokens = run.Usage.PromptTokens
		c.CompletionTokens = run.Usage.CompletionTokens
	}
	return c, nil
}

func (o *openAIAssistant) createThreadAndRun(ctx context.Context, messages []Message) (*assistantRun, error) {
	payload := map[string]any{
		"assistant_id": o.assistantID,
		"thread": map[string]any{
			"messages": messages,
		},
	}

	var run assistantRun
	if err := o.doJSON(ctx, http.MethodPost, "/threads/runs", payload, &run); err != nil {
		return nil, fmt.Errorf("openai: create run: %w", err)
	}
	return &run, nil
}

// waitForRun polls the run until it reaches a terminal status. Cancelling
// the context aborts polling but leaves the run to finish server-side.
func (o *openAIAssistant) waitForRun(ctx context.Context, run *assistantRun) (*assistantRun, error) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		switch run.Status {
		case "completed":
			return run, nil
		case "failed", "cancelled", "expired", "incomplete":
			if run.LastError != nil {
				return nil, fmt.Errorf("openai: run %s: %s (%s)", run.Status, run.LastError.Message, run.LastError.Code)
			}
			return nil, fmt.Errorf("openai: run ended with status %q", run.Status)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("openai: waiting for run: %w", ctx.Err())
		case <-ticker.C:
		}

		var updated assistantRun
		path := fmt.Sprintf("/threads/%s/runs/%s", run.ThreadID, run.ID)
		if err := o.doJSON(ctx, http.MethodGet, path, nil, &updated); err != nil {
			return nil, fmt.Errorf("openai: poll run: %w", err)
		}
		run = &updated
	}
}

func (o *openAIAssistant) latestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	var list assistantMessageList
	path := fmt.Sprintf("/threads/%s/messages?order=desc&limit=10", threadID)
	if err := o.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return "", fmt.Errorf("openai: list messages: %w", err)
	}

	for _, m := range list.Data {
		if m.Role != "assistant" {
			continue
		}
		var text string
		for _, part := range m.Content {
			if part.Type == "text" {
				text += part.Text.Value
			}
		}
		if text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("openai: thread contained no assistant reply")
}

func (o *openAIAssistant) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
