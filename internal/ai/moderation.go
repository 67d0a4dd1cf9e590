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

// ModerationResult holds the outcome of a content safety check.
type ModerationResult struct {
	Safe       bool
	Categories []string // flagged category names, empty when safe
}

// Moderator checks content for safety before it is sent to a generation
// model.
type Moderator interface {
	CheckSafety(ctx context.Context, content string) (*ModerationResult, error)
}

// openAIModerator implements Moderator using the OpenAI moderations
// endpoint, which is free to use with any valid API key.
type openAIModerator struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newOpenAIModerator(apiKey, baseURL string) *openAIModerator {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIModerator{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type moderationResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

func (m *openAIModerator) CheckSafety(ctx context.Context, content string) (*ModerationResult, error) {
	body, err := json.Marshal(map[string]string{
		"model": "omni-moderation-latest",
		"input": content,
	})
	if err != nil {
		return nil, fmt.Errorf("moderation: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/moderations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("moderation: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("moderation: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moderation: unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var parsed moderationResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("moderation: parse response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("moderation: response contained no results")
	}

	result := &ModerationResult{Safe: !parsed.Results[0].Flagged}
	for category, flagged := range parsed.Results[0].Categories {
		if flagged {
			result.Categories = append(result.Categories, category)
		}
	}
	return result, nil
}
