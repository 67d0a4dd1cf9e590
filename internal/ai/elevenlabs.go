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

const defaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// elevenLabs implements SpeechGenerator using the ElevenLabs
// text-to-speech API. The response body is the raw audio stream.
type elevenLabs struct {
	apiKey  string
	model   string
	voiceID string
	baseURL string
	client  *http.Client
}

func newElevenLabs(cfg ProviderConfig) *elevenLabs {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultElevenLabsBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "eleven_multilingual_v2"
	}
	voiceID := cfg.VoiceID
	if voiceID == "" {
		voiceID = "21m00Tcm4TlvDq8ikWAM" // default narration voice
	}
	return &elevenLabs{
		apiKey:  cfg.APIKey,
		model:   model,
		voiceID: voiceID,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (e *elevenLabs) GenerateSpeech(ctx context.Context, text string) (*GeneratedSpeech, error) {
	payload := map[string]any{
		"text":     text,
		"model_id": e.model,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", e.baseURL, e.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Detail struct {
				Message string `json:"message"`
			} `json:"detail"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Detail.Message != "" {
			return nil, fmt.Errorf("elevenlabs: API error (status %d): %s", resp.StatusCode, apiErr.Detail.Message)
		}
		return nil, fmt.Errorf("elevenlabs: unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &GeneratedSpeech{
		Data:        respBody,
		ContentType: contentType,
		Model:       e.model,
	}, nil
}
