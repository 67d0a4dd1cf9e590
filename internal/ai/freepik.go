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

const defaultFreepikBaseURL = "https://api.freepik.com/v1"

// freepik implements ImageGenerator using the Freepik Mystic API. Mystic
// is asynchronous: a POST creates a generation task and the task is then
// polled until it completes and yields a download URL.
type freepik struct {
	apiKey       string
	model        string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

func newFreepik(cfg ProviderConfig) *freepik {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultFreepikBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "realism"
	}
	return &freepik{
		apiKey:       cfg.APIKey,
		model:        model,
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 120 * time.Second},
		pollInterval: 2 * time.Second,
	}
}

type mysticTask struct {
	Data struct {
		TaskID    string   `json:"task_id"`
		Status    string   `json:"status"`
		Generated []string `json:"generated"`
	} `json:"data"`
}

func (f *freepik) GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	payload := map[string]any{
		"prompt": prompt,
		"model":  f.model,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("freepik: marshal request: %w", err)
	}

	task, err := f.doTask(ctx, http.MethodPost, "/ai/mystic", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("freepik: create task: %w", err)
	}

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		switch task.Data.Status {
		case "COMPLETED":
			if len(task.Data.Generated) == 0 {
				return nil, fmt.Errorf("freepik: task completed with no images")
			}
			return f.download(ctx, task.Data.Generated[0])
		case "FAILED":
			return nil, fmt.Errorf("freepik: generation task failed")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("freepik: waiting for task: %w", ctx.Err())
		case <-ticker.C:
		}

		task, err = f.doTask(ctx, http.MethodGet, "/ai/mystic/"+task.Data.TaskID, nil)
		if err != nil {
			return nil, fmt.Errorf("freepik: poll task: %w", err)
		}
	}
}

func (f *freepik) doTask(ctx context.Context, method, path string, body io.Reader) (*mysticTask, error) {
	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-freepik-api-key", f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var task mysticTask
	if err := json.Unmarshal(respBody, &task); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &task, nil
}

func (f *freepik) download(ctx context.Context, url string) (*GeneratedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("freepik: create download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("freepik: download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("freepik: download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("freepik: read image: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &GeneratedImage{
		Data:        data,
		ContentType: contentType,
		Model:       f.model,
	}, nil
}
