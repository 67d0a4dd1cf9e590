// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// gemini implements Provider and ImageGenerator using the Google Gemini
// REST API. The same API key serves both the chat model and the native
// image generation model.
type gemini struct {
	apiKey     string
	model      string
	modelImage string
	baseURL    string
	client     *http.Client
}

func newGemini(cfg ProviderConfig) *gemini {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &gemini{
		apiKey:     cfg.APIKey,
		model:      model,
		modelImage: cfg.ModelImage,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *gemini) Name() string { return "gemini" }

// Gemini request/response types for the generateContent endpoint.
type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends the transcript to the generateContent endpoint. Any leading
// system message becomes the system_instruction; assistant turns map to
// Gemini's "model" role.
func (g *gemini) Chat(ctx context.Context, messages []Message) (*Completion, error) {
	req := geminiRequest{}
	for _, m := range messages {
		switch m.Role {
		case "system":
			req.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: m.Content}},
			}
		case "assistant":
			req.Contents = append(req.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: m.Content}},
			})
		default:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}

	resp, err := g.generateContent(ctx, g.model, &req)
	if err != nil {
		return nil, err
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return nil, fmt.Errorf("gemini: empty completion (finish reason %q)", resp.Candidates[0].FinishReason)
	}

	return &Completion{
		Text:             text,
		Model:            g.model,
		PromptTokens:     resp.UsageMetadata.PromptTokenCount,
		CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// GenerateImage asks the image model for a single image via the TEXT+IMAGE
// response modalities and returns the decoded bytes.
func (g *gemini) GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	if g.modelImage == "" {
		return nil, fmt.Errorf("gemini: no image model configured")
	}

	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	resp, err := g.generateContent(ctx, g.modelImage, &req)
	if err != nil {
		return nil, err
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("gemini: decode image data: %w", err)
		}
		return &GeneratedImage{
			Data:        data,
			ContentType: part.InlineData.MimeType,
			Model:       g.modelImage,
		}, nil
	}

	return nil, fmt.Errorf("gemini: response contained no image (finish reason %q)", resp.Candidates[0].FinishReason)
}

func (g *gemini) generateContent(ctx context.Context, model string, req *geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("gemini: parse response (status %d): %w", httpResp.StatusCode, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("gemini: API error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: unexpected status %d: %s", httpResp.StatusCode, respBody)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: response contained no candidates")
	}
	return &resp, nil
}
