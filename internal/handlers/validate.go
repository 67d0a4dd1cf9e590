// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Validation limits for demand, client and billing fields.
const (
	maxTitleLen    = 300
	maxBriefingLen = 20_000
	maxCaptionLen  = 5_000
	maxCommentLen  = 5_000
	maxNameLen     = 200
	maxChannels    = 10
	maxPromptLen   = 10_000
)

// knownContentTypes are the content formats the board understands.
var knownContentTypes = map[string]bool{
	"post":     true,
	"carousel": true,
	"reels":    true,
	"story":    true,
	"video":    true,
	"blog":     true,
	"other":    true,
}

// validateDemand checks demand inputs and returns the first error found.
func validateDemand(title, contentType string, channels []string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "title is required"
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "title is too long (max 300 characters)"
	}
	if !knownContentTypes[contentType] {
		return "unknown content_type"
	}
	if len(channels) > maxChannels {
		return "too many channels (max 10)"
	}
	for _, ch := range channels {
		if strings.TrimSpace(ch) == "" {
			return "channels must not be blank"
		}
		if strings.Contains(ch, ",") {
			return "channel names must not contain commas"
		}
	}
	return ""
}

// validateClient checks client inputs and returns the first error found.
func validateClient(name string, monthlyFee float64) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "name is required"
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "name is too long (max 200 characters)"
	}
	if monthlyFee < 0 {
		return "monthly_fee must not be negative"
	}
	return ""
}

// validateComment checks a demand comment body.
func validateComment(body string) string {
	if strings.TrimSpace(body) == "" {
		return "body is required"
	}
	if utf8.RuneCountInString(body) > maxCommentLen {
		return "body is too long (max 5,000 characters)"
	}
	return ""
}

// validatePrompt checks a generation prompt for the chat and studio
// endpoints.
func validatePrompt(prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		return "prompt is required"
	}
	if utf8.RuneCountInString(prompt) > maxPromptLen {
		return "prompt is too long (max 10,000 characters)"
	}
	return ""
}

// parseDate parses a YYYY-MM-DD date string.
func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
