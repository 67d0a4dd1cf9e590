// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging generates WebP thumbnails for uploaded demand media
// using libvips. Approval pages and the Kanban board render many small
// previews per screen, so originals are never served there.
package imaging

import (
	"fmt"
	"log/slog"

	"github.com/davidbyttow/govips/v2/vips"
)

const (
	// ThumbWidth is the target width for board and approval-page previews.
	ThumbWidth = 480

	// thumbQuality is the WebP quality used for thumbnails.
	thumbQuality = 78
)

// Thumbnail holds a generated preview ready for upload.
type Thumbnail struct {
	Width       int
	Height      int
	Data        []byte // WebP-encoded image bytes
	ContentType string // Always "image/webp"
}

// Startup initialises the libvips library. Call once at application start.
// concurrency controls the number of libvips worker threads (0 = auto).
func Startup(concurrency int) {
	cfg := &vips.Config{
		ConcurrencyLevel: concurrency,
		MaxCacheSize:     100,
		MaxCacheMem:      50 * 1024 * 1024, // 50 MB
	}
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(cfg)
	slog.Info("libvips started", "version", vips.Version)
}

// Shutdown releases libvips resources. Call at application shutdown.
func Shutdown() {
	vips.Shutdown()
}

// GenerateThumbnail produces one WebP preview capped at ThumbWidth. Images
// narrower than the target are re-encoded at their original width rather
// than upscaled.
func GenerateThumbnail(original []byte) (*Thumbnail, error) {
	probe, err := vips.NewImageFromBuffer(original)
	if err != nil {
		return nil, fmt.Errorf("imaging: probe failed: %w", err)
	}
	origWidth := probe.Width()
	probe.Close()

	targetWidth := ThumbWidth
	if origWidth < targetWidth {
		targetWidth = origWidth
	}

	img, err := vips.NewThumbnailFromBuffer(original, targetWidth, 0, vips.InterestingNone)
	if err != nil {
		return nil, fmt.Errorf("imaging: thumbnail (%dpx): %w", targetWidth, err)
	}
	defer img.Close()

	// Auto-rotate based on EXIF orientation, then strip metadata.
	if err := img.AutoRotate(); err != nil {
		return nil, fmt.Errorf("imaging: autorotate: %w", err)
	}

	params := vips.NewWebpExportParams()
	params.Quality = thumbQuality
	params.Lossless = false
	params.StripMetadata = true

	buf, meta, err := img.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("imaging: export: %w", err)
	}

	return &Thumbnail{
		Width:       meta.Width,
		Height:      meta.Height,
		Data:        buf,
		ContentType: "image/webp",
	}, nil
}
