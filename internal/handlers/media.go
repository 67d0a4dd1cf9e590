// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"demandflow/internal/imaging"
	"demandflow/internal/models"
)

// maxUploadSize is the maximum allowed file upload size (100 MB, reels
// and short videos included).
const maxUploadSize = 100 << 20

// allowedMediaTypes defines MIME types accepted for demand media.
var allowedMediaTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/quicktime": true,
	"application/pdf": true,
}

// thumbableTypes are image types that support thumbnail generation.
// GIF is excluded to preserve animation.
var thumbableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// extensionFromType maps a MIME type to a file extension for uploads
// whose original name carried none.
func extensionFromType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "application/pdf":
		return ".pdf"
	}
	return ".bin"
}

// MediaUpload handles multipart file upload to S3. Images get a WebP
// thumbnail for the board and approval pages.
func (a *API) MediaUpload(w http.ResponseWriter, r *http.Request) {
	if a.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage not configured")
		return
	}

	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Limit request body to maxUploadSize + some overhead for form fields.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large, maximum size is 100 MB")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large, maximum size is 100 MB")
		return
	}

	// Detect content type by sniffing the first 512 bytes.
	sniffBuf := make([]byte, 512)
	n, err := file.Read(sniffBuf)
	if err != nil && err != io.EOF {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	contentType := http.DetectContentType(sniffBuf[:n])

	if !allowedMediaTypes[contentType] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file type %q is not allowed", contentType))
		return
	}

	// Seek back to start after sniffing.
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		return
	}

	// Generate a unique storage key.
	now := time.Now()
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = extensionFromType(contentType)
	}
	fileID := uuid.New().String()
	s3Key := fmt.Sprintf("media/%d/%02d/%s%s", now.Year(), now.Month(), fileID, ext)

	// Read the entire file into memory for upload and thumbnail generation.
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	ctx := r.Context()
	bucket := a.storage.PublicBucket()
	if err := a.storage.Upload(ctx, bucket, s3Key, contentType, bytes.NewReader(fileBytes), int64(len(fileBytes))); err != nil {
		slog.Error("s3 upload failed", "error", err, "key", s3Key)
		writeError(w, http.StatusInternalServerError, "failed to upload file")
		return
	}

	// Generate and upload a thumbnail for supported image types.
	var thumbKey *string
	if thumbableTypes[contentType] {
		thumb, err := imaging.GenerateThumbnail(fileBytes)
		if err != nil {
			slog.Warn("thumbnail generation failed", "error", err, "key", s3Key)
		} else {
			tk := fmt.Sprintf("media/%d/%02d/%s_thumb.webp", now.Year(), now.Month(), fileID)
			if err := a.storage.Upload(ctx, bucket, tk, thumb.ContentType, bytes.NewReader(thumb.Data), int64(len(thumb.Data))); err != nil {
				slog.Warn("thumbnail upload failed", "error", err, "key", tk)
			} else {
				thumbKey = &tk
			}
		}
	}

	altText := r.FormValue("alt_text")
	media := &models.Media{
		Filename:     fileID + ext,
		OriginalName: header.Filename,
		ContentType:  contentType,
		SizeBytes:    int64(len(fileBytes)),
		Bucket:       bucket,
		S3Key:        s3Key,
		ThumbS3Key:   thumbKey,
		UploaderID:   userID,
	}
	if strings.TrimSpace(altText) != "" {
		media.AltText = &altText
	}

	created, err := a.media.Create(media)
	if err != nil {
		slog.Error("media db insert failed", "error", err, "key", s3Key)
		writeError(w, http.StatusInternalServerError, "failed to save file metadata")
		return
	}

	var thumbURL string
	if created.ThumbS3Key != nil {
		thumbURL = a.storage.FileURL(*created.ThumbS3Key)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        created.ID,
		"url":       a.storage.FileURL(created.S3Key),
		"thumb_url": thumbURL,
		"filename":  created.OriginalName,
		"size":      created.HumanSize(),
		"type":      created.ContentType,
	})
}

// MediaList pages through the media library.
func (a *API) MediaList(w http.ResponseWriter, r *http.Request) {
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "page must not be negative")
			return
		}
		page = n
	}

	items, err := a.media.List(50, page*50)
	if err != nil {
		slog.Error("list media failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type mediaView struct {
		models.Media
		URL      string `json:"url"`
		ThumbURL string `json:"thumb_url,omitempty"`
	}
	views := make([]mediaView, 0, len(items))
	for _, m := range items {
		mv := mediaView{Media: m}
		if a.storage != nil && m.Bucket == a.storage.PublicBucket() {
			mv.URL = a.storage.FileURL(m.S3Key)
			if m.ThumbS3Key != nil {
				mv.ThumbURL = a.storage.FileURL(*m.ThumbS3Key)
			}
		}
		views = append(views, mv)
	}
	writeJSON(w, http.StatusOK, views)
}

// MediaDelete removes a media item from both S3 and the database.
func (a *API) MediaDelete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "mediaID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	// Delete from DB first (returns the row for S3 cleanup).
	deleted, err := a.media.Delete(id)
	if err != nil {
		slog.Error("media db delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if deleted == nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}

	// Clean up S3 objects (best-effort, don't fail the request).
	if a.storage != nil {
		ctx := r.Context()
		if err := a.storage.Delete(ctx, deleted.Bucket, deleted.S3Key); err != nil {
			slog.Warn("s3 original delete failed", "error", err, "key", deleted.S3Key)
		}
		if deleted.ThumbS3Key != nil {
			if err := a.storage.Delete(ctx, deleted.Bucket, *deleted.ThumbS3Key); err != nil {
				slog.Warn("s3 thumbnail delete failed", "error", err, "key", *deleted.ThumbS3Key)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
