// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"demandflow/internal/models"
)

// GenerationStore persists studio-generated assets. Deletes are soft so
// bulk operations stay idempotent and object-storage cleanup can lag.
type GenerationStore struct {
	db *sql.DB
}

// NewGenerationStore creates a new GenerationStore with the given database connection.
func NewGenerationStore(db *sql.DB) *GenerationStore {
	return &GenerationStore{db: db}
}

const generationColumns = `
	id, owner_id, kind, provider, model, prompt, bucket, s3_key,
	content_type, size_bytes, text_content, favorite, created_at, deleted_at`

func scanGeneration(row interface{ Scan(...any) error }) (*models.Generation, error) {
	g := &models.Generation{}
	err := row.Scan(
		&g.ID, &g.OwnerID, &g.Kind, &g.Provider, &g.Model, &g.Prompt,
		&g.Bucket, &g.S3Key, &g.ContentType, &g.SizeBytes, &g.Text,
		&g.Favorite, &g.CreatedAt, &g.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Create inserts a new generation record.
func (s *GenerationStore) Create(g *models.Generation) (*models.Generation, error) {
	result, err := scanGeneration(s.db.QueryRow(`
		INSERT INTO generations (owner_id, kind, provider, model, prompt, bucket, s3_key, content_type, size_bytes, text_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING`+generationColumns,
		g.OwnerID, g.Kind, g.Provider, g.Model, g.Prompt,
		g.Bucket, g.S3Key, g.ContentType, g.SizeBytes, g.Text,
	))
	if err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}
	return result, nil
}

// FindByID retrieves a live (not soft-deleted) generation. Returns nil if
// not found.
func (s *GenerationStore) FindByID(id uuid.UUID) (*models.Generation, error) {
	g, err := scanGeneration(s.db.QueryRow(`
		SELECT`+generationColumns+` FROM generations
		WHERE id = $1 AND deleted_at IS NULL
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find generation by id: %w", err)
	}
	return g, nil
}

// HistoryFilter narrows the studio history listing.
type HistoryFilter struct {
	OwnerID       uuid.UUID
	Kind          models.GenerationKind // empty = all kinds
	FavoritesOnly bool
	Limit         int
	Offset        int
}

// History returns a user's live generations, newest first.
func (s *GenerationStore) History(f HistoryFilter) ([]models.Generation, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	query := `SELECT` + generationColumns + ` FROM generations WHERE owner_id = $1 AND deleted_at IS NULL`
	args := []any{f.OwnerID}

	if f.Kind != "" {
		args = append(args, f.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if f.FavoritesOnly {
		query += " AND favorite = TRUE"
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var items []models.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		items = append(items, *g)
	}
	return items, rows.Err()
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *GenerationStore) ToggleFavorite(id uuid.UUID) (bool, error) {
	var favorite bool
	err := s.db.QueryRow(`
		UPDATE generations SET favorite = NOT favorite
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING favorite
	`, id).Scan(&favorite)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return favorite, nil
}

// SoftDelete marks one generation deleted. Already-deleted rows return
// ErrNotFound.
func (s *GenerationStore) SoftDelete(id uuid.UUID) (*models.Generation, error) {
	g, err := scanGeneration(s.db.QueryRow(`
		UPDATE generations SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING`+generationColumns, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("soft delete generation: %w", err)
	}
	return g, nil
}

// SoftDeleteBulk marks many generations deleted in one statement and
// returns the rows touched so callers can clean object storage. IDs that
// are missing or already deleted are skipped.
func (s *GenerationStore) SoftDeleteBulk(ownerID uuid.UUID, ids []uuid.UUID) ([]models.Generation, error) {
	deleted := []models.Generation{}
	for _, id := range ids {
		g, err := scanGeneration(s.db.QueryRow(`
			UPDATE generations SET deleted_at = NOW()
			WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
			RETURNING`+generationColumns, id, ownerID))
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("bulk delete generation: %w", err)
		}
		deleted = append(deleted, *g)
	}
	return deleted, nil
}

// Stats summarizes a user's live generations for the studio dashboard.
func (s *GenerationStore) Stats(ownerID uuid.UUID) (*models.GenerationStats, error) {
	stats := &models.GenerationStats{
		ByKind:     map[string]int{},
		ByProvider: map[string]int{},
	}

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE favorite),
		       COALESCE(SUM(size_bytes), 0)
		FROM generations
		WHERE owner_id = $1 AND deleted_at IS NULL
	`, ownerID).Scan(&stats.Total, &stats.Favorites, &stats.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("generation stats: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT kind, provider, COUNT(*)
		FROM generations
		WHERE owner_id = $1 AND deleted_at IS NULL
		GROUP BY kind, provider
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("generation stats breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, provider string
		var count int
		if err := rows.Scan(&kind, &provider, &count); err != nil {
			return nil, fmt.Errorf("scan generation stats: %w", err)
		}
		stats.ByKind[kind] += count
		stats.ByProvider[provider] += count
	}
	return stats, rows.Err()
}
