// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package search

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Service fronts Meilisearch with a Postgres ILIKE fallback so the
// search box keeps working when Meilisearch is down or not configured.
type Service struct {
	meili *Meili // may be nil
	db    *sql.DB
}

// NewService creates a search service. meili may be nil.
func NewService(meili *Meili, db *sql.DB) *Service {
	return &Service{meili: meili, db: db}
}

// Search tries Meilisearch when healthy and falls back to SQL otherwise.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.Search(query, limit)
		if err == nil {
			if results == nil {
				results = []Result{}
			}
			return results, nil
		}
		slog.Warn("meilisearch query failed, falling back to sql", "error", err)
	}
	return s.sqlSearch(ctx, query, limit)
}

// IndexDemand pushes a demand to Meilisearch, fire-and-forget.
func (s *Service) IndexDemand(rec DemandRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDemand(rec); err != nil {
			slog.Warn("index demand", "id", rec.ID, "error", err)
		}
	}()
}

// IndexClient pushes a client to Meilisearch, fire-and-forget.
func (s *Service) IndexClient(rec ClientRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexClient(rec); err != nil {
			slog.Warn("index client", "id", rec.ID, "error", err)
		}
	}()
}

// DeleteDemand removes a demand from the index, fire-and-forget.
func (s *Service) DeleteDemand(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDemand(id); err != nil {
			slog.Warn("delete demand from index", "id", id, "error", err)
		}
	}()
}

// DeleteClient removes a client from the index, fire-and-forget.
func (s *Service) DeleteClient(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteClient(id); err != nil {
			slog.Warn("delete client from index", "id", id, "error", err)
		}
	}()
}

// ReindexAll reads all demands and clients from Postgres and pushes them
// to Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAll(ctx context.Context) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}

	demands, clients, err := s.loadAllRecords(ctx)
	if err != nil {
		return fmt.Errorf("search reindex: %w", err)
	}
	if err := s.meili.IndexDemands(demands); err != nil {
		return fmt.Errorf("search reindex demands: %w", err)
	}
	if err := s.meili.IndexClients(clients); err != nil {
		return fmt.Errorf("search reindex clients: %w", err)
	}
	slog.Info("search reindex complete", "demands", len(demands), "clients", len(clients))
	return nil
}

func (s *Service) loadAllRecords(ctx context.Context) ([]DemandRecord, []ClientRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, COALESCE(d.briefing, ''), d.client_id, c.name, d.status
		FROM demands d
		JOIN clients c ON c.id = d.client_id
		WHERE d.is_draft = FALSE`)
	if err != nil {
		return nil, nil, fmt.Errorf("load demands: %w", err)
	}
	defer rows.Close()

	var demands []DemandRecord
	for rows.Next() {
		var rec DemandRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.ClientID, &rec.ClientName, &rec.Status); err != nil {
			return nil, nil, fmt.Errorf("scan demand: %w", err)
		}
		demands = append(demands, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	clientRows, err := s.db.QueryContext(ctx, `SELECT id, name, COALESCE(segment, '') FROM clients`)
	if err != nil {
		return nil, nil, fmt.Errorf("load clients: %w", err)
	}
	defer clientRows.Close()

	var clients []ClientRecord
	for clientRows.Next() {
		var rec ClientRecord
		if err := clientRows.Scan(&rec.ID, &rec.Name, &rec.Industry); err != nil {
			return nil, nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, rec)
	}
	if err := clientRows.Err(); err != nil {
		return nil, nil, err
	}
	return demands, clients, nil
}

// sqlSearch is the ILIKE fallback over demands and clients.
func (s *Service) sqlSearch(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, COALESCE(d.briefing, ''), d.client_id, d.status
		FROM demands d
		WHERE d.is_draft = FALSE AND (d.title ILIKE $1 OR d.briefing ILIKE $1 OR d.caption ILIKE $1)
		ORDER BY d.updated_at DESC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search demands: %w", err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		r := Result{Type: "demand"}
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.ClientID, &r.Status); err != nil {
			return nil, fmt.Errorf("scan demand result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	clientRows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(segment, '')
		FROM clients
		WHERE name ILIKE $1 OR segment ILIKE $1 OR company ILIKE $1
		ORDER BY name
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	defer clientRows.Close()

	for clientRows.Next() {
		r := Result{Type: "client"}
		if err := clientRows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan client result: %w", err)
		}
		results = append(results, r)
	}
	return results, clientRows.Err()
}
