// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package search provides full-text search over demands and clients.
// Meilisearch serves queries when reachable; a Postgres ILIKE fallback
// keeps the search box working when it is not.
package search

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxDemands = "demandflow_demands"
	idxClients = "demandflow_clients"
)

// DemandRecord is the searchable projection of a demand.
type DemandRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ClientID    string `json:"clientId"`
	ClientName  string `json:"clientName"`
	Status      string `json:"status"`
}

// ClientRecord is the searchable projection of a client.
type ClientRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
}

// Result is one search hit, normalised across both indexes.
type Result struct {
	Type     string `json:"type"` // "demand" or "client"
	ID       string `json:"id"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	ClientID string `json:"client_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Meili wraps a Meilisearch client with a background health monitor.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures both indexes. The
// client is returned even when the initial connection fails; the health
// loop reconfigures indexes when Meilisearch comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		slog.Warn("meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxDemands,
			filterable: []string{"clientId", "status"},
			searchable: []string{"title", "description", "clientName"},
		},
		{
			uid:        idxClients,
			filterable: nil,
			searchable: []string{"name", "industry"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			slog.Debug("meilisearch create index", "index", idx.uid, "error", err)
		}

		index := m.client.Index(idx.uid)
		if len(idx.filterable) > 0 {
			attrs := make([]interface{}, len(idx.filterable))
			for i, v := range idx.filterable {
				attrs[i] = v
			}
			if _, err := index.UpdateFilterableAttributes(&attrs); err != nil {
				slog.Warn("meilisearch update filterable attributes", "index", idx.uid, "error", err)
			}
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			slog.Warn("meilisearch update searchable attributes", "index", idx.uid, "error", err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				slog.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes and merges the hits.
func (m *Meili) Search(query string, limit int) ([]Result, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("search: meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{
			{IndexUID: idxDemands, Query: query, Limit: int64(limit)},
			{IndexUID: idxClients, Query: query, Limit: int64(limit)},
		},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("search: multi-search: %w", err)
	}

	var results []Result
	for _, sr := range resp.Results {
		for _, hit := range sr.Hits {
			switch sr.IndexUID {
			case idxDemands:
				results = append(results, Result{
					Type:     "demand",
					ID:       decodeString(hit, "id"),
					Title:    decodeString(hit, "title"),
					Snippet:  decodeString(hit, "description"),
					ClientID: decodeString(hit, "clientId"),
					Status:   decodeString(hit, "status"),
				})
			case idxClients:
				results = append(results, Result{
					Type:    "client",
					ID:      decodeString(hit, "id"),
					Title:   decodeString(hit, "name"),
					Snippet: decodeString(hit, "industry"),
				})
			}
		}
	}
	return results, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexDemand adds or updates a demand in the search index.
func (m *Meili) IndexDemand(rec DemandRecord) error {
	_, err := m.client.Index(idxDemands).AddDocuments([]DemandRecord{rec}, nil)
	return err
}

// IndexClient adds or updates a client in the search index.
func (m *Meili) IndexClient(rec ClientRecord) error {
	_, err := m.client.Index(idxClients).AddDocuments([]ClientRecord{rec}, nil)
	return err
}

// DeleteDemand removes a demand from the search index.
func (m *Meili) DeleteDemand(id string) error {
	_, err := m.client.Index(idxDemands).DeleteDocument(id, nil)
	return err
}

// DeleteClient removes a client from the search index.
func (m *Meili) DeleteClient(id string) error {
	_, err := m.client.Index(idxClients).DeleteDocument(id, nil)
	return err
}

// IndexDemands bulk-indexes demands, used for startup reindexing.
func (m *Meili) IndexDemands(records []DemandRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxDemands).AddDocuments(records, nil)
	return err
}

// IndexClients bulk-indexes clients.
func (m *Meili) IndexClients(records []ClientRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxClients).AddDocuments(records, nil)
	return err
}
