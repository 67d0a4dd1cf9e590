// Package store provides database access methods for all DemandFlow
// entities. Each store struct wraps a *sql.DB and exposes typed query methods.
package store

import (
	"errors"
	"strings"
)

// Sentinel errors returned by workflow mutations. Lookups (Find*) keep the
// nil-on-missing convention; mutations that target a specific row return
// ErrNotFound so handlers can answer 404 instead of silently succeeding.
var (
	ErrNotFound    = errors.New("store: not found")
	ErrNotPending  = errors.New("store: approver is not pending")
	ErrNotInReview = errors.New("store: demand is not awaiting client approval")
)

// joinList flattens a string slice into the comma-separated TEXT form used
// for channel lists. Empty slices produce an empty string.
func joinList(items []string) string {
	return strings.Join(items, ",")
}

// splitList is the inverse of joinList. An empty string produces a non-nil
// empty slice so JSON output is [] rather than null.
func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
