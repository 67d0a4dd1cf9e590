// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"demandflow/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx so relation loaders can
// run inside or outside a transaction.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// DemandStore handles all demand-related database operations, including the
// approval workflow. Every workflow mutation runs in a transaction that
// locks the demand row with SELECT ... FOR UPDATE, so concurrent approvals
// of the same demand serialize and the all-approved transition fires
// exactly once.
type DemandStore struct {
	db *sql.DB
}

// NewDemandStore creates a new DemandStore with the given database connection.
func NewDemandStore(db *sql.DB) *DemandStore {
	return &DemandStore{db: db}
}

// ApproverInput names one reviewer to attach when creating a demand.
type ApproverInput struct {
	ApproverID   string
	ApproverName string
}

// newApprovalToken returns a 32-character hex token for public approval links.
func newApprovalToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate approval token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

const demandColumns = `
	id, client_id, title, briefing, caption, hashtags, content_type, channels,
	status, approval_status, approval_token,
	scheduled_date, scheduled_time, published_date,
	skip_internal_approval, skip_external_approval, auto_schedule, is_draft,
	created_by, created_at, updated_at`

func scanDemand(row interface{ Scan(...any) error }) (*models.Demand, error) {
	d := &models.Demand{}
	var channels string
	err := row.Scan(
		&d.ID, &d.ClientID, &d.Title, &d.Briefing, &d.Caption, &d.Hashtags,
		&d.ContentType, &channels, &d.Status, &d.ApprovalStatus, &d.ApprovalToken,
		&d.ScheduledDate, &d.ScheduledTime, &d.PublishedDate,
		&d.SkipInternalApproval, &d.SkipExternalApproval, &d.AutoSchedule, &d.IsDraft,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Channels = splitList(channels)
	return d, nil
}

// Create inserts a new demand with its reviewer lists and seeds the audit
// trail with a "created" entry. A fresh approval token is generated unless
// the caller preset d.ApprovalToken, which routes the demand onto an
// existing reviewer link so one link can cover a whole review batch.
func (s *DemandStore) Create(d *models.Demand, internal, external []ApproverInput, actorName string) (*models.Demand, error) {
	token := d.ApprovalToken
	if token == "" {
		var err error
		token, err = newApprovalToken()
		if err != nil {
			return nil, err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("create demand: begin: %w", err)
	}
	defer tx.Rollback()

	if d.Status == "" {
		d.Status = models.StatusBacklog
	}
	if !models.IsValidStatus(d.Status) {
		return nil, fmt.Errorf("create demand: invalid status %q", d.Status)
	}
	if d.ContentType == "" {
		d.ContentType = "post"
	}

	result, err := scanDemand(tx.QueryRow(`
		INSERT INTO demands (client_id, title, briefing, caption, hashtags, content_type, channels,
		                     status, approval_token, scheduled_date, scheduled_time,
		                     skip_internal_approval, skip_external_approval, auto_schedule, is_draft, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING`+demandColumns,
		d.ClientID, d.Title, d.Briefing, d.Caption, d.Hashtags, d.ContentType, joinList(d.Channels),
		d.Status, token, d.ScheduledDate, d.ScheduledTime,
		d.SkipInternalApproval, d.SkipExternalApproval, d.AutoSchedule, d.IsDraft, d.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("create demand: %w", err)
	}

	for i, a := range internal {
		if err := insertApprover(tx, result.ID, models.ApproverInternal, a, i); err != nil {
			return nil, err
		}
	}
	for i, a := range external {
		if err := insertApprover(tx, result.ID, models.ApproverExternal, a, i); err != nil {
			return nil, err
		}
	}

	if err := insertHistory(tx, result.ID, "created", "Demanda criada", actorName, nil, strPtr(string(result.Status))); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create demand: commit: %w", err)
	}

	return s.FindByID(result.ID)
}

func insertApprover(q querier, demandID uuid.UUID, kind models.ApproverKind, a ApproverInput, position int) error {
	_, err := q.Exec(`
		INSERT INTO demand_approvers (demand_id, kind, approver_id, approver_name, position)
		VALUES ($1, $2, $3, $4, $5)
	`, demandID, kind, a.ApproverID, a.ApproverName, position)
	if err != nil {
		return fmt.Errorf("insert approver: %w", err)
	}
	return nil
}

func insertHistory(q querier, demandID uuid.UUID, action, description, userName string, oldValue, newValue *string) error {
	_, err := q.Exec(`
		INSERT INTO demand_history (demand_id, action, description, user_name, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, demandID, action, description, userName, oldValue, newValue)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }

// FindByID retrieves a demand with all its relations loaded. Returns nil if
// not found.
func (s *DemandStore) FindByID(id uuid.UUID) (*models.Demand, error) {
	d, err := scanDemand(s.db.QueryRow(`SELECT`+demandColumns+` FROM demands WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find demand by id: %w", err)
	}
	if err := s.loadRelations(s.db, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListFilter narrows the demand list. Zero values mean "no filter".
type ListFilter struct {
	ClientID      *uuid.UUID
	Status        models.DemandStatus
	IncludeDrafts bool
}

// List returns demands matching the filter, newest first, with reviewer
// lists loaded so the board can render approval badges. History, comments
// and media are only loaded on single-demand reads.
func (s *DemandStore) List(f ListFilter) ([]models.Demand, error) {
	query := `SELECT` + demandColumns + ` FROM demands WHERE 1=1`
	var args []any

	if f.ClientID != nil {
		args = append(args, *f.ClientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.IncludeDrafts {
		query += " AND is_draft = FALSE"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list demands: %w", err)
	}
	defer rows.Close()

	var demands []models.Demand
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan demand: %w", err)
		}
		demands = append(demands, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range demands {
		internal, external, err := loadApprovers(s.db, demands[i].ID)
		if err != nil {
			return nil, err
		}
		demands[i].InternalApprovers = internal
		demands[i].ExternalApprovers = external
	}
	return demands, nil
}

// ListByToken returns the non-draft demands sharing an approval token that
// are currently awaiting client approval, with relations loaded. This backs
// the public approval page: demands still in internal stages, or already
// past review, never reach the external link.
func (s *DemandStore) ListByToken(token string) ([]models.Demand, error) {
	rows, err := s.db.Query(`
		SELECT`+demandColumns+` FROM demands
		WHERE approval_token = $1 AND is_draft = FALSE AND status = $2
		ORDER BY created_at ASC
	`, token, models.StatusAprovacaoCliente)
	if err != nil {
		return nil, fmt.Errorf("list demands by token: %w", err)
	}
	defer rows.Close()

	var demands []models.Demand
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan demand: %w", err)
		}
		demands = append(demands, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range demands {
		if err := s.loadRelations(s.db, &demands[i]); err != nil {
			return nil, err
		}
	}
	return demands, nil
}

// FindByIDAndToken retrieves one demand only if the token matches its
// approval token. Returns nil if either side misses, so the public surface
// cannot probe demand IDs.
func (s *DemandStore) FindByIDAndToken(id uuid.UUID, token string) (*models.Demand, error) {
	d, err := scanDemand(s.db.QueryRow(`
		SELECT`+demandColumns+` FROM demands WHERE id = $1 AND approval_token = $2
	`, id, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find demand by token: %w", err)
	}
	if err := s.loadRelations(s.db, d); err != nil {
		return nil, err
	}
	return d, nil
}

// TokenClient returns the client whose demands share the approval token, or
// nil when no non-draft demand carries it. Used to tell a dead link apart
// from one with nothing left to review, and to keep shared tokens scoped to
// a single client.
func (s *DemandStore) TokenClient(token string) (*uuid.UUID, error) {
	var clientID uuid.UUID
	err := s.db.QueryRow(`
		SELECT client_id FROM demands
		WHERE approval_token = $1 AND is_draft = FALSE
		LIMIT 1
	`, token).Scan(&clientID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find token client: %w", err)
	}
	return &clientID, nil
}

// Update modifies a demand's editable fields and appends an audit entry
// naming every field that changed. Status is not updated here; use Move.
func (s *DemandStore) Update(d *models.Demand, actorName string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("update demand: begin: %w", err)
	}
	defer tx.Rollback()

	current, err := scanDemand(tx.QueryRow(`SELECT` + demandColumns + ` FROM demands WHERE id = $1 FOR UPDATE`, d.ID))
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update demand: load: %w", err)
	}

	changed := changedFields(current, d)

	_, err = tx.Exec(`
		UPDATE demands SET
			title = $1, briefing = $2, caption = $3, hashtags = $4, content_type = $5,
			channels = $6, scheduled_date = $7, scheduled_time = $8,
			skip_internal_approval = $9, skip_external_approval = $10,
			auto_schedule = $11, is_draft = $12, updated_at = NOW()
		WHERE id = $13
	`, d.Title, d.Briefing, d.Caption, d.Hashtags, d.ContentType,
		joinList(d.Channels), d.ScheduledDate, d.ScheduledTime,
		d.SkipInternalApproval, d.SkipExternalApproval,
		d.AutoSchedule, d.IsDraft, d.ID)
	if err != nil {
		return fmt.Errorf("update demand: %w", err)
	}

	if len(changed) > 0 {
		desc := "Campos alterados: " + strings.Join(changed, ", ")
		if err := insertHistory(tx, d.ID, "updated", desc, actorName, nil, nil); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update demand: commit: %w", err)
	}
	return nil
}

func changedFields(old, upd *models.Demand) []string {
	var changed []string
	if old.Title != upd.Title {
		changed = append(changed, "title")
	}
	if !eqPtr(old.Briefing, upd.Briefing) {
		changed = append(changed, "briefing")
	}
	if !eqPtr(old.Caption, upd.Caption) {
		changed = append(changed, "caption")
	}
	if !eqPtr(old.Hashtags, upd.Hashtags) {
		changed = append(changed, "hashtags")
	}
	if old.ContentType != upd.ContentType {
		changed = append(changed, "content_type")
	}
	if joinList(old.Channels) != joinList(upd.Channels) {
		changed = append(changed, "channels")
	}
	if !eqTimePtr(old.ScheduledDate, upd.ScheduledDate) {
		changed = append(changed, "scheduled_date")
	}
	if !eqPtr(old.ScheduledTime, upd.ScheduledTime) {
		changed = append(changed, "scheduled_time")
	}
	if old.SkipInternalApproval != upd.SkipInternalApproval {
		changed = append(changed, "skip_internal_approval")
	}
	if old.SkipExternalApproval != upd.SkipExternalApproval {
		changed = append(changed, "skip_external_approval")
	}
	if old.AutoSchedule != upd.AutoSchedule {
		changed = append(changed, "auto_schedule")
	}
	if old.IsDraft != upd.IsDraft {
		changed = append(changed, "is_draft")
	}
	return changed
}

func eqPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Move transitions a demand to a new board column and records the move in
// the audit trail. Reaching the published column stamps published_date and
// appends a row to the client's content history.
func (s *DemandStore) Move(id uuid.UUID, newStatus models.DemandStatus, actorName string) (*models.Demand, error) {
	if !models.IsValidStatus(newStatus) {
		return nil, fmt.Errorf("move demand: invalid status %q", newStatus)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("move demand: begin: %w", err)
	}
	defer tx.Rollback()

	d, err := scanDemand(tx.QueryRow(`SELECT` + demandColumns + ` FROM demands WHERE id = $1 FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("move demand: load: %w", err)
	}

	if d.Status == newStatus {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("move demand: commit: %w", err)
		}
		return s.FindByID(id)
	}

	oldStatus := d.Status
	if err := setStatus(tx, d, newStatus); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Movida de %s para %s", oldStatus, newStatus)
	if err := insertHistory(tx, id, "status_changed", desc, actorName,
		strPtr(string(oldStatus)), strPtr(string(newStatus))); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("move demand: commit: %w", err)
	}
	return s.FindByID(id)
}

// setStatus writes the new board column and runs its side effects. The
// caller must hold the row lock. Publishing stamps published_date once and
// appends the client content-history row.
func setStatus(tx *sql.Tx, d *models.Demand, newStatus models.DemandStatus) error {
	if newStatus == models.StatusConcluido && d.PublishedDate == nil {
		var publishedAt time.Time
		err := tx.QueryRow(`
			UPDATE demands SET status = $1, published_date = NOW(), updated_at = NOW()
			WHERE id = $2
			RETURNING published_date
		`, newStatus, d.ID).Scan(&publishedAt)
		if err != nil {
			return fmt.Errorf("set demand status: %w", err)
		}
		d.PublishedDate = &publishedAt

		_, err = tx.Exec(`
			INSERT INTO client_content_history (client_id, demand_id, title, channels, published_at)
			VALUES ($1, $2, $3, $4, $5)
		`, d.ClientID, d.ID, d.Title, joinList(d.Channels), publishedAt)
		if err != nil {
			return fmt.Errorf("append client content history: %w", err)
		}
	} else {
		_, err := tx.Exec(`
			UPDATE demands SET status = $1, updated_at = NOW() WHERE id = $2
		`, newStatus, d.ID)
		if err != nil {
			return fmt.Errorf("set demand status: %w", err)
		}
	}
	d.Status = newStatus
	return nil
}

func setApprovalStatus(tx *sql.Tx, demandID uuid.UUID, st models.ApprovalStatus) error {
	_, err := tx.Exec(`
		UPDATE demands SET approval_status = $1, updated_at = NOW() WHERE id = $2
	`, st, demandID)
	if err != nil {
		return fmt.Errorf("set approval status: %w", err)
	}
	return nil
}

// Approve records one approver's sign-off on a demand. When the last
// pending approver of the kind approves, the demand advances:
//   - internal: to client approval (or past it when external review is
//     skipped)
//   - external: to the scheduled column when auto_schedule is set,
//     otherwise to awaiting scheduling
//
// Returns ErrNotFound if the demand or approver entry does not exist,
// ErrNotPending if the approver has already acted, and ErrNotInReview when
// an external approver acts on a demand that is not in client approval.
func (s *DemandStore) Approve(demandID uuid.UUID, kind models.ApproverKind, approverID, actorName string) (*models.Demand, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("approve demand: begin: %w", err)
	}
	defer tx.Rollback()

	d, err := scanDemand(tx.QueryRow(`SELECT` + demandColumns + ` FROM demands WHERE id = $1 FOR UPDATE`, demandID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("approve demand: load: %w", err)
	}

	// External reviewers only act on demands sitting in client approval;
	// anything else would let the public link bypass internal review.
	if kind == models.ApproverExternal && d.Status != models.StatusAprovacaoCliente {
		return nil, ErrNotInReview
	}

	if err := markApproved(tx, demandID, kind, approverID); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Aprovada por %s", actorName)
	if err := insertHistory(tx, demandID, "approved", desc, actorName, nil, nil); err != nil {
		return nil, err
	}

	if err := advanceIfFullyApproved(tx, d, kind, actorName); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("approve demand: commit: %w", err)
	}
	return s.FindByID(demandID)
}

// markApproved flips one pending approver entry to approved.
func markApproved(tx *sql.Tx, demandID uuid.UUID, kind models.ApproverKind, approverID string) error {
	var status models.ApproverStatus
	err := tx.QueryRow(`
		SELECT status FROM demand_approvers
		WHERE demand_id = $1 AND kind = $2 AND approver_id = $3
		FOR UPDATE
	`, demandID, kind, approverID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load approver: %w", err)
	}
	if status != models.ApproverPending {
		return ErrNotPending
	}

	_, err = tx.Exec(`
		UPDATE demand_approvers SET status = $1, approved_at = NOW()
		WHERE demand_id = $2 AND kind = $3 AND approver_id = $4
	`, models.ApproverApproved, demandID, kind, approverID)
	if err != nil {
		return fmt.Errorf("mark approver approved: %w", err)
	}
	return nil
}

// advanceIfFullyApproved checks whether every approver of the kind has now
// approved and, if so, moves the demand forward. The caller holds the
// demand row lock, so the transition fires exactly once even under
// concurrent approvals.
func advanceIfFullyApproved(tx *sql.Tx, d *models.Demand, kind models.ApproverKind, actorName string) error {
	internal, external, err := loadApprovers(tx, d.ID)
	if err != nil {
		return err
	}
	approvers := internal
	if kind == models.ApproverExternal {
		approvers = external
	}
	if !models.AllApproved(approvers) {
		return nil
	}

	oldStatus := d.Status
	var newStatus models.DemandStatus
	var approvalStatus models.ApprovalStatus

	switch kind {
	case models.ApproverInternal:
		if d.SkipExternalApproval {
			newStatus = d.NextStatusAfterExternalApproval()
			approvalStatus = models.ApprovalApproved
		} else {
			newStatus = models.StatusAprovacaoCliente
			approvalStatus = models.ApprovalInternalApproved
		}
	case models.ApproverExternal:
		newStatus = d.NextStatusAfterExternalApproval()
		approvalStatus = models.ApprovalApproved
	default:
		return fmt.Errorf("advance demand: unknown approver kind %q", kind)
	}

	if err := setStatus(tx, d, newStatus); err != nil {
		return err
	}
	if err := setApprovalStatus(tx, d.ID, approvalStatus); err != nil {
		return err
	}

	desc := fmt.Sprintf("Todos os aprovadores aprovaram, movida de %s para %s", oldStatus, newStatus)
	return insertHistory(tx, d.ID, "status_changed", desc, actorName,
		strPtr(string(oldStatus)), strPtr(string(newStatus)))
}

// RequestAdjustment records one approver's dissent. A single adjustment
// request moves the demand to the adjustments column regardless of how
// many other approvers have already signed off.
func (s *DemandStore) RequestAdjustment(demandID uuid.UUID, kind models.ApproverKind, approverID, actorName, feedback string) (*models.Demand, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("request adjustment: begin: %w", err)
	}
	defer tx.Rollback()

	d, err := scanDemand(tx.QueryRow(`SELECT` + demandColumns + ` FROM demands WHERE id = $1 FOR UPDATE`, demandID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("request adjustment: load: %w", err)
	}

	if kind == models.ApproverExternal && d.Status != models.StatusAprovacaoCliente {
		return nil, ErrNotInReview
	}

	var status models.ApproverStatus
	err = tx.QueryRow(`
		SELECT status FROM demand_approvers
		WHERE demand_id = $1 AND kind = $2 AND approver_id = $3
		FOR UPDATE
	`, demandID, kind, approverID).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("request adjustment: load approver: %w", err)
	}
	if status != models.ApproverPending {
		return nil, ErrNotPending
	}

	_, err = tx.Exec(`
		UPDATE demand_approvers SET status = $1, feedback = $2
		WHERE demand_id = $3 AND kind = $4 AND approver_id = $5
	`, models.ApproverAdjustmentRequested, feedback, demandID, kind, approverID)
	if err != nil {
		return nil, fmt.Errorf("request adjustment: mark approver: %w", err)
	}

	oldStatus := d.Status
	if err := setStatus(tx, d, models.StatusAjustes); err != nil {
		return nil, err
	}
	if err := setApprovalStatus(tx, demandID, models.ApprovalNeedsAdjustment); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Ajustes solicitados por %s", actorName)
	if feedback != "" {
		desc += ": " + feedback
	}
	if err := insertHistory(tx, demandID, "adjustment_requested", desc, actorName,
		strPtr(string(oldStatus)), strPtr(string(models.StatusAjustes))); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("request adjustment: commit: %w", err)
	}
	return s.FindByID(demandID)
}

// ResetApprovals returns every approver entry to pending and the demand's
// approval status to pending. Used when a demand re-enters review after
// adjustments.
func (s *DemandStore) ResetApprovals(demandID uuid.UUID, actorName string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("reset approvals: begin: %w", err)
	}
	defer tx.Rollback()

	var lockedID uuid.UUID
	err = tx.QueryRow(`SELECT id FROM demands WHERE id = $1 FOR UPDATE`, demandID).Scan(&lockedID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reset approvals: load: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE demand_approvers SET status = $1, approved_at = NULL, feedback = NULL
		WHERE demand_id = $2
	`, models.ApproverPending, demandID)
	if err != nil {
		return fmt.Errorf("reset approvals: %w", err)
	}
	if err := setApprovalStatus(tx, demandID, models.ApprovalPending); err != nil {
		return err
	}
	if err := insertHistory(tx, demandID, "approvals_reset", "Aprovações reiniciadas", actorName, nil, nil); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reset approvals: commit: %w", err)
	}
	return nil
}

// ApproveAllPendingByToken approves every pending external approver on
// every demand sharing the token that awaits client approval, advancing
// each demand whose reviewer list completes. Returns the number of demands
// moved out of client approval; repeating the call finds nothing left in
// that stage and reports zero.
func (s *DemandStore) ApproveAllPendingByToken(token, actorName string) (int, error) {
	rows, err := s.db.Query(`
		SELECT id FROM demands
		WHERE approval_token = $1 AND is_draft = FALSE AND status = $2
	`, token, models.StatusAprovacaoCliente)
	if err != nil {
		return 0, fmt.Errorf("approve by token: list: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("approve by token: scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	touched := 0
	for _, id := range ids {
		changed, err := s.approveAllPendingExternal(id, actorName)
		if err != nil {
			return touched, err
		}
		if changed {
			touched++
		}
	}
	return touched, nil
}

// approveAllPendingExternal approves every still-pending external approver
// on one demand inside a single transaction and advances the demand when
// its external list is fully approved. A demand in client approval with no
// external approvers at all advances too: an empty list does not wait on
// anyone. Reports whether the demand changed.
func (s *DemandStore) approveAllPendingExternal(demandID uuid.UUID, actorName string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("approve all external: begin: %w", err)
	}
	defer tx.Rollback()

	d, err := scanDemand(tx.QueryRow(`SELECT` + demandColumns + ` FROM demands WHERE id = $1 FOR UPDATE`, demandID))
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("approve all external: load: %w", err)
	}
	if d.Status != models.StatusAprovacaoCliente {
		return false, tx.Commit()
	}

	res, err := tx.Exec(`
		UPDATE demand_approvers SET status = $1, approved_at = NOW()
		WHERE demand_id = $2 AND kind = $3 AND status = $4
	`, models.ApproverApproved, demandID, models.ApproverExternal, models.ApproverPending)
	if err != nil {
		return false, fmt.Errorf("approve all external: %w", err)
	}
	flipped, _ := res.RowsAffected()

	if flipped > 0 {
		desc := fmt.Sprintf("Aprovação em massa por %s", actorName)
		if err := insertHistory(tx, demandID, "approved", desc, actorName, nil, nil); err != nil {
			return false, err
		}
	}

	oldStatus := d.Status
	if err := advanceIfFullyApproved(tx, d, models.ApproverExternal, actorName); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("approve all external: commit: %w", err)
	}
	return flipped > 0 || d.Status != oldStatus, nil
}

// AddComment appends a free-text note to a demand.
func (s *DemandStore) AddComment(demandID uuid.UUID, authorName, body string) (*models.Comment, error) {
	c := &models.Comment{}
	err := s.db.QueryRow(`
		INSERT INTO demand_comments (demand_id, author_name, body)
		VALUES ($1, $2, $3)
		RETURNING id, demand_id, author_name, body, created_at
	`, demandID, authorName, body).Scan(&c.ID, &c.DemandID, &c.AuthorName, &c.Body, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return c, nil
}

// SetMedia replaces a demand's ordered media attachments.
func (s *DemandStore) SetMedia(demandID uuid.UUID, mediaIDs []uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("set demand media: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM demand_media WHERE demand_id = $1`, demandID); err != nil {
		return fmt.Errorf("set demand media: clear: %w", err)
	}
	for i, mediaID := range mediaIDs {
		_, err := tx.Exec(`
			INSERT INTO demand_media (demand_id, media_id, position) VALUES ($1, $2, $3)
		`, demandID, mediaID, i)
		if err != nil {
			return fmt.Errorf("set demand media: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set demand media: commit: %w", err)
	}
	return nil
}

// Delete removes a demand and, via cascade, its approvers, history,
// comments and media links.
func (s *DemandStore) Delete(id uuid.UUID) error {
	res, err := s.db.Exec(`DELETE FROM demands WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete demand: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// loadRelations fills a demand's approver lists, history, comments and
// media references.
func (s *DemandStore) loadRelations(q querier, d *models.Demand) error {
	internal, external, err := loadApprovers(q, d.ID)
	if err != nil {
		return err
	}
	d.InternalApprovers = internal
	d.ExternalApprovers = external

	history, err := loadHistory(q, d.ID)
	if err != nil {
		return err
	}
	d.History = history

	comments, err := loadComments(q, d.ID)
	if err != nil {
		return err
	}
	d.Comments = comments

	media, err := loadDemandMedia(q, d.ID)
	if err != nil {
		return err
	}
	d.Media = media
	return nil
}

func loadApprovers(q querier, demandID uuid.UUID) (internal, external []models.Approver, err error) {
	rows, err := q.Query(`
		SELECT id, demand_id, kind, approver_id, approver_name, position, status, approved_at, feedback
		FROM demand_approvers
		WHERE demand_id = $1
		ORDER BY kind, position
	`, demandID)
	if err != nil {
		return nil, nil, fmt.Errorf("load approvers: %w", err)
	}
	defer rows.Close()

	internal = []models.Approver{}
	external = []models.Approver{}
	for rows.Next() {
		var a models.Approver
		if err := rows.Scan(
			&a.ID, &a.DemandID, &a.Kind, &a.ApproverID, &a.ApproverName,
			&a.Position, &a.Status, &a.ApprovedAt, &a.Feedback,
		); err != nil {
			return nil, nil, fmt.Errorf("scan approver: %w", err)
		}
		if a.Kind == models.ApproverInternal {
			internal = append(internal, a)
		} else {
			external = append(external, a)
		}
	}
	return internal, external, rows.Err()
}

func loadHistory(q querier, demandID uuid.UUID) ([]models.HistoryEntry, error) {
	rows, err := q.Query(`
		SELECT id, demand_id, action, description, user_name, old_value, new_value, created_at
		FROM demand_history
		WHERE demand_id = $1
		ORDER BY created_at ASC
	`, demandID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.DemandID, &e.Action, &e.Description, &e.UserName,
			&e.OldValue, &e.NewValue, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func loadComments(q querier, demandID uuid.UUID) ([]models.Comment, error) {
	rows, err := q.Query(`
		SELECT id, demand_id, author_name, body, created_at
		FROM demand_comments
		WHERE demand_id = $1
		ORDER BY created_at ASC
	`, demandID)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.DemandID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func loadDemandMedia(q querier, demandID uuid.UUID) ([]models.DemandMedia, error) {
	rows, err := q.Query(`
		SELECT media_id, position FROM demand_media
		WHERE demand_id = $1
		ORDER BY position ASC
	`, demandID)
	if err != nil {
		return nil, fmt.Errorf("load demand media: %w", err)
	}
	defer rows.Close()

	media := []models.DemandMedia{}
	for rows.Next() {
		var m models.DemandMedia
		if err := rows.Scan(&m.MediaID, &m.Position); err != nil {
			return nil, fmt.Errorf("scan demand media: %w", err)
		}
		media = append(media, m)
	}
	return media, rows.Err()
}
