// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// DemandStatus represents a demand's stage on the Kanban board.
// The Portuguese stage names are part of the product vocabulary and are
// stored verbatim; the board renders its own labels.
type DemandStatus string

const (
	StatusBacklog               DemandStatus = "backlog"
	StatusConteudo              DemandStatus = "conteudo"
	StatusDesign                DemandStatus = "design"
	StatusAprovacaoInterna      DemandStatus = "aprovacao_interna"
	StatusAprovacaoCliente      DemandStatus = "aprovacao_cliente"
	StatusAjustes               DemandStatus = "ajustes"
	StatusAguardandoAgendamento DemandStatus = "aguardando_agendamento"
	StatusAprovadoAgendado      DemandStatus = "aprovado_agendado"
	StatusConcluido             DemandStatus = "concluido"
	StatusRejeitado             DemandStatus = "rejeitado"
)

// ValidStatuses lists every demand status in board order.
var ValidStatuses = []DemandStatus{
	StatusBacklog, StatusConteudo, StatusDesign,
	StatusAprovacaoInterna, StatusAprovacaoCliente, StatusAjustes,
	StatusAguardandoAgendamento, StatusAprovadoAgendado,
	StatusConcluido, StatusRejeitado,
}

// IsValidStatus reports whether s names a known demand status.
func IsValidStatus(s DemandStatus) bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ApprovalStatus summarizes where a demand stands across both reviewer lists.
type ApprovalStatus string

const (
	ApprovalPending          ApprovalStatus = "pending"
	ApprovalInternalApproved ApprovalStatus = "internal_approved"
	ApprovalApproved         ApprovalStatus = "approved"
	ApprovalNeedsAdjustment  ApprovalStatus = "needs_adjustment"
)

// ApproverKind distinguishes the two independent reviewer lists on a demand.
type ApproverKind string

const (
	ApproverInternal ApproverKind = "internal"
	ApproverExternal ApproverKind = "external"
)

// ApproverStatus is the review state of a single approver entry.
type ApproverStatus string

const (
	ApproverPending             ApproverStatus = "pending"
	ApproverApproved            ApproverStatus = "approved"
	ApproverAdjustmentRequested ApproverStatus = "adjustment_requested"
)

// Approver is one entry in a demand's internal or external reviewer list.
type Approver struct {
	ID           uuid.UUID      `json:"id"`
	DemandID     uuid.UUID      `json:"demand_id"`
	Kind         ApproverKind   `json:"kind"`
	ApproverID   string         `json:"approver_id"`
	ApproverName string         `json:"approver_name"`
	Position     int            `json:"position"`
	Status       ApproverStatus `json:"status"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	Feedback     *string        `json:"feedback,omitempty"`
}

// HistoryEntry is one row of a demand's append-only audit trail.
type HistoryEntry struct {
	ID          uuid.UUID `json:"id"`
	DemandID    uuid.UUID `json:"demand_id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	UserName    string    `json:"user_name"`
	OldValue    *string   `json:"old_value,omitempty"`
	NewValue    *string   `json:"new_value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment is a free-text note attached to a demand.
type Comment struct {
	ID         uuid.UUID `json:"id"`
	DemandID   uuid.UUID `json:"demand_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// DemandMedia is an ordered file reference attached to a demand.
type DemandMedia struct {
	MediaID  uuid.UUID `json:"media_id"`
	Position int       `json:"position"`
	URL      string    `json:"url,omitempty"`
}

// Demand represents one unit of schedulable social content moving through
// the agency's internal and client approval pipeline.
type Demand struct {
	ID             uuid.UUID      `json:"id"`
	ClientID       uuid.UUID      `json:"client_id"`
	Title          string         `json:"title"`
	Briefing       *string        `json:"briefing,omitempty"`
	Caption        *string        `json:"caption,omitempty"`
	Hashtags       *string        `json:"hashtags,omitempty"`
	ContentType    string         `json:"content_type"`
	Channels       []string       `json:"channels"`
	Status         DemandStatus   `json:"status"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ApprovalToken  string         `json:"approval_token"`

	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	ScheduledTime *string    `json:"scheduled_time,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`

	SkipInternalApproval bool `json:"skip_internal_approval"`
	SkipExternalApproval bool `json:"skip_external_approval"`
	AutoSchedule         bool `json:"auto_schedule"`
	IsDraft              bool `json:"is_draft"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Loaded relations (populated by the store on single-demand reads).
	InternalApprovers []Approver     `json:"internal_approvers"`
	ExternalApprovers []Approver     `json:"external_approvers"`
	History           []HistoryEntry `json:"history"`
	Comments          []Comment      `json:"comments"`
	Media             []DemandMedia  `json:"media"`
}

// AllApproved reports whether every approver in the list has approved.
// An empty list counts as fully approved — a demand with no reviewers of a
// kind does not wait on that stage.
func AllApproved(approvers []Approver) bool {
	for _, a := range approvers {
		if a.Status != ApproverApproved {
			return false
		}
	}
	return true
}

// NextStatusAfterExternalApproval returns the status a demand advances to
// once every external approver has signed off. Auto-scheduled demands go
// straight to the scheduled column; the rest wait for manual scheduling.
func (d *Demand) NextStatusAfterExternalApproval() DemandStatus {
	if d.AutoSchedule {
		return StatusAprovadoAgendado
	}
	return StatusAguardandoAgendamento
}
