// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ContractStatus is the lifecycle state of a client contract.
type ContractStatus string

const (
	ContractDraft     ContractStatus = "draft"
	ContractActive    ContractStatus = "active"
	ContractExpired   ContractStatus = "expired"
	ContractCancelled ContractStatus = "cancelled"
)

// BillingCycle is how often a contract bills.
type BillingCycle string

const (
	BillingMonthly   BillingCycle = "monthly"
	BillingQuarterly BillingCycle = "quarterly"
	BillingYearly    BillingCycle = "yearly"
	BillingOneOff    BillingCycle = "one_off"
)

// Contract represents a service agreement with a client.
type Contract struct {
	ID           uuid.UUID      `json:"id"`
	ClientID     uuid.UUID      `json:"client_id"`
	Title        string         `json:"title"`
	Value        float64        `json:"value"`
	BillingCycle BillingCycle   `json:"billing_cycle"`
	Status       ContractStatus `json:"status"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      *time.Time     `json:"end_date,omitempty"`
	SignedAt     *time.Time     `json:"signed_at,omitempty"`
	Notes        *string        `json:"notes,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsActive returns true if the contract is currently in force.
func (c *Contract) IsActive() bool {
	return c.Status == ContractActive
}
