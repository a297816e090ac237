// Package domain contains the approval aggregate and its decision model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the aggregate can no longer change.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ValidDecision reports whether d is a recordable decision. Pending is the
// initial state, not something an approver can submit.
func ValidDecision(d Decision) bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Approval is the root aggregate for a set of approver rows. The entity it
// references is opaque to this service; validating that the entity exists is
// the caller's responsibility, and approvals may outlive their entity.
type Approval struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"organization_id"`
	EntityType  string       `gorm:"type:text;not null" json:"entity_type"`
	EntityID    snowflake.ID `gorm:"not null;index:ix_approvals_entity" json:"entity_id"`
	RequesterID snowflake.ID `gorm:"not null;index" json:"requester_id"`
	Status      Status       `gorm:"type:text;not null" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Approval) TableName() string { return "approvals" }

// Approver is one approver's decision on an approval. Approvers cannot outlive
// their approval; each approver appears at most once per approval.
type Approver struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ApprovalID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_approval_approvers,priority:1" json:"approval_id"`
	ApproverID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_approval_approvers,priority:2" json:"approver_id"`
	Decision   Decision     `gorm:"type:text;not null" json:"decision"`
	DecidedAt  *time.Time   `gorm:"column:decided_at" json:"decided_at,omitempty"`
}

// TableName sets the database table name.
func (Approver) TableName() string { return "approval_approvers" }

// Aggregate computes the approval status from its approver decisions: a single
// rejection is terminal regardless of pending approvers; approval requires
// unanimity.
func Aggregate(decisions []Decision) Status {
	if len(decisions) == 0 {
		return StatusPending
	}

	allApproved := true
	for _, d := range decisions {
		switch d {
		case DecisionRejected:
			return StatusRejected
		case DecisionApproved:
		default:
			allApproved = false
		}
	}

	if allApproved {
		return StatusApproved
	}
	return StatusPending
}
