// Package domain contains the invitation state machine and persistence model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// transitions is the exhaustive transition table. Pending is the only state
// with outgoing edges; accepted, declined and expired are terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusDeclined, StatusExpired},
	StatusAccepted: {},
	StatusDeclined: {},
	StatusExpired:  {},
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Invitation invites an email address into an organization. Rows are retained
// for audit and never deleted; the token is the sole credential needed to
// accept or decline.
type Invitation struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID   `gorm:"not null;index" json:"organization_id"`
	InvitedEmail string         `gorm:"type:text;not null;index" json:"invited_email"`
	Role         orgdomain.Role `gorm:"type:text;not null" json:"role"`
	Token        string         `gorm:"type:text;not null;uniqueIndex:ux_invitations_token" json:"-"`
	Status       Status         `gorm:"type:text;not null" json:"status"`
	InvitedBy    snowflake.ID   `gorm:"column:invited_by;not null;index" json:"invited_by"`
	InvitedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"invited_at"`
	ExpiresAt    time.Time      `gorm:"not null" json:"expires_at"`
	ResendCount  int            `gorm:"not null;default:0" json:"resend_count"`
	LastResendAt *time.Time     `gorm:"column:last_resend_at" json:"last_resend_at,omitempty"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitations" }

// IsExpired is the pure lazy-expiry predicate. Stored state is reconciled only
// from mutating paths, never on reads.
func (i Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// EffectiveStatus is the status an observer should act on at time now.
func (i Invitation) EffectiveStatus(now time.Time) Status {
	if i.Status == StatusPending && i.IsExpired(now) {
		return StatusExpired
	}
	return i.Status
}
