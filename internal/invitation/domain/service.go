package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
)

type Service interface {
	// Create creates a new invitation, or refreshes the pending one for the
	// same (organization, email) pair instead of duplicating it.
	Create(ctx context.Context, req CreateRequest) (*CreateResponse, error)

	// Resolve looks an invitation up by token without mutating it. Malformed
	// and unknown tokens are indistinguishable (both ErrNotFound).
	Resolve(ctx context.Context, token string) (*Details, error)

	// Accept transitions the invitation to accepted and creates or reactivates
	// the membership. Exactly one of N concurrent accepts succeeds.
	Accept(ctx context.Context, token string, actor Actor) (*AcceptResponse, error)

	// Decline transitions the invitation to declined. Declining an expired
	// link is allowed.
	Decline(ctx context.Context, token string) error

	// ListPendingForEmail returns pending, unexpired invitations for an email
	// so a freshly authenticated user can be prompted. Pure read.
	ListPendingForEmail(ctx context.Context, email string) ([]Details, error)
}

// Actor is the verified identity performing an accept.
type Actor struct {
	UserID snowflake.ID
	Email  string
}

type CreateRequest struct {
	OrgID     snowflake.ID
	InviterID snowflake.ID
	Email     string
	Role      orgdomain.Role
}

type CreateResponse struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"organization_id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Status      Status    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
	ResendCount int       `json:"resend_count"`
	Resent      bool      `json:"resent"`
}

type Details struct {
	Token            string         `json:"token"`
	OrganizationID   string         `json:"organization_id"`
	OrganizationName string         `json:"organization_name"`
	Role             orgdomain.Role `json:"role"`
	InvitedEmail     string         `json:"invited_email"`
	InviterEmail     string         `json:"inviter_email"`
	InviterName      string         `json:"inviter_name"`
	Status           Status         `json:"status"`
	ExpiresAt        time.Time      `json:"expires_at"`
	EmailHasAccount  bool           `json:"email_has_account"`
}

type AcceptResponse struct {
	OrganizationID string `json:"organization_id"`
	MembershipID   string `json:"membership_id"`
	Role           string `json:"role"`
}

var (
	ErrNotFound         = errors.New("invitation_not_found")
	ErrExpired          = errors.New("invitation_expired")
	ErrAlreadyProcessed = errors.New("invitation_already_processed")
	ErrEmailMismatch    = errors.New("invitation_email_mismatch")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrAlreadyMember    = errors.New("already_member")
	ErrNotAllowed       = errors.New("invitation_not_allowed")
	ErrResendLimit      = errors.New("invitation_resend_limit")
)
