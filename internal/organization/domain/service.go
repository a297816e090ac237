package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, id string) (*OrganizationResponse, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListResponseItem, error)

	// ActiveMembership returns the membership for (org, user) only when its
	// status is active.
	ActiveMembership(ctx context.Context, orgID, userID snowflake.ID) (*Membership, error)
	ChangeMemberRole(ctx context.Context, actorID snowflake.ID, orgID string, userID string, role Role) error
	RemoveMember(ctx context.Context, actorID snowflake.ID, orgID string, userID string) error
	SuspendMember(ctx context.Context, actorID snowflake.ID, orgID string, userID string) error
	ReactivateMember(ctx context.Context, actorID snowflake.ID, orgID string, userID string) error
}

type CreateOrganizationRequest struct {
	Name        string
	Description string
}

type OrganizationResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

type OrganizationListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrNotMember            = errors.New("not_a_member")
	ErrMembershipNotFound   = errors.New("membership_not_found")
	ErrLastOwner            = errors.New("last_owner")
	ErrForbidden            = errors.New("forbidden")
)
