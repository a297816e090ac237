package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id snowflake.ID) (*Project, error)
	AddMembership(ctx context.Context, m Membership) error
	GetActiveMembership(ctx context.Context, projectID, userID snowflake.ID) (*Membership, error)
	ListProjectsByUser(ctx context.Context, orgID, userID snowflake.ID) ([]Project, error)
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateProjectRequest) (*ProjectResponse, error)
	ListByUser(ctx context.Context, orgID, userID snowflake.ID) ([]ProjectResponse, error)
	// ActiveMembership returns the project membership for (project, user) only
	// when the row is active.
	ActiveMembership(ctx context.Context, projectID, userID snowflake.ID) (*Membership, error)
}

type CreateProjectRequest struct {
	OrgID       snowflake.ID
	Name        string
	Description string
}

type ProjectResponse struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"organization_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidProject     = errors.New("invalid_project")
	ErrProjectNotFound    = errors.New("project_not_found")
	ErrMembershipNotFound = errors.New("project_membership_not_found")
	ErrForbidden          = errors.New("forbidden")
)
