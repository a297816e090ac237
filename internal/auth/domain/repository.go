package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetDefaultOrganizationIfUnset(ctx context.Context, userID snowflake.ID, orgID snowflake.ID) error
	SetCurrentOrganization(ctx context.Context, userID snowflake.ID, orgID snowflake.ID) error
	SetCurrentProject(ctx context.Context, userID snowflake.ID, projectID snowflake.ID) error
}

// Verifier turns a bearer token issued by the external auth collaborator into
// a verified Identity. The core never derives identity any other way.
type Verifier interface {
	Verify(ctx context.Context, bearerToken string) (Identity, error)
}
