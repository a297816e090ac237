// Package domain defines active-context resolution for authenticated requests.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// ActiveContext is the resolved (organization, project) pair for one request.
type ActiveContext struct {
	OrganizationID snowflake.ID
	ProjectID      snowflake.ID
}

// Resolver is a pure function from the user's stored pointers to a context
// value. It never defaults to an arbitrary organization; an unresolvable
// context is an error surfaced to the caller.
type Resolver interface {
	ResolveActiveContext(ctx context.Context, userID snowflake.ID) (ActiveContext, error)

	// ResolveOrganization resolves only the organization half; used by
	// endpoints that do not require a project scope.
	ResolveOrganization(ctx context.Context, userID snowflake.ID) (snowflake.ID, error)
}

var (
	ErrNoActiveOrganization = errors.New("no_active_organization")
	ErrNoActiveProject      = errors.New("no_active_project")
)
