package authorization

import (
	"context"
	"errors"
)

// Service answers whether an actor may perform an action on an object inside
// one organization. Actors are "system" or "user:<id>"; the policy domain is
// "org:<id>" so grants never leak across tenants.
type Service interface {
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
}

var (
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
)
