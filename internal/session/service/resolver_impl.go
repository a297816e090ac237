package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/sitedock/sitedock/internal/auth/domain"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
	projectdomain "github.com/sitedock/sitedock/internal/project/domain"
	"github.com/sitedock/sitedock/internal/session/domain"
)

type resolver struct {
	users    authdomain.Repository
	orgs     orgdomain.Repository
	projects projectdomain.Repository
}

func NewResolver(users authdomain.Repository, orgs orgdomain.Repository, projects projectdomain.Repository) domain.Resolver {
	return &resolver{
		users:    users,
		orgs:     orgs,
		projects: projects,
	}
}

func (r *resolver) ResolveActiveContext(ctx context.Context, userID snowflake.ID) (domain.ActiveContext, error) {
	user, orgID, err := r.resolveOrganization(ctx, userID)
	if err != nil {
		return domain.ActiveContext{}, err
	}

	projectID, err := r.resolveProject(ctx, user, orgID)
	if err != nil {
		return domain.ActiveContext{}, err
	}

	return domain.ActiveContext{
		OrganizationID: orgID,
		ProjectID:      projectID,
	}, nil
}

func (r *resolver) ResolveOrganization(ctx context.Context, userID snowflake.ID) (snowflake.ID, error) {
	_, orgID, err := r.resolveOrganization(ctx, userID)
	return orgID, err
}

func (r *resolver) resolveOrganization(ctx context.Context, userID snowflake.ID) (*authdomain.User, snowflake.ID, error) {
	if userID == 0 {
		return nil, 0, domain.ErrNoActiveOrganization
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, 0, domain.ErrNoActiveOrganization
	}

	// Current pointer first, stored default as fallback. Whichever resolves
	// must map to an active membership.
	for _, candidate := range []*snowflake.ID{user.CurrentOrganizationID, user.DefaultOrganizationID} {
		if candidate == nil || *candidate == 0 {
			continue
		}
		membership, err := r.orgs.GetMembership(ctx, *candidate, userID)
		if err != nil {
			continue
		}
		if membership.Status == orgdomain.MembershipActive {
			return user, *candidate, nil
		}
	}

	return nil, 0, domain.ErrNoActiveOrganization
}

func (r *resolver) resolveProject(ctx context.Context, user *authdomain.User, orgID snowflake.ID) (snowflake.ID, error) {
	for _, candidate := range []*snowflake.ID{user.CurrentProjectID, user.DefaultProjectID} {
		if candidate == nil || *candidate == 0 {
			continue
		}
		project, err := r.projects.GetProject(ctx, *candidate)
		if err != nil || project.OrgID != orgID {
			continue
		}
		if _, err := r.projects.GetActiveMembership(ctx, *candidate, user.ID); err == nil {
			return *candidate, nil
		}
	}

	return 0, domain.ErrNoActiveProject
}
