package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	authdomain "github.com/sitedock/sitedock/internal/auth/domain"
	authrepository "github.com/sitedock/sitedock/internal/auth/repository"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
	orgrepository "github.com/sitedock/sitedock/internal/organization/repository"
	projectdomain "github.com/sitedock/sitedock/internal/project/domain"
	projectrepository "github.com/sitedock/sitedock/internal/project/repository"
	"github.com/sitedock/sitedock/internal/session/domain"
)

type testEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	resolver domain.Resolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&orgdomain.Organization{},
		&orgdomain.Membership{},
		&projectdomain.Project{},
		&projectdomain.Membership{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &testEnv{
		db:   db,
		node: node,
		resolver: NewResolver(
			authrepository.NewRepository(db),
			orgrepository.NewRepository(db),
			projectrepository.NewRepository(db),
		),
	}
}

func (e *testEnv) newOrg(t *testing.T, slug string) snowflake.ID {
	t.Helper()
	org := orgdomain.Organization{ID: e.node.Generate(), Name: slug, Slug: slug, IsActive: true}
	require.NoError(t, e.db.Create(&org).Error)
	return org.ID
}

func (e *testEnv) newUser(t *testing.T, email string) *authdomain.User {
	t.Helper()
	user := authdomain.User{ID: e.node.Generate(), Email: email}
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

func (e *testEnv) addOrgMembership(t *testing.T, orgID, userID snowflake.ID, status orgdomain.MembershipStatus) {
	t.Helper()
	require.NoError(t, e.db.Create(&orgdomain.Membership{
		ID:       e.node.Generate(),
		OrgID:    orgID,
		UserID:   userID,
		Role:     orgdomain.RoleMember,
		Status:   status,
		JoinedAt: time.Now(),
	}).Error)
}

func (e *testEnv) newProject(t *testing.T, orgID snowflake.ID, name string) snowflake.ID {
	t.Helper()
	p := projectdomain.Project{ID: e.node.Generate(), OrgID: orgID, Name: name, IsActive: true}
	require.NoError(t, e.db.Create(&p).Error)
	return p.ID
}

func (e *testEnv) addProjectMembership(t *testing.T, projectID, userID snowflake.ID, active bool) {
	t.Helper()
	require.NoError(t, e.db.Create(&projectdomain.Membership{
		ID:        e.node.Generate(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      "member",
		IsActive:  active,
	}).Error)
}

func (e *testEnv) setPointers(t *testing.T, user *authdomain.User) {
	t.Helper()
	require.NoError(t, e.db.Model(&authdomain.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"current_organization_id": user.CurrentOrganizationID,
			"default_organization_id": user.DefaultOrganizationID,
			"current_project_id":      user.CurrentProjectID,
			"default_project_id":      user.DefaultProjectID,
		}).Error)
}

func TestResolveOrganization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("current pointer wins over default", func(t *testing.T) {
		currentOrg := env.newOrg(t, "current-org")
		defaultOrg := env.newOrg(t, "default-org")
		user := env.newUser(t, "both@site.test")
		env.addOrgMembership(t, currentOrg, user.ID, orgdomain.MembershipActive)
		env.addOrgMembership(t, defaultOrg, user.ID, orgdomain.MembershipActive)
		user.CurrentOrganizationID = &currentOrg
		user.DefaultOrganizationID = &defaultOrg
		env.setPointers(t, user)

		orgID, err := env.resolver.ResolveOrganization(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, currentOrg, orgID)
	})

	t.Run("falls back to default when current membership is suspended", func(t *testing.T) {
		currentOrg := env.newOrg(t, "suspended-org")
		defaultOrg := env.newOrg(t, "fallback-org")
		user := env.newUser(t, "fallback@site.test")
		env.addOrgMembership(t, currentOrg, user.ID, orgdomain.MembershipSuspended)
		env.addOrgMembership(t, defaultOrg, user.ID, orgdomain.MembershipActive)
		user.CurrentOrganizationID = &currentOrg
		user.DefaultOrganizationID = &defaultOrg
		env.setPointers(t, user)

		orgID, err := env.resolver.ResolveOrganization(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, defaultOrg, orgID)

		// The stale current pointer is left as-is.
		var stored authdomain.User
		require.NoError(t, env.db.First(&stored, "id = ?", user.ID).Error)
		require.NotNil(t, stored.CurrentOrganizationID)
		assert.Equal(t, currentOrg, *stored.CurrentOrganizationID)
	})

	t.Run("no memberships at all", func(t *testing.T) {
		orgID := env.newOrg(t, "lonely-org")
		user := env.newUser(t, "lonely@site.test")
		user.CurrentOrganizationID = &orgID
		env.setPointers(t, user)

		_, err := env.resolver.ResolveOrganization(ctx, user.ID)
		assert.ErrorIs(t, err, domain.ErrNoActiveOrganization)
	})

	t.Run("no pointers set", func(t *testing.T) {
		orgID := env.newOrg(t, "unpointed-org")
		user := env.newUser(t, "unpointed@site.test")
		env.addOrgMembership(t, orgID, user.ID, orgdomain.MembershipActive)

		_, err := env.resolver.ResolveOrganization(ctx, user.ID)
		assert.ErrorIs(t, err, domain.ErrNoActiveOrganization)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.resolver.ResolveOrganization(ctx, env.node.Generate())
		assert.ErrorIs(t, err, domain.ErrNoActiveOrganization)
	})
}

func TestResolveActiveContext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("resolves org and project", func(t *testing.T) {
		orgID := env.newOrg(t, "main-org")
		user := env.newUser(t, "pm@site.test")
		env.addOrgMembership(t, orgID, user.ID, orgdomain.MembershipActive)
		projectID := env.newProject(t, orgID, "Tower A")
		env.addProjectMembership(t, projectID, user.ID, true)
		user.DefaultOrganizationID = &orgID
		user.CurrentProjectID = &projectID
		env.setPointers(t, user)

		active, err := env.resolver.ResolveActiveContext(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, orgID, active.OrganizationID)
		assert.Equal(t, projectID, active.ProjectID)
	})

	t.Run("project in another org is skipped", func(t *testing.T) {
		orgID := env.newOrg(t, "home-org")
		otherOrg := env.newOrg(t, "foreign-org")
		user := env.newUser(t, "cross@site.test")
		env.addOrgMembership(t, orgID, user.ID, orgdomain.MembershipActive)

		foreignProject := env.newProject(t, otherOrg, "Foreign Site")
		env.addProjectMembership(t, foreignProject, user.ID, true)
		homeProject := env.newProject(t, orgID, "Home Site")
		env.addProjectMembership(t, homeProject, user.ID, true)

		user.DefaultOrganizationID = &orgID
		user.CurrentProjectID = &foreignProject
		user.DefaultProjectID = &homeProject
		env.setPointers(t, user)

		active, err := env.resolver.ResolveActiveContext(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, homeProject, active.ProjectID)
	})

	t.Run("inactive project membership yields no project", func(t *testing.T) {
		orgID := env.newOrg(t, "quiet-org")
		user := env.newUser(t, "benched@site.test")
		env.addOrgMembership(t, orgID, user.ID, orgdomain.MembershipActive)
		projectID := env.newProject(t, orgID, "Paused Site")
		env.addProjectMembership(t, projectID, user.ID, false)
		user.DefaultOrganizationID = &orgID
		user.CurrentProjectID = &projectID
		env.setPointers(t, user)

		_, err := env.resolver.ResolveActiveContext(ctx, user.ID)
		assert.ErrorIs(t, err, domain.ErrNoActiveProject)
	})

	t.Run("organization failure short-circuits project resolution", func(t *testing.T) {
		user := env.newUser(t, "orgless@site.test")
		_, err := env.resolver.ResolveActiveContext(ctx, user.ID)
		assert.ErrorIs(t, err, domain.ErrNoActiveOrganization)
	})
}
