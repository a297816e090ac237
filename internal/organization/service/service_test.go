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
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitedock/sitedock/internal/clock"
	"github.com/sitedock/sitedock/internal/organization/domain"
	"github.com/sitedock/sitedock/internal/organization/repository"
)

type testEnv struct {
	db   *gorm.DB
	node *snowflake.Node
	clk  *clock.FakeClock
	svc  domain.Service
	repo domain.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Organization{}, &domain.Membership{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.NewRepository(db)

	return &testEnv{
		db:   db,
		node: node,
		clk:  clk,
		repo: repo,
		svc:  NewService(db, repo, node, clk, zap.NewNop()),
	}
}

func (e *testEnv) addMembership(t *testing.T, orgID, userID snowflake.ID, role domain.Role, status domain.MembershipStatus) {
	t.Helper()
	require.NoError(t, e.db.Create(&domain.Membership{
		ID:       e.node.Generate(),
		OrgID:    orgID,
		UserID:   userID,
		Role:     role,
		Status:   status,
		JoinedAt: e.clk.Now(),
	}).Error)
}

func TestCreateOrganization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.node.Generate()

	resp, err := env.svc.Create(ctx, owner, domain.CreateOrganizationRequest{
		Name:        "  Harbor Point Construction ",
		Description: "Waterfront redevelopment",
	})
	require.NoError(t, err)
	assert.Equal(t, "Harbor Point Construction", resp.Name)
	assert.Equal(t, "harbor-point-construction", resp.Slug)
	assert.True(t, resp.IsActive)

	// The creator becomes an active owner in the same transaction.
	orgID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	membership, err := env.svc.ActiveMembership(ctx, orgID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, membership.Role)

	_, err = env.svc.Create(ctx, owner, domain.CreateOrganizationRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = env.svc.Create(ctx, 0, domain.CreateOrganizationRequest{Name: "Ghost Org"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestGetByID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, env.node.Generate(), domain.CreateOrganizationRequest{Name: "Ridge Works"})
	require.NoError(t, err)

	fetched, err := env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ridge Works", fetched.Name)

	_, err = env.svc.GetByID(ctx, env.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)

	_, err = env.svc.GetByID(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestActiveMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orgID := env.node.Generate()
	require.NoError(t, env.db.Create(&domain.Organization{
		ID: orgID, Name: "Org", Slug: "org", IsActive: true,
	}).Error)

	active := env.node.Generate()
	suspended := env.node.Generate()
	env.addMembership(t, orgID, active, domain.RoleMember, domain.MembershipActive)
	env.addMembership(t, orgID, suspended, domain.RoleMember, domain.MembershipSuspended)

	_, err := env.svc.ActiveMembership(ctx, orgID, active)
	assert.NoError(t, err)

	_, err = env.svc.ActiveMembership(ctx, orgID, suspended)
	assert.ErrorIs(t, err, domain.ErrNotMember)

	_, err = env.svc.ActiveMembership(ctx, orgID, env.node.Generate())
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
}

func TestMembershipMutations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orgID := env.node.Generate()
	require.NoError(t, env.db.Create(&domain.Organization{
		ID: orgID, Name: "Crew", Slug: "crew", IsActive: true,
	}).Error)

	owner := env.node.Generate()
	member := env.node.Generate()
	env.addMembership(t, orgID, owner, domain.RoleOwner, domain.MembershipActive)
	env.addMembership(t, orgID, member, domain.RoleMember, domain.MembershipActive)

	t.Run("owner promotes a member", func(t *testing.T) {
		err := env.svc.ChangeMemberRole(ctx, owner, orgID.String(), member.String(), domain.RoleAdmin)
		require.NoError(t, err)

		m, err := env.repo.GetMembership(ctx, orgID, member)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, m.Role)
		assert.Equal(t, domain.MembershipActive, m.Status)
	})

	t.Run("member cannot mutate memberships", func(t *testing.T) {
		other := env.node.Generate()
		env.addMembership(t, orgID, other, domain.RoleMember, domain.MembershipActive)

		err := env.svc.ChangeMemberRole(ctx, other, orgID.String(), member.String(), domain.RoleGuest)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		err = env.svc.RemoveMember(ctx, env.node.Generate(), orgID.String(), member.String())
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("suspend flips status and keeps role", func(t *testing.T) {
		err := env.svc.SuspendMember(ctx, owner, orgID.String(), member.String())
		require.NoError(t, err)

		m, err := env.repo.GetMembership(ctx, orgID, member)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, m.Role)
		assert.Equal(t, domain.MembershipSuspended, m.Status)
	})

	t.Run("reactivate restores a suspended membership", func(t *testing.T) {
		err := env.svc.ReactivateMember(ctx, owner, orgID.String(), member.String())
		require.NoError(t, err)

		m, err := env.repo.GetMembership(ctx, orgID, member)
		require.NoError(t, err)
		assert.Equal(t, domain.MembershipActive, m.Status)
	})

	t.Run("remove deactivates instead of deleting", func(t *testing.T) {
		err := env.svc.RemoveMember(ctx, owner, orgID.String(), member.String())
		require.NoError(t, err)

		m, err := env.repo.GetMembership(ctx, orgID, member)
		require.NoError(t, err)
		assert.Equal(t, domain.MembershipDeactivated, m.Status)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		err := env.svc.ChangeMemberRole(ctx, owner, orgID.String(), member.String(), domain.Role("boss"))
		assert.ErrorIs(t, err, domain.ErrInvalidRole)
	})
}

func TestLastOwnerProtection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orgID := env.node.Generate()
	require.NoError(t, env.db.Create(&domain.Organization{
		ID: orgID, Name: "Solo", Slug: "solo", IsActive: true,
	}).Error)

	owner := env.node.Generate()
	env.addMembership(t, orgID, owner, domain.RoleOwner, domain.MembershipActive)

	t.Run("sole owner cannot demote themselves", func(t *testing.T) {
		err := env.svc.ChangeMemberRole(ctx, owner, orgID.String(), owner.String(), domain.RoleAdmin)
		assert.ErrorIs(t, err, domain.ErrLastOwner)
	})

	t.Run("sole owner cannot be suspended or removed", func(t *testing.T) {
		assert.ErrorIs(t, env.svc.SuspendMember(ctx, owner, orgID.String(), owner.String()), domain.ErrLastOwner)
		assert.ErrorIs(t, env.svc.RemoveMember(ctx, owner, orgID.String(), owner.String()), domain.ErrLastOwner)
	})

	t.Run("demotion is allowed once a second owner exists", func(t *testing.T) {
		second := env.node.Generate()
		env.addMembership(t, orgID, second, domain.RoleOwner, domain.MembershipActive)

		err := env.svc.ChangeMemberRole(ctx, owner, orgID.String(), owner.String(), domain.RoleAdmin)
		require.NoError(t, err)

		// Now the second owner is the last one standing.
		err = env.svc.RemoveMember(ctx, second, orgID.String(), second.String())
		assert.ErrorIs(t, err, domain.ErrLastOwner)
	})

	t.Run("suspended owners do not count", func(t *testing.T) {
		org2 := env.node.Generate()
		require.NoError(t, env.db.Create(&domain.Organization{
			ID: org2, Name: "Duo", Slug: "duo", IsActive: true,
		}).Error)
		a := env.node.Generate()
		b := env.node.Generate()
		env.addMembership(t, org2, a, domain.RoleOwner, domain.MembershipActive)
		env.addMembership(t, org2, b, domain.RoleOwner, domain.MembershipSuspended)

		err := env.svc.RemoveMember(ctx, a, org2.String(), a.String())
		assert.ErrorIs(t, err, domain.ErrLastOwner)
	})
}
