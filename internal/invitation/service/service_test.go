package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	authdomain "github.com/sitedock/sitedock/internal/auth/domain"
	authrepository "github.com/sitedock/sitedock/internal/auth/repository"
	"github.com/sitedock/sitedock/internal/clock"
	"github.com/sitedock/sitedock/internal/config"
	"github.com/sitedock/sitedock/internal/invitation/domain"
	"github.com/sitedock/sitedock/internal/invitation/repository"
	orgdomain "github.com/sitedock/sitedock/internal/organization/domain"
	orgrepository "github.com/sitedock/sitedock/internal/organization/repository"
	"github.com/sitedock/sitedock/internal/providers/email"
)

type testEnv struct {
	db    *gorm.DB
	node  *snowflake.Node
	clk   *clock.FakeClock
	svc   domain.Service
	repo  domain.Repository
	orgs  orgdomain.Repository
	users authdomain.Repository

	org     orgdomain.Organization
	inviter authdomain.User
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
		&domain.Invitation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	repo := repository.NewRepository(db)
	orgs := orgrepository.NewRepository(db)
	users := authrepository.NewRepository(db)

	workflow := config.NewStaticWorkflowConfig(config.WorkflowConfig{
		InvitationTTL:        7 * 24 * time.Hour,
		InvitationMaxResends: 2,
		TokenRatePerMinute:   30,
		TokenBurst:           10,
	})

	svc := NewService(ServiceParam{
		DB:       db,
		Log:      zaptest.NewLogger(t),
		GenID:    node,
		Clock:    clk,
		Repo:     repo,
		OrgRepo:  orgs,
		UserRepo: users,
		TokenGen: domain.NewTokenGenerator(),
		Email:    &email.NoOpProvider{},
		Workflow: workflow,
		Cfg:      config.Config{Email: config.EmailConfig{BaseURL: "http://localhost:8080"}},
	})

	env := &testEnv{
		db:    db,
		node:  node,
		clk:   clk,
		svc:   svc,
		repo:  repo,
		orgs:  orgs,
		users: users,
	}
	env.seed(t)
	return env
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()

	e.org = orgdomain.Organization{
		ID:       e.node.Generate(),
		Name:     "Northside Builders",
		Slug:     "northside-builders",
		IsActive: true,
	}
	require.NoError(t, e.db.Create(&e.org).Error)

	e.inviter = authdomain.User{
		ID:          e.node.Generate(),
		Email:       "owner@northside.test",
		DisplayName: "Site Owner",
	}
	require.NoError(t, e.db.Create(&e.inviter).Error)

	require.NoError(t, e.db.Create(&orgdomain.Membership{
		ID:       e.node.Generate(),
		OrgID:    e.org.ID,
		UserID:   e.inviter.ID,
		Role:     orgdomain.RoleOwner,
		Status:   orgdomain.MembershipActive,
		JoinedAt: e.clk.Now(),
	}).Error)
}

func (e *testEnv) newUser(t *testing.T, emailAddr string) authdomain.User {
	t.Helper()
	user := authdomain.User{
		ID:    e.node.Generate(),
		Email: strings.ToLower(emailAddr),
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) invite(t *testing.T, emailAddr string, role orgdomain.Role) *domain.CreateResponse {
	t.Helper()
	resp, err := e.svc.Create(context.Background(), domain.CreateRequest{
		OrgID:     e.org.ID,
		InviterID: e.inviter.ID,
		Email:     emailAddr,
		Role:      role,
	})
	require.NoError(t, err)
	return resp
}

func (e *testEnv) tokenFor(t *testing.T, emailAddr string) string {
	t.Helper()
	inv, err := e.repo.FindPendingByOrgEmail(context.Background(), e.org.ID, emailAddr)
	require.NoError(t, err)
	return inv.Token
}

func TestCreateInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("creates pending invitation", func(t *testing.T) {
		resp := env.invite(t, "crew@northside.test", orgdomain.RoleMember)
		assert.Equal(t, domain.StatusPending, resp.Status)
		assert.False(t, resp.Resent)
		assert.Equal(t, env.clk.Now().Add(7*24*time.Hour), resp.ExpiresAt)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		_, err := env.svc.Create(ctx, domain.CreateRequest{
			OrgID:     env.org.ID,
			InviterID: env.inviter.ID,
			Email:     "not-an-email",
			Role:      orgdomain.RoleMember,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := env.svc.Create(ctx, domain.CreateRequest{
			OrgID:     env.org.ID,
			InviterID: env.inviter.ID,
			Email:     "crew2@northside.test",
			Role:      orgdomain.Role("supervisor"),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRole)
	})

	t.Run("member role cannot invite", func(t *testing.T) {
		member := env.newUser(t, "helper@northside.test")
		require.NoError(t, env.db.Create(&orgdomain.Membership{
			ID:       env.node.Generate(),
			OrgID:    env.org.ID,
			UserID:   member.ID,
			Role:     orgdomain.RoleMember,
			Status:   orgdomain.MembershipActive,
			JoinedAt: env.clk.Now(),
		}).Error)

		_, err := env.svc.Create(ctx, domain.CreateRequest{
			OrgID:     env.org.ID,
			InviterID: member.ID,
			Email:     "crew3@northside.test",
			Role:      orgdomain.RoleMember,
		})
		assert.ErrorIs(t, err, domain.ErrNotAllowed)
	})

	t.Run("rejects active member", func(t *testing.T) {
		_, err := env.svc.Create(ctx, domain.CreateRequest{
			OrgID:     env.org.ID,
			InviterID: env.inviter.ID,
			Email:     "helper@northside.test",
			Role:      orgdomain.RoleMember,
		})
		assert.ErrorIs(t, err, domain.ErrAlreadyMember)
	})
}

func TestCreateInvitation_ResendInPlace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.invite(t, "foreman@northside.test", orgdomain.RoleAdmin)

	env.clk.Advance(24 * time.Hour)
	second := env.invite(t, "foreman@northside.test", orgdomain.RoleAdmin)

	assert.True(t, second.Resent)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.ResendCount)
	assert.Equal(t, env.clk.Now().Add(7*24*time.Hour), second.ExpiresAt)

	var count int64
	require.NoError(t, env.db.Model(&domain.Invitation{}).
		Where("org_id = ? AND invited_email = ?", env.org.ID, "foreman@northside.test").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Third create hits the resend cap of 2.
	third := env.invite(t, "foreman@northside.test", orgdomain.RoleAdmin)
	assert.Equal(t, 2, third.ResendCount)

	_, err := env.svc.Create(ctx, domain.CreateRequest{
		OrgID:     env.org.ID,
		InviterID: env.inviter.ID,
		Email:     "foreman@northside.test",
		Role:      orgdomain.RoleAdmin,
	})
	assert.ErrorIs(t, err, domain.ErrResendLimit)
}

func TestAccept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.invite(t, "newhire@northside.test", orgdomain.RoleMember)
	token := env.tokenFor(t, "newhire@northside.test")
	user := env.newUser(t, "newhire@northside.test")

	t.Run("email mismatch is forbidden", func(t *testing.T) {
		stranger := env.newUser(t, "stranger@elsewhere.test")
		_, err := env.svc.Accept(ctx, token, domain.Actor{UserID: stranger.ID, Email: stranger.Email})
		assert.ErrorIs(t, err, domain.ErrEmailMismatch)
	})

	t.Run("accept matches email case-insensitively", func(t *testing.T) {
		resp, err := env.svc.Accept(ctx, token, domain.Actor{UserID: user.ID, Email: "NewHire@Northside.test"})
		require.NoError(t, err)
		assert.Equal(t, env.org.ID.String(), resp.OrganizationID)
		assert.Equal(t, string(orgdomain.RoleMember), resp.Role)

		membership, err := env.orgs.GetMembership(ctx, env.org.ID, user.ID)
		require.NoError(t, err)
		assert.Equal(t, orgdomain.MembershipActive, membership.Status)
		assert.Equal(t, orgdomain.RoleMember, membership.Role)

		// First accepted org becomes the default.
		refreshed, err := env.users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, refreshed.DefaultOrganizationID)
		assert.Equal(t, env.org.ID, *refreshed.DefaultOrganizationID)
	})

	t.Run("second accept loses the status guard", func(t *testing.T) {
		_, err := env.svc.Accept(ctx, token, domain.Actor{UserID: user.ID, Email: user.Email})
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	})

	t.Run("default org is not overwritten by later accepts", func(t *testing.T) {
		other := orgdomain.Organization{ID: env.node.Generate(), Name: "Second Org", Slug: "second-org", IsActive: true}
		require.NoError(t, env.db.Create(&other).Error)
		require.NoError(t, env.db.Create(&orgdomain.Membership{
			ID:       env.node.Generate(),
			OrgID:    other.ID,
			UserID:   env.inviter.ID,
			Role:     orgdomain.RoleOwner,
			Status:   orgdomain.MembershipActive,
			JoinedAt: env.clk.Now(),
		}).Error)

		_, err := env.svc.Create(ctx, domain.CreateRequest{
			OrgID:     other.ID,
			InviterID: env.inviter.ID,
			Email:     user.Email,
			Role:      orgdomain.RoleMember,
		})
		require.NoError(t, err)

		inv, err := env.repo.FindPendingByOrgEmail(ctx, other.ID, user.Email)
		require.NoError(t, err)

		_, err = env.svc.Accept(ctx, inv.Token, domain.Actor{UserID: user.ID, Email: user.Email})
		require.NoError(t, err)

		refreshed, err := env.users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, refreshed.DefaultOrganizationID)
		assert.Equal(t, env.org.ID, *refreshed.DefaultOrganizationID)
	})
}

func TestAccept_CASAllowsExactlyOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.invite(t, "cas@northside.test", orgdomain.RoleMember)
	inv, err := env.repo.FindPendingByOrgEmail(ctx, env.org.ID, "cas@northside.test")
	require.NoError(t, err)

	now := env.clk.Now()
	won, err := env.repo.TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusAccepted, now)
	require.NoError(t, err)
	assert.True(t, won)

	// The losing writer observes the guard, not an error.
	won, err = env.repo.TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusAccepted, now)
	require.NoError(t, err)
	assert.False(t, won)

	won, err = env.repo.TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusDeclined, now)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestAccept_ConcurrentAcceptsHaveOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.invite(t, "race@northside.test", orgdomain.RoleMember)
	token := env.tokenFor(t, "race@northside.test")
	user := env.newUser(t, "race@northside.test")
	actor := domain.Actor{UserID: user.ID, Email: user.Email}

	const workers = 8
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Accept(ctx, token, actor)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	}
	assert.Equal(t, 1, winners)

	var count int64
	require.NoError(t, env.db.Model(&orgdomain.Membership{}).
		Where("org_id = ? AND user_id = ?", env.org.ID, user.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAccept_ExpiryPersistsOnMutatingPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.invite(t, "late@northside.test", orgdomain.RoleMember)
	token := env.tokenFor(t, "late@northside.test")
	user := env.newUser(t, "late@northside.test")

	env.clk.Advance(8 * 24 * time.Hour)

	_, err := env.svc.Accept(ctx, token, domain.Actor{UserID: user.ID, Email: user.Email})
	assert.ErrorIs(t, err, domain.ErrExpired)

	// The accept attempt converged the stored status.
	inv, err := env.repo.FindByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, inv.Status)

	// Expired is terminal, so a later accept reports already-processed.
	_, err = env.svc.Accept(ctx, token, domain.Actor{UserID: user.ID, Email: user.Email})
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestResolve_IsPureRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.invite(t, "reader@northside.test", orgdomain.RoleGuest)
	token := env.tokenFor(t, "reader@northside.test")

	details, err := env.svc.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, details.Status)
	assert.Equal(t, "Northside Builders", details.OrganizationName)
	assert.Equal(t, env.inviter.Email, details.InviterEmail)
	assert.False(t, details.EmailHasAccount)

	env.clk.Advance(8 * 24 * time.Hour)

	// Past the TTL the view reports expired while the row stays pending.
	details, err = env.svc.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, details.Status)

	inv, err := env.repo.FindByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, inv.Status)

	_, err = env.svc.Resolve(ctx, "no-such-token")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.invite(t, "decliner@northside.test", orgdomain.RoleMember)
	token := env.tokenFor(t, "decliner@northside.test")

	// Declining an expired link is allowed.
	env.clk.Advance(8 * 24 * time.Hour)
	require.NoError(t, env.svc.Decline(ctx, token))

	inv, err := env.repo.FindByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, inv.Status)

	err = env.svc.Decline(ctx, token)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
}

func TestListPendingForEmail_SkipsExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.invite(t, "busy@northside.test", orgdomain.RoleMember)
	env.clk.Advance(8 * 24 * time.Hour)

	// Second org invites the same email inside the fresh TTL window.
	other := orgdomain.Organization{ID: env.node.Generate(), Name: "Other Org", Slug: "other-org", IsActive: true}
	require.NoError(t, env.db.Create(&other).Error)
	require.NoError(t, env.db.Create(&orgdomain.Membership{
		ID:       env.node.Generate(),
		OrgID:    other.ID,
		UserID:   env.inviter.ID,
		Role:     orgdomain.RoleOwner,
		Status:   orgdomain.MembershipActive,
		JoinedAt: env.clk.Now(),
	}).Error)
	_, err := env.svc.Create(ctx, domain.CreateRequest{
		OrgID:     other.ID,
		InviterID: env.inviter.ID,
		Email:     "busy@northside.test",
		Role:      orgdomain.RoleMember,
	})
	require.NoError(t, err)

	pending, err := env.svc.ListPendingForEmail(ctx, "busy@northside.test")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, other.ID.String(), pending[0].OrganizationID)
}

func TestAccept_ReactivatesExistingMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.newUser(t, "returning@northside.test")
	existing := orgdomain.Membership{
		ID:       env.node.Generate(),
		OrgID:    env.org.ID,
		UserID:   user.ID,
		Role:     orgdomain.RoleMember,
		Status:   orgdomain.MembershipDeactivated,
		JoinedAt: env.clk.Now(),
	}
	require.NoError(t, env.db.Create(&existing).Error)

	env.invite(t, "returning@northside.test", orgdomain.RoleAdmin)
	token := env.tokenFor(t, "returning@northside.test")

	resp, err := env.svc.Accept(ctx, token, domain.Actor{UserID: user.ID, Email: user.Email})
	require.NoError(t, err)
	assert.Equal(t, existing.ID.String(), resp.MembershipID)

	// Same row, reactivated with the invited role.
	membership, err := env.orgs.GetMembership(ctx, env.org.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, membership.ID)
	assert.Equal(t, orgdomain.MembershipActive, membership.Status)
	assert.Equal(t, orgdomain.RoleAdmin, membership.Role)

	var count int64
	require.NoError(t, env.db.Model(&orgdomain.Membership{}).
		Where("org_id = ? AND user_id = ?", env.org.ID, user.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
