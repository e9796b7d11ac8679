package services

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobpoints/models"
)

func TestProfileStore_Ensure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	t.Run("Should create a student profile by default", func(t *testing.T) {
		uid := f.account(t, "alice")
		p, created, err := f.profiles.Ensure(ctx, uid, "")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, models.RoleStudent, p.Role)
		assert.Equal(t, 0, p.Points)
		require.NotNil(t, p.ReferralCode)
		assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), *p.ReferralCode)
	})

	t.Run("Should be idempotent and ignore the requested role later", func(t *testing.T) {
		uid := f.account(t, "bob")
		first, created, err := f.profiles.Ensure(ctx, uid, models.RoleRecruiter)
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := f.profiles.Ensure(ctx, uid, models.RoleStudent)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, *first.ReferralCode, *second.ReferralCode)
		assert.Equal(t, models.RoleRecruiter, second.Role)
	})

	t.Run("Should refuse admin self-assignment", func(t *testing.T) {
		uid := f.account(t, "mallory")
		_, _, err := f.profiles.Ensure(ctx, uid, models.RoleAdmin)
		assert.Equal(t, CodeNotAuthorized, CodeOf(err))
		_, err = f.profiles.Get(ctx, uid)
		assert.Equal(t, CodeNotFound, CodeOf(err))
	})

	t.Run("Should reject unknown roles", func(t *testing.T) {
		uid := f.account(t, "carol")
		_, _, err := f.profiles.Ensure(ctx, uid, models.Role("owner"))
		assert.Equal(t, CodeInvalidArgument, CodeOf(err))
	})

	t.Run("Should require an identity", func(t *testing.T) {
		_, _, err := f.profiles.Ensure(ctx, 0, "")
		assert.Equal(t, CodeUnauthenticated, CodeOf(err))
	})
}

func TestProfileStore_EnsureRetriesReferralCodeCollision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	codes := []string{"SAMECODE", "SAMECODE", "FRESH001"}
	f.profiles.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	a, _, err := f.profiles.Ensure(ctx, f.account(t, "alice"), "")
	require.NoError(t, err)
	b, _, err := f.profiles.Ensure(ctx, f.account(t, "bob"), "")
	require.NoError(t, err)

	assert.Equal(t, "SAMECODE", *a.ReferralCode)
	assert.Equal(t, "FRESH001", *b.ReferralCode)
	assert.Empty(t, codes)
}

func TestProfileStore_EnsureGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.profiles.newCode = func() (string, error) { return "SAMECODE", nil }

	_, _, err := f.profiles.Ensure(ctx, f.account(t, "alice"), "")
	require.NoError(t, err)
	_, _, err = f.profiles.Ensure(ctx, f.account(t, "bob"), "")
	require.Error(t, err)
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestProfileStore_MeAndReferralCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	me, err := f.profiles.Me(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, me)

	uid := f.account(t, "dana")
	me, err = f.profiles.Me(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, me)
	assert.Equal(t, "dana", me.User.Username)
	assert.Nil(t, me.Profile)

	code, err := f.profiles.ReferralCode(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, code)

	p, _, err := f.profiles.Ensure(ctx, uid, "")
	require.NoError(t, err)

	me, err = f.profiles.Me(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, me.Profile)
	assert.Equal(t, p.ID, me.Profile.ID)

	code, err = f.profiles.ReferralCode(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, *p.ReferralCode, code)

	owner, err := f.profiles.FindByReferralCode(ctx, " "+code+" ")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, uid, owner.UserID)

	owner, err = f.profiles.FindByReferralCode(ctx, "NOPE0000")
	require.NoError(t, err)
	assert.Nil(t, owner)
}

func TestProfileStore_AdminUpdateUserRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	admin := f.user(t, "admin", models.RoleAdmin)
	student := f.user(t, "student", models.RoleStudent)
	other := f.user(t, "other", models.RoleStudent)

	t.Run("Should reject non-admin callers", func(t *testing.T) {
		_, err := f.profiles.AdminUpdateUserRole(ctx, student, other, models.RoleRecruiter)
		assert.Equal(t, CodeNotAuthorized, CodeOf(err))
		p, err := f.profiles.Get(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, models.RoleStudent, p.Role)
	})

	t.Run("Should report a missing target", func(t *testing.T) {
		_, err := f.profiles.AdminUpdateUserRole(ctx, admin, 9999, models.RoleRecruiter)
		assert.Equal(t, CodeNotFound, CodeOf(err))
	})

	t.Run("Should reject unknown roles", func(t *testing.T) {
		_, err := f.profiles.AdminUpdateUserRole(ctx, admin, other, models.Role("root"))
		assert.Equal(t, CodeInvalidArgument, CodeOf(err))
	})

	t.Run("Should change the role", func(t *testing.T) {
		p, err := f.profiles.AdminUpdateUserRole(ctx, admin, other, models.RoleRecruiter)
		require.NoError(t, err)
		assert.Equal(t, models.RoleRecruiter, p.Role)

		stored, err := f.profiles.Get(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, models.RoleRecruiter, stored.Role)
	})

	t.Run("Should let a promoted user pass the gate", func(t *testing.T) {
		_, err := f.profiles.AdminUpdateUserRole(ctx, admin, student, models.RoleAdmin)
		require.NoError(t, err)
		_, err = f.gate.RequireAdmin(ctx, student)
		assert.NoError(t, err)
	})
}

func TestProfileStore_BootstrapAdmins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	withProfile := f.user(t, "ops", models.RoleStudent)
	withoutProfile := f.account(t, "root")

	require.NoError(t, f.profiles.BootstrapAdmins(ctx, []string{"ops", " root ", "", "ghost"}))
	require.NoError(t, f.profiles.BootstrapAdmins(ctx, []string{"ops"}))

	for _, uid := range []uint{withProfile, withoutProfile} {
		p, err := f.gate.RequireAdmin(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, p.Role)
	}
}

func TestRoleGate_RequireAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	admin := f.user(t, "admin", models.RoleAdmin)
	recruiter := f.user(t, "recruiter", models.RoleRecruiter)
	noProfile := f.account(t, "bare")

	_, err := f.gate.RequireAdmin(ctx, admin)
	assert.NoError(t, err)

	for _, uid := range []uint{recruiter, noProfile} {
		_, err := f.gate.RequireAdmin(ctx, uid)
		assert.Equal(t, CodeNotAuthorized, CodeOf(err))
	}
	_, err = f.gate.RequireAdmin(ctx, 0)
	assert.Equal(t, CodeUnauthenticated, CodeOf(err))
}

func TestNewReferralCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewReferralCode()
		require.NoError(t, err)
		assert.Len(t, code, referralCodeLength)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}
