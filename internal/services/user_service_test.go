package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/models"
)

func TestUserService_SignupAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.users.Signup(ctx, " Ada@Example.com ", "ada", "password1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, models.RoleUser, sess.User.Role)

	principal, err := f.tokens.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, principal.ID)

	for _, identifier := range []string{"ada", "ADA@example.com"} {
		got, err := f.users.Login(ctx, identifier, "password1")
		require.NoError(t, err, identifier)
		assert.Equal(t, sess.User.ID, got.User.ID)
	}

	_, err = f.users.Login(ctx, "ada", "wrong-password")
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
	_, err = f.users.Login(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	_, err = f.users.Signup(ctx, "ada@example.com", "ada2", "password1")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestUserService_SignupValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name, email, username, password, field string
	}{
		{"bad email", "not-an-email", "ada", "password1", "email"},
		{"display name", "Ada <ada@example.com>", "ada", "password1", "email"},
		{"short username", "ada@example.com", "a", "password1", "username"},
		{"username with at", "ada@example.com", "a@b", "password1", "username"},
		{"short password", "ada@example.com", "ada", "short", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Signup(context.Background(), tt.email, tt.username, tt.password)
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestUserService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := &models.Principal{ID: "root", Role: models.RoleAdmin}

	u, err := f.users.CreateUser(ctx, admin, NewUser{Email: "new@example.com", Username: "newbie", Password: "temporary"})
	require.NoError(t, err)
	assert.True(t, u.MustChangePassword)

	sess, err := f.users.Login(ctx, "newbie", "temporary")
	require.NoError(t, err)
	p, err := f.tokens.Parse(sess.Token)
	require.NoError(t, err)
	assert.True(t, p.MustChangePassword)

	tests := []struct {
		name  string
		req   PasswordChange
		field string
	}{
		{"missing current", PasswordChange{NewPassword: "Passw0rd!", ConfirmPassword: "Passw0rd!"}, "current_password"},
		{"no special", PasswordChange{CurrentPassword: "temporary", NewPassword: "Passw0rdd", ConfirmPassword: "Passw0rdd"}, "new_password"},
		{"no digit", PasswordChange{CurrentPassword: "temporary", NewPassword: "Password!", ConfirmPassword: "Password!"}, "new_password"},
		{"mismatch", PasswordChange{CurrentPassword: "temporary", NewPassword: "Passw0rd!", ConfirmPassword: "Passw0rd?"}, "confirm_password"},
		{"wrong current", PasswordChange{CurrentPassword: "guess", NewPassword: "Passw0rd!", ConfirmPassword: "Passw0rd!"}, "current_password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.ChangePassword(ctx, p, tt.req)
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	sess, err = f.users.ChangePassword(ctx, p, PasswordChange{
		CurrentPassword: "temporary",
		NewPassword:     "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
	})
	require.NoError(t, err)
	assert.False(t, sess.User.MustChangePassword)
	fresh, err := f.tokens.Parse(sess.Token)
	require.NoError(t, err)
	assert.False(t, fresh.MustChangePassword)

	_, err = f.users.Login(ctx, "newbie", "Passw0rd!")
	assert.NoError(t, err)
}

func TestUserService_AdminOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, created, err := f.users.EnsureAdmin(ctx, "root@example.com", "root", "rootpass1")
	require.NoError(t, err)
	assert.True(t, created)
	ap := &models.Principal{ID: admin.ID, Role: models.RoleAdmin}

	writer := f.principal(t, "writer")
	_, err = f.users.ListUsers(ctx, writer, models.UserFilter{})
	assert.ErrorIs(t, err, core.ErrForbidden)

	page, err := f.users.ListUsers(ctx, ap, models.UserFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)

	page, err = f.users.ListUsers(ctx, ap, models.UserFilter{Search: "WRIT", Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "writer", page.Users[0].Username)

	_, err = f.users.CreateUser(ctx, ap, NewUser{Email: "writer@example.com", Username: "dup", Password: "password1"})
	assert.ErrorIs(t, err, core.ErrConflict)
	_, err = f.users.CreateUser(ctx, ap, NewUser{Email: "x@example.com", Username: "xx", Password: "password1", Role: "owner"})
	assert.True(t, core.IsValidation(err))

	u, err := f.users.UpdateUser(ctx, ap, writer.ID, models.UserPatch{
		Role:               models.Some(models.RoleAdmin),
		MustChangePassword: models.Some(true),
		Password:           models.Some("resetpass1"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.True(t, u.MustChangePassword)
	_, err = f.users.Login(ctx, "writer", "resetpass1")
	assert.NoError(t, err)

	_, err = f.users.UpdateUser(ctx, ap, writer.ID, models.UserPatch{Username: models.Some("root")})
	assert.ErrorIs(t, err, core.ErrConflict)
	_, err = f.users.UpdateUser(ctx, ap, "missing", models.UserPatch{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.True(t, core.IsValidation(f.users.DeleteUser(ctx, ap, admin.ID)))
	require.NoError(t, f.users.DeleteUser(ctx, ap, writer.ID))
	_, err = f.users.GetUser(ctx, ap, writer.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUserService_EnsureAdminResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.principal(t, "boss")

	u, created, err := f.users.EnsureAdmin(ctx, "boss@example.com", "boss", "newsecret1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.True(t, u.MustChangePassword)

	_, err = f.users.Login(ctx, "boss", "newsecret1")
	assert.NoError(t, err)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, err := issuer.Issue(&models.User{ID: "u1", Role: models.RoleAdmin, MustChangePassword: true})
	require.NoError(t, err)

	p, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, &models.Principal{ID: "u1", Role: models.RoleAdmin, MustChangePassword: true}, p)

	_, err = NewTokenIssuer("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	expired, err := NewTokenIssuer("secret", -time.Minute).Issue(&models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = issuer.Parse(expired)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	_, err = issuer.Parse("garbage")
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
}
