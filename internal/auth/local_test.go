package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/models"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()
	p := NewLocalProvider(newTestDB(t).DB, logger.Nop())
	p.cost = bcrypt.MinCost
	return p
}

func requireAuthCode(t *testing.T, err error, code string) {
	t.Helper()
	ae, ok := AsAuthError(err)
	require.True(t, ok, "expected AuthError, got %v", err)
	assert.Equal(t, code, ae.Code)
}

func TestValidateRegistration(t *testing.T) {
	var ve *ValidationError

	err := ValidateRegistration("secret1", "secret2")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Passwords do not match", ve.Message)

	err = ValidateRegistration("abc", "abc")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Password must be at least 6 characters", ve.Message)

	assert.NoError(t, ValidateRegistration("secret1", "secret1"))
}

func TestSignUpThenSignIn(t *testing.T) {
	p := newLocalProvider(t)
	ctx := context.Background()

	created, err := p.SignUp(ctx, " Ada@Example.com ", "secret1", "Ada")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, models.ProviderPassword, created.Provider)

	signedIn, err := p.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.UID, signedIn.UID)
	assert.Equal(t, "Ada", signedIn.DisplayName)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	p := newLocalProvider(t)
	ctx := context.Background()
	_, err := p.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "ada@example.com", "wrong-pass")
	requireAuthCode(t, err, CodeInvalidCredential)

	_, err = p.SignIn(ctx, "nobody@example.com", "secret1")
	requireAuthCode(t, err, CodeInvalidCredential)

	_, err = p.SignIn(ctx, "not-an-email", "secret1")
	requireAuthCode(t, err, CodeInvalidEmail)
}

func TestSignUpPolicy(t *testing.T) {
	p := newLocalProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "ada@example.com", "12345", "Ada")
	requireAuthCode(t, err, CodeWeakPassword)

	_, err = p.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)

	_, err = p.SignUp(ctx, "ADA@example.com", "secret2", "Other")
	requireAuthCode(t, err, CodeEmailInUse)
}

func TestResetAndUpdatePassword(t *testing.T) {
	p := newLocalProvider(t)
	ctx := context.Background()

	err := p.ResetPassword(ctx, "ghost@example.com")
	requireAuthCode(t, err, CodeUserNotFound)

	id, err := p.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	require.NoError(t, p.ResetPassword(ctx, "ada@example.com"))

	var user models.User
	require.NoError(t, p.db.First(&user, "id = ?", id.UID).Error)
	assert.NotNil(t, user.PasswordResetRequest)

	require.NoError(t, p.UpdatePassword(ctx, id.UID, "secret2"))
	_, err = p.SignIn(ctx, "ada@example.com", "secret2")
	require.NoError(t, err)

	requireAuthCode(t, p.UpdatePassword(ctx, id.UID, "x"), CodeWeakPassword)
	requireAuthCode(t, p.UpdatePassword(ctx, "missing", "secret3"), CodeUserNotFound)
}

func TestNormalizeEmail(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "  ADA@Example.com ", want: "ada@example.com", ok: true},
		{in: "ada.lovelace+shop@example.co.uk", want: "ada.lovelace+shop@example.co.uk", ok: true},
		{in: ""},
		{in: "ada@"},
		{in: "ada example@example.com"},
		{in: "Ada Lovelace <ada@example.com>"},
	} {
		got, err := normalizeEmail(tc.in)
		if !tc.ok {
			requireAuthCode(t, err, CodeInvalidEmail)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}
