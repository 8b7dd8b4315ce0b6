package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/security"
	"pharmadesk/internal/domain/auth"
	"pharmadesk/internal/infrastructure/storage/memory"
)

func newService(t *testing.T) (*auth.Service, *auth.JWTService) {
	t.Helper()
	store := memory.New()
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	cfg := auth.DefaultServiceConfig()
	cfg.MaxLoginAttempts = 3
	return auth.NewService(store.Users(), store, jwtSvc, cfg), jwtSvc
}

func TestLogin_IssuesTokenWithRole(t *testing.T) {
	svc, jwtSvc := newService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, auth.CreateUserRequest{
		Username: "  Fatimetou ",
		FullName: "Fatimetou Mint Ahmed",
		Password: "s3cret-pass",
		Role:     string(security.RoleCashier),
	})
	require.NoError(t, err)
	assert.Equal(t, "fatimetou", created.Username)
	assert.NotEqual(t, "s3cret-pass", created.PasswordHash)

	token, user, err := svc.Login(ctx, auth.Credentials{Username: "FATIMETOU", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.NotNil(t, user.LastLoginAt)

	uc, err := jwtSvc.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID.String(), uc.UserID)
	assert.Equal(t, string(security.RoleCashier), uc.Role)

	me, err := svc.Me(appctx.WithUser(ctx, uc))
	require.NoError(t, err)
	assert.Equal(t, created.ID, me.ID)
}

func TestLogin_RejectsBadPasswordAndLocks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, auth.CreateUserRequest{Username: "ely", Password: "password1", Role: "pharmacist"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, auth.Credentials{Username: "nobody", Password: "password1"})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	for i := 0; i < 3; i++ {
		_, _, err = svc.Login(ctx, auth.Credentials{Username: "ely", Password: "wrong"})
		assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
	}

	_, _, err = svc.Login(ctx, auth.Credentials{Username: "ely", Password: "password1"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden), "account is locked after 3 failures")
}

func TestCreateUser_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, auth.CreateUserRequest{Username: "a", Password: "short", Role: "admin"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.CreateUser(ctx, auth.CreateUserRequest{Username: "a", Password: "long-enough", Role: "janitor"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.CreateUser(ctx, auth.CreateUserRequest{Username: "a", Password: "long-enough", Role: "admin"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, auth.CreateUserRequest{Username: "A", Password: "long-enough", Role: "admin"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestChangeRoleAndDeactivate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	admin, err := svc.CreateUser(ctx, auth.CreateUserRequest{Username: "admin", Password: "long-enough", Role: "admin"})
	require.NoError(t, err)
	clerk, err := svc.CreateUser(ctx, auth.CreateUserRequest{Username: "clerk", Password: "long-enough", Role: "cashier"})
	require.NoError(t, err)

	adminCtx := appctx.WithUser(ctx, &appctx.UserContext{UserID: admin.ID.String(), Role: "admin"})

	_, err = svc.ChangeRole(adminCtx, admin.ID, "cashier")
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	updated, err := svc.ChangeRole(adminCtx, clerk.ID, "storekeeper")
	require.NoError(t, err)
	assert.Equal(t, "storekeeper", updated.Role)

	_, err = svc.ChangeRole(adminCtx, clerk.ID, "owner")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.Deactivate(adminCtx, clerk.ID)
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, auth.Credentials{Username: "clerk", Password: "long-enough"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	active := true
	list, err := svc.ListUsers(ctx, auth.UserFilter{IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.TotalCount)
}

func TestValidateToken_RejectsForeignAndExpired(t *testing.T) {
	issuer := auth.NewJWTService(auth.JWTConfig{Secret: "one", Issuer: "pharmadesk", AccessTokenTTL: time.Hour})
	other := auth.NewJWTService(auth.JWTConfig{Secret: "two", Issuer: "pharmadesk", AccessTokenTTL: time.Hour})
	u := auth.NewUser("ely", "Ely", "hash", "cashier")

	token, _, err := issuer.GenerateAccessToken(u)
	require.NoError(t, err)
	_, err = other.ValidateToken(token)
	assert.Error(t, err)

	expired := auth.NewJWTService(auth.JWTConfig{Secret: "one", Issuer: "pharmadesk", AccessTokenTTL: -time.Minute})
	stale, _, err := expired.GenerateAccessToken(u)
	require.NoError(t, err)
	_, err = issuer.ValidateToken(stale)
	assert.Error(t, err)
}
