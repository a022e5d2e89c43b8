package users

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTestService(t *testing.T, opts ...UserServiceOption) (*UserService, RepositoryManager) {
	t.Helper()
	repo := NewRepositoryManager(newTestDB(t))
	opts = append([]UserServiceOption{WithUserServiceLogger(nopLogger{})}, opts...)
	return NewUserService(repo, opts...), repo
}

func TestUserServiceCreate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserPayload{
		Email:                "New@Example.com",
		FirstName:            " Grace ",
		Role:                 "admin",
		Password:             "secret123",
		PasswordConfirmation: stringPtr("secret123"),
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "Grace", user.FirstName)
	assert.Equal(t, RoleAdmin, user.Role)
	assert.NoError(t, ComparePasswordAndHash("secret123", user.PasswordHash))

	_, err = svc.Create(ctx, CreateUserPayload{Email: "new@example.com", Password: "secret123"})
	fields, ok := ValidationFields(err)
	require.True(t, ok)
	assert.Equal(t, MsgEmailTaken, fields["email"])
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserPayload{Password: "secret123"})
	fields, ok := ValidationFields(err)
	require.True(t, ok)
	assert.Contains(t, fields, "email")

	list, err := repo.Users().ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "nothing is created on validation failure")
}

func TestUserServiceCreateWithIDGenerator(t *testing.T) {
	fixed := uuid.MustParse("6f1d8f1c-1d3a-4a55-9f49-1f2b7d6f0a01")
	svc, _ := newTestService(t, WithUserIDGenerator(func(string) (uuid.UUID, error) {
		return fixed, nil
	}))

	user, err := svc.Create(context.Background(), CreateUserPayload{Email: "id@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, fixed, user.ID)
}

func TestUserServiceUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateUserPayload{Email: "a@example.com", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateUserPayload{Email: "b@example.com", Password: "secret123"})
	require.NoError(t, err)

	email := "renamed@example.com"
	role := "admin"
	updated, err := svc.Update(ctx, a.ID.String(), UpdateUserPayload{Email: &email, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	assert.Equal(t, RoleAdmin, updated.Role)

	taken := "b@example.com"
	_, err = svc.Update(ctx, a.ID.String(), UpdateUserPayload{Email: &taken})
	fields, ok := ValidationFields(err)
	require.True(t, ok)
	assert.Equal(t, MsgEmailTaken, fields["email"])

	blank := ""
	_, err = svc.Update(ctx, a.ID.String(), UpdateUserPayload{Email: &blank})
	_, ok = ValidationFields(err)
	assert.True(t, ok)

	_, err = svc.Update(ctx, uuid.NewString(), UpdateUserPayload{})
	assert.True(t, IsUserNotFound(err))
}

func TestUserServiceUpdateWithoutChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserPayload{Email: "same@example.com", FirstName: "Ada", Password: "secret123"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, user.ID.String(), UpdateUserPayload{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, updated.ID)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, user.UpdatedAt.Unix(), updated.UpdatedAt.Unix())
}

// staleEmailUsers never sees existing rows on email lookups, so inserts
// reach the unique index as they would under a concurrent create.
type staleEmailUsers struct {
	Users
}

func (staleEmailUsers) FindByEmailTx(context.Context, bun.IDB, string) (*User, error) {
	return nil, ErrUserNotFound
}

type staleEmailManager struct {
	RepositoryManager
}

func (m staleEmailManager) Users() Users {
	return staleEmailUsers{Users: m.RepositoryManager.Users()}
}

func TestUserServiceUniqueIndexViolation(t *testing.T) {
	repo := NewRepositoryManager(newTestDB(t))
	svc := NewUserService(staleEmailManager{RepositoryManager: repo}, WithUserServiceLogger(nopLogger{}))
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateUserPayload{Email: "race@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateUserPayload{Email: "RACE@example.com", Password: "secret123"})
	fields, ok := ValidationFields(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, MsgEmailTaken, fields["email"])

	other, err := svc.Create(ctx, CreateUserPayload{Email: "other@example.com", Password: "secret123"})
	require.NoError(t, err)

	taken := first.Email
	_, err = svc.Update(ctx, other.ID.String(), UpdateUserPayload{Email: &taken})
	fields, ok = ValidationFields(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, MsgEmailTaken, fields["email"])
}

func TestUserServiceActorAttrs(t *testing.T) {
	svc, _ := newTestService(t)
	actor := &User{ID: uuid.New()}

	attrs := svc.actorAttrs(WithContext(context.Background(), actor), "user_id", "x")
	assert.Equal(t, []any{"user_id", "x", "actor_id", actor.ID.String()}, attrs)
	assert.Equal(t, []any{"user_id", "x"}, svc.actorAttrs(context.Background(), "user_id", "x"))
}

func TestIsEmailTaken(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite email index", stderrors.New("constraint failed: UNIQUE constraint failed: index 'uq_users_email' (2067)"), true},
		{"postgres email index", stderrors.New(`pq: duplicate key value violates unique constraint "uq_users_email"`), true},
		{"wrapped", errors.Wrap(stderrors.New("UNIQUE constraint failed: users.email"), errors.CategoryInternal, "user store failure"), true},
		{"token index", stderrors.New("UNIQUE constraint failed: index 'uq_users_authentication_token'"), false},
		{"other", stderrors.New("disk I/O error"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isEmailTaken(tc.err))
		})
	}
}

func TestUserServiceDestroy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserPayload{Email: "gone@example.com", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, svc.Destroy(ctx, user.ID.String()))
	_, err = svc.Get(ctx, user.ID.String())
	assert.True(t, IsUserNotFound(err))
	assert.True(t, IsUserNotFound(svc.Destroy(ctx, user.ID.String())))
}

func TestUserProviderVerifyCredentials(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserPayload{Email: "login@example.com", Password: "secret123"})
	require.NoError(t, err)

	accounts := NewUserProvider(repo.Users()).WithLogger(nopLogger{})

	user, err := accounts.VerifyCredentials(ctx, "LOGIN@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", user.Email)

	_, err = accounts.VerifyCredentials(ctx, "login@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)

	_, err = accounts.VerifyCredentials(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
}
