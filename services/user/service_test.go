package user

import (
	"testing"
	"time"

	"github.com/goaltrack/goaltrack/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Create(t *testing.T) {
	db := testutils.SetupTestDB(t, &User{})
	service := NewService(testutils.GetTestConfig(), db, nil)

	t.Run("creates unconfirmed account with hashed password", func(t *testing.T) {
		u, err := service.Create("alice", "alice@example.com", "secret1")

		require.NoError(t, err)
		assert.NotZero(t, u.ID)
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, "alice@example.com", u.Email)
		assert.False(t, u.IsConfirmed)
		assert.Nil(t, u.LastLoginAt)
		assert.NotEqual(t, "secret1", u.Password)
		assert.NoError(t, service.VerifyPassword(u.Password, "secret1"))
	})

	t.Run("fails when email is taken", func(t *testing.T) {
		u, err := service.Create("bob", "alice@example.com", "secret1")

		assert.Nil(t, u)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("fails when username is taken", func(t *testing.T) {
		u, err := service.Create("alice", "alice2@example.com", "secret1")

		assert.Nil(t, u)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("fails when password is too short", func(t *testing.T) {
		u, err := service.Create("carol", "carol@example.com", "abc")

		assert.Nil(t, u)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPasswordPolicy)
	})
}

// Exercises the duplicate-key fallback Create takes when the insert loses
// the race between the pre-checks and the unique indexes.
func TestService_ClassifyDuplicate(t *testing.T) {
	db := testutils.SetupTestDB(t, &User{})
	service := NewService(testutils.GetTestConfig(), db, nil)

	require.NoError(t, db.Create(&User{
		Username: "dave",
		Email:    "dave@example.com",
		Password: "irrelevant",
	}).Error)

	t.Run("reports the colliding email", func(t *testing.T) {
		assert.ErrorIs(t, service.classifyDuplicate("other", "dave@example.com"), ErrEmailTaken)
	})

	t.Run("reports the colliding username", func(t *testing.T) {
		assert.ErrorIs(t, service.classifyDuplicate("dave", "other@example.com"), ErrUsernameTaken)
	})

	t.Run("falls back to email when the row vanished", func(t *testing.T) {
		assert.ErrorIs(t, service.classifyDuplicate("ghost", "ghost@example.com"), ErrEmailTaken)
	})
}

func TestService_Find(t *testing.T) {
	db := testutils.SetupTestDB(t, &User{})
	service := NewService(testutils.GetTestConfig(), db, nil)

	created, err := service.Create("dave", "dave@example.com", "secret1")
	require.NoError(t, err)

	t.Run("finds by email", func(t *testing.T) {
		u, err := service.FindByEmail("dave@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)
	})

	t.Run("finds by username", func(t *testing.T) {
		u, err := service.FindByUsername("dave")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)
	})

	t.Run("finds by id", func(t *testing.T) {
		u, err := service.FindByID(created.ID)
		require.NoError(t, err)
		assert.Equal(t, "dave", u.Username)
	})

	t.Run("reports missing user", func(t *testing.T) {
		_, err := service.FindByEmail("nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = service.FindByUsername("nobody")
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = service.FindByID(9999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestService_MarkConfirmed(t *testing.T) {
	db := testutils.SetupTestDB(t, &User{})
	service := NewService(testutils.GetTestConfig(), db, nil)

	_, err := service.Create("erin", "erin@example.com", "secret1")
	require.NoError(t, err)

	t.Run("flips the confirmation flag", func(t *testing.T) {
		require.NoError(t, service.MarkConfirmed("erin@example.com"))

		u, err := service.FindByEmail("erin@example.com")
		require.NoError(t, err)
		assert.True(t, u.IsConfirmed)
	})

	t.Run("fails for unknown email", func(t *testing.T) {
		err := service.MarkConfirmed("nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestService_UpdatePassword(t *testing.T) {
	db := testutils.SetupTestDB(t, &User{})
	service := NewService(testutils.GetTestConfig(), db, nil)

	created, err := service.Create("frank", "frank@example.com", "oldpass1")
	require.NoError(t, err)

	t.Run("replaces the stored hash", func(t *testing.T) {
		require.NoError(t, service.UpdatePassword(nil, created.ID, "newpass1"))

		u, err := service.FindByID(created.ID)
		require.NoError(t, err)
		assert.Error(t, service.VerifyPassword(u.Password, "oldpass1"))
		assert.NoError(t, service.VerifyPassword(u.Password, "newpass1"))
	})

	t.Run("rejects a too-short password", func(t *testing.T) {
		err := service.UpdatePassword(nil, created.ID, "abc")
		assert.ErrorIs(t, err, ErrPasswordPolicy)
	})

	t.Run("fails for unknown user", func(t *testing.T) {
		err := service.UpdatePassword(nil, 9999, "newpass1")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestService_RecordLogin(t *testing.T) {
	db := testutils.SetupTestDB(t, &User{})
	service := NewService(testutils.GetTestConfig(), db, nil)

	created, err := service.Create("grace", "grace@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, service.RecordLogin(created.ID))

	u, err := service.FindByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, u.LastLoginAt)
	assert.WithinDuration(t, time.Now(), *u.LastLoginAt, time.Minute)
}

func TestService_VerifyPassword(t *testing.T) {
	service := NewService(testutils.GetTestConfig(), nil, nil)

	hash, err := service.HashPassword("secret1")
	require.NoError(t, err)

	assert.NoError(t, service.VerifyPassword(hash, "secret1"))
	assert.ErrorIs(t, service.VerifyPassword(hash, "wrong"), ErrInvalidCredentials)
}
