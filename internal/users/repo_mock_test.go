package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemRepo_Register(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepo()

	first := &User{Email: "Serj@Example.com", Name: "Serj"}
	require.NoError(t, repo.Register(ctx, first))
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "serj@example.com", first.Email)
	assert.True(t, first.IsAdmin())

	second := &User{Email: "reader@example.com", Name: "Reader"}
	require.NoError(t, repo.Register(ctx, second))
	assert.Equal(t, 2, second.ID)
	assert.False(t, second.IsAdmin())

	assert.ErrorIs(t, repo.Register(ctx, &User{Email: "SERJ@example.com"}), ErrEmailTaken)
	assert.Equal(t, 2, repo.Count())

	found, err := repo.ByEmail(ctx, "READER@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, found.ID)

	_, err = repo.ByID(ctx, 3)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUser_IsAdmin(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
	assert.False(t, (&User{Role: RoleReader}).IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
}
