package repositories

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

const strongPassword = "Sup3rSecret!Pass"

func TestUser_Register_Then_Verify(t *testing.T) {
	req := require.New(t)
	users := NewUserRepository(openTestDB(t), slog.Default())

	req.NoError(users.Register("alice", strongPassword))

	req.True(users.Verify("alice", strongPassword))
	req.False(users.Verify("alice", "WrongPassword1!x"))
	req.False(users.Verify("nobody", strongPassword))
}

func TestUser_Register_Rejects_Taken_Username(t *testing.T) {
	req := require.New(t)
	users := NewUserRepository(openTestDB(t), slog.Default())

	req.NoError(users.Register("alice", strongPassword))

	err := users.Register("alice", "Other3Password!x")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUser_Register_Rejects_Weak_Password(t *testing.T) {
	req := require.New(t)
	users := NewUserRepository(openTestDB(t), slog.Default())

	// Long enough but only lowercase
	req.Error(users.Register("alice", "alllowercasepassword"))

	// Complex but too short
	req.Error(users.Register("alice", "Ab1!"))

	// And nothing was stored
	req.False(users.Verify("alice", "alllowercasepassword"))
}

func TestUser_Register_Rejects_Invalid_Username(t *testing.T) {
	req := require.New(t)
	users := NewUserRepository(openTestDB(t), slog.Default())

	req.Error(users.Register("a", strongPassword))
	req.Error(users.Register("not a valid name", strongPassword))
}
