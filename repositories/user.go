package repositories

import (
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
)

// UserRepository stores credentials in BadgerDB under "user:{username}",
// the value being the encoded Argon2id hash. It backs the UserStore
// collaborator for authenticated deployments; the relay wire itself stays
// anonymous.
type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

var _ contract.UserStore = (*UserRepository)(nil)

// Register hashes the password and persists the user. Fails with
// ErrUserAlreadyExists when the username is taken.
func (u *UserRepository) Register(username, password string) error {
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: password}); err != nil {
		return err
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return u.db.Update(func(txn *badger.Txn) error {
		key := []byte("user:" + username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, []byte(hashed))
	})
}

// Verify reports whether the credentials match a stored account. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (u *UserRepository) Verify(username, password string) bool {
	var encoded string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			encoded = string(val)
			return nil
		})
	})
	if err != nil {
		return false
	}
	ok, err := auth.ComparePassword(password, encoded)
	if err != nil {
		u.log.Warn("stored hash unreadable", "username", username, "error", err)
		return false
	}
	return ok
}
