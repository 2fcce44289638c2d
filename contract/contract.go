// Package contract declares the collaborator interfaces the relay depends on.
// Implementations live in repositories; tests provide in-memory fakes.
package contract

// NoHistory is what Tail returns for a key that has never been written.
const NoHistory = "no history yet"

// HistoryLog is the durable, append-only record of conversations.
// Keys identify either a room or a private nickname pair; writers to the
// same key must be serialized by the implementation.
type HistoryLog interface {
	// Append stores one line under key. Failures are the implementation's
	// to report; the relay never blocks delivery on persistence.
	Append(key string, line string)

	// Tail returns the last n lines for key, oldest first, joined by
	// newlines. Returns NoHistory if the key has never been written.
	Tail(key string, n int) string
}

// UserStore verifies and provisions credentials. The relay itself runs the
// anonymous flow; accounts are managed out of band through this interface.
type UserStore interface {
	Verify(username, password string) bool

	// Register fails with errors.ErrUserAlreadyExists when the username
	// is taken.
	Register(username, password string) error
}
