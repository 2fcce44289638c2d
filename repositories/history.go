package repositories

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/contract"
)

// historySeekSuffix sits past any 19-digit padded timestamp, so a reverse
// seek lands on the newest record of the prefix.
const historySeekSuffix = "9999999999999999999"

// HistoryRepository persists conversation lines in BadgerDB.
// The storage key is "hist:{key}:{timestamp_padded}:{uuid}" to:
//  1. Keep records of one conversation chronologically sorted through
//     19-digit zero padding (lexicographical order).
//  2. Avoid losing a record when two lines land on the same nanosecond,
//     using the UUID as a collision disambiguator.
//
// Badger serializes writing transactions, which covers the per-key writer
// serialization the relay requires.
type HistoryRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewHistoryRepository(db *badger.DB, log *slog.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, log: log}
}

var _ contract.HistoryLog = (*HistoryRepository)(nil)

// Append stores one line under key. Persistence failures are logged, never
// surfaced: history must not block message delivery.
func (h *HistoryRepository) Append(key string, line string) {
	storageKey := fmt.Sprintf("hist:%s:%019d:%s", key, time.Now().UnixNano(), uuid.New())
	err := h.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(storageKey), []byte(line))
	})
	if err != nil {
		h.log.Error("history append failed", "key", key, "error", err)
	}
}

// Tail returns the last n lines for key, oldest first. Thanks to the padded
// timestamp in the storage key a reverse prefix scan yields newest-first
// order; the collected window is flipped back before joining.
func (h *HistoryRepository) Tail(key string, n int) string {
	if n < 1 {
		return contract.NoHistory
	}
	var lines []string
	err := h.db.View(func(txn *badger.Txn) error {
		prefix := []byte("hist:" + key + ":")
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte(nil), prefix...), historySeekSuffix...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(lines) < n; it.Next() {
			err := it.Item().Value(func(value []byte) error {
				lines = append(lines, string(value))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.log.Error("history tail failed", "key", key, "error", err)
		return contract.NoHistory
	}
	if len(lines) == 0 {
		return contract.NoHistory
	}
	return strings.Join(lo.Reverse(lines), "\n")
}
