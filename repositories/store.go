package repositories

import (
	"chat-realtime/internal/json"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Key layout. Identifiers are zero padded so prefix scans come back in id order.
const (
	conversationPrefix = "conversation:"
	memberPrefix       = "member:"
	membershipPrefix   = "membership:"
	directPrefix       = "direct:"
	messagePrefix      = "message:"
	receiptPrefix      = "receipt:"
	userPrefix         = "user:"
	usernamePrefix     = "username:"

	conversationSequence = "seq:conversation"
	messageSequence      = "seq:message"
	userSequence         = "seq:user"

	// ids leased from badger per sequence refill
	sequenceBandwidth = 100
)

// Store is the badger backed persistence collaborator of the coordinator.
type Store struct {
	db  *badger.DB
	log *slog.Logger

	conversationSeq *badger.Sequence
	messageSeq      *badger.Sequence
}

func NewStore(db *badger.DB, log *slog.Logger) (*Store, error) {
	conversationSeq, err := db.GetSequence([]byte(conversationSequence), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("conversation sequence: %w", err)
	}
	messageSeq, err := db.GetSequence([]byte(messageSequence), sequenceBandwidth)
	if err != nil {
		_ = conversationSeq.Release()
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &Store{db: db, log: log, conversationSeq: conversationSeq, messageSeq: messageSeq}, nil
}

// Close hands the unused leased ids back to badger.
// It must run before the database itself is closed.
func (s *Store) Close() error {
	return errors.Join(s.conversationSeq.Release(), s.messageSeq.Release())
}

// nextID skips 0 so every persisted id is positive.
func nextID(seq *badger.Sequence) (int64, error) {
	for {
		n, err := seq.Next()
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return int64(n), nil
		}
	}
}

func conversationKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%019d", conversationPrefix, id))
}

func memberKey(conversationID, userID int64) []byte {
	return []byte(fmt.Sprintf("%s%019d:%019d", memberPrefix, conversationID, userID))
}

func membershipKey(userID, conversationID int64) []byte {
	return []byte(fmt.Sprintf("%s%019d:%019d", membershipPrefix, userID, conversationID))
}

func membershipsOf(userID int64) []byte {
	return []byte(fmt.Sprintf("%s%019d:", membershipPrefix, userID))
}

// directKey is symmetric in its arguments.
func directKey(userA, userB int64) []byte {
	if userA > userB {
		userA, userB = userB, userA
	}
	return []byte(fmt.Sprintf("%s%019d:%019d", directPrefix, userA, userB))
}

func messageKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%019d", messagePrefix, id))
}

func receiptKey(messageID, userID int64) []byte {
	return []byte(fmt.Sprintf("%s%019d:%019d", receiptPrefix, messageID, userID))
}

func receiptsOf(messageID int64) []byte {
	return []byte(fmt.Sprintf("%s%019d:", receiptPrefix, messageID))
}

func userKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%019d", userPrefix, id))
}

func usernameKey(username string) []byte {
	return []byte(usernamePrefix + username)
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// getJSON returns badger.ErrKeyNotFound untouched so callers can map it.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// keysWithPrefix collects keys only, values are never fetched.
func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}
