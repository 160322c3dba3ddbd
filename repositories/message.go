package repositories

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type diskReceipt struct {
	ReadAt time.Time `json:"readAt"`
}

// InsertMessage persists the message and returns it with its id and creation time.
// Authorization is the caller's job.
func (s *Store) InsertMessage(ctx context.Context, conversationID domain.ConversationID, senderID domain.UserID,
	content string, contentType domain.ContentType) (domain.Message, error) {
	id, err := nextID(s.messageSeq)
	if err != nil {
		return domain.Message{}, fmt.Errorf("allocate message id: %w", err)
	}
	message := domain.Message{
		ID:             domain.MessageID(id),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		ContentType:    lo.CoalesceOrEmpty(contentType, domain.ContentText),
		CreatedAt:      time.Now().UTC(),
	}
	err = s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, messageKey(id), message)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func (s *Store) GetMessage(ctx context.Context, messageID domain.MessageID) (domain.Message, error) {
	var message domain.Message
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, messageKey(int64(messageID)), &message)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrNotFound
	}
	return message, err
}

// UpdateMessageContent only touches a message the user sent.
// It reports false when the message is gone or belongs to someone else.
func (s *Store) UpdateMessageContent(ctx context.Context, messageID domain.MessageID, userID domain.UserID, content string) (bool, error) {
	updated := false
	err := s.update(ctx, func(txn *badger.Txn) error {
		var message domain.Message
		err := getJSON(txn, messageKey(int64(messageID)), &message)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if message.SenderID != userID {
			return nil
		}
		message.Content = content
		message.EditedAt = lo.ToPtr(time.Now().UTC())
		updated = true
		return setJSON(txn, messageKey(int64(messageID)), message)
	})
	return updated, err
}

// DeleteMessageByID removes the message and its receipts.
// userID is only logged: who may delete is decided by the caller.
func (s *Store) DeleteMessageByID(ctx context.Context, messageID domain.MessageID, userID domain.UserID) (bool, error) {
	deleted := false
	err := s.update(ctx, func(txn *badger.Txn) error {
		found, err := exists(txn, messageKey(int64(messageID)))
		if err != nil || !found {
			return err
		}
		for _, key := range keysWithPrefix(txn, receiptsOf(int64(messageID))) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		deleted = true
		return txn.Delete(messageKey(int64(messageID)))
	})
	if deleted {
		s.log.Debug("Message deleted", "message_id", messageID, "user_id", userID)
	}
	return deleted, err
}

// UpsertReadReceipt records the first read time and keeps it on later reads.
// It reports false when the message does not exist.
func (s *Store) UpsertReadReceipt(ctx context.Context, messageID domain.MessageID, userID domain.UserID) (bool, error) {
	recorded := false
	err := s.update(ctx, func(txn *badger.Txn) error {
		found, err := exists(txn, messageKey(int64(messageID)))
		if err != nil || !found {
			return err
		}
		recorded = true
		key := receiptKey(int64(messageID), int64(userID))
		already, err := exists(txn, key)
		if err != nil || already {
			return err
		}
		return setJSON(txn, key, diskReceipt{ReadAt: time.Now().UTC()})
	})
	return recorded, err
}
