package repositories

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestStore_InsertAndGetMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store, _ := newTestStore(t)

	first, err := store.InsertMessage(ctx, 1, 10, "hi", "")
	req.NoError(err)
	second, err := store.InsertMessage(ctx, 1, 11, "cat.png", domain.ContentImage)
	req.NoError(err)

	// Then ids grow and the content type defaults to text
	req.Greater(second.ID, first.ID)
	req.Equal(domain.ContentText, first.ContentType)
	req.False(first.CreatedAt.IsZero())

	fetched, err := store.GetMessage(ctx, second.ID)
	req.NoError(err)
	req.Equal(domain.ContentImage, fetched.ContentType)
	req.Equal(domain.UserID(11), fetched.SenderID)
	req.Nil(fetched.EditedAt)

	_, err = store.GetMessage(ctx, 999)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestStore_UpdateMessageContent_OnlyBySender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store, _ := newTestStore(t)

	message, err := store.InsertMessage(ctx, 1, 10, "helo", domain.ContentText)
	req.NoError(err)

	// When someone else edits the message
	updated, err := store.UpdateMessageContent(ctx, message.ID, 11, "hacked")
	req.NoError(err)
	req.False(updated)

	// When the sender edits the message
	updated, err = store.UpdateMessageContent(ctx, message.ID, 10, "hello")
	req.NoError(err)
	req.True(updated)

	fetched, err := store.GetMessage(ctx, message.ID)
	req.NoError(err)
	req.Equal("hello", fetched.Content)
	req.NotNil(fetched.EditedAt)

	// And a missing message is reported as not updated
	updated, err = store.UpdateMessageContent(ctx, 999, 10, "ghost")
	req.NoError(err)
	req.False(updated)
}

func TestStore_ReadReceiptsAreRemovedWithTheMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store, db := newTestStore(t)

	message, err := store.InsertMessage(ctx, 1, 10, "read me", domain.ContentText)
	req.NoError(err)

	recorded, err := store.UpsertReadReceipt(ctx, message.ID, 11)
	req.NoError(err)
	req.True(recorded)

	// Then a second read is still acknowledged
	recorded, err = store.UpsertReadReceipt(ctx, message.ID, 11)
	req.NoError(err)
	req.True(recorded)

	deleted, err := store.DeleteMessageByID(ctx, message.ID, 10)
	req.NoError(err)
	req.True(deleted)

	// And neither the message nor its receipt survive
	err = db.View(func(txn *badger.Txn) error {
		req.Empty(keysWithPrefix(txn, receiptsOf(int64(message.ID))))
		return nil
	})
	req.NoError(err)
	_, err = store.GetMessage(ctx, message.ID)
	req.ErrorIs(err, errors.ErrNotFound)

	deleted, err = store.DeleteMessageByID(ctx, message.ID, 10)
	req.NoError(err)
	req.False(deleted)

	recorded, err = store.UpsertReadReceipt(ctx, message.ID, 11)
	req.NoError(err)
	req.False(recorded)
}
