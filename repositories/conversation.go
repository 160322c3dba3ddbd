package repositories

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type diskMember struct {
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
}

// GetDurableMemberships lists the conversations a user belongs to through the
// membership index, without loading the conversations themselves.
func (s *Store) GetDurableMemberships(ctx context.Context, userID domain.UserID) ([]domain.ConversationID, error) {
	var ids []domain.ConversationID
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := membershipsOf(int64(userID))
		for _, key := range keysWithPrefix(txn, prefix) {
			id, err := strconv.ParseInt(string(key[len(prefix):]), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupted membership key %q: %w", key, err)
			}
			ids = append(ids, domain.ConversationID(id))
		}
		return nil
	})
	return ids, err
}

func (s *Store) IsDurableMember(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) (bool, error) {
	var member bool
	err := s.view(ctx, func(txn *badger.Txn) (err error) {
		member, err = exists(txn, memberKey(int64(conversationID), int64(userID)))
		return err
	})
	return member, err
}

// MemberRole returns errors.ErrNotAMember when the user has no membership row.
func (s *Store) MemberRole(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) (domain.Role, error) {
	var member diskMember
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, memberKey(int64(conversationID), int64(userID)), &member)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", errors.ErrNotAMember
	}
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

// CreateConversation writes the conversation, one member row per participant and
// the reverse membership index in a single transaction. The creator is admin.
// Every participant must be a registered user, otherwise errors.ErrUnknownMember.
// A direct conversation also claims the pair key; a concurrent creation of the same
// pair makes one of the two transactions fail with errors.ErrConversationExists.
func (s *Store) CreateConversation(ctx context.Context, c domain.NewConversation) (domain.Conversation, error) {
	id, err := nextID(s.conversationSeq)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("allocate conversation id: %w", err)
	}
	now := time.Now().UTC()
	members := lo.Uniq(append([]domain.UserID{c.CreatorID}, c.MemberIDs...))

	conversation := domain.Conversation{
		ID:          domain.ConversationID(id),
		Type:        c.Type,
		Title:       c.Title,
		AvatarURL:   lo.CoalesceOrEmpty(c.AvatarURL, domain.DefaultAvatarURL),
		CoverGifURL: c.CoverGifURL,
		Label:       lo.CoalesceOrEmpty(c.Label, domain.DefaultLabel),
		CreatorID:   c.CreatorID,
		MemberIDs:   members,
		CreatedAt:   now,
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		for _, userID := range members {
			known, err := exists(txn, userKey(int64(userID)))
			if err != nil {
				return err
			}
			if !known {
				return fmt.Errorf("%w %d", errors.ErrUnknownMember, userID)
			}
		}
		if c.Type == domain.ConversationDirect {
			if len(members) != 2 {
				return errors.ErrDirectMemberCount
			}
			key := directKey(int64(members[0]), int64(members[1]))
			taken, err := exists(txn, key)
			if err != nil {
				return err
			}
			if taken {
				return errors.ErrConversationExists
			}
			if err := txn.Set(key, []byte(strconv.FormatInt(id, 10))); err != nil {
				return err
			}
		}
		if err := setJSON(txn, conversationKey(id), conversation); err != nil {
			return err
		}
		for _, userID := range members {
			role := lo.Ternary(userID == c.CreatorID, domain.RoleAdmin, domain.RoleMember)
			if err := setJSON(txn, memberKey(id, int64(userID)), diskMember{Role: role, JoinedAt: now}); err != nil {
				return err
			}
			if err := txn.Set(membershipKey(int64(userID), id), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	s.log.Debug("Conversation created", "conversation_id", id, "type", c.Type, "members", len(members))
	return conversation, nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID domain.ConversationID) (domain.Conversation, error) {
	var conversation domain.Conversation
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, conversationKey(int64(conversationID)), &conversation)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, errors.ErrNotFound
	}
	return conversation, err
}

func (s *Store) FindExistingDirectConversation(ctx context.Context, userA, userB domain.UserID) (domain.ConversationID, bool, error) {
	var id int64
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(directKey(int64(userA), int64(userB)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id, err = strconv.ParseInt(string(val), 10, 64)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return domain.ConversationID(id), true, nil
}
