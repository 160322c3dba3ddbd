package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/observability"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Outcome is what one intent produces: the deliveries to fan out, and the
// release of the conversation lock held since the durable write.
type Outcome struct {
	Deliveries []Delivery
	release    func()
}

// Done releases the conversation lock, if any. Call it once fan-out is over.
func (o Outcome) Done() {
	if o.release != nil {
		o.release()
	}
}

// Router turns intents into durable effects and deliveries.
// Authorization always runs against the store before any write or broadcast.
type Router struct {
	log              *slog.Logger
	store            contract.Store
	presence         *PresenceDirectory
	registry         *Registry
	typing           *TypingTracker
	sequencer        *Sequencer
	fanout           Deliverer
	censor           contract.Censor
	validate         *validator.Validate
	metrics          *observability.Metrics
	maxContentLength int
	now              func() time.Time
}

type RouterConfig struct {
	MaxContentLength int
	// Censor is optional, content is stored verbatim without it.
	Censor contract.Censor
}

func NewRouter(log *slog.Logger, store contract.Store, presence *PresenceDirectory, registry *Registry,
	typing *TypingTracker, fanout Deliverer, metrics *observability.Metrics, config RouterConfig) *Router {
	return &Router{
		log:              log,
		store:            store,
		presence:         presence,
		registry:         registry,
		typing:           typing,
		sequencer:        NewSequencer(),
		fanout:           fanout,
		censor:           config.Censor,
		validate:         validator.New(),
		metrics:          metrics,
		maxContentLength: config.MaxContentLength,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Handle dispatches the intent and fans its deliveries out. Any failure is
// reported to the requesting session only and leaves the connection open.
func (r *Router) Handle(ctx context.Context, session contract.Session, cmd domain.Command) {
	start := time.Now()
	outcome, err := r.Dispatch(ctx, session, cmd)
	if err != nil {
		r.reportFailure(ctx, session, cmd, err)
		return
	}
	r.fanout.Deliver(ctx, outcome.Deliveries...)
	outcome.Done()

	r.metrics.IntentsTotal.WithLabelValues(cmd.Intent(), "ok").Inc()
	r.metrics.IntentDuration.WithLabelValues(cmd.Intent()).Observe(time.Since(start).Seconds())
}

func (r *Router) reportFailure(ctx context.Context, session contract.Session, cmd domain.Command, err error) {
	code := errors.CodeOf(err)
	r.metrics.IntentsTotal.WithLabelValues(cmd.Intent(), string(code)).Inc()

	logArgs := []any{"intent", cmd.Intent(), "conn_id", session.ID(), "user_id", session.Identity().ID, "error", err}
	if code == errors.CodeInternalError {
		r.log.Error("Intent failed", logArgs...)
	} else {
		r.log.Debug("Intent refused", logArgs...)
	}
	r.fanout.Deliver(ctx, Delivery{
		Target: ToSession(session),
		Event:  event.Error{Message: errors.PublicMessage(err), Code: string(code)},
	})
}

// Dispatch validates and executes one intent. On success the caller must
// deliver the outcome and then call Done.
func (r *Router) Dispatch(ctx context.Context, session contract.Session, cmd domain.Command) (Outcome, error) {
	if err := r.validate.Struct(cmd); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}

	switch c := cmd.(type) {
	case *domain.JoinConversation:
		return Outcome{}, r.registry.Join(ctx, session, c.ConversationID)
	case *domain.LeaveConversation:
		return r.leaveConversation(session, c), nil
	case *domain.SendMessage:
		return r.sendMessage(ctx, session, c)
	case *domain.EditMessage:
		return r.editMessage(ctx, session, c)
	case *domain.DeleteMessage:
		return r.deleteMessage(ctx, session, c)
	case *domain.MarkMessageRead:
		return r.markMessageRead(ctx, session, c)
	case *domain.TypingStart:
		return r.typingStart(session, c), nil
	case *domain.TypingStop:
		return r.typingStop(session, c), nil
	case *domain.CreateConversation:
		return r.createConversation(ctx, session, c)
	case *domain.GetOnlineUsers:
		return deliver(ToSession(session), event.OnlineUsers(r.presence.ListAll())), nil
	default:
		return Outcome{}, errors.ErrUnknownEvent
	}
}

func deliver(target Target, evt event.Event) Outcome {
	return Outcome{Deliveries: []Delivery{{Target: target, Event: evt}}}
}

// leaveConversation also ends a typing indicator the connection left running in the room.
func (r *Router) leaveConversation(session contract.Session, c *domain.LeaveConversation) Outcome {
	room := domain.RoomOf(c.ConversationID)
	r.registry.Leave(session.ID(), room)

	identity := session.Identity()
	entry, wasTyping := r.typing.Stop(c.ConversationID, identity.ID)
	if !wasTyping {
		return Outcome{}
	}
	r.metrics.TypingActive.Set(float64(r.typing.Len()))
	return deliver(ToRoomExcept(room, identity.ID), event.NewUserStopTyping(entry.Identity, c.ConversationID))
}

func (r *Router) checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.ErrEmptyContent
	}
	if r.maxContentLength > 0 && utf8.RuneCountInString(content) > r.maxContentLength {
		return errors.ErrContentTooLong
	}
	return nil
}

func (r *Router) moderate(content string) string {
	if r.censor == nil {
		return content
	}
	censored, _ := r.censor.Censor(content)
	return censored
}

func (r *Router) sendMessage(ctx context.Context, session contract.Session, c *domain.SendMessage) (Outcome, error) {
	if err := r.checkContent(c.Content); err != nil {
		return Outcome{}, err
	}
	identity := session.Identity()
	room := domain.RoomOf(c.ConversationID)

	release := r.sequencer.Lock(c.ConversationID)
	member, err := r.store.IsDurableMember(ctx, c.ConversationID, identity.ID)
	if err != nil {
		release()
		return Outcome{}, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		release()
		return Outcome{}, errors.ErrNotAMember
	}

	message, err := r.store.InsertMessage(ctx, c.ConversationID, identity.ID, r.moderate(c.Content),
		lo.CoalesceOrEmpty(c.ContentType, domain.ContentText))
	if err != nil {
		release()
		return Outcome{}, fmt.Errorf("insert message: %w", err)
	}

	var deliveries []Delivery
	if _, wasTyping := r.typing.Stop(c.ConversationID, identity.ID); wasTyping {
		r.metrics.TypingActive.Set(float64(r.typing.Len()))
		deliveries = append(deliveries, Delivery{
			Target: ToRoomExcept(room, identity.ID),
			Event:  event.NewUserStopTyping(identity, c.ConversationID),
		})
	}
	deliveries = append(deliveries, Delivery{
		Target: ToRoom(room),
		Event:  event.NewMessageFrom(message, identity),
	})
	return Outcome{Deliveries: deliveries, release: release}, nil
}

func (r *Router) editMessage(ctx context.Context, session contract.Session, c *domain.EditMessage) (Outcome, error) {
	if err := r.checkContent(c.Content); err != nil {
		return Outcome{}, err
	}
	identity := session.Identity()

	message, err := r.store.GetMessage(ctx, c.MessageID)
	if err != nil {
		return Outcome{}, err
	}
	if message.SenderID != identity.ID {
		return Outcome{}, errors.ErrForbidden
	}

	content := r.moderate(c.Content)
	release := r.sequencer.Lock(message.ConversationID)
	updated, err := r.store.UpdateMessageContent(ctx, c.MessageID, identity.ID, content)
	if err != nil {
		release()
		return Outcome{}, fmt.Errorf("update message: %w", err)
	}
	if !updated {
		// deleted between the read and the write
		release()
		return Outcome{}, errors.ErrNotFound
	}

	editedAt := r.now()
	if fresh, err := r.store.GetMessage(ctx, c.MessageID); err == nil && fresh.EditedAt != nil {
		editedAt = *fresh.EditedAt
	}
	return Outcome{
		Deliveries: []Delivery{{
			Target: ToRoom(domain.RoomOf(message.ConversationID)),
			Event: event.MessageEdited{
				MessageID:      message.ID,
				ConversationID: message.ConversationID,
				Content:        content,
				EditedAt:       editedAt,
				EditedBy:       identity,
			},
		}},
		release: release,
	}, nil
}

// deleteMessage is allowed to the sender and to the admins of the conversation.
func (r *Router) deleteMessage(ctx context.Context, session contract.Session, c *domain.DeleteMessage) (Outcome, error) {
	identity := session.Identity()

	message, err := r.store.GetMessage(ctx, c.MessageID)
	if err != nil {
		return Outcome{}, err
	}
	if message.SenderID != identity.ID {
		role, err := r.store.MemberRole(ctx, message.ConversationID, identity.ID)
		switch {
		case errors.Is(err, errors.ErrNotAMember):
			return Outcome{}, errors.ErrForbidden
		case err != nil:
			return Outcome{}, fmt.Errorf("load role: %w", err)
		case role != domain.RoleAdmin:
			return Outcome{}, errors.ErrForbidden
		}
	}

	release := r.sequencer.Lock(message.ConversationID)
	deleted, err := r.store.DeleteMessageByID(ctx, c.MessageID, identity.ID)
	if err != nil {
		release()
		return Outcome{}, fmt.Errorf("delete message: %w", err)
	}
	if !deleted {
		release()
		return Outcome{}, errors.ErrNotFound
	}
	return Outcome{
		Deliveries: []Delivery{{
			Target: ToRoom(domain.RoomOf(message.ConversationID)),
			Event: event.MessageDeleted{
				MessageID:      message.ID,
				ConversationID: message.ConversationID,
				DeletedBy:      identity,
				DeletedAt:      r.now(),
			},
		}},
		release: release,
	}, nil
}

// markMessageRead notifies the original sender only, and never a user reading their own message.
func (r *Router) markMessageRead(ctx context.Context, session contract.Session, c *domain.MarkMessageRead) (Outcome, error) {
	identity := session.Identity()

	message, err := r.store.GetMessage(ctx, c.MessageID)
	if err != nil {
		return Outcome{}, err
	}
	member, err := r.store.IsDurableMember(ctx, message.ConversationID, identity.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return Outcome{}, errors.ErrNotInConversation
	}
	recorded, err := r.store.UpsertReadReceipt(ctx, c.MessageID, identity.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("upsert receipt: %w", err)
	}
	if !recorded {
		return Outcome{}, errors.ErrNotFound
	}

	if message.SenderID == identity.ID {
		return Outcome{}, nil
	}
	return deliver(ToUser(message.SenderID), event.MessageRead{
		MessageID:      message.ID,
		ConversationID: message.ConversationID,
		ReadBy: event.Reader{
			UserID:      identity.ID,
			Username:    identity.Username,
			DisplayName: identity.DisplayName,
			AvatarURL:   identity.AvatarURL,
		},
		Timestamp: r.now(),
	}), nil
}

// typingStart is a no-op for a room the connection does not listen to.
func (r *Router) typingStart(session contract.Session, c *domain.TypingStart) Outcome {
	room := domain.RoomOf(c.ConversationID)
	if !r.registry.IsSubscribed(session.ID(), room) {
		return Outcome{}
	}
	identity := session.Identity()
	r.typing.Start(c.ConversationID, identity, session.ID())
	r.metrics.TypingActive.Set(float64(r.typing.Len()))
	return deliver(ToRoomExcept(room, identity.ID), event.NewUserTyping(identity, c.ConversationID))
}

func (r *Router) typingStop(session contract.Session, c *domain.TypingStop) Outcome {
	room := domain.RoomOf(c.ConversationID)
	if !r.registry.IsSubscribed(session.ID(), room) {
		return Outcome{}
	}
	identity := session.Identity()
	r.typing.Stop(c.ConversationID, identity.ID)
	r.metrics.TypingActive.Set(float64(r.typing.Len()))
	return deliver(ToRoomExcept(room, identity.ID), event.NewUserStopTyping(identity, c.ConversationID))
}

// createConversation subscribes every online member to the new room before the
// creation event goes out. A direct conversation that already exists for the pair
// is handed back to the creator instead of being duplicated.
func (r *Router) createConversation(ctx context.Context, session contract.Session, c *domain.CreateConversation) (Outcome, error) {
	identity := session.Identity()
	others := lo.Uniq(lo.Without(c.MemberIDs, identity.ID))

	switch c.Type {
	case domain.ConversationDirect:
		if len(others) != 1 {
			return Outcome{}, errors.ErrDirectMemberCount
		}
		existing, found, err := r.store.FindExistingDirectConversation(ctx, identity.ID, others[0])
		if err != nil {
			return Outcome{}, fmt.Errorf("find direct conversation: %w", err)
		}
		if found {
			return r.existingConversation(ctx, session, existing)
		}
	case domain.ConversationGroup:
		if len(others) < 1 {
			return Outcome{}, errors.ErrGroupMemberCount
		}
	}

	conversation, err := r.store.CreateConversation(ctx, domain.NewConversation{
		Type:        c.Type,
		Title:       strings.TrimSpace(c.Title),
		CreatorID:   identity.ID,
		MemberIDs:   others,
		AvatarURL:   c.AvatarURL,
		CoverGifURL: c.CoverGifURL,
		Label:       c.Label,
	})
	if errors.Is(err, errors.ErrConversationExists) {
		// lost a race against the other member creating the same pair
		existing, found, findErr := r.store.FindExistingDirectConversation(ctx, identity.ID, others[0])
		if findErr != nil || !found {
			return Outcome{}, fmt.Errorf("find direct conversation: %w", err)
		}
		return r.existingConversation(ctx, session, existing)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("create conversation: %w", err)
	}

	room := domain.RoomOf(conversation.ID)
	created := event.ConversationCreated{Conversation: conversation, Creator: identity}
	var deliveries []Delivery
	for _, memberID := range conversation.MemberIDs {
		target := session
		if memberID != identity.ID {
			entry, online := r.presence.Get(memberID)
			if !online {
				continue
			}
			target = entry.Session
		}
		if r.registry.Subscribe(target.ID(), room) {
			deliveries = append(deliveries, Delivery{Target: ToSession(target), Event: created})
		}
	}
	r.log.Debug("Conversation created", "conversation_id", conversation.ID, "type", conversation.Type,
		"members", len(conversation.MemberIDs), "online", len(deliveries))
	return Outcome{Deliveries: deliveries}, nil
}

func (r *Router) existingConversation(ctx context.Context, session contract.Session, id domain.ConversationID) (Outcome, error) {
	conversation, err := r.store.GetConversation(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("load conversation: %w", err)
	}
	r.registry.Subscribe(session.ID(), domain.RoomOf(id))
	return deliver(ToSession(session), event.ConversationCreated{
		Conversation: conversation,
		Creator:      session.Identity(),
		Existing:     true,
	}), nil
}
