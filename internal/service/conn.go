package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nearhub/chatd/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ConnService runs the lifecycle of a websocket connection: the anonymous ->
// authenticated -> disconnected state machine, event dispatch, and the
// fan-in of the connection's pub/sub subscription.
type ConnService struct {
	chat     ChatServiceIn
	presence PresenceServiceIn
	registry *Registry
	connRepo ConnectionRepoIn
}

func NewConnService(chat ChatServiceIn, presence PresenceServiceIn, registry *Registry, connRepo ConnectionRepoIn) *ConnService {
	return &ConnService{
		chat:     chat,
		presence: presence,
		registry: registry,
		connRepo: connRepo,
	}
}

func (s *ConnService) HandleConn(ctx context.Context, conn *websocket.Conn) {
	pubsub := s.connRepo.Subscribe(ctx)
	client := NewClient(conn, pubsub)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	defer func() {
		s.drop(client)
		conn.Close()
		pubsub.Close()
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.read(ctx, client)
	})

	g.Go(func() error {
		return s.write(ctx, client)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		slog.Error("Connection handler exited", "user_id", client.userID, "error", err)
	}
}

// drop releases the user binding; the presence transition fires only when
// the last of the user's connections goes away.
func (s *ConnService) drop(client *Client) {
	if !client.Authenticated() {
		return
	}

	if remaining := s.registry.Unregister(client.userID, client); remaining > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.presence.Disconnected(ctx, client.userID)
}

func (s *ConnService) read(ctx context.Context, client *Client) error {
	client.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			var envelope Envelope
			if err := client.conn.ReadJSON(&envelope); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
					websocket.CloseNoStatusReceived,
					websocket.CloseNormalClosure) {
					slog.Error("Websocket close error", "error", err)
				}
				return context.Canceled
			}

			s.dispatch(ctx, client, &envelope)
		}
	}
}

// dispatch routes one inbound event. Malformed payloads are logged and
// dropped; there is no error reply on this surface.
func (s *ConnService) dispatch(ctx context.Context, client *Client, envelope *Envelope) {
	switch envelope.Type {
	case domain.AuthenticateType:
		var p AuthenticatePayload
		if !decode(envelope, &p) {
			return
		}
		s.authenticate(ctx, client, p.UserID)

	case domain.JoinRoomsType:
		var p JoinRoomsPayload
		if !decode(envelope, &p) {
			return
		}
		s.joinRooms(ctx, client, p.RoomIDs)

	case domain.DirectSendType:
		var p DirectSendPayload
		if !decode(envelope, &p) {
			return
		}
		s.chat.SendDirect(ctx, &p)

	case domain.GroupSendType:
		var p GroupSendPayload
		if !decode(envelope, &p) {
			return
		}
		s.chat.SendGroup(ctx, &p)

	case domain.ReactionToggleType:
		var p ReactionTogglePayload
		if !decode(envelope, &p) {
			return
		}
		ref, ok := reactionRef(&p)
		if !ok {
			slog.Warn("Reaction toggle without exactly one message id", "user_id", p.UserID)
			return
		}
		s.chat.ToggleReaction(ctx, p.UserID, p.Emoji, ref)

	case domain.MessageDeleteType:
		var p MessageDeletePayload
		if !decode(envelope, &p) {
			return
		}
		s.chat.DeleteMessage(ctx, p.UserID, p.MessageID, p.MessageType)

	case domain.TypingStartType, domain.TypingStopType:
		var p TypingPayload
		if !decode(envelope, &p) {
			return
		}
		s.chat.Typing(ctx, client.userID, &p, envelope.Type == domain.TypingStartType)

	default:
		slog.Warn("Unknown event type", "type", envelope.Type)
	}
}

func (s *ConnService) authenticate(ctx context.Context, client *Client, userID string) {
	if userID == "" {
		slog.Warn("Authenticate without user id")
		return
	}
	if client.Authenticated() {
		slog.Warn("Connection already authenticated", "user_id", client.userID)
		return
	}

	client.userID = userID

	if err := client.pubsub.Subscribe(ctx, userChannel(userID)); err != nil {
		slog.Error("Failed to subscribe user channel", "user_id", userID, "error", err)
		return
	}

	if s.registry.Register(userID, client) == 1 {
		s.presence.Connected(ctx, userID)
	}
}

// joinRooms may happen before or after authenticate.
func (s *ConnService) joinRooms(ctx context.Context, client *Client, roomIDs []string) {
	if len(roomIDs) == 0 {
		return
	}

	channels := make([]string, len(roomIDs))
	for i, roomID := range roomIDs {
		channels[i] = roomChannel(roomID)
	}

	if err := client.pubsub.Subscribe(ctx, channels...); err != nil {
		slog.Error("Failed to subscribe room channels", "user_id", client.userID, "error", err)
	}
}

func (s *ConnService) write(ctx context.Context, client *Client) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Error("Failed to write ping message", "error", err)
				return err
			}
		case msg, ok := <-client.outboard:
			if !ok {
				return nil
			}

			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				slog.Error("Failed to write event", "user_id", client.userID, "error", err)
				return err
			}
		}
	}
}

func decode(envelope *Envelope, out any) bool {
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		slog.Error("Failed to unmarshal event payload", "type", envelope.Type, "error", err)
		return false
	}
	return true
}

// reactionRef demands exactly one of the two message ids.
func reactionRef(p *ReactionTogglePayload) (domain.MessageRef, bool) {
	switch {
	case p.DirectMessageID != nil && p.GroupMessageID == nil:
		return domain.MessageRef{Kind: domain.DirectKind, MessageID: *p.DirectMessageID}, true
	case p.GroupMessageID != nil && p.DirectMessageID == nil:
		return domain.MessageRef{Kind: domain.GroupKind, MessageID: *p.GroupMessageID}, true
	default:
		return domain.MessageRef{}, false
	}
}
