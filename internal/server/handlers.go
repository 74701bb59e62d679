package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nearhub/chatd/internal/domain"
	"github.com/nearhub/chatd/internal/repository"
	"github.com/nearhub/chatd/internal/service"
)

type Handler struct {
	chatSrv  service.ChatServiceIn
	connSrv  *service.ConnService
	upgrader *websocket.Upgrader
}

func NewHandler(chatSrv service.ChatServiceIn, connSrv *service.ConnService) *Handler {
	return &Handler{
		chatSrv: chatSrv,
		connSrv: connSrv,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferPool: &sync.Pool{},
		},
	}
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handleError(w, err)
		return
	}

	h.connSrv.HandleConn(r.Context(), conn)
}

// GET /chat/dm/{other_user_id}?current_user_id=&skip=&take=
func (h *Handler) handlePaginateDirect(w http.ResponseWriter, r *http.Request) {
	otherUserID := r.PathValue("other_user_id")

	currentUserID := r.URL.Query().Get("current_user_id")
	if currentUserID == "" {
		handleError(w, domain.ErrInvalidRequest.WithMessage("current_user_id is required"))
		return
	}

	skip, take := pageParams(r)

	messages, err := h.chatSrv.PaginateDirect(r.Context(), currentUserID, otherUserID, skip, take)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &DirectMessagesResponse{Messages: messages})
}

// GET /chat/room/{room_id}/messages?skip=&take=
func (h *Handler) handlePaginateGroup(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	skip, take := pageParams(r)

	messages, err := h.chatSrv.PaginateGroup(r.Context(), roomID, skip, take)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &GroupMessagesResponse{Messages: messages})
}

// GET /chat/dm/conversations/{user_id}
func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	summaries, err := h.chatSrv.ListConversations(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &ConversationsResponse{Conversations: summaries})
}

// POST /chat/reaction
func (h *Handler) handleToggleReaction(w http.ResponseWriter, r *http.Request) {
	var in ToggleReactionJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}

	ref, ok := toggleRef(&in)
	if !ok {
		handleError(w, domain.ErrInvalidRequest.WithMessage("exactly one of direct_message_id/group_message_id is required"))
		return
	}

	action, reaction, err := h.chatSrv.ToggleReaction(r.Context(), in.UserID, in.Emoji, ref)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &ToggleReactionResponse{
		Action:   action,
		Reaction: reaction,
	})
}

// GET /chat/rooms/{user_id}
func (h *Handler) handleUserRooms(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	rooms, err := h.chatSrv.UserRooms(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &RoomsResponse{Rooms: rooms})
}

// POST /chat/rooms
func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var in NewRoomJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}
	if in.Name == "" || in.UserID == "" {
		handleError(w, domain.ErrInvalidRequest.WithMessage("name and user_id are required"))
		return
	}

	room, err := h.chatSrv.CreateRoom(r.Context(), in.Name, in.UserID)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

// POST /chat/rooms/{room_id}/members
func (h *Handler) handleAddRoomMember(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	var in NewRoomMemberJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		handleError(w, domain.ErrInvalidRequest)
		return
	}
	if in.UserID == "" {
		handleError(w, domain.ErrInvalidRequest.WithMessage("user_id is required"))
		return
	}

	if err := h.chatSrv.AddRoomMember(r.Context(), roomID, in.UserID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	handleError(w, domain.ErrMethodNotAllowed)
}

func pageParams(r *http.Request) (skip, take int) {
	take = repository.DefaultPageSize

	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil && v >= 0 {
		skip = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("take")); err == nil && v > 0 && v <= 100 {
		take = v
	}
	return skip, take
}

func toggleRef(in *ToggleReactionJSON) (domain.MessageRef, bool) {
	switch {
	case in.DirectMessageID != nil && in.GroupMessageID == nil:
		return domain.MessageRef{Kind: domain.DirectKind, MessageID: *in.DirectMessageID}, true
	case in.GroupMessageID != nil && in.DirectMessageID == nil:
		return domain.MessageRef{Kind: domain.GroupKind, MessageID: *in.GroupMessageID}, true
	default:
		return domain.MessageRef{}, false
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
