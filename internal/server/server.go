package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nearhub/chatd/internal/config"
	"github.com/nearhub/chatd/internal/repository"
	"github.com/nearhub/chatd/internal/service"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	router *http.ServeMux
}

func NewServer(cfg *config.Config, db *sqlx.DB, cache *redis.Client) *Server {
	msgRepo := repository.NewMessageRepo(db)
	reactionRepo := repository.NewReactionRepo(db)
	roomRepo := repository.NewRoomRepo(db)
	presenceRepo := repository.NewPresenceRepo(db)
	connRepo := repository.NewConnectionRepo(cache)

	broker := service.NewBroker(connRepo)
	registry := service.NewRegistry()

	chatSrv := service.NewChatService(msgRepo, reactionRepo, roomRepo, broker)
	presenceSrv := service.NewPresenceService(presenceRepo, roomRepo, broker)
	connSrv := service.NewConnService(chatSrv, presenceSrv, registry, connRepo)

	h := NewHandler(chatSrv, connSrv)

	return &Server{
		router: newRouter(h, cfg.JWT.Secret),
	}
}

func newRouter(h *Handler, jwtSecret string) *http.ServeMux {
	router := http.NewServeMux()
	router.HandleFunc("/ws", h.handleWS)

	chat := http.NewServeMux()
	chat.HandleFunc("GET /chat/dm/conversations/{user_id}", h.handleListConversations)
	chat.HandleFunc("GET /chat/dm/{other_user_id}", h.handlePaginateDirect)
	chat.HandleFunc("GET /chat/room/{room_id}/messages", h.handlePaginateGroup)
	chat.HandleFunc("POST /chat/reaction", h.handleToggleReaction)

	chat.HandleFunc("GET /chat/rooms/{user_id}", h.handleUserRooms)
	chat.HandleFunc("POST /chat/rooms", h.handleCreateRoom)
	chat.HandleFunc("POST /chat/rooms/{room_id}/members", h.handleAddRoomMember)

	// Deletion is realtime-only.
	chat.HandleFunc("DELETE /chat/dm/{message_id}", h.handleMethodNotAllowed)
	chat.HandleFunc("DELETE /chat/room/{room_id}/messages/{message_id}", h.handleMethodNotAllowed)

	var chatHandler http.Handler = chat
	if jwtSecret != "" {
		chatHandler = AuthMiddleware(jwtSecret)(chat)
	}
	router.Handle("/chat/", chatHandler)

	return router
}

func (s *Server) Run(addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			return
		}
	}()
	slog.Info("Server is running", "addr", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit

	ctx, shutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdown()

	slog.Info("Server exited")
	return server.Shutdown(ctx)
}
