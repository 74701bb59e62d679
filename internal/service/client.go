package service

import (
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Client is one websocket connection. It starts anonymous; userID is set by
// the authenticate handshake.
type Client struct {
	userID   string
	conn     *websocket.Conn
	pubsub   *redis.PubSub
	outboard <-chan *redis.Message
}

func NewClient(conn *websocket.Conn, pubsub *redis.PubSub) *Client {
	return &Client{
		conn:     conn,
		pubsub:   pubsub,
		outboard: pubsub.Channel(),
	}
}

func (c *Client) Authenticated() bool {
	return c.userID != ""
}
