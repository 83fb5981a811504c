package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/proposal-portal/internal/changesync"
	"github.com/ignatzorin/proposal-portal/internal/goroutine"
	"github.com/ignatzorin/proposal-portal/internal/interface/http/dto"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxCommandSize = 4 * 1024
	inboxSize      = 64
)

// Client представляет одно подключение WebSocket владельца и его сессию синхронизации.
type Client struct {
	conn    *websocket.Conn
	hub     *Hub
	session *changesync.Session
}

// NewClient создаёт нового клиента.
func NewClient(conn *websocket.Conn, hub *Hub, ownerID uuid.UUID) *Client {
	session := changesync.NewSession(ownerID, hub.Fetcher(), inboxSize,
		changesync.WithResyncHook(func(reason string) {
			metrics.SyncResyncs.WithLabelValues(reason).Inc()
		}),
	)
	return &Client{
		conn:    conn,
		hub:     hub,
		session: session,
	}
}

// Run регистрирует сессию и обслуживает соединение до его закрытия.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.hub.Register(ctx, c.session); err != nil {
		_ = c.conn.Close()
		return
	}
	defer c.hub.Unregister(c.session)

	log := logger.Log.WithField("owner_id", c.session.OwnerID())

	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		if err := c.session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("Сессия синхронизации завершилась с ошибкой")
		}
	})
	goroutine.SafeGo(func() {
		c.writePump()
		cancel()
	})

	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.WithError(err).Debug("WebSocket закрыт неожиданно")
			}
			return
		}

		var cmd dto.SyncClientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		if cmd.Type == "resync" {
			c.session.RequestResync(changesync.ReasonClient)
		}
	}
}

// writePump пишет сообщения сессии, пока она не завершится или соединение не оборвётся.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	messages := c.session.Messages()
	for {
		select {
		case msg, ok := <-messages:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(dto.ToSyncMessage(msg)); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
