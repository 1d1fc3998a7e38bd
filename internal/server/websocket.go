package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleStream upgrades a viewer connection, greets it with the current
// latest reading, then pushes one reading per ingestion until the peer goes
// away or stops draining.
func (api *API) handleStream(response http.ResponseWriter, request *http.Request) {
	conn, err := upgrader.Upgrade(response, request, nil)
	if err != nil {
		api.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	subscriber := api.hub.Subscribe()
	api.logger.Info("subscriber connected", zap.String("subscriber", subscriber.ID.String()))

	go api.readLoop(conn, subscriber.ID)
	api.writeLoop(conn, subscriber)
}

// readLoop discards inbound frames; viewers never send data. It exists to
// notice the peer hanging up and release the subscription.
func (api *API) readLoop(conn *websocket.Conn, id uuid.UUID) {
	defer func() {
		api.hub.Unsubscribe(id)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (api *API) writeLoop(conn *websocket.Conn, subscriber *Subscriber) {
	pinger := time.NewTicker(pingPeriod)
	defer func() {
		pinger.Stop()
		api.hub.Unsubscribe(subscriber.ID)
		conn.Close()
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(api.latest.Get()); err != nil {
		return
	}

	for {
		select {
		case reading, open := <-subscriber.C:
			if !open {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				)
				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(reading); err != nil {
				api.logger.Debug(
					"subscriber send failed",
					zap.String("subscriber", subscriber.ID.String()),
					zap.Error(err),
				)
				return
			}
		case <-pinger.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
