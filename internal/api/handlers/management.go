package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var logStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Management access is guarded by the key middleware, not the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Usage serves GET /v0/management/usage.
func (h *Handler) Usage(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Snapshot())
}

// LogStream serves GET /v0/management/logs: a websocket that replays the
// retained log tail and then follows new entries until the client leaves.
func (h *Handler) LogStream(c *gin.Context) {
	conn, err := logStreamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("management: websocket upgrade failed: %v", err)
		return
	}
	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Debugf("management: websocket close: %v", errClose)
		}
	}()

	for _, line := range h.broadcaster.Backlog() {
		if errWrite := conn.WriteMessage(websocket.TextMessage, line); errWrite != nil {
			return
		}
	}

	lines, cancel := h.broadcaster.Subscribe()
	defer cancel()

	// The read loop exists to detect the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, errRead := conn.ReadMessage(); errRead != nil {
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if errWrite := conn.WriteMessage(websocket.TextMessage, line); errWrite != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
