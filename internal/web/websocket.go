package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleStream pushes the view summary on connect and after every
// replacement until the client goes away or the handler is closed.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.warningf("websocket upgrade: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	updates, cancel := h.cfg.Views.Subscribe()
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
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
	}()

	if !h.pushSummary(conn) {
		return
	}
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-h.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
			return
		case <-gone:
			return
		case <-updates:
			if !h.pushSummary(conn) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// pushSummary writes the current summary, if any. It reports whether the
// connection is still usable.
func (h *Handler) pushSummary(conn *websocket.Conn) bool {
	view, ok := h.cfg.Views.Current()
	if !ok {
		return true
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(view.Summary()); err != nil {
		h.debugf("websocket write: %v", err)
		return false
	}
	return true
}

func (h *Handler) debugf(format string, args ...interface{}) {
	if h.cfg.Logger != nil {
		h.cfg.Logger.Debugf(format, args...)
	}
}

func (h *Handler) warningf(format string, args ...interface{}) {
	if h.cfg.Logger != nil {
		h.cfg.Logger.Warningf(format, args...)
	}
}
