package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go.viam.com/rgbdview/logging"
	"go.viam.com/rgbdview/viewer"
)

const writeWait = 2 * time.Second

// stateHub pushes viewer state to every connected panel. It is registered as a viewer observer.
type stateHub struct {
	mu     sync.Mutex
	logger logging.Logger
	conns  map[*websocket.Conn]struct{}
}

func newStateHub(logger logging.Logger) *stateHub {
	return &stateHub{logger: logger, conns: map[*websocket.Conn]struct{}{}}
}

func (h *stateHub) add(conn *websocket.Conn, st viewer.State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.write(conn, st); err != nil {
		return err
	}
	h.conns[conn] = struct{}{}
	return nil
}

func (h *stateHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		if err := conn.Close(); err != nil {
			h.logger.Debugw("closing panel connection", "error", err)
		}
	}
}

func (h *stateHub) write(conn *websocket.Conn, st viewer.State) error {
	msg, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// SyncFromState implements viewer.Observer. Panels that cannot keep up are dropped.
func (h *stateHub) SyncFromState(st viewer.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := h.write(conn, st); err != nil {
			h.logger.Debugw("dropping panel", "remote", conn.RemoteAddr().String(), "error", err)
			delete(h.conns, conn)
			//nolint:errcheck
			conn.Close()
		}
	}
}

func (h *stateHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *stateHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		//nolint:errcheck
		conn.Close()
	}
	h.conns = map[*websocket.Conn]struct{}{}
}
