package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/gorilla/websocket"
)

var activityUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer; the upgrader accepts all.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	activityPongWait   = 60 * time.Second
	activityPingPeriod = 50 * time.Second
)

// syncConn serializes writes. The hub fans out events from multiple
// goroutines and gorilla connections permit only one concurrent writer.
type syncConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *syncConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *syncConn) Close() error {
	return c.conn.Close()
}

// ShareActivitySocket upgrades to a WebSocket that streams live share access
// events for the authenticated operator. Browsers cannot set headers on
// WebSocket dials, so the token may also ride in a ?token= query param.
func ShareActivitySocket(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		if q := r.URL.Query().Get("token"); q != "" {
			r.Header.Set("Authorization", "Bearer "+q)
		}
	}

	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := activityUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	wrapped := &syncConn{conn: conn}
	services.RegisterActivityConn(op.ID, wrapped)
	defer func() {
		services.UnregisterActivityConn(op.ID, wrapped)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(activityPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(activityPongWait))
	})

	// Keepalive pings; the read loop below notices the peer going away.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(activityPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	// The stream is one-way. Reads exist only to process control frames and
	// detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
