package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/google/uuid"
)

// ShareActivityEvent is the payload broadcast over Redis and WebSocket
// whenever one of an operator's share links is accessed.
type ShareActivityEvent struct {
	Type        string    `json:"type"` // "share_access"
	OwnerID     string    `json:"owner_id"`
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name,omitempty"`
	ShareToken  string    `json:"share_token"`
	Status      string    `json:"status"` // mirrors AccessRecord.Status
	ViewerIP    string    `json:"viewer_ip,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// ActivityConn is the minimal interface our WebSocket implementation must satisfy.
type ActivityConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// activityHub is a registry of operator connections. An operator may hold
// several connections (multiple dashboard tabs).
type activityHub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]map[ActivityConn]struct{}
}

var (
	hub            = &activityHub{connections: make(map[uuid.UUID]map[ActivityConn]struct{})}
	activityStarted sync.Once
)

// RegisterActivityConn registers an operator's WebSocket connection.
func RegisterActivityConn(operatorID uuid.UUID, conn ActivityConn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.connections[operatorID] == nil {
		hub.connections[operatorID] = make(map[ActivityConn]struct{})
	}
	hub.connections[operatorID][conn] = struct{}{}
}

// UnregisterActivityConn removes a connection.
func UnregisterActivityConn(operatorID uuid.UUID, conn ActivityConn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if conns, ok := hub.connections[operatorID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(hub.connections, operatorID)
		}
	}
}

// fanOutActivityEvent sends an event to all local connections of its owner.
func fanOutActivityEvent(event ShareActivityEvent) {
	ownerID, err := uuid.Parse(event.OwnerID)
	if err != nil {
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for conn := range hub.connections[ownerID] {
		// Non-blocking best-effort send.
		go func(c ActivityConn) {
			if err := c.WriteJSON(event); err != nil {
				log.Printf("error writing activity event to websocket: %v", err)
			}
		}(conn)
	}
}

// StartActivitySubscriber ensures a single shared Redis listener per instance.
func StartActivitySubscriber(ctx context.Context) {
	activityStarted.Do(func() {
		go runActivitySubscriber(ctx)
	})
}

func runActivitySubscriber(ctx context.Context) {
	client := database.RedisClient
	if client == nil {
		log.Println("Redis client not initialized; activity subscriber not started")
		return
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := client.PSubscribe(ctx, "share:activity:*")
			defer pubsub.Close()

			log.Println("✅ Share activity Redis subscriber started (pattern: share:activity:*)")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					log.Printf("Redis subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event ShareActivityEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("failed to unmarshal activity event: %v", err)
					continue
				}

				fanOutActivityEvent(event)
			}
		}()
	}
}

// PublishShareActivity publishes an event to Redis; called by the share link
// engine on every resolve outcome worth surfacing to the owner.
func PublishShareActivity(ctx context.Context, event ShareActivityEvent) error {
	if database.RedisClient == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := "share:activity:" + event.OwnerID
	return database.RedisClient.Publish(ctx, channel, data).Err()
}
