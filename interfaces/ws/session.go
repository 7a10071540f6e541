// Package ws carries the two websocket surfaces: per-series observer
// channels and the qt control channel the translation GUI connects to.
package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tkcollect/logging"
)

const (
	writeWait = 10 * time.Second

	// A member whose outbox stays full for a publish is skipped for that
	// message, never waited on.
	outboxSize = 64
)

// session is one websocket connection registered as a bus member. Deliver
// never blocks the publisher: payloads go through a bounded outbox drained
// by the session's own write pump.
type session struct {
	id     string
	conn   *websocket.Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
	logger *logging.Logger
}

func newSession(conn *websocket.Conn, logger *logging.Logger) *session {
	return &session{
		id:     uuid.New().String(),
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (s *session) ID() string { return s.id }

// Deliver queues a broadcast payload for the write pump. It reports failure
// for a closed session or a full outbox; the bus logs and moves on.
func (s *session) Deliver(payload []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("session %s is closed", s.id)
	default:
	}

	select {
	case s.outbox <- payload:
		return nil
	default:
		return fmt.Errorf("session %s outbox is full", s.id)
	}
}

// writePump drains the outbox onto the wire in queue order. It owns all
// writes to the connection.
func (s *session) writePump() {
	for {
		select {
		case payload := <-s.outbox:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Transport("Session write failed", "session_id", s.id, "error", err.Error())
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// send marshals a server-initiated frame (error messages, direct replies)
// through the same outbox as broadcasts so wire writes stay single-threaded.
func (s *session) send(message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal session frame", "session_id", s.id, "error", err)
		return
	}
	if err := s.Deliver(payload); err != nil {
		s.logger.Transport("Dropped session frame", "session_id", s.id, "error", err.Error())
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
