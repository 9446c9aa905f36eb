package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// MessageHandler is called for every raw message from the stream
type MessageHandler func(msg json.RawMessage) error

// ReconnectHandler is called after the stream re-establishes a dropped
// connection, once the resubscription was sent.
type ReconnectHandler func()

// ReconnectConfig controls reconnection behavior
type ReconnectConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:        10,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

// StreamClient maintains a WebSocket subscription to exchange topics and
// redials with exponential backoff when the connection drops. State changes
// can happen while disconnected, so reconnect handlers give the rest of the
// system a hook to resynchronize.
type StreamClient struct {
	streamURL       string
	reconnectConfig ReconnectConfig
	logger          *logrus.Logger

	mu                sync.RWMutex
	conn              *websocket.Conn
	isConnected       bool
	topics            []string
	handlers          []MessageHandler
	reconnectHandlers []ReconnectHandler
	lastMessageTime   time.Time
	closed            bool
}

// NewStreamClient creates a stream client for the given URL
func NewStreamClient(streamURL string, logger *logrus.Logger) *StreamClient {
	if logger == nil {
		logger = logrus.New()
	}
	return &StreamClient{
		streamURL:       streamURL,
		reconnectConfig: DefaultReconnectConfig(),
		logger:          logger,
	}
}

// AddHandler registers a message handler
func (s *StreamClient) AddHandler(handler MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// OnReconnect registers a handler fired after each successful reconnect
func (s *StreamClient) OnReconnect(handler ReconnectHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnectHandlers = append(s.reconnectHandlers, handler)
}

// Connect dials the stream and starts the read loop
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isConnected {
		return fmt.Errorf("already connected")
	}
	if err := s.dial(ctx); err != nil {
		return err
	}
	go s.readMessages(ctx)
	return nil
}

// Subscribe sends a subscription for the given topics and remembers them for
// resubscription after reconnects.
func (s *StreamClient) Subscribe(topics ...string) error {
	s.mu.Lock()
	s.topics = append(s.topics, topics...)
	conn := s.conn
	connected := s.isConnected
	s.mu.Unlock()

	if !connected || conn == nil {
		return fmt.Errorf("not connected to stream")
	}
	return conn.WriteJSON(map[string]any{"op": "subscribe", "args": topics})
}

// IsConnected reports whether the stream currently has a live connection
func (s *StreamClient) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected
}

// LastMessageTime returns when the stream last received anything
func (s *StreamClient) LastMessageTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMessageTime
}

// Close stops the stream permanently; no reconnect is attempted
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.isConnected = false
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// dial assumes s.mu is held
func (s *StreamClient) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.streamURL, nil)
	if err != nil {
		return fmt.Errorf("connecting to stream: %w", err)
	}
	s.conn = conn
	s.isConnected = true
	s.lastMessageTime = time.Now()
	s.logger.WithField("url", s.streamURL).Info("Stream connected")
	return nil
}

func (s *StreamClient) readMessages(ctx context.Context) {
	for {
		s.mu.RLock()
		conn := s.conn
		closed := s.closed
		s.mu.RUnlock()
		if closed || conn == nil {
			return
		}

		var msg json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.mu.Lock()
			s.isConnected = false
			closed = s.closed
			s.mu.Unlock()
			if closed || ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).Warn("Stream read failed, reconnecting")
			if !s.reconnect(ctx) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.lastMessageTime = time.Now()
		handlers := s.handlers
		s.mu.Unlock()

		for _, handler := range handlers {
			if err := handler(msg); err != nil {
				s.logger.WithError(err).Error("Stream handler failed")
			}
		}
	}
}

// reconnect redials with exponential backoff, resubscribes, then notifies
// reconnect handlers. Returns false when retries are exhausted.
func (s *StreamClient) reconnect(ctx context.Context) bool {
	backoff := s.reconnectConfig.InitialBackoff

	for attempt := 1; attempt <= s.reconnectConfig.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return false
		}
		err := s.dial(ctx)
		topics := s.topics
		conn := s.conn
		s.mu.Unlock()

		if err == nil {
			if len(topics) > 0 {
				if subErr := conn.WriteJSON(map[string]any{"op": "subscribe", "args": topics}); subErr != nil {
					s.logger.WithError(subErr).Warn("Resubscribe failed")
					continue
				}
			}
			s.mu.RLock()
			handlers := s.reconnectHandlers
			s.mu.RUnlock()
			for _, handler := range handlers {
				handler()
			}
			return true
		}

		s.logger.WithError(err).WithField("attempt", attempt).Warn("Reconnect attempt failed")
		backoff = time.Duration(float64(backoff) * s.reconnectConfig.BackoffMultiplier)
		if backoff > s.reconnectConfig.MaxBackoff {
			backoff = s.reconnectConfig.MaxBackoff
		}
	}

	s.logger.Error("Stream reconnect retries exhausted")
	return false
}
