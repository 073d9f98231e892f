package lcu

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientEvent is one frame from the client's event bus.
type ClientEvent struct {
	URI       string          `json:"uri"`
	Data      json.RawMessage `json:"data"`
	EventType string          `json:"eventType"`
}

// EventHandler receives decoded client events.
type EventHandler func(event ClientEvent)

const aggregateTopic = "OnJsonApiEvent"

// EventChannel is the persistent subscription to the client's event bus.
// It re-dials after a short delay for as long as the credentials stand and
// stops permanently once they are cleared.
type EventChannel struct {
	creds          Credentials
	handler        EventHandler
	reconnectDelay time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped bool
	stopCh  chan struct{}
}

// NewEventChannel creates an event channel for the given credentials.
func NewEventChannel(creds Credentials, reconnectDelay time.Duration, handler EventHandler, logger *zap.Logger) *EventChannel {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	return &EventChannel{
		creds:          creds,
		handler:        handler,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(zap.String("component", "event-channel")),
		stopCh:         make(chan struct{}),
	}
}

// Start begins the connect/read/reconnect loop. Blocks until Stop.
func (ec *EventChannel) Start() {
	for {
		select {
		case <-ec.stopCh:
			return
		default:
		}

		if err := ec.connectAndRead(); err != nil {
			ec.logger.Debug("Event channel disconnected", zap.Error(err))
		}

		select {
		case <-ec.stopCh:
			return
		case <-time.After(ec.reconnectDelay):
		}
	}
}

// Stop closes the channel permanently.
func (ec *EventChannel) Stop() {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if ec.stopped {
		return
	}
	ec.stopped = true
	close(ec.stopCh)
	if ec.conn != nil {
		ec.conn.Close()
	}
}

func (ec *EventChannel) connectAndRead() error {
	dialer := websocket.Dialer{
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		HandshakeTimeout: 5 * time.Second,
	}
	header := http.Header{}
	header.Set("Authorization", ec.creds.AuthHeader())

	conn, _, err := dialer.Dial(ec.creds.WebsocketURL(), header)
	if err != nil {
		return err
	}

	ec.mu.Lock()
	if ec.stopped {
		ec.mu.Unlock()
		conn.Close()
		return nil
	}
	ec.conn = conn
	ec.mu.Unlock()

	// One subscribe frame for the aggregate topic covers every uri.
	subscribe := []any{5, aggregateTopic}
	if err := conn.WriteJSON(subscribe); err != nil {
		conn.Close()
		return err
	}

	ec.logger.Info("Event channel subscribed")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return err
		}
		event, ok := decodeEventFrame(payload)
		if !ok {
			continue
		}
		ec.handler(event)
	}
}

// decodeEventFrame parses [8, "OnJsonApiEvent", {uri, data, eventType}].
// Malformed frames are dropped silently.
func decodeEventFrame(payload []byte) (ClientEvent, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(payload, &frame); err != nil || len(frame) < 3 {
		return ClientEvent{}, false
	}

	var opcode int
	if err := json.Unmarshal(frame[0], &opcode); err != nil || opcode != 8 {
		return ClientEvent{}, false
	}
	var topic string
	if err := json.Unmarshal(frame[1], &topic); err != nil || topic != aggregateTopic {
		return ClientEvent{}, false
	}

	var event ClientEvent
	if err := json.Unmarshal(frame[2], &event); err != nil {
		return ClientEvent{}, false
	}
	return event, true
}
