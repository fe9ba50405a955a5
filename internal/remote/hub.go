// Package remote exposes a websocket endpoint through which another process,
// typically a browser running a speech recogniser, feeds voice activity.
package remote

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/prompter/internal/audio"
	"github.com/lexiqai/prompter/internal/voice"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 8
)

// Message types exchanged on the socket
const (
	TypeResult      = "result"
	TypeSpeechStart = "speech_start"
	TypeSpeechEnd   = "speech_end"
	TypeError       = "error"
	TypeEnd         = "end"
	TypeMedia       = "media"

	// pushed by the server
	TypeStart = "start"
	TypeStop  = "stop"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The endpoint is meant for a local browser tab; restrict with a proxy if exposed
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Message is one JSON frame on the socket
type Message struct {
	Type     string `json:"type"`
	Error    string `json:"error,omitempty"`
	Payload  string `json:"payload,omitempty"`  // Base64 audio for media frames
	Encoding string `json:"encoding,omitempty"` // linear16 (default) or mulaw
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Message
	vad  *audio.VADDetector

	// samples left over after the last full frame, owned by readPump
	pending []int16
}

// Hub is a voice.Source fed by websocket clients. Every connected client
// receives start/stop frames that mirror the listening state.
type Hub struct {
	logger    zerolog.Logger
	vadConfig *audio.VADConfig
	onBytes   func(n int)

	mu      sync.Mutex
	clients map[*client]struct{}
	ev      voice.Events
}

// NewHub creates a hub. vadConfig tunes detection on media frames; nil uses defaults.
func NewHub(vadConfig *audio.VADConfig, logger zerolog.Logger) *Hub {
	if vadConfig == nil {
		vadConfig = audio.DefaultVADConfig()
	}
	return &Hub{
		logger:    logger.With().Str("component", "remote").Logger(),
		vadConfig: vadConfig,
		clients:   make(map[*client]struct{}),
	}
}

// OnBytes registers a callback for decoded media bytes, for metrics
func (h *Hub) OnBytes(fn func(n int)) {
	h.onBytes = fn
}

// Supported is always true: clients may connect at any time
func (h *Hub) Supported() bool {
	return true
}

// Start activates the hub and tells clients to start recognising
func (h *Hub) Start(ev voice.Events) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ev = ev
	h.broadcastLocked(Message{Type: TypeStart})
	return nil
}

// Stop deactivates the hub and tells clients to stop
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ev == nil {
		return
	}
	h.ev = nil
	h.broadcastLocked(Message{Type: TypeStop})
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Message, sendBuffer),
		vad:  audio.NewVADDetector(h.vadConfig),
	}
	h.register(c)
	h.logger.Info().Str("client_id", c.id).Msg("Voice client connected")

	go h.writePump(c)
	h.readPump(c)
	h.unregister(c)
	h.logger.Info().Str("client_id", c.id).Msg("Voice client disconnected")
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.ev != nil {
		c.send <- Message{Type: TypeStart}
	}
}

// unregister removes c. Losing the last client while active ends the activation.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	var ev voice.Events
	if len(h.clients) == 0 && h.ev != nil {
		ev = h.ev
		h.ev = nil
	}
	h.mu.Unlock()

	if ev != nil {
		ev.End()
	}
}

func (h *Hub) broadcastLocked(msg Message) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn().Str("client_id", c.id).Msg("Client send buffer full, dropping frame")
		}
	}
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			h.logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket write error")
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (h *Hub) readPump(c *client) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Error().Err(err).Msg("Failed to parse voice message")
			continue
		}
		h.handle(c, msg)
	}
}

func (h *Hub) current() voice.Events {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ev
}

func (h *Hub) handle(c *client, msg Message) {
	ev := h.current()
	if ev == nil {
		return
	}

	switch msg.Type {
	case TypeResult:
		ev.Result()
	case TypeSpeechStart:
		ev.SpeechStart()
	case TypeSpeechEnd:
		ev.SpeechEnd()
	case TypeError:
		ev.Error(voice.NewSourceError(msg.Error, nil))
	case TypeEnd:
		h.mu.Lock()
		if h.ev == ev {
			h.ev = nil
		}
		h.mu.Unlock()
		ev.End()
	case TypeMedia:
		h.handleMedia(c, msg, ev)
	default:
		h.logger.Debug().Str("type", msg.Type).Msg("Unknown voice message")
	}
}

// handleMedia runs the energy detector over a chunk of client audio
func (h *Hub) handleMedia(c *client, msg Message, ev voice.Events) {
	data, err := base64.StdEncoding.DecodeString(msg.Payload)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to decode base64 audio")
		return
	}
	if msg.Encoding == audio.EncodingMulaw {
		if data, err = audio.ConvertPCMUToPCM(data); err != nil {
			return
		}
	}
	if h.onBytes != nil {
		h.onBytes(len(data))
	}

	samples, err := audio.BytesToSamples(data)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Dropping malformed audio chunk")
		return
	}
	if len(c.pending) > 0 {
		samples = append(c.pending, samples...)
	}
	size := h.vadConfig.FrameSize
	start := 0
	for ; start+size <= len(samples); start += size {
		_, started, ended := c.vad.ProcessFrame(samples[start : start+size])
		switch {
		case started:
			ev.SpeechStart()
		case ended:
			ev.SpeechEnd()
		}
	}
	c.pending = append(c.pending[:0], samples[start:]...)
}
