package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bodysplice/internal/domain/stream"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/monitoring"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 << 10
)

// Message types sent by the server besides stream events.
const (
	TypeSyncState = "sync-state"
	TypePong      = "pong"
	TypeError     = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Debug channel; CORS middleware guards the REST surface
	},
}

// ClientMessage is what clients send.
type ClientMessage struct {
	Type string `json:"type"`
}

// SyncState is the first message on every connection.
type SyncState struct {
	Type      string        `json:"type"`
	Streams   []stream.Info `json:"streams"`
	Stats     stream.Stats  `json:"stats"`
	Timestamp int64         `json:"timestamp"`
}

type reply struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Handler manages WebSocket connections
type Handler struct {
	streams *stream.Manager
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(streams *stream.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		streams: streams,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleConnection upgrades the request and streams registry events until
// either side goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	subID, events, cancel := h.streams.Subscribe()
	defer cancel()
	logger := h.logger.With(zap.String("subscriber_id", subID))
	logger.Debug("debug subscriber connected")

	if err := h.send(conn, TypeSyncState, SyncState{
		Type:      TypeSyncState,
		Streams:   h.streams.List(),
		Stats:     h.streams.Stats(),
		Timestamp: time.Now().Unix(),
	}); err != nil {
		logger.Debug("sync-state write failed", zap.Error(err))
		return
	}

	replies := make(chan reply, 8)
	readDone := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go h.readLoop(conn, replies, readDone, stop)

	ctx := c.Request.Context()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := h.send(conn, string(e.Type), e); err != nil {
				logger.Debug("event write failed", zap.Error(err))
				return
			}
		case r := <-replies:
			if err := h.send(conn, r.Type, r); err != nil {
				logger.Debug("reply write failed", zap.Error(err))
				return
			}
		case <-readDone:
			logger.Debug("debug subscriber disconnected")
			return
		case <-ctx.Done():
			return
		}
	}
}

// readLoop owns the read side. Writes go through replies so only
// HandleConnection writes to conn.
func (h *Handler) readLoop(conn *websocket.Conn, replies chan<- reply, done chan<- struct{}, stop <-chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		r := reply{Type: TypePong, Timestamp: time.Now().Unix()}
		if err := sonic.Unmarshal(data, &msg); err != nil {
			r.Type, r.Message = TypeError, "malformed message"
		} else {
			h.recordMessage("in", msg.Type)
			if msg.Type != "ping" {
				r.Type, r.Message = TypeError, "unknown message type"
			}
		}

		select {
		case replies <- r:
		case <-stop:
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msgType string, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	h.recordMessage("out", msgType)
	return nil
}

func (h *Handler) recordMessage(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}
