package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bodysplice/internal/domain/stream"
	"github.com/GriffinCanCode/bodysplice/internal/inject"
	"github.com/GriffinCanCode/bodysplice/internal/shared/id"
)

// InjectRequest is the body of POST /streams/:id/inject.
type InjectRequest struct {
	Markup   string          `json:"markup" binding:"required"`
	Position inject.Position `json:"position"`
}

// ListStreams returns every live stream
func (h *Handlers) ListStreams(c *gin.Context) {
	streams := h.streams.List()

	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"stats":   h.streams.Stats(),
	})
}

// GetStream returns one live stream
func (h *Handlers) GetStream(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Info())
}

// Inject queues a fragment on a live stream. It is written at the next
// direct child of body once the stream is ready.
func (h *Handlers) Inject(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req InjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	frag, err := h.sanitizer.Fragment([]byte(req.Markup), inject.SourceAPI, req.Position)
	if err != nil {
		h.recordRejected("invalid")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if err := session.Enqueue(frag); err != nil {
		status := http.StatusInternalServerError
		reason := "error"
		switch {
		case errors.Is(err, inject.ErrQueueFull):
			status, reason = http.StatusTooManyRequests, "queue_full"
		case errors.Is(err, inject.ErrClosed):
			status, reason = http.StatusGone, "closed"
		case errors.Is(err, stream.ErrNotStreaming):
			status, reason = http.StatusConflict, "not_html"
		}
		h.recordRejected(reason)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.logger.Debug("fragment queued",
		zap.String("stream_id", session.ID.String()),
		zap.String("fragment_id", frag.ID.String()),
		zap.String("position", string(frag.Position)))

	c.JSON(http.StatusAccepted, gin.H{
		"stream_id": session.ID,
		"fragment":  frag,
	})
}

func (h *Handlers) lookup(c *gin.Context) (*stream.Session, bool) {
	raw := c.Param("id")
	if !id.IsStreamID(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stream id"})
		return nil, false
	}

	session, ok := h.streams.Get(id.StreamID(raw))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": stream.ErrNotFound.Error()})
		return nil, false
	}
	return session, true
}
