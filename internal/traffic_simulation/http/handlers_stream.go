package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamSessionEvents relays the session's pub/sub channel as Server-Sent
// Events: "tick" for tick summaries and "session" for status changes.
func (h *Handler) StreamSessionEvents(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	session, err := h.sessions.GetSession(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	sub := h.events.Subscribe(ctx, id)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		h.log.Warn().Err(err).Str("session_id", id).Msg("subscribe to session events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	initialData, _ := json.Marshal(gin.H{"session": session})
	fmt.Fprintf(c.Writer, "event: initial\ndata: %s\n\n", string(initialData))
	flusher.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case msg, ok := <-messages:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", eventName(msg.Payload), msg.Payload)
			flusher.Flush()
		}
	}
}

func eventName(payload string) string {
	var peek struct {
		Status *string `json:"status"`
	}
	if err := json.Unmarshal([]byte(payload), &peek); err == nil && peek.Status != nil {
		return "session"
	}
	return "tick"
}
