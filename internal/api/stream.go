package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// streamAlarms serves the alarm lifecycle as server-sent events. Each
// event carries the same JSON the notification channels receive. A
// client that stops reading loses frames rather than backing up the
// alarm engine.
func (s *Server) streamAlarms(c *gin.Context) {
	if s.stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream not ready"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := s.stream.Subscribe()
	defer s.stream.Unsubscribe(ch)

	_, _ = c.Writer.WriteString("event: ready\ndata: {}\n\n")
	c.Writer.Flush()

	done := c.Request.Context().Done()
	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = c.Writer.WriteString("event: alarm\ndata: ")
			_, _ = c.Writer.Write(payload)
			_, _ = c.Writer.WriteString("\n\n")
			c.Writer.Flush()
		case <-done:
			return
		}
	}
}
