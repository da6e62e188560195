package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/birising/OT-honey/internal/audit"
	"github.com/birising/OT-honey/internal/auth"
	"github.com/birising/OT-honey/internal/observability/metrics"
)

func metricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// observe records request metrics and an access log line.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()
		metrics.ObserveHTTPRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)

		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("elapsed", elapsed).
			Str("ip", audit.ClientIP(c.Request)).
			Msg("http request")
	}
}

// auditDenied runs ahead of the guard and records rejected attempts on
// the research routes. Probes against the control surface are exactly
// the traffic this system exists to capture.
func (s *Server) auditDenied() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized, http.StatusForbidden:
			s.logOp(c, audit.ActionAuthFailure, c.Request.URL.Path, "", audit.ResultRejected, http.StatusText(c.Writer.Status()))
		}
	}
}

// logOp records one interaction on the operations log.
func (s *Server) logOp(c *gin.Context, action, target, value, result, detail string) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		ID:        audit.NewID(),
		Source:    audit.SourceHTTP,
		IP:        audit.ClientIP(c.Request),
		UserAgent: c.Request.UserAgent(),
		Action:    action,
		Target:    target,
		Value:     value,
		Result:    result,
		Detail:    detail,
		At:        s.clock.Now().UTC(),
	}
	if subject, ok := auth.SubjectFromContext(c.Request.Context()); ok {
		entry.Actor = subject
	}
	if err := s.audit.Log(c.Request.Context(), entry); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}
