package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
	"github.com/Saiid2001/login-security-landscape/internal/metrics"
	"github.com/Saiid2001/login-security-landscape/internal/protocol"
)

// Error strings on the wire. Clients match on these, so they are frozen.
const (
	msgNoSessionAvailable = "no sessions available"
	msgSessionNotFound    = "Session does not exist or does not belong to the experiment!"
)

// handleAPI is the single protocol endpoint. Every application-level
// outcome, errors included, is a 200 with the success flag; the envelope
// is the contract, not the HTTP status.
func (s *Server) handleAPI(c echo.Context) error {
	start := time.Now()
	requestID := uuid.NewString()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.replyError(c, "invalid", start, "failed to read request body")
	}

	req, err := protocol.Decode(body)
	if err != nil {
		slog.Warn("rejected malformed request", "request_id", requestID, "error", err)
		return s.replyError(c, "invalid", start, err.Error())
	}

	logger := slog.With("request_id", requestID, "type", req.Type())
	logger.Debug("request accepted")

	payload, err := s.dispatcher.Submit(c.Request().Context(), req)
	if err != nil {
		logger.Info("request failed", "error", err)
		return s.replyError(c, req.Type(), start, errorMessage(err))
	}

	metrics.RequestsTotal.WithLabelValues(req.Type(), "success").Inc()
	metrics.RequestDuration.WithLabelValues(req.Type()).Observe(time.Since(start).Seconds())
	logger.Info("request served")
	return c.JSON(http.StatusOK, payload)
}

func (s *Server) replyError(c echo.Context, requestType string, start time.Time, message string) error {
	metrics.RequestsTotal.WithLabelValues(requestType, "error").Inc()
	metrics.RequestDuration.WithLabelValues(requestType).Observe(time.Since(start).Seconds())
	return c.JSON(http.StatusOK, protocol.NewErrorReply(message))
}

// errorMessage maps internal errors onto the frozen wire strings.
// Anything unmapped passes through as-is; nothing escapes the envelope.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoSessionAvailable):
		return msgNoSessionAvailable
	case errors.Is(err, domain.ErrSessionNotFound):
		return msgSessionNotFound
	default:
		return err.Error()
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	if err := s.pool.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
