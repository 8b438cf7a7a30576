package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/usecase"
)

// ServiceName is reported by the health check
const ServiceName = "hunty-mock-backend"

// MeetingLifecycle is the meeting service behind the REST endpoints
type MeetingLifecycle interface {
	Get(ctx context.Context, code string) (*entities.Meeting, error)
	Start(ctx context.Context, code string, duration time.Duration) (*entities.StartResult, error)
	End(ctx context.Context, code string) error
}

// SocketHandler upgrades the voice and video sockets
type SocketHandler interface {
	HandleVoice(c echo.Context) error
	HandleVideo(c echo.Context) error
}

type handlers struct {
	meetings MeetingLifecycle
	logger   *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, meetings MeetingLifecycle, sockets SocketHandler, logger *zap.Logger) {
	h := &handlers{meetings: meetings, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: ServiceName,
		})
	})

	e.GET("/meetings/:code", h.getMeeting)
	e.POST("/meetings/:code/start", h.startMeeting)
	e.POST("/meetings/:code/end", h.endMeeting)

	if sockets != nil {
		e.GET("/voice", sockets.HandleVoice)
		e.GET("/video", sockets.HandleVideo)
	}
}

func (h *handlers) getMeeting(c echo.Context) error {
	meeting, err := h.meetings.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return h.fail(c, "get", err)
	}
	return c.JSON(http.StatusOK, meeting)
}

func (h *handlers) startMeeting(c echo.Context) error {
	var req StartRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			h.logger.Warn("Failed to bind start request", zap.Error(err))
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid request format",
			})
		}
	}
	if req.DurationMinutes < 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_duration",
			Message: "durationMinutes must be positive",
		})
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	result, err := h.meetings.Start(c.Request().Context(), c.Param("code"), duration)
	if err != nil {
		return h.fail(c, "start", err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *handlers) endMeeting(c echo.Context) error {
	if err := h.meetings.End(c.Request().Context(), c.Param("code")); err != nil {
		return h.fail(c, "end", err)
	}
	return c.JSON(http.StatusOK, OKResponse{OK: true})
}

// fail maps a lifecycle error to its HTTP response
func (h *handlers) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrMeetingNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Meeting not found",
		})
	case errors.Is(err, usecase.ErrNotRunning):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "not_running",
			Message: "Meeting not running",
		})
	default:
		h.logger.Error("Meeting request failed",
			zap.String("op", op),
			zap.String("code", c.Param("code")),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		})
	}
}
