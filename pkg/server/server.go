package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/murmur-app/murmur/pkg/api"
	"github.com/murmur-app/murmur/pkg/archive"
	"github.com/murmur-app/murmur/pkg/dictation"
)

type Server struct {
	e       *echo.Echo
	service *dictation.Service
}

func New(service *dictation.Service) *Server {
	e := echo.New()
	e.Use(middleware.CORS())
	// middleware.RequestLogger() only exists in echo >= v4.14, which requires
	// Go 1.24; this is the same default configuration it applies upstream.
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:       true,
		LogRemoteIP:      true,
		LogHost:          true,
		LogMethod:        true,
		LogURI:           true,
		LogRequestID:     true,
		LogUserAgent:     true,
		LogStatus:        true,
		LogError:         true,
		LogContentLength: true,
		LogResponseSize:  true,
		HandleError:      true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("host", v.Host),
				slog.String("bytes_in", v.ContentLength),
				slog.Int64("bytes_out", v.ResponseSize),
				slog.String("user_agent", v.UserAgent),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
			}
			if v.Error == nil {
				slog.LogAttrs(context.Background(), slog.LevelInfo, "REQUEST", attrs...)
			} else {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				slog.LogAttrs(context.Background(), slog.LevelError, "REQUEST_ERROR", attrs...)
			}
			return nil
		},
	}))

	s := &Server{
		e:       e,
		service: service,
	}

	group := e.Group("/api")

	// Transcribe an audio clip (does not save it)
	group.POST("/transcribe", s.transcribe)

	// List or search saved transcriptions
	group.GET("/history", s.getHistory)
	// Save a transcription
	group.POST("/history", s.saveTranscription)
	// Delete a transcription
	group.DELETE("/history/:id", s.deleteTranscription)
	// Clear all transcriptions
	group.DELETE("/history", s.clearHistory)
	// Toggle the favorite flag on a transcription
	group.POST("/history/:id/favorite/toggle", s.toggleFavorite)

	// Read or update user settings
	group.GET("/settings", s.getSettings)
	group.PUT("/settings", s.updateSetting)
	// First-launch setup flow
	group.GET("/setup", s.getFirstLaunch)
	group.POST("/setup/complete", s.completeSetup)

	// Manage the API key
	group.PUT("/key", s.setKey)
	group.DELETE("/key", s.clearKey)
	group.POST("/key/test", s.testKey)

	// Health check endpoint
	group.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return s
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := http.Server{
		Handler: s.e,
	}

	if err := srv.Serve(ln); err != nil && ctx.Err() == nil {
		slog.Error("Failed to start server", "error", err)
		return err
	}

	return nil
}

func (s *Server) transcribe(c echo.Context) error {
	var req api.TranscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}

	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid audio encoding: %v", err))
	}

	result := s.service.Transcribe(c.Request().Context(), audio)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) getHistory(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, limit = api.NormalizePage(page, limit)

	history, err := s.service.SearchHistory(c.Request().Context(), c.QueryParam("q"), page, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to get history: %v", err))
	}

	return c.JSON(http.StatusOK, history)
}

func (s *Server) saveTranscription(c echo.Context) error {
	var req api.SaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text must not be empty")
	}

	id, err := s.service.SaveTranscription(c.Request().Context(), req.Text, req.DurationSeconds)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to save transcription: %v", err))
	}

	return c.JSON(http.StatusOK, api.SaveResponse{ID: id})
}

func (s *Server) deleteTranscription(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid id: %v", err))
	}

	deleted, err := s.service.DeleteTranscription(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to delete transcription: %v", err))
	}

	return c.JSON(http.StatusOK, api.DeleteResponse{Deleted: deleted})
}

func (s *Server) clearHistory(c echo.Context) error {
	if err := s.service.ClearHistory(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to clear history: %v", err))
	}

	return c.JSON(http.StatusOK, nil)
}

func (s *Server) toggleFavorite(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid id: %v", err))
	}

	state, err := s.service.ToggleFavorite(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("transcription not found: %d", id))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to toggle favorite: %v", err))
	}

	return c.JSON(http.StatusOK, api.FavoriteResponse{IsFavorite: state})
}

func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Settings())
}

func (s *Server) updateSetting(c echo.Context) error {
	var req api.SettingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}

	if err := s.service.SetSetting(req.Key, req.Value); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to update setting: %v", err))
	}

	return c.JSON(http.StatusOK, s.service.Settings())
}

func (s *Server) getFirstLaunch(c echo.Context) error {
	return c.JSON(http.StatusOK, api.FirstLaunchResponse{FirstLaunch: s.service.IsFirstLaunch()})
}

func (s *Server) completeSetup(c echo.Context) error {
	if err := s.service.CompleteSetup(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to complete setup: %v", err))
	}

	return c.JSON(http.StatusOK, api.FirstLaunchResponse{FirstLaunch: false})
}

func (s *Server) setKey(c echo.Context) error {
	var req api.KeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key must not be empty")
	}

	if err := s.service.SetAPIKey(req.Key); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to store API key: %v", err))
	}

	return c.JSON(http.StatusOK, nil)
}

func (s *Server) clearKey(c echo.Context) error {
	if err := s.service.ClearAPIKey(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to clear API key: %v", err))
	}

	return c.JSON(http.StatusOK, nil)
}

func (s *Server) testKey(c echo.Context) error {
	var req api.KeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}

	result := s.service.TestAPIKey(c.Request().Context(), req.Key)
	return c.JSON(http.StatusOK, result)
}
