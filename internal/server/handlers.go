package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/chatmesh"
	"github.com/hupe1980/chatmesh/core"
)

// CallRequest is the body of POST /chat/call.
type CallRequest struct {
	Query string        `json:"query"`
	Meta  core.Metadata `json:"meta"`
}

// UpdateModelsRequest is the body of POST /chat/models/update.
type UpdateModelsRequest struct {
	ModelProvider string   `json:"model_provider"`
	ModelNames    []string `json:"model_names"`
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

// Chat streams a turn as server-sent events.
// POST /chat
func (s *Server) Chat(c echo.Context) error {
	var req chatmesh.Request
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	_, events, err := s.mesh.Chat(ctx, req)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for ev := range events {
		frame, err := ev.EncodeSSE()
		if err != nil {
			s.logger.Error("Failed to encode event", "status", string(ev.Status), "error", err)
			continue
		}
		if _, err := res.Write(frame); err != nil {
			s.logger.Warn("Client went away", "thread_id", ev.ThreadID, "error", err)
			cancel()
			// drain until the engine observes cancellation
			for range events {
			}
			return nil
		}
		res.Flush()
	}
	return nil
}

// Call performs a direct model call.
// POST /chat/call
func (s *Server) Call(c echo.Context) error {
	var req CallRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	out, err := s.mesh.Call(c.Request().Context(), req.Query, req.Meta)
	if err != nil {
		s.logger.Error("Direct model call failed", "error", err)
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"response": out})
}

// GetSession returns a stored session.
// GET /chat/sessions/:thread_id
func (s *Server) GetSession(c echo.Context) error {
	sess, err := s.mesh.GetSession(c.Request().Context(), c.Param("thread_id"))
	if err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// DeleteSession removes a stored session.
// DELETE /chat/sessions/:thread_id
func (s *Server) DeleteSession(c echo.Context) error {
	if err := s.mesh.DeleteSession(c.Request().Context(), c.Param("thread_id")); err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) sessionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		return errorJSON(c, http.StatusNotFound, "session not found")
	case errors.Is(err, core.ErrStoreUnavailable):
		return errorJSON(c, http.StatusServiceUnavailable, "session store not available")
	default:
		s.logger.Error("Session operation failed", "thread_id", c.Param("thread_id"), "error", err)
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
}

// ListModels lists the models of a provider, or the providers when none is named.
// GET /chat/models?model_provider=
func (s *Server) ListModels(c echo.Context) error {
	provider := c.QueryParam("model_provider")
	if provider == "" {
		return c.JSON(http.StatusOK, map[string][]string{"providers": s.mesh.Models().Providers()})
	}

	models, err := s.mesh.Models().Models(provider)
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string][]string{"models": models})
}

// UpdateModels replaces the advertised models of a provider.
// POST /chat/models/update
func (s *Server) UpdateModels(c echo.Context) error {
	var req UpdateModelsRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.ModelProvider == "" {
		return errorJSON(c, http.StatusBadRequest, "model_provider is required")
	}

	models, err := s.mesh.Models().SetModels(req.ModelProvider, req.ModelNames)
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}
	s.logger.Info("Model list updated", "provider", req.ModelProvider, "count", len(models))
	return c.JSON(http.StatusOK, map[string][]string{"models": models})
}
