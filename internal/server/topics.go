package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/litmaphq/litmap/internal/runtime"
	"github.com/litmaphq/litmap/internal/store"
)

// TopicsHandler manages saved research topics and their runs.
type TopicsHandler struct {
	Store  *store.Store
	Orch   Researcher
	Logger *log.Logger
}

func (h *TopicsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/runs", h.runs)
	g.POST("/:id/runs", h.trigger)
}

func (h *TopicsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListTopics(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.Topic{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *TopicsHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	if req.Name == "" {
		req.Name = req.Query
	}
	if req.ScheduleCron == "" {
		req.ScheduleCron = "@daily"
	}
	id, err := h.Store.CreateTopic(c.Request().Context(), userID, req.Name, req.Query, req.ScheduleCron)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *TopicsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	topic, err := h.Store.GetTopicByID(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "topic not found")
	}
	return c.JSON(http.StatusOK, topic)
}

func (h *TopicsHandler) delete(c echo.Context) error {
	userID := c.Get("user_id").(string)
	if err := h.Store.DeleteTopic(c.Request().Context(), c.Param("id"), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "topic not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TopicsHandler) runs(c echo.Context) error {
	userID := c.Get("user_id").(string)
	topicID := c.Param("id")
	if _, err := h.Store.GetTopicByID(c.Request().Context(), topicID, userID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "topic not found")
	}
	items, err := h.Store.ListRuns(c.Request().Context(), topicID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.Run{}
	}
	return c.JSON(http.StatusOK, items)
}

// trigger starts an ad-hoc run for a topic in the background.
func (h *TopicsHandler) trigger(c echo.Context) error {
	userID := c.Get("user_id").(string)
	topic, err := h.Store.GetTopicByID(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "topic not found")
	}

	runID, err := h.Store.CreateRun(c.Request().Context(), topic.ID, store.RunStatusRunning)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		executeRun(ctx, h.Store, h.Orch, h.Logger, topic, runID)
	}()

	return c.JSON(http.StatusAccepted, IDResponse{ID: runID})
}
