package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/litmaphq/litmap/internal/pipeline"
	"github.com/litmaphq/litmap/internal/store"
	"github.com/litmaphq/litmap/models"
)

// Researcher runs the research workflow. Satisfied by pipeline.Orchestrator.
type Researcher interface {
	ResearchStream(ctx context.Context, query string, maxPapers int, progress pipeline.ProgressFunc) (*models.ResearchReport, error)
}

// ResearchHandler exposes the research pipeline over HTTP, synchronously and
// as a server-sent event stream.
type ResearchHandler struct {
	Orch   Researcher
	Store  *store.Store
	Logger *log.Logger
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("", h.research)
	g.POST("/stream", h.stream)
}

func (h *ResearchHandler) research(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}

	report, err := h.Orch.ResearchStream(c.Request().Context(), req.Query, req.MaxPapers, nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	h.persist(c.Request().Context(), report)
	return c.JSON(http.StatusOK, report)
}

// stream runs the pipeline and emits progress events as SSE. The final event
// carries the complete report.
func (h *ResearchHandler) stream(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	flusher, _ := resp.Writer.(http.Flusher)
	writeEvent := func(payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(resp, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	report, err := h.Orch.ResearchStream(c.Request().Context(), req.Query, req.MaxPapers, func(e models.ProgressEvent) {
		// The complete event is sent below with the report attached.
		if e.Status != "complete" {
			writeEvent(e)
		}
	})
	if err != nil {
		writeEvent(models.ProgressEvent{Status: "error", Message: err.Error()})
		return nil
	}
	h.persist(c.Request().Context(), report)

	writeEvent(struct {
		Status  string                 `json:"status"`
		Message string                 `json:"message"`
		Report  *models.ResearchReport `json:"report"`
	}{Status: "complete", Message: "Research complete!", Report: report})
	return nil
}

func (h *ResearchHandler) persist(ctx context.Context, report *models.ResearchReport) {
	if h.Store == nil || report == nil {
		return
	}
	if err := h.Store.SaveReport(ctx, report); err != nil {
		h.Logger.Printf("failed to persist report %s: %v", report.ReportID, err)
	}
}
