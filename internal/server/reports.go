package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/litmaphq/litmap/internal/store"
	"github.com/litmaphq/litmap/models"
)

// ReportsHandler serves stored research reports.
type ReportsHandler struct {
	Store *store.Store
}

func (h *ReportsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

func (h *ReportsHandler) list(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Store.ListReports(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.ReportSummary{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ReportsHandler) get(c echo.Context) error {
	report, err := h.Store.GetReport(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrReportNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
