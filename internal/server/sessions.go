package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

type SessionsHandler struct {
	Store *store.Store
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/stats", h.stats)
	g.GET("/search", h.search)
	g.GET("/:slug", h.get)
	g.PUT("/:slug/title", h.updateTitle)
	g.DELETE("/:slug", h.remove)
}

func (h *SessionsHandler) list(c echo.Context) error {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	status := c.QueryParam("status")
	sessions, err := h.Store.List(c.Request().Context(), limit, offset, status)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, SessionListResponse{Sessions: sessions, Limit: limit, Offset: offset})
}

func (h *SessionsHandler) get(c echo.Context) error {
	sess, err := h.Store.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *SessionsHandler) updateTitle(c echo.Context) error {
	var req UpdateTitleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if err := h.Store.UpdateTitle(c.Request().Context(), c.Param("slug"), req.Title); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (h *SessionsHandler) remove(c echo.Context) error {
	if err := h.Store.Delete(c.Request().Context(), c.Param("slug")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (h *SessionsHandler) stats(c echo.Context) error {
	stats, err := h.Store.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *SessionsHandler) search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	sessions, err := h.Store.Search(c.Request().Context(), q, intQuery(c, "limit", 50))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sessions": sessions, "query": q})
}

func intQuery(c echo.Context, name string, def int) int {
	if val := c.QueryParam(name); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
