package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/deepresearch/internal/research"
)

// researchRunner is what the handler needs from the orchestrator.
type researchRunner interface {
	Run(ctx context.Context, req research.Request, onProgress research.ProgressFn) <-chan research.Event
}

type ResearchHandler struct {
	Orch        researchRunner
	Rdb         *redis.Client
	ProgressTTL time.Duration
	Logger      *log.Logger
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("", h.start)
	g.GET("/:slug/progress", h.progress)
}

func progressKey(slug string) string { return "research:progress:" + slug }

// start runs one research session and streams its events over SSE.
// Progress events and answer/terminal events are merged into one stream.
func (h *ResearchHandler) start(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	slug := uuid.NewString()
	ctx := c.Request().Context()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	// Progress arrives on a separate callback from the orchestrator
	// goroutine; it is best-effort, so a full buffer drops rather than
	// stalls the pipeline.
	progressCh := make(chan research.Event, 16)
	onProgress := func(stage research.Stage, message string) {
		ev := research.Event{Type: research.EventProgress, SessionID: slug, Stage: stage, Message: message}
		select {
		case progressCh <- ev:
		default:
		}
	}

	events := h.Orch.Run(ctx, research.Request{Query: req.Query, Model: req.Model, SessionHint: slug}, onProgress)

	snapshot := ProgressSnapshot{SessionID: slug, Status: "running"}
	emit := func(ev research.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	for events != nil {
		select {
		case ev := <-progressCh:
			snapshot.Stages = append(snapshot.Stages, ProgressStage{Stage: string(ev.Stage), Message: ev.Message})
			h.cacheProgress(ctx, snapshot)
			if err := emit(ev); err != nil {
				return nil
			}
		case ev, open := <-events:
			if !open {
				events = nil
				continue
			}
			switch ev.Type {
			case research.EventResult:
				snapshot.Status = "completed"
				h.cacheProgress(ctx, snapshot)
			case research.EventError:
				snapshot.Status = "failed"
				h.cacheProgress(ctx, snapshot)
			}
			if err := emit(ev); err != nil {
				return nil
			}
		}
	}

	// drain whatever progress raced the terminal event
	for {
		select {
		case ev := <-progressCh:
			snapshot.Stages = append(snapshot.Stages, ProgressStage{Stage: string(ev.Stage), Message: ev.Message})
			h.cacheProgress(ctx, snapshot)
			if err := emit(ev); err != nil {
				return nil
			}
		default:
			return nil
		}
	}
}

func (h *ResearchHandler) cacheProgress(ctx context.Context, snap ProgressSnapshot) {
	if h.Rdb == nil {
		return
	}
	snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	ttl := h.ProgressTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if err := h.Rdb.Set(context.WithoutCancel(ctx), progressKey(snap.SessionID), data, ttl).Err(); err != nil && h.Logger != nil {
		h.Logger.Printf("progress cache write failed for %s: %v", snap.SessionID, err)
	}
}

// progress returns the cached progress snapshot for a session.
func (h *ResearchHandler) progress(c echo.Context) error {
	slug := c.Param("slug")
	if h.Rdb == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "progress cache not configured")
	}
	data, err := h.Rdb.Get(c.Request().Context(), progressKey(slug)).Bytes()
	if err == redis.Nil {
		return echo.NewHTTPError(http.StatusNotFound, "no progress recorded")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}
