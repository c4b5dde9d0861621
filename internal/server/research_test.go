package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deepresearch/internal/research"
)

type stubRunner struct {
	events []research.Event
}

func (s stubRunner) Run(ctx context.Context, req research.Request, onProgress research.ProgressFn) <-chan research.Event {
	ch := make(chan research.Event)
	go func() {
		defer close(ch)
		onProgress(research.StageSafetyCheck, "Checking content safety...")
		onProgress(research.StageSynthesis, "Generating final answer...")
		for _, ev := range s.events {
			ev.SessionID = req.SessionHint
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func decodeSSE(t *testing.T, body string) []research.Event {
	t.Helper()
	var events []research.Event
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev research.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad SSE payload %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestResearchStreamMergesProgressAndAnswer(t *testing.T) {
	runner := stubRunner{events: []research.Event{
		{Type: research.EventAnswerChunk, Chunk: "Hello "},
		{Type: research.EventAnswerChunk, Chunk: "world"},
		{Type: research.EventResult, Result: &research.Result{Answer: "Hello world"}},
	}}
	h := &ResearchHandler{Orch: runner}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"query":"what is Go"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.start(c); err != nil {
		t.Fatalf("start: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := decodeSSE(t, rec.Body.String())
	var chunks []string
	var progress, results int
	for _, ev := range events {
		switch ev.Type {
		case research.EventAnswerChunk:
			chunks = append(chunks, ev.Chunk)
		case research.EventProgress:
			progress++
			if ev.SessionID == "" {
				t.Fatal("progress event missing session id")
			}
		case research.EventResult:
			results++
		}
	}
	if strings.Join(chunks, "") != "Hello world" {
		t.Fatalf("chunks out of order: %v", chunks)
	}
	if progress != 2 {
		t.Fatalf("expected 2 progress events, got %d", progress)
	}
	if results != 1 {
		t.Fatalf("expected exactly one result event, got %d", results)
	}
	last := events[len(events)-1]
	if last.Type != research.EventResult && last.Type != research.EventProgress {
		t.Fatalf("stream must end with the terminal or drained progress event, got %s", last.Type)
	}
}

func TestResearchStreamErrorEvent(t *testing.T) {
	runner := stubRunner{events: []research.Event{
		{Type: research.EventError, Message: "Sorry, I can't help with that.", Reason: "sexual_content_detected"},
	}}
	h := &ResearchHandler{Orch: runner}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"query":"bad"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.start(c); err != nil {
		t.Fatalf("start: %v", err)
	}
	var sawError bool
	for _, ev := range decodeSSE(t, rec.Body.String()) {
		if ev.Type == research.EventError {
			sawError = true
			if ev.Reason != "sexual_content_detected" {
				t.Fatalf("unexpected reason %q", ev.Reason)
			}
		}
	}
	if !sawError {
		t.Fatal("error event not streamed")
	}
}

func TestResearchRejectsEmptyQuery(t *testing.T) {
	h := &ResearchHandler{Orch: stubRunner{}}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"query":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.start(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
