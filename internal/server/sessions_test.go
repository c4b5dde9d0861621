package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

const sessionColumns = "id, slug, query, title, status, model, duration, resources_used, answer, metadata, datetime_start, datetime_end, created_at, updated_at"

func newSessionsHandler(t *testing.T) (*SessionsHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &SessionsHandler{Store: &store.Store{DB: db}}, mock
}

func doRequest(t *testing.T, method, target, body string, fn echo.HandlerFunc, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) >= 2 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if err := fn(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestSessionsList(t *testing.T) {
	h, mock := newSessionsHandler(t)
	now := time.Now()
	rows := mock.NewRows(strings.Split(sessionColumns, ", ")).AddRow(
		int64(1), "slug-1", "what is go", "what is go", "completed", "gpt-test",
		1.5, []byte(`["https://a"]`), "ans", []byte(`{}`), now, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+sessionColumns)).
		WithArgs(50, 0).
		WillReturnRows(rows)

	rec := doRequest(t, http.MethodGet, "/api/sessions", "", h.list)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Sessions []store.ResearchSession `json:"sessions"`
		Limit    int                     `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sessions) != 1 || resp.Sessions[0].Slug != "slug-1" {
		t.Fatalf("unexpected sessions: %+v", resp.Sessions)
	}
	if resp.Limit != 50 {
		t.Fatalf("default limit not applied: %d", resp.Limit)
	}
}

func TestSessionsGetNotFound(t *testing.T) {
	h, mock := newSessionsHandler(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+sessionColumns)).
		WithArgs("missing").
		WillReturnRows(mock.NewRows(strings.Split(sessionColumns, ", ")))

	rec := doRequest(t, http.MethodGet, "/api/sessions/missing", "", h.get, "slug", "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSessionsUpdateTitle(t *testing.T) {
	h, mock := newSessionsHandler(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE research_sessions SET title=$2`)).
		WithArgs("slug-1", "renamed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doRequest(t, http.MethodPut, "/api/sessions/slug-1/title", `{"title":"renamed"}`, h.updateTitle, "slug", "slug-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSessionsUpdateTitleRejectsEmpty(t *testing.T) {
	h, _ := newSessionsHandler(t)
	rec := doRequest(t, http.MethodPut, "/api/sessions/slug-1/title", `{"title":"  "}`, h.updateTitle, "slug", "slug-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSessionsStats(t *testing.T) {
	h, mock := newSessionsHandler(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WillReturnRows(mock.NewRows([]string{"c1", "c2", "c3", "c4", "c5"}).AddRow(4, 1, 2, 1, 12.5))

	rec := doRequest(t, http.MethodGet, "/api/sessions/stats", "", h.stats)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var stats store.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 4 || stats.AvgDuration != 12.5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSessionsSearchRequiresQuery(t *testing.T) {
	h, _ := newSessionsHandler(t)
	rec := doRequest(t, http.MethodGet, "/api/sessions/search", "", h.search)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
