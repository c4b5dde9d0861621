package store

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func sessionRows(mock sqlmock.Sqlmock) *sqlmock.Rows {
	return mock.NewRows(strings.Split(sessionColumns, ", "))
}

func TestTitleFromQuery(t *testing.T) {
	short := "What is the capital of France?"
	if got := TitleFromQuery(short); got != short {
		t.Fatalf("short query mangled: %q", got)
	}
	long := strings.Repeat("q", 61)
	got := TitleFromQuery(long)
	if got != strings.Repeat("q", 60)+"..." {
		t.Fatalf("long query not truncated at 60: %q", got)
	}
	exact := strings.Repeat("q", 60)
	if got := TitleFromQuery(exact); got != exact {
		t.Fatalf("60-char query should be untouched: %q", got)
	}
}

func TestCreateSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	now := time.Now()
	rows := sessionRows(mock).AddRow(
		int64(1), "slug-1", "what is rust", "what is rust", StatusRunning, "gpt-test",
		nil, []byte(`[]`), nil, []byte(`{}`), now, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO research_sessions`)).
		WithArgs("slug-1", "what is rust", "what is rust", StatusRunning, "gpt-test").
		WillReturnRows(rows)

	sess, err := st.CreateSession(context.Background(), "slug-1", "what is rust", "gpt-test")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != StatusRunning {
		t.Fatalf("new session status %q", sess.Status)
	}
	if sess.Answer != nil || sess.Duration != nil {
		t.Fatal("new session must not carry answer or duration")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFinalizeExactlyOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	update := regexp.QuoteMeta(`UPDATE research_sessions`)
	mock.ExpectExec(update).
		WithArgs("slug-1", StatusCompleted, 1.5, "the answer", sqlmock.AnyArg(), sqlmock.AnyArg(), StatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = st.Finalize(context.Background(), "slug-1", StatusCompleted, 1.5, "the answer",
		[]string{"https://a", "https://a"}, map[string]interface{}{"rag_results_count": 2})
	if err != nil {
		t.Fatalf("first Finalize: %v", err)
	}

	// second transition hits zero rows, then sees the terminal row
	mock.ExpectExec(update).
		WithArgs("slug-1", StatusFailed, 0.0, "", sqlmock.AnyArg(), sqlmock.AnyArg(), StatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 0))
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+sessionColumns)).
		WithArgs("slug-1").
		WillReturnRows(sessionRows(mock).AddRow(
			int64(1), "slug-1", "q", "q", StatusCompleted, "m",
			1.5, []byte(`["https://a"]`), "the answer", []byte(`{}`), now, now, now, now))

	err = st.Finalize(context.Background(), "slug-1", StatusFailed, 0, "", nil, nil)
	if err != ErrAlreadyFinal {
		t.Fatalf("second Finalize: expected ErrAlreadyFinal, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFinalizeRejectsNonTerminalStatus(t *testing.T) {
	st := &Store{}
	if err := st.Finalize(context.Background(), "s", StatusRunning, 0, "", nil, nil); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestGetBySlugNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+sessionColumns)).
		WithArgs("missing").
		WillReturnRows(sessionRows(mock))

	if _, err := st.GetBySlug(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WillReturnRows(mock.NewRows([]string{"c1", "c2", "c3", "c4", "c5"}).AddRow(10, 1, 7, 2, 42.5))

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 10 || stats.Completed != 7 || stats.AvgDuration != 42.5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
