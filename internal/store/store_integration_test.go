package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestSessionLifecycleIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("deepresearch"),
		tcPostgres.WithUsername("deepresearch"),
		tcPostgres.WithPassword("deepresearch"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://deepresearch:deepresearch@%s:%s/deepresearch?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("migrate init: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	st, err := NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}

	slug := uuid.New().String()
	sess, err := st.CreateSession(ctx, slug, "how do transformers work under the hood exactly, in simple terms please", "gpt-test")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != StatusRunning {
		t.Fatalf("status after create: %q", sess.Status)
	}
	if len(sess.Title) != 63 { // 60 chars + "..."
		t.Fatalf("title not truncated: %q", sess.Title)
	}

	err = st.Finalize(ctx, slug, StatusCompleted, 3.2, "answer text",
		[]string{"https://a", "https://b", "https://a"},
		map[string]interface{}{"rag_results_count": float64(4), "sub_questions": []string{"q1", "q2"}})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := st.Finalize(ctx, slug, StatusFailed, 0, "", nil, nil); err != ErrAlreadyFinal {
		t.Fatalf("double finalize: expected ErrAlreadyFinal, got %v", err)
	}

	got, err := st.GetBySlug(ctx, slug)
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if got.Status != StatusCompleted || got.Answer == nil || *got.Answer != "answer text" {
		t.Fatalf("finalized session wrong: %+v", got)
	}
	if len(got.ResourcesUsed) != 3 {
		t.Fatalf("resources_used must keep duplicates, got %v", got.ResourcesUsed)
	}
	if got.DatetimeEnd == nil {
		t.Fatal("datetime_end not set on finalize")
	}

	list, err := st.List(ctx, 10, 0, StatusCompleted)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v (n=%d)", err, len(list))
	}
	found, err := st.Search(ctx, "transformers", 10)
	if err != nil || len(found) != 1 {
		t.Fatalf("Search: %v (n=%d)", err, len(found))
	}
	stats, err := st.Stats(ctx)
	if err != nil || stats.Completed != 1 {
		t.Fatalf("Stats: %v (%+v)", err, stats)
	}

	// stale reaper should ignore fresh rows and catch old ones
	staleSlug := uuid.New().String()
	if _, err := st.CreateSession(ctx, staleSlug, "stale one", "gpt-test"); err != nil {
		t.Fatalf("CreateSession stale: %v", err)
	}
	if _, err := st.DB.ExecContext(ctx,
		`UPDATE research_sessions SET datetime_start = NOW() - INTERVAL '2 hours' WHERE slug=$1`, staleSlug); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	n, err := st.ReapStale(ctx, time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("ReapStale: %v (n=%d)", err, n)
	}
	reaped, err := st.GetBySlug(ctx, staleSlug)
	if err != nil {
		t.Fatalf("GetBySlug stale: %v", err)
	}
	if reaped.Status != StatusFailed || reaped.Metadata["error"] != "stale_session" {
		t.Fatalf("stale session not failed: %+v", reaped)
	}

	if err := st.Delete(ctx, slug); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.GetBySlug(ctx, slug); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
