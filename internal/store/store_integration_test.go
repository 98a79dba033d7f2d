package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/litmaphq/litmap/internal/store"
	"github.com/litmaphq/litmap/models"
)

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("litmap"),
		tcPostgres.WithUsername("litmap"),
		tcPostgres.WithPassword("litmap"),
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

	dsn := fmt.Sprintf("postgres://litmap:litmap@%s:%s/litmap?sslmode=disable", host, port.Port())
	if err := applyMigrations(dsn); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.DB.Close()

	// Users.
	if err := st.CreateUser(ctx, "ada@example.org", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	userID, hash, err := st.GetUserByEmail(ctx, "ada@example.org")
	if err != nil || hash != "hash" {
		t.Fatalf("get user: %v (hash=%q)", err, hash)
	}

	// Topics and runs.
	topicID, err := st.CreateTopic(ctx, userID, "GNN survey", "graph neural networks", "@daily")
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}
	topics, err := st.ListTopics(ctx, userID)
	if err != nil || len(topics) != 1 || topics[0].Query != "graph neural networks" {
		t.Fatalf("list topics: %v %v", err, topics)
	}

	last, err := st.LatestRunTime(ctx, topicID)
	if err != nil {
		t.Fatalf("latest run time: %v", err)
	}
	if last != nil {
		t.Fatalf("expected no runs yet, got %v", last)
	}

	runID, err := st.CreateRun(ctx, topicID, store.RunStatusRunning)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	// Reports.
	report := &models.ResearchReport{
		ReportID:       "r-test-1",
		Query:          "graph neural networks",
		PapersAnalyzed: 2,
		Markdown:       "# Report",
		Citations:      []string{"[1] A (2023). \"T\". Arxiv. http://x"},
		Themes:         []models.Theme{{Name: "GNNs", PaperIDs: []string{"p1"}, RelevanceScore: 0.9}},
		TopPapers:      []*models.Paper{{ID: "p1", Title: "T", RelevanceScore: 0.8}},
		ProcessingTime: 1500 * time.Millisecond,
		CreatedAt:      time.Now().UTC(),
	}
	if err := st.SaveReport(ctx, report); err != nil {
		t.Fatalf("save report: %v", err)
	}
	if err := st.FinishRun(ctx, runID, store.RunStatusSucceeded, &report.ReportID, nil); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	got, err := st.GetReport(ctx, "r-test-1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if got.PapersAnalyzed != 2 || len(got.Themes) != 1 || got.Themes[0].Name != "GNNs" {
		t.Errorf("report did not round-trip: %+v", got)
	}
	if got.ProcessingTime != 1500*time.Millisecond {
		t.Errorf("processing time: %v", got.ProcessingTime)
	}

	if _, err := st.GetReport(ctx, "missing"); !errors.Is(err, models.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}

	summaries, err := st.ListReports(ctx, 10)
	if err != nil || len(summaries) != 1 || summaries[0].ThemeCount != 1 {
		t.Fatalf("list reports: %v %v", err, summaries)
	}

	runs, err := st.ListRuns(ctx, topicID)
	if err != nil || len(runs) != 1 {
		t.Fatalf("list runs: %v %v", err, runs)
	}
	if runs[0].Status != store.RunStatusSucceeded || runs[0].ReportID == nil {
		t.Errorf("run not finished: %+v", runs[0])
	}

	last, err = st.LatestRunTime(ctx, topicID)
	if err != nil || last == nil {
		t.Fatalf("latest run time after run: %v %v", err, last)
	}
}

func applyMigrations(dsn string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	dir := filepath.Join(wd, "..", "..", "migrations")
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
