package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/litmaphq/litmap/internal/pipeline"
	"github.com/litmaphq/litmap/models"
)

type fakeOrch struct {
	report *models.ResearchReport
	err    error
	events []models.ProgressEvent
}

func (f *fakeOrch) ResearchStream(ctx context.Context, query string, maxPapers int, progress pipeline.ProgressFunc) (*models.ResearchReport, error) {
	if progress != nil {
		for _, e := range f.events {
			progress(e)
		}
	}
	return f.report, f.err
}

func newTestHandler(orch Researcher) *ResearchHandler {
	return &ResearchHandler{Orch: orch, Logger: log.New(log.Writer(), "[TEST] ", log.LstdFlags)}
}

func TestResearchEndpoint(t *testing.T) {
	orch := &fakeOrch{report: &models.ResearchReport{
		ReportID:       "abc12345",
		Query:          "transformers",
		PapersAnalyzed: 3,
		Markdown:       "# Report",
	}}
	h := newTestHandler(orch)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"query":"transformers"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.research(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got models.ResearchReport
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.ReportID != "abc12345" || got.PapersAnalyzed != 3 {
		t.Errorf("unexpected report: %+v", got)
	}
}

func TestResearchEndpointRequiresQuery(t *testing.T) {
	h := newTestHandler(&fakeOrch{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.research(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestResearchEndpointPipelineFailure(t *testing.T) {
	h := newTestHandler(&fakeOrch{err: errors.New("no papers found")})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"query":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.research(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestResearchStreamSSE(t *testing.T) {
	orch := &fakeOrch{
		report: &models.ResearchReport{ReportID: "abc12345", Query: "q"},
		events: []models.ProgressEvent{
			{Status: "starting", Message: "Initializing"},
			{Status: "planning", Message: "Creating search plan..."},
			{Status: "complete", Message: "Research complete!"},
		},
	}
	h := newTestHandler(orch)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/research/stream", strings.NewReader(`{"query":"q"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.stream(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	for _, status := range []string{"starting", "planning", "complete"} {
		if !strings.Contains(body, `"status":"`+status+`"`) {
			t.Errorf("missing %q event in stream:\n%s", status, body)
		}
	}
	// The complete event must carry the report exactly once.
	if strings.Count(body, `"report_id":"abc12345"`) != 1 {
		t.Errorf("report not attached to final event:\n%s", body)
	}
}

func TestResearchStreamErrorEvent(t *testing.T) {
	h := newTestHandler(&fakeOrch{err: errors.New("no papers found")})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/research/stream", strings.NewReader(`{"query":"q"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.stream(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"error"`) {
		t.Errorf("missing error event:\n%s", rec.Body.String())
	}
}

func TestSignupRejectsBadInput(t *testing.T) {
	a := &AuthHandler{}
	e := echo.New()

	cases := []struct {
		name string
		body string
	}{
		{"missing email", `{"password":"longenough"}`},
		{"malformed email", `{"email":"not-an-email","password":"longenough"}`},
		{"short password", `{"email":"a@b.io","password":"short"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(tc.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		err := a.signup(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %v", tc.name, err)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := normalizeEmail("  Ada@Example.ORG ")
	if err != nil {
		t.Fatalf("normalizeEmail failed: %v", err)
	}
	if got != "ada@example.org" {
		t.Errorf("expected lowered, trimmed email, got %q", got)
	}
	if _, err := normalizeEmail("nodomain"); err == nil {
		t.Error("expected error for address without @")
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	a := &AuthHandler{}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := a.logout(c); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != authCookieName {
		t.Fatalf("expected one auth cookie, got %v", cookies)
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("cookie not expired: MaxAge=%d", cookies[0].MaxAge)
	}
}

func TestIsDue(t *testing.T) {
	now := time.Now()
	recent := now.Add(-30 * time.Minute)
	old := now.Add(-25 * time.Hour)

	if isDue("@daily", nil) != true {
		t.Error("never-run daily topic should be due")
	}
	if isDue("@daily", &recent) {
		t.Error("daily topic run 30m ago should not be due")
	}
	if !isDue("@daily", &old) {
		t.Error("daily topic run 25h ago should be due")
	}
	if isDue("@hourly", &recent) {
		t.Error("hourly topic run 30m ago should not be due")
	}

	twoHours := now.Add(-2 * time.Hour)
	if !isDue("0 * * * *", &twoHours) {
		t.Error("hourly cron with 2h-old run should be due")
	}
	if !isDue("not a cron", &old) {
		t.Error("invalid cron should fall back to daily")
	}
	if isDue("not a cron", &recent) {
		t.Error("invalid cron fallback should respect 24h window")
	}
}
