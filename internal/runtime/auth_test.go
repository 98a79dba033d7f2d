package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/litmaphq/litmap/config"
)

func TestLoadJWTSecret(t *testing.T) {
	if _, err := LoadJWTSecret(nil); err == nil {
		t.Error("nil config should error")
	}
	if _, err := LoadJWTSecret(&config.Config{}); err == nil {
		t.Error("empty secret should error")
	}
	secret, err := LoadJWTSecret(&config.Config{Server: config.ServerConfig{JWTSecret: "s3cret"}})
	if err != nil || string(secret) != "s3cret" {
		t.Errorf("unexpected secret: %q %v", secret, err)
	}
}

func TestEchoAuthMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	token, err := SignJWT("user-1", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := echo.New()
	handler := EchoAuthMiddleware(secret)(func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("user_id").(string))
	})

	// Bearer token.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("valid bearer rejected: %v", err)
	}
	if rec.Body.String() != "user-1" {
		t.Errorf("subject = %q", rec.Body.String())
	}

	// Cookie token.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: token})
	rec = httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("valid cookie rejected: %v", err)
	}

	// Missing token.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	err = handler(e.NewContext(req, httptest.NewRecorder()))
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing token, got %v", err)
	}

	// Wrong secret.
	bad, _ := SignJWT("user-1", []byte("other"), time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	err = handler(e.NewContext(req, httptest.NewRecorder()))
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for forged token, got %v", err)
	}
}

func TestSubjectFromContext(t *testing.T) {
	ctx := ContextWithSubject(context.Background(), "user-9")
	if sub, ok := SubjectFromContext(ctx); !ok || sub != "user-9" {
		t.Errorf("subject round-trip failed: %q %v", sub, ok)
	}
	if _, ok := SubjectFromContext(nil); ok {
		t.Error("nil context should not contain subject")
	}
}
