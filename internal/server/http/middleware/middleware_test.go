package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	pkgAuth "github.com/polkiloo/payledger/internal/pkg/auth"
	testhelpers "github.com/polkiloo/payledger/internal/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOperatorAuth(t *testing.T) {
	cases := []struct {
		name     string
		verifier pkgAuth.TokenVerifier
		header   string
		status   int
	}{
		{"disabled", nil, "", http.StatusOK},
		{"missing token", testhelpers.TokenVerifierStub{}, "", http.StatusUnauthorized},
		{"wrong scheme", testhelpers.TokenVerifierStub{}, "Basic abc", http.StatusUnauthorized},
		{"invalid token", testhelpers.TokenVerifierStub{Err: pkgAuth.ErrInvalidToken}, "Bearer token", http.StatusUnauthorized},
		{"verifier failure", testhelpers.TokenVerifierStub{Err: context.DeadlineExceeded}, "Bearer token", http.StatusInternalServerError},
		{"valid token", testhelpers.TokenVerifierStub{}, "Bearer token", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(OperatorAuth(tc.verifier))
			router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.Code)
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)
	if token := extractToken(c); token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
	c.Request.Header.Set("Authorization", "Bearer abc")
	if token := extractToken(c); token != "abc" {
		t.Fatalf("expected token from header, got %q", token)
	}
	c.Request.Header.Set("Authorization", "bearer  xyz ")
	if token := extractToken(c); token != "xyz" {
		t.Fatalf("expected case-insensitive scheme, got %q", token)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("db down"))
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", resp.Header().Get(RequestIDHeader))
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["level"] != "INFO" || entry["request_id"] != "req-1" || entry["path"] != "/ok" {
		t.Fatalf("unexpected log entry %v", entry)
	}

	buf.Reset()
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if resp.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
	entry = nil
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["level"] != "ERROR" || entry["error"] == nil {
		t.Fatalf("expected error entry, got %v", entry)
	}
}
