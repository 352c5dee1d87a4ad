package api

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func gzipBody(t *testing.T, payload string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(payload)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return &buf
}

func TestGzipRequestMiddlewareDecompresses(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/commands", gzipBody(t, `[{"type":"noop"}]`))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen []byte
	handler := GzipRequestMiddleware()(func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		seen = body
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if string(seen) != `[{"type":"noop"}]` {
		t.Fatalf("unexpected decompressed body: %s", seen)
	}
	if c.Request().Header.Get(echo.HeaderContentEncoding) != "" {
		t.Fatalf("expected content encoding header to be removed")
	}
}

func TestGzipRequestMiddlewarePassesThroughPlainBodies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/commands", bytes.NewBufferString("[]"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := GzipRequestMiddleware()(func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		if string(body) != "[]" {
			t.Fatalf("unexpected body: %s", body)
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
}

func TestGzipRequestMiddlewareRejectsBadGzip(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/commands", bytes.NewBufferString("not gzip"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := GzipRequestMiddleware()(func(c echo.Context) error {
		t.Fatalf("handler must not run for invalid gzip")
		return nil
	})

	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}
