package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

const compressBody = `{"namespaces":["alpha","beta","gamma"],"total":3}`

func jsonHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(compressBody))
	})
}

func TestCompress_Brotli(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/namespaces", nil)
	req.Header.Set("Accept-Encoding", "br, gzip")
	rec := httptest.NewRecorder()

	Compress(jsonHandler()).ServeHTTP(rec, req)

	if enc := rec.Header().Get("Content-Encoding"); enc != "br" {
		t.Fatalf("Expected brotli preferred, got %q", enc)
	}

	decoded, err := io.ReadAll(brotli.NewReader(rec.Body))
	if err != nil {
		t.Fatalf("Brotli decode failed: %v", err)
	}
	if string(decoded) != compressBody {
		t.Errorf("Expected body to round-trip, got %q", decoded)
	}
}

func TestCompress_Gzip(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/namespaces", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	Compress(jsonHandler()).ServeHTTP(rec, req)

	if enc := rec.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("Expected gzip, got %q", enc)
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("Gzip reader failed: %v", err)
	}
	decoded, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("Gzip decode failed: %v", err)
	}
	if string(decoded) != compressBody {
		t.Errorf("Expected body to round-trip, got %q", decoded)
	}
}

func TestCompress_Identity(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/namespaces", nil)
	rec := httptest.NewRecorder()

	Compress(jsonHandler()).ServeHTTP(rec, req)

	if enc := rec.Header().Get("Content-Encoding"); enc != "" {
		t.Errorf("Expected identity response, got %q", enc)
	}
	if rec.Body.String() != compressBody {
		t.Errorf("Expected uncompressed body, got %q", rec.Body.String())
	}
}

func TestCompress_SkipsPreEncodedResponses(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A blob download handler serving stored gzip bytes as-is.
		w.Header().Set("Content-Encoding", "gzip")
		w.Write([]byte("raw-gzip-bytes"))
	})

	req := httptest.NewRequest("GET", "/v1/namespaces/ns/blobs/k", nil)
	req.Header.Set("Accept-Encoding", "br, gzip")
	rec := httptest.NewRecorder()

	Compress(handler).ServeHTTP(rec, req)

	if rec.Body.String() != "raw-gzip-bytes" {
		t.Error("Expected pre-encoded body to pass through untouched")
	}
	if enc := rec.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Errorf("Expected handler's encoding preserved, got %q", enc)
	}
}

func TestCompress_StatusPreserved(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"RESOURCE_NOT_FOUND"}}`))
	})

	req := httptest.NewRequest("GET", "/v1/namespaces/none", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	Compress(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 through compression, got %d", rec.Code)
	}
}

func TestCompress_LargePayloadShrinks(t *testing.T) {
	large := strings.Repeat(compressBody, 200)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(large))
	})

	req := httptest.NewRequest("GET", "/v1/namespaces", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	Compress(handler).ServeHTTP(rec, req)

	if rec.Body.Len() >= len(large) {
		t.Errorf("Expected compressed body smaller than %d, got %d", len(large), rec.Body.Len())
	}
}
