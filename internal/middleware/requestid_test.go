package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/nstore/internal/logger"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()

	if id1 == "" {
		t.Error("Expected a non-empty request ID")
	}
	if id1 == id2 {
		t.Error("Expected unique request IDs")
	}
	if len(id1) != 32 {
		t.Errorf("Expected 32 hex chars, got %d", len(id1))
	}
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, ok := r.Context().Value(logger.RequestIDKey).(string)
		if !ok || reqID == "" {
			t.Error("Expected request ID in context")
		}
		if reqID != w.Header().Get(RequestIDHeader) {
			t.Error("Expected context and response header to agree")
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	RequestID(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/v1/namespaces", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestRequestID_HonorsClientID(t *testing.T) {
	const existing = "client-supplied-id"

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID, _ := r.Context().Value(logger.RequestIDKey).(string); reqID != existing {
			t.Errorf("Expected request ID %q, got %q", existing, reqID)
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/v1/namespaces", nil)
	req.Header.Set(RequestIDHeader, existing)
	rec := httptest.NewRecorder()
	RequestID(handler).ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) != existing {
		t.Errorf("Expected client ID echoed back, got %q", rec.Header().Get(RequestIDHeader))
	}
}
