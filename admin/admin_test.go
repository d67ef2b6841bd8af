package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnehpets/onerpc/server"
)

type fixedStats server.Snapshot

func (f fixedStats) Stats() server.Snapshot {
	return server.Snapshot(f)
}

func TestHealthz(t *testing.T) {
	router := NewRouter(fixedStats{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got, want := rec.Body.String(), "{\"status\":\"ok\"}\n"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestStats(t *testing.T) {
	src := fixedStats{
		Accepted: 4,
		Aborted:  1,
		InFlight: 0,
		ByStatus: map[string]uint64{"200": 2, "405": 1},
	}
	router := NewRouter(src)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got server.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	if got.Accepted != 4 || got.Aborted != 1 || got.InFlight != 0 {
		t.Errorf("counters = %+v", got)
	}
	if got.ByStatus["200"] != 2 || got.ByStatus["405"] != 1 {
		t.Errorf("by_status = %v", got.ByStatus)
	}
}

func TestStatsJSONFieldNames(t *testing.T) {
	router := NewRouter(fixedStats{ByStatus: map[string]uint64{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	want := "{\"accepted\":0,\"aborted\":0,\"in_flight\":0,\"by_status\":{}}\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestRoutes(t *testing.T) {
	router := NewRouter(fixedStats{})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/stats", http.StatusOK},
		{http.MethodPost, "/healthz", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/stats", http.StatusMethodNotAllowed},
		{http.MethodGet, "/", http.StatusNotFound},
		{http.MethodGet, "/metrics", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}
		})
	}
}

func TestErrorBodies(t *testing.T) {
	router := NewRouter(fixedStats{})

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/nope", "{\"error\":\"Not Found\"}\n"},
		{http.MethodPut, "/stats", "{\"error\":\"Method Not Allowed\"}\n"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if got := rec.Body.String(); got != tt.want {
			t.Errorf("%s %s: body = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestAPIHeaders(t *testing.T) {
	router := NewRouter(fixedStats{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	for name, value := range want {
		if got := rec.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
}

func TestStatsFromServer(t *testing.T) {
	srv := server.New(nil)
	router := NewRouter(srv)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
