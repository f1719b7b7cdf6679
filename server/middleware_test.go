package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tabancura/frontdesk/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		expectedCost int64
	}{
		{"Metrics endpoint", "GET", "/metrics", 0},
		{"Health endpoint", "GET", "/health", 5},
		{"Catalog reload", "POST", "/catalog/reload", 200},
		{"Catalog search", "GET", "/catalog/search", 10},
		{"Audit history", "GET", "/audit/history", 20},
		{"Budget document", "GET", "/sessions/abc/documents/budget", 50},
		{"Order document", "GET", "/sessions/abc/documents/order", 50},
		{"Patient search", "POST", "/sessions/abc/search", 20},
		{"Session snapshot", "GET", "/sessions/abc", 5},
		{"Ledger edit", "PATCH", "/sessions/abc/ledger/rows/2", 5},
		{"Default endpoint", "GET", "/unknown", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if cost := getTokenCost(req); cost != tt.expectedCost {
				t.Errorf("Expected cost %d for %s %s, got %d", tt.expectedCost, tt.method, tt.path, cost)
			}
		})
	}
}

func TestClinicNetworkMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		expected   int
	}{
		{"IPv4 loopback", "127.0.0.1:5000", "", http.StatusOK},
		{"IPv6 loopback", "[::1]:5000", "", http.StatusOK},
		{"Private LAN", "192.168.1.20:5000", "", http.StatusOK},
		{"Private 10/8", "10.0.0.7:5000", "", http.StatusOK},
		{"Public address", "203.0.113.9:5000", "", http.StatusForbidden},
		{"Public address with forged header", "203.0.113.9:5000", "127.0.0.1", http.StatusForbidden},
		{"Garbage address", "not-an-ip", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/health", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()

			ClinicNetworkMiddleware(RealIPMiddleware(okHandler)).ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestRealIPMiddleware(t *testing.T) {
	var seen string
	handler := RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", " 192.168.1.44 , 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "192.168.1.44" {
		t.Errorf("Expected first forwarded address, got %q", seen)
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 64, MaxHeaderSize: 256}
	handler := RequestSizeMiddleware(cfg)(okHandler)

	tests := []struct {
		name     string
		body     string
		header   string
		expected int
	}{
		{"small request", `{"labels":["A"]}`, "", http.StatusOK},
		{"large body", strings.Repeat("x", 65), "", http.StatusRequestEntityTooLarge},
		{"large headers", "", strings.Repeat("h", 300), http.StatusRequestHeaderFieldsTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/sessions/a/ledger/items", strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set("X-Padding", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestRateLimiterHandler(t *testing.T) {
	rl := NewRateLimiter(time.Hour)
	defer rl.Stop()
	handler := rl.Handler(okHandler)

	// 1000 tokens cover five reloads at 200 each.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/catalog/reload", nil)
		req.RemoteAddr = "192.168.1.5:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected status 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest("POST", "/catalog/reload", nil)
	req.RemoteAddr = "192.168.1.5:4001"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Error("Expected Retry-After header")
	}

	// Another client has its own bucket.
	req = httptest.NewRequest("POST", "/catalog/reload", nil)
	req.RemoteAddr = "192.168.1.6:4000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 for another client, got %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(time.Hour)
	defer rl.Stop()

	rl.getBucket("192.168.1.7")
	rl.getBucket("192.168.1.8").TakeAvailable(500)
	rl.cleanup()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if _, ok := rl.clients["192.168.1.7"]; ok {
		t.Error("Expected idle client with a full bucket to be removed")
	}
	if _, ok := rl.clients["192.168.1.8"]; !ok {
		t.Error("Expected active client to be kept")
	}
}
