package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func limitedHandler(rl *IPRateLimiter) http.HandlerFunc {
	return RateLimitHandlerFunc(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func loginAttempt(handler http.HandlerFunc, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestLoginLimiterAllowsBurstThenBlocks(t *testing.T) {
	handler := limitedHandler(NewLoginLimiter())

	for i := 0; i < loginBurst; i++ {
		if rec := loginAttempt(handler, "192.168.1.1:12345"); rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := loginAttempt(handler, "192.168.1.1:12345")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("attempt past burst: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "too many requests" {
		t.Errorf("error = %q, want %q", body["error"], "too many requests")
	}
}

func TestRateLimitPerIPIsolation(t *testing.T) {
	handler := limitedHandler(NewIPRateLimiter(rate.Every(time.Second), 1))

	if rec := loginAttempt(handler, "1.1.1.1:1234"); rec.Code != http.StatusOK {
		t.Fatalf("IP A first attempt: status = %d", rec.Code)
	}
	if rec := loginAttempt(handler, "1.1.1.1:1234"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("IP A second attempt: status = %d, want 429", rec.Code)
	}
	if rec := loginAttempt(handler, "2.2.2.2:1234"); rec.Code != http.StatusOK {
		t.Fatalf("IP B must not share IP A's bucket: status = %d", rec.Code)
	}
}

func TestRateLimitBurstClampedToOne(t *testing.T) {
	handler := limitedHandler(NewIPRateLimiter(rate.Every(time.Second), 0))

	if rec := loginAttempt(handler, "3.3.3.3:1234"); rec.Code != http.StatusOK {
		t.Fatalf("clamped burst must still admit one request, status = %d", rec.Code)
	}
	if rec := loginAttempt(handler, "3.3.3.3:1234"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestRateLimitSkipsPreflight(t *testing.T) {
	handler := limitedHandler(NewIPRateLimiter(rate.Every(time.Second), 1))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.RemoteAddr = "4.4.4.4:1234"
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("preflight %d: status = %d, want 200", i, rec.Code)
		}
	}

	// Preflights above must not have drained the bucket.
	if rec := loginAttempt(handler, "4.4.4.4:1234"); rec.Code != http.StatusOK {
		t.Fatalf("POST after preflights: status = %d, want 200", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*http.Request)
		want  string
	}{
		{
			"first forwarded hop wins",
			func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18") },
			"203.0.113.50",
		},
		{
			"real-ip header",
			func(r *http.Request) { r.Header.Set("X-Real-IP", "198.51.100.10") },
			"198.51.100.10",
		},
		{
			"socket address",
			func(r *http.Request) { r.RemoteAddr = "192.0.2.1:54321" },
			"192.0.2.1",
		},
		{
			"ipv6 socket address",
			func(r *http.Request) { r.RemoteAddr = "[2001:db8::1]:54321" },
			"2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			if got := getClientIP(req); got != tt.want {
				t.Fatalf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
