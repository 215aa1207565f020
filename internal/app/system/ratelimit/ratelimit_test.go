package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsBurstThenBlocks(t *testing.T) {
	l := New(3, time.Hour)
	defer l.Close()

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("k"), "attempt %d", i+1)
	}
	assert.False(t, l.Allow("k"))
	assert.True(t, l.Allow("other"), "keys are independent")
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Hour)
	defer l.Close()

	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))
	assert.Equal(t, 0, l.Remaining("k"))

	l.Reset("k")
	assert.Equal(t, 1, l.Remaining("k"))
	assert.True(t, l.Allow("k"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote with port", nil, "192.0.2.7:5555", "192.0.2.7"},
		{"remote without port", nil, "192.0.2.8", "192.0.2.8"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(r))
		})
	}
}

func TestMiddleware_Returns429(t *testing.T) {
	l := New(2, time.Hour)
	defer l.Close()

	h := Middleware(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.RemoteAddr = "192.0.2.1:1000"
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestMiddleware_OverHandler(t *testing.T) {
	l := New(1, time.Hour)
	defer l.Close()

	over := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	h := Middleware(l, over)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", nil)
		r.RemoteAddr = "192.0.2.9:1000"
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusAccepted}, codes)
}

func TestLoginLimiter_EmailBucketIgnoresCase(t *testing.T) {
	ll := NewLoginLimiterWithConfig(100, time.Minute, 2, time.Hour)
	defer ll.Close()

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	ok, _ := ll.Check(r, "A@x.com")
	require.True(t, ok)
	ok, _ = ll.Check(r, " a@X.com ")
	require.True(t, ok)
	ok, reason := ll.Check(r, "a@x.com")
	assert.False(t, ok)
	assert.Contains(t, reason, "this account")

	ll.ResetEmail("A@X.COM")
	ok, _ = ll.Check(r, "a@x.com")
	assert.True(t, ok)
}

func TestLoginLimiter_IPBucket(t *testing.T) {
	ll := NewLoginLimiterWithConfig(1, time.Hour, 100, time.Hour)
	defer ll.Close()

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	ok, _ := ll.Check(r, "one@x.com")
	require.True(t, ok)
	ok, reason := ll.Check(r, "two@x.com")
	assert.False(t, ok)
	assert.Contains(t, reason, "wait a minute")
}
