package netutil

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"timeout", timeoutErr{}, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"read reset", &net.OpError{Op: "read", Err: errors.New("reset")}, false},
		{"url wrapping dial", &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, true},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRetryTransportRetriesTransientErrors(t *testing.T) {
	calls := 0
	rt := &RetryTransport{
		MaxRetries: 2,
		Base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, &net.OpError{Op: "dial", Err: errors.New("refused")}
			}
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
	}
	req, _ := http.NewRequest(http.MethodGet, "http://api.local/status/1", nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.StatusCode != http.StatusOK || calls != 3 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode, calls)
	}
}

func TestRetryTransportStopsOnPermanentError(t *testing.T) {
	calls := 0
	rt := &RetryTransport{
		MaxRetries: 3,
		Base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("tls: bad certificate")
		}),
	}
	req, _ := http.NewRequest(http.MethodGet, "http://api.local/status/1", nil)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
