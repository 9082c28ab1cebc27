package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := fetchesTotal
	Init()

	if fetchesTotal == nil || fetchDurationSeconds == nil || responseBytesTotal == nil ||
		pendingFetches == nil || httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
	if first != fetchesTotal {
		t.Fatal("Init() replaced collectors on second call")
	}
}

func TestObserveFetch(t *testing.T) {
	Init()

	ObserveFetch("https://Observe.Example/a", OutcomeSuccess, 42, 30*time.Millisecond)
	ObserveFetch("observe.example", OutcomeTimeout, 0, time.Second)

	if val := testutil.ToFloat64(fetchesTotal.WithLabelValues("observe.example", OutcomeSuccess)); val != 1 {
		t.Errorf("expected 1 successful fetch, got %f", val)
	}
	if val := testutil.ToFloat64(fetchesTotal.WithLabelValues("observe.example", OutcomeTimeout)); val != 1 {
		t.Errorf("expected 1 timed out fetch, got %f", val)
	}
	if val := testutil.ToFloat64(responseBytesTotal.WithLabelValues("observe.example")); val != 42 {
		t.Errorf("expected 42 bytes, got %f", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
