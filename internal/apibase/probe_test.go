package apibase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestProber_Probe(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		statusCode int
		wantOK     bool
		wantError  string
		wantStatus int
		wantDFID   string
		wantData   bool
	}{
		{
			name:       "device fingerprint",
			response:   `{"data": {"dfid": "abc"}}`,
			statusCode: http.StatusOK,
			wantOK:     true,
			wantDFID:   "abc",
			wantData:   true,
		},
		{
			name:       "missing dfid",
			response:   `{"data": {}}`,
			statusCode: http.StatusOK,
			wantError:  ProbeErrNoDFID,
			wantData:   true,
		},
		{
			name:       "empty dfid",
			response:   `{"data": {"dfid": ""}}`,
			statusCode: http.StatusOK,
			wantError:  ProbeErrNoDFID,
			wantData:   true,
		},
		{
			name:       "numeric dfid",
			response:   `{"data": {"dfid": 12}}`,
			statusCode: http.StatusOK,
			wantError:  ProbeErrNoDFID,
			wantData:   true,
		},
		{
			name:       "body is not json",
			response:   `<html>hello</html>`,
			statusCode: http.StatusOK,
			wantError:  ProbeErrNoDFID,
			wantData:   false,
		},
		{
			name:       "created counts as success",
			response:   `{"data": {"dfid": "xyz"}}`,
			statusCode: http.StatusCreated,
			wantOK:     true,
			wantDFID:   "xyz",
			wantData:   true,
		},
		{
			name:       "server error",
			response:   `{"error": "boom"}`,
			statusCode: http.StatusInternalServerError,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "not found",
			response:   ``,
			statusCode: http.StatusNotFound,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/register/dev" {
					t.Errorf("path = %q, want /register/dev", r.URL.Path)
				}
				if got := r.Header.Get("Accept"); got != "application/json" {
					t.Errorf("Accept = %q, want application/json", got)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			p := NewProber()
			got := p.Probe(context.Background(), server.URL+"/", ProbeOptions{})

			if got.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v (result %+v)", got.OK, tt.wantOK, got)
			}
			if got.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantError)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", got.Status, tt.wantStatus)
			}
			if got.DFID != tt.wantDFID {
				t.Errorf("DFID = %q, want %q", got.DFID, tt.wantDFID)
			}
			if (got.Data != nil) != tt.wantData {
				t.Errorf("Data = %v, want present=%v", got.Data, tt.wantData)
			}
		})
	}
}

func TestProber_ProbeStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	got := NewProber().Probe(context.Background(), server.URL, ProbeOptions{})
	if got.StatusText != "Service Unavailable" {
		t.Errorf("StatusText = %q, want %q", got.StatusText, "Service Unavailable")
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty for HTTP failures", got.Error)
	}
}

func TestProber_ProbeCustomPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"data": {"dfid": "abc"}}`))
	}))
	defer server.Close()

	p := NewProber(WithUserAgent("test-agent"))
	result := p.Probe(context.Background(), server.URL, ProbeOptions{Path: "health/check/"})

	if !result.OK {
		t.Fatalf("expected OK, got %+v", result)
	}
	if gotPath != "/health/check" {
		t.Errorf("path = %q, want /health/check", gotPath)
	}
}

func TestProber_ProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	got := NewProber().Probe(context.Background(), server.URL, ProbeOptions{Timeout: 50 * time.Millisecond})
	elapsed := time.Since(start)

	if got.OK {
		t.Fatal("expected probe to fail")
	}
	if got.Error != ProbeErrTimeout {
		t.Errorf("Error = %q, want %q", got.Error, ProbeErrTimeout)
	}
	if elapsed > 2*time.Second {
		t.Errorf("probe took %v, expected to stop near the timeout", elapsed)
	}
}

func TestProber_ProbeConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	got := NewProber().Probe(context.Background(), addr, ProbeOptions{Timeout: time.Second})

	if got.OK {
		t.Fatal("expected probe to fail")
	}
	if got.Error == "" || got.Error == ProbeErrTimeout || got.Error == ProbeErrNoDFID {
		t.Errorf("Error = %q, want a transport error message", got.Error)
	}
}

func TestProber_ProbeInvalidBase(t *testing.T) {
	got := NewProber().Probe(context.Background(), "http://[::1", ProbeOptions{})
	if got.OK || got.Error == "" {
		t.Errorf("expected error result for unparsable target, got %+v", got)
	}
}

func TestProber_ProbeCanceledParent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewProber().Probe(ctx, server.URL, ProbeOptions{})
	if got.OK {
		t.Fatal("expected probe to fail")
	}
	if got.Error == ProbeErrTimeout {
		t.Errorf("a canceled caller is not a timeout")
	}
	if !strings.Contains(got.Error, "canceled") {
		t.Errorf("Error = %q, want cancellation message", got.Error)
	}
}
