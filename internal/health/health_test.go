package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAggregateStatus(t *testing.T) {
	c := NewChecker()
	c.Register("store", true, func(ctx context.Context) CheckResult { return Healthy() })
	c.Register("input", false, func(ctx context.Context) CheckResult { return Healthy() })

	report := c.RunChecks(context.Background())
	if report.Status != StatusHealthy {
		t.Fatalf("status = %s, want healthy", report.Status)
	}
	if len(report.Components) != 2 {
		t.Fatalf("components = %d, want 2", len(report.Components))
	}
}

func TestNonCriticalFailureDegrades(t *testing.T) {
	c := NewChecker()
	c.Register("store", true, func(ctx context.Context) CheckResult { return Healthy() })
	c.Register("input", false, func(ctx context.Context) CheckResult {
		return Unhealthy("no input devices")
	})

	report := c.RunChecks(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("status = %s, want degraded", report.Status)
	}
}

func TestCriticalFailureUnhealthy(t *testing.T) {
	c := NewChecker()
	c.Register("store", true, func(ctx context.Context) CheckResult {
		return Unhealthy("database locked")
	})

	report := c.RunChecks(context.Background())
	if report.Status != StatusUnhealthy {
		t.Fatalf("status = %s, want unhealthy", report.Status)
	}
}

func TestHandler(t *testing.T) {
	c := NewChecker()
	c.Register("store", true, func(ctx context.Context) CheckResult { return Healthy() })

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != StatusHealthy {
		t.Errorf("report status = %s", report.Status)
	}
}

func TestHandlerServiceUnavailable(t *testing.T) {
	c := NewChecker()
	c.Register("store", true, func(ctx context.Context) CheckResult {
		return Unhealthy("down")
	})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestReadiness(t *testing.T) {
	c := NewChecker()

	srv := httptest.NewServer(c.ReadyHandler())
	defer srv.Close()

	resp, _ := http.Get(srv.URL)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status before ready = %d, want 503", resp.StatusCode)
	}

	c.SetReady(true)
	resp, _ = http.Get(srv.URL)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status after ready = %d, want 200", resp.StatusCode)
	}
}
