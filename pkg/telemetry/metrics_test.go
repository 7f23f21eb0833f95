package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandlerExposesRecordedSeries(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{
		Enabled:       true,
		ListenAddress: ":9464",
		Path:          "/metrics",
		Namespace:     "imageforge",
	})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordRunStarted("flotilla-notebook")
	m.RecordRunCompleted("failed", 2*time.Second)
	m.RecordStepExecuted("fetch", "failed", 500*time.Millisecond)
	m.RecordError("network")

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	scrape := string(body)
	for _, want := range []string{
		`imageforge_runs_started_total{recipe="flotilla-notebook"} 1`,
		`imageforge_runs_completed_total{status="failed"} 1`,
		`imageforge_steps_executed_total{kind="fetch",status="failed"} 1`,
		`imageforge_errors_total{class="network"} 1`,
	} {
		if !strings.Contains(scrape, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestMetricsDisabledIsInert(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	// Record methods are no-ops and the scrape surface is absent.
	m.RecordRunStarted("x")
	m.RecordError("process")

	if m.Handler() != nil {
		t.Error("Handler() != nil for disabled metrics")
	}
	if err := m.Serve(); err != nil {
		t.Errorf("Serve() = %v, want nil for disabled metrics", err)
	}
}
