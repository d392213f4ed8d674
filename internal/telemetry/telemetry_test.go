package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/flemzord/relaybot/internal/config"
)

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "dev")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetup_InvalidEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := Setup(context.Background(), config.TelemetryConfig{Endpoint: "collector:4318"}, "dev"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTracesURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"http://collector:4318":          "http://collector:4318/v1/traces",
		"http://collector:4318/":         "http://collector:4318/v1/traces",
		"https://otel.example/custom/tr": "https://otel.example/custom/tr",
	}
	for in, want := range tests {
		got, err := tracesURL(in)
		if err != nil {
			t.Fatalf("tracesURL(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("tracesURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// Not parallel: Setup replaces the global tracer provider.
func TestSetup_ExportsSpans(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tracesPath {
			t.Errorf("path = %s, want %s", r.URL.Path, tracesPath)
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Endpoint: srv.URL}, "test")
	if err != nil {
		t.Fatal(err)
	}

	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "unit")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if hits.Load() == 0 {
		t.Fatal("collector received no export request")
	}
}
