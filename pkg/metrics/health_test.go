package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func resetHealth() {
	healthChecker = newHealthChecker()
}

func TestSetComponent(t *testing.T) {
	resetHealth()

	SetComponent("store", true, "seeded")

	if len(healthChecker.components) != 1 {
		t.Fatalf("expected 1 component, got %d", len(healthChecker.components))
	}

	comp := healthChecker.components["store"]
	if !comp.Healthy {
		t.Error("component should be healthy")
	}
	if comp.Message != "seeded" {
		t.Errorf("expected message 'seeded', got '%s'", comp.Message)
	}
}

func TestGetHealth_OneUnhealthy(t *testing.T) {
	resetHealth()
	SetVersion("1.0.0")

	SetComponent("api", true, "")
	SetComponent("simulation", false, "stopped")

	health := GetHealth()

	if health.Status != StatusUnhealthy {
		t.Errorf("expected status 'unhealthy', got '%s'", health.Status)
	}
	if health.Components["simulation"] != "unhealthy: stopped" {
		t.Errorf("unexpected simulation status: %s", health.Components["simulation"])
	}
	if health.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", health.Version)
	}
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]bool
		want       string
	}{
		{
			name:       "all critical components healthy",
			components: map[string]bool{"store": true, "simulation": true, "api": true},
			want:       StatusReady,
		},
		{
			name:       "missing component",
			components: map[string]bool{"store": true, "api": true},
			want:       StatusNotReady,
		},
		{
			name:       "unhealthy component",
			components: map[string]bool{"store": true, "simulation": false, "api": true},
			want:       StatusNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth()
			for name, healthy := range tt.components {
				SetComponent(name, healthy, "")
			}

			readiness := GetReadiness()
			if readiness.Status != tt.want {
				t.Errorf("expected status %q, got %q", tt.want, readiness.Status)
			}
			if tt.want == StatusNotReady && readiness.Message != "waiting for simulation" {
				t.Errorf("unexpected message %q", readiness.Message)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	resetHealth()
	SetComponent("store", true, "")

	w := httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var body HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Components["api"] != "not registered" {
		t.Errorf("unexpected api status %q", body.Components["api"])
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
}
