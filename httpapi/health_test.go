package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func healthServer(t *testing.T, checks map[string]HealthCheck) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHealthHandler("auth", checks).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp
}

func TestLivenessProbes(t *testing.T) {
	srv := healthServer(t, nil)

	var healthz map[string]string
	resp := getJSON(t, srv.URL+"/healthz", &healthz)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	if healthz["status"] != "ok" || healthz["service"] != "auth" {
		t.Fatalf("healthz body = %+v", healthz)
	}

	var livez map[string]string
	resp = getJSON(t, srv.URL+"/livez", &livez)
	if resp.StatusCode != http.StatusOK || livez["status"] != "ok" {
		t.Fatalf("livez: status %d, body %+v", resp.StatusCode, livez)
	}
}

type readyzBody struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks"`
}

func TestReadyzAllDependenciesHealthy(t *testing.T) {
	srv := healthServer(t, map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"database": func(context.Context) error { return nil },
	})

	var body readyzBody
	resp := getJSON(t, srv.URL+"/readyz", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body.Status != "ready" {
		t.Fatalf("status = %q, want ready", body.Status)
	}
	if !body.Checks["redis"] || !body.Checks["database"] {
		t.Fatalf("checks = %+v", body.Checks)
	}
}

func TestReadyzFailingDependency(t *testing.T) {
	srv := healthServer(t, map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"database": func(context.Context) error { return errors.New("connection refused") },
	})

	var body readyzBody
	resp := getJSON(t, srv.URL+"/readyz", &body)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if body.Status != "not_ready" {
		t.Fatalf("status = %q, want not_ready", body.Status)
	}
	if !body.Checks["redis"] || body.Checks["database"] {
		t.Fatalf("checks = %+v", body.Checks)
	}
}

func TestReadyzNoChecksIsReady(t *testing.T) {
	srv := healthServer(t, nil)

	var body readyzBody
	resp := getJSON(t, srv.URL+"/readyz", &body)
	if resp.StatusCode != http.StatusOK || body.Status != "ready" {
		t.Fatalf("status %d, body %+v", resp.StatusCode, body)
	}
}
