package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/api"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/risk"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	riskMgr := risk.NewManager(logger, types.DefaultRiskLimits())
	cfg := &types.ServerConfig{Host: "localhost", Port: 0}

	server := api.NewServer(logger, cfg, nil, riskMgr)
	return httptest.NewServer(server.Router())
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /api/v1/health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected status healthy, got %v", body["status"])
	}
}

func TestStatusEndpointReportsRiskMetricsWithoutRunner(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET /api/v1/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if _, ok := body["risk"]; !ok {
		t.Fatal("expected a risk metrics section in status response")
	}
	if _, ok := body["runner"]; ok {
		t.Fatal("did not expect a runner section when none was wired")
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
