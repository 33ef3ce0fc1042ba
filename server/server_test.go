package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stakewatch/exposure"
	"github.com/rustyeddy/stakewatch/market"
	"github.com/rustyeddy/stakewatch/metrics"
	"github.com/rustyeddy/stakewatch/monitor"
	"github.com/rustyeddy/stakewatch/risk"
	"github.com/rustyeddy/stakewatch/rules"
)

func newTestServer(t *testing.T) (*Server, *Hub) {
	t.Helper()

	reg := prometheus.NewRegistry()
	secs := market.NewSecurities(
		market.Security{ID: "ACME", Jurisdiction: "US", SharesOutstanding: decimal.NewFromInt(100_000_000)},
	)
	m := monitor.New(monitor.Config{Partitions: 2},
		exposure.NewAggregator(nil, exposure.WithSecurities(secs)),
		rules.NewEvaluator(nil),
		monitor.WithSecurities(secs),
		monitor.WithMetrics(metrics.New(reg)),
	)
	m.Start(context.Background())
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Seed(market.Holding{Owner: "FUND", SecurityID: "ACME", SharesOwned: decimal.NewFromInt(6_000_000)}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Flush(ctx))

	hub := NewHub(zerolog.Nop())
	hubCtx, stop := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	t.Cleanup(stop)

	return New(Config{Log: zerolog.Nop(), Monitor: m, Hub: hub, Gatherer: reg}), hub
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestQueries(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{"health", "/health", http.StatusOK, func(t *testing.T, b map[string]any) {
			assert.Equal(t, "ok", b["status"])
			assert.Equal(t, "connected", b["feed"])
		}},
		{"risk", "/api/risk/acme", http.StatusOK, func(t *testing.T, b map[string]any) {
			assert.Equal(t, "Breach", b["status"])
			assert.Equal(t, "Schedule 13D", b["required_form"])
		}},
		{"unknown security", "/api/risk/NOPE", http.StatusNotFound, nil},
		{"exposure", "/api/exposure/ACME", http.StatusOK, func(t *testing.T, b map[string]any) {
			assert.Equal(t, "Direct: 6.00% | Hidden: +0.00%", b["summary"])
		}},
		{"deadline", "/api/deadline?date=2025-05-26&days=5&jurisdiction=de", http.StatusOK, func(t *testing.T, b map[string]any) {
			assert.True(t, strings.HasPrefix(b["date"].(string), "2025-06-03"))
			assert.Equal(t, true, b["adjusted_for_holiday"])
		}},
		{"deadline bad date", "/api/deadline?date=26/05/2025&days=5&jurisdiction=DE", http.StatusBadRequest, nil},
		{"deadline bad days", "/api/deadline?date=2025-05-26&days=x&jurisdiction=DE", http.StatusBadRequest, nil},
		{"deadline no jurisdiction", "/api/deadline?date=2025-05-26&days=5", http.StatusBadRequest, nil},
		{"deadline days too large", "/api/deadline?date=2025-05-26&days=2000000000&jurisdiction=DE", http.StatusBadRequest, func(t *testing.T, b map[string]any) {
			assert.Contains(t, b["error"], "3660")
		}},
		{"deadline days at limit", "/api/deadline?date=2025-05-26&days=3660&jurisdiction=DE", http.StatusOK, nil},
		{"feed", "/api/feed", http.StatusOK, func(t *testing.T, b map[string]any) {
			assert.Equal(t, true, b["connected"])
		}},
		{"alert", "/api/alerts/ACME", http.StatusOK, func(t *testing.T, b map[string]any) {
			assert.Equal(t, "Open", b["state"])
			assert.Equal(t, "Breach", b["severity"])
		}},
		{"no alert", "/api/alerts/NOPE", http.StatusNotFound, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodGet, tt.path, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestAlertActions(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec, _ := do(t, s, http.MethodPost, "/api/alerts/ACME/dismiss", `{"actor":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/alerts/ACME/acknowledge", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/alerts/ACME/acknowledge", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(t, s, http.MethodPost, "/api/alerts/ACME/acknowledge", `{"actor":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Acknowledged", body["state"])

	rec, body = do(t, s, http.MethodPost, "/api/alerts/ACME/resolve", `{"actor":"bob","note":"filed 13D"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Resolved", body["state"])

	rec, _ = do(t, s, http.MethodPost, "/api/alerts/ACME/acknowledge", `{"actor":"alice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/alerts/ACME/explode", `{"actor":"alice"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stakewatch_monitor_transitions_total")
}

func TestWebSocketReceivesTransitions(t *testing.T) {
	t.Parallel()
	s, hub := newTestServer(t)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.Eventually(t, func() bool {
		n, err := hub.Clients(context.Background())
		return err == nil && n == 1
	}, 5*time.Second, 10*time.Millisecond)

	tr := risk.Transition{ID: "T1", SecurityID: "ACME", Type: risk.BreachDetected, From: risk.Warning, To: risk.Breach}
	require.NoError(t, hub.Publish(context.Background(), tr))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, r, err := conn.NextReader()
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)

	var msg struct {
		Type string          `json:"type"`
		Data risk.Transition `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, "transition", msg.Type)
	assert.Equal(t, "ACME", msg.Data.SecurityID)
	assert.Equal(t, risk.Breach, msg.Data.To)
}
