package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

var testAsOf = time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC)

func alert(rule string, sev contracts.Severity) contracts.Alert {
	return contracts.Alert{
		ID:          contracts.AlertID(rule, "run42"),
		RuleName:    rule,
		Title:       strings.ToUpper(rule[:1]) + rule[1:],
		Message:     rule + " fired",
		Severity:    sev,
		TriggeredAt: testAsOf,
		RunID:       "run42",
	}
}

func TestFormatAlertsOrdersBySeverity(t *testing.T) {
	msg := formatAlerts([]contracts.Alert{
		alert("policy_restrictive", contracts.SeverityLow),
		alert("btc_crash", contracts.SeverityHigh),
		alert("yield_inversion", contracts.SeverityMedium),
	})

	assert.Contains(t, msg, "*Market Alerts* (3)")
	high := strings.Index(msg, "Btc_crash")
	medium := strings.Index(msg, "Yield_inversion")
	low := strings.Index(msg, "Policy_restrictive")
	assert.True(t, high < medium && medium < low, "most severe first: %s", msg)
	assert.Contains(t, msg, "🚨")
	assert.Contains(t, msg, "⚠️")
}

func TestFormatReport(t *testing.T) {
	sig, _ := contracts.NewSignal("vix_spike", contracts.DirectionBearish, 0.63, 0.9,
		contracts.StageCrossAssetIngest, nil, "run42", testAsOf)
	rep := contracts.Report{
		Title:   "Market Top-Down Analysis — 2025-06-02",
		Summary: "Overall bias bearish.",
		SignalsSummary: contracts.SignalsSummary{
			KeySignals: []contracts.Signal{sig},
		},
	}

	msg := formatReport(rep)
	assert.Contains(t, msg, "*Market Top-Down Analysis — 2025-06-02*")
	assert.Contains(t, msg, "Overall bias bearish.")
	assert.Contains(t, msg, "vix_spike: bearish (0.63)")
}

func telegramTestServer(t *testing.T, capture *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, "/bottest-token/sendMessage")
		require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
}

func TestTelegramSendAlerts(t *testing.T) {
	var got map[string]interface{}
	srv := telegramTestServer(t, &got)
	defer srv.Close()

	n := NewTelegram(httputil.New(logger.NewNop(), 5*time.Second), "test-token", "chat-1", logger.NewNop())
	n.baseURL = srv.URL

	err := n.SendAlerts(context.Background(), []contracts.Alert{alert("btc_crash", contracts.SeverityHigh)})
	require.NoError(t, err)

	assert.Equal(t, "chat-1", got["chat_id"])
	assert.Equal(t, "Markdown", got["parse_mode"])
	assert.Contains(t, got["text"], "btc_crash fired")
}

func TestTelegramRejectionSurfacesDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	n := NewTelegram(httputil.New(logger.NewNop(), 5*time.Second), "test-token", "chat-1", logger.NewNop())
	n.baseURL = srv.URL

	err := n.SendAlerts(context.Background(), []contracts.Alert{alert("btc_crash", contracts.SeverityHigh)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramDisabledWithoutCredentials(t *testing.T) {
	n := NewTelegram(httputil.New(logger.NewNop(), 5*time.Second), "", "", logger.NewNop())
	assert.False(t, n.Enabled())
	assert.NoError(t, n.SendAlerts(context.Background(), []contracts.Alert{alert("x", contracts.SeverityLow)}))
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub := NewHub(logger.NewNop())
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration races the broadcast without this
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.BroadcastAlerts([]contracts.Alert{alert("vix_spike", contracts.SeverityHigh)})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type string            `json:"type"`
		Data []contracts.Alert `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, "alerts", ev.Type)
	require.Len(t, ev.Data, 1)
	assert.Equal(t, "vix_spike", ev.Data[0].RuleName)
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestHubEmptyAlertsAreNotBroadcast(t *testing.T) {
	hub := NewHub(logger.NewNop())
	defer hub.Close()

	// must not panic with zero clients either
	hub.BroadcastAlerts(nil)
	hub.BroadcastReport(contracts.Report{Title: "t"})
}
