package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jamesweston/viral-monitor/internal/monitor"
)

func testEvent() monitor.ViralEvent {
	return monitor.ViralEvent{
		ID:            "evt-1",
		Username:      "creator",
		VideoID:       "7300000000000000001",
		Description:   "dance challenge",
		PreviousViews: 500,
		CurrentViews:  5500,
		Delta:         5000,
		Likes:         300,
		Comments:      45,
		Shares:        12,
		DetectedAt:    time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
	}
}

func newTestTelegram(serverURL string) *Telegram {
	tg := NewTelegram("bot-token", "-100200300")
	tg.baseURL = serverURL
	return tg
}

func TestTelegram_SendPostsFormattedAlert(t *testing.T) {
	t.Parallel()

	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botbot-token/sendMessage", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, newTestTelegram(server.URL).Send(context.Background(), testEvent()))

	require.Equal(t, "-100200300", got.ChatID)
	require.Equal(t, "Markdown", got.ParseMode)
	require.Contains(t, got.Text, "VIRAL ALERT")
	require.Contains(t, got.Text, "@creator")
	require.Contains(t, got.Text, "5500 (+5000)")
	require.Contains(t, got.Text, "https://www.tiktok.com/@creator/video/7300000000000000001")
}

func TestTelegram_SendTruncatesLongDescription(t *testing.T) {
	t.Parallel()

	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	event := testEvent()
	event.Description = strings.Repeat("é", 150)
	require.NoError(t, newTestTelegram(server.URL).Send(context.Background(), event))

	require.Contains(t, got.Text, strings.Repeat("é", 100)+"...")
	require.NotContains(t, got.Text, strings.Repeat("é", 101))
}

func TestTelegram_SendTextPostsPlainMessage(t *testing.T) {
	t.Parallel()

	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, newTestTelegram(server.URL).SendText(context.Background(), "monitor started"))
	require.Equal(t, "monitor started", got.Text)
}

func TestTelegram_NonOKResponseIsAnError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"ok":false,"description":"bad gateway"}`))
	}))
	defer server.Close()

	err := newTestTelegram(server.URL).Send(context.Background(), testEvent())
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
	require.Contains(t, err.Error(), "bad gateway")
}
