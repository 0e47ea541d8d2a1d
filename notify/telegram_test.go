package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"floodwatch/config"
	"floodwatch/models"
)

func testConfig(apiBase string) config.TelegramConfig {
	return config.TelegramConfig{
		Enabled:  true,
		BotToken: "test-token",
		ChatID:   "12345",
		APIBase:  apiBase,
	}
}

// captureServer records the last sendMessage payload
func captureServer(t *testing.T, status int) (*httptest.Server, *map[string]string) {
	t.Helper()
	captured := map[string]string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottest-token/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read request body: %v", err)
		}
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		w.WriteHeader(status)
	}))

	return srv, &captured
}

func TestNotifierEnabled(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.TelegramConfig
		expected bool
	}{
		{"fully configured", config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "c"}, true},
		{"disabled flag", config.TelegramConfig{Enabled: false, BotToken: "t", ChatID: "c"}, false},
		{"missing token", config.TelegramConfig{Enabled: true, ChatID: "c"}, false},
		{"missing chat", config.TelegramConfig{Enabled: true, BotToken: "t"}, false},
	}

	for _, tt := range tests {
		if got := NewNotifier(tt.cfg).Enabled(); got != tt.expected {
			t.Errorf("%s: Enabled() = %v, want %v", tt.name, got, tt.expected)
		}
	}
}

func TestSendAlertFormatsMessage(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK)
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := n.SendAlert(&models.AlertNotification{
		DeviceID:     "device_001",
		Kind:         models.AlertRapidRise,
		Severity:     models.SeverityCritical,
		CurrentLevel: 160,
		ChangeRate:   12,
		RiskStatus:   models.RiskCritical,
		Message:      "Rapid water rise: 12.00 cm/min",
		Timestamp:    ts,
	})
	if err != nil {
		t.Fatalf("SendAlert failed: %v", err)
	}

	if (*captured)["chat_id"] != "12345" {
		t.Errorf("chat_id = %q, want 12345", (*captured)["chat_id"])
	}
	if (*captured)["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %q, want Markdown", (*captured)["parse_mode"])
	}

	text := (*captured)["text"]
	for _, want := range []string{
		"*Water Level Alert*",
		"*Node ID:* device_001",
		"*Current Level:* 160.0 cm",
		"*Rising Speed:* 12.00 cm/min",
		"*Risk Status:* CRITICAL",
		"Rapid water rise: 12.00 cm/min",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("alert text missing %q:\n%s", want, text)
		}
	}
}

func TestSendReportFormatsMessage(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK)
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))

	err := n.SendReport(&models.WaterLevelReport{
		DeviceID:    "device_001",
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Period:      "Last 24 hours",
		Latest:      110,
		Max:         155,
		Min:         90,
		Average:     112.5,
		TimePeriodAverages: models.TimePeriodAverages{
			Last1Hour:   110.0,
			Last6Hours:  112.3,
			Last24Hours: 115.0,
		},
		Alerts: []models.AnomalyAlert{
			{Kind: models.AnomalyHigh, Level: 155, Threshold: 150},
		},
	})
	if err != nil {
		t.Fatalf("SendReport failed: %v", err)
	}

	text := (*captured)["text"]
	for _, want := range []string{
		"*WATER LEVEL REPORT*",
		"*Device ID:* `device_001`",
		"*Period:* Last 24 hours",
		"Latest Reading: *110.0 cm*",
		"Maximum: *155.0 cm*",
		"Minimum: *90.0 cm*",
		"Average: *112.5 cm*",
		"Last 1 Hour: 110.0 cm",
		"Last 6 Hours: 112.3 cm",
		"Last 12 Hours: No data", // zero sentinel renders as missing
		"Last 24 Hours: 115.0 cm",
		"High Level Alerts: 1",
		"Low Level Alerts: 0",
		"Total: 1 alert(s)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q:\n%s", want, text)
		}
	}
}

func TestSendReportNoAlerts(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK)
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))

	err := n.SendReport(&models.WaterLevelReport{
		DeviceID: "device_001",
		Period:   "Last 6 hours",
		Alerts:   []models.AnomalyAlert{},
	})
	if err != nil {
		t.Fatalf("SendReport failed: %v", err)
	}

	text := (*captured)["text"]
	if !strings.Contains(text, "No abnormal readings detected") {
		t.Errorf("report text missing quiet summary:\n%s", text)
	}
	if strings.Contains(text, "Total:") {
		t.Errorf("quiet report should not carry alert counts:\n%s", text)
	}
}

func TestSendAlertAPIError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest)
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))
	err := n.SendAlert(&models.AlertNotification{DeviceID: "device_001"})
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}

func TestSendAlertDisabled(t *testing.T) {
	n := NewNotifier(config.TelegramConfig{})
	if err := n.SendAlert(&models.AlertNotification{DeviceID: "device_001"}); err == nil {
		t.Fatal("expected an error when notifications are not configured")
	}
}
