package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"floodwatch/config"
	"floodwatch/models"
)

// Notifier delivers alert notifications and reports to a Telegram chat
// through the Bot API. Delivery is best effort: the caller logs failures
// and never retries within a cooldown window.
type Notifier struct {
	cfg    config.TelegramConfig
	client *http.Client
}

// NewNotifier creates a Telegram notifier
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether the notifier is configured for delivery
func (n *Notifier) Enabled() bool {
	return n.cfg.Enabled && n.cfg.BotToken != "" && n.cfg.ChatID != ""
}

// SendAlert formats and delivers a smart alert notification
func (n *Notifier) SendAlert(alert *models.AlertNotification) error {
	var b strings.Builder
	b.WriteString("*Water Level Alert*\n")
	fmt.Fprintf(&b, "*Node ID:* %s\n", alert.DeviceID)
	fmt.Fprintf(&b, "*Current Level:* %.1f cm\n", alert.CurrentLevel)
	fmt.Fprintf(&b, "*Rising Speed:* %.2f cm/min\n", alert.ChangeRate)
	fmt.Fprintf(&b, "*Risk Status:* %s\n", strings.ToUpper(string(alert.RiskStatus)))
	fmt.Fprintf(&b, "*Time:* %s\n", alert.Timestamp.Format(time.RFC1123))
	b.WriteString(alert.Message)

	return n.send(b.String())
}

// SendReport formats and delivers a full water level report
func (n *Notifier) SendReport(report *models.WaterLevelReport) error {
	var highAlerts, lowAlerts int
	for _, a := range report.Alerts {
		switch a.Kind {
		case models.AnomalyHigh:
			highAlerts++
		case models.AnomalyLow:
			lowAlerts++
		}
	}

	var b strings.Builder
	b.WriteString("*WATER LEVEL REPORT*\n\n")
	fmt.Fprintf(&b, "*Device ID:* `%s`\n", report.DeviceID)
	fmt.Fprintf(&b, "*Period:* %s\n", report.Period)
	fmt.Fprintf(&b, "*Generated:* %s\n\n", report.GeneratedAt.Format(time.RFC1123))

	b.WriteString("*STATISTICS SUMMARY*\n")
	fmt.Fprintf(&b, "Latest Reading: *%.1f cm*\n", report.Latest)
	fmt.Fprintf(&b, "Maximum: *%.1f cm*\n", report.Max)
	fmt.Fprintf(&b, "Minimum: *%.1f cm*\n", report.Min)
	fmt.Fprintf(&b, "Average: *%.1f cm*\n\n", report.Average)

	b.WriteString("*TIME PERIOD AVERAGES*\n")
	fmt.Fprintf(&b, "Last 1 Hour: %s\n", formatAverage(report.TimePeriodAverages.Last1Hour))
	fmt.Fprintf(&b, "Last 6 Hours: %s\n", formatAverage(report.TimePeriodAverages.Last6Hours))
	fmt.Fprintf(&b, "Last 12 Hours: %s\n", formatAverage(report.TimePeriodAverages.Last12Hours))
	fmt.Fprintf(&b, "Last 24 Hours: %s\n\n", formatAverage(report.TimePeriodAverages.Last24Hours))

	b.WriteString("*ALERTS SUMMARY*\n")
	if len(report.Alerts) == 0 {
		b.WriteString("No abnormal readings detected")
	} else {
		fmt.Fprintf(&b, "High Level Alerts: %d\n", highAlerts)
		fmt.Fprintf(&b, "Low Level Alerts: %d\n", lowAlerts)
		fmt.Fprintf(&b, "Total: %d alert(s)", len(report.Alerts))
	}

	return n.send(b.String())
}

// formatAverage renders a period average, treating the 0 sentinel as
// missing data rather than a real level
func formatAverage(avg float64) string {
	if avg <= 0 {
		return "No data"
	}
	return fmt.Sprintf("%.1f cm", avg)
}

func (n *Notifier) send(text string) error {
	if !n.Enabled() {
		return fmt.Errorf("telegram notifications are not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    n.cfg.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %v", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.cfg.APIBase, n.cfg.BotToken)
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to post telegram message: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
