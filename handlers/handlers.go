package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"floodwatch/config"
	"floodwatch/database"
	"floodwatch/models"
	"floodwatch/notify"
	"floodwatch/services"
	"floodwatch/websocket"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floodwatch_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"endpoint"},
	)
)

// Metrics records request counts and durations per endpoint
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		requestsTotal.WithLabelValues(endpoint, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler contains all the dependencies needed for HTTP handlers
type Handler struct {
	db       *database.DB
	hub      *websocket.Hub
	monitor  *services.Monitor
	notifier *notify.Notifier
}

// New creates a new handler instance
func New(db *database.DB, hub *websocket.Hub, monitor *services.Monitor, notifier *notify.Notifier) *Handler {
	return &Handler{
		db:       db,
		hub:      hub,
		monitor:  monitor,
		notifier: notifier,
	}
}

// GetDevices lists the device IDs seen in the reading stream
func (h *Handler) GetDevices(c *gin.Context) {
	devices, err := h.db.GetDevices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve devices",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// GetReadings retrieves readings for a device within a trailing window
func (h *Handler) GetReadings(c *gin.Context) {
	deviceID := c.Query("device_id")
	since := parseSince(c.DefaultQuery("since", "24h"))
	ascending := c.DefaultQuery("order", "desc") == "asc"

	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 10000 {
			limit = parsed
		}
	}

	readings, err := h.db.GetReadings(deviceID, since, ascending, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve readings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"readings": readings,
		"count":    len(readings),
		"since":    since.Format(time.RFC3339),
	})
}

// GetLatestReadings retrieves the most recent reading per device
func (h *Handler) GetLatestReadings(c *gin.Context) {
	readings, err := h.db.GetLatestPerDevice()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve latest readings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"readings": readings,
		"count":    len(readings),
	})
}

// GetStats computes latest/max/min/average over a trailing window
func (h *Handler) GetStats(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}
	hours := parseHours(c.DefaultQuery("hours", "24"))

	readings, err := h.db.GetReadings(deviceID, time.Now().Add(-time.Duration(hours)*time.Hour), false, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve readings",
			"details": err.Error(),
		})
		return
	}

	if len(readings) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No readings in window"})
		return
	}

	stats := models.WaterLevelStats{
		Latest:    readings[0].WaterLevel,
		Max:       readings[0].WaterLevel,
		Min:       readings[0].WaterLevel,
		Timestamp: readings[0].CreatedAt,
	}
	var sum float64
	for _, r := range readings {
		if r.WaterLevel > stats.Max {
			stats.Max = r.WaterLevel
		}
		if r.WaterLevel < stats.Min {
			stats.Min = r.WaterLevel
		}
		sum += r.WaterLevel
	}
	stats.Average = math.Round(sum/float64(len(readings))*10) / 10

	c.JSON(http.StatusOK, gin.H{
		"stats": stats,
		"period": gin.H{
			"hours": hours,
			"count": len(readings),
		},
	})
}

// GetAverages computes the four fixed time period averages
func (h *Handler) GetAverages(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}

	now := time.Now()
	readings, err := h.db.GetReadings(deviceID, now.Add(-services.AggregatorWindow), false, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve readings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"averages": services.ComputePeriodAverages(readings, now),
	})
}

// GetChangeRate computes the short-window rate of change. A null result
// means insufficient data, not an error.
func (h *Handler) GetChangeRate(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}

	now := time.Now()
	readings, err := h.db.GetReadings(deviceID, now.Add(-services.ChangeRateWindow), false, services.ChangeRateMaxRows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve readings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"change_rate": services.ComputeChangeRate(readings, now),
	})
}

// GetPrediction computes the flood risk prediction. A null result means
// insufficient data, not an error.
func (h *Handler) GetPrediction(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}

	now := time.Now()
	readings, err := h.db.GetReadings(deviceID, now.Add(-services.PredictionWindow), true, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve readings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prediction": services.PredictFloodRisk(readings, h.monitor.Engine().Config(), now),
	})
}

// GetAnomalies runs the threshold pass over the trailing hour
func (h *Handler) GetAnomalies(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}

	cfg := h.monitor.Engine().Config()
	high := parseThreshold(c.Query("high_threshold"), cfg.HighThreshold)
	low := parseThreshold(c.Query("low_threshold"), cfg.LowThreshold)

	readings, err := h.db.GetReadings(deviceID, time.Now().Add(-services.AnomalyWindow), false, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve readings",
			"details": err.Error(),
		})
		return
	}

	alerts := services.DetectAnomalies(readings, high, low)
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetReport composes the full water level report for a device
func (h *Handler) GetReport(c *gin.Context) {
	report, status, errResp := h.composeReport(c)
	if report == nil {
		c.JSON(status, errResp)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// SendReport composes the report and delivers it to Telegram
func (h *Handler) SendReport(c *gin.Context) {
	report, status, errResp := h.composeReport(c)
	if report == nil {
		c.JSON(status, errResp)
		return
	}

	if err := h.notifier.SendReport(report); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to send report",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Report sent successfully",
		"device_id": report.DeviceID,
	})
}

func (h *Handler) composeReport(c *gin.Context) (*models.WaterLevelReport, int, gin.H) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		return nil, http.StatusBadRequest, gin.H{"error": "device_id is required"}
	}
	hours := parseHours(c.DefaultQuery("hours", "24"))

	now := time.Now()
	readings, err := h.db.GetReadings(deviceID, now.Add(-time.Duration(hours)*time.Hour), true, 0)
	if err != nil {
		return nil, http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve readings",
			"details": err.Error(),
		}
	}

	report := services.ComposeReport(deviceID, hours, readings, now)
	if report == nil {
		return nil, http.StatusNotFound, gin.H{"error": "No readings in report window"}
	}
	return report, http.StatusOK, nil
}

// GetNodes returns the map view: every device with location, latest
// reading and a level-only risk classification
func (h *Handler) GetNodes(c *gin.Context) {
	latest, err := h.db.GetLatestPerDevice()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve latest readings",
			"details": err.Error(),
		})
		return
	}

	locations := make(map[string]models.DeviceLocation)
	if locs, err := h.db.GetDeviceLocations(); err == nil {
		for _, loc := range locs {
			locations[loc.DeviceID] = loc
		}
	}

	cfg := h.monitor.Engine().Config()
	nodes := make([]models.DeviceNode, 0, len(latest))
	for i, r := range latest {
		node := models.DeviceNode{
			DeviceID:      r.DeviceID,
			Name:          "Node " + r.DeviceID,
			LatestReading: r.WaterLevel,
			LastUpdated:   r.CreatedAt,
			RiskLevel:     services.RiskFromLevel(r.WaterLevel, cfg),
			Latitude:      13.7563 + float64(i)*0.01,
			Longitude:     100.5018 + float64(i)*0.01,
		}
		if loc, ok := locations[r.DeviceID]; ok {
			node.Latitude = loc.Latitude
			node.Longitude = loc.Longitude
			if loc.Name != "" {
				node.Name = loc.Name
			}
		}
		nodes = append(nodes, node)
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// GetLiveMetrics returns the monitor's last-known-good snapshot for a
// device. Values survive failed refresh cycles.
func (h *Handler) GetLiveMetrics(c *gin.Context) {
	deviceID := c.Param("id")
	snap := h.monitor.Snapshot(deviceID)
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot for device"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshot": snap})
}

// GetDeviceState retrieves the pump actuator state
func (h *Handler) GetDeviceState(c *gin.Context) {
	id, err := strconv.Atoi(c.DefaultQuery("id", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid controller id"})
		return
	}

	state, err := h.db.GetDeviceState(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve device state",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": state})
}

// SetPump updates the pump actuator flag
func (h *Handler) SetPump(c *gin.Context) {
	var req struct {
		ID   int   `json:"id"`
		Pump *bool `json:"pump" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.ID == 0 {
		req.ID = 1
	}

	if err := h.db.SetPump(req.ID, *req.Pump); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to update pump state",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Pump state updated",
		"id":      req.ID,
		"pump":    *req.Pump,
	})
}

// GetAlertConfig returns the active alert thresholds
func (h *Handler) GetAlertConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"config": h.monitor.Engine().Config(),
	})
}

// UpdateAlertConfig replaces the alert thresholds
func (h *Handler) UpdateAlertConfig(c *gin.Context) {
	var cfg config.AlertConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid threshold data",
			"details": err.Error(),
		})
		return
	}

	if cfg.HighThreshold <= cfg.LowThreshold {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid level thresholds"})
		return
	}
	if cfg.CriticalRiseRate <= cfg.WarningRiseRate || cfg.CriticalLevel <= cfg.WarningLevel {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Critical thresholds must exceed warning thresholds"})
		return
	}
	if cfg.CooldownMinutes <= 0 {
		cfg.CooldownMinutes = config.DefaultCooldown.Minutes()
	}
	cfg.Cooldown = time.Duration(cfg.CooldownMinutes * float64(time.Minute))

	h.monitor.Engine().UpdateConfig(cfg)

	c.JSON(http.StatusOK, gin.H{
		"message": "Alert configuration updated",
		"config":  cfg,
	})
}

// WebSocketEndpoint handles WebSocket connections
func (h *Handler) WebSocketEndpoint(c *gin.Context) {
	h.hub.HandleWebSocket(c.Writer, c.Request)
}

// parseSince turns a shorthand window like "1h" or "7d" into a start time
func parseSince(param string) time.Time {
	switch param {
	case "1h":
		return time.Now().Add(-1 * time.Hour)
	case "24h":
		return time.Now().Add(-24 * time.Hour)
	case "7d":
		return time.Now().Add(-7 * 24 * time.Hour)
	case "30d":
		return time.Now().Add(-30 * 24 * time.Hour)
	default:
		if duration, err := time.ParseDuration(param); err == nil {
			return time.Now().Add(-duration)
		}
		return time.Now().Add(-24 * time.Hour)
	}
}

func parseHours(param string) int {
	if hours, err := strconv.Atoi(param); err == nil && hours > 0 && hours <= 24*30 {
		return hours
	}
	return 24
}

func parseThreshold(param string, fallback float64) float64 {
	if param == "" {
		return fallback
	}
	if v, err := strconv.ParseFloat(param, 64); err == nil {
		return v
	}
	return fallback
}
