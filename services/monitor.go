package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"floodwatch/config"
	"floodwatch/models"
)

var alertsEmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "floodwatch_alerts_emitted_total",
		Help: "Smart alert notifications emitted, by alert type",
	},
	[]string{"type"},
)

// Store is the reading store surface the monitor polls. Implemented by
// database.DB.
type Store interface {
	GetReadings(deviceID string, since time.Time, ascending bool, limit int) ([]models.Reading, error)
	GetLatestPerDevice() ([]models.Reading, error)
	GetDevices() ([]string, error)
	GetDeviceLocations() ([]models.DeviceLocation, error)
}

// Broadcaster pushes computed results to connected dashboard clients.
// Implemented by websocket.Hub.
type Broadcaster interface {
	BroadcastMetrics(deviceID string, metrics *models.DeviceMetrics)
	BroadcastAnomalies(deviceID string, alerts []models.AnomalyAlert)
	BroadcastAlert(alert *models.AlertNotification)
	BroadcastNodes(nodes []models.DeviceNode)
}

// Notifier delivers alert notifications to an external sink. Delivery is
// best effort: a failure is logged and never retried within the cooldown
// window.
type Notifier interface {
	SendAlert(alert *models.AlertNotification) error
}

// DeviceSnapshot is the monitor's last-known-good view of one device.
// A failed poll cycle leaves the previous values in place; Errors holds
// the most recent per-component failure, cleared on the next success.
type DeviceSnapshot struct {
	DeviceID   string                      `json:"device_id"`
	ChangeRate *models.ChangeRate          `json:"change_rate,omitempty"`
	Prediction *models.FloodRiskPrediction `json:"prediction,omitempty"`
	Averages   *models.TimePeriodAverages  `json:"averages,omitempty"`
	Anomalies  []models.AnomalyAlert       `json:"anomalies"`
	Errors     map[string]string           `json:"errors,omitempty"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// Monitor runs the derived-metric cycles for every active device, each on
// its own timer, and publishes results through the broadcaster and the
// notifier. One goroutine per device; the per-device context is
// cancelled when the device leaves the stream, so a late store result
// can never be applied to another device's snapshot.
type Monitor struct {
	store     Store
	hub       Broadcaster
	notifier  Notifier
	engine    *AlertEngine
	intervals config.IntervalConfig

	mu        sync.Mutex
	workers   map[string]context.CancelFunc
	snapshots map[string]*DeviceSnapshot
}

// NewMonitor creates a monitor. notifier may be nil when outbound
// notification delivery is disabled.
func NewMonitor(store Store, hub Broadcaster, notifier Notifier, engine *AlertEngine, intervals config.IntervalConfig) *Monitor {
	return &Monitor{
		store:     store,
		hub:       hub,
		notifier:  notifier,
		engine:    engine,
		intervals: intervals,
		workers:   make(map[string]context.CancelFunc),
		snapshots: make(map[string]*DeviceSnapshot),
	}
}

// Engine returns the monitor's alert engine
func (m *Monitor) Engine() *AlertEngine {
	return m.engine
}

// Snapshot returns the last-known-good snapshot for a device, or nil if
// the device has never completed a cycle
func (m *Monitor) Snapshot(deviceID string) *DeviceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[deviceID]
	if !ok {
		return nil
	}
	copied := *snap
	return &copied
}

// Run refreshes the device set and node view on the nodes interval and
// blocks until ctx is cancelled. All device workers stop with ctx.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.intervals.Nodes)
	defer ticker.Stop()

	m.refreshDevices(ctx)
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for _, cancel := range m.workers {
				cancel()
			}
			m.workers = make(map[string]context.CancelFunc)
			m.mu.Unlock()
			return
		case <-ticker.C:
			m.refreshDevices(ctx)
		}
	}
}

func (m *Monitor) refreshDevices(ctx context.Context) {
	devices, err := m.store.GetDevices()
	if err != nil {
		log.Printf("Failed to refresh device list: %v", err)
		return
	}

	active := make(map[string]bool, len(devices))
	for _, id := range devices {
		active[id] = true
	}

	m.mu.Lock()
	for id, cancel := range m.workers {
		if !active[id] {
			cancel()
			delete(m.workers, id)
			delete(m.snapshots, id)
			log.Printf("Device %s left the stream, worker stopped", id)
		}
	}
	for _, id := range devices {
		if _, ok := m.workers[id]; ok {
			continue
		}
		workerCtx, cancel := context.WithCancel(ctx)
		m.workers[id] = cancel
		go m.runDevice(workerCtx, id)
		log.Printf("Device %s discovered, worker started", id)
	}
	m.mu.Unlock()

	m.broadcastNodes()
}

func (m *Monitor) broadcastNodes() {
	latest, err := m.store.GetLatestPerDevice()
	if err != nil {
		log.Printf("Failed to fetch latest readings for node view: %v", err)
		return
	}

	locations := make(map[string]models.DeviceLocation)
	if locs, err := m.store.GetDeviceLocations(); err != nil {
		log.Printf("Failed to fetch device locations: %v", err)
	} else {
		for _, loc := range locs {
			locations[loc.DeviceID] = loc
		}
	}

	cfg := m.engine.Config()
	nodes := make([]models.DeviceNode, 0, len(latest))
	for i, r := range latest {
		node := models.DeviceNode{
			DeviceID:      r.DeviceID,
			Name:          "Node " + r.DeviceID,
			LatestReading: r.WaterLevel,
			LastUpdated:   r.CreatedAt,
			RiskLevel:     RiskFromLevel(r.WaterLevel, cfg),
			// Placeholder spread around a default center for
			// devices with no configured location
			Latitude:  13.7563 + float64(i)*0.01,
			Longitude: 100.5018 + float64(i)*0.01,
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

	m.hub.BroadcastNodes(nodes)
}

// runDevice drives the metric cycles for a single device. The intervals
// are independent; two cycles may see slightly different snapshots of
// the stream, which is accepted.
func (m *Monitor) runDevice(ctx context.Context, deviceID string) {
	metricsTicker := time.NewTicker(m.intervals.Prediction)
	anomalyTicker := time.NewTicker(m.intervals.Anomaly)
	alertTicker := time.NewTicker(m.intervals.SmartAlert)
	defer metricsTicker.Stop()
	defer anomalyTicker.Stop()
	defer alertTicker.Stop()

	m.metricsCycle(ctx, deviceID)
	m.anomalyCycle(ctx, deviceID)
	m.alertCycle(ctx, deviceID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-metricsTicker.C:
			m.metricsCycle(ctx, deviceID)
		case <-anomalyTicker.C:
			m.anomalyCycle(ctx, deviceID)
		case <-alertTicker.C:
			m.alertCycle(ctx, deviceID)
		}
	}
}

// metricsCycle computes change rate, flood risk prediction and period
// averages in one pass and broadcasts the combined snapshot
func (m *Monitor) metricsCycle(ctx context.Context, deviceID string) {
	now := time.Now()
	metrics := &models.DeviceMetrics{DeviceID: deviceID}

	recent, rateErr := m.store.GetReadings(deviceID, now.Add(-ChangeRateWindow), false, ChangeRateMaxRows)
	if rateErr == nil {
		metrics.ChangeRate = ComputeChangeRate(recent, now)
	}

	window, predErr := m.store.GetReadings(deviceID, now.Add(-PredictionWindow), true, 0)
	if predErr == nil {
		metrics.Prediction = PredictFloodRisk(window, m.engine.Config(), now)
	}

	batch, avgErr := m.store.GetReadings(deviceID, now.Add(-AggregatorWindow), false, 0)
	if avgErr == nil {
		averages := ComputePeriodAverages(batch, now)
		metrics.Averages = &averages
	}

	// The worker context is the device's lifetime: once cancelled, the
	// results belong to a device no longer in the set and are dropped.
	if ctx.Err() != nil {
		return
	}

	m.apply(deviceID, func(snap *DeviceSnapshot) {
		m.recordError(snap, "change_rate", rateErr)
		if rateErr == nil {
			snap.ChangeRate = metrics.ChangeRate
		}
		m.recordError(snap, "prediction", predErr)
		if predErr == nil {
			snap.Prediction = metrics.Prediction
		}
		m.recordError(snap, "averages", avgErr)
		if avgErr == nil {
			snap.Averages = metrics.Averages
		}
	})

	for name, err := range map[string]error{"change_rate": rateErr, "prediction": predErr, "averages": avgErr} {
		if err != nil {
			log.Printf("Device %s: %s cycle failed: %v", deviceID, name, err)
		}
	}

	m.hub.BroadcastMetrics(deviceID, metrics)
}

func (m *Monitor) anomalyCycle(ctx context.Context, deviceID string) {
	now := time.Now()
	cfg := m.engine.Config()

	readings, err := m.store.GetReadings(deviceID, now.Add(-AnomalyWindow), false, 0)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("Device %s: anomaly cycle failed: %v", deviceID, err)
		m.apply(deviceID, func(snap *DeviceSnapshot) {
			m.recordError(snap, "anomaly", err)
		})
		return
	}

	alerts := DetectAnomalies(readings, cfg.HighThreshold, cfg.LowThreshold)
	m.apply(deviceID, func(snap *DeviceSnapshot) {
		m.recordError(snap, "anomaly", nil)
		snap.Anomalies = alerts
	})

	m.hub.BroadcastAnomalies(deviceID, alerts)
}

func (m *Monitor) alertCycle(ctx context.Context, deviceID string) {
	now := time.Now()

	readings, err := m.store.GetReadings(deviceID, now.Add(-SmartAlertWindow), false, 0)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("Device %s: smart alert cycle failed: %v", deviceID, err)
		m.apply(deviceID, func(snap *DeviceSnapshot) {
			m.recordError(snap, "smart_alert", err)
		})
		return
	}

	emitted := m.engine.Evaluate(deviceID, readings, now)
	m.apply(deviceID, func(snap *DeviceSnapshot) {
		m.recordError(snap, "smart_alert", nil)
	})

	for i := range emitted {
		alert := &emitted[i]
		alertsEmitted.WithLabelValues(string(alert.Kind)).Inc()
		m.hub.BroadcastAlert(alert)

		if m.notifier == nil {
			continue
		}
		// Cooldown is already stamped; a delivery failure is logged
		// and the alert is not retried until the cooldown elapses.
		if err := m.notifier.SendAlert(alert); err != nil {
			log.Printf("Device %s: failed to deliver %s alert: %v", deviceID, alert.Kind, err)
		} else {
			alert.NotificationSent = true
		}
	}
}

func (m *Monitor) apply(deviceID string, update func(*DeviceSnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[deviceID]
	if !ok {
		snap = &DeviceSnapshot{DeviceID: deviceID}
		m.snapshots[deviceID] = snap
	}
	update(snap)
	snap.UpdatedAt = time.Now()
}

func (m *Monitor) recordError(snap *DeviceSnapshot, component string, err error) {
	if err == nil {
		delete(snap.Errors, component)
		return
	}
	if snap.Errors == nil {
		snap.Errors = make(map[string]string)
	}
	snap.Errors[component] = err.Error()
}
