package entity

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-rako/internal/rako"
)

// HealthStatus represents the operational status of the bridge daemon.
type HealthStatus string

const (
	// HealthHealthy indicates the daemon is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the daemon is up but the broker or the
	// Rako bridge is unreachable.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the daemon disappeared (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the daemon is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the daemon is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// defaultHealthInterval is how often health status is published.
const defaultHealthInterval = 30 * time.Second

// HealthMessage reports the daemon's operational status to the platform.
// Topic: graylogic/health/rako
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the protocol identifier ("rako").
	Bridge string `json:"bridge"`

	// BridgeMAC identifies the physical bridge being served.
	BridgeMAC string `json:"bridge_mac,omitempty"`

	// Timestamp is when the health status was generated (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the daemon software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the daemon has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// EntitiesManaged is the number of registered entities.
	EntitiesManaged int `json:"entities_managed"`

	// CommandsSent counts bridge commands issued since startup.
	CommandsSent uint64 `json:"commands_sent"`

	// CommandsFailed counts bridge commands that failed or timed out.
	CommandsFailed uint64 `json:"commands_failed"`

	// Reason explains the status (especially degraded).
	Reason string `json:"reason,omitempty"`
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// BridgeStats exposes command counters from the protocol client.
// Satisfied by *rako.BridgeClient.
type BridgeStats interface {
	// Stats returns the current counters.
	Stats() rako.Stats
}

// HealthReporter publishes periodic health messages.
type HealthReporter struct {
	bridgeMAC string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	stats     BridgeStats

	entityCount   int
	entityCountMu sync.RWMutex

	// stopOnce prevents double-close panics
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeMAC identifies the physical bridge in health messages.
	BridgeMAC string

	// Version is the daemon software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Stats provides protocol client counters. Optional.
	Stats BridgeStats

	// Logger is optional structured logging.
	Logger Logger
}

// NewHealthReporter creates a health reporter, ready to Start.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeMAC: cfg.BridgeMAC,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		stats:     cfg.Stats,
		logger:    cfg.Logger,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting, publishing a final
// "stopping" status. Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		// Best effort; the LWT covers an unclean exit.
		_ = h.publishStatus(HealthStopping, "")
	})
}

// SetEntityCount updates the managed entity count.
func (h *HealthReporter) SetEntityCount(count int) {
	h.entityCountMu.Lock()
	h.entityCount = count
	h.entityCountMu.Unlock()
}

// PublishStarting publishes a "starting" status during initialisation.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// HealthLWT builds the last-will topic and payload to register when
// connecting to the broker. If the daemon drops off without a clean
// disconnect, the broker publishes the payload and the retained health
// topic flips to offline.
func HealthLWT(bridgeMAC string) (topic string, payload []byte, err error) {
	msg := HealthMessage{
		Bridge:    protocolName,
		BridgeMAC: bridgeMAC,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "connection lost",
	}
	payload, err = json.Marshal(msg)
	if err != nil {
		return "", nil, err
	}
	return HealthTopic(), payload, nil
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current daemon status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	h.entityCountMu.RLock()
	entityCount := h.entityCount
	h.entityCountMu.RUnlock()

	msg := HealthMessage{
		Bridge:          protocolName,
		BridgeMAC:       h.bridgeMAC,
		Timestamp:       time.Now().UTC(),
		Status:          status,
		Version:         h.version,
		UptimeSeconds:   int64(time.Since(h.startTime).Seconds()),
		EntitiesManaged: entityCount,
		Reason:          reason,
	}
	if h.stats != nil {
		stats := h.stats.Stats()
		msg.CommandsSent = stats.CommandsSent
		msg.CommandsFailed = stats.CommandsFailed
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(HealthTopic(), payload, 1, true)
}

// logError logs an error if a logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, "error", err)
	}
}
