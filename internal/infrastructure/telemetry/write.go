package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// CommandResult records one command round trip against the bridge. The
// point is tagged by entity and outcome so dashboards can chart latency
// and failure rate per entity. Dropped silently when disconnected.
func (c *Client) CommandResult(uniqueID string, ok bool, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	result := "failed"
	if ok {
		result = "ok"
	}
	c.writeAPI.WritePoint(write.NewPoint(
		"rako_command",
		map[string]string{"entity": uniqueID, "result": result},
		map[string]interface{}{"latency_ms": latency.Seconds() * millisecondsPerSecond},
		time.Now(),
	))
}

// AvailabilityChange records an entity availability transition. The state
// is written as 0 or 1 so flap counts fall out of a simple difference.
func (c *Client) AvailabilityChange(uniqueID string, available bool) {
	if !c.IsConnected() {
		return
	}

	state := 0
	if available {
		state = 1
	}
	c.writeAPI.WritePoint(write.NewPoint(
		"rako_availability",
		map[string]string{"entity": uniqueID},
		map[string]interface{}{"available": state},
		time.Now(),
	))
}

// DiscoveryPass records the outcome of an entity discovery pass, keyed by
// the bridge that was interrogated.
func (c *Client) DiscoveryPass(bridgeMAC string, lights, scenes int, took time.Duration) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"rako_discovery",
		map[string]string{"bridge": bridgeMAC},
		map[string]interface{}{
			"lights":      lights,
			"scenes":      scenes,
			"duration_ms": took.Seconds() * millisecondsPerSecond,
		},
		time.Now(),
	))
}
