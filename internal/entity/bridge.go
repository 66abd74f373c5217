package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-rako/internal/rako"
)

// Entity operation constants.
const (
	// commandTimeout bounds every bridge command round trip. A command
	// that misses the deadline is abandoned, never re-sent.
	commandTimeout = 3 * time.Second

	// BrightnessDefault is used when a turn-on command carries no
	// brightness.
	BrightnessDefault = 255
)

// StatePublisher publishes entity state to the host platform.
// Implemented by the infrastructure MQTT client (via adapter in main).
type StatePublisher interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the optional structured logger interface.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Telemetry receives command and availability measurements.
// Implemented by the infrastructure telemetry client; nil disables it.
type Telemetry interface {
	// CommandResult records one command round trip.
	CommandResult(uniqueID string, ok bool, latency time.Duration)

	// AvailabilityChange records an availability transition.
	AvailabilityChange(uniqueID string, available bool)
}

// Bridge is the per-bridge context entities are constructed against:
// the protocol client, the bridge's identity, the cache snapshot taken
// at setup, and the platform-facing collaborators. It replaces any
// process-wide registry keyed by bridge MAC; each adapter holds the
// Bridge it belongs to.
type Bridge struct {
	client rako.Client
	mac    string
	name   string

	levelCache rako.LevelCache
	sceneCache rako.SceneCache

	publisher StatePublisher
	telemetry Telemetry
	logger    Logger
}

// BridgeOptions holds construction parameters for a Bridge.
type BridgeOptions struct {
	// Client is the Rako protocol client.
	Client rako.Client

	// MAC is the bridge's MAC address; entity unique ids derive from it.
	MAC string

	// Name is the bridge's display name.
	Name string

	// Publisher receives entity state messages. Required.
	Publisher StatePublisher

	// Telemetry is optional command/availability measurement output.
	Telemetry Telemetry

	// Logger is optional structured logging.
	Logger Logger
}

// NewBridge creates a bridge context. The caches start empty; setup
// fills them via SetupLights.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("entity: rako client is required")
	}
	if opts.MAC == "" {
		return nil, fmt.Errorf("entity: bridge MAC is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("entity: state publisher is required")
	}
	return &Bridge{
		client:     opts.Client,
		mac:        opts.MAC,
		name:       opts.Name,
		levelCache: rako.NewLevelCache(),
		sceneCache: rako.SceneCache{},
		publisher:  opts.Publisher,
		telemetry:  opts.Telemetry,
		logger:     opts.Logger,
	}, nil
}

// MAC returns the bridge's MAC address.
func (b *Bridge) MAC() string { return b.mac }

// Name returns the bridge's display name.
func (b *Bridge) Name() string { return b.name }

// setCaches stores the setup-time cache snapshot. Called once by
// SetupLights before discovery; entities only read the caches during
// construction.
func (b *Bridge) setCaches(levels rako.LevelCache, scenes rako.SceneCache) {
	b.levelCache = levels
	b.sceneCache = scenes
}

// recordCommand forwards a command measurement to telemetry, if any.
func (b *Bridge) recordCommand(uniqueID string, ok bool, latency time.Duration) {
	if b.telemetry != nil {
		b.telemetry.CommandResult(uniqueID, ok, latency)
	}
}

// recordAvailability forwards an availability transition to telemetry.
func (b *Bridge) recordAvailability(uniqueID string, available bool) {
	if b.telemetry != nil {
		b.telemetry.AvailabilityChange(uniqueID, available)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Error(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}

// sanitizeMAC lowercases a MAC address and strips separators so it can
// be embedded in unique ids and MQTT topics.
func sanitizeMAC(mac string) string {
	mac = strings.ToLower(mac)
	mac = strings.ReplaceAll(mac, ":", "")
	return strings.ReplaceAll(mac, "-", "")
}

// LightUniqueID derives a light entity's unique id from the bridge MAC,
// room and channel. Room lights use channel 0.
func LightUniqueID(mac string, roomID, channelID int) string {
	return fmt.Sprintf("rako_%s_r%d_c%d", sanitizeMAC(mac), roomID, channelID)
}

// SceneUniqueID derives a scene entity's unique id. The "s" segment
// keeps scene ids disjoint from light ids even when a room has channels
// numbered 1-4.
func SceneUniqueID(mac string, roomID, sceneNumber int) string {
	return fmt.Sprintf("rako_%s_r%d_s%d", sanitizeMAC(mac), roomID, sceneNumber)
}
