package rako

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync/atomic"
)

// Default bridge ports.
const (
	// DefaultUDPPort is the bridge's command/status UDP port.
	DefaultUDPPort = 9761

	// DefaultHTTPPort is the bridge's web server port serving rako.xml.
	DefaultHTTPPort = 80
)

// maxDatagramSize bounds a single status datagram from the bridge.
const maxDatagramSize = 2048

// Client is the contract between the protocol layer and the entity
// layer. Production code uses *BridgeClient; tests substitute fakes.
type Client interface {
	// CacheState fetches the level and scene cache snapshots from the
	// bridge in a single exchange per cache.
	CacheState(ctx context.Context) (LevelCache, SceneCache, error)

	// DiscoverLights starts a fresh discovery pass over the given HTTP
	// session. The returned stream is lazy, finite and single-pass, and
	// may fail partway through with ErrMalformedResponse.
	DiscoverLights(ctx context.Context, session *http.Client) LightStream

	// SetChannelBrightness sets one channel's brightness (0-255).
	SetChannelBrightness(ctx context.Context, roomID, channelID, brightness int) error

	// SetRoomScene activates a scene (0-4) for a whole room.
	SetRoomScene(ctx context.Context, roomID, scene int) error
}

// Stats holds operational counters for the bridge client.
type Stats struct {
	CommandsSent   uint64
	CommandsFailed uint64
}

// BridgeClient talks to a physical Rako bridge. Commands and cache
// queries go over UDP; discovery goes over HTTP (see discovery.go).
//
// Thread Safety: safe for concurrent use. Every exchange opens its own
// UDP socket, so concurrent commands cannot interleave replies.
type BridgeClient struct {
	host     string
	udpPort  int
	httpPort int
	mac      string
	name     string

	dialer net.Dialer

	commandsSent   atomic.Uint64
	commandsFailed atomic.Uint64
}

// Ensure BridgeClient implements Client.
var _ Client = (*BridgeClient)(nil)

// ClientConfig holds bridge connection parameters.
type ClientConfig struct {
	// Host is the bridge's IP address or hostname.
	Host string

	// UDPPort is the command/status port. Default: 9761.
	UDPPort int

	// HTTPPort is the web server port. Default: 80.
	HTTPPort int

	// MAC is the bridge's MAC address, used for entity identity.
	MAC string

	// Name is the bridge's display name.
	Name string
}

// NewBridgeClient creates a client for the bridge at cfg.Host.
func NewBridgeClient(cfg ClientConfig) (*BridgeClient, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("rako: bridge host is required")
	}
	if cfg.UDPPort == 0 {
		cfg.UDPPort = DefaultUDPPort
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	return &BridgeClient{
		host:     cfg.Host,
		udpPort:  cfg.UDPPort,
		httpPort: cfg.HTTPPort,
		mac:      cfg.MAC,
		name:     cfg.Name,
	}, nil
}

// MAC returns the bridge's MAC address.
func (c *BridgeClient) MAC() string { return c.mac }

// Name returns the bridge's display name.
func (c *BridgeClient) Name() string { return c.name }

// Host returns the bridge's host.
func (c *BridgeClient) Host() string { return c.host }

// Stats returns command counters.
func (c *BridgeClient) Stats() Stats {
	return Stats{
		CommandsSent:   c.commandsSent.Load(),
		CommandsFailed: c.commandsFailed.Load(),
	}
}

// httpAddr returns the host:port for HTTP requests, omitting the port
// when it is the default so URLs stay tidy.
func (c *BridgeClient) httpAddr() string {
	if c.httpPort == DefaultHTTPPort {
		return c.host
	}
	return net.JoinHostPort(c.host, fmt.Sprint(c.httpPort))
}

// udpAddr returns the host:port for UDP exchanges.
func (c *BridgeClient) udpAddr() string {
	return net.JoinHostPort(c.host, fmt.Sprint(c.udpPort))
}

// SetChannelBrightness sets one channel's brightness (0-255).
// Channel 0 addresses the whole room.
func (c *BridgeClient) SetChannelBrightness(ctx context.Context, roomID, channelID, brightness int) error {
	if brightness < 0 || brightness > BrightnessMax {
		return fmt.Errorf("%w: %d", ErrInvalidBrightness, brightness)
	}
	frame := encodeCommand(roomID, channelID, cmdSetLevel, []byte{byte(brightness)})
	return c.sendCommand(ctx, frame)
}

// SetRoomScene activates a scene (0-4) for a whole room. Scene 0 turns
// the room off.
func (c *BridgeClient) SetRoomScene(ctx context.Context, roomID, scene int) error {
	if scene < 0 || scene > SceneMax {
		return fmt.Errorf("%w: %d", ErrInvalidScene, scene)
	}
	frame := encodeCommand(roomID, 0, cmdSetScene, []byte{byte(scene)})
	return c.sendCommand(ctx, frame)
}

// CacheState fetches the level and scene cache snapshots.
func (c *BridgeClient) CacheState(ctx context.Context) (LevelCache, SceneCache, error) {
	levelPayload, err := c.exchange(ctx, encodeCacheQuery(queryLevels))
	if err != nil {
		return LevelCache{}, nil, fmt.Errorf("fetching level cache: %w", err)
	}
	levels, err := parseLevelRecords(levelPayload)
	if err != nil {
		return LevelCache{}, nil, err
	}

	scenePayload, err := c.exchange(ctx, encodeCacheQuery(queryScenes))
	if err != nil {
		return LevelCache{}, nil, fmt.Errorf("fetching scene cache: %w", err)
	}
	scenes, err := parseSceneRecords(scenePayload)
	if err != nil {
		return LevelCache{}, nil, err
	}

	return levels, scenes, nil
}

// sendCommand sends a command frame and waits for the bridge's
// single-byte acknowledgement.
func (c *BridgeClient) sendCommand(ctx context.Context, frame []byte) error {
	c.commandsSent.Add(1)

	reply, err := c.roundTrip(ctx, frame)
	if err != nil {
		c.commandsFailed.Add(1)
		return err
	}

	switch {
	case len(reply) == 1 && reply[0] == ackByte:
		return nil
	case len(reply) == 1 && reply[0] == nakByte:
		c.commandsFailed.Add(1)
		return fmt.Errorf("%w: bridge rejected command", ErrCommandFailed)
	default:
		c.commandsFailed.Add(1)
		return fmt.Errorf("%w: unexpected reply (%d bytes)", ErrCommandFailed, len(reply))
	}
}

// exchange sends a query frame and validates the status reply,
// returning its payload.
func (c *BridgeClient) exchange(ctx context.Context, frame []byte) ([]byte, error) {
	reply, err := c.roundTrip(ctx, frame)
	if err != nil {
		return nil, err
	}
	return parseStatusPayload(reply)
}

// roundTrip performs one UDP request/reply exchange, honouring the
// context deadline on both legs.
func (c *BridgeClient) roundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	conn, err := c.dialer.DialContext(ctx, "udp", c.udpAddr())
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrCommandFailed, err)
	}
	defer conn.Close() //nolint:errcheck // Best effort cleanup

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: set deadline: %v", ErrCommandFailed, err)
		}
	}

	if _, err := conn.Write(frame); err != nil {
		return nil, classifySendError(err)
	}

	buf := make([]byte, maxDatagramSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, classifySendError(err)
	}
	return buf[:n], nil
}

// classifySendError maps transport errors onto the package's sentinel
// errors so callers can distinguish timeouts from rejections.
func classifySendError(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCommandTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrCommandTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrCommandFailed, err)
}
