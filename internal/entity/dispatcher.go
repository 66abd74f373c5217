package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PlatformClient is the host-platform connection the dispatcher needs.
// Implemented by the infrastructure MQTT client (via adapter in main).
type PlatformClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// registration couples one entity with the mutex that serialises its
// commands. Commands for different entities run concurrently; commands
// for the same entity are serialised, with no ordering guarantee
// between waiters.
type registration struct {
	mu    sync.Mutex
	light *Light
	scene *Scene
}

// Dispatcher routes platform command messages to registered entities.
// One dispatcher serves one bridge.
type Dispatcher struct {
	bridge *Bridge
	client PlatformClient
	store  Store // optional snapshot persistence

	mu       sync.RWMutex
	entities map[string]*registration

	wg      sync.WaitGroup
	baseCtx context.Context
}

// NewDispatcher creates a dispatcher for the given bridge. The store
// is optional; pass nil to skip snapshot persistence.
func NewDispatcher(bridge *Bridge, client PlatformClient, store Store) (*Dispatcher, error) {
	if bridge == nil {
		return nil, fmt.Errorf("entity: bridge is required")
	}
	if client == nil {
		return nil, fmt.Errorf("entity: platform client is required")
	}
	return &Dispatcher{
		bridge:   bridge,
		client:   client,
		store:    store,
		entities: make(map[string]*registration),
	}, nil
}

// Register records the entities from a setup pass, persists their
// descriptors, and announces them on the discovery topic (retained).
// Call before Start.
func (d *Dispatcher) Register(ctx context.Context, lights []*Light, scenes []*Scene) error {
	descriptors := make([]Descriptor, 0, len(lights)+len(scenes))

	d.mu.Lock()
	for _, light := range lights {
		d.entities[light.UniqueID()] = &registration{light: light}
		descriptors = append(descriptors, light.Descriptor())
	}
	for _, scene := range scenes {
		d.entities[scene.UniqueID()] = &registration{scene: scene}
		descriptors = append(descriptors, scene.Descriptor())
	}
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.SaveDescriptors(ctx, descriptors); err != nil {
			// Persistence is best effort; registration proceeds.
			d.bridge.logWarn("failed to persist entity descriptors", "error", err)
		}
	}

	announcement := DiscoveryMessage{
		BridgeMAC:  d.bridge.mac,
		BridgeName: d.bridge.name,
		Entities:   descriptors,
	}
	if err := publishJSON(d.client, DiscoveryTopic(), announcement, true); err != nil {
		return fmt.Errorf("publishing entity discovery: %w", err)
	}

	d.bridge.logDebug("entities registered",
		"lights", len(lights),
		"scenes", len(scenes),
	)
	return nil
}

// Start subscribes to the command topic. Incoming commands run on
// their own goroutines, serialised per entity; ctx bounds their bridge
// round trips. Call Stop to wait for in-flight commands on shutdown.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.baseCtx = ctx
	if err := d.client.Subscribe(CommandSubscribeTopic(), 1, d.handleMessage); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	return nil
}

// Stop waits for in-flight commands to finish.
func (d *Dispatcher) Stop() {
	d.wg.Wait()
}

// EntityCount returns the number of registered entities.
func (d *Dispatcher) EntityCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entities)
}

// handleMessage parses one command message and hands it to the target
// entity's goroutine. The unique id is the topic's last segment.
func (d *Dispatcher) handleMessage(topic string, payload []byte) {
	uniqueID := topic[strings.LastIndex(topic, "/")+1:]

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		d.bridge.logError("failed to parse command",
			"topic", topic,
			"error", err,
		)
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}

	d.mu.RLock()
	reg, ok := d.entities[uniqueID]
	d.mu.RUnlock()
	if !ok {
		d.bridge.logWarn("command for unknown entity",
			"command_id", cmd.ID,
			"entity", uniqueID,
		)
		return
	}

	d.bridge.logDebug("received command",
		"command_id", cmd.ID,
		"entity", uniqueID,
		"command", cmd.Command,
	)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		reg.mu.Lock()
		defer reg.mu.Unlock()
		d.execute(reg, cmd, uniqueID)
	}()
}

// execute runs one command against its entity and records the outcome
// in the snapshot store. Bridge failures surface through the entity's
// availability flag, so only unusable commands produce errors here.
func (d *Dispatcher) execute(reg *registration, cmd CommandMessage, uniqueID string) {
	ctx := d.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := d.apply(ctx, reg, cmd); err != nil {
		d.bridge.logError("command rejected",
			"command_id", cmd.ID,
			"entity", uniqueID,
			"command", cmd.Command,
			"error", err,
		)
		return
	}

	if d.store != nil {
		d.updateSnapshot(ctx, reg, uniqueID)
	}
}

// apply maps the command verb onto the entity's operations.
func (d *Dispatcher) apply(ctx context.Context, reg *registration, cmd CommandMessage) error {
	switch {
	case reg.light != nil:
		switch cmd.Command {
		case CommandTurnOn:
			brightness := BrightnessDefault
			if cmd.Brightness != nil {
				brightness = *cmd.Brightness
			}
			reg.light.TurnOn(ctx, brightness)
			return nil
		case CommandTurnOff:
			reg.light.TurnOff(ctx)
			return nil
		default:
			return fmt.Errorf("light does not support command %q", cmd.Command)
		}
	case reg.scene != nil:
		if cmd.Command != CommandActivate {
			return fmt.Errorf("scene does not support command %q", cmd.Command)
		}
		reg.scene.Activate(ctx)
		return nil
	default:
		return fmt.Errorf("registration has no entity")
	}
}

// updateSnapshot persists the entity's post-command state, best effort.
func (d *Dispatcher) updateSnapshot(ctx context.Context, reg *registration, uniqueID string) {
	var err error
	switch {
	case reg.light != nil:
		err = d.store.UpdateState(ctx, uniqueID, reg.light.Brightness(), reg.light.Available())
	case reg.scene != nil:
		err = d.store.UpdateState(ctx, uniqueID, 0, reg.scene.Available())
	}
	if err != nil && !errors.Is(err, ErrEntityNotFound) {
		d.bridge.logWarn("failed to persist entity state",
			"entity", uniqueID,
			"error", err,
		)
	}
}
