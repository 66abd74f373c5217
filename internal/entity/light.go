package entity

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-rako/internal/rako"
)

// Light is the platform-facing entity for one discovered light, either
// a dimmable channel or a whole room. Room lights translate brightness
// into the nearest scene; channel lights send the raw 0-255 level.
//
// State is optimistic: a command updates and publishes local state
// before the bridge confirms. A failed or timed-out command flips the
// availability flag but leaves the requested brightness in place; the
// platform reads availability, not errors.
type Light struct {
	bridge *Bridge
	desc   rako.Light

	mu         sync.Mutex
	brightness int
	available  bool
}

// newLight wraps a discovered descriptor, deriving the initial
// brightness from the bridge's cache snapshot.
func newLight(bridge *Bridge, desc rako.Light) *Light {
	l := &Light{
		bridge:    bridge,
		desc:      desc,
		available: true,
	}
	l.brightness = l.initialBrightness()
	return l
}

// initialBrightness computes the entity's starting brightness without a
// bridge round trip. Channel lights look up the level cache at the
// room's active scene; room lights convert the active scene itself.
// Rooms the bridge never reported default to off.
func (l *Light) initialBrightness() int {
	activeScene := l.bridge.sceneCache.ActiveScene(l.desc.RoomID)
	if l.desc.Kind == rako.KindChannel {
		channel := rako.RoomChannel{RoomID: l.desc.RoomID, ChannelID: l.desc.ChannelID}
		return l.bridge.levelCache.ChannelLevel(channel, activeScene)
	}
	return rako.BrightnessForScene(activeScene)
}

// UniqueID returns the entity's stable identifier.
func (l *Light) UniqueID() string {
	return LightUniqueID(l.bridge.mac, l.desc.RoomID, l.desc.ChannelID)
}

// Name returns the entity's display name.
func (l *Light) Name() string { return l.desc.DisplayName() }

// Kind returns the underlying descriptor kind.
func (l *Light) Kind() rako.LightKind { return l.desc.Kind }

// RoomID returns the room this light belongs to.
func (l *Light) RoomID() int { return l.desc.RoomID }

// Brightness returns the current local brightness (0-255).
func (l *Light) Brightness() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.brightness
}

// IsOn reports whether the light is on (brightness above zero).
func (l *Light) IsOn() bool { return l.Brightness() > 0 }

// Available reports whether the last bridge command succeeded.
func (l *Light) Available() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available
}

// TurnOn sets the light's brightness. The local state is updated and
// published before the bridge round trip so the platform reflects the
// request immediately; confirmation only moves the availability flag.
// Bridge errors and timeouts are absorbed here, never returned.
func (l *Light) TurnOn(ctx context.Context, brightness int) {
	if brightness < 0 {
		brightness = 0
	}
	if brightness > rako.BrightnessMax {
		brightness = rako.BrightnessMax
	}

	l.mu.Lock()
	l.brightness = brightness
	l.mu.Unlock()
	l.publishState()

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	start := time.Now()
	err := l.sendBrightness(cmdCtx, brightness)
	l.bridge.recordCommand(l.UniqueID(), err == nil, time.Since(start))

	if err != nil {
		l.markUnavailable(err)
		return
	}
	l.markAvailable()
}

// TurnOff turns the light off. Equivalent to TurnOn with brightness 0;
// for room lights that reaches scene 0.
func (l *Light) TurnOff(ctx context.Context) {
	l.TurnOn(ctx, 0)
}

// sendBrightness issues the kind-appropriate bridge command.
func (l *Light) sendBrightness(ctx context.Context, brightness int) error {
	if l.desc.Kind == rako.KindChannel {
		return l.bridge.client.SetChannelBrightness(ctx, l.desc.RoomID, l.desc.ChannelID, brightness)
	}
	scene := rako.SceneForBrightness(brightness)
	return l.bridge.client.SetRoomScene(ctx, l.desc.RoomID, scene)
}

// markAvailable restores availability after a successful command.
// The restoration is silent: no log entry, the state message carries it.
func (l *Light) markAvailable() {
	l.mu.Lock()
	changed := !l.available
	l.available = true
	l.mu.Unlock()

	if changed {
		l.bridge.recordAvailability(l.UniqueID(), true)
		l.publishState()
	}
}

// markUnavailable flips the availability flag and republishes state.
// The transition is logged once; repeated failures while already
// unavailable stay quiet.
func (l *Light) markUnavailable(err error) {
	l.mu.Lock()
	wasAvailable := l.available
	l.available = false
	l.mu.Unlock()

	if wasAvailable {
		l.bridge.logError("light command failed, marking unavailable",
			"entity", l.UniqueID(),
			"name", l.Name(),
			"error", err,
		)
		l.bridge.recordAvailability(l.UniqueID(), false)
	}
	l.publishState()
}

// publishState sends the entity's current state to the platform.
func (l *Light) publishState() {
	l.mu.Lock()
	msg := NewLightStateMessage(l.UniqueID(), l.Name(), l.brightness, l.available)
	l.mu.Unlock()

	if err := publishJSON(l.bridge.publisher, StateTopic(l.UniqueID()), msg, true); err != nil {
		l.bridge.logWarn("failed to publish light state",
			"entity", l.UniqueID(),
			"error", err,
		)
	}
}

// Descriptor returns the platform registration descriptor.
func (l *Light) Descriptor() Descriptor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Descriptor{
		UniqueID:   l.UniqueID(),
		Name:       l.Name(),
		Kind:       descriptorKind(l.desc.Kind),
		RoomID:     l.desc.RoomID,
		ChannelID:  l.desc.ChannelID,
		Brightness: l.brightness,
		Available:  l.available,
	}
}

// descriptorKind maps a protocol light kind to the descriptor vocabulary.
func descriptorKind(kind rako.LightKind) string {
	if kind == rako.KindChannel {
		return "channel_light"
	}
	return "room_light"
}
