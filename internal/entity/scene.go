package entity

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SceneInfo is the static metadata for one of the four fixed presets.
type SceneInfo struct {
	Name        string
	Description string
}

// sceneNumbers is the fixed, ordered set of exposed scenes. Scene 0
// (off) is reached through the room light's turn-off, never as a scene
// entity.
var sceneNumbers = [4]int{1, 2, 3, 4}

// sceneTable holds the fixed preset metadata per scene number.
var sceneTable = map[int]SceneInfo{
	1: {Name: "Scene 1", Description: "100% brightness"},
	2: {Name: "Scene 2", Description: "75% brightness"},
	3: {Name: "Scene 3", Description: "50% brightness"},
	4: {Name: "Scene 4", Description: "25% brightness"},
}

// Scene is the platform-facing entity for one room preset. Activation
// sends the fixed scene number; there is no local brightness, only the
// availability flag.
type Scene struct {
	bridge      *Bridge
	roomID      int
	roomTitle   string
	sceneNumber int
	info        SceneInfo

	mu        sync.Mutex
	available bool
}

// newScene constructs a scene entity for one room preset.
func newScene(bridge *Bridge, roomID int, roomTitle string, sceneNumber int, info SceneInfo) *Scene {
	return &Scene{
		bridge:      bridge,
		roomID:      roomID,
		roomTitle:   roomTitle,
		sceneNumber: sceneNumber,
		info:        info,
		available:   true,
	}
}

// UniqueID returns the entity's stable identifier.
func (s *Scene) UniqueID() string {
	return SceneUniqueID(s.bridge.mac, s.roomID, s.sceneNumber)
}

// Name returns the entity's display name: "Room - Scene N".
func (s *Scene) Name() string {
	return fmt.Sprintf("%s - %s", s.roomTitle, s.info.Name)
}

// RoomID returns the room this scene belongs to.
func (s *Scene) RoomID() int { return s.roomID }

// Number returns the fixed scene number (1-4).
func (s *Scene) Number() int { return s.sceneNumber }

// Available reports whether the last activation succeeded.
func (s *Scene) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Activate sends the scene's fixed number to the bridge under the
// command timeout. Failures are absorbed into the availability flag,
// logged once per transition, and never returned.
func (s *Scene) Activate(ctx context.Context) {
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	s.bridge.logDebug("activating scene",
		"entity", s.UniqueID(),
		"room", s.roomID,
		"scene", s.sceneNumber,
	)

	start := time.Now()
	err := s.bridge.client.SetRoomScene(cmdCtx, s.roomID, s.sceneNumber)
	s.bridge.recordCommand(s.UniqueID(), err == nil, time.Since(start))

	if err != nil {
		s.markUnavailable(err)
		return
	}
	s.markAvailable()
}

// markAvailable silently restores availability after a success.
func (s *Scene) markAvailable() {
	s.mu.Lock()
	changed := !s.available
	s.available = true
	s.mu.Unlock()

	if changed {
		s.bridge.recordAvailability(s.UniqueID(), true)
		s.publishState()
	}
}

// markUnavailable flips availability, logging only the transition.
func (s *Scene) markUnavailable(err error) {
	s.mu.Lock()
	wasAvailable := s.available
	s.available = false
	s.mu.Unlock()

	if wasAvailable {
		s.bridge.logError("scene activation failed, marking unavailable",
			"entity", s.UniqueID(),
			"name", s.Name(),
			"error", err,
		)
		s.bridge.recordAvailability(s.UniqueID(), false)
	}
	s.publishState()
}

// publishState sends the scene's availability to the platform.
func (s *Scene) publishState() {
	s.mu.Lock()
	msg := NewSceneStateMessage(s.UniqueID(), s.Name(), s.available)
	s.mu.Unlock()

	if err := publishJSON(s.bridge.publisher, StateTopic(s.UniqueID()), msg, true); err != nil {
		s.bridge.logWarn("failed to publish scene state",
			"entity", s.UniqueID(),
			"error", err,
		)
	}
}

// Descriptor returns the platform registration descriptor.
func (s *Scene) Descriptor() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Descriptor{
		UniqueID:    s.UniqueID(),
		Name:        s.Name(),
		Kind:        "scene",
		RoomID:      s.roomID,
		SceneNumber: s.sceneNumber,
		Description: s.info.Description,
		Available:   s.available,
	}
}
