package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// protocolName identifies this bridge in the platform topic scheme.
const protocolName = "rako"

// stateQoS is the QoS for state and discovery messages.
const stateQoS byte = 1

// Descriptor is the registration record for one entity, carried inside
// the bridge's DiscoveryMessage.
type Descriptor struct {
	// UniqueID is the entity's stable identifier.
	UniqueID string `json:"unique_id"`

	// Name is the display name.
	Name string `json:"name"`

	// Kind is "channel_light", "room_light" or "scene".
	Kind string `json:"kind"`

	// RoomID is the Rako room the entity belongs to.
	RoomID int `json:"room_id"`

	// ChannelID is the channel for channel lights (0 otherwise).
	ChannelID int `json:"channel_id,omitempty"`

	// SceneNumber is the preset number for scenes (0 otherwise).
	SceneNumber int `json:"scene_number,omitempty"`

	// Description carries scene preset text, empty for lights.
	Description string `json:"description,omitempty"`

	// Brightness is the light's brightness at registration.
	Brightness int `json:"brightness"`

	// Available is the entity's availability at registration.
	Available bool `json:"available"`
}

// DiscoveryMessage announces a bridge's full entity set.
// Topic: graylogic/discovery/rako (retained)
type DiscoveryMessage struct {
	// BridgeMAC identifies the bridge the entities belong to.
	BridgeMAC string `json:"bridge_mac"`

	// BridgeName is the bridge's display name.
	BridgeName string `json:"bridge_name,omitempty"`

	// Entities lists every registered entity.
	Entities []Descriptor `json:"entities"`
}

// StateMessage is published whenever an entity's state changes.
// Topic: graylogic/state/rako/{unique_id} (retained)
type StateMessage struct {
	// UniqueID is the entity's stable identifier.
	UniqueID string `json:"unique_id"`

	// Name is the display name.
	Name string `json:"name"`

	// Timestamp is when the state was captured (UTC).
	Timestamp time.Time `json:"timestamp"`

	// On reports whether a light is on. Omitted for scenes.
	On *bool `json:"on,omitempty"`

	// Brightness is the light's brightness. Omitted for scenes.
	Brightness *int `json:"brightness,omitempty"`

	// Available is false while the last bridge command failed.
	Available bool `json:"available"`
}

// NewLightStateMessage builds the state message for a light.
func NewLightStateMessage(uniqueID, name string, brightness int, available bool) StateMessage {
	on := brightness > 0
	return StateMessage{
		UniqueID:   uniqueID,
		Name:       name,
		Timestamp:  time.Now().UTC(),
		On:         &on,
		Brightness: &brightness,
		Available:  available,
	}
}

// NewSceneStateMessage builds the state message for a scene.
func NewSceneStateMessage(uniqueID, name string, available bool) StateMessage {
	return StateMessage{
		UniqueID:  uniqueID,
		Name:      name,
		Timestamp: time.Now().UTC(),
		Available: available,
	}
}

// CommandMessage is consumed from the platform to drive an entity.
// Topic: graylogic/command/rako/{unique_id}
type CommandMessage struct {
	// ID correlates the command with platform logs.
	ID string `json:"id"`

	// Command is "turn_on", "turn_off" or "activate".
	Command string `json:"command"`

	// Brightness applies to turn_on; nil means full brightness.
	Brightness *int `json:"brightness,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`
}

// Command names accepted by the dispatcher.
const (
	CommandTurnOn   = "turn_on"
	CommandTurnOff  = "turn_off"
	CommandActivate = "activate"
)

// Topic helpers

// StateTopic returns the MQTT topic for an entity's state.
// Example: graylogic/state/rako/rako_112233445566_r5_c2
func StateTopic(uniqueID string) string {
	return fmt.Sprintf("graylogic/state/%s/%s", protocolName, uniqueID)
}

// CommandTopic returns the MQTT topic for commands to an entity.
func CommandTopic(uniqueID string) string {
	return fmt.Sprintf("graylogic/command/%s/%s", protocolName, uniqueID)
}

// CommandSubscribeTopic returns the subscription pattern covering all
// entity commands.
func CommandSubscribeTopic() string {
	return fmt.Sprintf("graylogic/command/%s/#", protocolName)
}

// DiscoveryTopic returns the topic entity descriptors are published to.
func DiscoveryTopic() string {
	return fmt.Sprintf("graylogic/discovery/%s", protocolName)
}

// HealthTopic returns the bridge health status topic.
func HealthTopic() string {
	return fmt.Sprintf("graylogic/health/%s", protocolName)
}

// publishJSON marshals a message and publishes it.
func publishJSON(publisher StatePublisher, topic string, msg any, retained bool) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling %s payload: %w", topic, err)
	}
	return publisher.Publish(topic, payload, stateQoS, retained)
}
