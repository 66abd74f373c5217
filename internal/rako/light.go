package rako

import "fmt"

// LightKind is the closed enumeration of light descriptor kinds the
// bridge can yield during discovery. There are exactly two: individually
// dimmable channels, and whole-room aggregates driven by scenes.
type LightKind int

const (
	// KindChannel is an individually dimmable circuit within a room.
	KindChannel LightKind = iota + 1

	// KindRoom is the aggregate light for a whole room, controlled by
	// activating one of the room's scenes.
	KindRoom
)

// String returns the kind name for logging.
func (k LightKind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindRoom:
		return "room"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Light describes a single light discovered from the bridge.
//
// For KindRoom descriptors ChannelID is zero and ChannelName is empty:
// room commands address the whole room, not a circuit.
type Light struct {
	Kind        LightKind
	RoomID      int
	ChannelID   int
	RoomTitle   string
	ChannelName string
}

// DisplayName returns the human-readable entity name: the room title for
// room lights, "Room - Channel" for channel lights.
func (l Light) DisplayName() string {
	if l.Kind == KindChannel {
		return fmt.Sprintf("%s - %s", l.RoomTitle, l.ChannelName)
	}
	return l.RoomTitle
}
