package rako

// RoomChannel identifies a single channel within a room.
type RoomChannel struct {
	RoomID    int
	ChannelID int
}

// levelKey identifies a cached level: one channel at one scene.
type levelKey struct {
	channel RoomChannel
	scene   int
}

// LevelCache holds the bridge's last-known brightness per channel and
// scene. It is fetched once at setup and read thereafter to derive a
// channel's initial brightness without a bridge round trip.
type LevelCache struct {
	levels map[levelKey]int
}

// NewLevelCache returns an empty level cache.
func NewLevelCache() LevelCache {
	return LevelCache{levels: make(map[levelKey]int)}
}

// Set records the brightness for a channel at a scene.
func (c LevelCache) Set(channel RoomChannel, scene, brightness int) {
	c.levels[levelKey{channel: channel, scene: scene}] = brightness
}

// ChannelLevel returns the cached brightness for a channel at the given
// scene, or 0 when the bridge never reported one.
func (c LevelCache) ChannelLevel(channel RoomChannel, scene int) int {
	return c.levels[levelKey{channel: channel, scene: scene}]
}

// Len returns the number of cached level entries.
func (c LevelCache) Len() int {
	return len(c.levels)
}

// SceneCache holds the bridge's last-known active scene per room.
type SceneCache map[int]int

// ActiveScene returns the room's active scene number, or 0 (off) when
// the bridge never reported one for this room.
func (c SceneCache) ActiveScene(roomID int) int {
	return c[roomID]
}
