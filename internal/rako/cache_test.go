package rako

import "testing"

func TestLevelCacheLookup(t *testing.T) {
	cache := NewLevelCache()
	cache.Set(RoomChannel{RoomID: 5, ChannelID: 2}, 1, 180)
	cache.Set(RoomChannel{RoomID: 5, ChannelID: 2}, 2, 90)

	tests := []struct {
		name    string
		channel RoomChannel
		scene   int
		want    int
	}{
		{"cached entry", RoomChannel{RoomID: 5, ChannelID: 2}, 1, 180},
		{"same channel different scene", RoomChannel{RoomID: 5, ChannelID: 2}, 2, 90},
		{"missing scene defaults to zero", RoomChannel{RoomID: 5, ChannelID: 2}, 3, 0},
		{"missing channel defaults to zero", RoomChannel{RoomID: 9, ChannelID: 1}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cache.ChannelLevel(tt.channel, tt.scene); got != tt.want {
				t.Errorf("ChannelLevel(%+v, %d) = %d, want %d", tt.channel, tt.scene, got, tt.want)
			}
		})
	}

	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cache.Len())
	}
}

func TestSceneCacheLookup(t *testing.T) {
	cache := SceneCache{5: 1, 12: 4}

	if got := cache.ActiveScene(5); got != 1 {
		t.Errorf("ActiveScene(5) = %d, want 1", got)
	}
	if got := cache.ActiveScene(7); got != 0 {
		t.Errorf("ActiveScene(7) = %d, want 0 for unknown room", got)
	}
}
