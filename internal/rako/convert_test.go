package rako

import "testing"

func TestBrightnessForScene(t *testing.T) {
	tests := []struct {
		name  string
		scene int
		want  int
	}{
		{"scene 0 is off", 0, 0},
		{"scene 1 is full", 1, 255},
		{"scene 2 is three quarters", 2, 192},
		{"scene 3 is half", 3, 128},
		{"scene 4 is a quarter", 4, 64},
		{"unknown scene maps to off", 7, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BrightnessForScene(tt.scene); got != tt.want {
				t.Errorf("BrightnessForScene(%d) = %d, want %d", tt.scene, got, tt.want)
			}
		})
	}
}

func TestSceneForBrightness(t *testing.T) {
	tests := []struct {
		name       string
		brightness int
		want       int
	}{
		{"zero is scene 0", 0, 0},
		{"negative clamps to off", -1, 0},
		{"low end of scene 4", 1, 4},
		{"boundary 64 is scene 4", 64, 4},
		{"boundary 128 is scene 3", 128, 3},
		{"boundary 192 is scene 2", 192, 2},
		{"above 192 is scene 1", 193, 1},
		{"full brightness is scene 1", 255, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SceneForBrightness(tt.brightness); got != tt.want {
				t.Errorf("SceneForBrightness(%d) = %d, want %d", tt.brightness, got, tt.want)
			}
		})
	}
}

// The four preset levels must survive a round trip, so a room light
// set to a preset reports the same brightness the scene produces.
func TestSceneBrightnessRoundTrip(t *testing.T) {
	for scene := 0; scene <= SceneMax; scene++ {
		brightness := BrightnessForScene(scene)
		if got := SceneForBrightness(brightness); got != scene {
			t.Errorf("scene %d -> brightness %d -> scene %d, want original scene", scene, brightness, got)
		}
	}
}

// Brightness 0 must always reach scene 0 (off), never a scene entity's range.
func TestZeroBrightnessNeverMapsToScene(t *testing.T) {
	if got := SceneForBrightness(0); got != 0 {
		t.Fatalf("SceneForBrightness(0) = %d, want 0", got)
	}
}
