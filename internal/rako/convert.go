package rako

// Brightness bounds and the preset levels behind the four room scenes.
const (
	// BrightnessMax is the maximum brightness value.
	BrightnessMax = 255

	// SceneMax is the highest scene number. Scene 0 is "off".
	SceneMax = 4
)

// sceneBrightness maps scene numbers to their preset brightness.
// Scene 1 is full brightness; each following scene steps down a quarter.
var sceneBrightness = map[int]int{
	0: 0,
	1: 255,
	2: 192,
	3: 128,
	4: 64,
}

// BrightnessForScene converts a scene number to its equivalent
// brightness. Unknown scene numbers map to 0 (off).
func BrightnessForScene(scene int) int {
	return sceneBrightness[scene]
}

// SceneForBrightness converts a brightness to the nearest scene number.
// Zero is always scene 0 (off); the conversion is exact at the four
// preset levels, so converting back via BrightnessForScene is stable
// at scene boundaries.
func SceneForBrightness(brightness int) int {
	switch {
	case brightness <= 0:
		return 0
	case brightness <= 64:
		return 4
	case brightness <= 128:
		return 3
	case brightness <= 192:
		return 2
	default:
		return 1
	}
}
