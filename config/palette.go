package config

// MaxComparedVehicles bounds how many vehicles can be charted together.
const MaxComparedVehicles = 5

// Palette holds the line colours handed out to compared vehicles, in order.
var Palette = []string{
	"#1f77b4",
	"#ff7f0e",
	"#2ca02c",
	"#d62728",
	"#9467bd",
}

// ColorAt returns the palette colour for slot i, wrapping around.
func ColorAt(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// FirstUnusedColor returns the first palette colour not present in used.
func FirstUnusedColor(used []string) string {
	taken := make(map[string]bool, len(used))
	for _, c := range used {
		taken[c] = true
	}
	for _, c := range Palette {
		if !taken[c] {
			return c
		}
	}
	return ColorAt(len(used))
}
