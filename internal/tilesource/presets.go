package tilesource

import "sort"

var presets = map[string]Config{
	"mapnik": {
		Name:       "MapnikTiles",
		Identifier: "MapnikIdentifier",
		URL:        "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		MaxZoom:    19,
	},
	"gps": {
		Name:       "OSM GPS Traces",
		Identifier: "OsmGpsTraceIdentifier",
		URL:        "https://gps.tile.openstreetmap.org/lines/{z}/{x}/{y}.png",
		MaxZoom:    20,
	},
}

// Preset returns a built-in source configuration by short name.
func Preset(name string) (Config, bool) {
	c, ok := presets[name]
	return c, ok
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
