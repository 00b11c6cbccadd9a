package tilesource

import (
	"strconv"
	"strings"

	"github.com/jaennil/guide_helper/backend/imagery/internal/pyramid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

const (
	EPSG3857 = "EPSG:3857"
	EPSG4326 = "EPSG:4326"
)

// mercatorAliases all name spherical web mercator.
var mercatorAliases = map[string]bool{
	EPSG3857:      true,
	"EPSG:900913": true,
	"EPSG:3587":   true,
	"EPSG:54004":  true,
	"EPSG:41001":  true,
	"EPSG:102113": true,
	"EPSG:102100": true,
	"EPSG:3785":   true,
}

func Supported(projection string) bool {
	return projection == EPSG4326 || mercatorAliases[projection]
}

// Bound is the extent of a in projection units: degrees for EPSG:4326,
// meters otherwise.
func Bound(a pyramid.Address, projection string) orb.Bound {
	b := maptile.New(uint32(a.X), uint32(a.Y), maptile.Zoom(a.Zoom)).Bound()
	if projection == EPSG4326 {
		return b
	}
	return orb.Bound{
		Min: project.WGS84.ToMercator(b.Min),
		Max: project.WGS84.ToMercator(b.Max),
	}
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (s *Source) expandWMS(u string, a pyramid.Address) string {
	b := Bound(a, s.projection)
	minX, minY := formatCoord(b.Min.X()), formatCoord(b.Min.Y())
	maxX, maxY := formatCoord(b.Max.X()), formatCoord(b.Max.Y())

	var bbox string
	if s.projection == EPSG4326 && strings.Contains(strings.ToLower(u), "crs={proj}") {
		// WMS 1.3 uses lat,lon axis order for EPSG:4326
		bbox = strings.Join([]string{minY, minX, maxY, maxX}, ",")
	} else {
		bbox = strings.Join([]string{minX, minY, maxX, maxY}, ",")
	}

	size := strconv.Itoa(pyramid.TileSize)
	return strings.NewReplacer(
		"{width}", size,
		"{height}", size,
		"{proj}", s.projection,
		"{bbox}", bbox,
		"{wkid}", strings.TrimPrefix(s.projection, "EPSG:"),
		"{w}", minX,
		"{s}", minY,
		"{e}", maxX,
		"{n}", maxY,
	).Replace(u)
}
