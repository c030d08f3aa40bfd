package geo

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Path is an ordered route; index 0 is the origin, the last index the destination.
type Path []Coordinate

// Point converts to orb's lon/lat ordering.
func (c Coordinate) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// Round rounds both components to the given number of decimals, the way
// fixed-point formatting does: the exact binary value is rounded, so 28.65
// (stored as 28.6499...) becomes 28.6.
func (c Coordinate) Round(decimals int) Coordinate {
	return Coordinate{Lat: roundTo(c.Lat, decimals), Lon: roundTo(c.Lon, decimals)}
}

// RoundedEqual reports whether a and b print identically with the given
// number of decimals. -0.0 and 0.0 print differently and do not match.
func RoundedEqual(a, b Coordinate, decimals int) bool {
	return fixed(a.Lat, decimals) == fixed(b.Lat, decimals) &&
		fixed(a.Lon, decimals) == fixed(b.Lon, decimals)
}

func fixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func roundTo(v float64, decimals int) float64 {
	r, err := strconv.ParseFloat(fixed(v, decimals), 64)
	if err != nil {
		return v
	}
	return r
}

// Snap rounds both components to the nearest multiple of 10^-decimals, so a
// decoded 77.149999999999991 becomes the same float as the literal 77.15.
func (c Coordinate) Snap(decimals int) Coordinate {
	p := math.Pow(10, float64(decimals))
	return Coordinate{Lat: math.Round(c.Lat*p) / p, Lon: math.Round(c.Lon*p) / p}
}

// InitialBearing returns the great-circle initial bearing from a to b in [0, 360).
func InitialBearing(a, b Coordinate) float64 {
	brng := orbgeo.Bearing(a.Point(), b.Point())
	brng = math.Mod(brng+360, 360)
	if brng >= 360 || math.IsNaN(brng) {
		return 0
	}
	return brng
}

// Distance is the haversine distance in meters.
func Distance(a, b Coordinate) float64 {
	return orbgeo.Distance(a.Point(), b.Point())
}

// Length returns the cumulative haversine length of the path in meters.
func (p Path) Length() float64 {
	total := 0.0
	for i := 1; i < len(p); i++ {
		total += Distance(p[i-1], p[i])
	}
	return total
}

// CumDistances returns the distance travelled at each index.
func (p Path) CumDistances() []float64 {
	if len(p) == 0 {
		return nil
	}
	cum := make([]float64, len(p))
	for i := 1; i < len(p); i++ {
		cum[i] = cum[i-1] + Distance(p[i-1], p[i])
	}
	return cum
}

// LineString converts the path for GeoJSON output.
func (p Path) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(p))
	for _, c := range p {
		ls = append(ls, c.Point())
	}
	return ls
}
