package sim

import (
	"github.com/paulmach/orb/geojson"

	"car-animator/internal/geo"
	"car-animator/internal/placemark"
)

// RouteFeatures renders the route line plus one point per placemark with a
// known position. Roles are origin, waypoint or destination.
func RouteFeatures(path geo.Path, pms []placemark.Placemark) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := geojson.NewFeature(path.LineString())
	line.Properties["role"] = "route"
	fc.Append(line)

	for i, p := range pms {
		c, ok := p.Coordinate()
		if !ok {
			continue
		}
		role := "waypoint"
		switch i {
		case 0:
			role = "origin"
		case len(pms) - 1:
			role = "destination"
		}
		f := geojson.NewFeature(c.Point())
		f.Properties["name"] = p.Name
		f.Properties["role"] = role
		if p.Address != nil {
			f.Properties["address"] = *p.Address
		}
		fc.Append(f)
	}
	return fc
}
