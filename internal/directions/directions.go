package directions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/twpayne/go-polyline"

	"car-animator/internal/geo"
	"car-animator/internal/placemark"
)

// ErrNoRoute is returned when the response carries no usable route.
var ErrNoRoute = errors.New("no route in directions response")

// Query builds the directions request parameters from the placemark list:
// first is the origin, last the destination, the rest are waypoints.
func Query(pms []placemark.Placemark) (url.Values, error) {
	if len(pms) == 0 {
		return nil, placemark.ErrNoLocations
	}
	q := url.Values{}
	q.Set("origin", pms[0].Name)
	q.Set("destination", pms[len(pms)-1].Name)
	if len(pms) > 2 {
		names := make([]string, 0, len(pms)-2)
		for _, p := range pms[1 : len(pms)-1] {
			if strings.TrimSpace(p.Name) == "" {
				continue
			}
			names = append(names, p.Name)
		}
		if len(names) > 0 {
			q.Set("waypoints", strings.Join(names, "|"))
		}
	}
	return q, nil
}

type response struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

// DecodeResponse extracts routes[0].overview_polyline.points.
func DecodeResponse(body []byte) (string, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("decode directions response: %w", err)
	}
	if r.Status != "" && r.Status != "OK" {
		if r.ErrorMessage != "" {
			return "", fmt.Errorf("%w: status %s: %s", ErrNoRoute, r.Status, r.ErrorMessage)
		}
		return "", fmt.Errorf("%w: status %s", ErrNoRoute, r.Status)
	}
	if len(r.Routes) == 0 || r.Routes[0].OverviewPolyline.Points == "" {
		return "", ErrNoRoute
	}
	return r.Routes[0].OverviewPolyline.Points, nil
}

// polylineDecimals is the precision of the encoded polyline format (1e-5 degrees).
const polylineDecimals = 5

// DecodePolyline decodes an encoded polyline at the standard 1e-5 precision.
// Points are snapped to that grid so they equal the decimal literals they encode.
func DecodePolyline(encoded string) (geo.Path, error) {
	if encoded == "" {
		return geo.Path{}, nil
	}
	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing byte(s)", len(rest))
	}
	path := make(geo.Path, 0, len(coords))
	for _, c := range coords {
		path = append(path, geo.Coordinate{Lat: c[0], Lon: c[1]}.Snap(polylineDecimals))
	}
	return path, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(p geo.Path) string {
	coords := make([][]float64, 0, len(p))
	for _, c := range p {
		coords = append(coords, []float64{c.Lat, c.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}
