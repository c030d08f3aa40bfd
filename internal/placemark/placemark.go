package placemark

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"car-animator/internal/geo"
)

var (
	// ErrNoLocations is returned when the payload has no usable location list.
	ErrNoLocations = errors.New("no location data in payload")
	// ErrUnknownOrigin is returned when the first placemark has no position.
	ErrUnknownOrigin = errors.New("origin placemark has no position")
)

// Placemark is a named point of interest. Latitude and Longitude are kept
// as received; a nil or unparseable value means the position is unknown.
type Placemark struct {
	Name      string  `json:"name"`
	Latitude  *string `json:"lat,omitempty"`
	Longitude *string `json:"long,omitempty"`
	Address   *string `json:"address,omitempty"`
}

// Coordinate parses the position. ok is false when either component is
// missing or not a number.
func (p Placemark) Coordinate() (c geo.Coordinate, ok bool) {
	if p.Latitude == nil || p.Longitude == nil {
		return geo.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(*p.Latitude), 64)
	if err != nil {
		return geo.Coordinate{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(*p.Longitude), 64)
	if err != nil {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Lat: lat, Lon: lon}, true
}

// Waypoints returns the positions of the placemarks strictly between the
// first and the last, skipping those with unknown position.
func Waypoints(pms []Placemark) []geo.Coordinate {
	if len(pms) < 3 {
		return nil
	}
	var out []geo.Coordinate
	for _, p := range pms[1 : len(pms)-1] {
		c, ok := p.Coordinate()
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Endpoints returns the first and last placemarks. The origin must have a
// known position since the marker starts there.
func Endpoints(pms []Placemark) (origin, destination Placemark, err error) {
	if len(pms) == 0 {
		return Placemark{}, Placemark{}, ErrNoLocations
	}
	origin, destination = pms[0], pms[len(pms)-1]
	if _, ok := origin.Coordinate(); !ok {
		return Placemark{}, Placemark{}, fmt.Errorf("%w: %q", ErrUnknownOrigin, origin.Name)
	}
	return origin, destination, nil
}

type locationPayload struct {
	Files struct {
		Locations *struct {
			Content *string `json:"content"`
		} `json:"Locations"`
	} `json:"files"`
}

type rawPlacemark struct {
	Name    optString `json:"name"`
	Address optString `json:"address"`
	Lat     optString `json:"lat"`
	Long    optString `json:"long"`
	Lon     optString `json:"lon"`
}

// DecodeLocationPayload reads the placemark list stored as a JSON string
// under files.Locations.content.
func DecodeLocationPayload(body []byte) ([]Placemark, error) {
	var payload locationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode location payload: %w", err)
	}
	if payload.Files.Locations == nil || payload.Files.Locations.Content == nil {
		return nil, fmt.Errorf("%w: files.Locations.content missing", ErrNoLocations)
	}
	return DecodeList([]byte(*payload.Files.Locations.Content))
}

// DecodeList decodes a JSON array of placemark objects.
func DecodeList(content []byte) ([]Placemark, error) {
	var raws []rawPlacemark
	if err := json.Unmarshal(content, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLocations, err)
	}
	pms := make([]Placemark, 0, len(raws))
	for _, r := range raws {
		p := Placemark{
			Latitude:  r.Lat.ptr(),
			Longitude: r.Long.ptr(),
			Address:   r.Address.ptr(),
		}
		if r.Name.set {
			p.Name = r.Name.val
		}
		if p.Longitude == nil {
			p.Longitude = r.Lon.ptr()
		}
		pms = append(pms, p)
	}
	return pms, nil
}

// optString accepts a JSON string, or a number as its literal text.
// Anything else leaves it unset.
type optString struct {
	val string
	set bool
}

func (o *optString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch {
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		o.val, o.set = s, true
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		o.val, o.set = string(b), true
	}
	return nil
}

func (o optString) ptr() *string {
	if !o.set {
		return nil
	}
	v := o.val
	return &v
}
