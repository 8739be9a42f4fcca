package granules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/catalog-gateway/internal/state"
)

var ErrInvalidSpatial = errors.New("invalid spatial filter")

// ValidateSpatial checks the textual spatial filters before they are sent to
// the catalog. Empty filters are valid.
func ValidateSpatial(s state.Spatial) error {
	if s.BoundingBox != "" {
		if _, err := ParseBoundingBox(s.BoundingBox); err != nil {
			return err
		}
	}
	if s.Point != "" {
		if _, err := ParsePoint(s.Point); err != nil {
			return err
		}
	}
	if s.Polygon != "" {
		if _, err := ParsePolygon(s.Polygon); err != nil {
			return err
		}
	}
	return nil
}

// ParseBoundingBox reads "west,south,east,north". A box may cross the
// antimeridian, so west > east is allowed.
func ParseBoundingBox(s string) (orb.Bound, error) {
	v, err := floats(s, 4)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("%w: bounding box: %w", ErrInvalidSpatial, err)
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if !validLon(b.Min.Lon()) || !validLon(b.Max.Lon()) || !validLat(b.Min.Lat()) || !validLat(b.Max.Lat()) {
		return orb.Bound{}, fmt.Errorf("%w: bounding box %q out of range", ErrInvalidSpatial, s)
	}
	if b.Min.Lat() > b.Max.Lat() {
		return orb.Bound{}, fmt.Errorf("%w: bounding box %q has south above north", ErrInvalidSpatial, s)
	}
	return b, nil
}

// ParsePoint reads "lon,lat".
func ParsePoint(s string) (orb.Point, error) {
	v, err := floats(s, 2)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: point: %w", ErrInvalidSpatial, err)
	}
	p := orb.Point{v[0], v[1]}
	if !validLon(p.Lon()) || !validLat(p.Lat()) {
		return orb.Point{}, fmt.Errorf("%w: point %q out of range", ErrInvalidSpatial, s)
	}
	return p, nil
}

// ParsePolygon reads a flat "lon,lat,lon,lat,..." ring. The ring must be
// closed and hold at least four positions.
func ParsePolygon(s string) (orb.Polygon, error) {
	v, err := floats(s, -1)
	if err != nil {
		return nil, fmt.Errorf("%w: polygon: %w", ErrInvalidSpatial, err)
	}
	if len(v)%2 != 0 {
		return nil, fmt.Errorf("%w: polygon has an odd number of ordinates", ErrInvalidSpatial)
	}
	ring := make(orb.Ring, 0, len(v)/2)
	for i := 0; i < len(v); i += 2 {
		p := orb.Point{v[i], v[i+1]}
		if !validLon(p.Lon()) || !validLat(p.Lat()) {
			return nil, fmt.Errorf("%w: polygon position %v out of range", ErrInvalidSpatial, p)
		}
		ring = append(ring, p)
	}
	if len(ring) < 4 {
		return nil, fmt.Errorf("%w: polygon needs at least 4 positions, got %d", ErrInvalidSpatial, len(ring))
	}
	if !ring.Closed() {
		return nil, fmt.Errorf("%w: polygon ring is not closed", ErrInvalidSpatial)
	}
	return orb.Polygon{ring}, nil
}

func floats(s string, want int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if want > 0 && len(parts) != want {
		return nil, fmt.Errorf("want %d values, got %d", want, len(parts))
	}
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func validLon(v float64) bool { return v >= -180 && v <= 180 }
func validLat(v float64) bool { return v >= -90 && v <= 90 }
