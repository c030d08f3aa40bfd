package db

import (
	"context"

	"car-animator/internal/placemark"
)

// Source serves the placemarks of one route from Postgres.
type Source struct {
	DB    Queryer
	Route string
}

func (s Source) FetchPlacemarks(ctx context.Context) ([]placemark.Placemark, error) {
	return FetchPlacemarks(ctx, s.DB, s.Route)
}
