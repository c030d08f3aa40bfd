package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"car-animator/internal/placemark"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Queryer is the subset of *sql.DB used here.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const placemarksQuery = `
SELECT name, lat::text, long::text, address
FROM placemarks
WHERE route_name = $1
ORDER BY seq`

// FetchPlacemarks returns the ordered placemarks of a route. lat/long are
// read as text so unparseable values reach the caller as "unknown position"
// instead of failing the scan.
func FetchPlacemarks(ctx context.Context, db Queryer, route string) ([]placemark.Placemark, error) {
	rows, err := db.QueryContext(ctx, placemarksQuery, route)
	if err != nil {
		return nil, fmt.Errorf("query placemarks: %w", err)
	}
	defer rows.Close()

	var pms []placemark.Placemark
	for rows.Next() {
		p, err := scanPlacemark(rows.Scan)
		if err != nil {
			return nil, err
		}
		pms = append(pms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(pms) == 0 {
		return nil, fmt.Errorf("%w: route %q", placemark.ErrNoLocations, route)
	}
	return pms, nil
}

func scanPlacemark(scan func(dest ...any) error) (placemark.Placemark, error) {
	var name, lat, long, addr sql.NullString
	if err := scan(&name, &lat, &long, &addr); err != nil {
		return placemark.Placemark{}, err
	}
	return placemark.Placemark{
		Name:      name.String,
		Latitude:  nullable(lat),
		Longitude: nullable(long),
		Address:   nullable(addr),
	}, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
