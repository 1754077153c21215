package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sakha-transit/tripgraph/model"
)

// RealStopRepository persists RealStop rows ingested from the external
// transport dataset (spec §3.1, §4.B).
type RealStopRepository struct {
	db *DB
}

// NewRealStopRepository constructs a RealStopRepository.
func NewRealStopRepository(db *DB) *RealStopRepository {
	return &RealStopRepository{db: db}
}

// SaveBatch upserts every stop inside one transaction: on any per-row error
// the whole batch aborts and the database is left unchanged (spec §4.B
// saveRealStopsBatch atomicity contract).
func (r *RealStopRepository) SaveBatch(ctx context.Context, stops []model.RealStop) error {
	if len(stops) == 0 {
		return nil
	}
	return r.db.withResilience(ctx, "stops.save_batch", func() error {
		return r.db.txDo(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO stops (id, name, latitude, longitude, city_id, is_airport, is_railway_station, metadata, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
					city_id = EXCLUDED.city_id, is_airport = EXCLUDED.is_airport,
					is_railway_station = EXCLUDED.is_railway_station, metadata = EXCLUDED.metadata,
					updated_at = now()`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, s := range stops {
				if _, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Latitude, s.Longitude, s.CityID,
					s.IsAirport, s.IsRailwayStation, toJSONMap(s.Metadata)); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// FindNearby returns stops inside radiusKm of (lat, lon), computed with the
// spherical law of cosines (R=6371km), ordered nearest-first (spec §4.B).
func (r *RealStopRepository) FindNearby(ctx context.Context, lat, lon, radiusKm float64) ([]model.RealStop, error) {
	var out []model.RealStop
	err := r.db.withResilience(ctx, "stops.find_nearby", func() error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, name, latitude, longitude, city_id, is_airport, is_railway_station, metadata, created_at, updated_at,
			       6371 * acos(
			           LEAST(1, GREATEST(-1,
			               cos(radians($1)) * cos(radians(latitude)) * cos(radians(longitude) - radians($2))
			               + sin(radians($1)) * sin(radians(latitude))
			           ))
			       ) AS distance_km
			FROM stops
			WHERE 6371 * acos(
			    LEAST(1, GREATEST(-1,
			        cos(radians($1)) * cos(radians(latitude)) * cos(radians(longitude) - radians($2))
			        + sin(radians($1)) * sin(radians(latitude))
			    ))
			) <= $3
			ORDER BY distance_km ASC`, lat, lon, radiusKm)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s model.RealStop
			var distance float64
			var metaRaw []byte
			if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.CityID, &s.IsAirport,
				&s.IsRailwayStation, &metaRaw, &s.CreatedAt, &s.UpdatedAt, &distance); err != nil {
				return err
			}
			s.Metadata = fromJSONMap(metaRaw)
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

// GetByCityName performs the multi-strategy city search spec §4.B requires:
// exact match on normalized city id ranks first, then prefix/substring on
// city id, then full-text on stop name, then normalized substring. Capped at
// 100 rows.
func (r *RealStopRepository) GetByCityName(ctx context.Context, normalizedName string) ([]model.RealStop, error) {
	var out []model.RealStop
	err := r.db.withResilience(ctx, "stops.get_by_city_name", func() error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, name, latitude, longitude, city_id, is_airport, is_railway_station, metadata, created_at, updated_at
			FROM stops
			WHERE city_id = $1
			   OR city_id ILIKE $1 || '%'
			   OR city_id ILIKE '%' || $1 || '%'
			   OR to_tsvector('simple', name) @@ plainto_tsquery('simple', $1)
			   OR translate(lower(name), 'ё', 'е') ILIKE '%' || $1 || '%'
			ORDER BY (city_id = $1) DESC, name ASC
			LIMIT 100`, normalizedName)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s model.RealStop
			var metaRaw []byte
			if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.CityID, &s.IsAirport,
				&s.IsRailwayStation, &metaRaw, &s.CreatedAt, &s.UpdatedAt); err != nil {
				return err
			}
			s.Metadata = fromJSONMap(metaRaw)
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

// FindByID looks up a single real stop.
func (r *RealStopRepository) FindByID(ctx context.Context, id string) (*model.RealStop, error) {
	var s model.RealStop
	var metaRaw []byte
	err := r.db.withResilience(ctx, "stops.find_by_id", func() error {
		return r.db.QueryRowContext(ctx, `
			SELECT id, name, latitude, longitude, city_id, is_airport, is_railway_station, metadata, created_at, updated_at
			FROM stops WHERE id = $1`, id).
			Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.CityID, &s.IsAirport, &s.IsRailwayStation,
				&metaRaw, &s.CreatedAt, &s.UpdatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Metadata = fromJSONMap(metaRaw)
	return &s, nil
}

// VirtualStopRepository persists VirtualStop rows (spec §3.3: created once by
// the virtual-entities worker and never updated).
type VirtualStopRepository struct {
	db *DB
}

// NewVirtualStopRepository constructs a VirtualStopRepository.
func NewVirtualStopRepository(db *DB) *VirtualStopRepository {
	return &VirtualStopRepository{db: db}
}

// ExistsAny reports whether at least one virtual stop has been created,
// backing the virtual-entities worker's idempotence guard (spec §4.E).
func (r *VirtualStopRepository) ExistsAny(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.withResilience(ctx, "virtual_stops.exists_any", func() error {
		return r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM virtual_stops)`).Scan(&exists)
	})
	return exists, err
}

// SaveBatch inserts the given virtual stops; they are never updated after
// creation, so this is a plain insert, not an upsert.
func (r *VirtualStopRepository) SaveBatch(ctx context.Context, stops []model.VirtualStop) error {
	if len(stops) == 0 {
		return nil
	}
	return r.db.withResilience(ctx, "virtual_stops.save_batch", func() error {
		return r.db.txDo(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO virtual_stops (id, name, latitude, longitude, grid_type, city_id, grid_row, grid_col, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
				ON CONFLICT (id) DO NOTHING`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, s := range stops {
				if _, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Latitude, s.Longitude, s.GridType,
					s.CityID, s.GridRow, s.GridCol); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// GetByCityName returns virtual stops for a city, used as the query engine's
// fallback when no real stop resolves (spec §4.H step 2).
func (r *VirtualStopRepository) GetByCityName(ctx context.Context, normalizedName string) ([]model.VirtualStop, error) {
	var out []model.VirtualStop
	err := r.db.withResilience(ctx, "virtual_stops.get_by_city_name", func() error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, name, latitude, longitude, grid_type, city_id, grid_row, grid_col, created_at
			FROM virtual_stops WHERE city_id = $1 LIMIT 100`, normalizedName)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s model.VirtualStop
			if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.GridType, &s.CityID,
				&s.GridRow, &s.GridCol, &s.CreatedAt); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

// FindByID looks up a single virtual stop.
func (r *VirtualStopRepository) FindByID(ctx context.Context, id string) (*model.VirtualStop, error) {
	var s model.VirtualStop
	err := r.db.withResilience(ctx, "virtual_stops.find_by_id", func() error {
		return r.db.QueryRowContext(ctx, `
			SELECT id, name, latitude, longitude, grid_type, city_id, grid_row, grid_col, created_at
			FROM virtual_stops WHERE id = $1`, id).
			Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.GridType, &s.CityID, &s.GridRow, &s.GridCol, &s.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
