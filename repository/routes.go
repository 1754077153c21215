package repository

import (
	"context"
	"database/sql"

	"github.com/sakha-transit/tripgraph/model"
)

// RouteRepository persists Route rows, real or synthesized by the air-route
// worker (spec §3.1, §4.B, §4.F).
type RouteRepository struct {
	db *DB
}

// NewRouteRepository constructs a RouteRepository.
func NewRouteRepository(db *DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// SaveBatch upserts routes transactionally; stop sequences are stored as a
// JSON array since they are read back wholesale, never queried piecemeal.
func (r *RouteRepository) SaveBatch(ctx context.Context, routes []model.Route) error {
	if len(routes) == 0 {
		return nil
	}
	return r.db.withResilience(ctx, "routes.save_batch", func() error {
		return r.db.txDo(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO routes (id, transport_type, from_stop_id, to_stop_id, stops, duration_minutes,
				                    distance_km, operator, route_number, metadata, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
				ON CONFLICT (id) DO UPDATE SET
					transport_type = EXCLUDED.transport_type, from_stop_id = EXCLUDED.from_stop_id,
					to_stop_id = EXCLUDED.to_stop_id, stops = EXCLUDED.stops,
					duration_minutes = EXCLUDED.duration_minutes, distance_km = EXCLUDED.distance_km,
					operator = EXCLUDED.operator, route_number = EXCLUDED.route_number,
					metadata = EXCLUDED.metadata, updated_at = now()`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, rt := range routes {
				stopsJSON, err := jsonCodec.Marshal(rt.Stops)
				if err != nil {
					return err
				}
				if _, err := stmt.ExecContext(ctx, rt.ID, rt.TransportType, rt.FromStopID, rt.ToStopID,
					stopsJSON, rt.DurationMin, rt.DistanceKm, rt.Operator, rt.RouteNumber, toJSONMap(rt.Metadata)); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ExistsDirect reports whether a real route already connects fromStopID to
// toStopID directly, used by both E and F to skip redundant synthesis.
func (r *RouteRepository) ExistsDirect(ctx context.Context, fromStopID, toStopID string) (bool, error) {
	var exists bool
	err := r.db.withResilience(ctx, "routes.exists_direct", func() error {
		return r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM routes WHERE from_stop_id = $1 AND to_stop_id = $2)`,
			fromStopID, toStopID).Scan(&exists)
	})
	return exists, err
}

// GetAll loads every route (real and — via a union at the caller — virtual),
// used by the graph builder to construct edges (spec §4.G step 2).
func (r *RouteRepository) GetAll(ctx context.Context) ([]model.Route, error) {
	var out []model.Route
	err := r.db.withResilience(ctx, "routes.get_all", func() error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, transport_type, from_stop_id, to_stop_id, stops, duration_minutes,
			       distance_km, operator, route_number, metadata, created_at, updated_at
			FROM routes`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rt model.Route
			var stopsRaw, metaRaw []byte
			if err := rows.Scan(&rt.ID, &rt.TransportType, &rt.FromStopID, &rt.ToStopID, &stopsRaw,
				&rt.DurationMin, &rt.DistanceKm, &rt.Operator, &rt.RouteNumber, &metaRaw,
				&rt.CreatedAt, &rt.UpdatedAt); err != nil {
				return err
			}
			_ = jsonCodec.Unmarshal(stopsRaw, &rt.Stops)
			rt.Metadata = fromJSONMap(metaRaw)
			out = append(out, rt)
		}
		return rows.Err()
	})
	return out, err
}

// VirtualRouteRepository persists VirtualRoute rows (spec §4.E).
type VirtualRouteRepository struct {
	db *DB
}

// NewVirtualRouteRepository constructs a VirtualRouteRepository.
func NewVirtualRouteRepository(db *DB) *VirtualRouteRepository {
	return &VirtualRouteRepository{db: db}
}

// SaveBatch inserts virtual routes; like virtual stops they are never
// updated after creation.
func (r *VirtualRouteRepository) SaveBatch(ctx context.Context, routes []model.VirtualRoute) error {
	if len(routes) == 0 {
		return nil
	}
	return r.db.withResilience(ctx, "virtual_routes.save_batch", func() error {
		return r.db.txDo(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO virtual_routes (id, route_type, from_stop_id, to_stop_id, distance_km,
				                            duration_minutes, transport_mode, metadata, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
				ON CONFLICT (id) DO NOTHING`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, vr := range routes {
				if _, err := stmt.ExecContext(ctx, vr.ID, vr.RouteType, vr.FromStopID, vr.ToStopID,
					vr.DistanceKm, vr.DurationMin, vr.TransportMode, toJSONMap(vr.Metadata)); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ExistsDirect reports whether a virtual route already connects the two
// stops in either direction, used by the connectivity-ensuring step.
func (r *VirtualRouteRepository) ExistsDirect(ctx context.Context, fromStopID, toStopID string) (bool, error) {
	var exists bool
	err := r.db.withResilience(ctx, "virtual_routes.exists_direct", func() error {
		return r.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM virtual_routes
			              WHERE (from_stop_id = $1 AND to_stop_id = $2)
			                 OR (from_stop_id = $2 AND to_stop_id = $1))`,
			fromStopID, toStopID).Scan(&exists)
	})
	return exists, err
}

// GetAll loads every virtual route, used by the graph builder.
func (r *VirtualRouteRepository) GetAll(ctx context.Context) ([]model.VirtualRoute, error) {
	var out []model.VirtualRoute
	err := r.db.withResilience(ctx, "virtual_routes.get_all", func() error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, route_type, from_stop_id, to_stop_id, distance_km, duration_minutes,
			       transport_mode, metadata, created_at
			FROM virtual_routes`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var vr model.VirtualRoute
			var metaRaw []byte
			if err := rows.Scan(&vr.ID, &vr.RouteType, &vr.FromStopID, &vr.ToStopID, &vr.DistanceKm,
				&vr.DurationMin, &vr.TransportMode, &metaRaw, &vr.CreatedAt); err != nil {
				return err
			}
			vr.Metadata = fromJSONMap(metaRaw)
			out = append(out, vr)
		}
		return rows.Err()
	})
	return out, err
}
