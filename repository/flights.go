package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/sakha-transit/tripgraph/model"
)

// FlightRepository persists Flight rows, real or synthesized (spec §3.1, §4.B).
type FlightRepository struct {
	db *DB
}

// NewFlightRepository constructs a FlightRepository.
func NewFlightRepository(db *DB) *FlightRepository {
	return &FlightRepository{db: db}
}

// SaveBatch upserts flights transactionally.
func (r *FlightRepository) SaveBatch(ctx context.Context, flights []model.Flight) error {
	if len(flights) == 0 {
		return nil
	}
	return r.db.withResilience(ctx, "flights.save_batch", func() error {
		return r.db.txDo(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO flights (id, from_stop_id, to_stop_id, departure_time, arrival_time,
				                    days_of_week, route_id, price_rub, is_virtual, transport_type,
				                    metadata, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
				ON CONFLICT (id) DO UPDATE SET
					departure_time = EXCLUDED.departure_time, arrival_time = EXCLUDED.arrival_time,
					days_of_week = EXCLUDED.days_of_week, price_rub = EXCLUDED.price_rub,
					metadata = EXCLUDED.metadata, updated_at = now()`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, f := range flights {
				var transportType interface{}
				if f.TransportType != nil {
					transportType = f.TransportType.String()
				}
				if _, err := stmt.ExecContext(ctx, f.ID, f.FromStopID, f.ToStopID, f.DepartureTime,
					f.ArrivalTime, pq.Array(f.DaysOfWeek), f.RouteID, f.PriceRub, f.IsVirtual,
					transportType, toJSONMap(f.Metadata)); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// GetBetweenStops returns flights between two stops active on the given
// weekday, used by the query engine's segment hydration step (spec §4.H
// step 5, getFlightsBetweenStops).
func (r *FlightRepository) GetBetweenStops(ctx context.Context, fromStopID, toStopID string, weekday int) ([]model.Flight, error) {
	var out []model.Flight
	err := r.db.withResilience(ctx, "flights.get_between_stops", func() error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, from_stop_id, to_stop_id, departure_time, arrival_time, days_of_week,
			       route_id, price_rub, is_virtual, transport_type, metadata, created_at, updated_at
			FROM flights
			WHERE from_stop_id = $1 AND to_stop_id = $2 AND $3 = ANY(days_of_week)
			ORDER BY departure_time ASC`, fromStopID, toStopID, weekday)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var f model.Flight
			var metaRaw []byte
			var transportType sql.NullString
			if err := rows.Scan(&f.ID, &f.FromStopID, &f.ToStopID, &f.DepartureTime, &f.ArrivalTime,
				pq.Array(&f.DaysOfWeek), &f.RouteID, &f.PriceRub, &f.IsVirtual, &transportType,
				&metaRaw, &f.CreatedAt, &f.UpdatedAt); err != nil {
				return err
			}
			f.Metadata = fromJSONMap(metaRaw)
			out = append(out, f)
		}
		return rows.Err()
	})
	return out, err
}

// GetAll loads every flight, used by the graph builder to derive schedule-
// based edge weights (spec §4.G step 4).
func (r *FlightRepository) GetAll(ctx context.Context) ([]model.Flight, error) {
	var out []model.Flight
	err := r.db.withResilience(ctx, "flights.get_all", func() error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, from_stop_id, to_stop_id, departure_time, arrival_time, days_of_week,
			       route_id, price_rub, is_virtual, transport_type, metadata, created_at, updated_at
			FROM flights`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var f model.Flight
			var metaRaw []byte
			var transportType sql.NullString
			if err := rows.Scan(&f.ID, &f.FromStopID, &f.ToStopID, &f.DepartureTime, &f.ArrivalTime,
				pq.Array(&f.DaysOfWeek), &f.RouteID, &f.PriceRub, &f.IsVirtual, &transportType,
				&metaRaw, &f.CreatedAt, &f.UpdatedAt); err != nil {
				return err
			}
			f.Metadata = fromJSONMap(metaRaw)
			out = append(out, f)
		}
		return rows.Err()
	})
	return out, err
}
