package repository

import (
	"context"
	"database/sql"
	"errors"

	domainerrors "github.com/sakha-transit/tripgraph/errors"
	"github.com/sakha-transit/tripgraph/model"
)

// DatasetRepository persists Dataset rows (spec §3.1, §4.B).
type DatasetRepository struct {
	db *DB
}

// NewDatasetRepository constructs a DatasetRepository.
func NewDatasetRepository(db *DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// GetLatest returns the active dataset, or (nil, nil) if none is active yet.
func (r *DatasetRepository) GetLatest(ctx context.Context) (*model.Dataset, error) {
	var d model.Dataset
	err := r.db.withResilience(ctx, "datasets.get_latest", func() error {
		row := r.db.QueryRowContext(ctx, `
			SELECT id, numeric_id, version, source, quality_score, stop_count, route_count,
			       flight_count, virtual_stop_count, virtual_route_count, content_hash,
			       active, created_at, updated_at
			FROM datasets WHERE active = true LIMIT 1`)
		return scanDataset(row, &d)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ExistsByODataHash reports whether a dataset with the given content hash has
// already been ingested, used by ingestion to dedup re-deliveries.
func (r *DatasetRepository) ExistsByODataHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := r.db.withResilience(ctx, "datasets.exists_by_hash", func() error {
		return r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM datasets WHERE content_hash = $1)`, hash).Scan(&exists)
	})
	return exists, err
}

// SetActive clears the active flag on every dataset row and sets it on the
// row with the given version, inside one transaction (spec §4.B, §5).
func (r *DatasetRepository) SetActive(ctx context.Context, version string) error {
	return r.db.withResilience(ctx, "datasets.set_active", func() error {
		return r.db.txDo(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `UPDATE datasets SET active = false WHERE active = true`); err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `UPDATE datasets SET active = true WHERE version = $1`, version)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return sql.ErrNoRows
			}
			return nil
		})
	})
}

// Delete removes a dataset row, refusing if it is currently active (spec §4.B).
func (r *DatasetRepository) Delete(ctx context.Context, id string) error {
	return r.db.withResilience(ctx, "datasets.delete", func() error {
		var active bool
		if err := r.db.QueryRowContext(ctx, `SELECT active FROM datasets WHERE id = $1`, id).Scan(&active); err != nil {
			return err
		}
		if active {
			return &domainerrors.ActiveRowExistsError{Entity: "dataset", ID: id}
		}
		_, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = $1`, id)
		return err
	})
}

// DeleteOld removes inactive, orphaned dataset rows beyond keepCount most
// recent, implementing the spec §5 retention sweep.
func (r *DatasetRepository) DeleteOld(ctx context.Context, keepCount int) (int64, error) {
	var affected int64
	err := r.db.withResilience(ctx, "datasets.delete_old", func() error {
		res, err := r.db.ExecContext(ctx, `
			DELETE FROM datasets
			WHERE active = false AND id NOT IN (
				SELECT id FROM datasets ORDER BY created_at DESC LIMIT $1
			)`, keepCount)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func scanDataset(row *sql.Row, d *model.Dataset) error {
	return row.Scan(
		&d.ID, &d.NumericID, &d.Version, &d.Source, &d.QualityScore, &d.StopCount, &d.RouteCount,
		&d.FlightCount, &d.VirtualStopCount, &d.VirtualRouteCount, &d.ContentHash,
		&d.Active, &d.CreatedAt, &d.UpdatedAt,
	)
}
