package repository

import (
	"context"
	"database/sql"
	"errors"

	domainerrors "github.com/sakha-transit/tripgraph/errors"
	"github.com/sakha-transit/tripgraph/model"
)

// GraphMetadataRepository persists GraphMetadata rows (spec §3.1, §4.G).
type GraphMetadataRepository struct {
	db *DB
}

// NewGraphMetadataRepository constructs a GraphMetadataRepository.
func NewGraphMetadataRepository(db *DB) *GraphMetadataRepository {
	return &GraphMetadataRepository{db: db}
}

// ExistsForDatasetVersion reports whether a graph has already been built
// from the given dataset version, backing the graph builder's idempotence
// guard (spec §4.G precondition).
func (r *GraphMetadataRepository) ExistsForDatasetVersion(ctx context.Context, datasetVersion string) (bool, error) {
	var exists bool
	err := r.db.withResilience(ctx, "graphs.exists_for_dataset_version", func() error {
		return r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM graphs WHERE dataset_version = $1)`, datasetVersion).Scan(&exists)
	})
	return exists, err
}

// Create inserts a new, inactive graph metadata row (spec §4.G step 7's
// "persist inactive metadata" sub-step).
func (r *GraphMetadataRepository) Create(ctx context.Context, g *model.GraphMetadata) error {
	return r.db.withResilience(ctx, "graphs.create", func() error {
		return r.db.QueryRowContext(ctx, `
			INSERT INTO graphs (id, version, dataset_version, total_nodes, total_edges, build_duration_ms,
			                   store_key, backup_path, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, now(), now())
			RETURNING created_at, updated_at`, g.ID, g.Version, g.DatasetVersion, g.TotalNodes, g.TotalEdges,
			g.BuildDurationMs, g.StoreKey, g.BackupPath).Scan(&g.CreatedAt, &g.UpdatedAt)
	})
}

// SetActive clears the active flag on every graph row and activates the row
// with the given version (spec §5 "flip active flag ... under a transaction
// that first clears the flag").
func (r *GraphMetadataRepository) SetActive(ctx context.Context, version string) error {
	return r.db.withResilience(ctx, "graphs.set_active", func() error {
		return r.db.txDo(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `UPDATE graphs SET active = false WHERE active = true`); err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `UPDATE graphs SET active = true WHERE version = $1`, version)
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

// GetActive returns the currently active graph metadata row, or nil if none.
func (r *GraphMetadataRepository) GetActive(ctx context.Context) (*model.GraphMetadata, error) {
	var g model.GraphMetadata
	err := r.db.withResilience(ctx, "graphs.get_active", func() error {
		return r.db.QueryRowContext(ctx, `
			SELECT id, version, dataset_version, total_nodes, total_edges, build_duration_ms,
			       store_key, backup_path, active, created_at, updated_at
			FROM graphs WHERE active = true LIMIT 1`).
			Scan(&g.ID, &g.Version, &g.DatasetVersion, &g.TotalNodes, &g.TotalEdges, &g.BuildDurationMs,
				&g.StoreKey, &g.BackupPath, &g.Active, &g.CreatedAt, &g.UpdatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Delete removes a graph metadata row, refusing if it is active.
func (r *GraphMetadataRepository) Delete(ctx context.Context, id string) error {
	return r.db.withResilience(ctx, "graphs.delete", func() error {
		var active bool
		if err := r.db.QueryRowContext(ctx, `SELECT active FROM graphs WHERE id = $1`, id).Scan(&active); err != nil {
			return err
		}
		if active {
			return &domainerrors.ActiveRowExistsError{Entity: "graph", ID: id}
		}
		_, err := r.db.ExecContext(ctx, `DELETE FROM graphs WHERE id = $1`, id)
		return err
	})
}

// DeleteOld removes inactive graph metadata rows beyond keepCount most
// recent (spec §5 retention sweep).
func (r *GraphMetadataRepository) DeleteOld(ctx context.Context, keepCount int) (int64, error) {
	var affected int64
	err := r.db.withResilience(ctx, "graphs.delete_old", func() error {
		res, err := r.db.ExecContext(ctx, `
			DELETE FROM graphs
			WHERE active = false AND id NOT IN (
				SELECT id FROM graphs ORDER BY created_at DESC LIMIT $1
			)`, keepCount)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
