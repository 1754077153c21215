// Command tripgraph-pipeline runs the ingestion worker chain (spec §5:
// virtual-entities → air-route → graph-builder, strictly sequential) and
// exposes the retention sweep as a subcommand.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakha-transit/tripgraph/config"
	"github.com/sakha-transit/tripgraph/graphstore"
	"github.com/sakha-transit/tripgraph/logging"
	"github.com/sakha-transit/tripgraph/reference"
	"github.com/sakha-transit/tripgraph/repository"
	"github.com/sakha-transit/tripgraph/workers/airroute"
	"github.com/sakha-transit/tripgraph/workers/graphbuilder"
	"github.com/sakha-transit/tripgraph/workers/shared"
	"github.com/sakha-transit/tripgraph/workers/virtualentities"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "tripgraph-pipeline",
		Short: "Run the transportation graph ingestion pipeline",
		Long: `tripgraph-pipeline runs the worker chain that turns an ingested dataset
into an activated transportation graph: virtual-entities synthesizes stops
and routes for cities without a real one, air-route meshes the federal
cities to the Yakutsk hub, and graph-builder materializes and activates the
versioned graph.`,
		RunE: runPipeline,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults built in)")

	root.AddCommand(retentionCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	return config.Load(configPath)
}

func openDB(cfg *config.AppConfig) (*repository.DB, error) {
	return repository.Open(cfg.Database)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Format: cfg.Logging.Format, Component: "tripgraph-pipeline"})

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("tripgraph-pipeline: open database: %w", err)
	}
	defer db.Close()

	ref, err := reference.LoadOnce(cfg.Reference.UnifiedCitiesPath, cfg.Reference.AirportsPath, cfg.Reference.SuburbsPath)
	if err != nil {
		return fmt.Errorf("tripgraph-pipeline: load reference data: %w", err)
	}

	store := graphstore.New(cfg.GraphKV)
	defer store.Close()

	datasets := repository.NewDatasetRepository(db)
	realStops := repository.NewRealStopRepository(db)
	virtualStops := repository.NewVirtualStopRepository(db)
	routes := repository.NewRouteRepository(db)
	virtualRoutes := repository.NewVirtualRouteRepository(db)
	flights := repository.NewFlightRepository(db)
	graphs := repository.NewGraphMetadataRepository(db)

	chain := []shared.Worker{
		virtualentities.New(datasets, realStops, virtualStops, routes, virtualRoutes, flights, ref, cfg.Workers, log),
		airroute.New(datasets, realStops, routes, flights, ref, log),
		graphbuilder.New(datasets, graphs, realStops, virtualStops, routes, virtualRoutes, flights, store, ref, cfg.Workers, log),
	}

	ctx := context.Background()
	for _, w := range chain {
		canRun, reason, err := w.CanRun(ctx)
		if err != nil {
			return fmt.Errorf("tripgraph-pipeline: %s: precondition check: %w", w.ID(), err)
		}
		if !canRun {
			fmt.Printf("%s: skipped (%s)\n", w.ID(), reason)
			continue
		}
		outcome, err := w.Run(ctx)
		fmt.Println(outcome.String())
		if err != nil {
			return fmt.Errorf("tripgraph-pipeline: %s: %w", w.ID(), err)
		}
		if !outcome.Success {
			return fmt.Errorf("tripgraph-pipeline: %s failed: %s", w.ID(), outcome.Message)
		}
	}

	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending relational-store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Migrate()
		},
	}
}

var retentionKeep int

func retentionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Sweep inactive, orphaned datasets and graph metadata rows",
		Long:  "Deletes inactive dataset and graph metadata rows beyond the most recent --keep versions (spec §9 retention utilities).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			datasets := repository.NewDatasetRepository(db)
			graphs := repository.NewGraphMetadataRepository(db)

			deletedDatasets, err := datasets.DeleteOld(ctx, retentionKeep)
			if err != nil {
				return fmt.Errorf("tripgraph-pipeline retention: datasets: %w", err)
			}
			deletedGraphs, err := graphs.DeleteOld(ctx, retentionKeep)
			if err != nil {
				return fmt.Errorf("tripgraph-pipeline retention: graphs: %w", err)
			}

			fmt.Printf("retention: deleted %d dataset rows, %d graph metadata rows (kept %d most recent each)\n",
				deletedDatasets, deletedGraphs, retentionKeep)
			return nil
		},
	}
	cmd.Flags().IntVar(&retentionKeep, "keep", 3, "number of most recent rows to retain, active or not; older inactive rows are deleted")
	return cmd
}
