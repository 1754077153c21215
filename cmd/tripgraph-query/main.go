// Command tripgraph-query exercises the read-only route query engine (spec
// §4.H) from the command line, and exposes graph statistics reporting as a
// subcommand.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakha-transit/tripgraph/config"
	"github.com/sakha-transit/tripgraph/graphstore"
	"github.com/sakha-transit/tripgraph/logging"
	"github.com/sakha-transit/tripgraph/query"
	"github.com/sakha-transit/tripgraph/reference"
	"github.com/sakha-transit/tripgraph/repository"
)

var (
	configPath string
	fromCity   string
	toCity     string
	dateStr    string
	passengers int
)

func main() {
	root := &cobra.Command{
		Use:   "tripgraph-query",
		Short: "Query the transportation graph for a route between two cities",
		RunE:  runQuery,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults built in)")
	root.Flags().StringVar(&fromCity, "from", "", "origin city name (required)")
	root.Flags().StringVar(&toCity, "to", "", "destination city name (required)")
	root.Flags().StringVar(&dateStr, "date", "", "travel date, YYYY-MM-DD (defaults to today)")
	root.Flags().IntVar(&passengers, "passengers", 1, "passenger count, 1-100")
	_ = root.MarkFlagRequired("from")
	_ = root.MarkFlagRequired("to")

	root.AddCommand(statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	return config.Load(configPath)
}

func buildEngine(cfg *config.AppConfig, db *repository.DB, store *graphstore.Store, ref *reference.Store, log *logging.Logger) *query.Engine {
	realStops := repository.NewRealStopRepository(db)
	virtualStops := repository.NewVirtualStopRepository(db)
	flights := repository.NewFlightRepository(db)
	return query.New(realStops, virtualStops, flights, store, ref, cfg.Query, nil, log)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Format: cfg.Logging.Format, Component: "tripgraph-query"})

	db, err := repository.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("tripgraph-query: open database: %w", err)
	}
	defer db.Close()

	ref, err := reference.LoadOnce(cfg.Reference.UnifiedCitiesPath, cfg.Reference.AirportsPath, cfg.Reference.SuburbsPath)
	if err != nil {
		return fmt.Errorf("tripgraph-query: load reference data: %w", err)
	}

	store := graphstore.New(cfg.GraphKV)
	defer store.Close()

	date := time.Now()
	if dateStr != "" {
		date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return fmt.Errorf("tripgraph-query: invalid --date: %w", err)
		}
	}

	engine := buildEngine(cfg, db, store, ref, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Query.DefaultDeadline)
	defer cancel()

	resp := engine.Execute(ctx, query.Request{FromCity: fromCity, ToCity: toCity, Date: date, Passengers: passengers})

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("tripgraph-query: marshal response: %w", err)
	}
	fmt.Println(string(out))
	if !resp.Success {
		os.Exit(1)
	}
	return nil
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report live node/edge/density statistics for the active graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := graphstore.New(cfg.GraphKV)
			defer store.Close()

			stats, err := store.GetGraphStatistics(context.Background())
			if err != nil {
				return fmt.Errorf("tripgraph-query stats: %w", err)
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
