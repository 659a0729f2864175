package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mathcanvas/api/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run journal",
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one journaled run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd, func(repo *store.RunRepo) error {
			row, err := repo.FindByID(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(row)
		})
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Share of degraded replies over a window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		since, _ := cmd.Flags().GetDuration("since")
		return withRepo(cmd, func(repo *store.RunRepo) error {
			rate, err := repo.DegradedRate(cmd.Context(), time.Now().Add(-since))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "degraded rate over last %s: %.2f%%\n", since, rate*100)
			return nil
		})
	},
}

var runsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete journaled runs older than a cutoff",
	RunE: func(cmd *cobra.Command, _ []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		return withRepo(cmd, func(repo *store.RunRepo) error {
			n, err := repo.PurgeOlderThan(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d runs\n", n)
			return nil
		})
	},
}

func init() {
	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "window to aggregate")
	runsPurgeCmd.Flags().Duration("older-than", 30*24*time.Hour, "age cutoff")
	runsCmd.AddCommand(runsShowCmd, runsStatsCmd, runsPurgeCmd)
}

func withRepo(cmd *cobra.Command, fn func(*store.RunRepo) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	db, repo, err := openJournal(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("no database configured: set DATABASE_URL")
	}
	defer db.Close()
	return fn(repo)
}
