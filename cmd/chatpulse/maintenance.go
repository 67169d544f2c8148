package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgard/chatpulse/internal/bot/tasks"
	"github.com/edgard/chatpulse/internal/database"
)

var deadLetterLimit int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// NewDB migrates before returning.
		db, _, err := openStore(cfg, slog.Default())
		if err != nil {
			return err
		}
		database.CloseDB(db)
		fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", cfg.Database.Path)
		return nil
	},
}

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Fold new message events into the all-time totals once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := slog.Default()
		db, store, err := openStore(cfg, log)
		if err != nil {
			return err
		}
		defer database.CloseDB(db)

		return tasks.NewTotalsRollupTask(tasks.TaskDeps{Logger: log, Store: store, Config: cfg})(cmd.Context())
	},
}

var deadLettersCmd = &cobra.Command{
	Use:   "deadletters",
	Short: "List the most recent dropped ingestion steps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, store, err := openStore(cfg, slog.Default())
		if err != nil {
			return err
		}
		defer database.CloseDB(db)

		failures, err := store.RecentIngestFailures(cmd.Context(), deadLetterLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSTAGE\tCHAT\tUSER\tMESSAGE\tERROR")
		for _, f := range failures {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
				time.Unix(f.CreatedAt, 0).UTC().Format(time.RFC3339), f.Stage, f.ChatID, f.UserID, f.MessageID, f.Error)
		}
		return w.Flush()
	},
}

func init() {
	deadLettersCmd.Flags().IntVarP(&deadLetterLimit, "limit", "n", 20, "Number of entries to show.")
}
