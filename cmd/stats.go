package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/shared"
	"github.com/navaarsync/navaar/internal/store"
)

// statsCommand prints the current track stats, the same numbers the
// HTTP /stats endpoint and the bot's /stats command expose.
func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print current sync stats",
		Flags: []cli.Flag{
			configFlag,
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
			&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config := r.loadConfig(cmd.String("config"))

			db, err := shared.NewDatabase(config.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			tracks := store.NewTrackStore(db)
			stateStore := store.NewStateStore(db)

			stats, err := tracks.GetStats()
			if err != nil {
				return fmt.Errorf("failed to load stats: %w", err)
			}

			if cmd.Bool("json") {
				return r.writeJSON(stats, cmd.Bool("pretty"))
			}

			r.writePlain("total: %d\nsynced: %d\nfailed: %d\nduplicate: %d\npending: %d\nsuccess rate: %.1f%%\n",
				stats.Total, stats.Synced, stats.Failed, stats.Duplicate, stats.Pending, stats.SuccessRate)

			for _, d := range models.Directions {
				if ts, ok, _ := stateStore.LastSync(d); ok {
					r.writePlain("last %s sync: %s\n", d, ts.Format("2006-01-02T15:04:05Z07:00"))
				}
			}
			return nil
		},
	}
}
