package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/shared"
	"github.com/navaarsync/navaar/internal/store"
)

// trackCommand groups inspection and manual-recovery operations over
// the track table, the CLI-side equivalent of the bot's /failed,
// /retry, and /recent commands and the HTTP API's /tracks endpoints.
func trackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "track",
		Usage: "Inspect and recover sync tracks",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show a single track by id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{configFlag, &cli.BoolFlag{Name: "pretty", Value: true}},
				Action: r.TrackShow,
			},
			{
				Name:  "failed",
				Usage: "List failed tracks, optionally for one direction",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "direction", Usage: "Restrict to one direction"},
				},
				Action: r.TrackFailed,
			},
			{
				Name:  "retry",
				Usage: "Reset a failed track (or all failed tracks in a direction) for retry",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "direction", Usage: "Reset every failed track in this direction instead of a single id"},
				},
				Action: r.TrackRetry,
			},
			{
				Name:  "delete",
				Usage: "Delete a track record",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{configFlag},
				Action: r.TrackDelete,
			},
		},
	}
}

func (r *Runner) openTrackStore(configPath string) (*store.TrackStore, func(), error) {
	config := r.loadConfig(configPath)
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store.NewTrackStore(db), func() { db.Close() }, nil
}

func (r *Runner) TrackShow(ctx context.Context, cmd *cli.Command) error {
	id, err := parseTrackID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	tracks, closeDB, err := r.openTrackStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer closeDB()

	t, err := tracks.Get(id)
	if err != nil {
		return fmt.Errorf("%w: track %d", shared.ErrTrackNotFound, id)
	}
	return r.writeJSON(t, cmd.Bool("pretty"))
}

func (r *Runner) TrackFailed(ctx context.Context, cmd *cli.Command) error {
	direction := models.Direction(cmd.String("direction"))
	tracks, closeDB, err := r.openTrackStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer closeDB()

	failed, err := tracks.GetFailed(direction)
	if err != nil {
		return fmt.Errorf("failed to load failed tracks: %w", err)
	}
	if len(failed) == 0 {
		return r.writePlain("no failed tracks\n")
	}
	for _, t := range failed {
		reason := ""
		if t.FailureReason != nil {
			reason = *t.FailureReason
		}
		r.writePlain("#%d [%s] %s — %s\n", t.ID, t.Direction, t.Title, reason)
	}
	return nil
}

func (r *Runner) TrackRetry(ctx context.Context, cmd *cli.Command) error {
	tracks, closeDB, err := r.openTrackStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer closeDB()

	if direction := cmd.String("direction"); direction != "" {
		n, err := tracks.ResetAllFailed(models.Direction(direction))
		if err != nil {
			return fmt.Errorf("failed to reset %s: %w", direction, err)
		}
		return r.writePlain("reset %d track(s) for %s\n", n, direction)
	}

	id, err := parseTrackID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	t, err := tracks.ResetForRetry(id)
	if err != nil {
		return fmt.Errorf("failed to reset track %d: %w", id, err)
	}
	return r.writePlain("track %d reset to %s\n", t.ID, t.Status)
}

func (r *Runner) TrackDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := parseTrackID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	tracks, closeDB, err := r.openTrackStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer closeDB()

	if err := tracks.Delete(id); err != nil {
		return fmt.Errorf("failed to delete track %d: %w", id, err)
	}
	return r.writePlain("track %d deleted\n", id)
}

func parseTrackID(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: track id is required", shared.ErrMissingArgument)
	}
	var id int64
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
		return 0, fmt.Errorf("%w: invalid track id %q", shared.ErrInvalidArgument, raw)
	}
	return id, nil
}
