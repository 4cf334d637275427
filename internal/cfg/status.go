package cfg

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"chansync/internal/catalog"
	"chansync/internal/config"
	"chansync/internal/database"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/keys"
	"chansync/internal/domain/logger"
	"chansync/internal/history"
	"chansync/internal/models"
	"chansync/internal/storage"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// statusRow is one channel's line in the status table.
type statusRow struct {
	channel models.Channel
	known   int
	missing int
	oldest  *models.Date
	newest  *models.Date
	lastRun *history.Run
	err     error
}

// statusCmd prints catalog and run state for every configured channel.
func statusCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "status [config.json]",
		Short:   "Show catalog counts and the last run of every channel",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: bindLocal,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(args)
			if err != nil {
				return err
			}
			rows, err := collectStatus(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(rows))
			return nil
		},
	}
	return cmd, nil
}

// collectStatus reads each channel's catalog without creating missing ones.
func collectStatus(ctx context.Context, c *config.Config) ([]statusRow, error) {
	backend, err := storage.Open(c.Output, c.Rclone, viper.GetString(keys.RclonePath))
	if err != nil {
		return nil, err
	}
	lockPath, err := pathOr(keys.CatalogLock, consts.CatalogLockName)
	if err != nil {
		return nil, err
	}
	lock := catalog.NewLock(lockPath, consts.CatalogLockTimeout)

	var latest map[[2]string]history.Run
	if dbPath, err := pathOr(keys.StateDB, consts.StateDBName); err == nil {
		if db, err := database.Open(dbPath); err == nil {
			latest, err = history.NewStore(db.DB).Latest(ctx)
			if err != nil {
				logger.Pl.W("Could not read run history: %v", err)
			}
			db.Close()
		} else {
			logger.Pl.W("Could not open state database: %v", err)
		}
	}

	rows := make([]statusRow, 0, len(c.Channels))
	for _, ch := range c.Channels {
		row := statusRow{channel: ch}
		if run, ok := latest[[2]string{ch.Name, string(ch.Source)}]; ok {
			row.lastRun = &run
		}
		row.err = channelStatus(ctx, backend, lock, c.Output, &row)
		rows = append(rows, row)
	}
	return rows, nil
}

func channelStatus(ctx context.Context, backend storage.Backend, lock *catalog.Lock, root string, row *statusRow) error {
	path := catalog.PathFor(row.channel.OutputDir(root))
	exists, err := backend.Exists(ctx, path)
	if err != nil || !exists {
		return err
	}
	cat, err := catalog.Open(ctx, backend, path, lock)
	if err != nil {
		return err
	}
	known, err := cat.KnownVids(ctx, false)
	if err != nil {
		return err
	}
	missing, err := cat.FindMissingDownloads(ctx)
	if err != nil {
		return err
	}
	row.known, row.missing = len(known), len(missing)
	row.oldest, row.newest = cat.DateRange()
	return nil
}

func renderStatus(rows []statusRow) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Channel", "Source", "Known", "Missing", "Oldest", "Newest", "Last run", "Result"})

	for _, r := range rows {
		result := "ok"
		if r.err != nil {
			result = r.err.Error()
		}
		lastRun := "never"
		if r.lastRun != nil {
			lastRun = r.lastRun.FinishedAt.Local().Format(time.DateTime)
			if r.lastRun.Err != "" && r.err == nil {
				result = r.lastRun.Err
			}
		}
		tw.AppendRow(table.Row{
			r.channel.Name,
			r.channel.Source,
			strconv.Itoa(r.known),
			strconv.Itoa(r.missing),
			dateCell(r.oldest),
			dateCell(r.newest),
			lastRun,
			result,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

func dateCell(d *models.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
