package cfg

import (
	"errors"
	"fmt"

	"chansync/internal/app"
	"chansync/internal/config"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/keys"
	"chansync/internal/domain/logger"
	"chansync/internal/downloads"
	"chansync/internal/models"
	"chansync/internal/sources"
	"chansync/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// bindLocal binds the running command's own flags.
//
// Commands share flag names, so binding happens only for the one selected.
func bindLocal(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// syncOneCmd mirrors a single channel.
func syncOneCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "sync-one",
		Short:   "Scan and download one channel",
		Args:    cobra.NoArgs,
		PreRunE: bindLocal,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := models.ParseSource(viper.GetString(keys.Source))
			if err != nil {
				return err
			}
			v, err := sources.Lookup(src)
			if err != nil {
				return err
			}
			ch := models.Channel{
				Name:      viper.GetString(keys.ChannelName),
				Source:    src,
				ChannelID: v.NormalizeID(viper.GetString(keys.ChannelID)),
			}
			if ch.Name == "" || ch.ChannelID == "" {
				return fmt.Errorf("--%s and --%s are required", keys.ChannelName, keys.ChannelID)
			}
			output := viper.GetString(keys.Output)

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := rt.Context()

			backend, err := storage.Open(output, nil, viper.GetString(keys.RclonePath))
			if err != nil {
				return err
			}
			syncer, err := app.NewSyncer(ctx, rt.deps, backend, ch, output)
			if err != nil {
				return rt.result(err)
			}

			if !viper.GetBool(keys.SkipScan) {
				if _, err := syncer.ScanForVids(ctx, viper.GetInt(keys.LimitScan), false); err != nil {
					return rt.result(err)
				}
			}
			if !viper.GetBool(keys.SkipDownload) {
				sum, err := syncer.Download(ctx, viper.GetInt(keys.DownloadLimit))
				logger.Pl.I("%s: %d downloaded, %d failed, %d skipped", ch.Name, sum.Succeeded, sum.Failed, sum.Skipped)
				if errors.Is(err, downloads.ErrBudgetExhausted) {
					logger.Pl.W("%s: %v", ch.Name, err)
					err = nil
				}
				return rt.result(err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String(keys.ChannelName, "", "Channel name (output folder)")
	f.String(keys.ChannelID, "", "Platform channel id")
	f.String(keys.Source, string(models.SourceYouTube), "Platform: youtube, rumble or brighteon")
	f.String(keys.Output, "", "Output root, a local directory or rclone remote:path")
	f.Int(keys.LimitScan, 0, "Only list this many of the newest items (0 lists all)")
	f.Int(keys.DownloadLimit, 0, "Download at most this many items (0 downloads all)")
	f.Bool(keys.SkipScan, false, "Skip listing the channel")
	f.Bool(keys.SkipDownload, false, "Skip downloading")
	if err := cmd.MarkFlagRequired(keys.Output); err != nil {
		return nil, err
	}
	return cmd, nil
}

// syncMultipleCmd mirrors every channel of a config document.
func syncMultipleCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "sync-multiple [config.json]",
		Short: "Sync every channel of a config document",
		Long: "Sync every channel of a config document, repeating after a sleep.\n\n" +
			"Without a path the document is read from " + consts.EnvConfigJSON + ".",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: bindLocal,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(args)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			err = app.RunMultiple(rt.Context(), c, viper.GetString(keys.RclonePath), rt.deps, app.Options{
				ScanLimit:       consts.DefaultScanLimit,
				DownloadLimit:   viper.GetInt(keys.DownloadLimit),
				StopOnDuplicate: viper.GetBool(keys.StopOnDuplicate),
				DryRun:          viper.GetBool(keys.DryRun),
				Once:            viper.GetBool(keys.Once),
				Sleep:           viper.GetDuration(keys.Sleep),
				StaggerSecs:     viper.GetInt(keys.Stagger),
				Blocker:         rt.blocker,
				History:         rt.history,
			})
			return rt.result(err)
		},
	}

	f := cmd.Flags()
	f.Int(keys.DownloadLimit, 0, "Download at most this many items per channel (0 downloads all)")
	f.Bool(keys.DryRun, false, "Log the plan for each channel without syncing")
	f.Bool(keys.Once, false, "Run a single pass")
	f.Duration(keys.Sleep, consts.DefaultSyncSleep, "Pause between passes")
	f.Int(keys.Stagger, 0, "Random pause of up to this many seconds between channels")
	f.Bool(keys.StopOnDuplicate, false, "Stop a listing at the first already-known item")
	return cmd, nil
}

// loadConfig reads the document at args[0], or from the environment.
func loadConfig(args []string) (*config.Config, error) {
	var path string
	if len(args) > 0 {
		path = args[0]
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Pl.D(1, "Loaded %d channels writing to %s", len(c.Channels), c.Output)
	return c, nil
}
