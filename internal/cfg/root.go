// Package cfg wires the command line to the program.
package cfg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chansync/internal/domain/consts"
	"chansync/internal/domain/keys"
	"chansync/internal/domain/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           consts.ProgramName,
	Short:         "chansync mirrors channel audio into a local or rclone destination",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.Pl.SetDebugLevel(viper.GetInt(keys.DebugLevel))
		return nil
	},
}

// Execute runs the command selected on the command line.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// InitCommands initializes all commands and their flags.
func InitCommands() error {
	viper.SetEnvPrefix(consts.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := initProgramFlags(rootCmd); err != nil {
		return err
	}

	for _, build := range []func() (*cobra.Command, error){
		syncOneCmd,
		syncMultipleCmd,
		serveCmd,
		statusCmd,
	} {
		cmd, err := build()
		if err != nil {
			return err
		}
		rootCmd.AddCommand(cmd)
	}
	return nil
}

// initProgramFlags sets the flags shared by every command.
func initProgramFlags(rootCmd *cobra.Command) error {
	pf := rootCmd.PersistentFlags()

	pf.Int(keys.DebugLevel, 0, "Debug level (0-5)")
	pf.String(keys.DataDir, "", "Directory for program state (default: user config dir)")
	pf.String(keys.CatalogLock, "", "Catalog lock file shared by every chansync process")
	pf.String(keys.StateDB, "", "State database path (blocked domains, run history)")
	pf.String(keys.YtDlpPath, "yt-dlp", "yt-dlp executable")
	pf.String(keys.FFmpegPath, "ffmpeg", "ffmpeg executable")
	pf.String(keys.RclonePath, "rclone", "rclone executable")
	pf.String(keys.CookieDir, "", "Directory for harvested cookie bundles")
	pf.Duration(keys.CookieRefresh, consts.CookieRefreshInterval, "Maximum age of a cookie bundle before it is harvested again")
	pf.Bool(keys.NoCookies, false, "Run yt-dlp without browser cookies")
	pf.String(keys.ProxyFile, "", "File of proxies (one per line) used after repeated direct failures")
	pf.Int(keys.ConcurrentDLs, consts.DefaultConcurrentDownloads, "Parallel downloads per channel")
	pf.Int(keys.MaxDownloadFails, consts.DownloadErrorBudget, "Failures tolerated per download batch")

	if err := viper.BindPFlags(pf); err != nil {
		return err
	}

	// PORT is honored unprefixed for container platforms.
	if err := viper.BindEnv(keys.Port, consts.EnvPrefix+"_PORT", consts.EnvPort); err != nil {
		return err
	}
	viper.SetDefault(keys.Port, consts.DefaultPort)
	return nil
}

// LogFilePath returns the log file location, honoring CHANSYNC_LOG_FILE.
//
// The logger is built before flags are parsed, so only the environment applies.
func LogFilePath() (string, error) {
	return pathOr(keys.LogFile, consts.LogFileName)
}

// dataDir returns the program state directory, creating it.
func dataDir() (string, error) {
	dir := viper.GetString(keys.DataDir)
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("no user config dir, set --%s: %w", keys.DataDir, err)
		}
		dir = filepath.Join(base, consts.DataDirName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data dir %q: %w", dir, err)
	}
	return dir, nil
}

// pathOr returns key's value or name under the data dir.
func pathOr(key, name string) (string, error) {
	if p := viper.GetString(key); p != "" {
		return p, nil
	}
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
