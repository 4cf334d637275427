package cfg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"chansync/internal/app"
	"chansync/internal/blocking"
	"chansync/internal/catalog"
	"chansync/internal/command"
	"chansync/internal/cookies"
	"chansync/internal/database"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/keys"
	"chansync/internal/domain/logger"
	"chansync/internal/downloads"
	"chansync/internal/history"
	"chansync/internal/session"
	"chansync/internal/sources"
	"chansync/internal/storage"

	"github.com/spf13/viper"
)

// runtime is everything a sync command needs, built from flags.
type runtime struct {
	sess    *session.Session
	db      *database.Database
	blocker *blocking.Blocker
	history *history.Store
	deps    app.Deps
}

// newRuntime builds the session, tools and state stores for one command.
func newRuntime(ctx context.Context) (rt *runtime, err error) {
	var cm *cookies.Manager
	if !viper.GetBool(keys.NoCookies) {
		cookieRoot, err := pathOr(keys.CookieDir, consts.CookieDirName)
		if err != nil {
			return nil, err
		}
		cm = cookies.NewManager(cookieRoot, viper.GetDuration(keys.CookieRefresh), cookies.KookyHarvester{})
	}

	proxies, err := session.ReadProxies(viper.GetString(keys.ProxyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy file: %w", err)
	}
	if len(proxies) > 0 {
		logger.Pl.I("Loaded %d proxies", len(proxies))
	}

	sess := session.New(ctx, cm, proxies)
	defer func() {
		if err != nil {
			sess.Close()
		}
	}()

	ytdlp, err := command.NewRunner(viper.GetString(keys.YtDlpPath), sess.Interrupt)
	if err != nil {
		return nil, err
	}
	ffmpeg, err := command.NewRunner(viper.GetString(keys.FFmpegPath), sess.Interrupt)
	if err != nil {
		return nil, err
	}

	lockPath, err := pathOr(keys.CatalogLock, consts.CatalogLockName)
	if err != nil {
		return nil, err
	}
	dbPath, err := pathOr(keys.StateDB, consts.StateDBName)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	blocker := blocking.New(db.DB)
	if err := blocker.Load(ctx); err != nil {
		return nil, err
	}

	budget := viper.GetInt(keys.MaxDownloadFails)
	dlOpts := downloads.DefaultOptions
	if budget > 0 {
		dlOpts.ErrorBudget = budget
	}

	return &runtime{
		sess:    sess,
		db:      db,
		blocker: blocker,
		history: history.NewStore(db.DB),
		deps: app.Deps{
			Streamer: ytdlp,
			Stages: func(v sources.Variant, backend storage.Backend, cookiesTxt string) downloads.Stages {
				return downloads.NewToolStages(sess.Executor(ytdlp, v.Source), ffmpeg, backend, v, cookiesTxt)
			},
			Prober:              sources.NewCollyProber(),
			Cookies:             cm,
			Lock:                catalog.NewLock(lockPath, consts.CatalogLockTimeout),
			ConcurrentDownloads: viper.GetInt(keys.ConcurrentDLs),
			Downloads:           dlOpts,
		},
	}, nil
}

// Context is cancelled by a signal or a child process interrupt.
func (rt *runtime) Context() context.Context {
	return rt.sess.Context()
}

// Close releases the runtime's resources.
func (rt *runtime) Close() {
	rt.sess.Close()
	if err := rt.db.Close(); err != nil {
		logger.Pl.W("Could not close state database: %v", err)
	}
}

// result maps a command's error to the session's cause when it was interrupted.
func (rt *runtime) result(err error) error {
	if err == nil {
		return nil
	}
	if rt.sess.Interrupted() && !errors.Is(err, command.ErrInterrupted) {
		if cause := context.Cause(rt.sess.Context()); cause != nil {
			return fmt.Errorf("%w: %v", cause, err)
		}
	}
	return err
}

// localRoot returns root if it is a local path.
func localRoot(root string) (string, error) {
	backend, err := storage.Open(root, nil, "")
	if err != nil {
		return "", err
	}
	if _, ok := backend.(*storage.Local); !ok {
		return "", fmt.Errorf("%q is a remote destination, give a local directory", root)
	}
	return filepath.Clean(root), nil
}
