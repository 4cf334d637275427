// Package keys holds the viper keys used by the program.
package keys

// Program
const (
	DebugLevel    = "debug"
	LogFile       = "log-file"
	DataDir       = "data-dir"
	CatalogLock   = "catalog-lock"
	StateDB       = "state-db"
	YtDlpPath     = "ytdlp-path"
	FFmpegPath    = "ffmpeg-path"
	RclonePath    = "rclone-path"
	CookieDir     = "cookie-dir"
	CookieRefresh = "cookie-refresh"
	NoCookies     = "no-cookies"
	ProxyFile     = "proxy-file"
	Port          = "port"
)

// Sync commands
const (
	ChannelName      = "channel-name"
	ChannelID        = "channel-id"
	Source           = "source"
	Output           = "output"
	LimitScan        = "limit-scan"
	DownloadLimit    = "download-limit"
	SkipScan         = "skip-scan"
	SkipDownload     = "skip-download"
	DryRun           = "dry-run"
	Once             = "once"
	Sleep            = "sleep"
	Stagger          = "stagger"
	StopOnDuplicate  = "stop-on-duplicate"
	ConcurrentDLs    = "concurrent-downloads"
	MaxDownloadFails = "max-download-errors"
)
