// Package consts holds program-wide constants.
package consts

const (
	ProgramName = "chansync"
	// DataDirName is the per-install directory under the user config dir.
	DataDirName = "chansync"
)

// Catalog files
const (
	CatalogFileName = "library.json"
	CatalogLockName = "library.json.lock"
)

// Cookie files (per source)
const (
	CookieDirName      = "cookies"
	CookieJSONFileName = "cookies.json"
	CookieTxtFileName  = "cookies.txt"
	CookieLockFileName = "cookies.lock"
)

// Output
const (
	AudioExt       = ".mp3"
	ScratchPattern = "chansync-"
	ScratchBase    = "temp_audio"
	StateDBName    = "chansync.db"
	LogFileName    = "chansync.log"
)

// Environment
const (
	EnvConfigJSON  = "RCLONE_CONFIG_JSON"
	EnvPort        = "PORT"
	EnvPrefix      = "CHANSYNC"
	DefaultPort    = "80"
	ExitCodeSignal = 130
)

// DefaultUserAgent is sent with single-field metadata lookups.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
