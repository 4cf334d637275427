package consts

// Scan and download thresholds
const (
	// ScanErrorCeiling is the number of malformed listing lines tolerated before a scan aborts.
	ScanErrorCeiling = 100
	// DownloadErrorBudget is the number of per-item failures tolerated in one batch.
	DownloadErrorBudget = 100
	// BacklogThreshold skips a remote scan once this many downloads are still pending.
	BacklogThreshold = 5
	// DefaultScanLimit caps listing depth for multi-channel passes.
	DefaultScanLimit = 1000
	// DefaultConcurrentDownloads is the batch download pool size.
	DefaultConcurrentDownloads = 4
	// ProxyFailureWindow is the number of recent direct attempts considered for proxy fallback.
	ProxyFailureWindow = 10
	// ProxyFailureThreshold failures inside the window engage the proxy executor.
	ProxyFailureThreshold = 3
	// MaxFilenameLength caps the sanitized name part.
	MaxFilenameLength = 255
)

// Interrupt exit codes reported by child processes.
const (
	// WindowsCtrlC is STATUS_CONTROL_C_EXIT.
	WindowsCtrlC = 3221225786
	// MaxPlainExitCode bounds exit codes treated as ordinary failures.
	MaxPlainExitCode = 1000
)
