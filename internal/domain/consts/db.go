package consts

// Database tables
const (
	DBBlockedDomains = "blocked_domains"
	DBSyncRuns       = "sync_runs"
)

// Blocked domain columns
const (
	QBlockedDomain = "domain"
	QBlockedAt     = "blocked_at"
	QBlockedReason = "reason"
)

// Sync run columns
const (
	QRunID         = "id"
	QRunChannel    = "channel_name"
	QRunSource     = "source"
	QRunStartedAt  = "started_at"
	QRunFinishedAt = "finished_at"
	QRunScanned    = "scanned"
	QRunDownloaded = "downloaded"
	QRunFailed     = "failed"
	QRunError      = "error"
)
