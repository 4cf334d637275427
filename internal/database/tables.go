package database

import (
	"database/sql"
	"fmt"

	"chansync/internal/domain/consts"
)

// initBlockedDomainsTable initializes the rate-limit block table.
func initBlockedDomainsTable(tx *sql.Tx) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        %s TEXT PRIMARY KEY,
        %s TIMESTAMP NOT NULL,
        %s TEXT
    );`,
		consts.DBBlockedDomains,
		consts.QBlockedDomain,
		consts.QBlockedAt,
		consts.QBlockedReason,
	)
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", consts.DBBlockedDomains, err)
	}
	return nil
}

// initSyncRunsTable initializes the per-channel run history table.
func initSyncRunsTable(tx *sql.Tx) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %[1]s (
        %[2]s TEXT PRIMARY KEY,
        %[3]s TEXT NOT NULL,
        %[4]s TEXT NOT NULL,
        %[5]s TIMESTAMP NOT NULL,
        %[6]s TIMESTAMP NOT NULL,
        %[7]s INTEGER DEFAULT 0,
        %[8]s INTEGER DEFAULT 0,
        %[9]s INTEGER DEFAULT 0,
        %[10]s TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_%[1]s_channel ON %[1]s(%[3]s, %[4]s);
    CREATE INDEX IF NOT EXISTS idx_%[1]s_started ON %[1]s(%[5]s);`,
		consts.DBSyncRuns,
		consts.QRunID,
		consts.QRunChannel,
		consts.QRunSource,
		consts.QRunStartedAt,
		consts.QRunFinishedAt,
		consts.QRunScanned,
		consts.QRunDownloaded,
		consts.QRunFailed,
		consts.QRunError,
	)
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", consts.DBSyncRuns, err)
	}
	return nil
}
