// Package logger holds the program logger.
package logger

import "chansync/internal/logging"

// Pl holds the global *ProgramLogger variable.
var Pl = logging.Discard()
