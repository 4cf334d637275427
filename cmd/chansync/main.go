// Package main is the entrypoint of chansync.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chansync/internal/cfg"
	"chansync/internal/command"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/logging"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code.
func run() int {
	startTime := time.Now()

	if err := cfg.InitCommands(); err != nil {
		fmt.Fprintf(os.Stderr, "chansync exiting with error: %v\n", err)
		return 1
	}

	logPath, err := cfg.LogFilePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chansync exiting with error: %v\n", err)
		return 1
	}

	// Setup logging
	pl, err := logging.SetupLogging(logging.LoggingConfig{
		LogFilePath: logPath,
		MaxSizeMB:   1,
		MaxBackups:  3,
		Console:     os.Stdout,
		Program:     consts.ProgramName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "chansync exiting with error: %v\n", err)
		return 1
	}
	logger.Pl = pl
	defer pl.Close()

	// create cancellable context for shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer cancel()

	logger.Pl.D(1, "chansync (PID: %d) started at %s, logging to %s",
		os.Getpid(), startTime.Format("2006-01-02 15:04:05.00 MST"), logPath)

	runErr := cfg.Execute(ctx)
	interrupted := ctx.Err() != nil || errors.Is(runErr, command.ErrInterrupted)

	switch {
	case interrupted:
		logger.Pl.W("Interrupted after %v", time.Since(startTime).Round(time.Millisecond))
		return consts.ExitCodeSignal
	case runErr != nil:
		logger.Pl.E("Error: %v", runErr)
		return 1
	}
	logger.Pl.D(1, "chansync finished in %v", time.Since(startTime).Round(time.Millisecond))
	return 0
}
