// Package command supervises the external tools the program drives.
package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"chansync/internal/domain/logger"
)

// waitDelay bounds how long Wait blocks on pipes held by grandchildren after a kill.
const waitDelay = 5 * time.Second

// Result is the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs one external executable.
type Runner struct {
	Bin string
	Env []string
	// OnInterrupt is called when a child exits with an interrupt status.
	OnInterrupt func()
}

// NewRunner returns a runner for bin, resolved on PATH when not a path.
func NewRunner(bin string, onInterrupt func()) (*Runner, error) {
	if !strings.ContainsRune(bin, filepath.Separator) {
		resolved, err := lookPath(bin)
		if err != nil {
			return nil, err
		}
		bin = resolved
	}
	return &Runner{Bin: bin, OnInterrupt: onInterrupt}, nil
}

func (r *Runner) name() string {
	return filepath.Base(r.Bin)
}

func (r *Runner) command(args []string) *exec.Cmd {
	cmd := exec.Command(r.Bin, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.WaitDelay = waitDelay
	return cmd
}

// Execute runs the command to completion, killing it when ctx is done.
func (r *Runner) Execute(ctx context.Context, args []string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, context.Cause(ctx)
	}

	cmd := r.command(args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Pl.D(2, "Executing command: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var err error
	select {
	case err = <-waitErr:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1}, context.Cause(ctx)
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: cmd.ProcessState.ExitCode()}
	return res, r.classify(cmd, args, err, res.Stdout+res.Stderr)
}

func (r *Runner) classify(cmd *exec.Cmd, args []string, err error, output string) error {
	if err == nil {
		return nil
	}
	if IsInterruptExit(cmd.ProcessState) {
		logger.Pl.W("%s was interrupted (exit code %d)", r.name(), cmd.ProcessState.ExitCode())
		if r.OnInterrupt != nil {
			r.OnInterrupt()
		}
		return ErrInterrupted
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Name: r.name(), Args: args, Code: exitErr.ExitCode(), Output: output}
	}
	return err
}

// LineFunc receives each output line and returns true to stop the command.
type LineFunc func(line string) (stop bool)

// Stream runs the command with stdout and stderr merged, feeding each line to onLine.
//
// The command is killed when onLine asks to stop or ctx is done. A command
// stopped through onLine reports stopped=true and a nil error.
func (r *Runner) Stream(ctx context.Context, args []string, onLine LineFunc) (stopped bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, context.Cause(ctx)
	}

	cmd := r.command(args)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	logger.Pl.D(2, "Executing command: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return false, err
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitErr <- err
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
		_, _ = io.Copy(io.Discard, pr)
	}()

	cancelled := false
	done := ctx.Done()
read:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break read
			}
			if stopped || cancelled {
				continue
			}
			if onLine(line) {
				stopped = true
				_ = cmd.Process.Kill()
			}
		case <-done:
			cancelled = true
			done = nil
			_ = cmd.Process.Kill()
		}
	}

	err = <-waitErr
	switch {
	case cancelled || ctx.Err() != nil:
		return stopped, context.Cause(ctx)
	case stopped:
		return true, nil
	}
	return false, r.classify(cmd, args, err, "")
}
