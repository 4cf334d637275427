package command

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"chansync/internal/domain/consts"
)

var (
	// ErrInterrupted reports a hard interrupt, from a signal or a child's exit code.
	ErrInterrupted = errors.New("interrupted")
	// ErrExecutableNotFound is returned when a tool is not on PATH.
	ErrExecutableNotFound = errors.New("executable not found")
)

// ExitError is a non-zero exit from an external tool.
type ExitError struct {
	Name   string
	Args   []string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 500 {
		out = out[len(out)-500:]
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Name, e.Code, out)
}

// IsInterruptExit reports whether a finished process was ended by an interrupt.
//
// That covers SIGINT termination, the Windows Ctrl+C status and exit codes
// too large to be ordinary failures.
func IsInterruptExit(ps *os.ProcessState) bool {
	if ps == nil {
		return false
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() && ws.Signal() == syscall.SIGINT {
		return true
	}
	return IsInterruptCode(int64(ps.ExitCode()))
}

// IsInterruptCode classifies a raw exit code.
func IsInterruptCode(code int64) bool {
	return code == consts.WindowsCtrlC || code > consts.MaxPlainExitCode
}

func lookPath(bin string) (string, error) {
	p, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, bin, err)
	}
	return p, nil
}
