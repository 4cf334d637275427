// Package session holds the state shared by every operation of one program run.
package session

import (
	"context"
	"os"
	"strings"
	"sync"

	"chansync/internal/command"
	"chansync/internal/cookies"
	"chansync/internal/domain/logger"
	"chansync/internal/models"
)

// Session is the cancellation scope and shared collaborators of one run.
type Session struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	Cookies *cookies.Manager
	Proxies []string

	mu        sync.Mutex
	executors map[string]*command.FallbackExecutor
}

// New returns a session cancelled with parent or by Interrupt.
func New(parent context.Context, cm *cookies.Manager, proxies []string) *Session {
	ctx, cancel := context.WithCancelCause(parent)
	return &Session{
		ctx:       ctx,
		cancel:    cancel,
		Cookies:   cm,
		Proxies:   proxies,
		executors: make(map[string]*command.FallbackExecutor),
	}
}

// Context is done once the session is interrupted or its parent ends.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Interrupt sets the session cancellation flag. It is safe to call repeatedly.
func (s *Session) Interrupt() {
	if s.ctx.Err() == nil {
		logger.Pl.W("Interrupt received, stopping all work")
	}
	s.cancel(command.ErrInterrupted)
}

// Interrupted reports whether the flag is set.
func (s *Session) Interrupted() bool {
	return s.ctx.Err() != nil
}

// Close releases the session's context.
func (s *Session) Close() {
	s.cancel(context.Canceled)
}

// Executor returns the session's yt-dlp executor for src.
//
// Direct execution falls back to the proxy list after repeated failures,
// refreshing the source's cookies once on the switch.
func (s *Session) Executor(r *command.Runner, src models.Source) command.Executor {
	key := r.Bin + "|" + string(src)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ex, ok := s.executors[key]; ok {
		return ex
	}

	var proxy command.Executor
	if pe := command.NewProxyExecutor(r, s.Proxies); pe != nil {
		proxy = pe
	}
	ex := command.NewFallbackExecutor(r, proxy, func(ctx context.Context) {
		if s.Cookies == nil {
			return
		}
		if _, err := s.Cookies.Refresh(ctx, src); err != nil {
			logger.Pl.W("Could not refresh %s cookies after switching to proxies: %v", src, err)
		}
	})
	s.executors[key] = ex
	return ex
}

// ReadProxies loads one proxy URL per line, ignoring blanks and comments.
func ReadProxies(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
