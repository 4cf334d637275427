package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chansync/internal/command"
	"chansync/internal/models"
)

func TestInterruptSetsCause(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), nil, nil)
	defer s.Close()

	if s.Interrupted() {
		t.Fatalf("new session should not be interrupted")
	}
	s.Interrupt()
	s.Interrupt()

	if !s.Interrupted() {
		t.Fatalf("expected interrupted")
	}
	if !errors.Is(context.Cause(s.Context()), command.ErrInterrupted) {
		t.Fatalf("cause = %v, want ErrInterrupted", context.Cause(s.Context()))
	}
}

func TestExecutorIsPerSource(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), nil, []string{"http://p"})
	defer s.Close()

	r := &command.Runner{Bin: "/bin/true"}
	a := s.Executor(r, models.SourceYouTube)
	b := s.Executor(r, models.SourceYouTube)
	c := s.Executor(r, models.SourceRumble)
	if a != b {
		t.Fatalf("same source should share an executor")
	}
	if a == c {
		t.Fatalf("different sources should not share an executor")
	}
}

func TestReadProxies(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "proxies.txt")
	if err := os.WriteFile(path, []byte("# comment\nhttp://a:1\n\n  socks5://b:2  \r\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadProxies(path)
	if err != nil {
		t.Fatalf("ReadProxies: %v", err)
	}
	if len(got) != 2 || got[0] != "http://a:1" || got[1] != "socks5://b:2" {
		t.Fatalf("got %v", got)
	}
}
