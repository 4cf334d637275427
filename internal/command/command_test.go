package command

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func shRunner(t *testing.T) *Runner {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return &Runner{Bin: sh}
}

func TestIsInterruptCode(t *testing.T) {
	t.Parallel()

	tests := map[int64]bool{
		0:          false,
		1:          false,
		2:          false,
		1000:       false,
		1001:       true,
		3221225786: true,
	}
	for code, want := range tests {
		if got := IsInterruptCode(code); got != want {
			t.Fatalf("IsInterruptCode(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestExecuteCapturesOutput(t *testing.T) {
	t.Parallel()

	r := shRunner(t)
	res, err := r.Execute(context.Background(), []string{"-c", "echo out; echo err 1>&2"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "out" || strings.TrimSpace(res.Stderr) != "err" {
		t.Fatalf("unexpected output %+v", res)
	}
}

func TestExecuteExitError(t *testing.T) {
	t.Parallel()

	r := shRunner(t)
	_, err := r.Execute(context.Background(), []string{"-c", "echo nope; exit 3"})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 3 {
		t.Fatalf("expected ExitError code 3, got %v", err)
	}
}

func TestExecuteSIGINTExitIsInterrupt(t *testing.T) {
	t.Parallel()

	var fired atomic.Bool
	r := shRunner(t)
	r.OnInterrupt = func() { fired.Store(true) }

	_, err := r.Execute(context.Background(), []string{"-c", "kill -INT $$"})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if !fired.Load() {
		t.Fatalf("OnInterrupt not called")
	}
}

func TestExecuteCancellationIsPrompt(t *testing.T) {
	t.Parallel()

	r := shRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Execute(ctx, []string{"-c", "sleep 30"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("cancellation took %v", elapsed)
	}
}

func TestStreamStopsOnRequest(t *testing.T) {
	t.Parallel()

	r := shRunner(t)
	var got []string
	stopped, err := r.Stream(context.Background(), []string{"-c", "echo a; echo b; echo c; sleep 30"}, func(line string) bool {
		got = append(got, line)
		return line == "b"
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !stopped {
		t.Fatalf("expected stopped")
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got lines %v", got)
	}
}

func TestStreamMergesStderr(t *testing.T) {
	t.Parallel()

	r := shRunner(t)
	var got []string
	_, err := r.Stream(context.Background(), []string{"-c", "echo out; echo err 1>&2"}, func(line string) bool {
		got = append(got, line)
		return false
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both streams, got %v", got)
	}
}

func TestStreamCancellation(t *testing.T) {
	t.Parallel()

	r := shRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Stream(ctx, []string{"-c", "sleep 30"}, func(string) bool { return false })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type scriptedExecutor struct {
	calls atomic.Int32
	fail  bool
}

func (s *scriptedExecutor) Execute(_ context.Context, args []string) (Result, error) {
	s.calls.Add(1)
	if s.fail {
		return Result{}, &ExitError{Name: "fake", Code: 1}
	}
	return Result{Stdout: strings.Join(args, " ")}, nil
}

func TestFallbackEngagesAfterThreshold(t *testing.T) {
	t.Parallel()

	direct := &scriptedExecutor{fail: true}
	proxied := &scriptedExecutor{}
	var engaged atomic.Int32

	f := NewFallbackExecutor(direct, proxied, func(context.Context) { engaged.Add(1) })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.Execute(ctx, []string{"x"}); err == nil {
			t.Fatalf("attempt %d should fail before the threshold", i)
		}
	}
	if f.Engaged() {
		t.Fatalf("engaged too early")
	}

	if _, err := f.Execute(ctx, []string{"x"}); err != nil {
		t.Fatalf("third failure should fall through to the proxy, got %v", err)
	}
	if !f.Engaged() {
		t.Fatalf("expected proxy engaged")
	}

	for i := 0; i < 3; i++ {
		if _, err := f.Execute(ctx, []string{"x"}); err != nil {
			t.Fatalf("proxied call: %v", err)
		}
	}
	if direct.calls.Load() != 3 {
		t.Fatalf("direct should not be called once engaged, got %d calls", direct.calls.Load())
	}
	if engaged.Load() != 1 {
		t.Fatalf("onEngage should run once, ran %d times", engaged.Load())
	}
}

func TestFallbackWithoutProxyNeverEngages(t *testing.T) {
	t.Parallel()

	direct := &scriptedExecutor{fail: true}
	f := NewFallbackExecutor(direct, NewProxyExecutor(direct, nil), nil)
	for i := 0; i < 5; i++ {
		_, _ = f.Execute(context.Background(), nil)
	}
	if f.Engaged() {
		t.Fatalf("should not engage without proxies")
	}
}

func TestProxyExecutorRotates(t *testing.T) {
	t.Parallel()

	inner := &scriptedExecutor{}
	p := NewProxyExecutor(inner, []string{"http://p1", "http://p2"})

	r1, _ := p.Execute(context.Background(), []string{"url"})
	r2, _ := p.Execute(context.Background(), []string{"url"})
	r3, _ := p.Execute(context.Background(), []string{"url"})
	if r1.Stdout != "--proxy http://p1 url" || r2.Stdout != "--proxy http://p2 url" || r3.Stdout != r1.Stdout {
		t.Fatalf("unexpected rotation: %q %q %q", r1.Stdout, r2.Stdout, r3.Stdout)
	}
}

func TestListArgs(t *testing.T) {
	t.Parallel()

	args := ListArgs("https://rumble.com/c/x", 10, "/tmp/c.txt", []string{"--impersonate", "chrome-120"})
	joined := strings.Join(args, " ")
	for _, want := range []string{"--flat-playlist", "--get-url", "--get-title", "--cookies /tmp/c.txt", "--impersonate chrome-120", "--playlist-end 10"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "https://rumble.com/c/x" {
		t.Fatalf("channel URL should be last, got %v", args)
	}
	if strings.Contains(strings.Join(ListArgs("u", 0, "", nil), " "), "--playlist-end") {
		t.Fatalf("no limit should mean a full scan")
	}
}
