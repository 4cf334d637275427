package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
)

// Executor runs one tool invocation.
type Executor interface {
	Execute(ctx context.Context, args []string) (Result, error)
}

// ProxyExecutor runs through a rotating list of proxies.
type ProxyExecutor struct {
	inner   Executor
	proxies []string
	next    atomic.Uint64
}

// NewProxyExecutor returns an executor adding --proxy to every call. It is nil without proxies.
func NewProxyExecutor(inner Executor, proxies []string) *ProxyExecutor {
	if len(proxies) == 0 {
		return nil
	}
	return &ProxyExecutor{inner: inner, proxies: proxies}
}

// Execute implements Executor.
func (p *ProxyExecutor) Execute(ctx context.Context, args []string) (Result, error) {
	proxy := p.proxies[(p.next.Add(1)-1)%uint64(len(p.proxies))]
	withProxy := append([]string{"--proxy", proxy}, args...)
	return p.inner.Execute(ctx, withProxy)
}

// FallbackExecutor switches from direct execution to a proxy executor once
// direct attempts keep failing.
//
// Engagement is permanent for the executor's lifetime and runs onEngage once.
type FallbackExecutor struct {
	direct    Executor
	proxy     Executor
	onEngage  func(context.Context)
	window    int
	threshold int

	mu      sync.Mutex
	recent  []bool
	engaged bool
	once    sync.Once
}

// NewFallbackExecutor wires a direct executor with an optional proxy fallback.
func NewFallbackExecutor(direct Executor, proxy Executor, onEngage func(context.Context)) *FallbackExecutor {
	f := &FallbackExecutor{
		direct:    direct,
		onEngage:  onEngage,
		window:    consts.ProxyFailureWindow,
		threshold: consts.ProxyFailureThreshold,
	}
	// Avoid a typed-nil proxy.
	if pe, ok := proxy.(*ProxyExecutor); !ok || pe != nil {
		f.proxy = proxy
	}
	return f
}

// Engaged reports whether calls are going through the proxy.
func (f *FallbackExecutor) Engaged() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engaged
}

// Execute implements Executor.
func (f *FallbackExecutor) Execute(ctx context.Context, args []string) (Result, error) {
	if f.Engaged() {
		return f.proxy.Execute(ctx, args)
	}

	res, err := f.direct.Execute(ctx, args)
	if err == nil || !countsAsFailure(ctx, err) {
		f.record(true)
		return res, err
	}

	if !f.record(false) {
		return res, err
	}

	f.once.Do(func() {
		logger.Pl.W("Direct execution failed %d times in the last %d attempts, switching to proxies", f.threshold, f.window)
		if f.onEngage != nil {
			f.onEngage(ctx)
		}
	})
	return f.proxy.Execute(ctx, args)
}

// record stores an outcome and reports whether the proxy is now engaged.
func (f *FallbackExecutor) record(ok bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recent = append(f.recent, ok)
	if len(f.recent) > f.window {
		f.recent = f.recent[len(f.recent)-f.window:]
	}
	if f.engaged || f.proxy == nil {
		return f.engaged
	}

	failures := 0
	for _, r := range f.recent {
		if !r {
			failures++
		}
	}
	if failures >= f.threshold {
		f.engaged = true
	}
	return f.engaged
}

func countsAsFailure(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
