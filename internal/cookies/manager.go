// Package cookies manages per-platform session credentials.
package cookies

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/models"
	"chansync/internal/sources"

	"github.com/gofrs/flock"
)

// ErrLockTimeout is returned when the per-source cookie lock cannot be acquired.
var ErrLockTimeout = errors.New("timed out acquiring cookie lock")

// Manager caches and refreshes credential bundles.
//
// At most one refresh per source runs at a time, in this process and across
// processes sharing the same root.
type Manager struct {
	root      string
	refresh   time.Duration
	harvester Harvester
	now       func() time.Time

	mu    sync.Mutex
	gates map[models.Source]chan struct{}
	cache map[models.Source]*Bundle
}

// NewManager stores bundles under root. A non-positive refresh uses the default interval.
func NewManager(root string, refresh time.Duration, h Harvester) *Manager {
	if refresh <= 0 {
		refresh = consts.CookieRefreshInterval
	}
	if h == nil {
		h = KookyHarvester{}
	}
	return &Manager{
		root:      root,
		refresh:   refresh,
		harvester: h,
		now:       time.Now,
		gates:     make(map[models.Source]chan struct{}),
		cache:     make(map[models.Source]*Bundle),
	}
}

// Paths returns the JSON, Netscape and lock file paths for a source.
func (m *Manager) Paths(src models.Source) (jsonPath, txtPath, lockPath string) {
	dir := filepath.Join(m.root, string(src))
	return filepath.Join(dir, consts.CookieJSONFileName),
		filepath.Join(dir, consts.CookieTxtFileName),
		filepath.Join(dir, consts.CookieLockFileName)
}

// Get returns a fresh bundle for src, using the manager's cache.
func (m *Manager) Get(ctx context.Context, src models.Source) (*Bundle, error) {
	m.mu.Lock()
	cached := m.cache[src]
	m.mu.Unlock()
	return m.GetOrRefresh(ctx, src, cached)
}

// GetOrRefresh returns cached when still fresh, else the on-disk bundle when
// fresh, else a newly harvested one. Harvest failures are returned as is.
func (m *Manager) GetOrRefresh(ctx context.Context, src models.Source, cached *Bundle) (*Bundle, error) {
	return m.load(ctx, src, cached, false)
}

// Refresh harvests a new bundle regardless of age.
func (m *Manager) Refresh(ctx context.Context, src models.Source) (*Bundle, error) {
	return m.load(ctx, src, nil, true)
}

func (m *Manager) load(ctx context.Context, src models.Source, cached *Bundle, force bool) (*Bundle, error) {
	v, err := sources.Lookup(src)
	if err != nil {
		return nil, err
	}

	releaseGate, err := m.gate(ctx, src)
	if err != nil {
		return nil, err
	}
	defer releaseGate()

	now := m.now()
	if !force && cached.Fresh(now, m.refresh) {
		return cached, nil
	}

	jsonPath, txtPath, lockPath := m.Paths(src)
	releaseLock, err := lockFile(ctx, lockPath)
	if err != nil {
		return nil, err
	}
	defer releaseLock()

	if !force {
		onDisk, err := readBundle(jsonPath)
		switch {
		case err == nil && onDisk.Fresh(now, m.refresh):
			onDisk.TxtPath = txtPath
			if _, statErr := os.Stat(txtPath); statErr != nil {
				if err := writeTxt(onDisk, txtPath, v.Domain()); err != nil {
					return nil, err
				}
			}
			logger.Pl.D(1, "Reusing %s cookies from %s", src, jsonPath)
			m.store(src, onDisk)
			return onDisk, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			logger.Pl.W("Ignoring unreadable cookie bundle %s: %v", jsonPath, err)
		}
	}

	logger.Pl.I("Refreshing %s cookies from %s", src, v.Homepage)
	httpCookies, err := m.harvester.Harvest(ctx, v.Homepage)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh %s cookies: %w", src, err)
	}

	b := FromHTTP(src, httpCookies, m.now())
	b.TxtPath = txtPath
	if err := writeBundle(b, jsonPath); err != nil {
		return nil, err
	}
	if err := writeTxt(b, txtPath, v.Domain()); err != nil {
		return nil, err
	}
	m.store(src, b)
	return b, nil
}

func (m *Manager) store(src models.Source, b *Bundle) {
	m.mu.Lock()
	m.cache[src] = b
	m.mu.Unlock()
}

// gate serializes refreshes of one source within the process.
func (m *Manager) gate(ctx context.Context, src models.Source) (func(), error) {
	m.mu.Lock()
	g, ok := m.gates[src]
	if !ok {
		g = make(chan struct{}, 1)
		m.gates[src] = g
	}
	m.mu.Unlock()

	select {
	case g <- struct{}{}:
		return func() { <-g }, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func lockFile(ctx context.Context, path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cookie dir: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, consts.CookieLockTimeout)
	defer cancel()

	fl := flock.New(path)
	locked, err := fl.TryLockContext(waitCtx, consts.LockRetryInterval)
	if err != nil || !locked {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
	}
	return func() { _ = fl.Unlock() }, nil
}

func readBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("invalid cookie bundle: %w", err)
	}
	return &b, nil
}

func writeBundle(b *Bundle, path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data, 0o600)
}

func writeTxt(b *Bundle, path, domain string) error {
	var buf bytes.Buffer
	if err := b.WriteNetscape(&buf, domain); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes(), 0o600)
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
