// Package catalog persists the per-channel record of known remote items.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/models"
	"chansync/internal/sources"
	"chansync/internal/storage"
)

var (
	// ErrDecode is returned for a malformed catalog document.
	ErrDecode = errors.New("malformed catalog document")
	// ErrIdentityMismatch is returned when a document belongs to another channel.
	ErrIdentityMismatch = errors.New("catalog identity mismatch")
	// ErrFileExists is returned by Save and Create when the document exists.
	ErrFileExists = errors.New("catalog already exists")
)

// Identity names the channel a catalog belongs to.
type Identity struct {
	ChannelName string
	ChannelURL  string
	Source      models.Source
}

// Catalog is the persisted record of one channel.
type Catalog struct {
	backend storage.Backend
	path    string
	dir     string
	lock    *Lock

	mu   sync.RWMutex
	data models.LibraryData
}

// New returns a catalog for the document at path and loads it.
func New(ctx context.Context, backend storage.Backend, path string, id Identity, lock *Lock) (*Catalog, error) {
	if err := models.ValidateURL(id.ChannelURL); err != nil {
		return nil, fmt.Errorf("channel %q: %w", id.ChannelName, err)
	}

	c := &Catalog{
		backend: backend,
		path:    path,
		dir:     storage.Dir(path),
		lock:    lock,
		data:    emptyData(id),
	}
	if _, err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Create makes a new catalog, refusing a path that already holds a document.
func Create(ctx context.Context, backend storage.Backend, path string, id Identity, lock *Lock) (*Catalog, error) {
	exists, err := backend.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, path)
	}
	return New(ctx, backend, path, id, lock)
}

// Open reads the catalog identity from an existing document.
//
// A YouTube document holding a bare handle instead of a channel URL is
// repaired in place.
func Open(ctx context.Context, backend storage.Backend, path string, lock *Lock) (*Catalog, error) {
	release, err := lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := backend.ReadFile(ctx, path)
	release()
	if err != nil {
		return nil, err
	}

	lib, err := decode(raw)
	if err != nil {
		return nil, err
	}

	id := Identity{ChannelName: lib.ChannelName, ChannelURL: lib.ChannelURL, Source: lib.Source}
	if !strings.Contains(id.ChannelURL, "http") {
		logger.Pl.E("Invalid channel URL %q in %s", id.ChannelURL, path)
		if id.Source != models.SourceYouTube {
			return nil, fmt.Errorf("channel %q: %w: %q", id.ChannelName, models.ErrInvalidURL, id.ChannelURL)
		}
		v := sources.MustLookup(models.SourceYouTube)
		fixed, err := v.ChannelURL(ctx, nil, id.ChannelURL)
		if err != nil {
			return nil, err
		}
		logger.Pl.W("Recovered channel URL %q from handle %q", fixed, id.ChannelURL)
		id.ChannelURL = fixed
	}

	return New(ctx, backend, path, id, lock)
}

// GetOrCreate opens the document at path, or creates it when absent.
//
// A malformed document is reported rather than replaced.
func GetOrCreate(ctx context.Context, backend storage.Backend, path string, id Identity, lock *Lock) (*Catalog, error) {
	exists, err := backend.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return Create(ctx, backend, path, id, lock)
	}

	c, err := Open(ctx, backend, path, lock)
	if err != nil {
		return nil, fmt.Errorf("error loading catalog %s: %w", path, err)
	}
	logger.Pl.I("Loaded catalog %q with channel URL %s", c.ChannelName(), c.ChannelURL())
	return c, nil
}

// PathFor returns the catalog document path for a channel output directory.
func PathFor(dir string) string {
	return storage.Join(dir, consts.CatalogFileName)
}

func emptyData(id Identity) models.LibraryData {
	return models.LibraryData{
		ChannelName: id.ChannelName,
		ChannelURL:  id.ChannelURL,
		Source:      id.Source,
		Vids:        []models.Entry{},
	}
}

// ChannelName returns the catalog's channel name.
func (c *Catalog) ChannelName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.ChannelName
}

// ChannelURL returns the canonical channel listing URL.
func (c *Catalog) ChannelURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.ChannelURL
}

// Source returns the catalog's platform.
func (c *Catalog) Source() models.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Source
}

// Path returns the document path.
func (c *Catalog) Path() string {
	return c.path
}

// Dir returns the directory holding the document and the media files.
func (c *Catalog) Dir() string {
	return c.dir
}

// Backend returns the storage the catalog lives in.
func (c *Catalog) Backend() storage.Backend {
	return c.backend
}

// Load re-reads the document. An absent document loads as empty.
func (c *Catalog) Load(ctx context.Context) ([]models.Entry, error) {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	return c.snapshot(), nil
}

// loadLocked must run with the catalog lock held.
func (c *Catalog) loadLocked(ctx context.Context) error {
	raw, err := c.backend.ReadFile(ctx, c.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			empty := emptyData(c.identity())
			c.mu.Lock()
			c.data = empty
			c.mu.Unlock()
			return nil
		}
		return err
	}

	lib, err := decode(raw)
	if err != nil {
		logger.Pl.E("Error loading catalog %s: %v", c.path, err)
		return fmt.Errorf("%s: %w", c.path, err)
	}

	id := c.identity()
	if lib.ChannelName != id.ChannelName || lib.Source != id.Source {
		return fmt.Errorf("%w: %s holds %q/%s, expected %q/%s",
			ErrIdentityMismatch, c.path, lib.ChannelName, lib.Source, id.ChannelName, id.Source)
	}

	resave := false
	if lib.ChannelURL != id.ChannelURL {
		logger.Pl.W("Channel URL mismatch: %s != %s", id.ChannelURL, lib.ChannelURL)
		if strings.HasPrefix(lib.ChannelURL, "http") || !strings.HasPrefix(id.ChannelURL, "http") {
			return fmt.Errorf("%w: %s has channel URL %q, expected %q",
				ErrIdentityMismatch, c.path, lib.ChannelURL, id.ChannelURL)
		}
		logger.Pl.W("Catalog %s had legacy channel URL, fixing", c.path)
		lib.ChannelURL = id.ChannelURL
		resave = true
	}

	c.mu.Lock()
	c.data = lib
	c.mu.Unlock()

	if resave {
		return c.saveLocked(ctx, true)
	}
	return nil
}

func (c *Catalog) identity() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Identity{ChannelName: c.data.ChannelName, ChannelURL: c.data.ChannelURL, Source: c.data.Source}
}

func (c *Catalog) snapshot() []models.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Entry(nil), c.data.Vids...)
}

// Save writes the document. Without overwrite an existing document is left untouched.
func (c *Catalog) Save(ctx context.Context, overwrite bool) error {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return c.saveLocked(ctx, overwrite)
}

// saveLocked must run with the catalog lock held.
func (c *Catalog) saveLocked(ctx context.Context, overwrite bool) error {
	c.mu.RLock()
	text, err := encode(c.data)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode catalog %s: %w", c.path, err)
	}

	if !overwrite {
		exists, err := c.backend.Exists(ctx, c.path)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrFileExists, c.path)
		}
	}
	if err := c.backend.WriteFile(ctx, c.path, text); err != nil {
		return fmt.Errorf("failed to save catalog %s: %w", c.path, err)
	}
	return nil
}

// Merge reloads the document and upserts entries by URL, persisting when asked.
//
// The reload, merge and save run under a single lock acquisition.
func (c *Catalog) Merge(ctx context.Context, entries []models.Entry, persist bool) error {
	logger.Pl.D(1, "Merging %d entries into catalog for %s", len(entries), c.ChannelName())

	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := c.loadLocked(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.data.Vids = mergeEntries(c.data.Vids, entries)
	c.mu.Unlock()

	if persist {
		return c.saveLocked(ctx, true)
	}
	return nil
}

// MarkError sets the sticky error flag on an entry and persists it.
func (c *Catalog) MarkError(ctx context.Context, e models.Entry) error {
	e.Error = true
	return c.Merge(ctx, []models.Entry{e}, true)
}

// KnownVids returns all entries, optionally re-reading the document first.
func (c *Catalog) KnownVids(ctx context.Context, reload bool) ([]models.Entry, error) {
	if reload {
		return c.Load(ctx)
	}
	return c.snapshot(), nil
}

// FindMissingDownloads lists the catalog directory and returns the entries with no file in it.
func (c *Catalog) FindMissingDownloads(ctx context.Context) ([]models.Entry, error) {
	files, err := c.backend.Ls(ctx, c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}
	return FindMissing(c.snapshot(), files), nil
}

// AlreadyDownloaded returns the entries whose file is present.
func (c *Catalog) AlreadyDownloaded(ctx context.Context) ([]models.Entry, error) {
	files, err := c.backend.Ls(ctx, c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f] = struct{}{}
	}

	var out []models.Entry
	for _, e := range c.snapshot() {
		if _, ok := present[e.FilePath]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// DateRange returns the oldest and newest known upload dates, or nils when none are known.
func (c *Catalog) DateRange() (oldest, newest *models.Date) {
	for _, e := range c.snapshot() {
		if e.UploadDate == nil {
			continue
		}
		if oldest == nil || e.UploadDate.Before(*oldest) {
			d := *e.UploadDate
			oldest = &d
		}
		if newest == nil || newest.Before(*e.UploadDate) {
			d := *e.UploadDate
			newest = &d
		}
	}
	return oldest, newest
}

// String implements fmt.Stringer.
func (c *Catalog) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s (%s, %d entries)", c.data.ChannelName, c.data.Source, len(c.data.Vids))
}
