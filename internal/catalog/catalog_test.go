package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"chansync/internal/models"
	"chansync/internal/storage"

	"github.com/spf13/afero"
)

const testDoc = "/out/chan/youtube/library.json"

func testLock(t *testing.T) *Lock {
	t.Helper()
	return NewLock(filepath.Join(t.TempDir(), "library.json.lock"), 2*time.Second)
}

func testIdentity() Identity {
	return Identity{
		ChannelName: "chan",
		ChannelURL:  "https://www.youtube.com/@chan/videos",
		Source:      models.SourceYouTube,
	}
}

func mustEntry(t *testing.T, url, title string, upload *models.Date) models.Entry {
	t.Helper()
	e, err := models.NewEntry(url, title, upload)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	return e
}

func date(y int, m time.Month, d int) *models.Date {
	v := models.NewDate(y, m, d)
	return &v
}

func newTestCatalog(t *testing.T) (*Catalog, *storage.Local) {
	t.Helper()
	backend := storage.NewLocalFs(afero.NewMemMapFs())
	c, err := New(context.Background(), backend, testDoc, testIdentity(), testLock(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, backend
}

func TestLoadMissingDocumentIsEmpty(t *testing.T) {
	t.Parallel()

	c, _ := newTestCatalog(t)
	vids, err := c.KnownVids(context.Background(), true)
	if err != nil {
		t.Fatalf("KnownVids: %v", err)
	}
	if len(vids) != 0 {
		t.Fatalf("expected empty catalog, got %d entries", len(vids))
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, backend := newTestCatalog(t)

	in := []models.Entry{
		mustEntry(t, "https://www.youtube.com/watch?v=a", "First", date(2023, 1, 2)),
		mustEntry(t, "https://www.youtube.com/watch?v=b", "Second", nil),
	}
	if err := c.Merge(ctx, in, true); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	reopened, err := New(ctx, backend, testDoc, testIdentity(), testLock(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, _ := reopened.KnownVids(ctx, false)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	for i := range in {
		if got[i].URL != in[i].URL || got[i].Title != in[i].Title || got[i].FilePath != in[i].FilePath {
			t.Fatalf("entry %d mismatch: got %+v, want %+v", i, got[i], in[i])
		}
		if !got[i].Date.Equal(in[i].Date) {
			t.Fatalf("entry %d date mismatch: got %v, want %v", i, got[i].Date, in[i].Date)
		}
	}
	if got[0].UploadDate == nil || !got[0].UploadDate.Equal(*in[0].UploadDate) {
		t.Fatalf("upload date lost: %v", got[0].UploadDate)
	}
	if got[1].UploadDate != nil {
		t.Fatalf("expected nil upload date, got %v", got[1].UploadDate)
	}

	raw, err := backend.ReadFile(ctx, testDoc)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("document is not JSON: %v", err)
	}
	for _, key := range []string{"channel_name", "channel_url", "source", "vids"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("document missing key %q", key)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newTestCatalog(t)

	batch := []models.Entry{
		mustEntry(t, "https://www.youtube.com/watch?v=a", "A", nil),
		mustEntry(t, "https://www.youtube.com/watch?v=b", "B", date(2024, 5, 1)),
	}
	for i := 0; i < 3; i++ {
		if err := c.Merge(ctx, batch, true); err != nil {
			t.Fatalf("Merge %d: %v", i, err)
		}
	}

	got, _ := c.KnownVids(ctx, true)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries after repeated merges, got %d", len(got))
	}
}

func TestMergeNeverRegressesUploadDate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newTestCatalog(t)

	url := "https://www.youtube.com/watch?v=a"
	if err := c.Merge(ctx, []models.Entry{mustEntry(t, url, "A", date(2023, 10, 1))}, true); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := c.Merge(ctx, []models.Entry{mustEntry(t, url, "A renamed", nil)}, true); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	got, _ := c.KnownVids(ctx, true)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].UploadDate == nil || got[0].UploadDate.String() != "2023-10-01" {
		t.Fatalf("upload date regressed: %v", got[0].UploadDate)
	}
	if got[0].Title != "A" {
		t.Fatalf("merge should not replace title, got %q", got[0].Title)
	}

	if err := c.Merge(ctx, []models.Entry{mustEntry(t, url, "A", date(2023, 10, 2))}, true); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	got, _ = c.KnownVids(ctx, true)
	if got[0].UploadDate.String() != "2023-10-02" {
		t.Fatalf("non-null upload date should be taken, got %v", got[0].UploadDate)
	}
}

func TestMarkErrorIsSticky(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newTestCatalog(t)

	e := mustEntry(t, "https://www.youtube.com/watch?v=a", "A", nil)
	if err := c.Merge(ctx, []models.Entry{e}, true); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := c.MarkError(ctx, e); err != nil {
		t.Fatalf("MarkError: %v", err)
	}
	if err := c.Merge(ctx, []models.Entry{e}, true); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	got, _ := c.KnownVids(ctx, true)
	if !got[0].Error {
		t.Fatalf("error flag should survive a later merge")
	}
}

func TestSaveRefusesOverwrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newTestCatalog(t)

	if err := c.Save(ctx, false); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := c.Save(ctx, false); !errors.Is(err, ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
	if err := c.Save(ctx, true); err != nil {
		t.Fatalf("overwrite Save: %v", err)
	}
}

func TestCreateRefusesExisting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, backend := newTestCatalog(t)
	if err := c.Save(ctx, true); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Create(ctx, backend, testDoc, testIdentity(), testLock(t)); !errors.Is(err, ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
}

func TestLegacyChannelURLRepaired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalFs(afero.NewMemMapFs())
	legacy := `{
    "channel_name": "chan",
    "channel_url": "chan",
    "source": "youtube",
    "vids": []
}`
	if err := backend.WriteFile(ctx, testDoc, []byte(legacy)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := New(ctx, backend, testDoc, testIdentity(), testLock(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.ChannelURL() != testIdentity().ChannelURL {
		t.Fatalf("channel URL not repaired: %q", c.ChannelURL())
	}

	raw, _ := backend.ReadFile(ctx, testDoc)
	var doc models.LibraryData
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.ChannelURL != testIdentity().ChannelURL {
		t.Fatalf("repaired URL not persisted, got %q", doc.ChannelURL)
	}
}

func TestOpenRepairsYouTubeHandle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalFs(afero.NewMemMapFs())
	legacy := `{"channel_name": "chan", "channel_url": "chan", "source": "youtube", "vids": []}`
	if err := backend.WriteFile(ctx, testDoc, []byte(legacy)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Open(ctx, backend, testDoc, testLock(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := c.ChannelURL(); got != "https://www.youtube.com/@chan/videos" {
		t.Fatalf("got %q", got)
	}
}

func TestIdentityMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalFs(afero.NewMemMapFs())
	other := `{"channel_name": "chan", "channel_url": "https://www.youtube.com/@other/videos", "source": "youtube", "vids": []}`
	if err := backend.WriteFile(ctx, testDoc, []byte(other)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := New(ctx, backend, testDoc, testIdentity(), testLock(t)); !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestMalformedDocument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, backend := newTestCatalog(t)
	if err := c.Merge(ctx, []models.Entry{mustEntry(t, "https://x.com/a", "A", nil)}, true); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := backend.WriteFile(ctx, testDoc, []byte("{not json")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := c.Load(ctx); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if got, _ := c.KnownVids(ctx, false); len(got) != 1 {
		t.Fatalf("failed load should leave in-memory state alone, got %d entries", len(got))
	}
}

func TestFindMissingDownloads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, backend := newTestCatalog(t)

	a := mustEntry(t, "https://x.com/a", "A", nil)
	b := mustEntry(t, "https://x.com/b", "B", nil)
	if err := c.Merge(ctx, []models.Entry{a, b}, true); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := backend.WriteFile(ctx, storage.Join(c.Dir(), a.FilePath), []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	missing, err := c.FindMissingDownloads(ctx)
	if err != nil {
		t.Fatalf("FindMissingDownloads: %v", err)
	}
	if len(missing) != 1 || missing[0].URL != b.URL {
		t.Fatalf("expected only B missing, got %v", missing)
	}

	done, err := c.AlreadyDownloaded(ctx)
	if err != nil || len(done) != 1 || done[0].URL != a.URL {
		t.Fatalf("AlreadyDownloaded = %v, %v", done, err)
	}
}

func TestFindMissingOrdering(t *testing.T) {
	t.Parallel()

	a := models.Entry{URL: "https://x/a", FilePath: "a.mp3"}
	b := models.Entry{URL: "https://x/b", FilePath: "b.mp3", UploadDate: date(2023, 1, 1)}
	c := models.Entry{URL: "https://x/c", FilePath: "c.mp3", UploadDate: date(2023, 6, 1)}

	if got := FindMissing([]models.Entry{a, b, c}, nil); got[0].URL != a.URL || got[1].URL != b.URL || got[2].URL != c.URL {
		t.Fatalf("mixed dates should keep catalog order, got %v", got)
	}
	if got := FindMissing([]models.Entry{c, b}, nil); got[0].URL != b.URL || got[1].URL != c.URL {
		t.Fatalf("all-dated set should sort ascending, got %v", got)
	}
	if got := FindMissing([]models.Entry{a, b}, []string{"a.mp3", "b.mp3"}); len(got) != 0 {
		t.Fatalf("expected nothing missing, got %v", got)
	}
}

func TestDateRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newTestCatalog(t)
	if oldest, newest := c.DateRange(); oldest != nil || newest != nil {
		t.Fatalf("empty catalog should have no range")
	}

	err := c.Merge(ctx, []models.Entry{
		mustEntry(t, "https://x/a", "A", date(2023, 6, 1)),
		mustEntry(t, "https://x/b", "B", nil),
		mustEntry(t, "https://x/c", "C", date(2022, 1, 1)),
	}, false)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	oldest, newest := c.DateRange()
	if oldest.String() != "2022-01-01" || newest.String() != "2023-06-01" {
		t.Fatalf("got %v..%v", oldest, newest)
	}
}

func TestConcurrentMergesDoNotLoseEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalFs(afero.NewMemMapFs())
	lock := testLock(t)

	var catalogs []*Catalog
	for i := 0; i < 4; i++ {
		c, err := New(ctx, backend, testDoc, testIdentity(), lock)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		catalogs = append(catalogs, c)
	}

	var wg sync.WaitGroup
	for i, c := range catalogs {
		wg.Add(1)
		go func(i int, c *Catalog) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				e := models.Entry{URL: "https://x/" + string(rune('a'+i)) + string(rune('0'+j)), Date: time.Now()}
				if err := c.Merge(ctx, []models.Entry{e}, true); err != nil {
					t.Errorf("Merge: %v", err)
				}
			}
		}(i, c)
	}
	wg.Wait()

	got, err := catalogs[0].KnownVids(ctx, true)
	if err != nil {
		t.Fatalf("KnownVids: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 entries, got %d", len(got))
	}
}

func TestLockTimeout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "library.json.lock")
	holder := NewLock(path, time.Second)
	release, err := holder.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	waiter := NewLock(path, 200*time.Millisecond)
	if _, err := waiter.Acquire(context.Background()); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestGetOrCreateFreshPath(t *testing.T) {
	t.Parallel()

	backend := storage.NewLocalFs(afero.NewMemMapFs())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lock := testLock(t)
	done := make(chan error, 1)
	go func() {
		c, err := GetOrCreate(ctx, backend, testDoc, testIdentity(), lock)
		if err == nil && c.ChannelName() != "chan" {
			err = errors.New("wrong channel name " + c.ChannelName())
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
	case <-ctx.Done():
		t.Fatalf("GetOrCreate on a fresh path did not return")
	}
}

func TestDocumentEntryForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		entry    string
		wantDate string
		wantPath string
	}{
		{
			name:     "timestamp upload date",
			entry:    `{"url":"https://x.com/a","title":"A","date":"2024-01-02T03:04:05Z","date_upload":"2023-10-01T12:00:00Z","file_path":"A.mp3","error":false}`,
			wantDate: "2023-10-01",
			wantPath: "A.mp3",
		},
		{
			name:     "bare upload date",
			entry:    `{"url":"https://x.com/a","title":"A","date_upload":"2023-10-01","file_path":"A.mp3"}`,
			wantDate: "2023-10-01",
			wantPath: "A.mp3",
		},
		{
			name:     "compact upload date",
			entry:    `{"url":"https://x.com/a","title":"A","date_upload":"20231001","file_path":"A.mp3"}`,
			wantDate: "2023-10-01",
			wantPath: "A.mp3",
		},
		{
			name:     "NA upload date",
			entry:    `{"url":"https://x.com/a","title":"A","date_upload":"NA","file_path":"A.mp3"}`,
			wantPath: "A.mp3",
		},
		{
			name:     "missing file path",
			entry:    `{"url":"https://x.com/a","title":"Legacy Title","date_upload":null}`,
			wantPath: "Legacy_Title.mp3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			backend := storage.NewLocalFs(afero.NewMemMapFs())
			doc := `{"channel_name":"chan","channel_url":"https://www.youtube.com/@chan/videos","source":"youtube","vids":[` + tt.entry + `]}`
			if err := backend.WriteFile(ctx, testDoc, []byte(doc)); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			c, err := New(ctx, backend, testDoc, testIdentity(), testLock(t))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := c.Merge(ctx, []models.Entry{mustEntry(t, "https://x.com/b", "B", nil)}, true); err != nil {
				t.Fatalf("Merge: %v", err)
			}

			vids, err := c.KnownVids(ctx, true)
			if err != nil {
				t.Fatalf("KnownVids: %v", err)
			}
			if len(vids) != 2 {
				t.Fatalf("expected the stored entry to survive a merge, got %d entries", len(vids))
			}
			got := vids[0]
			if got.URL != "https://x.com/a" || got.FilePath != tt.wantPath {
				t.Fatalf("got %+v, want path %q", got, tt.wantPath)
			}
			switch {
			case tt.wantDate == "" && got.UploadDate != nil:
				t.Fatalf("expected no upload date, got %v", got.UploadDate)
			case tt.wantDate != "" && (got.UploadDate == nil || got.UploadDate.String() != tt.wantDate):
				t.Fatalf("upload date = %v, want %s", got.UploadDate, tt.wantDate)
			}
		})
	}
}

func TestUndecodableEntryFailsLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalFs(afero.NewMemMapFs())
	doc := `{"channel_name":"chan","channel_url":"https://www.youtube.com/@chan/videos","source":"youtube","vids":[` +
		`{"url":"https://x.com/keep","title":"Keep","file_path":"Keep.mp3"},` +
		`{"url":"https://x.com/bad","title":"Bad","date_upload":"not a date at all","file_path":"Bad.mp3"}]}`
	if err := backend.WriteFile(ctx, testDoc, []byte(doc)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := New(ctx, backend, testDoc, testIdentity(), testLock(t)); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}

	raw, err := backend.ReadFile(ctx, testDoc)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(raw) != doc {
		t.Fatalf("document was rewritten after a failed load:\n%s", raw)
	}
}
