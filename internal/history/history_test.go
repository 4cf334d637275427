package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"chansync/internal/database"
	"chansync/internal/models"
)

func TestRecordAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, err := database.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	defer d.Close()
	s := NewStore(d.DB)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	runs := []*Run{
		{ID: "a", Channel: "one", Source: models.SourceYouTube, StartedAt: base, FinishedAt: base.Add(time.Minute), Scanned: 10},
		{ID: "b", Channel: "one", Source: models.SourceYouTube, StartedAt: base.Add(time.Hour), FinishedAt: base.Add(61 * time.Minute), Downloaded: 2},
		{ID: "c", Channel: "two", Source: models.SourceRumble, StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(121 * time.Minute)},
	}
	runs[2].Finish(errors.New("rate limited"))
	for _, r := range runs {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.List(ctx, "one", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].Scanned != 10 {
		t.Fatalf("unexpected runs %+v", got)
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest[[2]string{"one", "youtube"}].ID != "b" {
		t.Fatalf("expected newest run for one, got %+v", latest)
	}
	if r := latest[[2]string{"two", "rumble"}]; r.Err != "rate limited" {
		t.Fatalf("expected recorded error, got %+v", r)
	}
}

func TestStartAssignsID(t *testing.T) {
	t.Parallel()

	a, b := Start("x", models.SourceBrighteon), Start("x", models.SourceBrighteon)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct run IDs, got %q and %q", a.ID, b.ID)
	}
}
