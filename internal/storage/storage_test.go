package storage

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/spf13/afero"
)

func TestLocalRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewLocalFs(afero.NewMemMapFs())

	if err := b.WriteFile(ctx, "/out/chan/youtube/a.mp3", []byte("audio")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := b.WriteFile(ctx, "/out/chan/youtube/library.json", []byte("{}")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	names, err := b.Ls(ctx, "/out/chan/youtube")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "a.mp3" || names[1] != "library.json" {
		t.Fatalf("unexpected listing %v", names)
	}

	data, err := b.ReadFile(ctx, "/out/chan/youtube/a.mp3")
	if err != nil || string(data) != "audio" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}

	if _, err := b.ReadFile(ctx, "/out/none"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}

	missing, err := b.Ls(ctx, "/does/not/exist")
	if err != nil || len(missing) != 0 {
		t.Fatalf("missing dir should list empty, got %v, %v", missing, err)
	}
}

func TestRemoteName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		root   string
		remote string
		ok     bool
	}{
		{"dst:TorrentBooks/podcast", "dst", true},
		{"/mnt/data", "", false},
		{"C:/data", "", false},
		{"relative/dir", "", false},
		{"./a:b", "", false},
	}
	for _, tt := range tests {
		remote, ok := remoteName(tt.root)
		if remote != tt.remote || ok != tt.ok {
			t.Fatalf("remoteName(%q) = %q, %v; want %q, %v", tt.root, remote, ok, tt.remote, tt.ok)
		}
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	if got := Join("dst:root", "chan", "youtube"); got != "dst:root/chan/youtube" {
		t.Fatalf("remote Join = %q", got)
	}
	if got := Join("/root", "chan", "youtube"); got != "/root/chan/youtube" {
		t.Fatalf("local Join = %q", got)
	}
	if got := Dir("dst:root/chan/library.json"); got != "dst:root/chan" {
		t.Fatalf("remote Dir = %q", got)
	}
}

func TestRcloneEnv(t *testing.T) {
	t.Parallel()

	env := rcloneEnv(map[string]map[string]string{
		"dst": {"type": "s3", "access-key": "k"},
	})
	want := []string{"RCLONE_CONFIG_DST_ACCESS_KEY=k", "RCLONE_CONFIG_DST_TYPE=s3"}
	if len(env) != len(want) {
		t.Fatalf("got %v, want %v", env, want)
	}
	for i := range want {
		if env[i] != want[i] {
			t.Fatalf("got %v, want %v", env, want)
		}
	}
}
