package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAddFolder(t *testing.T) {
	repo := New()

	if err := repo.AddFolder("12345"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := repo.AddFolder("67890"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	repo.AddImage("12345", "/photos/a.jpg", "image/jpeg")

	err := repo.AddFolder("12345")
	if !errors.Is(err, ErrFolderExists) {
		t.Fatalf("Expected ErrFolderExists, got %v", err)
	}

	snap := repo.Snapshot()
	if len(snap.Folders) != 2 {
		t.Fatalf("Expected 2 folders, got %d", len(snap.Folders))
	}
	if snap.Folders[0].Name != "12345" || snap.Folders[1].Name != "67890" {
		t.Errorf("Expected insertion order to be kept, got %s, %s", snap.Folders[0].Name, snap.Folders[1].Name)
	}
	if len(snap.Folders[0].Images) != 1 {
		t.Errorf("Expected duplicate add to leave images alone, got %d images", len(snap.Folders[0].Images))
	}

	if err := repo.AddFolder("   "); !errors.Is(err, ErrInvalidFolderName) {
		t.Errorf("Expected ErrInvalidFolderName, got %v", err)
	}
}

func TestRemoveFolder(t *testing.T) {
	repo := New()
	_ = repo.AddFolder("a")
	_ = repo.AddFolder("b")
	_ = repo.AddFolder("c")
	repo.AddImage("b", "/x/1.jpg", "")

	repo.RemoveFolder("b")
	repo.RemoveFolder("missing")

	snap := repo.Snapshot()
	if len(snap.Folders) != 2 || snap.Folders[0].Name != "a" || snap.Folders[1].Name != "c" {
		t.Errorf("Unexpected folders after removal: %+v", snap.Folders)
	}
}

func TestAddImage(t *testing.T) {
	repo := New()
	_ = repo.AddFolder("12345")

	img, ok := repo.AddImage("12345", "content://media/external/images/a.jpg", "image/jpeg")
	if !ok {
		t.Fatal("Expected image to be added")
	}
	if img.FileName != "a.jpg" || img.Key != "a.jpg" {
		t.Errorf("Expected file name and key a.jpg, got %q / %q", img.FileName, img.Key)
	}
	if img.Progress != 0 || img.Uploaded {
		t.Errorf("Expected a pending image, got %+v", img)
	}

	if _, ok := repo.AddImage("missing", "/x/b.jpg", ""); ok {
		t.Error("Expected add to an absent folder to be a no-op")
	}
	if len(repo.Snapshot().Folders) != 1 {
		t.Error("Expected add to an absent folder not to create it")
	}
}

func TestAddImageDisambiguatesKeys(t *testing.T) {
	repo := New()
	_ = repo.AddFolder("f")

	first, _ := repo.AddImage("f", "/sd/DCIM/a.jpg", "")
	second, _ := repo.AddImage("f", "/tmp/a.jpg", "")

	if first.Key != "a.jpg" {
		t.Errorf("Expected first key a.jpg, got %s", first.Key)
	}
	if second.Key == first.Key {
		t.Fatalf("Expected colliding file names to get distinct keys, both are %s", first.Key)
	}
	if !strings.HasPrefix(second.Key, "a_") || !strings.HasSuffix(second.Key, ".jpg") {
		t.Errorf("Expected suffixed key like a_xxxxxxxx.jpg, got %s", second.Key)
	}
	if second.FileName != "a.jpg" {
		t.Errorf("Expected display name to stay a.jpg, got %s", second.FileName)
	}

	repo.ApplyProgress("f", second.Key, 1.0)
	snap := repo.Snapshot()
	if snap.Folders[0].Images[0].Uploaded {
		t.Error("Expected progress for the second image not to touch the first")
	}
	if !snap.Folders[0].Images[1].Uploaded {
		t.Error("Expected second image to be uploaded")
	}
}

func TestRemoveImage(t *testing.T) {
	repo := New()
	_ = repo.AddFolder("f")
	repo.AddImage("f", "/x/a.jpg", "")
	repo.AddImage("f", "/x/b.jpg", "")

	repo.RemoveImage("f", "/x/a.jpg")
	repo.RemoveImage("f", "/x/nope.jpg")
	repo.RemoveImage("nope", "/x/b.jpg")

	folder, _ := repo.Folder("f")
	if len(folder.Images) != 1 || folder.Images[0].Locator != "/x/b.jpg" {
		t.Errorf("Unexpected images after removal: %+v", folder.Images)
	}
}

func TestApplyProgress(t *testing.T) {
	tests := []struct {
		name         string
		fractions    []float64
		wantProgress float64
		wantUploaded bool
	}{
		{
			name:         "partial progress",
			fractions:    []float64{0.3, 0.7},
			wantProgress: 0.7,
		},
		{
			name:         "completion marks uploaded",
			fractions:    []float64{0.3, 0.7, 1.0},
			wantProgress: 1.0,
			wantUploaded: true,
		},
		{
			name:         "updates after upload are ignored",
			fractions:    []float64{1.0, 0.2, 0.5},
			wantProgress: 1.0,
			wantUploaded: true,
		},
		{
			name:         "decreasing fraction ignored",
			fractions:    []float64{0.6, 0.4},
			wantProgress: 0.6,
		},
		{
			name:         "out of range fractions are clamped",
			fractions:    []float64{-1, 2},
			wantProgress: 1.0,
			wantUploaded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := New()
			_ = repo.AddFolder("12345")
			repo.AddImage("12345", "/x/a.jpg", "")

			for _, f := range tt.fractions {
				repo.ApplyProgress("12345", "a.jpg", f)
			}

			folder, _ := repo.Folder("12345")
			img := folder.Images[0]
			if img.Progress != tt.wantProgress {
				t.Errorf("Expected progress %v, got %v", tt.wantProgress, img.Progress)
			}
			if img.Uploaded != tt.wantUploaded {
				t.Errorf("Expected uploaded %v, got %v", tt.wantUploaded, img.Uploaded)
			}
			if img.Uploaded && img.Progress != 1.0 {
				t.Errorf("Uploaded image must have progress 1.0, got %v", img.Progress)
			}
		})
	}
}

func TestApplyProgressAfterImageRemoved(t *testing.T) {
	repo := New()
	_ = repo.AddFolder("f")
	repo.AddImage("f", "/x/a.jpg", "")
	repo.ApplyProgress("f", "a.jpg", 0.4)

	repo.RemoveImage("f", "/x/a.jpg")

	if repo.ApplyProgress("f", "a.jpg", 1.0) {
		t.Error("Expected late progress for a removed image to be a no-op")
	}
	if repo.ApplyProgress("gone", "a.jpg", 1.0) {
		t.Error("Expected progress for a missing folder to be a no-op")
	}
	folder, _ := repo.Folder("f")
	if len(folder.Images) != 0 {
		t.Errorf("Expected the removed image not to be recreated, got %+v", folder.Images)
	}
}

func TestReAddedImageGetsFreshKey(t *testing.T) {
	tests := []struct {
		name   string
		remove func(*Repository)
	}{
		{"image removed", func(r *Repository) { r.RemoveImage("f", "/x/a.jpg") }},
		{"folder removed and added again", func(r *Repository) {
			r.RemoveFolder("f")
			_ = r.AddFolder("f")
		}},
		{"catalog cleared", func(r *Repository) {
			r.ClearAll()
			_ = r.AddFolder("f")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := New()
			_ = repo.AddFolder("f")
			old, _ := repo.AddImage("f", "/x/a.jpg", "")
			repo.ApplyProgress("f", old.Key, 0.3)

			tt.remove(repo)
			fresh, ok := repo.AddImage("f", "/y/a.jpg", "")
			if !ok {
				t.Fatal("Expected the image to be added")
			}
			if fresh.Key == old.Key {
				t.Fatalf("Expected a fresh key after removal, both are %s", old.Key)
			}

			if repo.ApplyProgress("f", old.Key, 1.0) {
				t.Error("Expected completion for the removed image to be a no-op")
			}
			folder, _ := repo.Folder("f")
			if len(folder.Images) != 1 || folder.Images[0].Uploaded || folder.Images[0].Progress != 0 {
				t.Errorf("Expected the new image to stay pending, got %+v", folder.Images)
			}
		})
	}
}

func TestConcurrentApplyProgress(t *testing.T) {
	const n = 50
	repo := New()
	_ = repo.AddFolder("f")
	for i := 0; i < n; i++ {
		repo.AddImage("f", fmt.Sprintf("/x/%d.jpg", i), "")
	}

	order := rand.Perm(n)
	var wg sync.WaitGroup
	for _, i := range order {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("%d.jpg", i)
			repo.ApplyProgress("f", key, 0.5)
			repo.ApplyProgress("f", key, 1.0)
		}(i)
	}
	wg.Wait()

	folder, _ := repo.Folder("f")
	if len(folder.Images) != n {
		t.Fatalf("Expected %d images, got %d", n, len(folder.Images))
	}
	if !folder.FullyUploaded() {
		t.Errorf("Expected all %d images uploaded, pending: %d", n, len(folder.Pending()))
	}
}

func TestClearIfAllUploaded(t *testing.T) {
	repo := New()
	if repo.ClearIfAllUploaded() {
		t.Error("Expected empty catalog not to report a clear")
	}

	_ = repo.AddFolder("a")
	_ = repo.AddFolder("b")
	repo.AddImage("a", "/x/1.jpg", "")
	repo.AddImage("b", "/x/2.jpg", "")

	repo.ApplyProgress("a", "1.jpg", 1.0)
	if repo.ClearIfAllUploaded() {
		t.Fatal("Expected catalog with a pending image to be kept")
	}
	if !repo.HasPendingImages() {
		t.Error("Expected pending images")
	}

	repo.ApplyProgress("b", "2.jpg", 1.0)
	if repo.HasPendingImages() {
		t.Error("Expected no pending images")
	}
	if !repo.ClearIfAllUploaded() {
		t.Fatal("Expected catalog to be cleared")
	}
	if n := len(repo.Snapshot().Folders); n != 0 {
		t.Errorf("Expected empty catalog, got %d folders", n)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	repo := New()
	_ = repo.AddFolder("f")
	repo.AddImage("f", "/x/a.jpg", "")

	snap := repo.Snapshot()
	snap.Folders[0].Images[0].Uploaded = true
	snap.Folders[0].Name = "changed"

	folder, ok := repo.Folder("f")
	if !ok || folder.Images[0].Uploaded {
		t.Error("Expected snapshot mutations not to leak into the repository")
	}
}

func TestSubscribe(t *testing.T) {
	repo := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := repo.Subscribe(ctx)

	initial := <-ch
	if len(initial.Folders) != 0 {
		t.Fatalf("Expected initial empty snapshot, got %+v", initial)
	}

	_ = repo.AddFolder("a")
	_ = repo.AddFolder("b")
	repo.AddImage("b", "/x/1.jpg", "")

	latest := <-ch
	if len(latest.Folders) != 2 || len(latest.Folders[1].Images) != 1 {
		t.Errorf("Expected latest snapshot with both folders, got %+v", latest)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// a publish may have raced the cancel; the next receive must see the close
			if _, ok := <-ch; ok {
				t.Error("Expected channel to be closed")
			}
		}
	case <-time.After(time.Second):
		t.Error("Expected channel to close after cancel")
	}
}
