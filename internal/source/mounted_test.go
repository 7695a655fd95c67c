package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMountedScanOrdering(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "dir"))
	mustWrite(t, filepath.Join(root, "a.txt"), "x")
	mustWrite(t, filepath.Join(root, "dir", "b.txt"), "y")
	mustWrite(t, filepath.Join(root, "z.txt"), "z")

	conn, err := NewMounted(root).Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	ch, err := conn.Scan(context.Background(), nil, func(string, error) {})
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for fm := range ch {
		order = append(order, fm.RelPath)
	}
	want := []string{"a.txt", "dir", "dir/b.txt", "z.txt"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestMountedScanExcludesGlobs(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "x")
	mustWrite(t, filepath.Join(root, "a.log"), "x")

	conn, err := NewMounted(root).Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	ch, err := conn.Scan(context.Background(), []string{"*.log"}, func(string, error) {})
	if err != nil {
		t.Fatal(err)
	}
	var seen []string
	for fm := range ch {
		seen = append(seen, fm.RelPath)
	}
	if len(seen) != 1 || seen[0] != "a.txt" {
		t.Fatalf("expected only a.txt, got %v", seen)
	}
}

func TestMountedCopyFileSetsMtime(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()
	mtime := time.Date(2022, 6, 15, 10, 0, 0, 0, time.UTC)
	mustWrite(t, filepath.Join(root, "a.txt"), "hello")
	if err := os.Chtimes(filepath.Join(root, "a.txt"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	conn, err := NewMounted(root).Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	target := filepath.Join(dest, "a.txt")
	if err := conn.CopyFile(context.Background(), "a.txt", mtime, target); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
}

func TestMountedBytewiseCompare(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "hello")
	mustWrite(t, filepath.Join(other, "a.txt"), "hello")
	mustWrite(t, filepath.Join(other, "b.txt"), "world")

	conn, err := NewMounted(root).Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	eq, err := conn.BytewiseCompare(context.Background(), "a.txt", filepath.Join(other, "a.txt"))
	if err != nil || !eq {
		t.Errorf("expected identical files to compare equal, got eq=%v err=%v", eq, err)
	}
	eq, err = conn.BytewiseCompare(context.Background(), "a.txt", filepath.Join(other, "b.txt"))
	if err != nil || eq {
		t.Errorf("expected different files to compare unequal, got eq=%v err=%v", eq, err)
	}
}

func TestAvailableReportsFalseForMissingRoot(t *testing.T) {
	m := NewMounted(filepath.Join(t.TempDir(), "does-not-exist"))
	if m.Available(context.Background()) {
		t.Errorf("expected Available to be false for a missing root")
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
