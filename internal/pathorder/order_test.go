package pathorder

import (
	"sort"
	"testing"
)

func TestCompareShorterPrefixSortsFirst(t *testing.T) {
	c := Default()
	if !c.Less("dir", "dir/child") {
		t.Errorf("expected %q < %q", "dir", "dir/child")
	}
	if c.Less("dir/child", "dir") {
		t.Errorf("expected %q not < %q", "dir/child", "dir")
	}
}

func TestCompareSegmentBySegment(t *testing.T) {
	c := Default()
	paths := []string{"b.txt", "a dir/z.txt", "a dir", "a.txt"}
	sort.Slice(paths, func(i, j int) bool { return c.Less(paths[i], paths[j]) })
	want := []string{"a dir", "a dir/z.txt", "a.txt", "b.txt"}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("got order %v, want %v", paths, want)
		}
	}
}

func TestDirectoryImmediatelyPrecedesSubtree(t *testing.T) {
	c := Default()
	entries := []string{"a", "a/b", "a/c", "b", "b/a"}
	sorted := append([]string(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return c.Less(sorted[i], sorted[j]) })
	for i := range entries {
		if sorted[i] != entries[i] {
			t.Fatalf("ordering changed a pre-sorted, already-valid sequence: got %v", sorted)
		}
	}
}

func TestNormalizeBackslashes(t *testing.T) {
	if got := Normalize(`a\b\c`); got != "a/b/c" {
		t.Errorf("Normalize(%q) = %q, want a/b/c", `a\b\c`, got)
	}
}

func TestCompareEqual(t *testing.T) {
	c := Default()
	if c.Compare("a/b", "a/b") != 0 {
		t.Errorf("expected equal paths to compare 0")
	}
}
