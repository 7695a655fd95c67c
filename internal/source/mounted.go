package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonschz/frontdown/internal/model"
	"github.com/jonschz/frontdown/internal/pathorder"
)

func init() {
	Register("", func(dir string) (DataSource, error) {
		return NewMounted(dir), nil
	})
}

// Mounted is the DataSource for a locally mounted directory tree.
type Mounted struct {
	root string
}

// NewMounted constructs a mounted-directory source rooted at dir.
func NewMounted(dir string) *Mounted {
	return &Mounted{root: dir}
}

func (m *Mounted) Describe() string { return m.root }

func (m *Mounted) Available(ctx context.Context) bool {
	info, err := os.Stat(m.root)
	return err == nil && info.IsDir()
}

func (m *Mounted) Connect(ctx context.Context) (Connection, error) {
	info, err := os.Stat(m.root)
	if err != nil || !info.IsDir() {
		return nil, ErrNotFound
	}
	return &mountedConn{root: m.root, order: pathorder.Default()}, nil
}

type mountedConn struct {
	root  string
	order *pathorder.Comparator
}

func (c *mountedConn) Close() error { return nil }

// Scan walks the tree depth-first, sorting each directory's children with
// the shared locale-aware comparator before recursing, which is exactly
// what keeps the emitted sequence consistent with the merger's path
// ordering: parent before children, siblings in collated order.
func (c *mountedConn) Scan(ctx context.Context, excludeGlobs []string, onError func(relPath string, err error)) (<-chan model.FileMetadata, error) {
	out := make(chan model.FileMetadata)
	go func() {
		defer close(out)
		c.walk(ctx, "", excludeGlobs, onError, out)
	}()
	return out, nil
}

func (c *mountedConn) walk(ctx context.Context, relDir string, excludeGlobs []string, onError func(string, error), out chan<- model.FileMetadata) {
	absDir := filepath.Join(c.root, relDir)
	entries, err := os.ReadDir(absDir)
	if err != nil {
		onError(relDir, err)
		return
	}
	names := make([]string, 0, len(entries))
	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	sort.Slice(names, func(i, j int) bool { return c.order.Less(names[i], names[j]) })

	for _, name := range names {
		select {
		case <-ctx.Done():
			return
		default:
		}
		entry := byName[name]
		relPath := name
		if relDir != "" {
			relPath = relDir + "/" + name
		}
		if isExcluded(relPath, excludeGlobs) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			onError(relPath, err)
			continue
		}
		if entry.IsDir() {
			children, err := os.ReadDir(filepath.Join(c.root, relPath))
			isEmpty := err == nil && len(children) == 0
			out <- model.FileMetadata{
				RelPath:     relPath,
				IsDirectory: true,
				ModTime:     info.ModTime(),
				IsEmptyDir:  isEmpty,
			}
			c.walk(ctx, relPath, excludeGlobs, onError, out)
			continue
		}
		out <- model.FileMetadata{
			RelPath:     relPath,
			IsDirectory: false,
			ModTime:     info.ModTime(),
			FileSize:    info.Size(),
		}
	}
}

func isExcluded(relPath string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := path.Match(g, relPath); ok {
			return true
		}
	}
	return false
}

// CopyFile copies the source file to toAbsPath atomically: it writes to a
// ".tmp" sibling, syncs, sets the mtime, then renames into place, so a
// cancelled or failed copy never leaves a partially written file at the
// final path.
func (c *mountedConn) CopyFile(ctx context.Context, relPath string, modTime time.Time, toAbsPath string) error {
	src := filepath.Join(c.root, filepath.FromSlash(relPath))
	tmpDst := toAbsPath + ".tmp"

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", relPath, err)
	}
	defer in.Close()

	out, err := os.Create(tmpDst)
	if err != nil {
		return fmt.Errorf("copy %s: %w", relPath, err)
	}
	defer func() {
		out.Close()
		if ctx.Err() != nil {
			os.Remove(tmpDst)
		}
	}()

	buf := make([]byte, 1024*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("copy %s: %w", relPath, writeErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("copy %s: %w", relPath, readErr)
		}
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("copy %s: %w", relPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("copy %s: %w", relPath, err)
	}
	if ctx.Err() != nil {
		os.Remove(tmpDst)
		return ctx.Err()
	}
	if err := os.Chtimes(tmpDst, modTime, modTime); err != nil {
		os.Remove(tmpDst)
		return fmt.Errorf("copy %s: set mtime: %w", relPath, err)
	}
	if err := os.Rename(tmpDst, toAbsPath); err != nil {
		os.Remove(tmpDst)
		return fmt.Errorf("copy %s: %w", relPath, err)
	}
	return nil
}

// BytewiseCompare compares the source file's bytes against a local file,
// used as the last, strongest step of the compare-method chain.
func (c *mountedConn) BytewiseCompare(ctx context.Context, relPath string, localComparePath string) (bool, error) {
	src := filepath.Join(c.root, filepath.FromSlash(relPath))
	a, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("bytewise compare %s: %w", relPath, err)
	}
	defer a.Close()
	b, err := os.Open(localComparePath)
	if err != nil {
		return false, fmt.Errorf("bytewise compare %s: %w", relPath, err)
	}
	defer b.Close()

	bufA := make([]byte, 256*1024)
	bufB := make([]byte, 256*1024)
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
		na, errA := a.Read(bufA)
		nb, errB := b.Read(bufB)
		if na != nb {
			return false, nil
		}
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF && errB == io.EOF {
			return true, nil
		}
		if errA != nil && errA != io.EOF {
			return false, fmt.Errorf("bytewise compare %s: %w", relPath, errA)
		}
		if errB != nil && errB != io.EOF {
			return false, fmt.Errorf("bytewise compare %s: %w", relPath, errB)
		}
		if errA == io.EOF || errB == io.EOF {
			return errA == errB, nil
		}
	}
}
