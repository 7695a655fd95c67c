// Package source defines the data source abstraction: a polymorphic way to
// enumerate and read files from a mounted directory or a remote FTP server
// through the same Connection contract, plus the scheme registry that lets
// new source kinds be added without touching a type switch.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonschz/frontdown/internal/model"
)

// Sentinel errors making up the portion of the error taxonomy that
// originates at the source boundary.
var (
	ErrNotFound      = errors.New("source: root not found")
	ErrNotSupported  = errors.New("source: operation not supported")
	ErrConnectionLost = errors.New("source: connection lost")
)

// CompareMethod is one step of the ordered comparator chain FilesEq applies.
type CompareMethod int

const (
	CompareModDate CompareMethod = iota
	CompareSize
	CompareBytes
)

// ParseCompareMethod maps the config vocabulary {moddate,size,bytes} onto a
// CompareMethod.
func ParseCompareMethod(s string) (CompareMethod, error) {
	switch strings.ToLower(s) {
	case "moddate":
		return CompareModDate, nil
	case "size":
		return CompareSize, nil
	case "bytes":
		return CompareBytes, nil
	default:
		return 0, fmt.Errorf("source: unknown compare method %q", s)
	}
}

// DataSource is the capability interface every concrete source kind
// implements. Per-protocol session state lives in the Connection it hands
// back, not in the DataSource itself.
type DataSource interface {
	// Available reports whether a Connect call would presently succeed. It
	// must not return an error for routine absence (host down, directory
	// unmounted) — that is a false result, not an error.
	Available(ctx context.Context) bool

	// Connect acquires the source for the duration of one tree's scan and
	// execute window. Callers must call Connection.Close on every exit path.
	Connect(ctx context.Context) (Connection, error)

	// Describe returns the dir string this source was constructed from.
	Describe() string
}

// Connection is the scoped, per-tree session handed back by Connect.
type Connection interface {
	// Scan walks the source root and yields file metadata in pathorder
	// order (see internal/pathorder), honoring excludeGlobs. The returned
	// channel is closed once the walk completes or ctx is cancelled; errors
	// encountered are reported through onError rather than terminating the
	// sequence.
	Scan(ctx context.Context, excludeGlobs []string, onError func(relPath string, err error)) (<-chan model.FileMetadata, error)

	// CopyFile writes the named source file to toAbsPath and sets its mtime
	// to modTime.
	CopyFile(ctx context.Context, relPath string, modTime time.Time, toAbsPath string) error

	// BytewiseCompare compares the source file's bytes against the local
	// file at localComparePath. Sources that cannot support this (FTP)
	// return ErrNotSupported.
	BytewiseCompare(ctx context.Context, relPath string, localComparePath string) (bool, error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Constructor builds a DataSource from a config `dir` string whose scheme
// has already been recognized by Register.
type Constructor func(dir string) (DataSource, error)

var registry = map[string]Constructor{}

// Register associates a URL scheme with a source constructor. An empty
// scheme ("") is the fallback used for dir strings that parse as plain
// filesystem paths. Concrete source packages call this from their init().
func Register(scheme string, construct Constructor) {
	registry[scheme] = construct
}

// Open resolves dir to a concrete DataSource using the scheme registry:
// "ftp://..." dispatches to the FTP constructor, anything else falls back
// to the mounted-directory constructor.
func Open(dir string) (DataSource, error) {
	scheme := ""
	if u, err := url.Parse(dir); err == nil && u.Scheme != "" && u.Host != "" {
		scheme = u.Scheme
	}
	construct, ok := registry[scheme]
	if !ok {
		construct, ok = registry[""]
		if !ok {
			return nil, fmt.Errorf("source: no source registered for scheme %q", scheme)
		}
	}
	return construct(dir)
}
