package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/jonschz/frontdown/internal/model"
	"github.com/jonschz/frontdown/internal/pathorder"
)

func init() {
	Register("ftp", func(dir string) (DataSource, error) {
		return NewFTP(dir)
	})
}

// FTP is the DataSource for a remote FTP server, addressed as
// ftp://[user[:password]@]host[:port][/path].
type FTP struct {
	addr     string
	user     string
	password string
	rootPath string
	original string
}

// NewFTP parses an ftp:// dir string into connection parameters. A missing
// user/password defaults to the conventional "anonymous" login; a missing
// port defaults to 21; a missing path selects the server's default working
// directory.
func NewFTP(dir string) (*FTP, error) {
	u, err := url.Parse(dir)
	if err != nil || u.Scheme != "ftp" || u.Host == "" {
		return nil, fmt.Errorf("source: invalid ftp dir %q", dir)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "21"
	}
	user := "anonymous"
	password := "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			password = p
		}
	}
	rootPath := strings.TrimPrefix(u.Path, "/")
	return &FTP{
		addr:     host + ":" + port,
		user:     user,
		password: password,
		rootPath: rootPath,
		original: dir,
	}, nil
}

func (f *FTP) Describe() string { return f.original }

func (f *FTP) Available(ctx context.Context) bool {
	conn, err := f.dial(ctx)
	if err != nil {
		return false
	}
	defer conn.Quit()
	return conn.NoOp() == nil
}

func (f *FTP) dial(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(f.addr, ftp.DialWithContext(ctx))
	if err != nil {
		return nil, err
	}
	if err := conn.Login(f.user, f.password); err != nil {
		conn.Quit()
		return nil, err
	}
	return conn, nil
}

func (f *FTP) Connect(ctx context.Context) (Connection, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if f.rootPath != "" {
		if err := conn.ChangeDir(f.rootPath); err != nil {
			conn.Quit()
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}
	return &ftpConn{conn: conn, order: pathorder.Default()}, nil
}

type ftpConn struct {
	conn  *ftp.ServerConn
	order *pathorder.Comparator
}

func (c *ftpConn) Close() error {
	return c.conn.Quit()
}

// Scan lists directories recursively with MLSD, requesting the facts
// size,modify,type. EOF on the control channel (the underlying library
// surfaces it as io.EOF / io.ErrUnexpectedEOF from the data connection) is
// propagated as ErrConnectionLost: it is fatal for the tree, not a
// per-entry ScanError. Once hit, the walk unwinds without visiting any
// further siblings or subdirectories, since the connection is dead.
func (c *ftpConn) Scan(ctx context.Context, excludeGlobs []string, onError func(relPath string, err error)) (<-chan model.FileMetadata, error) {
	out := make(chan model.FileMetadata)
	go func() {
		defer close(out)
		var fatal error
		c.walk(ctx, "", excludeGlobs, onError, out, &fatal)
	}()
	return out, nil
}

func (c *ftpConn) walk(ctx context.Context, relDir string, excludeGlobs []string, onError func(string, error), out chan<- model.FileMetadata, fatal *error) {
	if *fatal != nil {
		return
	}
	entries, err := c.conn.List(relDir)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			*fatal = fmt.Errorf("%w: %v", ErrConnectionLost, err)
			onError(relDir, *fatal)
			return
		}
		onError(relDir, err)
		return
	}

	names := make([]string, 0, len(entries))
	byName := make(map[string]*ftp.Entry, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		names = append(names, e.Name)
		byName[e.Name] = e
	}
	sort.Slice(names, func(i, j int) bool { return c.order.Less(names[i], names[j]) })

	for _, name := range names {
		if *fatal != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		e := byName[name]
		relPath := name
		if relDir != "" {
			relPath = relDir + "/" + name
		}
		if isExcluded(relPath, excludeGlobs) {
			continue
		}
		switch e.Type {
		case ftp.EntryTypeFolder:
			children, err := c.conn.List(relPath)
			if err != nil && (err == io.EOF || err == io.ErrUnexpectedEOF) {
				*fatal = fmt.Errorf("%w: %v", ErrConnectionLost, err)
				onError(relPath, *fatal)
				return
			}
			isEmpty := len(children) == 0
			out <- model.FileMetadata{
				RelPath:     relPath,
				IsDirectory: true,
				ModTime:     e.Time.UTC(),
				IsEmptyDir:  isEmpty,
			}
			c.walk(ctx, relPath, excludeGlobs, onError, out, fatal)
		case ftp.EntryTypeFile:
			out <- model.FileMetadata{
				RelPath:     relPath,
				IsDirectory: false,
				ModTime:     e.Time.UTC(),
				FileSize:    int64(e.Size),
			}
		default:
			// symlinks and other MLSD types are neither file nor folder
			// facts this backup engine understands; skip them.
		}
	}
}

func (c *ftpConn) CopyFile(ctx context.Context, relPath string, modTime time.Time, toAbsPath string) error {
	resp, err := c.conn.Retr(relPath)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		return fmt.Errorf("ftp retr %s: %w", relPath, err)
	}
	defer resp.Close()

	tmpDst := toAbsPath + ".tmp"
	out, err := os.Create(tmpDst)
	if err != nil {
		return fmt.Errorf("ftp retr %s: %w", relPath, err)
	}
	if _, err := io.Copy(out, resp); err != nil {
		out.Close()
		os.Remove(tmpDst)
		return fmt.Errorf("ftp retr %s: %w", relPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpDst)
		return fmt.Errorf("ftp retr %s: %w", relPath, err)
	}
	if err := os.Chtimes(tmpDst, modTime, modTime); err != nil {
		os.Remove(tmpDst)
		return fmt.Errorf("ftp retr %s: set mtime: %w", relPath, err)
	}
	if err := os.Rename(tmpDst, toAbsPath); err != nil {
		os.Remove(tmpDst)
		return fmt.Errorf("ftp retr %s: %w", relPath, err)
	}
	return nil
}

// BytewiseCompare is not supported over FTP: a full-content re-download for
// every unchanged file would defeat the purpose of incremental backup over
// a (typically slow) remote link.
func (c *ftpConn) BytewiseCompare(ctx context.Context, relPath string, localComparePath string) (bool, error) {
	return false, ErrNotSupported
}
