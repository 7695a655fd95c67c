package source

import (
	"context"
	"log"
	"os"

	"github.com/jonschz/frontdown/internal/model"
)

// FilesEq applies methods in order against the source entry and the local
// compare-backup file at comparePath, returning true iff every one of them
// reports equality. Any error along the way is logged and treated as
// inequality: a comparator that can't prove sameness must not cause a
// hardlink. The compare backup is always a local, previously-completed
// backup directory, so comparePath is always resolved via os.Stat rather
// than through the (possibly remote) source Connection.
func FilesEq(ctx context.Context, conn Connection, sourceMeta model.FileMetadata, comparePath string, methods []CompareMethod) bool {
	var compareInfo os.FileInfo
	statCompare := func() (os.FileInfo, error) {
		if compareInfo != nil {
			return compareInfo, nil
		}
		info, err := os.Stat(comparePath)
		if err == nil {
			compareInfo = info
		}
		return info, err
	}

	for _, m := range methods {
		switch m {
		case CompareModDate:
			info, err := statCompare()
			if err != nil {
				log.Printf("compare %s: %v", sourceMeta.RelPath, err)
				return false
			}
			if !model.ModTimeEqual(sourceMeta.ModTime, info.ModTime()) {
				return false
			}
		case CompareSize:
			info, err := statCompare()
			if err != nil {
				log.Printf("compare %s: %v", sourceMeta.RelPath, err)
				return false
			}
			if sourceMeta.FileSize != info.Size() {
				return false
			}
		case CompareBytes:
			eq, err := conn.BytewiseCompare(ctx, sourceMeta.RelPath, comparePath)
			if err != nil {
				if err == ErrNotSupported {
					log.Printf("compare %s: bytewise comparison not supported by this source, treating as changed", sourceMeta.RelPath)
				} else {
					log.Printf("compare %s: %v", sourceMeta.RelPath, err)
				}
				return false
			}
			if !eq {
				return false
			}
		}
	}
	return true
}
