// Package scanmerge turns a source scan and a compare-tree scan into the
// single merged, ordered sequence the planner consumes.
package scanmerge

import (
	"context"
	"errors"

	"github.com/jonschz/frontdown/internal/model"
	"github.com/jonschz/frontdown/internal/pathorder"
	"github.com/jonschz/frontdown/internal/source"
)

// Collect drains a source connection's scan into an ordered slice,
// recording scanning errors into stats and logging them through onError.
// A connection-level fatal error (source.ErrConnectionLost) is not folded
// into the scan-error budget: it is reported through onError for the log,
// but also returned as Collect's error so the caller aborts the tree
// instead of continuing to plan against a truncated scan (§4.1, §7).
func Collect(ctx context.Context, conn source.Connection, excludeGlobs []string, stats *model.Statistics, onError func(relPath string, err error)) ([]model.FileMetadata, error) {
	var out []model.FileMetadata
	var fatalErr error
	ch, err := conn.Scan(ctx, excludeGlobs, func(relPath string, scanErr error) {
		if errors.Is(scanErr, source.ErrConnectionLost) {
			if fatalErr == nil {
				fatalErr = scanErr
			}
			onError(relPath, scanErr)
			return
		}
		stats.AddScanningError()
		onError(relPath, scanErr)
	})
	if err != nil {
		return nil, err
	}
	for fm := range ch {
		out = append(out, fm)
		stats.AddSourceEntry(fm.IsDirectory, fm.FileSize)
	}
	if fatalErr != nil {
		return out, fatalErr
	}
	return out, nil
}

// Merge aligns an ordered source scan S with a compare tree, scanned
// lazily through compareSeq, using the single linear-pass algorithm: an
// insertion cursor walks S while compare entries are consumed one at a
// time, so the whole operation is O(|S| + |compare|).
//
// compareSeq must yield entries in the same pathorder.Comparator ordering
// that produced S, or the insertion step mis-aligns.
func Merge(s []model.FileMetadata, compareSeq <-chan model.FileMetadata, order *pathorder.Comparator, stats *model.Statistics) []model.MergedEntry {
	merged := make([]model.MergedEntry, len(s))
	for i, fm := range s {
		merged[i] = model.MergedEntry{FileMetadata: fm, InSource: true}
	}

	i := 0
	for compareEntry := range compareSeq {
		stats.AddCompareEntry(compareEntry.IsDirectory, compareEntry.FileSize)

		for i < len(merged) && order.Less(merged[i].RelPath, compareEntry.RelPath) {
			i++
		}
		if i < len(merged) && merged[i].RelPath == compareEntry.RelPath {
			merged[i].InCompare = true
			i++
			continue
		}
		// Insert a compare-only entry at position i.
		merged = append(merged, model.MergedEntry{})
		copy(merged[i+1:], merged[i:])
		merged[i] = model.MergedEntry{FileMetadata: compareEntry, InCompare: true}
		i++
	}
	return merged
}
