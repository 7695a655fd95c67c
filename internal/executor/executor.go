// Package executor applies an ordered action list to a target directory:
// phase 1 performs file operations (copy, hardlink, delete), phase 2
// restores directory mtimes that phase 1's writes disturbed.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jonschz/frontdown/internal/model"
	"github.com/jonschz/frontdown/internal/source"
)

// Progress is the minimal sink the executor reports per-action progress
// to; the CLI's default implementation wraps a progressbar.ProgressBar,
// tests use a no-op.
type Progress interface {
	Add(n int)
}

type noopProgress struct{}

func (noopProgress) Add(int) {}

// NoopProgress is a Progress that discards all updates.
var NoopProgress Progress = noopProgress{}

// Checkpoint receives one call per completed phase-1 action, for the job
// controller's crash-diagnosis ledger. May be nil.
type Checkpoint interface {
	Record(a model.Action, err error)
}

// Execute runs both phases of a tree's action list against targetDir,
// using compareDir (if non-empty) as the hardlink source. actions is
// consumed in its original order for non-DELETE operations; DELETE
// operations within actions are additionally reordered for phase 1 (see
// reorderForPhase1) so directory deletions always follow their contents.
func Execute(ctx context.Context, conn source.Connection, actions []model.Action, targetDir, compareDir string, stats *model.Statistics, progress Progress, checkpoint Checkpoint) error {
	if progress == nil {
		progress = NoopProgress
	}
	phase1 := reorderForPhase1(actions)
	for _, a := range phase1 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		err := applyAction(ctx, conn, a, targetDir, compareDir, stats)
		if checkpoint != nil {
			checkpoint.Record(a, err)
		}
		if err != nil {
			if isFatal(err) {
				return err
			}
			log.Printf("action %s %s: %v", a.Type, a.RelPath, err)
			stats.AddBackupError()
		}
		progress.Add(1)
	}

	for _, a := range actions {
		if a.Type == model.ActionDelete || !a.IsDir {
			continue
		}
		target := filepath.Join(targetDir, filepath.FromSlash(a.RelPath))
		if err := os.Chtimes(target, a.ModTime, a.ModTime); err != nil {
			log.Printf("restore mtime %s: %v", a.RelPath, err)
			stats.AddBackupError()
		}
	}
	return nil
}

// reorderForPhase1 keeps non-DELETE actions in their original (top-down)
// order and appends DELETE actions in reverse (bottom-up) order, so a
// directory delete never runs before the deletes of its own contents.
func reorderForPhase1(actions []model.Action) []model.Action {
	out := make([]model.Action, 0, len(actions))
	for _, a := range actions {
		if a.Type != model.ActionDelete {
			out = append(out, a)
		}
	}
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i].Type == model.ActionDelete {
			out = append(out, actions[i])
		}
	}
	return out
}

func applyAction(ctx context.Context, conn source.Connection, a model.Action, targetDir, compareDir string, stats *model.Statistics) error {
	target := filepath.Join(targetDir, filepath.FromSlash(a.RelPath))
	switch a.Type {
	case model.ActionCopy:
		if a.IsDir {
			return os.MkdirAll(target, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := conn.CopyFile(ctx, a.RelPath, a.ModTime, target); err != nil {
			return err
		}
		info, err := os.Stat(target)
		if err != nil {
			return err
		}
		stats.AddCopied(info.Size())
		return nil

	case model.ActionHardlink:
		if compareDir == "" {
			return fmt.Errorf("hardlink %s: no compare backup available", a.RelPath)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		compareFile := filepath.Join(compareDir, filepath.FromSlash(a.RelPath))
		if err := os.Link(compareFile, target); err != nil {
			return err
		}
		info, err := os.Stat(target)
		if err != nil {
			return err
		}
		stats.AddHardlinked(info.Size())
		return nil

	case model.ActionDelete:
		return deleteAction(a, target, stats)

	default:
		return fmt.Errorf("unknown action type %v", a.Type)
	}
}

func deleteAction(a model.Action, target string, stats *model.Statistics) error {
	if a.IsDir {
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		stats.AddDeleted(0)
		return nil
	}
	info, err := os.Stat(target)
	var size int64
	if err == nil {
		size = info.Size()
		if info.Mode().Perm()&0o200 == 0 {
			if chErr := os.Chmod(target, info.Mode().Perm()|0o200); chErr != nil {
				return chErr
			}
		}
	}
	if err := os.Remove(target); err != nil {
		return err
	}
	stats.AddDeleted(size)
	return nil
}

func isFatal(err error) bool {
	return errors.Is(err, source.ErrConnectionLost)
}
