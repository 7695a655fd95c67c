// Package planner turns a merged entry sequence into an ordered action
// list, applying the mode/comparison policy described by the per-entry
// decision table.
package planner

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jonschz/frontdown/internal/model"
	"github.com/jonschz/frontdown/internal/source"
)

// Mode is the backup mode selecting which rows of the decision table fire.
type Mode int

const (
	ModeHardlink Mode = iota
	ModeMirror
	ModeSave
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "hardlink":
		return ModeHardlink, nil
	case "mirror":
		return ModeMirror, nil
	case "save":
		return ModeSave, nil
	default:
		return 0, &ErrUnknownMode{s}
	}
}

type ErrUnknownMode struct{ Value string }

func (e *ErrUnknownMode) Error() string { return "planner: unknown mode " + e.Value }

// Options bundles the policy knobs the decision table reads.
type Options struct {
	Mode                  Mode
	Versioned             bool
	CompareWithLastBackup bool
	CopyEmptyDirs         bool
	CompareMethods        []source.CompareMethod
}

// Plan evaluates the decision table over merged, in order, against a live
// source connection used for the (possibly expensive) FilesEq comparison,
// and returns the action list plus a flag recording whether the ambiguous
// "versioned & compare-with-last & mirror/save" combination was observed
// (so the caller can log a one-line config warning exactly once).
// compareDir is the absolute local path of this tree's compare tree: the
// chosen compare backup's subdirectory, or for a non-versioned run the
// target subdirectory itself; it is ignored when there is no compare tree.
func Plan(ctx context.Context, conn source.Connection, merged []model.MergedEntry, opts Options, compareDir string, stats *model.Statistics) (actions []model.Action, sawAmbiguousCombo bool) {
	var newDirRoot string
	inNewDir := false

	ambiguous := opts.Versioned && opts.CompareWithLastBackup && opts.Mode != ModeHardlink

	for _, e := range merged {
		switch {
		case e.InSource && !e.InCompare && e.IsDirectory && e.IsEmptyDir:
			if opts.CopyEmptyDirs {
				a := model.Action{Type: model.ActionCopy, IsDir: true, RelPath: e.RelPath, ModTime: e.ModTime, HTMLFlag: model.FlagEmptyDir}
				actions = append(actions, a)
				stats.AddPlanned(a, 0)
			}
			newDirRoot, inNewDir = resetNewDirRoot(e.RelPath, newDirRoot, inNewDir)

		case e.InSource && !e.InCompare && e.IsDirectory:
			a := model.Action{Type: model.ActionCopy, IsDir: true, RelPath: e.RelPath, ModTime: e.ModTime, HTMLFlag: model.FlagNewDir}
			actions = append(actions, a)
			stats.AddPlanned(a, 0)
			if !(inNewDir && under(e.RelPath, newDirRoot)) {
				newDirRoot = e.RelPath
			}
			inNewDir = true

		case e.InSource && !e.InCompare && !e.IsDirectory:
			flag := model.FlagNew
			if inNewDir && under(e.RelPath, newDirRoot) {
				flag = model.FlagInNewDir
			}
			a := model.Action{Type: model.ActionCopy, IsDir: false, RelPath: e.RelPath, ModTime: e.ModTime, HTMLFlag: flag}
			actions = append(actions, a)
			stats.AddPlanned(a, e.FileSize)

		case e.InSource && e.InCompare && e.IsDirectory && opts.Versioned && opts.CompareWithLastBackup:
			flag := model.FlagExistingDir
			if e.IsEmptyDir {
				flag = model.FlagEmptyDir
			}
			a := model.Action{Type: model.ActionCopy, IsDir: true, RelPath: e.RelPath, ModTime: e.ModTime, HTMLFlag: flag}
			actions = append(actions, a)
			stats.AddPlanned(a, 0)

		case e.InSource && e.InCompare && !e.IsDirectory && opts.Mode == ModeHardlink && filesEqFor(ctx, conn, e.FileMetadata, filepath.Join(compareDir, filepath.FromSlash(e.RelPath)), opts.CompareMethods):
			a := model.Action{Type: model.ActionHardlink, IsDir: false, RelPath: e.RelPath, ModTime: e.ModTime}
			actions = append(actions, a)
			stats.AddPlanned(a, e.FileSize)

		// Reaching this case in hardlink mode means the files differ. A
		// versioned mirror/save run writes a fresh directory, so it copies
		// every file; a non-versioned run copies only files that differ.
		case e.InSource && e.InCompare && !e.IsDirectory && (opts.Mode == ModeHardlink || opts.Versioned || !filesEqFor(ctx, conn, e.FileMetadata, filepath.Join(compareDir, filepath.FromSlash(e.RelPath)), opts.CompareMethods)):
			a := model.Action{Type: model.ActionCopy, IsDir: false, RelPath: e.RelPath, ModTime: e.ModTime, HTMLFlag: model.FlagModified}
			actions = append(actions, a)
			stats.AddPlanned(a, e.FileSize)

		case !e.InSource && e.InCompare && opts.Mode == ModeMirror && !(opts.CompareWithLastBackup && opts.Versioned):
			a := model.Action{Type: model.ActionDelete, IsDir: e.IsDirectory, RelPath: e.RelPath, ModTime: e.ModTime}
			actions = append(actions, a)
			stats.AddPlanned(a, e.FileSize)
		}
	}
	return actions, ambiguous
}

// resetNewDirRoot clears the in-new-dir state once an empty-directory entry
// that isn't itself nested under the current newDirRoot is encountered.
func resetNewDirRoot(relPath, newDirRoot string, inNewDir bool) (string, bool) {
	if inNewDir && under(relPath, newDirRoot) {
		return newDirRoot, inNewDir
	}
	return newDirRoot, false
}

func under(relPath, root string) bool {
	if root == "" {
		return false
	}
	return strings.HasPrefix(relPath, root+"/")
}

// filesEqFor delegates to source.FilesEq. It is declared as a seam so the
// planner's unit tests can stub compare results without a live connection.
var filesEqFor = func(ctx context.Context, conn source.Connection, sourceMeta model.FileMetadata, comparePath string, methods []source.CompareMethod) bool {
	return source.FilesEq(ctx, conn, sourceMeta, comparePath, methods)
}
