// Package job implements the job controller: it discovers the most
// recent successful prior backup, allocates a unique dated target
// directory, persists metadata before and after the run, aggregates
// statistics, and enforces the error-budget and disk-space policies
// described in SPEC_FULL.md §4.5.
package job

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"

	"github.com/jonschz/frontdown/internal/config"
	"github.com/jonschz/frontdown/internal/diskspace"
	"github.com/jonschz/frontdown/internal/executor"
	"github.com/jonschz/frontdown/internal/model"
	"github.com/jonschz/frontdown/internal/pathorder"
	"github.com/jonschz/frontdown/internal/planner"
	"github.com/jonschz/frontdown/internal/prompt"
	"github.com/jonschz/frontdown/internal/report"
	"github.com/jonschz/frontdown/internal/scanmerge"
	"github.com/jonschz/frontdown/internal/source"
)

// Sentinel errors making up the job-controller portion of the error
// taxonomy (§7).
var (
	ErrScanBudgetExceeded = fmt.Errorf("job: scan error budget exceeded")
	ErrAborted            = fmt.Errorf("job: aborted")
	ErrTargetUnavailable  = fmt.Errorf("job: target unavailable")
)

// Options bundles the collaborators a Run call needs beyond Config: the
// run's clock (so tests can pin it), a Prompter for the "prompt" policies,
// and a progress factory for the CLI's interactive bar. All are optional;
// nil selects a sensible default or a no-op.
type Options struct {
	Now        func() time.Time
	Prompter   prompt.Prompter
	NewProgress func(description string, total int) executor.Progress
}

// Result is what Run returns: whether the backup succeeded and the final
// statistics, for the caller (CLI, tests) to report on.
type Result struct {
	Successful bool
	TargetRoot string
	Stats      model.Statistics
}

// Run executes one full backup job against cfg and returns a non-nil
// error for conditions that should produce a non-zero process exit:
// budget overruns, aborted prompts, an unavailable source under "abort"
// (wrapping ErrTargetUnavailable), a full target drive under "abort", a
// lost source connection, and setup failures (invalid mode or compare
// method, an unopenable source, target root, log file, metadata file or
// checkpoint ledger). Per-entry and per-action errors are recovered
// internally and only show up in Result.Stats / the non-successful
// metadata flag.
func Run(ctx context.Context, cfg config.Config, opts Options) (Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = prompt.Terminal{}
	}
	newProgress := opts.NewProgress
	if newProgress == nil {
		newProgress = func(string, int) executor.Progress { return executor.NoopProgress }
	}

	mode, err := planner.ParseMode(cfg.Mode)
	if err != nil {
		return Result{}, err
	}
	methods := make([]source.CompareMethod, 0, len(cfg.CompareMethod))
	for _, m := range cfg.CompareMethod {
		cm, err := source.ParseCompareMethod(m)
		if err != nil {
			return Result{}, err
		}
		methods = append(methods, cm)
	}

	runID := uuid.NewString()

	sources, err := openSources(cfg)
	if err != nil {
		return Result{}, err
	}

	if err := checkAvailability(ctx, cfg, sources, prompter); err != nil {
		return Result{}, err
	}

	targetRoot, err := allocateTargetRoot(cfg, now())
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(targetRoot, 0o755); err != nil {
		return Result{}, fmt.Errorf("job: create target root: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(targetRoot, "log.txt"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("job: open log.txt: %w", err)
	}
	defer logFile.Close()
	log.SetOutput(newLogWriter(logFile))
	log.Printf("[run %s] starting backup, target=%s", runID, targetRoot)

	var compareBackup string
	if cfg.Versioned && cfg.CompareWithLastBackup {
		compareBackup, err = findMostRecentSuccessfulBackup(cfg.BackupRootDir, targetRoot, func(dir, reason string) {
			log.Printf("[run %s] skipping %s as compare backup: %s", runID, dir, reason)
		})
		if err != nil {
			return Result{}, err
		}
		if compareBackup == "" {
			color.New(color.FgYellow).Fprintf(os.Stderr, "[run %s] warning: no successful prior backup found, backing up fresh\n", runID)
			log.Printf("[run %s] warning: no successful prior backup found", runID)
		}
	}

	var compareBackupPtr *string
	if compareBackup != "" {
		compareBackupPtr = &compareBackup
	}
	descriptors := make([]model.SourceDescriptor, len(cfg.Sources))
	for i, s := range cfg.Sources {
		descriptors[i] = model.SourceDescriptor{Name: s.Name, Dir: s.Dir, ExcludePaths: s.ExcludePaths}
	}
	meta := model.BackupMetadata{
		Name:            filepath.Base(targetRoot),
		Successful:      false,
		Started:         now().Unix(),
		Sources:         descriptors,
		CompareBackup:   compareBackupPtr,
		BackupDirectory: targetRoot,
	}
	if err := writeMetadata(targetRoot, meta); err != nil {
		return Result{}, err
	}

	stats := &model.Statistics{}
	order := pathorder.Default()
	planOpts := planner.Options{
		Mode:                  mode,
		Versioned:             cfg.Versioned,
		CompareWithLastBackup: cfg.CompareWithLastBackup,
		CopyEmptyDirs:         cfg.CopyEmptyDirs,
		CompareMethods:        methods,
	}

	type builtTree struct {
		name       string
		conn       source.Connection
		targetDir  string
		compareDir string
		actions    []model.Action
	}
	var trees []builtTree
	warnedAmbiguous := false

	for i, s := range cfg.Sources {
		ds := sources[i]
		if ds == nil {
			continue // dropped under source_unavailable_action=proceed
		}
		conn, err := ds.Connect(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("job: connect source %s: %w", s.Name, err)
		}

		targetDir := filepath.Join(targetRoot, s.Name)
		var compareDir string
		if compareBackup != "" {
			compareDir = filepath.Join(compareBackup, s.Name)
		} else if !cfg.Versioned {
			// A non-versioned target is updated in place, so it is its own
			// compare tree.
			compareDir = targetDir
		}

		scanned, err := scanmerge.Collect(ctx, conn, s.ExcludePaths, stats, func(relPath string, scanErr error) {
			log.Printf("[run %s] scan error in %s at %q: %v", runID, s.Name, relPath, scanErr)
		})
		if err != nil {
			conn.Close()
			return Result{}, fmt.Errorf("job: scan source %s: %w", s.Name, err)
		}

		var merged []model.MergedEntry
		if compareDir != "" {
			compareConn, err := source.NewMounted(compareDir).Connect(ctx)
			if err != nil {
				merged = directOnly(scanned)
			} else {
				compareCh, err := compareConn.Scan(ctx, nil, func(string, error) {})
				if err != nil {
					compareConn.Close()
					merged = directOnly(scanned)
				} else {
					merged = scanmerge.Merge(scanned, compareCh, order, stats)
					compareConn.Close()
				}
			}
		} else {
			merged = directOnly(scanned)
		}

		actions, ambiguous := planner.Plan(ctx, conn, merged, planOpts, compareDir, stats)
		if ambiguous && !warnedAmbiguous {
			log.Printf("[run %s] warning: versioned+compare-with-last-backup with mode=%s retains directory copies but emits no hardlinks", runID, cfg.Mode)
			warnedAmbiguous = true
		}

		trees = append(trees, builtTree{name: s.Name, conn: conn, targetDir: targetDir, compareDir: compareDir, actions: actions})
	}

	if cfg.SaveActionFile || cfg.SaveActionHTML {
		var records []report.TreeActions
		for _, t := range trees {
			var srcDir string
			for _, s := range cfg.Sources {
				if s.Name == t.name {
					srcDir = s.Dir
				}
			}
			records = append(records, report.TreeActions{
				Name: t.name, Source: srcDir, TargetDir: t.targetDir, CompareDir: t.compareDir,
				Actions: report.ToRecords(t.actions),
			})
		}
		if cfg.SaveActionFile {
			if err := report.WriteJSON(filepath.Join(targetRoot, "actions.json"), records); err != nil {
				log.Printf("[run %s] %v", runID, err)
			}
		}
		if cfg.SaveActionHTML {
			snap := stats.Snapshot()
			totals := report.Totals{
				RunID: runID, Started: now(), Successful: false,
				FilesCopied: snap.FilesToCopy, BytesCopied: snap.BytesToCopy,
				FilesLinked: snap.FilesToHardlink, BytesLinked: snap.BytesToHardlink,
				FilesDeleted: snap.FilesToDelete, BytesDeleted: snap.BytesToDelete,
			}
			if err := report.WriteHTML(filepath.Join(targetRoot, "actions.html"), totals, records); err != nil {
				log.Printf("[run %s] %v", runID, err)
			}
		}
	}

	snap := stats.Snapshot()
	if cfg.MaxScanningErrors >= 0 && snap.ScanningErrors > int64(cfg.MaxScanningErrors) {
		for _, t := range trees {
			t.conn.Close()
		}
		writeMetadata(targetRoot, finalize(meta, false))
		return Result{TargetRoot: targetRoot, Stats: snap}, ErrScanBudgetExceeded
	}

	if cfg.ApplyActions {
		if err := checkDiskSpace(targetRoot, snap.BytesToCopy, cfg.TargetDriveFullAction, prompter); err != nil {
			for _, t := range trees {
				t.conn.Close()
			}
			writeMetadata(targetRoot, finalize(meta, false))
			return Result{TargetRoot: targetRoot, Stats: snap}, err
		}

		ledger, err := newCheckpointLedger(targetRoot)
		if err != nil {
			return Result{}, err
		}

		for _, t := range trees {
			progressBar := newProgress(fmt.Sprintf("backing up %s", t.name), len(t.actions))
			err := executor.Execute(ctx, t.conn, t.actions, t.targetDir, t.compareDir, stats, progressBar, ledger.forTree(t.name))
			t.conn.Close()
			if err != nil {
				ledger.close()
				writeMetadata(targetRoot, finalize(meta, false))
				return Result{TargetRoot: targetRoot, Stats: stats.Snapshot()}, fmt.Errorf("job: execute %s: %w", t.name, err)
			}
		}
		ledger.close()
		ledger.remove(targetRoot)
	} else {
		for _, t := range trees {
			t.conn.Close()
		}
	}

	finalStats := stats.Snapshot()
	successful := cfg.ApplyActions && (cfg.MaxBackupErrors < 0 || finalStats.BackupErrors <= int64(cfg.MaxBackupErrors))
	if err := writeMetadata(targetRoot, finalize(meta, successful)); err != nil {
		return Result{}, err
	}
	log.Printf("[run %s] finished, successful=%v", runID, successful)

	result := Result{Successful: successful, TargetRoot: targetRoot, Stats: finalStats}
	if !successful && cfg.ApplyActions {
		return result, fmt.Errorf("job: backup error budget exceeded")
	}
	return result, nil
}

func finalize(meta model.BackupMetadata, successful bool) model.BackupMetadata {
	meta.Successful = successful
	return meta
}

func directOnly(scanned []model.FileMetadata) []model.MergedEntry {
	out := make([]model.MergedEntry, len(scanned))
	for i, fm := range scanned {
		out[i] = model.MergedEntry{FileMetadata: fm, InSource: true}
	}
	return out
}

func openSources(cfg config.Config) ([]source.DataSource, error) {
	out := make([]source.DataSource, len(cfg.Sources))
	for i, s := range cfg.Sources {
		ds, err := source.Open(s.Dir)
		if err != nil {
			return nil, fmt.Errorf("job: open source %s: %w", s.Name, err)
		}
		out[i] = ds
	}
	return out, nil
}

// checkAvailability implements §4.5 step 2: source_unavailable_action
// governs what happens when a configured source isn't reachable right
// now. Unavailable sources are nilled out of ds in "proceed" mode so the
// caller's loop skips them.
func checkAvailability(ctx context.Context, cfg config.Config, ds []source.DataSource, prompter prompt.Prompter) error {
	switch cfg.SourceUnavailableAction {
	case "abort":
		for i, s := range cfg.Sources {
			if !ds[i].Available(ctx) {
				return fmt.Errorf("job: source %s unavailable: %w", s.Name, ErrTargetUnavailable)
			}
		}
	case "proceed":
		for i, s := range cfg.Sources {
			if !ds[i].Available(ctx) {
				log.Printf("source %s unavailable, proceeding without it", s.Name)
				ds[i] = nil
			}
		}
	case "prompt":
		for i, s := range cfg.Sources {
			for !ds[i].Available(ctx) {
				proceed, err := prompter.Confirm(fmt.Sprintf("Source %s is unavailable. Retry?", s.Name))
				if err != nil {
					return err
				}
				if !proceed {
					return fmt.Errorf("job: source %s unavailable: %w", s.Name, ErrAborted)
				}
			}
		}
	}
	return nil
}

// allocateTargetRoot implements §4.5 step 3: versioned mode formats
// VersionName with strftime and appends a "_2", "_3", ... suffix on
// collision until a fresh directory name is found; non-versioned mode
// backs up directly into BackupRootDir.
func allocateTargetRoot(cfg config.Config, now time.Time) (string, error) {
	if !cfg.Versioned {
		return cfg.BackupRootDir, nil
	}
	base, err := strftime.Format(cfg.VersionName, now)
	if err != nil {
		return "", fmt.Errorf("job: format version_name %q: %w", cfg.VersionName, err)
	}
	candidate := filepath.Join(cfg.BackupRootDir, base)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}
	for n := 2; ; n++ {
		candidate = filepath.Join(cfg.BackupRootDir, fmt.Sprintf("%s_%d", base, n))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}

// checkDiskSpace implements §4.5 step 10.
func checkDiskSpace(targetRoot string, bytesToCopy int64, action string, prompter prompt.Prompter) error {
	free, err := diskspace.Free(targetRoot)
	if err != nil {
		return fmt.Errorf("job: check free space: %w", err)
	}
	if free >= uint64(bytesToCopy) {
		return nil
	}
	switch action {
	case "proceed":
		log.Printf("warning: target drive may be full (%d bytes free, %d bytes to copy), proceeding anyway", free, bytesToCopy)
		return nil
	case "prompt":
		ok, err := prompter.Confirm(fmt.Sprintf("Target drive may be full (%d bytes free, %d needed). Proceed anyway?", free, bytesToCopy))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("job: target drive full: %w", ErrAborted)
		}
		return nil
	default: // abort
		return fmt.Errorf("job: target drive full (%d bytes free, %d bytes to copy)", free, bytesToCopy)
	}
}

// newLogWriter fans out log output to both the per-run log file and the
// terminal (stderr). Lines are written as-is to both; no coloring is
// applied here.
func newLogWriter(f *os.File) *multiWriter {
	return &multiWriter{file: f}
}

type multiWriter struct{ file *os.File }

func (m *multiWriter) Write(p []byte) (int, error) {
	m.file.Write(p)
	return os.Stderr.Write(p)
}
