package job

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonschz/frontdown/internal/config"
)

func baseConfig(t *testing.T, srcDir, backupRoot string) config.Config {
	t.Helper()
	return config.Config{
		Sources:                 []config.SourceConfig{{Name: "docs", Dir: srcDir}},
		BackupRootDir:           backupRoot,
		Mode:                    "hardlink",
		Versioned:               true,
		VersionName:             "run",
		CompareWithLastBackup:   true,
		CompareMethod:           []string{"moddate", "size"},
		MaxScanningErrors:       -1,
		MaxBackupErrors:         -1,
		TargetDriveFullAction:   "abort",
		SourceUnavailableAction: "abort",
		ApplyActions:            true,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// S1: fresh backup with no prior run copies every file.
func TestRunFreshBackupCopiesEverything(t *testing.T) {
	srcDir := t.TempDir()
	backupRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig(t, srcDir, backupRoot)
	res, err := Run(context.Background(), cfg, Options{Now: fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Successful {
		t.Fatalf("expected successful run, stats=%+v", res.Stats)
	}
	if res.Stats.FilesCopied != 1 {
		t.Errorf("expected 1 file copied, got %d", res.Stats.FilesCopied)
	}
	data, err := os.ReadFile(filepath.Join(res.TargetRoot, "docs", "a.txt"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("expected copied file content, got %q, err=%v", data, err)
	}
}

// S2: an unchanged incremental run hardlinks instead of copying, and the
// hardlinked file shares an inode with the prior backup's copy.
func TestRunUnchangedIncrementalHardlinks(t *testing.T) {
	srcDir := t.TempDir()
	backupRoot := t.TempDir()
	mtime := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	path := filepath.Join(srcDir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig(t, srcDir, backupRoot)
	first, err := Run(context.Background(), cfg, Options{Now: fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	cfg2 := baseConfig(t, srcDir, backupRoot)
	cfg2.VersionName = "run2"
	second, err := Run(context.Background(), cfg2, Options{Now: fixedClock(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Stats.FilesHardlinked != 1 {
		t.Errorf("expected 1 hardlinked file on unchanged rerun, got %d (stats=%+v)", second.Stats.FilesHardlinked, second.Stats)
	}
	if second.Stats.FilesCopied != 0 {
		t.Errorf("expected 0 copies on unchanged rerun, got %d", second.Stats.FilesCopied)
	}

	firstInfo, err := os.Stat(filepath.Join(first.TargetRoot, "docs", "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	secondInfo, err := os.Stat(filepath.Join(second.TargetRoot, "docs", "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(firstInfo, secondInfo) {
		t.Errorf("expected hardlinked backups to share an inode")
	}
}

// S3: a modified file is re-copied rather than hardlinked on the next run.
func TestRunModifiedFileIsRecopied(t *testing.T) {
	srcDir := t.TempDir()
	backupRoot := t.TempDir()
	path := filepath.Join(srcDir, "a.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig(t, srcDir, backupRoot)
	if _, err := Run(context.Background(), cfg, Options{Now: fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Modify with a distinct mtime and size so the comparator sees a change.
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := os.WriteFile(path, []byte("v2-longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	cfg2 := baseConfig(t, srcDir, backupRoot)
	cfg2.VersionName = "run2"
	second, err := Run(context.Background(), cfg2, Options{Now: fixedClock(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Stats.FilesCopied != 1 {
		t.Errorf("expected modified file to be recopied, got %d copies", second.Stats.FilesCopied)
	}
	data, err := os.ReadFile(filepath.Join(second.TargetRoot, "docs", "a.txt"))
	if err != nil || string(data) != "v2-longer" {
		t.Fatalf("expected updated content in new backup, got %q, err=%v", data, err)
	}
}

// S4: mirror mode deletes files from the target that disappeared from source.
func TestRunMirrorModeDeletesRemovedFile(t *testing.T) {
	srcDir := t.TempDir()
	backupRoot := t.TempDir()
	keepPath := filepath.Join(srcDir, "keep.txt")
	goingPath := filepath.Join(srcDir, "going.txt")
	if err := os.WriteFile(keepPath, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(goingPath, []byte("going"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig(t, srcDir, backupRoot)
	cfg.Mode = "mirror"
	cfg.Versioned = false
	cfg.CompareWithLastBackup = false
	if _, err := Run(context.Background(), cfg, Options{Now: fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	if err := os.Remove(goingPath); err != nil {
		t.Fatal(err)
	}

	cfg2 := baseConfig(t, srcDir, backupRoot)
	cfg2.Mode = "mirror"
	cfg2.Versioned = false
	cfg2.CompareWithLastBackup = false
	res, err := Run(context.Background(), cfg2, Options{Now: fixedClock(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(res.TargetRoot, "docs", "going.txt")); !os.IsNotExist(err) {
		t.Errorf("expected going.txt to be removed from mirror target, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(res.TargetRoot, "docs", "keep.txt")); err != nil {
		t.Errorf("expected keep.txt to remain in mirror target: %v", err)
	}
}

// S5: exceeding the scanning error budget fails the run without applying
// any actions, even though ApplyActions is set.
func TestRunScanBudgetExceeded(t *testing.T) {
	srcDir := t.TempDir()
	backupRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	// An unreadable subdirectory makes the scan surface a per-entry error
	// without failing the whole Scan call outright.
	unreadable := filepath.Join(srcDir, "locked")
	if err := os.Mkdir(unreadable, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(unreadable, 0o755) })
	if os.Geteuid() == 0 {
		t.Skip("running as root, directory permissions are not enforced")
	}

	cfg := baseConfig(t, srcDir, backupRoot)
	cfg.MaxScanningErrors = 0

	res, err := Run(context.Background(), cfg, Options{Now: fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))})
	if err == nil {
		t.Fatalf("expected scan budget error, got success with stats=%+v", res.Stats)
	}
}

// S6: under the "abort" policy, the disk-space check that Run performs
// before executing anything rejects a request larger than the free space.
func TestRunTargetDriveFullAborts(t *testing.T) {
	srcDir := t.TempDir()
	backupRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig(t, srcDir, backupRoot)
	cfg.TargetDriveFullAction = "abort"

	// diskspace.Free reports real free space; we can't synthesize a full
	// disk in a unit test, so this scenario is exercised via the
	// checkDiskSpace helper directly instead of a full Run.
	err := checkDiskSpace(backupRoot, 1<<62, "abort", nil)
	if err == nil {
		t.Fatalf("expected checkDiskSpace to reject an impossibly large request")
	}
}

// A scan-only dry run (ApplyActions=false) must never mark the backup
// successful, even though zero backup errors occurred: nothing was
// actually written, so a later run must not be able to pick this
// metadata.json as its compare backup (§4.5 step 13).
func TestRunDryRunNeverSuccessful(t *testing.T) {
	srcDir := t.TempDir()
	backupRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig(t, srcDir, backupRoot)
	cfg.ApplyActions = false

	res, err := Run(context.Background(), cfg, Options{Now: fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))})
	// A dry run is a deliberate preview, not a budget overrun, abort, or
	// unavailable target (§6 exit behavior), so it is not itself an error
	// condition even though it never marks Successful=true.
	if err != nil {
		t.Fatalf("expected a dry run not to return an error, got %v", err)
	}
	if res.Successful {
		t.Fatalf("expected dry run to be marked unsuccessful, got Successful=true")
	}
	if _, statErr := os.Stat(filepath.Join(res.TargetRoot, "docs", "a.txt")); statErr == nil {
		t.Fatalf("expected dry run not to have copied any file")
	}

	meta, err := readMetadata(res.TargetRoot)
	if err != nil {
		t.Fatalf("readMetadata: %v", err)
	}
	if meta.Successful {
		t.Fatalf("expected metadata.json to record successful=false for a dry run")
	}

	compare, err := findMostRecentSuccessfulBackup(backupRoot, "", func(string, string) {})
	if err != nil {
		t.Fatalf("findMostRecentSuccessfulBackup: %v", err)
	}
	if compare != "" {
		t.Fatalf("expected the dry run's metadata.json to be ineligible as a compare backup, got %q", compare)
	}
}
