package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jonschz/frontdown/internal/model"
)

// writeMetadata persists meta to <dir>/metadata.json, overwriting any
// existing file. Called once with Successful=false before any mutation,
// and once more with the final verdict after execution (§4.5 steps 6/13).
func writeMetadata(dir string, meta model.BackupMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("job: marshal metadata: %w", err)
	}
	path := filepath.Join(dir, "metadata.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("job: write %s: %w", path, err)
	}
	return nil
}

func readMetadata(dir string) (model.BackupMetadata, error) {
	path := filepath.Join(dir, "metadata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return model.BackupMetadata{}, err
	}
	var meta model.BackupMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return model.BackupMetadata{}, fmt.Errorf("job: parse %s: %w", path, err)
	}
	return meta, nil
}

// findMostRecentSuccessfulBackup scans backupRootDir for direct child
// directories other than excludeDir, parses each metadata.json, and
// returns the absolute path of the most recent (by Started, descending)
// directory with Successful=true. It returns "" with no error if none
// qualifies — absence of a prior successful backup is a warning
// condition, not a failure, per §4.5 step 5.
func findMostRecentSuccessfulBackup(backupRootDir, excludeDir string, onSkipped func(dir string, reason string)) (string, error) {
	entries, err := os.ReadDir(backupRootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("job: list %s: %w", backupRootDir, err)
	}

	type candidate struct {
		dir     string
		started int64
	}
	var candidates []candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		full := filepath.Join(backupRootDir, e.Name())
		if full == excludeDir {
			continue
		}
		meta, err := readMetadata(full)
		if err != nil {
			if onSkipped != nil {
				onSkipped(full, fmt.Sprintf("unreadable metadata.json: %v", err))
			}
			continue
		}
		if !meta.Successful {
			if onSkipped != nil {
				onSkipped(full, "not marked successful")
			}
			continue
		}
		candidates = append(candidates, candidate{dir: full, started: meta.Started})
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].started > candidates[j].started })
	return candidates[0].dir, nil
}
