package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonschz/frontdown/internal/model"
)

// checkpointLedger is the forward-only diagnostic ledger described in
// SPEC_FULL.md §4.5: one JSON line per completed phase-1 action, appended
// to <targetRoot>/.progress.jsonl while a tree's phase 1 runs. It exists
// purely for post-mortem log analysis after a crash, grounded on the
// teacher's resume.go state file, generalized from "list of file paths
// processed" to "one structured record per action with its outcome". It
// is not a resume/replay feature; the spec reserves resumption as
// unspecified.
type checkpointLedger struct {
	f *os.File
}

type checkpointRecord struct {
	Tree    string    `json:"tree"`
	Type    string    `json:"type"`
	RelPath string    `json:"relPath"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

func newCheckpointLedger(targetRoot string) (*checkpointLedger, error) {
	f, err := os.OpenFile(filepath.Join(targetRoot, ".progress.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("job: open checkpoint ledger: %w", err)
	}
	return &checkpointLedger{f: f}, nil
}

// forTree returns a executor.Checkpoint-compatible recorder scoped to one
// tree's name, sharing the same underlying file.
func (l *checkpointLedger) forTree(treeName string) *treeCheckpoint {
	return &treeCheckpoint{ledger: l, tree: treeName}
}

func (l *checkpointLedger) close() error {
	return l.f.Close()
}

// remove deletes the ledger file; called once every tree's phase 1 has
// completed without a fatal error, since the ledger is only useful for
// diagnosing a crash mid-run.
func (l *checkpointLedger) remove(targetRoot string) {
	_ = os.Remove(filepath.Join(targetRoot, ".progress.jsonl"))
}

type treeCheckpoint struct {
	ledger *checkpointLedger
	tree   string
}

// Record implements executor.Checkpoint.
func (c *treeCheckpoint) Record(a model.Action, err error) {
	rec := checkpointRecord{
		Tree:    c.tree,
		Type:    a.Type.String(),
		RelPath: a.RelPath,
		At:      time.Now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	data, marshalErr := json.Marshal(rec)
	if marshalErr != nil {
		return
	}
	data = append(data, '\n')
	_, _ = c.ledger.f.Write(data)
}
