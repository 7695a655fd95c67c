// Package progress wraps github.com/schollz/progressbar/v3 behind the
// executor's small Progress interface, matching the teacher's own bar
// styling (backup.go) for the CLI's default, interactive run.
package progress

import (
	"github.com/schollz/progressbar/v3"

	"github.com/jonschz/frontdown/internal/executor"
)

// bar adapts *progressbar.ProgressBar (whose Add returns an error) to the
// executor's Progress interface (which does not): a progress update is
// cosmetic, never a reason to abort a backup.
type bar struct {
	*progressbar.ProgressBar
}

func (b bar) Add(n int) {
	_ = b.ProgressBar.Add(n)
}

// New returns a terminal progress bar for total actions, styled the way
// the teacher's planning/execution bars are: a colored saucer, counts and
// elapsed/ETA timers.
func New(description string, total int) executor.Progress {
	return bar{progressbar.NewOptions(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)}
}
