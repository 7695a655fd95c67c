// Package prompt implements the interactive layer the job controller
// drives when a policy is set to "prompt": retrying source/target
// availability, and confirming continuation when the target drive is
// full. Styling is grounded on the teacher's own promptui/color usage in
// ui.go.
package prompt

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
)

// Prompter is the seam the job controller drives; tests supply a
// scripted fake instead of a real terminal.
type Prompter interface {
	// Confirm asks a yes/no question and returns the user's choice. It
	// returns false, ErrAborted if the user interrupts (Ctrl+C).
	Confirm(question string) (bool, error)
}

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = fmt.Errorf("prompt: aborted by user")

// Terminal is the default Prompter, backed by promptui.
type Terminal struct{}

func (Terminal) Confirm(question string) (bool, error) {
	sel := promptui.Select{
		Label: question,
		Items: []string{"Yes", "No"},
	}
	_, choice, err := sel.Run()
	if err == promptui.ErrInterrupt {
		color.New(color.FgRed, color.Bold).Println("\nInterrupted during prompt.")
		return false, ErrAborted
	}
	if err != nil {
		return false, err
	}
	return choice == "Yes", nil
}
