// Command frontdown is the CLI entry point for the backup engine: it
// resolves a Config and drives internal/job. Flag grammar is
// deliberately minimal (§6 of SPEC_FULL.md reserves a richer CLI as an
// external collaborator); this wraps the teacher's own cobra/color/
// signal-handling idiom from main.go around internal/job.Run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jonschz/frontdown/internal/config"
	"github.com/jonschz/frontdown/internal/executor"
	"github.com/jonschz/frontdown/internal/job"
	"github.com/jonschz/frontdown/internal/progress"
	"github.com/jonschz/frontdown/internal/prompt"
)

func main() {
	var configPath string
	var dryRun bool
	var interactive bool

	rootCmd := &cobra.Command{
		Use:   "frontdown",
		Short: "Incremental, versioned backup engine with hard-link deduplication",
		Long: `frontdown scans one or more source trees, compares them against the most
recent successful backup, and produces a new dated backup directory where
unchanged files are hard-linked rather than copied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dryRun {
				cfg.ApplyActions = false
			}

			ctx, cancel := context.WithCancel(context.Background())
			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-interrupt
				color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "\nInterrupted. Finishing current action and stopping.")
				cancel()
			}()

			var prompter prompt.Prompter
			if interactive {
				prompter = prompt.Terminal{}
			} else {
				// Without --interactive, "prompt" policies fail fast like "abort".
				if cfg.SourceUnavailableAction == "prompt" {
					cfg.SourceUnavailableAction = "abort"
				}
				if cfg.TargetDriveFullAction == "prompt" {
					cfg.TargetDriveFullAction = "abort"
				}
			}

			result, err := job.Run(ctx, cfg, job.Options{
				Prompter: prompter,
				NewProgress: func(description string, total int) executor.Progress {
					return progress.New(description, total)
				},
			})
			if err != nil {
				color.New(color.FgRed).Fprintf(os.Stderr, "backup failed: %v\n", err)
				os.Exit(1)
			}
			if result.Successful {
				color.New(color.FgGreen, color.Bold).Printf("backup completed: %s\n", result.TargetRoot)
			}
			fmt.Printf("copied %d files (%d bytes), hardlinked %d files (%d bytes), deleted %d files, %d backup errors\n",
				result.Stats.FilesCopied, result.Stats.BytesCopied,
				result.Stats.FilesHardlinked, result.Stats.BytesHardlinked,
				result.Stats.FilesDeleted, result.Stats.BackupErrors)
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the JSON config file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the backup without applying any action")
	rootCmd.Flags().BoolVar(&interactive, "interactive", false, "Prompt instead of failing fast on unavailable sources/targets")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
