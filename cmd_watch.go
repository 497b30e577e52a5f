package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/olehluchkiv/llimpl/internal/gen"
	"github.com/olehluchkiv/llimpl/internal/resolver"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce = gen.DefaultDebounce
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Regenerate stub files whenever they change",
		Long: `Watch runs generate once, then regenerates a stub file each time it is
written. New stub files created in watched directories are picked up. Stop
with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolver.Resolve(args, a.logger)
			if err != nil {
				return err
			}

			store, err := a.openStore(target.ModuleRoot)
			if err != nil {
				return err
			}
			defer store.Close()

			pipe, err := a.newPipeline(store)
			if err != nil {
				return err
			}
			// Watch always keeps going: one bad edit must not stop the loop.
			runner := gen.NewRunner(pipe, gen.Options{Jobs: a.cfg.Jobs, KeepGoing: true}, a.logger)

			if len(target.Files) > 0 {
				report, err := runner.Run(cmd.Context(), target.Files)
				printReport(a.out, report)
				if err != nil {
					fmt.Fprintf(a.out, "error: %v\n", err)
				}
			}

			dirs := gen.WatchDirs(target.Files, inputDirs(args)...)
			fmt.Fprintf(a.out, "watching %d directories\n", len(dirs))
			return runner.Watch(cmd.Context(), dirs, debounce, func(report *gen.Report, err error) {
				printReport(a.out, report)
				if err != nil {
					fmt.Fprintf(a.out, "error: %v\n", err)
				}
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", gen.DefaultDebounce, "quiet period after a change before regenerating")
	return cmd
}

// inputDirs returns the directories named by non-recursive directory
// inputs, so stubs created there later are seen.
func inputDirs(args []string) []string {
	if len(args) == 0 {
		args = []string{"."}
	}
	var dirs []string
	for _, arg := range args {
		if strings.HasSuffix(arg, "...") || resolver.IsStub(arg) {
			continue
		}
		if abs, err := filepath.Abs(arg); err == nil {
			dirs = append(dirs, abs)
		}
	}
	return dirs
}
