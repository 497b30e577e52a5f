package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/olehluchkiv/llimpl/internal/gen"
	"github.com/olehluchkiv/llimpl/internal/resolver"
)

func newGenerateCmd(a *app) *cobra.Command {
	var dryRun, check bool
	cmd := &cobra.Command{
		Use:   "generate [paths...]",
		Short: "Generate *_llimpl_gen.go files for stub files",
		Long: `Generate resolves each path to stub files (a file, a directory, or dir/...
for a recursive scan; default "."), runs every declaration through the cache
and backend, and writes <stub>_llimpl_gen.go next to each stub.`,
		Aliases: []string{"gen"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolver.Resolve(args, a.logger)
			if err != nil {
				return err
			}
			if len(target.Files) == 0 {
				fmt.Fprintln(a.out, "no stub files found")
				return nil
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
			runner := gen.NewRunner(pipe, gen.Options{
				Jobs:      a.cfg.Jobs,
				KeepGoing: a.cfg.KeepGoing,
				DryRun:    dryRun,
			}, a.logger)

			report, err := runner.Run(cmd.Context(), target.Files)
			printReport(a.out, report)
			if err != nil {
				return err
			}
			if check && !dryRun {
				return a.check(cmd.Context(), target.Files)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run the pipeline but do not write generated files")
	cmd.Flags().BoolVar(&check, "check", false, "type-check the packages after writing generated files")
	return cmd
}

// printReport writes one line per stub file. A nil report prints nothing.
func printReport(w io.Writer, report *gen.Report) {
	if report == nil {
		return
	}
	wd, _ := filepath.Abs(".")
	for _, fr := range report.Files {
		out := relTo(wd, fr.Output)
		switch {
		case fr.Err != nil:
			fmt.Fprintf(w, "FAIL      %s\n", relTo(wd, fr.Stub))
		case fr.Written:
			fmt.Fprintf(w, "wrote     %s (%s)\n", out, declSummary(fr.Decls))
		default:
			fmt.Fprintf(w, "ok        %s (%s)\n", out, declSummary(fr.Decls))
		}
	}
	generated, cached, failed := report.Counts()
	fmt.Fprintf(w, "%d generated, %d cached, %d failed files\n", generated, cached, failed)
}

func declSummary(decls []gen.DeclReport) string {
	var generated, cached int
	for _, d := range decls {
		if d.Cached {
			cached++
		} else {
			generated++
		}
	}
	return fmt.Sprintf("%d generated, %d cached", generated, cached)
}

func relTo(base, path string) string {
	if base == "" {
		return path
	}
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}
