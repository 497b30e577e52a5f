package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/olehluchkiv/llimpl/internal/analyzer"
	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/errkind"
	"github.com/olehluchkiv/llimpl/internal/resolver"
)

// ErrCheckFailed is returned when a generated package does not build or a
// generated type misses its interface.
var ErrCheckFailed = errors.New("generated code check failed")

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [paths...]",
		Short: "Type-check packages with generated code",
		Long: `Check loads each package holding stub files the way a normal build does
(stubs excluded, generated files included), reports type errors, and
verifies every generated type implements the interface its directive names.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolver.Resolve(args, a.logger)
			if err != nil {
				return err
			}
			return a.check(cmd.Context(), target.Files)
		},
	}
}

// check analyzes every package directory holding one of stubs.
func (a *app) check(ctx context.Context, stubs []string) error {
	byDir := make(map[string][]*decl.Declaration)
	for _, path := range stubs {
		f, err := decl.ParseFile(path)
		if err != nil {
			return err
		}
		dir := filepath.Dir(path)
		byDir[dir] = append(byDir[dir], f.Decls...)
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	failed := 0
	for _, dir := range dirs {
		res, err := analyzer.Analyze(ctx, dir, analyzer.ExpectationsFor(byDir[dir]), a.logger)
		if err != nil {
			return err
		}
		for _, f := range res.Findings {
			fmt.Fprintf(a.out, "%s: %s\n", f.Pos, f.Message)
		}
		for _, s := range res.Skipped {
			fmt.Fprintf(a.out, "skipped %s\n", s)
		}
		if !res.OK() {
			failed++
			continue
		}
		fmt.Fprintf(a.out, "ok        %s (%d interfaces satisfied)\n", res.PkgPath, len(res.Relations))
	}
	if failed > 0 {
		return errkind.Mark(errors.Wrapf(ErrCheckFailed, "%d of %d packages", failed, len(dirs)), errkind.Validation)
	}
	return nil
}
