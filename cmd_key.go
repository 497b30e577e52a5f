package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/keys"
	"github.com/olehluchkiv/llimpl/internal/resolver"
)

func newKeyCmd(a *app) *cobra.Command {
	var canonical bool
	cmd := &cobra.Command{
		Use:   "key [paths...]",
		Short: "Print the cache key of every declaration",
		Long: `Key prints "<key>  <file:line>  <declaration>" for each annotated type.
It never contacts the backend. With --canonical it also prints the text the
key is derived from.`,
		RunE: func(_ *cobra.Command, args []string) error {
			target, err := resolver.Resolve(args, a.logger)
			if err != nil {
				return err
			}
			wd, _ := filepath.Abs(".")
			for _, path := range target.Files {
				f, err := decl.ParseFile(path)
				if err != nil {
					return err
				}
				for _, d := range f.Decls {
					fmt.Fprintf(a.out, "%s  %s:%d  %s\n", keys.Derive(d.Context), relTo(wd, path), d.Pos.Line, d.Name())
					if canonical {
						fmt.Fprintln(a.out, keys.Canonical(d.Context))
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&canonical, "canonical", false, "also print the canonical form hashed into each key")
	return cmd
}
