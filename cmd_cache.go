package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/olehluchkiv/llimpl/internal/cache"
	"github.com/olehluchkiv/llimpl/internal/errkind"
	"github.com/olehluchkiv/llimpl/internal/keys"
	"github.com/olehluchkiv/llimpl/internal/resolver"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage cached generations",
		Long: `Cache manages the content-addressed store of synthesized declarations.

Examples:
  llimpl cache path              # print the cache location
  llimpl cache ls                # list entries
  llimpl cache show 3fa2         # print an entry (unique key prefix)
  llimpl cache rm 3fa2 9c01      # delete entries`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the cache location",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				fmt.Fprintln(a.out, a.cfg.CacheDir(moduleRootOfWD()))
				return nil
			},
		},
		&cobra.Command{
			Use:     "ls",
			Aliases: []string{"list"},
			Short:   "List cached generations",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withStore(func(store cache.Store) error {
					entries, err := store.List(cmd.Context())
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "KEY\tSIZE\tCREATED")
					for _, e := range entries {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Key, humanize.Bytes(uint64(e.Size)), humanize.Time(e.ModTime))
					}
					if err := tw.Flush(); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "%d entries\n", len(entries))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show <key>",
			Short: "Print a cached generation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(store cache.Store) error {
					key, err := resolveKey(cmd, store, args[0])
					if err != nil {
						return err
					}
					blob, ok, err := store.Lookup(cmd.Context(), key)
					if err != nil {
						return err
					}
					if !ok {
						return errkind.Configf("no cache entry %s", key)
					}
					_, err = a.out.Write(blob)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "rm <key>...",
			Short: "Delete cached generations",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(store cache.Store) error {
					for _, arg := range args {
						key, err := resolveKey(cmd, store, arg)
						if err != nil {
							return err
						}
						if err := store.Remove(cmd.Context(), key); err != nil {
							return err
						}
						fmt.Fprintf(a.out, "removed %s\n", key)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func (a *app) withStore(fn func(cache.Store) error) error {
	store, err := a.openStore(moduleRootOfWD())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func moduleRootOfWD() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	root, _ := resolver.FindModuleRoot(wd)
	return root
}

// resolveKey accepts a full key or a unique prefix of a stored key.
func resolveKey(cmd *cobra.Command, store cache.Store, arg string) (keys.Key, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if keys.Valid(arg) {
		return keys.Key(arg), nil
	}
	if arg == "" {
		return "", errkind.Configf("empty key")
	}
	entries, err := store.List(cmd.Context())
	if err != nil {
		return "", err
	}
	var matches []keys.Key
	for _, e := range entries {
		if strings.HasPrefix(string(e.Key), arg) {
			matches = append(matches, e.Key)
		}
	}
	switch len(matches) {
	case 0:
		return "", errkind.Configf("no cache entry matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", errkind.Mark(errors.Newf("key prefix %q is ambiguous (%d entries)", arg, len(matches)), errkind.Config)
	}
}
