package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/olehluchkiv/llimpl/internal/cache"
	"github.com/olehluchkiv/llimpl/internal/config"
	"github.com/olehluchkiv/llimpl/internal/errkind"
	"github.com/olehluchkiv/llimpl/internal/llm"
	"github.com/olehluchkiv/llimpl/internal/logging"
	"github.com/olehluchkiv/llimpl/internal/pipeline"
	"github.com/olehluchkiv/llimpl/internal/resolver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	root, a := newRootCmd(os.Stdout)
	err := root.ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root has loaded
// configuration and logging.
type app struct {
	out     io.Writer
	v       *viper.Viper
	cfg     config.Config
	logger  *zap.Logger
	cleanup func()
}

func newRootCmd(out io.Writer) (*cobra.Command, *app) {
	a := &app{out: out, logger: zap.NewNop(), cleanup: func() {}}

	root := &cobra.Command{
		Use:   "llimpl",
		Short: "Generate Go method bodies from annotated stub files",
		Long: `llimpl fills in bodiless methods declared in *_llimpl.go stub files.

A stub file is excluded from normal builds with "//go:build llimpl" and
declares a type annotated with an //llimpl:impl directive:

  //llimpl:impl Greeter model=gpt-4o prompt="be terse"
  type Simple struct{}

  func (s Simple) Greet(name string) string

Each declaration is keyed by a hash of its interface, type, method
signatures and hint. Cached generations are reused; on a miss the
configured OpenAI-compatible backend is asked once. Set LLIMPL_OFFLINE=1
(or build with -tags llimpl_nonet) to use the cache only.

Examples:
  llimpl generate ./...          # generate every stub in the module
  llimpl generate --check .      # generate, then type-check the package
  llimpl key ./greet             # print declaration keys
  llimpl cache ls                # list cached generations`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.String("model", "", "default model for declarations without model= (env LLIMPL_MODEL)")
	pf.String("base-url", "", "OpenAI-compatible API base URL (env LLIMPL_BASE_URL)")
	pf.Bool("offline", false, "use cached generations only (env LLIMPL_OFFLINE)")
	pf.Duration("timeout", 0, "per-request timeout (env LLIMPL_TIMEOUT)")
	pf.IntP("jobs", "j", 0, "declarations generated in parallel (env LLIMPL_JOBS)")
	pf.Float64("rate-limit", 0, "max backend requests per second, 0 = unlimited (env LLIMPL_RATE_LIMIT)")
	pf.String("fallback", "", "unstructured response policy: strict or single (env LLIMPL_FALLBACK)")
	pf.BoolP("keep-going", "k", false, "report every failing declaration instead of stopping at the first")
	pf.String("cache-dir", "", "cache directory (env LLIMPL_CACHE_DIR)")
	pf.String("cache-backend", "", "cache backend: dir or sqlite (env LLIMPL_CACHE_BACKEND)")
	pf.String("log-file", "", "also write JSON logs to this file")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newGenerateCmd(a),
		newWatchCmd(a),
		newKeyCmd(a),
		newCheckCmd(a),
		newCacheCmd(a),
	)
	return root, a
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"model":         "model",
	"base-url":      "base_url",
	"offline":       "offline",
	"timeout":       "timeout",
	"jobs":          "jobs",
	"rate-limit":    "rate_limit",
	"fallback":      "fallback",
	"keep-going":    "keep_going",
	"cache-dir":     "cache.dir",
	"cache-backend": "cache.backend",
	"log-file":      "log.file",
	"log-level":     "log.level",
}

func (a *app) setup(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "get working directory")
	}
	modRoot, _ := resolver.FindModuleRoot(wd)

	v, err := config.NewViper(wd, modRoot)
	if err != nil {
		return err
	}
	// Only flags set on the command line override env and file values.
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return errors.Wrapf(err, "bind --%s", name)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errkind.Mark(err, errkind.Config)
	}
	logger, cleanup, err := logging.Setup(cfg.Log.File, level)
	if err != nil {
		return errkind.Mark(err, errkind.Config)
	}

	a.v, a.cfg, a.logger, a.cleanup = v, cfg, logger, cleanup
	a.logger.Debug("configuration loaded", zap.Object("config", cfg), zap.String("command", cmd.Name()))
	return nil
}

// close flushes the logger and closes the log file.
func (a *app) close() {
	a.cleanup()
}

// openStore opens the configured cache for a module.
func (a *app) openStore(moduleRoot string) (cache.Store, error) {
	store, err := cache.Open(a.cfg, moduleRoot)
	if err != nil {
		return nil, errkind.Mark(err, errkind.Config)
	}
	return store, nil
}

// newPipeline wires the store and, in online mode, the backend client.
func (a *app) newPipeline(store cache.Store) (*pipeline.Pipeline, error) {
	var gen pipeline.Generator
	mode := pipeline.ResolveMode(a.cfg)
	if !mode.Offline {
		client, err := llm.NewClient(llm.Config{
			Endpoint:  a.cfg.BaseURL,
			APIKey:    a.cfg.APIKey,
			Model:     a.cfg.Model,
			Timeout:   a.cfg.Timeout,
			RateLimit: a.cfg.RateLimit,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		gen = client
	}
	a.logger.Info("pipeline ready", zap.String("mode", mode.String()), zap.String("reason", mode.Reason()))
	return pipeline.New(a.cfg, store, gen, a.logger)
}

// printError writes err with its category and any hints.
func printError(w io.Writer, err error) {
	kind := errkind.Of(err)
	if kind == errkind.Unknown {
		fmt.Fprintf(w, "llimpl: %v\n", err)
	} else {
		fmt.Fprintf(w, "llimpl: %s error: %v\n", kind, err)
	}
	for _, h := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "hint: %s\n", h)
	}
}
