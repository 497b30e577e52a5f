// Package gen drives generation over stub files: it runs the pipeline for
// every declaration and writes one generated file per stub.
package gen

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/keys"
	"github.com/olehluchkiv/llimpl/internal/pipeline"
	"github.com/olehluchkiv/llimpl/internal/resolver"
)

// DeclRunner produces synthesized source for one declaration.
// *pipeline.Pipeline implements it.
type DeclRunner interface {
	Run(ctx context.Context, d *decl.Declaration) (*pipeline.Result, error)
}

// Options control a Runner.
type Options struct {
	Jobs      int  // declarations processed in parallel
	KeepGoing bool // report every failure instead of stopping at the first
	DryRun    bool // run the pipeline but write nothing
}

// DeclReport describes one processed declaration.
type DeclReport struct {
	Name   string
	Key    keys.Key
	Cached bool
	Model  string
}

// FileReport describes one stub file.
type FileReport struct {
	Stub    string
	Output  string
	Decls   []DeclReport
	Written bool  // false when unchanged, failed or dry run
	Err     error // failures of this file, only set with KeepGoing
}

// Report is the outcome of a run.
type Report struct {
	Files []FileReport
}

// Counts tallies declarations by outcome.
func (r *Report) Counts() (generated, cached, failedFiles int) {
	for _, f := range r.Files {
		if f.Err != nil {
			failedFiles++
		}
		for _, d := range f.Decls {
			if d.Cached {
				cached++
			} else {
				generated++
			}
		}
	}
	return generated, cached, failedFiles
}

// Runner is safe for sequential reuse, e.g. by Watch.
type Runner struct {
	pipe   DeclRunner
	opts   Options
	logger *zap.Logger
}

func NewRunner(pipe DeclRunner, opts Options, logger *zap.Logger) *Runner {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	return &Runner{pipe: pipe, opts: opts, logger: logger.With(zap.String("component", "runner"))}
}

type fileState struct {
	stub    string
	file    *decl.File
	results []*pipeline.Result
	err     error
}

// Run processes stub files. Without KeepGoing the first failure cancels the
// remaining work and nothing is written. With KeepGoing every failure is
// collected, files without failures are written, and the returned error
// combines all failures.
func (r *Runner) Run(ctx context.Context, stubs []string) (*Report, error) {
	states := make([]*fileState, len(stubs))
	var errs error

	for i, stub := range stubs {
		st := &fileState{stub: stub}
		states[i] = st
		f, err := decl.ParseFile(stub)
		if err != nil {
			if !r.opts.KeepGoing {
				return nil, err
			}
			st.err = err
			errs = multierr.Append(errs, err)
			continue
		}
		st.file = f
		st.results = make([]*pipeline.Result, len(f.Decls))
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Jobs)
schedule:
	for _, st := range states {
		if st.file == nil {
			continue
		}
		for di, d := range st.file.Decls {
			if gctx.Err() != nil {
				break schedule
			}
			g.Go(func() error {
				res, err := r.pipe.Run(gctx, d)
				if err != nil {
					err = errors.Wrapf(err, "%s", d.Pos)
					if !r.opts.KeepGoing {
						return err
					}
					mu.Lock()
					st.err = multierr.Append(st.err, err)
					errs = multierr.Append(errs, err)
					mu.Unlock()
					return nil
				}
				st.results[di] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Files: make([]FileReport, 0, len(states))}
	for _, st := range states {
		fr, err := r.finish(st)
		if err != nil {
			if !r.opts.KeepGoing {
				return nil, err
			}
			fr.Err = multierr.Append(fr.Err, err)
			errs = multierr.Append(errs, err)
		}
		report.Files = append(report.Files, fr)
	}

	generated, cached, failed := report.Counts()
	r.logger.Info("run complete",
		zap.Int("files", len(stubs)), zap.Int("generated", generated),
		zap.Int("cached", cached), zap.Int("failed_files", failed))
	return report, errs
}

func (r *Runner) finish(st *fileState) (FileReport, error) {
	fr := FileReport{Stub: st.stub, Output: resolver.OutputPath(st.stub), Err: st.err}
	if st.file == nil || st.err != nil {
		return fr, nil
	}

	sources := make([]string, len(st.results))
	for i, res := range st.results {
		sources[i] = res.Source
		fr.Decls = append(fr.Decls, DeclReport{
			Name:   st.file.Decls[i].Name(),
			Key:    res.Key,
			Cached: res.Cached,
			Model:  res.Model,
		})
	}

	out, err := Assemble(fr.Output, st.file, sources)
	if err != nil {
		return fr, err
	}
	if r.opts.DryRun {
		return fr, nil
	}
	written, err := writeFile(fr.Output, out)
	if err != nil {
		return fr, errors.Wrapf(err, "write %s", fr.Output)
	}
	fr.Written = written
	if written {
		r.logger.Info("wrote generated file", zap.String("path", fr.Output), zap.Int("decls", len(sources)))
	} else {
		r.logger.Debug("generated file unchanged", zap.String("path", fr.Output))
	}
	return fr, nil
}
