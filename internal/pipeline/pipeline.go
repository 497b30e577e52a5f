// Package pipeline turns one declaration into synthesized source: cache
// lookup, then on a miss generation, validation, synthesis and store.
package pipeline

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/olehluchkiv/llimpl/internal/cache"
	"github.com/olehluchkiv/llimpl/internal/config"
	"github.com/olehluchkiv/llimpl/internal/decl"
	"github.com/olehluchkiv/llimpl/internal/errkind"
	"github.com/olehluchkiv/llimpl/internal/keys"
	"github.com/olehluchkiv/llimpl/internal/llm"
	"github.com/olehluchkiv/llimpl/internal/synth"
)

// Generator produces method bodies for a declaration. *llm.Client
// implements it.
type Generator interface {
	Generate(ctx context.Context, dc decl.Context, model string) (*llm.Response, error)
}

// Result is the outcome of one declaration.
type Result struct {
	Key    keys.Key
	Source string
	Cached bool
	Model  string // empty on a cache hit
}

// Pipeline is safe for concurrent Run calls.
type Pipeline struct {
	store    cache.Store
	gen      Generator
	mode     Mode
	fallback synth.FallbackPolicy
	logger   *zap.Logger
}

// New builds a pipeline. gen may be nil when the mode is offline.
func New(cfg config.Config, store cache.Store, gen Generator, logger *zap.Logger) (*Pipeline, error) {
	fallback, err := synth.ParseFallbackPolicy(cfg.Fallback)
	if err != nil {
		return nil, err
	}
	mode := ResolveMode(cfg)
	if gen == nil && !mode.Offline {
		return nil, errkind.Configf("no generation backend configured in online mode")
	}
	return &Pipeline{
		store:    store,
		gen:      gen,
		mode:     mode,
		fallback: fallback,
		logger:   logger.With(zap.String("component", "pipeline")),
	}, nil
}

// Mode returns the resolved network mode.
func (p *Pipeline) Mode() Mode { return p.mode }

// Run produces the synthesized source for d. A cache hit is returned
// verbatim. On a miss in online mode exactly one generation request is made
// and only validated, synthesized text is stored.
func (p *Pipeline) Run(ctx context.Context, d *decl.Declaration) (*Result, error) {
	key := keys.Derive(d.Context)
	log := p.logger.With(zap.String("decl", d.Name()), zap.String("key", key.Short()))

	blob, ok, err := p.store.Lookup(ctx, key)
	if err != nil {
		return nil, errkind.Mark(errors.Wrapf(err, "cache lookup for %s", d.Name()), errkind.Config)
	}
	if ok {
		log.Debug("cache hit")
		return &Result{Key: key, Source: string(blob), Cached: true}, nil
	}

	if p.mode.Offline {
		log.Warn("cache miss in offline mode", zap.String("reason", p.mode.Reason()))
		return nil, p.mode.missError(d.Name(), key.String())
	}

	log.Info("cache miss, generating", zap.Strings("methods", d.Context.MethodNames()))
	resp, err := p.gen.Generate(ctx, d.Context, d.Model)
	if err != nil {
		return nil, errors.Wrapf(err, "generate %s", d.Name())
	}

	frags, err := synth.Validate(d.Context, resp, p.fallback)
	if err != nil {
		log.Warn("generated bodies rejected",
			zap.String("request_id", resp.RequestID), zap.Int("bodies", len(resp.Bodies)), zap.Error(err))
		return nil, errors.Wrapf(err, "validate %s", d.Name())
	}

	source, err := synth.Synthesize(d, frags)
	if err != nil {
		return nil, errors.Wrapf(err, "synthesize %s", d.Name())
	}

	if err := p.store.Put(ctx, key, []byte(source)); err != nil {
		// The declaration succeeded; it will simply be generated again.
		log.Error("failed to store generation", zap.Error(err))
	}

	log.Info("generated", zap.String("model", resp.Model), zap.String("request_id", resp.RequestID))
	return &Result{Key: key, Source: source, Model: resp.Model}, nil
}
