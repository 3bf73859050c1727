// Package extract provides the mapping extractor: the pipeline step that
// turns one raw sheet into rows of the target schema.
package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"infomap/internal/ace"
	"infomap/internal/executor"
	"infomap/internal/generator"
	"infomap/internal/llm"
	"infomap/internal/logging"
	"infomap/internal/normalizer"
	"infomap/internal/pipeline"
	"infomap/internal/store"
	"infomap/internal/table"
)

// Cache replay policies.
const (
	PolicyNewest = "newest"
	PolicyAll    = "all"
)

// Options configures a MappingExtractor.
type Options struct {
	MinConfidence float64

	// CachePolicy selects how cached transformations are replayed:
	// PolicyNewest tries only the most recent entry, PolicyAll walks all
	// entries most-recent-first until one executes.
	CachePolicy string
}

// MappingExtractor maps each incoming table onto the target schema: cached
// transformation first, fresh synthesis on a miss, reflection loop on
// execution failure.
type MappingExtractor struct {
	matcher   *normalizer.Matcher
	generator *generator.Generator
	engine    *executor.Engine
	cache     *store.MappingCache
	playbook  *store.Playbook
	loop      *ace.Loop
	opts      Options
}

func NewMappingExtractor(
	matcher *normalizer.Matcher,
	gen *generator.Generator,
	engine *executor.Engine,
	cache *store.MappingCache,
	playbook *store.Playbook,
	loop *ace.Loop,
	opts Options,
) *MappingExtractor {
	if opts.CachePolicy == "" {
		opts.CachePolicy = PolicyNewest
	}
	return &MappingExtractor{
		matcher:   matcher,
		generator: gen,
		engine:    engine,
		cache:     cache,
		playbook:  playbook,
		loop:      loop,
		opts:      opts,
	}
}

func (e *MappingExtractor) Verify(pre pipeline.StepResult) bool {
	return pre.Table != nil
}

func (e *MappingExtractor) Run(ctx context.Context, pre []pipeline.StepResult, emit func(pipeline.StepResult)) error {
	for _, in := range pre {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := e.extractOne(ctx, in.Table)
		if err != nil {
			// Embedding-service failures abort the run; per-sheet mapping
			// failures are reported and the run continues.
			var normErr *normalizer.NormalizeError
			if errors.As(err, &normErr) {
				return err
			}
			emit(pipeline.StepResult{Name: in.Name, Err: err})
			continue
		}
		emit(pipeline.StepResult{Name: in.Name, Table: out})
	}
	return nil
}

// extractOne maps a single sheet.
func (e *MappingExtractor) extractOne(ctx context.Context, raw *table.Table) (*table.Table, error) {
	runID := uuid.NewString()
	logging.Pipeline("[%s] mapping sheet %q (%d columns, %d rows)", runID, raw.Name, len(raw.Columns), raw.NumRows())

	cleaned := normalizer.CleanAll(raw.Columns)
	if err := raw.RenameColumns(cleaned); err != nil {
		return nil, err
	}

	fingerprint := store.Fingerprint(cleaned)
	logging.CacheDebug("[%s] fingerprint %s", runID, store.ShortFingerprint(fingerprint))

	out, replayErr, err := e.replayCached(ctx, fingerprint, raw, runID)
	if err != nil {
		return nil, err
	}
	if out != nil {
		return out, nil
	}
	if replayErr != nil {
		// A cached transformation stopped working: diagnose, update the
		// playbook and report this sheet failed. The cache row stays; it
		// may still be useful and the store is append-only.
		e.reflect(ctx, nil, replayErr, runID)
		return nil, replayErr
	}

	return e.synthesize(ctx, fingerprint, raw, runID)
}

// replayCached tries the cached transformations for a fingerprint. Returns
// the mapped table on success, the last ExecutionError when every cached
// entry failed, and (nil, nil, nil) on a cache miss.
func (e *MappingExtractor) replayCached(ctx context.Context, fingerprint string, raw *table.Table, runID string) (*table.Table, error, error) {
	var candidates []string
	switch e.opts.CachePolicy {
	case PolicyAll:
		all, err := e.cache.LookupAll(fingerprint)
		if err != nil {
			return nil, nil, err
		}
		candidates = all
	default:
		sqlCode, ok, err := e.cache.Lookup(fingerprint)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			candidates = []string{sqlCode}
		}
	}
	if len(candidates) == 0 {
		logging.Cache("[%s] miss", runID)
		return nil, nil, nil
	}

	var lastErr error
	for i, sqlCode := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		out, err := e.engine.Execute(ctx, sqlCode, raw)
		if err == nil {
			logging.Cache("[%s] hit, entry %d/%d executed", runID, i+1, len(candidates))
			return out, nil, nil
		}
		var execErr *executor.ExecutionError
		if !errors.As(err, &execErr) {
			return nil, nil, err
		}
		logging.Cache("[%s] cached entry %d/%d failed: %v", runID, i+1, len(candidates), err)
		lastErr = err
	}
	return nil, lastErr, nil
}

// synthesize generates, validates and caches a fresh transformation.
func (e *MappingExtractor) synthesize(ctx context.Context, fingerprint string, raw *table.Table, runID string) (*table.Table, error) {
	match, err := e.matcher.Match(ctx, raw.Columns, e.opts.MinConfidence)
	if err != nil {
		return nil, err
	}

	playbookText, err := e.playbookText()
	if err != nil {
		return nil, err
	}

	syn, err := e.generator.Synthesize(ctx, raw.Name, raw.Columns, match, playbookText)
	if err != nil {
		return nil, err
	}

	out, err := e.engine.Execute(ctx, syn.SQL, raw)
	if err != nil {
		var execErr *executor.ExecutionError
		if errors.As(err, &execErr) {
			e.reflect(ctx, syn.Trace, err, runID)
			return nil, err
		}
		return nil, err
	}

	// Only transformations that executed successfully are stored.
	if err := e.cache.Store(fingerprint, syn.SQL); err != nil {
		logging.Cache("[%s] store failed: %v", runID, err)
	}
	return out, nil
}

// reflect runs the feedback loop; its failures are logged, never propagated,
// so a broken reflector cannot take the run down.
func (e *MappingExtractor) reflect(ctx context.Context, trace []llm.Message, execErr error, runID string) {
	if e.loop == nil {
		return
	}
	if _, err := e.loop.Run(ctx, trace, execErr); err != nil {
		logging.Reflect("[%s] feedback loop failed: %v", runID, err)
	}
}

func (e *MappingExtractor) playbookText() (string, error) {
	entries, err := e.playbook.List()
	if err != nil {
		return "", err
	}
	return strings.Join(entries, "\n"), nil
}

var _ pipeline.Step = (*MappingExtractor)(nil)
