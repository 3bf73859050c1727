// Package pipeline orchestrates the run: source steps produce tables,
// extractor steps map them onto the target schema, destination steps export
// the mapped results.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"infomap/internal/logging"
	"infomap/internal/table"
)

// StepResult is one artifact flowing between stages.
type StepResult struct {
	// Name identifies the artifact (file stem, or file stem + sheet name).
	Name string

	// Table holds the data for in-memory stages; nil for steps that only
	// produce files.
	Table *table.Table

	// Path is set by steps that write an artifact to disk.
	Path string

	// Err marks a result whose processing failed. Failed results are
	// reported and skipped downstream; they never abort the run.
	Err error
}

// Step is one pipeline stage. Run consumes the previous stage's results and
// emits its own; implementations must check ctx between items so
// cancellation takes effect at sheet granularity.
type Step interface {
	Run(ctx context.Context, pre []StepResult, emit func(StepResult)) error

	// Verify reports whether a previous result is input for this step.
	Verify(pre StepResult) bool
}

// FileScoped is implemented by source steps that can restrict themselves to
// an explicit file list.
type FileScoped interface {
	SetSpecificFiles(files []string)
}

// NamedStep pairs a step with a label for progress reporting.
type NamedStep struct {
	Name string
	Step Step
}

// Pipeline is a fixed three-stage run.
type Pipeline struct {
	source        []NamedStep
	extractors    []NamedStep
	destination   []NamedStep
	specificFiles []string
}

func New(source, extractors, destination []NamedStep) *Pipeline {
	return &Pipeline{source: source, extractors: extractors, destination: destination}
}

// SetSpecificFiles restricts source steps to the given files. Applies to
// every source step that supports scoping.
func (p *Pipeline) SetSpecificFiles(files []string) {
	p.specificFiles = files
}

// Run executes all stages in order. progress receives one line per produced
// result; pass nil to discard. The first stage error aborts the run, but a
// failed individual result does not.
func (p *Pipeline) Run(ctx context.Context, progress func(string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	sourceResults, err := p.runGroup(ctx, p.source, nil, func(r StepResult) {
		progress(fmt.Sprintf("读取 %s", r.Name))
	}, true)
	if err != nil {
		return err
	}

	extractResults, err := p.runGroup(ctx, p.extractors, sourceResults, func(r StepResult) {
		if r.Err != nil {
			progress(fmt.Sprintf("提取 %s 失败: %v", r.Name, r.Err))
		} else {
			progress(fmt.Sprintf("提取 %s", r.Name))
		}
	}, false)
	if err != nil {
		return err
	}

	_, err = p.runGroup(ctx, p.destination, extractResults, func(r StepResult) {
		progress(fmt.Sprintf("%s 处理完成", r.Name))
	}, false)
	return err
}

func (p *Pipeline) runGroup(ctx context.Context, group []NamedStep, pre []StepResult, report func(StepResult), isSource bool) ([]StepResult, error) {
	var results []StepResult
	for _, named := range group {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logging.Pipeline("running step %s", named.Name)

		if isSource && p.specificFiles != nil {
			if scoped, ok := named.Step.(FileScoped); ok {
				scoped.SetSpecificFiles(p.specificFiles)
			}
		}

		input := pre
		if pre != nil {
			input = nil
			for _, r := range pre {
				if r.Err == nil && named.Step.Verify(r) {
					input = append(input, r)
				}
			}
		}

		err := named.Step.Run(ctx, input, func(r StepResult) {
			results = append(results, r)
			report(r)
		})
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", named.Name, err)
		}
	}
	return results, nil
}

// MatchFiles resolves a source step's input list: the explicit file set
// filtered by pattern when present, otherwise a directory glob.
func MatchFiles(specific []string, dir, pattern string) ([]string, error) {
	if specific != nil {
		var out []string
		for _, f := range specific {
			ok, err := filepath.Match(pattern, filepath.Base(f))
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, f)
			}
		}
		return out, nil
	}
	return filepath.Glob(filepath.Join(dir, pattern))
}
