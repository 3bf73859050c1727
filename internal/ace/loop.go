package ace

import (
	"context"

	"infomap/internal/llm"
	"infomap/internal/logging"
	"infomap/internal/store"
)

// Loop is the two-state feedback machine: Reflecting, then Curating, then
// terminal. It never retries the failed sheet; its only output is the
// playbook update that benefits future runs.
type Loop struct {
	reflector *Reflector
	curator   *Curator
}

func NewLoop(client llm.Client, playbook *store.Playbook) *Loop {
	return &Loop{
		reflector: NewReflector(client, playbook),
		curator:   NewCurator(client, playbook),
	}
}

// Run diagnoses one execution failure and applies the resulting playbook
// update. The Reflection is returned even when curation fails, so callers
// can record the diagnosis.
func (l *Loop) Run(ctx context.Context, trace []llm.Message, execErr error) (*Reflection, error) {
	reflection, err := l.reflector.Reflect(ctx, trace, execErr)
	if err != nil {
		return nil, err
	}

	if err := l.curator.Curate(ctx, reflection); err != nil {
		logging.Reflect("curation error: %v", err)
		return reflection, err
	}
	return reflection, nil
}
