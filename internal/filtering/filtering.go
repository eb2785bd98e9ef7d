package filtering

import (
	"context"
	"fmt"

	"github.com/jobcatcher/jobcatcher/internal/jobsource"
	"go.uber.org/zap"
)

// Filter represents a single filtering step applied to postings before
// tailoring.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, deps Deps, p *jobsource.Postings) (*jobsource.Postings, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger  *zap.Logger
	History SeenStore
}

// SeenStore answers whether a posting was already handled by a previous run.
type SeenStore interface {
	Seen(ctx context.Context, postingID string) (bool, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Run executes the supplied filters sequentially and returns the resulting
// postings list.
func Run(ctx context.Context, deps Deps, steps []Filter, p *jobsource.Postings) (*jobsource.Postings, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		p = next
	}

	return p, nil
}
