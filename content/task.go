package content

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/justinsantoro/warframesync/workspace"
)

//Producer computes the content intents for one piece of external data. It
//knows nothing about git.
type Producer interface {
	Name() string
	Produce(ctx context.Context, ec workspace.ExecutionContext) ([]Intent, error)
}

//Task returns a unit of work that runs all producers concurrently and then
//applies their intents through g one at a time, in producer order.
func Task(g *Gate, producers ...Producer) func(context.Context, workspace.ExecutionContext) error {
	return func(ctx context.Context, ec workspace.ExecutionContext) error {
		results := make([][]Intent, len(producers))
		eg, ectx := errgroup.WithContext(ctx)
		for i, p := range producers {
			i, p := i, p
			eg.Go(func() error {
				intents, err := p.Produce(ectx, ec)
				if err != nil {
					return fmt.Errorf("%s: %w", p.Name(), err)
				}
				results[i] = intents
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		for i, intents := range results {
			for _, in := range intents {
				if _, err := g.Apply(ec, in); err != nil {
					return fmt.Errorf("%s: %w", producers[i].Name(), err)
				}
			}
		}
		return nil
	}
}
