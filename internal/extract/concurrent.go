package extract

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ProcessElementsConcurrent flattens elements on up to workers goroutines.
// Output order matches input order. A non-positive workers value means no
// limit. The only error is ctx cancellation.
func (x *Extractor) ProcessElementsConcurrent(ctx context.Context, elements []Node, workers int) ([]Record, error) {
	out := make([]Record, len(elements))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i := range elements {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = x.ProcessElement(elements[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Process is ProcessElements with a forest fanned out across workers.
func (x *Extractor) Process(ctx context.Context, in Node, workers int) (Result, error) {
	if in.Kind != KindForest {
		return Result{Single: x.ProcessElement(in)}, nil
	}

	records, err := x.ProcessElementsConcurrent(ctx, in.Children, workers)
	if err != nil {
		return Result{}, err
	}
	return Result{List: true, Many: records}, nil
}
