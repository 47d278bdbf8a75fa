package waiter

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// All holds once every sub-condition holds. Sub-conditions are evaluated
// concurrently each poll via errgroup, so an expensive condition doesn't
// serialize behind the others.
func All(conds ...Condition) Condition {
	return newCond("all("+describeAll(conds)+")", func(ctx context.Context) (bool, error) {
		results := make([]bool, len(conds))
		g, gctx := errgroup.WithContext(ctx)
		for i, c := range conds {
			i, c := i, c
			g.Go(func() error {
				ok, err := c.Evaluate(gctx)
				results[i] = ok
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return false, err
		}
		for _, ok := range results {
			if !ok {
				return false, nil
			}
		}
		return true, nil
	})
}

// Any holds once at least one sub-condition holds.
func Any(conds ...Condition) Condition {
	return newCond("any("+describeAll(conds)+")", func(ctx context.Context) (bool, error) {
		results := make([]bool, len(conds))
		g, gctx := errgroup.WithContext(ctx)
		for i, c := range conds {
			i, c := i, c
			g.Go(func() error {
				ok, err := c.Evaluate(gctx)
				results[i] = ok
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return false, err
		}
		for _, ok := range results {
			if ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not inverts cond.
func Not(cond Condition) Condition {
	return newCond("not("+cond.Describe()+")", func(ctx context.Context) (bool, error) {
		ok, err := cond.Evaluate(ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	})
}

func describeAll(conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.Describe()
	}
	return strings.Join(parts, ", ")
}
