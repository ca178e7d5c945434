package engine

import (
	"context"
	"fmt"
)

// Run executes the exploration loop on st until the router picks a finalize
// branch, then produces the final answer. st is modified in place.
//
// Loop: decide -> route -> (dispatch -> merge -> decide ...) -> finalize.
// The round counter grows on every dispatch, so the round cap always ends the loop.
//
// Returns the route that ended exploration, or an error from dispatch, merge
// or finalize. Decision failures never surface; they end exploration instead.
func (x *Explorer) Run(ctx context.Context, st *State) (Route, error) {
	x.hooks.OnRunStart(ctx, st)

	fail := func(err error) (Route, error) {
		x.hooks.OnError(ctx, st, err)
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return fail(fmt.Errorf("execution cancelled: %w", ctx.Err()))
		default:
		}

		res, err := x.decide(ctx, st)
		if err != nil {
			return fail(err)
		}
		x.hooks.OnDecision(ctx, st, res)
		x.recordStep(ctx, st, StepDecide)

		route := NextRoute(st, x.opts.Limits)
		x.hooks.OnRoute(ctx, st, route)

		if route.Finalizes() {
			if err := x.finalize(ctx, st); err != nil {
				return fail(err)
			}
			x.recordStep(ctx, st, StepFinalize)
			x.hooks.OnDone(ctx, st, route)
			return route, nil
		}

		if err := x.dispatch(ctx, st); err != nil {
			return fail(err)
		}
		x.recordStep(ctx, st, StepDispatch)

		if err := x.merge(ctx, st); err != nil {
			return fail(err)
		}
		x.hooks.OnContextMerged(ctx, st)
		x.recordStep(ctx, st, StepMerge)
	}
}
