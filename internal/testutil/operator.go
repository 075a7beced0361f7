package testutil

import (
	"context"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/operator"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// GatedOperator is an operator whose steps are driven by the test. It
// announces the start of every run on Started, publishes Speculative (when
// set) as a pre-update, then blocks until the test sends the outcome on
// Release: nil commits, an error fails the run before the post-update.
type GatedOperator struct {
	Started     chan mutation.EngineMutation
	Release     chan error
	Speculative func(m mutation.EngineMutation, prior *state.Expanded) *state.Expanded
	Committed   func(m mutation.EngineMutation, prior *state.Expanded) (*state.Expanded, state.Catalog)
}

// NewGatedOperator creates an operator that commits prior unchanged unless
// Committed is set.
func NewGatedOperator() *GatedOperator {
	return &GatedOperator{
		Started: make(chan mutation.EngineMutation, 16),
		Release: make(chan error, 16),
	}
}

// Name implements operator.Operator.
func (o *GatedOperator) Name(m mutation.EngineMutation) string {
	return "gated " + m.Kind().String()
}

// Apply implements operator.Operator.
func (o *GatedOperator) Apply(ctx context.Context, oc operator.Context) (mutation.Result, error) {
	o.Started <- oc.Mutation
	if o.Speculative != nil {
		oc.Before(operator.NewStateUpdater(oc.TransactionID, oc.Mutation, func(_ int64, prior *state.Expanded) *state.Expanded {
			return o.Speculative(oc.Mutation, prior)
		}))
	}

	select {
	case err := <-o.Release:
		if err != nil {
			return mutation.Result{}, err
		}
	case <-ctx.Done():
		return mutation.Result{}, ctx.Err()
	}

	var produced state.Catalog
	version, err := oc.After(operator.NewStateUpdater(oc.TransactionID, oc.Mutation, func(_ int64, prior *state.Expanded) *state.Expanded {
		if o.Committed == nil {
			return prior
		}
		next, c := o.Committed(oc.Mutation, prior)
		produced = c
		return next
	}))
	if err != nil {
		return mutation.Result{}, err
	}
	return mutation.Result{Catalog: produced, EngineVersion: version}, nil
}

// Registry binds o to every engine mutation kind.
func (o *GatedOperator) Registry() map[mutation.Kind]operator.Operator {
	ops := make(map[mutation.Kind]operator.Operator)
	for _, k := range mutation.EngineKinds() {
		ops[k] = o
	}
	return ops
}
