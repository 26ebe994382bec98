package triggers

import "context"

// Transition is the status change that fired a status trigger.
type Transition struct {
	From string
	To   string
}

type transitionKey struct{}

func WithTransition(ctx context.Context, t Transition) context.Context {
	return context.WithValue(ctx, transitionKey{}, t)
}

func TransitionFrom(ctx context.Context) (Transition, bool) {
	t, ok := ctx.Value(transitionKey{}).(Transition)

	return t, ok
}
