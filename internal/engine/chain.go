package engine

import "github.com/roach88/ruleware/internal/ir"

// Chain folds middlewares right-to-left around next and returns the
// resulting dispatcher. The first middleware is the outermost wrapper:
//
//	Chain(store, next, a, b)  ==  a(store, ·, b(store, ·, next))
//
// Chain(store, next) returns next itself.
func Chain[S any](store Store[S], next Dispatcher, mws ...Middleware[S]) Dispatcher {
	for i := len(mws) - 1; i >= 0; i-- {
		next = bind(store, mws[i], next)
	}
	return next
}

func bind[S any](store Store[S], mw Middleware[S], inner Dispatcher) Dispatcher {
	return func(action ir.Action) any {
		return mw(store, action, inner)
	}
}
