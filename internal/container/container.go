// Package container is a minimal unidirectional state container hosting
// the rule engine.
//
// Dispatch flows through the middleware chain (first middleware outermost)
// down to the reducer, which replaces the state. Subscribers are notified
// after every reduction. Middlewares and reactions may dispatch again
// synchronously; nested dispatches re-enter the full chain.
//
// GetState and Subscribe are safe from any goroutine. Dispatch must not be
// called concurrently from several goroutines; re-entrant calls on the
// dispatching goroutine are the supported form of nesting.
package container

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/ruleware/internal/engine"
	"github.com/roach88/ruleware/internal/ir"
)

// ErrReducerDispatch is the panic value raised when a reducer dispatches.
var ErrReducerDispatch = errors.New("reducers may not dispatch actions")

// Reducer computes the next state from the current state and an action.
// It must not mutate state in place.
type Reducer[S any] func(state S, action ir.Action) S

// Container holds state S and dispatches actions through middleware.
type Container[S any] struct {
	mu    sync.RWMutex
	state S

	reducer  Reducer[S]
	dispatch engine.Dispatcher
	reducing atomic.Bool
	quota    *Quota
	logger   *slog.Logger

	subMu     sync.Mutex
	listeners []*listener
}

type listener struct {
	fn func()
}

type config[S any] struct {
	middlewares []engine.Middleware[S]
	maxDepth    int
	maxSteps    int
	logger      *slog.Logger
}

// Option configures a Container.
type Option[S any] func(*config[S])

// WithMiddleware appends middlewares to the chain. The first middleware
// given overall is the outermost.
func WithMiddleware[S any](mws ...engine.Middleware[S]) Option[S] {
	return func(c *config[S]) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithMaxDepth limits nested dispatch depth. 0 disables the check.
// Default: DefaultMaxDepth.
func WithMaxDepth[S any](n int) Option[S] {
	return func(c *config[S]) {
		c.maxDepth = n
	}
}

// WithMaxSteps limits dispatches per root dispatch. 0 disables the check.
// Default: DefaultMaxSteps.
func WithMaxSteps[S any](n int) Option[S] {
	return func(c *config[S]) {
		c.maxSteps = n
	}
}

// WithLogger sets the container logger. Default: slog.Default().
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(c *config[S]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a container with the given reducer and initial state.
func New[S any](reducer Reducer[S], initial S, opts ...Option[S]) *Container[S] {
	cfg := config[S]{
		maxDepth: DefaultMaxDepth,
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Container[S]{
		state:   initial,
		reducer: reducer,
		quota:   NewQuota(cfg.maxDepth, cfg.maxSteps),
		logger:  cfg.logger,
	}
	c.dispatch = engine.Chain[S](c, c.reduce, cfg.middlewares...)
	return c
}

// GetState returns the current state.
func (c *Container[S]) GetState() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Dispatch sends action through the middleware chain and returns the
// outermost middleware's result. With no middleware the result is the
// action itself.
//
// Panics with ErrReducerDispatch when called from inside the reducer, and
// with *DepthExceededError or *StepsExceededError when the quota is hit.
func (c *Container[S]) Dispatch(action ir.Action) any {
	if c.reducing.Load() {
		panic(ErrReducerDispatch)
	}

	defer c.quota.Leave()
	if err := c.quota.Enter(action.Type); err != nil {
		c.logger.Error("dispatch quota exceeded",
			"action_type", action.Type,
			"error", err,
		)
		panic(err)
	}
	return c.dispatch(action)
}

// Subscribe registers fn to run after every reduction. The returned
// function removes the subscription; calling it twice is a no-op.
func (c *Container[S]) Subscribe(fn func()) (unsubscribe func()) {
	l := &listener{fn: fn}

	c.subMu.Lock()
	c.listeners = append(c.listeners, l)
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, other := range c.listeners {
			if other == l {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// reduce is the innermost step of the chain.
func (c *Container[S]) reduce(action ir.Action) any {
	current := c.GetState()

	c.reducing.Store(true)
	next := func() S {
		defer c.reducing.Store(false)
		return c.reducer(current, action)
	}()

	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	c.notify()
	return action
}

// notify calls a snapshot of the listeners so that subscribing or
// unsubscribing from inside a listener affects only the next reduction.
func (c *Container[S]) notify() {
	c.subMu.Lock()
	snapshot := make([]*listener, len(c.listeners))
	copy(snapshot, c.listeners)
	c.subMu.Unlock()

	for _, l := range snapshot {
		l.fn()
	}
}
