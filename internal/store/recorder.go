package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/ruleware/internal/engine"
	"github.com/roach88/ruleware/internal/ir"
)

// Recorder journals dispatches into a Store.
//
// It plays two roles:
//   - Middleware: install it OUTERMOST so every dispatch, including nested
//     dispatches from reactions, is recorded before any rule sees it
//   - engine.Observer: attach it with engine.WithObserver so the rules
//     fired for the in-flight dispatch are recorded against it
//
// Journal writes are a side channel: failures are logged and dispatch
// continues.
//
// Thread-safety: Recorder tracks one in-flight dispatch stack. It is safe
// for the re-entrant, single-goroutine dispatch that container.Container
// supports, not for concurrent root dispatches.
type Recorder[S any] struct {
	store       *Store
	seq         Sequencer
	tokens      TokenGenerator
	hashState   func(S) (string, error)
	programHash string
	logger      *slog.Logger

	mu    sync.Mutex
	stack []frame
	roots []string // tokens minted, in order
}

type frame struct {
	id    string
	token string
}

// RecorderOption configures a Recorder.
type RecorderOption[S any] func(*Recorder[S])

// WithSequencer sets the seq source. Default: a Clock resumed after the
// journal's LastSeq.
func WithSequencer[S any](seq Sequencer) RecorderOption[S] {
	return func(r *Recorder[S]) { r.seq = seq }
}

// WithTokens sets the token generator. Default: UUIDv7Generator.
func WithTokens[S any](tokens TokenGenerator) RecorderOption[S] {
	return func(r *Recorder[S]) { r.tokens = tokens }
}

// WithStateHasher records a state hash on every completion.
func WithStateHasher[S any](hash func(S) (string, error)) RecorderOption[S] {
	return func(r *Recorder[S]) { r.hashState = hash }
}

// WithProgramHash stamps dispatches with the hash of the rule program.
func WithProgramHash[S any](hash string) RecorderOption[S] {
	return func(r *Recorder[S]) { r.programHash = hash }
}

// WithRecorderLogger sets the logger. Default: slog.Default().
func WithRecorderLogger[S any](logger *slog.Logger) RecorderOption[S] {
	return func(r *Recorder[S]) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecorder creates a recorder writing to s.
func NewRecorder[S any](ctx context.Context, s *Store, opts ...RecorderOption[S]) (*Recorder[S], error) {
	r := &Recorder[S]{
		store:  s,
		tokens: UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.seq == nil {
		last, err := s.LastSeq(ctx)
		if err != nil {
			return nil, err
		}
		r.seq = NewClockAt(last)
	}
	return r, nil
}

// Tokens returns the tokens minted so far, in order.
func (r *Recorder[S]) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.roots))
	copy(out, r.roots)
	return out
}

// Middleware returns the recording middleware.
func (r *Recorder[S]) Middleware() engine.Middleware[S] {
	return func(store engine.Store[S], action ir.Action, next engine.Dispatcher) any {
		f := r.begin(action)
		defer r.pop()

		out := next(action)
		r.complete(f, store)
		return out
	}
}

// Evaluated implements engine.Observer.
func (r *Recorder[S]) Evaluated(ev engine.Evaluation) {
	if len(ev.Fired) == 0 {
		return
	}

	r.mu.Lock()
	var top frame
	ok := len(r.stack) > 0
	if ok {
		top = r.stack[len(r.stack)-1]
	}
	r.mu.Unlock()

	if ok && top.id == "" {
		return
	}
	if !ok {
		r.logger.Warn("rule firing outside a recorded dispatch",
			"action_type", ev.Action.Type,
			"fired", ev.Fired,
		)
		return
	}

	if err := r.store.WriteFirings(context.Background(), top.id, ev.Fired, r.seq); err != nil {
		r.logger.Error("failed to journal firings",
			"dispatch_id", top.id,
			"error", err,
		)
	}
}

// begin pushes a frame for action and writes its dispatch row.
func (r *Recorder[S]) begin(action ir.Action) frame {
	r.mu.Lock()
	d := Dispatch{
		Action:        action,
		Depth:         len(r.stack),
		ProgramHash:   r.programHash,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if d.Depth == 0 {
		d.Token = r.tokens.Generate()
		r.roots = append(r.roots, d.Token)
	} else {
		parent := r.stack[len(r.stack)-1]
		d.Token = parent.token
		d.ParentID = parent.id
	}
	d.Seq = r.seq.Next()

	id, err := ir.DispatchID(d.Token, action, d.Seq)
	if err != nil {
		// The frame is pushed regardless so pop stays balanced.
		r.logger.Error("failed to compute dispatch id",
			"action_type", action.Type,
			"error", err,
		)
	}
	d.ID = id
	f := frame{id: id, token: d.Token}
	r.stack = append(r.stack, f)
	r.mu.Unlock()

	if id == "" {
		return f
	}
	if err := r.store.WriteDispatch(context.Background(), d); err != nil {
		r.logger.Error("failed to journal dispatch",
			"dispatch_id", id,
			"action_type", action.Type,
			"error", err,
		)
	}
	return f
}

func (r *Recorder[S]) complete(f frame, store engine.Store[S]) {
	if f.id == "" {
		return
	}

	c := Completion{DispatchID: f.id}
	if r.hashState != nil {
		hash, err := r.hashState(store.GetState())
		if err != nil {
			r.logger.Error("failed to hash state",
				"dispatch_id", f.id,
				"error", err,
			)
		}
		c.StateHash = hash
	}
	c.Seq = r.seq.Next()

	if err := r.store.WriteCompletion(context.Background(), c); err != nil {
		r.logger.Error("failed to journal completion",
			"dispatch_id", f.id,
			"error", err,
		)
	}
}

func (r *Recorder[S]) pop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}
