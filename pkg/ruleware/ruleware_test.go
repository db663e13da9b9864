package ruleware_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleware/pkg/ruleware"
)

type counter struct {
	Hits int
	Log  []string
}

func count(state counter, action ruleware.Action) counter {
	if action.Type == "HIT" {
		state.Hits++
	}
	return state
}

func marker(name string, log *[]string) ruleware.Reaction[counter] {
	return func(_ ruleware.Store[counter], action ruleware.Action, next ruleware.Dispatcher) any {
		*log = append(*log, name+"-before")
		out := next(action)
		*log = append(*log, name+"-after")
		return out
	}
}

func always(ruleware.Facts[counter]) bool { return true }

func TestNew_OnionOrder(t *testing.T) {
	var log []string
	mw, err := ruleware.New([]ruleware.Rule[counter]{
		{Type: "r1", ActionTypes: []string{"HIT"}, Condition: always, Reaction: marker("r1", &log)},
		{Type: "r2", ActionTypes: []string{"HIT"}, Condition: always, Reaction: marker("r2", &log)},
	})
	require.NoError(t, err)

	c := ruleware.NewContainer(func(s counter, a ruleware.Action) counter {
		log = append(log, "next")
		return count(s, a)
	}, counter{}, ruleware.WithMiddleware(mw))
	c.Dispatch(ruleware.Action{Type: "HIT"})

	assert.Equal(t, []string{"r1-before", "r2-before", "next", "r2-after", "r1-after"}, log)
	assert.Equal(t, 1, c.GetState().Hits)
}

func TestNew_ZeroRulesPassThrough(t *testing.T) {
	mw, err := ruleware.New[counter](nil)
	require.NoError(t, err)

	c := ruleware.NewContainer(count, counter{}, ruleware.WithMiddleware(mw))
	out := c.Dispatch(ruleware.Action{Type: "HIT"})

	assert.Equal(t, ruleware.Action{Type: "HIT"}, out)
	assert.Equal(t, 1, c.GetState().Hits)
}

func TestNew_MalformedRuleNamesType(t *testing.T) {
	_, err := ruleware.New([]ruleware.Rule[counter]{{
		Type:        "WELCOME_MESSAGE",
		ActionTypes: []string{"LOGIN"},
		Reaction:    marker("x", new([]string)),
	}})
	require.Error(t, err)
	assert.True(t, ruleware.IsMalformedRule(err))
	assert.Contains(t, err.Error(), "WELCOME_MESSAGE")

	var mre *ruleware.MalformedRuleError
	assert.True(t, errors.As(err, &mre))

	assert.Panics(t, func() {
		ruleware.MustNew([]ruleware.Rule[counter]{{Type: "broken"}})
	})
}

func TestCombinators(t *testing.T) {
	yes := func(ruleware.Facts[counter]) bool { return true }
	no := func(ruleware.Facts[counter]) bool { return false }
	var f ruleware.Facts[counter]

	assert.True(t, ruleware.Every[counter]()(f))
	assert.False(t, ruleware.Some[counter]()(f))
	assert.False(t, ruleware.NotEvery[counter]()(f))
	assert.True(t, ruleware.NotSome[counter]()(f))

	assert.False(t, ruleware.Every(yes, no)(f))
	assert.True(t, ruleware.Some(yes, no)(f))
	assert.True(t, ruleware.NotEvery(yes, ruleware.Every(yes, no))(f))
}

func TestWithMaxDepth(t *testing.T) {
	mw := ruleware.MustNew([]ruleware.Rule[counter]{{
		Type:        "loop",
		ActionTypes: []string{"HIT"},
		Condition:   always,
		Reaction: func(store ruleware.Store[counter], action ruleware.Action, next ruleware.Dispatcher) any {
			store.Dispatch(action)
			return next(action)
		},
	}})
	c := ruleware.NewContainer(count, counter{},
		ruleware.WithMiddleware(mw), ruleware.WithMaxDepth[counter](3))

	func() {
		defer func() {
			err, ok := recover().(error)
			require.True(t, ok)
			assert.ErrorContains(t, err, "exceeded max depth")
		}()
		c.Dispatch(ruleware.Action{Type: "HIT"})
	}()
}

func TestLoadRules(t *testing.T) {
	prog, err := ruleware.LoadRules(filepath.Join("testdata", "greeting.cue"))
	require.NoError(t, err)
	require.Len(t, prog.Rules, 1)
	assert.Equal(t, "greetings/WELCOME", prog.Rules[0].Type)
	assert.NotEmpty(t, prog.Hash)

	c := ruleware.NewContainer(prog.Reducer, ruleware.State{},
		ruleware.WithMiddleware(ruleware.MustNew(prog.Rules)))
	c.Dispatch(ruleware.NewAction("LOGIN_SUCCESS", map[string]any{
		"user": map[string]any{"name": "Manolo", "roles": []any{"admin"}},
	}))

	msg, ok := ruleware.Lookup(c.GetState(), "message")
	require.True(t, ok)
	assert.Equal(t, "Hello Manolo!", msg)
}

func TestLoadRules_Missing(t *testing.T) {
	_, err := ruleware.LoadRules(filepath.Join("testdata", "nope.cue"))
	assert.Error(t, err)
}
