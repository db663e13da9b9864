package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombinators_Vacuous(t *testing.T) {
	f := Facts[testState]{}

	assert.True(t, Every[testState]()(f))
	assert.False(t, Some[testState]()(f))
	assert.False(t, NotEvery[testState]()(f))
	assert.True(t, NotSome[testState]()(f))
}

func TestCombinators_TrueFalse(t *testing.T) {
	f := Facts[testState]{}

	tests := []struct {
		name string
		cond Condition[testState]
		want bool
	}{
		{"every(true,false)", Every(always, never), false},
		{"some(true,false)", Some(always, never), true},
		{"notEvery(true,false)", NotEvery(always, never), true},
		{"notSome(true,false)", NotSome(always, never), false},
		{"every(true,true)", Every(always, always), true},
		{"some(false,false)", Some(never, never), false},
		{"notEvery(true,true)", NotEvery(always, always), false},
		{"notSome(false,false)", NotSome(never, never), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond(f))
		})
	}
}

func TestCombinators_ShortCircuit(t *testing.T) {
	f := Facts[testState]{}
	calls := 0
	counted := func(Facts[testState]) bool {
		calls++
		return true
	}

	Every(never, counted)(f)
	assert.Zero(t, calls, "every stops at first false")

	Some(always, counted)(f)
	assert.Zero(t, calls, "some stops at first true")
}

func TestCombinators_Nest(t *testing.T) {
	isVIP := func(f Facts[testState]) bool { return f.State.User == "vip" }
	big := func(f Facts[testState]) bool { return f.State.N > 100 }

	discount := Some(Every(isVIP, big), NotSome(isVIP, big))

	assert.True(t, discount(Facts[testState]{State: testState{User: "vip", N: 200}}))
	assert.True(t, discount(Facts[testState]{State: testState{User: "bob", N: 1}}))
	assert.False(t, discount(Facts[testState]{State: testState{User: "vip", N: 1}}))
	assert.True(t, Always[testState]()(Facts[testState]{}))
}
