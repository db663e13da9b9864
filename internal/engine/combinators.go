package engine

// Every is true iff every condition holds (logical AND). Every() is true.
func Every[S any](conditions ...Condition[S]) Condition[S] {
	return func(facts Facts[S]) bool {
		for _, c := range conditions {
			if !c(facts) {
				return false
			}
		}
		return true
	}
}

// Some is true iff at least one condition holds (logical OR). Some() is false.
func Some[S any](conditions ...Condition[S]) Condition[S] {
	return func(facts Facts[S]) bool {
		for _, c := range conditions {
			if c(facts) {
				return true
			}
		}
		return false
	}
}

// NotEvery is the negation of Every (NAND). NotEvery() is false.
func NotEvery[S any](conditions ...Condition[S]) Condition[S] {
	every := Every(conditions...)
	return func(facts Facts[S]) bool {
		return !every(facts)
	}
}

// NotSome is the negation of Some (NOR). NotSome() is true.
func NotSome[S any](conditions ...Condition[S]) Condition[S] {
	some := Some(conditions...)
	return func(facts Facts[S]) bool {
		return !some(facts)
	}
}

// Always is a condition that always holds.
func Always[S any]() Condition[S] {
	return func(Facts[S]) bool { return true }
}
