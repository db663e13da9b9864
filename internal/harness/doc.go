// Package harness runs rule programs against YAML scenarios.
//
// A scenario names a CUE program, an optional initial state, a list of
// actions to dispatch and assertions over the resulting journal trace and
// final state.
//
// # Scenario Format
//
//	name: vip_checkout
//	description: "VIP customers get their discount before checkout"
//	program: ../programs/shop.cue
//	token: shop-token
//	initial_state:
//	  customer: { tier: vip }
//	steps:
//	  - dispatch: CHECKOUT
//	    payload: { cart: 42 }
//	    expect_state:
//	      checkedOut: true
//	assertions:
//	  - type: rule_fired
//	    rule: discounts/VIP
//	  - type: trace_order
//	    actions: [APPLY_DISCOUNT, SEND_RECEIPT]
//	  - type: final_state
//	    path: discounts
//	    equals: [VIP]
//
// The program path is relative to the scenario file.
//
// # Assertion Types
//
//   - trace_contains: a dispatch of action whose payload contains payload
//   - trace_order: dispatches of actions appear in this relative order
//   - trace_count: action was dispatched exactly count times
//   - rule_fired: rule fired at least once, or exactly count times
//   - rule_order: the rules fired for the first dispatch of action, in chain order
//   - final_state: the value at path equals equals, or is absent
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory journal, a testutil.DeterministicClock
// and a fixed token, so the same scenario always yields the same trace and
// golden snapshots compare byte for byte.
package harness
