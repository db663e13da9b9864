// Package compiler turns declarative CUE rule programs into IR and then
// into engine rules.
//
// A program file has two top-level lists:
//
//	rules: [{
//		type:        "greetings/WELCOME"
//		actionTypes: ["LOGIN_SUCCESS"]
//		condition: {path: "action.payload.user.roles", op: "contains", value: "admin"}
//		reaction: {
//			timing:   "after"
//			dispatch: {type: "FLASH_MESSAGE", payload: text: "Hello ${state.user.name}!"}
//		}
//	}]
//	reducers: [{on: "LOGIN_SUCCESS", set: "user", from: "action.payload.user"}]
//
// The pipeline is CompileSource/CompileFile (CUE → *ir.Program), Validate
// (all errors, E2xx codes), AnalyzeCycles (warnings), then BuildRules
// (*ir.Program → []engine.Rule[ir.IRObject]).
package compiler
