package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/ruleware/internal/ir"
)

// CompilePath compiles a CUE file, or every CUE file of the package in a
// directory.
func CompilePath(path string) (*ir.Program, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return CompileDir(path)
	}
	return CompileFile(path)
}

// CompileDir loads the CUE package in dir, unifying all of its files, so
// rules and reducers may be split across files.
func CompileDir(dir string) (*ir.Program, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("load %s: no CUE instances", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	ctx := cuecontext.New()
	return CompileValue(ctx.BuildInstance(inst))
}

// CompileFile reads and compiles a single CUE file.
func CompileFile(path string) (*ir.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return CompileSource(path, src)
}

// CompileSource compiles CUE source. filename is used in error positions.
func CompileSource(filename string, src []byte) (*ir.Program, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileValue(v)
}

// CompileValue compiles an already-built CUE value holding top-level
// rules and reducers lists. Either may be absent.
//
// Compilation is structural: it checks shapes and kinds and fails on the
// first problem. Semantic checks live in Validate.
func CompileValue(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	program := &ir.Program{Rules: []ir.RuleSpec{}}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if rulesVal.Exists() {
		iter, err := rulesVal.List()
		if err != nil {
			return nil, &CompileError{Field: "rules", Message: "must be a list", Pos: rulesVal.Pos()}
		}
		for i := 0; iter.Next(); i++ {
			rule, err := compileRule(iter.Value(), fmt.Sprintf("rules[%d]", i))
			if err != nil {
				return nil, err
			}
			program.Rules = append(program.Rules, rule)
		}
	}

	reducersVal := v.LookupPath(cue.ParsePath("reducers"))
	if reducersVal.Exists() {
		iter, err := reducersVal.List()
		if err != nil {
			return nil, &CompileError{Field: "reducers", Message: "must be a list", Pos: reducersVal.Pos()}
		}
		for i := 0; iter.Next(); i++ {
			reducer, err := compileReducer(iter.Value(), fmt.Sprintf("reducers[%d]", i))
			if err != nil {
				return nil, err
			}
			program.Reducers = append(program.Reducers, reducer)
		}
	}

	if !rulesVal.Exists() && !reducersVal.Exists() {
		return nil, &CompileError{Field: "rules", Message: "no rules or reducers defined", Pos: v.Pos()}
	}

	return program, nil
}
