/*
 * Copyright 2024 The ucc Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ssa

import (
    `fmt`
    `io`
    `sync`

    `github.com/ucclang/ucc/internal/ast`
)

// Pass is one function-level rewrite. Apply reports whether it changed the
// graph, so the driver can iterate interleaved passes to a joint fixpoint.
type Pass interface {
    Apply(fn *Function) bool
}

type PassDescriptor struct {
    Pass Pass
    Name string
}

var Passes = [...]PassDescriptor {
    { Name: "Constant Propagation" , Pass: new(ConstProp) },
    { Name: "Dead Code Elimination", Pass: new(DeadCode) },
    { Name: "Graph Simplification" , Pass: new(Simplify) },
}

// Options selects which optimizations run and bounds the optimizer. All
// passes are on by default; MaxRounds caps the interleaved fixpoint loop,
// zero meaning the default bound.
type Options struct {
    ConstProp bool
    DeadCode  bool
    Simplify  bool
    MaxRounds int
    Dump      io.Writer
}

// DefaultMaxRounds bounds the optimization fixpoint. Each round shrinks the
// function or is the last, so real programs settle in a handful of rounds;
// the cap turns a pass bug into a warning instead of a hang.
const DefaultMaxRounds = 32

func DefaultOptions() Options {
    return Options {
        ConstProp : true,
        DeadCode  : true,
        Simplify  : true,
        MaxRounds : DefaultMaxRounds,
    }
}

func (self Options) enabled(name string) bool {
    switch name {
        case "Constant Propagation"  : return self.ConstProp
        case "Dead Code Elimination" : return self.DeadCode
        case "Graph Simplification"  : return self.Simplify
        default                      : return false
    }
}

// Compile lowers one decorated function body into optimized SSA form: build
// the CFG, promote the scalar slots, then run the pass roster to a fixpoint.
func Compile(mod *Module, decl *ast.FuncDecl, opts Options) (*Function, []error, error) {
    fn, err := BuildFunc(mod, decl)
    if err != nil {
        return nil, nil, err
    }
    warns, err := optimizeFunc(fn, opts)
    return fn, warns, err
}

// Optimize runs the pass roster over every function of the module, one
// goroutine per function. Functions never share blocks or registers, so no
// locking is needed beyond collecting the results.
func Optimize(mod *Module, opts Options) ([]error, error) {
    var wg sync.WaitGroup
    var mu sync.Mutex
    var first error
    var warns []error

    /* dumps must come out in order, so they force sequential execution */
    if opts.Dump != nil {
        for _, fn := range mod.Funcs {
            w, err := optimizeFunc(fn, opts)
            warns = append(warns, w...)
            if err != nil {
                return warns, err
            }
        }
        return warns, nil
    }

    for _, fn := range mod.Funcs {
        wg.Add(1)
        go func(fn *Function) {
            defer wg.Done()
            w, err := optimizeFunc(fn, opts)
            mu.Lock()
            warns = append(warns, w...)
            if err != nil && first == nil {
                first = err
            }
            mu.Unlock()
        }(fn)
    }

    wg.Wait()
    return warns, first
}

func optimizeFunc(fn *Function, opts Options) ([]error, error) {
    var warns []error

    if opts.MaxRounds <= 0 {
        opts.MaxRounds = DefaultMaxRounds
    }
    fn.CFG.Rebuild()
    Promote(fn)

    if err := Check(fn); err != nil {
        return warns, err
    }
    dump(fn, opts, "ssa")

    /* interleave the enabled passes until none of them changes the graph */
    for round := 0; ; round++ {
        if round >= opts.MaxRounds {
            warns = append(warns, &NonterminationWarning { Func: fn.Name, Pass: "optimizer" })
            break
        }

        done := true
        for _, p := range Passes {
            if !opts.enabled(p.Name) {
                continue
            }
            if p.Pass.Apply(fn) {
                done = false
                dump(fn, opts, p.Name)
            }
            if err := Check(fn); err != nil {
                return warns, err
            }
        }
        if done {
            break
        }
    }
    return warns, nil
}

func dump(fn *Function, opts Options, stage string) {
    if opts.Dump != nil {
        fmt.Fprintf(opts.Dump, "--- @%s after %s ---\n%s\n", fn.Name, stage, FormatFunc(fn))
    }
}
