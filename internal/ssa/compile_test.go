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
    `strings`
    `testing`

    `github.com/stretchr/testify/require`
    `github.com/ucclang/ucc/internal/ast`
)

/* int f() { int x; x = 2 + 3; if (x > 4) { return x; } return 0; } */
func foldable() *ast.FuncDecl {
    x := mksym("x", ast.SymLocal, ast.Int)
    return &ast.FuncDecl {
        Name : "f",
        Ret  : ast.Int,
        Body : &ast.Compound {
            Stmts: []ast.Stmt {
                &ast.DeclStmt { Decl: &ast.VarDecl {
                    Sym  : x,
                    Init : &ast.Binary { Op: ast.OpAdd, X: &ast.IntLit { Value: 2 }, Y: &ast.IntLit { Value: 3 }, Type: ast.Int },
                }},
                &ast.If {
                    Cond: &ast.Binary { Op: ast.OpGt, X: mkident(x), Y: &ast.IntLit { Value: 4 }, Type: ast.Bool },
                    Then: &ast.Return { Value: mkident(x) },
                },
                &ast.Return { Value: &ast.IntLit { Value: 0 } },
            },
        },
    }
}

func TestCompile_FoldsToSingleReturn(t *testing.T) {
    mod := &Module { Name: "test" }
    fn, warns, err := Compile(mod, foldable(), DefaultOptions())
    require.NoError(t, err)
    require.Empty(t, warns)

    /* 2 + 3 = 5 > 4, so the whole function folds to "return 5" */
    require.Equal(t, 1, len(fn.AllBlocks()))
    r, ok := fn.CFG.Root.Term.(*IrReturn)
    require.True(t, ok)

    v, ok := definedBy(fn.CFG)[r.V].(*IrConstInt)
    require.True(t, ok)
    require.Equal(t, int64(5), v.V)
}

func TestCompile_DisabledPassesLeaveWork(t *testing.T) {
    opts := DefaultOptions()
    opts.ConstProp = false
    opts.Simplify = false

    mod := &Module { Name: "test" }
    fn, _, err := Compile(mod, foldable(), opts)
    require.NoError(t, err)

    /* without folding the conditional branch must survive */
    found := false
    for _, bb := range fn.CFG.Blocks() {
        if _, ok := bb.Term.(*IrBranchIf); ok {
            found = true
        }
    }
    require.True(t, found)
}

func TestOptimize_WholeModule(t *testing.T) {
    prog := &ast.Program {
        Funcs: []*ast.FuncDecl { foldable(), condassign() },
    }

    mod, err := BuildModule("test", prog)
    require.NoError(t, err)

    warns, err := Optimize(mod, DefaultOptions())
    require.NoError(t, err)
    require.Empty(t, warns)

    for _, fn := range mod.Funcs {
        require.NoError(t, Check(fn))
    }
}

func TestOptimize_DumpStages(t *testing.T) {
    prog := &ast.Program { Funcs: []*ast.FuncDecl { foldable() } }
    mod, err := BuildModule("test", prog)
    require.NoError(t, err)

    var sb strings.Builder
    opts := DefaultOptions()
    opts.Dump = &sb

    _, err = Optimize(mod, opts)
    require.NoError(t, err)
    require.Contains(t, sb.String(), "after ssa")
    require.Contains(t, sb.String(), "after Constant Propagation")
}

func TestOptimize_RoundCapWarns(t *testing.T) {
    prog := &ast.Program { Funcs: []*ast.FuncDecl { foldable() } }
    mod, err := BuildModule("test", prog)
    require.NoError(t, err)

    /* with a single round the optimizer cannot settle and must say so */
    opts := DefaultOptions()
    opts.MaxRounds = 1

    warns, err := Optimize(mod, opts)
    require.NoError(t, err)
    require.NotEmpty(t, warns)
    require.IsType(t, &NonterminationWarning{}, warns[0])
}
