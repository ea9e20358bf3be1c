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

// roundtrip formats a module, parses the text back, and formats the result
// again; both renderings must agree exactly.
func roundtrip(t *testing.T, mod *Module) {
    text := FormatModule(mod)
    back, err := ParseModule(mod.Name, text)
    require.NoError(t, err, "cannot parse:\n%s", text)
    require.Equal(t, text, FormatModule(back))
}

func TestPrint_RoundTripBuiltFunction(t *testing.T) {
    mod := &Module { Name: "test" }
    fn, err := BuildFunc(mod, condassign())
    require.NoError(t, err)
    mod.Funcs = append(mod.Funcs, fn)
    roundtrip(t, mod)

    /* and again after promotion, with phis and versioned names */
    Promote(fn)
    roundtrip(t, mod)
}

func TestPrint_RoundTripGlobals(t *testing.T) {
    mod, err := ParseModule("test", `
@count = global 42 : int
@scale = global 2.5 : float
@flag = global true : bool
@msg = global "hello\n" : string
@buf = global : int[8]
`)
    require.NoError(t, err)
    require.Equal(t, 5, len(mod.Globals))
    roundtrip(t, mod)
}

func TestPrint_NamedRegisters(t *testing.T) {
    mod := &Module { Name: "test" }
    fn, err := BuildFunc(mod, condassign())
    require.NoError(t, err)
    Promote(fn)
    mod.Funcs = append(mod.Funcs, fn)

    /* the promoted variable prints under its source name */
    text := FormatModule(mod)
    require.Contains(t, text, "%x")
    require.Contains(t, text, "%c")
    require.NotContains(t, text, "= alloc")
    roundtrip(t, mod)
}

func TestParse_NamedParamKeepsNumericIdentity(t *testing.T) {
    mod, err := ParseModule("test", `
define @f(%c : bool) : int {
bb_0:
    %1 = literal 1 : int
    %2 = literal 2 : int
    cbranch %c, bb_1, bb_2
bb_1:
    ret %1 : int
bb_2:
    ret %2 : int
}
`)
    require.NoError(t, err)
    fn := mod.Func("f")
    require.NoError(t, Check(fn))

    /* the named parameter must not alias a numeric body register */
    require.NotEqual(t, fn.Params[0].R.Ident(), uint32(1))
    require.NotEqual(t, fn.Params[0].R.Ident(), uint32(2))

    /* numeric registers keep their numeric rendering */
    text := FormatFunc(fn)
    require.Contains(t, text, "define @f(%c : bool) : int {")
    require.Contains(t, text, "%1 = literal 1 : int")
    require.Contains(t, text, "ret %2 : int")
    roundtrip(t, mod)
}

func TestPrint_PhiOperandOrderIsStable(t *testing.T) {
    fn := parsefn(t, _Diamond)
    a := FormatFunc(fn)
    b := FormatFunc(fn)
    require.Equal(t, a, b)
    require.Contains(t, a, "phi (%1, bb_1), (%2, bb_2)")
}

func TestParse_Errors(t *testing.T) {
    cases := []struct {
        name string
        src  string
    }{
        { "missing terminator"  , "define @f() : void {\nbb_0:\n    %1 = literal 1 : int\n}" },
        { "unknown instruction" , "define @f() : void {\nbb_0:\n    %1 = frobnicate 1 : int\n    ret : void\n}" },
        { "bad type"            , "define @f() : void {\nbb_0:\n    %1 = literal 1 : quux\n    ret : void\n}" },
        { "code before label"   , "define @f() : void {\n    ret : void\n}" },
        { "garbage at top level", "wibble\n" },
        { "unterminated body"   , "define @f() : void {\nbb_0:\n    ret : void\n" },
    }

    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            _, err := ParseModule("test", tc.src)
            require.Error(t, err)
            require.IsType(t, &StructuralError{}, err)
        })
    }
}

func TestParse_AcceptsCallsAndEffects(t *testing.T) {
    mod, err := ParseModule("test", `
@msg = global "hi" : string

define @main() : int {
bb_0:
    %1 = addr @msg : string
    print %1 : string
    print : void
    %2 = alloc : int
    read %2 : int
    %3 = load %2 : int
    %4 = call @twice, %3 : int
    ret %4 : int
}

define @twice(%x : int) : int {
bb_0:
    %1 = literal 2 : int
    %2 = mul %x, %1 : int
    ret %2 : int
}
`)
    require.NoError(t, err)
    require.Equal(t, 2, len(mod.Funcs))
    require.NotNil(t, mod.Func("twice"))
    roundtrip(t, mod)

    for _, fn := range mod.Funcs {
        require.NoError(t, Check(fn))
    }
}

func TestFormat_ArrayTypes(t *testing.T) {
    tp := ast.ArrayOf(ast.Int, 8)
    require.Equal(t, "int[8]", tp.String())

    back, ok := ast.ParseType("int[8]")
    require.True(t, ok)
    require.Equal(t, tp, back)
}

func TestFormat_UnreachableBlocksArePrinted(t *testing.T) {
    mod := &Module { Name: "test" }
    x := mksym("x", ast.SymLocal, ast.Int)
    fn, err := BuildFunc(mod, &ast.FuncDecl {
        Name : "f",
        Ret  : ast.Int,
        Body : &ast.Compound {
            Stmts: []ast.Stmt {
                &ast.Return { Value: &ast.IntLit { Value: 1 } },
                &ast.DeclStmt { Decl: &ast.VarDecl { Sym: x, Init: &ast.IntLit { Value: 2 } } },
            },
        },
    })
    require.NoError(t, err)

    text := FormatFunc(fn)
    require.Equal(t, len(fn.AllBlocks()), strings.Count(text, ":\n"))
}
