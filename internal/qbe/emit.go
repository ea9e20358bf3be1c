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

// Package qbe lowers optimized SSA modules to the QBE intermediate language.
// Every function is emitted block by block; phis, branches and calls map
// one-to-one, while print and read become calls into a small C runtime.
package qbe

import (
    `fmt`
    `strconv`
    `strings`

    `github.com/ucclang/ucc/internal/ast`
    `github.com/ucclang/ucc/internal/ssa`
)

// LoweringError reports an instruction the backend cannot express.
type LoweringError struct {
    Func  string
    Block int
    Ins   string
    Msg   string
}

func (self *LoweringError) Error() string {
    return fmt.Sprintf("cannot lower @%s, bb_%d, %q: %s", self.Func, self.Block, self.Ins, self.Msg)
}

// EmitModule renders the whole module as a QBE IL translation unit: data
// sections for the globals, then one exported function per definition.
func EmitModule(m *ssa.Module) (string, error) {
    e := _Emitter{mod: m}
    for _, g := range m.Globals {
        if err := e.global(g); err != nil {
            return "", err
        }
    }
    for _, fn := range m.Funcs {
        if err := e.function(fn); err != nil {
            return "", err
        }
    }
    return e.sb.String(), nil
}

type _Emitter struct {
    sb  strings.Builder
    mod *ssa.Module
    fn  *ssa.Function
    bb  *ssa.BasicBlock
}

func (self *_Emitter) line(format string, args ...interface{}) {
    fmt.Fprintf(&self.sb, format, args...)
    self.sb.WriteString("\n")
}

func (self *_Emitter) fail(ins ssa.IrNode, msg string) error {
    return &LoweringError {
        Func  : self.fn.Name,
        Block : self.bb.Id,
        Ins   : fmt.Sprint(ins),
        Msg   : msg,
    }
}

/* class maps a front end type onto a QBE register class: 64-bit integers
 * and addresses are "l", floats are "d", the narrow types are "w" */
func class(tp ast.Type) string {
    switch tp.Kind {
        case ast.TFloat              : return "d"
        case ast.TChar, ast.TBool    : return "w"
        default                      : return "l"
    }
}

func sizeof(tp ast.Type) int {
    switch tp.Kind {
        case ast.TChar, ast.TBool : return 4
        case ast.TArray           : return sizeof(*tp.Elem) * tp.Len
        default                   : return 8
    }
}

func temp(r ssa.Reg) string {
    if v := r.Version(); v != 0 {
        return fmt.Sprintf("%%v%d_%d", r.Ident(), v)
    } else {
        return fmt.Sprintf("%%v%d", r.Ident())
    }
}

// global emits one data section. Scalar globals carry their initializer or
// zero; strings become NUL-terminated byte runs; arrays are zero-filled.
func (self *_Emitter) global(g *ssa.Global) error {
    switch g.Tp.Kind {
        case ast.TArray: {
            self.line("data $%s = align 8 { z %d }", g.Name, sizeof(g.Tp))
        }
        case ast.TString: {
            s := ""
            if g.Init != nil {
                s = g.Init.Str
            }
            self.line("data $%s = { b %s, b 0 }", g.Name, strconv.Quote(s))
        }
        case ast.TFloat: {
            v := 0.0
            if g.Init != nil {
                v = g.Init.Float
            }
            self.line("data $%s = align 8 { d d_%s }", g.Name, strconv.FormatFloat(v, 'g', -1, 64))
        }
        case ast.TInt, ast.TChar, ast.TBool: {
            v := int64(0)
            if g.Init != nil {
                v = g.Init.Int
                if g.Tp.Kind == ast.TBool && g.Init.Bool {
                    v = 1
                }
            }
            if sizeof(g.Tp) == 4 {
                self.line("data $%s = align 4 { w %d }", g.Name, v)
            } else {
                self.line("data $%s = align 8 { l %d }", g.Name, v)
            }
        }
        default: {
            return &LoweringError { Func: "", Block: -1, Ins: g.String(), Msg: "global of unsupported type" }
        }
    }
    return nil
}

func (self *_Emitter) function(fn *ssa.Function) error {
    self.fn = fn

    /* signature */
    args := make([]string, 0, len(fn.Params))
    for _, p := range fn.Params {
        args = append(args, fmt.Sprintf("%s %s", class(p.Tp), temp(p.R)))
    }
    if fn.Ret.Kind == ast.TVoid {
        self.line("export function $%s(%s) {", fn.Name, strings.Join(args, ", "))
    } else {
        self.line("export function %s $%s(%s) {", class(fn.Ret), fn.Name, strings.Join(args, ", "))
    }

    for _, bb := range fn.CFG.Blocks() {
        self.bb = bb
        self.line("@bb_%d", bb.Id)

        for _, p := range bb.Phi {
            if err := self.phi(p); err != nil {
                return err
            }
        }
        for _, ins := range bb.Ins {
            if err := self.ins(ins); err != nil {
                return err
            }
        }
        if err := self.term(bb.Term); err != nil {
            return err
        }
    }

    self.line("}")
    return nil
}

func (self *_Emitter) phi(p *ssa.IrPhi) error {
    arms := make([]string, 0, len(p.V))
    for _, from := range self.bb.Pred {
        r, ok := p.V[from]
        if !ok {
            return self.fail(p, fmt.Sprintf("missing operand for bb_%d", from.Id))
        }
        arms = append(arms, fmt.Sprintf("@bb_%d %s", from.Id, temp(*r)))
    }
    self.line("    %s =%s phi %s", temp(p.R), class(p.Tp), strings.Join(arms, ", "))
    return nil
}

func (self *_Emitter) term(t ssa.IrTerminator) error {
    switch v := t.(type) {
        case *ssa.IrBranch: {
            self.line("    jmp @bb_%d", v.To.Id)
        }
        case *ssa.IrBranchIf: {
            self.line("    jnz %s, @bb_%d, @bb_%d", temp(v.V), v.T.Id, v.F.Id)
        }
        case *ssa.IrReturn: {
            if v.Tp.Kind == ast.TVoid {
                self.line("    ret")
            } else {
                self.line("    ret %s", temp(v.V))
            }
        }
        default: {
            return self.fail(t, "unknown terminator")
        }
    }
    return nil
}

func (self *_Emitter) ins(v ssa.IrNode) error {
    switch ins := v.(type) {
        case *ssa.IrAlloc       : self.alloc(ins)
        case *ssa.IrLoad        : return self.load(ins)
        case *ssa.IrStore       : return self.store(ins)
        case *ssa.IrConstInt    : self.line("    %s =%s copy %d", temp(ins.R), class(ins.Tp), ins.V)
        case *ssa.IrConstFloat  : self.line("    %s =d copy d_%s", temp(ins.R), strconv.FormatFloat(ins.V, 'g', -1, 64))
        case *ssa.IrConstBool   : self.line("    %s =w copy %d", temp(ins.R), b2i(ins.V))
        case *ssa.IrGlobalAddr  : self.line("    %s =l copy $%s", temp(ins.R), ins.Name)
        case *ssa.IrIndex       : self.index(ins)
        case *ssa.IrUnaryExpr   : return self.unary(ins)
        case *ssa.IrBinaryExpr  : return self.binary(ins)
        case *ssa.IrConvert     : self.convert(ins)
        case *ssa.IrCall        : self.call(ins)
        case *ssa.IrPrint       : return self.print(ins)
        case *ssa.IrRead        : return self.read(ins)
        case *ssa.IrUndef       : self.undef(ins)
        default                 : return self.fail(v, "unknown instruction")
    }
    return nil
}

func (self *_Emitter) alloc(ins *ssa.IrAlloc) {
    n := sizeof(ins.Tp)
    if n % 8 == 0 {
        self.line("    %s =l alloc8 %d", temp(ins.R), n)
    } else {
        self.line("    %s =l alloc4 %d", temp(ins.R), n)
    }
}

func (self *_Emitter) load(ins *ssa.IrLoad) error {
    switch ins.Tp.Kind {
        case ast.TFloat           : self.line("    %s =d loadd %s", temp(ins.R), temp(ins.Mem))
        case ast.TChar, ast.TBool : self.line("    %s =w loadsw %s", temp(ins.R), temp(ins.Mem))
        case ast.TInt, ast.TString: self.line("    %s =l loadl %s", temp(ins.R), temp(ins.Mem))
        default                   : return self.fail(ins, "load of unsupported type")
    }
    return nil
}

func (self *_Emitter) store(ins *ssa.IrStore) error {
    switch ins.Tp.Kind {
        case ast.TFloat           : self.line("    stored %s, %s", temp(ins.V), temp(ins.Mem))
        case ast.TChar, ast.TBool : self.line("    storew %s, %s", temp(ins.V), temp(ins.Mem))
        case ast.TInt, ast.TString: self.line("    storel %s, %s", temp(ins.V), temp(ins.Mem))
        default                   : return self.fail(ins, "store of unsupported type")
    }
    return nil
}

// index scales the offset by the element size and adds the base address,
// using a scratch temp derived from the result.
func (self *_Emitter) index(ins *ssa.IrIndex) {
    r := temp(ins.R)
    self.line("    %s_off =l mul %s, %d", r, temp(ins.Off), sizeof(ins.Tp))
    self.line("    %s =l add %s, %s_off", r, temp(ins.Mem), r)
}

func (self *_Emitter) unary(ins *ssa.IrUnaryExpr) error {
    switch {
        case ins.Op == ssa.IrOpNegate : self.line("    %s =%s neg %s", temp(ins.R), class(ins.Tp), temp(ins.V))
        case ins.Op == ssa.IrOpNot    : self.line("    %s =w ceqw %s, 0", temp(ins.R), temp(ins.V))
        default                       : return self.fail(ins, "unknown unary operator")
    }
    return nil
}

var _IntBinary = map[ssa.IrBinaryOp]string {
    ssa.IrOpAdd: "add",
    ssa.IrOpSub: "sub",
    ssa.IrOpMul: "mul",
    ssa.IrOpDiv: "div",
    ssa.IrOpMod: "rem",
    ssa.IrOpAnd: "and",
    ssa.IrOpOr : "or",
    ssa.IrCmpLt: "csltl",
    ssa.IrCmpLe: "cslel",
    ssa.IrCmpGt: "csgtl",
    ssa.IrCmpGe: "csgel",
    ssa.IrCmpEq: "ceql",
    ssa.IrCmpNe: "cnel",
}

var _FloatBinary = map[ssa.IrBinaryOp]string {
    ssa.IrOpAdd: "add",
    ssa.IrOpSub: "sub",
    ssa.IrOpMul: "mul",
    ssa.IrOpDiv: "div",
    ssa.IrCmpLt: "cltd",
    ssa.IrCmpLe: "cled",
    ssa.IrCmpGt: "cgtd",
    ssa.IrCmpGe: "cged",
    ssa.IrCmpEq: "ceqd",
    ssa.IrCmpNe: "cned",
}

var _WordBinary = map[ssa.IrBinaryOp]string {
    ssa.IrOpAnd: "and",
    ssa.IrOpOr : "or",
    ssa.IrCmpLt: "csltw",
    ssa.IrCmpLe: "cslew",
    ssa.IrCmpGt: "csgtw",
    ssa.IrCmpGe: "csgew",
    ssa.IrCmpEq: "ceqw",
    ssa.IrCmpNe: "cnew",
}

func (self *_Emitter) binary(ins *ssa.IrBinaryExpr) error {
    var ops map[ssa.IrBinaryOp]string

    /* Tp is the operand type; comparisons still produce a word */
    switch ins.Tp.Kind {
        case ast.TInt             : ops = _IntBinary
        case ast.TFloat           : ops = _FloatBinary
        case ast.TChar, ast.TBool : ops = _WordBinary
        default                   : return self.fail(ins, "binary operator on unsupported type")
    }

    op, ok := ops[ins.Op]
    if !ok {
        return self.fail(ins, fmt.Sprintf("operator %s on %s operands", ins.Op, ins.Tp))
    }

    cls := class(ins.Tp)
    if ins.Op.IsCompare() {
        cls = "w"
    }
    self.line("    %s =%s %s %s, %s", temp(ins.R), cls, op, temp(ins.X), temp(ins.Y))
    return nil
}

func (self *_Emitter) convert(ins *ssa.IrConvert) {
    if ins.Op == ssa.IrOpSiToFp {
        self.line("    %s =d sltof %s", temp(ins.R), temp(ins.V))
    } else {
        self.line("    %s =l dtosi %s", temp(ins.R), temp(ins.V))
    }
}

func (self *_Emitter) call(ins *ssa.IrCall) {
    callee := self.mod.Func(ins.Fn)
    args := make([]string, 0, len(ins.In))

    /* argument classes follow the callee's signature; arrays and strings are
     * passed as addresses */
    for i, r := range ins.In {
        cls := "l"
        if callee != nil && i < len(callee.Params) {
            cls = class(callee.Params[i].Tp)
        }
        args = append(args, fmt.Sprintf("%s %s", cls, temp(r)))
    }
    if ins.Tp.Kind == ast.TVoid {
        self.line("    call $%s(%s)", ins.Fn, strings.Join(args, ", "))
    } else {
        self.line("    %s =%s call $%s(%s)", temp(ins.R), class(ins.Tp), ins.Fn, strings.Join(args, ", "))
    }
}

/* the print and read runtime entry points, one per scalar type */
func (self *_Emitter) print(ins *ssa.IrPrint) error {
    switch ins.Tp.Kind {
        case ast.TVoid   : self.line("    call $ucrt_print_nl()")
        case ast.TInt    : self.line("    call $ucrt_print_int(l %s)", temp(ins.V))
        case ast.TFloat  : self.line("    call $ucrt_print_float(d %s)", temp(ins.V))
        case ast.TChar   : self.line("    call $ucrt_print_char(w %s)", temp(ins.V))
        case ast.TBool   : self.line("    call $ucrt_print_bool(w %s)", temp(ins.V))
        case ast.TString : self.line("    call $ucrt_print_str(l %s)", temp(ins.V))
        default          : return self.fail(ins, "print of unsupported type")
    }
    return nil
}

func (self *_Emitter) read(ins *ssa.IrRead) error {
    r := temp(ins.Mem)
    switch ins.Tp.Kind {
        case ast.TInt: {
            self.line("    %s_in =l call $ucrt_read_int()", r)
            self.line("    storel %s_in, %s", r, r)
        }
        case ast.TFloat: {
            self.line("    %s_in =d call $ucrt_read_float()", r)
            self.line("    stored %s_in, %s", r, r)
        }
        case ast.TChar: {
            self.line("    %s_in =w call $ucrt_read_char()", r)
            self.line("    storew %s_in, %s", r, r)
        }
        default: {
            return self.fail(ins, "read of unsupported type")
        }
    }
    return nil
}

// undef materializes the deterministic zero of its type.
func (self *_Emitter) undef(ins *ssa.IrUndef) {
    if ins.Tp.Kind == ast.TFloat {
        self.line("    %s =d copy d_0", temp(ins.R))
    } else {
        self.line("    %s =%s copy 0", temp(ins.R), class(ins.Tp))
    }
}

func b2i(v bool) int {
    if v {
        return 1
    } else {
        return 0
    }
}
