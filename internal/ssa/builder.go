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

    `github.com/ucclang/ucc/internal/ast`
)

var _BinaryOps = [...]IrBinaryOp {
    ast.OpAdd : IrOpAdd,
    ast.OpSub : IrOpSub,
    ast.OpMul : IrOpMul,
    ast.OpDiv : IrOpDiv,
    ast.OpMod : IrOpMod,
    ast.OpAnd : IrOpAnd,
    ast.OpOr  : IrOpOr,
    ast.OpLt  : IrCmpLt,
    ast.OpLe  : IrCmpLe,
    ast.OpGt  : IrCmpGt,
    ast.OpGe  : IrCmpGe,
    ast.OpEq  : IrCmpEq,
    ast.OpNe  : IrCmpNe,
}

// _GraphBuilder lowers one decorated function body into a fresh CFG in a
// single linear walk. It makes no optimization decisions: locals live in
// stack slots accessed by load/store until promotion, and statements after a
// return still get a block of their own, reachable from nothing, for the
// simplifier to prune later.
type _GraphBuilder struct {
    mod   *Module
    fn    *Function
    bb    *BasicBlock
    nb    int
    slots map[*ast.Symbol]Reg
    brk   []*BasicBlock
    cont  []*BasicBlock
}

// BuildModule lowers a whole decorated translation unit. Global initializers
// must already be literal constants, the front end folds anything else.
func BuildModule(name string, prog *ast.Program) (*Module, error) {
    mod := &Module { Name: name }

    /* lower every global declaration */
    for _, g := range prog.Globals {
        gv, err := buildGlobal(g)
        if err != nil {
            return nil, err
        }
        mod.Globals = append(mod.Globals, gv)
    }

    /* lower every function */
    for _, fn := range prog.Funcs {
        fv, err := BuildFunc(mod, fn)
        if err != nil {
            return nil, err
        }
        mod.Funcs = append(mod.Funcs, fv)
    }
    return mod, nil
}

func buildGlobal(g *ast.VarDecl) (*Global, error) {
    gv := &Global { Name: g.Sym.Name, Tp: g.Sym.Type }

    /* no initializer */
    if g.Init == nil {
        return gv, nil
    }

    /* initializers are literals after semantic analysis */
    switch v := g.Init.(type) {
        case *ast.IntLit   : gv.Init = &ConstValue { Tp: ast.Int, Int: v.Value }
        case *ast.FloatLit : gv.Init = &ConstValue { Tp: ast.Float, Float: v.Value }
        case *ast.CharLit  : gv.Init = &ConstValue { Tp: ast.Char, Int: int64(v.Value) }
        case *ast.BoolLit  : gv.Init = &ConstValue { Tp: ast.Bool, Bool: v.Value }
        case *ast.StrLit   : gv.Init = &ConstValue { Tp: ast.String, Str: v.Value }
        default            : return nil, &StructuralError { Func: g.Sym.Name, Block: -1, Msg: "non-literal global initializer" }
    }
    return gv, nil
}

// BuildFunc lowers one decorated function into a Function whose blocks cover
// every statement exactly once.
func BuildFunc(mod *Module, decl *ast.FuncDecl) (*Function, error) {
    params := make([]Param, 0, len(decl.Params))
    fn := newFunction(decl.Name, nil, decl.Ret)

    /* parameter registers are defined at function entry */
    for _, p := range decl.Params {
        params = append(params, Param {
            Name : p.Name,
            Tp   : p.Type,
            R    : fn.newnamed(p.Name),
        })
    }
    fn.Params = params

    /* create the builder with the entry block */
    self := &_GraphBuilder {
        mod   : mod,
        fn    : fn,
        slots : make(map[*ast.Symbol]Reg),
    }
    self.bb = self.newblock()
    fn.CFG = newCFG(self.bb)

    /* spill every parameter into a stack slot; promotion will lift the
     * traffic straight back to the parameter register */
    for i, p := range decl.Params {
        slot := fn.newnamed(p.Name)
        self.slots[p] = slot
        self.emit(&IrAlloc { R: slot, Tp: p.Type })
        self.emit(&IrStore { V: params[i].R, Mem: slot, Tp: p.Type })
    }

    /* lower the body */
    if err := self.stmt(decl.Body); err != nil {
        return nil, err
    }

    /* terminate the trailing block */
    self.closeblock()
    fn.CFG.Rebuild()
    return fn, nil
}

func (self *_GraphBuilder) newblock() *BasicBlock {
    self.nb++
    bb := &BasicBlock { Id: self.nb }
    self.fn.addblock(bb)
    return bb
}

func (self *_GraphBuilder) emit(p IrNode) {
    self.bb.Ins = append(self.bb.Ins, p)
}

// closeblock gives the current block a return terminator if control can fall
// off its end. Non-void functions return an undefined value in that case,
// the front end rejects reachable fall-off when the language requires it.
func (self *_GraphBuilder) closeblock() {
    if self.bb.Term == nil {
        if self.fn.Ret.Kind == ast.TVoid {
            self.bb.Term = &IrReturn { Tp: ast.Void }
        } else {
            r := self.fn.newreg()
            self.emit(&IrUndef { R: r, Tp: self.fn.Ret })
            self.bb.Term = &IrReturn { V: r, Tp: self.fn.Ret }
        }
    }
}

func (self *_GraphBuilder) stmt(s ast.Stmt) error {
    switch p := s.(type) {
        default: {
            panic(fmt.Sprintf("builder: invalid statement: %T", s))
        }

        /* compound statement */
        case *ast.Compound: {
            for _, q := range p.Stmts {
                if err := self.stmt(q); err != nil {
                    return err
                }
            }
            return nil
        }

        /* local variable declaration */
        case *ast.DeclStmt: {
            return self.decl(p.Decl)
        }

        /* assignment */
        case *ast.Assign: {
            v := self.expr(p.Value)
            mem := self.lval(p.Target)
            self.emit(&IrStore { V: v, Mem: mem, Tp: p.Target.ExprType() })
            return nil
        }

        /* expression evaluated for its effects */
        case *ast.ExprStmt: {
            self.expr(p.X)
            return nil
        }

        case *ast.If       : return self.ifstmt(p)
        case *ast.While    : return self.whilestmt(p)
        case *ast.For      : return self.forstmt(p)
        case *ast.Break    : return self.breakstmt()
        case *ast.Continue : return self.continuestmt()

        /* return terminates the block; anything after it goes into a fresh
         * block reachable from nothing */
        case *ast.Return: {
            if p.Value == nil {
                self.bb.Term = &IrReturn { Tp: ast.Void }
            } else {
                v := self.expr(p.Value)
                self.bb.Term = &IrReturn { V: v, Tp: p.Value.ExprType() }
            }
            self.bb = self.newblock()
            return nil
        }

        /* print each argument; a bare print emits a newline */
        case *ast.Print: {
            for _, a := range p.Args {
                v := self.expr(a)
                self.emit(&IrPrint { V: v, Tp: a.ExprType() })
            }
            if len(p.Args) == 0 {
                self.emit(&IrPrint { Tp: ast.Void })
            }
            return nil
        }

        /* read into each target slot */
        case *ast.Read: {
            for _, t := range p.Targets {
                mem := self.lval(t)
                self.emit(&IrRead { Mem: mem, Tp: t.ExprType() })
            }
            return nil
        }
    }
}

func (self *_GraphBuilder) decl(d *ast.VarDecl) error {
    slot := self.fn.newnamed(d.Sym.Name)
    self.slots[d.Sym] = slot
    self.emit(&IrAlloc { R: slot, Tp: d.Sym.Type })

    /* evaluate the initializer if present */
    if d.Init != nil {
        v := self.expr(d.Init)
        self.emit(&IrStore { V: v, Mem: slot, Tp: d.Sym.Type })
    }
    return nil
}

func (self *_GraphBuilder) ifstmt(p *ast.If) error {
    cond := self.expr(p.Cond)
    tb := self.newblock()
    join := self.newblock()
    fb := join

    /* allocate a separate false block only when there is an else arm */
    if p.Else != nil {
        fb = self.newblock()
    }
    self.bb.termCondition(cond, tb, fb)

    /* then arm */
    self.bb = tb
    if err := self.stmt(p.Then); err != nil {
        return err
    }
    if self.bb.Term == nil {
        self.bb.termBranch(join)
    }

    /* else arm */
    if p.Else != nil {
        self.bb = fb
        if err := self.stmt(p.Else); err != nil {
            return err
        }
        if self.bb.Term == nil {
            self.bb.termBranch(join)
        }
    }

    /* continue in the join block */
    self.bb = join
    return nil
}

func (self *_GraphBuilder) whilestmt(p *ast.While) error {
    cond := self.newblock()
    body := self.newblock()
    exit := self.newblock()

    /* the condition block is both the loop header and the continue target */
    self.bb.termBranch(cond)
    self.bb = cond
    v := self.expr(p.Cond)
    self.bb.termCondition(v, body, exit)

    /* loop body */
    self.brk = append(self.brk, exit)
    self.cont = append(self.cont, cond)
    self.bb = body
    err := self.stmt(p.Body)
    self.brk = self.brk[:len(self.brk) - 1]
    self.cont = self.cont[:len(self.cont) - 1]
    if err != nil {
        return err
    }

    /* link the body back to the condition */
    if self.bb.Term == nil {
        self.bb.termBranch(cond)
    }
    self.bb = exit
    return nil
}

func (self *_GraphBuilder) forstmt(p *ast.For) error {
    if p.Init != nil {
        if err := self.stmt(p.Init); err != nil {
            return err
        }
    }

    /* allocate the loop blocks; continue jumps to the post block */
    cond := self.newblock()
    body := self.newblock()
    post := self.newblock()
    exit := self.newblock()
    self.bb.termBranch(cond)

    /* condition; a missing condition always enters the body */
    self.bb = cond
    if p.Cond == nil {
        self.bb.termBranch(body)
    } else {
        v := self.expr(p.Cond)
        self.bb.termCondition(v, body, exit)
    }

    /* loop body */
    self.brk = append(self.brk, exit)
    self.cont = append(self.cont, post)
    self.bb = body
    err := self.stmt(p.Body)
    self.brk = self.brk[:len(self.brk) - 1]
    self.cont = self.cont[:len(self.cont) - 1]
    if err != nil {
        return err
    }
    if self.bb.Term == nil {
        self.bb.termBranch(post)
    }

    /* post statement, then back to the condition */
    self.bb = post
    if p.Post != nil {
        if err := self.stmt(p.Post); err != nil {
            return err
        }
    }
    self.bb.termBranch(cond)
    self.bb = exit
    return nil
}

func (self *_GraphBuilder) breakstmt() error {
    if len(self.brk) == 0 {
        return &StructuralError { Func: self.fn.Name, Block: self.bb.Id, Msg: "break outside of a loop" }
    }
    self.bb.termBranch(self.brk[len(self.brk) - 1])
    self.bb = self.newblock()
    return nil
}

func (self *_GraphBuilder) continuestmt() error {
    if len(self.cont) == 0 {
        return &StructuralError { Func: self.fn.Name, Block: self.bb.Id, Msg: "continue outside of a loop" }
    }
    self.bb.termBranch(self.cont[len(self.cont) - 1])
    self.bb = self.newblock()
    return nil
}

// lval computes the address a store or read targets.
func (self *_GraphBuilder) lval(e ast.Expr) Reg {
    switch p := e.(type) {
        default: {
            panic(fmt.Sprintf("builder: invalid assignment target: %T", e))
        }

        /* variables: local slot or global address */
        case *ast.Ident: {
            if p.Sym.Kind == ast.SymGlobal {
                r := self.fn.newreg()
                self.emit(&IrGlobalAddr { R: r, Name: p.Sym.Name, Tp: p.Sym.Type })
                return r
            } else {
                return self.slots[p.Sym]
            }
        }

        /* array elements */
        case *ast.Index: {
            base := self.lval(p.Array)
            off := self.expr(p.Idx)
            r := self.fn.newreg()
            self.emit(&IrIndex { R: r, Mem: base, Off: off, Tp: p.Type })
            return r
        }
    }
}

// expr evaluates an expression into a fresh register within the current
// block.
func (self *_GraphBuilder) expr(e ast.Expr) Reg {
    switch p := e.(type) {
        default: {
            panic(fmt.Sprintf("builder: invalid expression: %T", e))
        }

        /* resolved identifiers: aggregates evaluate to their address,
         * scalars to a load of it */
        case *ast.Ident: {
            mem := self.lval(p)
            if !p.Sym.Type.Scalar() {
                return mem
            }
            r := self.fn.newreg()
            self.emit(&IrLoad { R: r, Mem: mem, Tp: p.Sym.Type })
            return r
        }

        /* literals */
        case *ast.IntLit: {
            r := self.fn.newreg()
            self.emit(&IrConstInt { R: r, V: p.Value, Tp: ast.Int })
            return r
        }

        case *ast.FloatLit: {
            r := self.fn.newreg()
            self.emit(&IrConstFloat { R: r, V: p.Value })
            return r
        }

        case *ast.CharLit: {
            r := self.fn.newreg()
            self.emit(&IrConstInt { R: r, V: int64(p.Value), Tp: ast.Char })
            return r
        }

        case *ast.BoolLit: {
            r := self.fn.newreg()
            self.emit(&IrConstBool { R: r, V: p.Value })
            return r
        }

        /* string literals are interned as module globals */
        case *ast.StrLit: {
            g := self.mod.internString(p.Value)
            r := self.fn.newreg()
            self.emit(&IrGlobalAddr { R: r, Name: g, Tp: ast.String })
            return r
        }

        /* binary expressions: both operands are evaluated, uC && and || are
         * strict like the rest of the language */
        case *ast.Binary: {
            x := self.expr(p.X)
            y := self.expr(p.Y)
            r := self.fn.newreg()
            self.emit(&IrBinaryExpr { R: r, X: x, Y: y, Op: _BinaryOps[p.Op], Tp: p.X.ExprType() })
            return r
        }

        case *ast.Unary: {
            v := self.expr(p.X)
            r := self.fn.newreg()
            if p.Op == ast.OpNeg {
                self.emit(&IrUnaryExpr { R: r, V: v, Op: IrOpNegate, Tp: p.Type })
            } else {
                self.emit(&IrUnaryExpr { R: r, V: v, Op: IrOpNot, Tp: p.Type })
            }
            return r
        }

        case *ast.Call: {
            in := make([]Reg, 0, len(p.Args))
            for _, a := range p.Args {
                in = append(in, self.expr(a))
            }
            r := Reg(0)
            if p.Type.Kind != ast.TVoid {
                r = self.fn.newreg()
            }
            self.emit(&IrCall { R: r, Fn: p.Func, In: in, Tp: p.Type })
            return r
        }

        case *ast.Index: {
            mem := self.lval(p)
            r := self.fn.newreg()
            self.emit(&IrLoad { R: r, Mem: mem, Tp: p.Type })
            return r
        }

        case *ast.Cast: {
            v := self.expr(p.X)
            r := self.fn.newreg()
            if p.Op == ast.IntToFloat {
                self.emit(&IrConvert { R: r, V: v, Op: IrOpSiToFp })
            } else {
                self.emit(&IrConvert { R: r, V: v, Op: IrOpFpToSi })
            }
            return r
        }
    }
}
