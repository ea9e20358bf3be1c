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

type _ConstData struct {
    k ast.TypeKind
    i int64
    f float64
    b bool
}

func (self _ConstData) String() string {
    switch self.k {
        case ast.TInt   : return fmt.Sprintf("(int) %d", self.i)
        case ast.TFloat : return fmt.Sprintf("(float) %g", self.f)
        case ast.TBool  : return fmt.Sprintf("(bool) %v", self.b)
        default         : panic("unreachable")
    }
}

func cdint(v int64) _ConstData {
    return _ConstData { k: ast.TInt, i: v }
}

func cdfloat(v float64) _ConstData {
    return _ConstData { k: ast.TFloat, f: v }
}

func cdbool(v bool) _ConstData {
    return _ConstData { k: ast.TBool, b: v }
}

// constdef extracts the constant from a defining instruction, if it is one.
func constdef(v IrNode) (_ConstData, bool) {
    switch ins := v.(type) {
        case *IrConstInt   : return cdint(ins.V), true
        case *IrConstFloat : return cdfloat(ins.V), true
        case *IrConstBool  : return cdbool(ins.V), true
        default            : return _ConstData{}, false
    }
}

// mkconst rebuilds the defining instruction for a folded result, keeping the
// original result register so downstream uses stay valid.
func mkconst(r Reg, v _ConstData) IrNode {
    switch v.k {
        case ast.TInt   : return &IrConstInt { R: r, V: v.i, Tp: ast.Int }
        case ast.TFloat : return &IrConstFloat { R: r, V: v.f }
        case ast.TBool  : return &IrConstBool { R: r, V: v.b }
        default         : panic("unreachable")
    }
}

// ConstProp folds expressions whose operands are compile-time constants,
// using reaching definitions to establish which constants are visible at
// each use. Integer arithmetic wraps in 64 bits; division and modulo by a
// known zero are never folded, the fault stays a runtime matter.
type ConstProp struct{}

func (ConstProp) unary(v _ConstData, op IrUnaryOp) (_ConstData, bool) {
    switch {
        case op == IrOpNegate && v.k == ast.TInt   : return cdint(-v.i), true
        case op == IrOpNegate && v.k == ast.TFloat : return cdfloat(-v.f), true
        case op == IrOpNot    && v.k == ast.TBool  : return cdbool(!v.b), true
        default                                    : return _ConstData{}, false
    }
}

func (ConstProp) binaryInt(x int64, y int64, op IrBinaryOp) (_ConstData, bool) {
    switch op {
        case IrOpAdd : return cdint(x + y), true
        case IrOpSub : return cdint(x - y), true
        case IrOpMul : return cdint(x * y), true
        case IrOpDiv : if y == 0 { return _ConstData{}, false } else { return cdint(x / y), true }
        case IrOpMod : if y == 0 { return _ConstData{}, false } else { return cdint(x % y), true }
        case IrCmpLt : return cdbool(x <  y), true
        case IrCmpLe : return cdbool(x <= y), true
        case IrCmpGt : return cdbool(x >  y), true
        case IrCmpGe : return cdbool(x >= y), true
        case IrCmpEq : return cdbool(x == y), true
        case IrCmpNe : return cdbool(x != y), true
        default      : return _ConstData{}, false
    }
}

func (ConstProp) binaryFloat(x float64, y float64, op IrBinaryOp) (_ConstData, bool) {
    switch op {
        case IrOpAdd : return cdfloat(x + y), true
        case IrOpSub : return cdfloat(x - y), true
        case IrOpMul : return cdfloat(x * y), true
        case IrOpDiv : return cdfloat(x / y), true
        case IrCmpLt : return cdbool(x <  y), true
        case IrCmpLe : return cdbool(x <= y), true
        case IrCmpGt : return cdbool(x >  y), true
        case IrCmpGe : return cdbool(x >= y), true
        case IrCmpEq : return cdbool(x == y), true
        case IrCmpNe : return cdbool(x != y), true
        default      : return _ConstData{}, false
    }
}

func (ConstProp) binaryBool(x bool, y bool, op IrBinaryOp) (_ConstData, bool) {
    switch op {
        case IrOpAnd : return cdbool(x && y), true
        case IrOpOr  : return cdbool(x || y), true
        case IrCmpEq : return cdbool(x == y), true
        case IrCmpNe : return cdbool(x != y), true
        default      : return _ConstData{}, false
    }
}

func (self ConstProp) binary(x _ConstData, y _ConstData, op IrBinaryOp) (_ConstData, bool) {
    if x.k != y.k {
        return _ConstData{}, false
    }
    switch x.k {
        case ast.TInt   : return self.binaryInt(x.i, y.i, op)
        case ast.TFloat : return self.binaryFloat(x.f, y.f, op)
        case ast.TBool  : return self.binaryBool(x.b, y.b, op)
        default         : return _ConstData{}, false
    }
}

func (self ConstProp) convert(v _ConstData, op IrConvOp) (_ConstData, bool) {
    switch {
        case op == IrOpSiToFp && v.k == ast.TInt   : return cdfloat(float64(v.i)), true
        case op == IrOpFpToSi && v.k == ast.TFloat : return cdint(int64(v.f)), true
        default                                    : return _ConstData{}, false
    }
}

// Apply folds the function to a fixpoint and reports whether anything
// changed. Each round re-solves reaching definitions on the updated graph,
// since folding an instruction creates a new constant definition.
func (self ConstProp) Apply(fn *Function) bool {
    done := false
    changed := false

    for !done {
        done = true
        sol := NewReachingDefs(fn).Solve(0)

        fn.CFG.ReversePostOrder(func(bb *BasicBlock) {
            /* constants reaching the block entry */
            consts := make(map[Reg]_ConstData)
            for f := range sol.In[bb.Id] {
                if f.At != nil {
                    if cd, ok := constdef(f.At); ok {
                        consts[f.R] = cd
                    }
                }
            }

            /* a phi folds only when every incoming path carries the same
             * constant; those come from predecessor out-sets */
            phi := bb.Phi[:0]
            for _, p := range bb.Phi {
                cd, ok := self.phiconst(p, sol)
                if !ok {
                    phi = append(phi, p)
                    continue
                }
                bb.Ins = append([]IrNode { mkconst(p.R, cd) }, bb.Ins...)
                consts[p.R] = cd
                done = false
                changed = true
            }
            bb.Phi = phi

            /* fold the block body in execution order */
            for i, ins := range bb.Ins {
                if cd, ok := constdef(ins); ok {
                    for _, r := range definitions(ins) {
                        consts[*r] = cd
                    }
                    continue
                }
                if cd, ok := self.foldins(ins, consts); ok {
                    r := *definitions(ins)[0]
                    bb.Ins[i] = mkconst(r, cd)
                    consts[r] = cd
                    done = false
                    changed = true
                }
            }
        })
    }
    return changed
}

func (self ConstProp) foldins(ins IrNode, consts map[Reg]_ConstData) (_ConstData, bool) {
    switch v := ins.(type) {
        case *IrUnaryExpr: {
            if x, ok := consts[v.V]; ok {
                return self.unary(x, v.Op)
            }
        }
        case *IrBinaryExpr: {
            x, okx := consts[v.X]
            y, oky := consts[v.Y]
            if okx && oky {
                return self.binary(x, y, v.Op)
            }
        }
        case *IrConvert: {
            if x, ok := consts[v.V]; ok {
                return self.convert(x, v.Op)
            }
        }
    }
    return _ConstData{}, false
}

func (self ConstProp) phiconst(p *IrPhi, sol Solution[Def]) (_ConstData, bool) {
    var first bool = true
    var cdata _ConstData

    for pred, r := range p.V {
        cd, ok := self.reachconst(*r, sol.Out[pred.Id])
        if !ok {
            return _ConstData{}, false
        }
        if first {
            cdata = cd
            first = false
        } else if cdata != cd {
            return _ConstData{}, false
        }
    }
    return cdata, !first
}

func (ConstProp) reachconst(r Reg, out Facts[Def]) (_ConstData, bool) {
    for f := range out {
        if f.R == r && f.At != nil {
            return constdef(f.At)
        }
    }
    return _ConstData{}, false
}
