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
    `sort`
    `strconv`
    `strings`

    `github.com/ucclang/ucc/internal/ast`
)

// Reg is a virtual register, packed as a 32-bit identifier plus a 32-bit SSA
// version. Registers produced by expression evaluation keep version 0 and a
// fresh identifier; promoted variables reuse the identifier of their stack
// slot and get a new version per definition.
type Reg uint64

const (
    _B_ident = 32
    _M_half  = (1 << 32) - 1
)

func mkreg(id uint32, ver uint32) Reg {
    return Reg(uint64(id) << _B_ident | uint64(ver))
}

func (self Reg) Ident() uint32 {
    return uint32(self >> _B_ident)
}

func (self Reg) Version() uint32 {
    return uint32(self & _M_half)
}

// Derive produces a new version of the same register identifier.
func (self Reg) Derive(ver uint32) Reg {
    return mkreg(self.Ident(), ver)
}

func (self Reg) String() string {
    if v := self.Version(); v == 0 {
        return fmt.Sprintf("%%%d", self.Ident())
    } else {
        return fmt.Sprintf("%%%d.%d", self.Ident(), v)
    }
}

type IrNode interface {
    fmt.Stringer
    irnode()
}

func (*IrAlloc)      irnode() {}
func (*IrLoad)       irnode() {}
func (*IrStore)      irnode() {}
func (*IrConstInt)   irnode() {}
func (*IrConstFloat) irnode() {}
func (*IrConstBool)  irnode() {}
func (*IrGlobalAddr) irnode() {}
func (*IrIndex)      irnode() {}
func (*IrUnaryExpr)  irnode() {}
func (*IrBinaryExpr) irnode() {}
func (*IrConvert)    irnode() {}
func (*IrCall)       irnode() {}
func (*IrPrint)      irnode() {}
func (*IrRead)       irnode() {}
func (*IrUndef)      irnode() {}
func (*IrPhi)        irnode() {}
func (*IrBranch)     irnode() {}
func (*IrBranchIf)   irnode() {}
func (*IrReturn)     irnode() {}

// IrUsages exposes the operand registers of an instruction, as pointers so
// that rewriting passes can update them in place.
type IrUsages interface {
    IrNode
    Usages() []*Reg
}

// IrDefinitions exposes the result registers of an instruction.
type IrDefinitions interface {
    IrNode
    Definitions() []*Reg
}

// IrImpure marks instructions with observable side effects. Dead code
// elimination never removes them; this classification is a static property
// of the opcode.
type IrImpure interface {
    IrNode
    irimpure()
}

func (*IrStore) irimpure() {}
func (*IrCall)  irimpure() {}
func (*IrPrint) irimpure() {}
func (*IrRead)  irimpure() {}

type IrTerminator interface {
    IrNode
    Successors() []*BasicBlock
    irterminator()
}

func (*IrBranch)   irterminator() {}
func (*IrBranchIf) irterminator() {}
func (*IrReturn)   irterminator() {}

// IrAlloc reserves one stack slot. The result register holds the address of
// the slot for the lifetime of the function.
type IrAlloc struct {
    R  Reg
    Tp ast.Type
}

func (self *IrAlloc) String() string {
    return fmt.Sprintf("%s = alloc : %s", self.R, self.Tp)
}

func (self *IrAlloc) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrLoad struct {
    R   Reg
    Mem Reg
    Tp  ast.Type
}

func (self *IrLoad) String() string {
    return fmt.Sprintf("%s = load %s : %s", self.R, self.Mem, self.Tp)
}

func (self *IrLoad) Usages() []*Reg {
    return []*Reg { &self.Mem }
}

func (self *IrLoad) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrStore struct {
    V   Reg
    Mem Reg
    Tp  ast.Type
}

func (self *IrStore) String() string {
    return fmt.Sprintf("store %s, %s : %s", self.V, self.Mem, self.Tp)
}

func (self *IrStore) Usages() []*Reg {
    return []*Reg { &self.V, &self.Mem }
}

type IrConstInt struct {
    R  Reg
    V  int64
    Tp ast.Type
}

func (self *IrConstInt) String() string {
    return fmt.Sprintf("%s = literal %d : %s", self.R, self.V, self.Tp)
}

func (self *IrConstInt) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrConstFloat struct {
    R Reg
    V float64
}

func (self *IrConstFloat) String() string {
    return fmt.Sprintf("%s = literal %s : float", self.R, strconv.FormatFloat(self.V, 'g', -1, 64))
}

func (self *IrConstFloat) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrConstBool struct {
    R Reg
    V bool
}

func (self *IrConstBool) String() string {
    return fmt.Sprintf("%s = literal %t : bool", self.R, self.V)
}

func (self *IrConstBool) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrGlobalAddr loads the address of a module-level global.
type IrGlobalAddr struct {
    R    Reg
    Name string
    Tp   ast.Type
}

func (self *IrGlobalAddr) String() string {
    return fmt.Sprintf("%s = addr @%s : %s", self.R, self.Name, self.Tp)
}

func (self *IrGlobalAddr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrIndex computes the address of element Off of the aggregate at Mem.
type IrIndex struct {
    R   Reg
    Mem Reg
    Off Reg
    Tp  ast.Type
}

func (self *IrIndex) String() string {
    return fmt.Sprintf("%s = elem %s, %s : %s", self.R, self.Mem, self.Off, self.Tp)
}

func (self *IrIndex) Usages() []*Reg {
    return []*Reg { &self.Mem, &self.Off }
}

func (self *IrIndex) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type (
    IrUnaryOp  uint8
    IrBinaryOp uint8
)

const (
    IrOpNegate IrUnaryOp = iota
    IrOpNot
)

const (
    IrOpAdd IrBinaryOp = iota
    IrOpSub
    IrOpMul
    IrOpDiv
    IrOpMod
    IrOpAnd
    IrOpOr
    IrCmpLt
    IrCmpLe
    IrCmpGt
    IrCmpGe
    IrCmpEq
    IrCmpNe
)

func (self IrUnaryOp) String() string {
    switch self {
        case IrOpNegate : return "neg"
        case IrOpNot    : return "not"
        default         : panic("unreachable")
    }
}

func (self IrBinaryOp) String() string {
    switch self {
        case IrOpAdd : return "add"
        case IrOpSub : return "sub"
        case IrOpMul : return "mul"
        case IrOpDiv : return "div"
        case IrOpMod : return "mod"
        case IrOpAnd : return "and"
        case IrOpOr  : return "or"
        case IrCmpLt : return "lt"
        case IrCmpLe : return "le"
        case IrCmpGt : return "gt"
        case IrCmpGe : return "ge"
        case IrCmpEq : return "eq"
        case IrCmpNe : return "ne"
        default      : panic("unreachable")
    }
}

// IsCompare reports whether the operator yields a bool regardless of the
// operand type.
func (self IrBinaryOp) IsCompare() bool {
    return self >= IrCmpLt && self <= IrCmpNe
}

type IrUnaryExpr struct {
    R  Reg
    V  Reg
    Op IrUnaryOp
    Tp ast.Type
}

func (self *IrUnaryExpr) String() string {
    return fmt.Sprintf("%s = %s %s : %s", self.R, self.Op, self.V, self.Tp)
}

func (self *IrUnaryExpr) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrUnaryExpr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrBinaryExpr computes R = X op Y. Tp is the operand type; comparison
// operators produce a bool result.
type IrBinaryExpr struct {
    R  Reg
    X  Reg
    Y  Reg
    Op IrBinaryOp
    Tp ast.Type
}

func (self *IrBinaryExpr) String() string {
    return fmt.Sprintf("%s = %s %s, %s : %s", self.R, self.Op, self.X, self.Y, self.Tp)
}

func (self *IrBinaryExpr) Usages() []*Reg {
    return []*Reg { &self.X, &self.Y }
}

func (self *IrBinaryExpr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrConvOp uint8

const (
    IrOpSiToFp IrConvOp = iota
    IrOpFpToSi
)

func (self IrConvOp) String() string {
    switch self {
        case IrOpSiToFp : return "sitofp"
        case IrOpFpToSi : return "fptosi"
        default         : panic("unreachable")
    }
}

type IrConvert struct {
    R  Reg
    V  Reg
    Op IrConvOp
}

func (self *IrConvert) String() string {
    if self.Op == IrOpSiToFp {
        return fmt.Sprintf("%s = sitofp %s : float", self.R, self.V)
    } else {
        return fmt.Sprintf("%s = fptosi %s : int", self.R, self.V)
    }
}

func (self *IrConvert) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrConvert) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrCall invokes another function in the module. Void calls define nothing.
type IrCall struct {
    R    Reg
    Fn   string
    In   []Reg
    Tp   ast.Type
}

func (self *IrCall) String() string {
    in := make([]string, 0, len(self.In))
    for _, r := range self.In {
        in = append(in, r.String())
    }

    /* calls to void functions have no result */
    if self.Tp.Kind == ast.TVoid {
        if len(in) == 0 {
            return fmt.Sprintf("call @%s : void", self.Fn)
        } else {
            return fmt.Sprintf("call @%s, %s : void", self.Fn, strings.Join(in, ", "))
        }
    }

    /* non-void result */
    if len(in) == 0 {
        return fmt.Sprintf("%s = call @%s : %s", self.R, self.Fn, self.Tp)
    } else {
        return fmt.Sprintf("%s = call @%s, %s : %s", self.R, self.Fn, strings.Join(in, ", "), self.Tp)
    }
}

func (self *IrCall) Usages() []*Reg {
    return regsliceref(self.In)
}

func (self *IrCall) Definitions() []*Reg {
    if self.Tp.Kind == ast.TVoid {
        return nil
    } else {
        return []*Reg { &self.R }
    }
}

// IrPrint writes one value to the program output; with V unset it emits a
// newline ("print : void" in the textual form).
type IrPrint struct {
    V    Reg
    Tp   ast.Type
}

func (self *IrPrint) String() string {
    if self.Tp.Kind == ast.TVoid {
        return "print : void"
    } else {
        return fmt.Sprintf("print %s : %s", self.V, self.Tp)
    }
}

func (self *IrPrint) Usages() []*Reg {
    if self.Tp.Kind == ast.TVoid {
        return nil
    } else {
        return []*Reg { &self.V }
    }
}

// IrRead reads one value from the program input into the slot at Mem. It is
// a memory write, so slots it touches are never promoted to registers.
type IrRead struct {
    Mem Reg
    Tp  ast.Type
}

func (self *IrRead) String() string {
    return fmt.Sprintf("read %s : %s", self.Mem, self.Tp)
}

func (self *IrRead) Usages() []*Reg {
    return []*Reg { &self.Mem }
}

// IrUndef materializes the value of a variable read before any assignment on
// some path. The sentinel keeps renaming total and deterministic; rejecting
// such programs is the front end's business.
type IrUndef struct {
    R  Reg
    Tp ast.Type
}

func (self *IrUndef) String() string {
    return fmt.Sprintf("%s = undef : %s", self.R, self.Tp)
}

func (self *IrUndef) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrPhi selects one of V depending on the predecessor control arrived from.
// It lives only at block entry, one operand per predecessor.
type IrPhi struct {
    R  Reg
    V  map[*BasicBlock]*Reg
    Tp ast.Type
}

func (self *IrPhi) String() string {
    nb := len(self.V)
    ret := make([]string, 0, nb)
    arg := make([]struct{b int; r Reg}, 0, nb)

    /* collect each incoming path */
    for bb, reg := range self.V {
        arg = append(arg, struct{b int; r Reg}{b: bb.Id, r: *reg})
    }

    /* sort by basic block ID for stable output */
    sort.Slice(arg, func(i int, j int) bool {
        return arg[i].b < arg[j].b
    })

    /* dump one (value, predecessor) pair per path */
    for _, p := range arg {
        ret = append(ret, fmt.Sprintf("(%s, bb_%d)", p.r, p.b))
    }
    return fmt.Sprintf("%s = phi %s : %s", self.R, strings.Join(ret, ", "), self.Tp)
}

func (self *IrPhi) Usages() (r []*Reg) {
    r = make([]*Reg, 0, len(self.V))
    for _, v := range self.V { r = append(r, v) }
    return
}

func (self *IrPhi) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrBranch struct {
    To *BasicBlock
}

func (self *IrBranch) String() string {
    return fmt.Sprintf("jump bb_%d", self.To.Id)
}

func (self *IrBranch) Successors() []*BasicBlock {
    return []*BasicBlock { self.To }
}

type IrBranchIf struct {
    V Reg
    T *BasicBlock
    F *BasicBlock
}

func (self *IrBranchIf) String() string {
    return fmt.Sprintf("cbranch %s, bb_%d, bb_%d", self.V, self.T.Id, self.F.Id)
}

func (self *IrBranchIf) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrBranchIf) Successors() []*BasicBlock {
    return []*BasicBlock { self.T, self.F }
}

type IrReturn struct {
    V  Reg
    Tp ast.Type
}

func (self *IrReturn) String() string {
    if self.Tp.Kind == ast.TVoid {
        return "ret : void"
    } else {
        return fmt.Sprintf("ret %s : %s", self.V, self.Tp)
    }
}

func (self *IrReturn) Usages() []*Reg {
    if self.Tp.Kind == ast.TVoid {
        return nil
    } else {
        return []*Reg { &self.V }
    }
}

func (self *IrReturn) Successors() []*BasicBlock {
    return nil
}
