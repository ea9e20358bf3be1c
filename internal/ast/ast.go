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

// Package ast defines the decorated syntax tree handed to the middle end by
// the front end. Every identifier is already resolved to a Symbol and every
// expression carries its checked type; the middle end never re-validates
// either. The node kind set is closed, consumers dispatch with type switches.
package ast

type SymbolKind uint8

const (
    SymGlobal SymbolKind = iota
    SymLocal
    SymParam
)

// Symbol is the resolved declaration an identifier refers to. The front end
// guarantees one Symbol per declaration, so pointer identity distinguishes
// shadowed names.
type Symbol struct {
    Name string
    Kind SymbolKind
    Type Type
}

type Node interface {
    node()
}

type Expr interface {
    Node
    ExprType() Type
}

type Stmt interface {
    Node
    stmt()
}

func (*Program)  node() {}
func (*VarDecl)  node() {}
func (*FuncDecl) node() {}

func (*Compound)     node() {}
func (*DeclStmt)     node() {}
func (*Assign)       node() {}
func (*ExprStmt)     node() {}
func (*If)           node() {}
func (*While)        node() {}
func (*For)          node() {}
func (*Break)        node() {}
func (*Continue)     node() {}
func (*Return)       node() {}
func (*Print)        node() {}
func (*Read)         node() {}

func (*Ident)    node() {}
func (*IntLit)   node() {}
func (*FloatLit) node() {}
func (*CharLit)  node() {}
func (*BoolLit)  node() {}
func (*StrLit)   node() {}
func (*Binary)   node() {}
func (*Unary)    node() {}
func (*Call)     node() {}
func (*Index)    node() {}
func (*Cast)     node() {}

func (*Compound) stmt() {}
func (*DeclStmt) stmt() {}
func (*Assign)   stmt() {}
func (*ExprStmt) stmt() {}
func (*If)       stmt() {}
func (*While)    stmt() {}
func (*For)      stmt() {}
func (*Break)    stmt() {}
func (*Continue) stmt() {}
func (*Return)   stmt() {}
func (*Print)    stmt() {}
func (*Read)     stmt() {}

// Program is one translation unit: globals and functions in source order.
type Program struct {
    Globals []*VarDecl
    Funcs   []*FuncDecl
}

type VarDecl struct {
    Sym  *Symbol
    Init Expr
}

type FuncDecl struct {
    Name   string
    Params []*Symbol
    Ret    Type
    Body   *Compound
}

type Compound struct {
    Stmts []Stmt
}

type DeclStmt struct {
    Decl *VarDecl
}

// Assign stores Value into Target; Target is an Ident or an Index.
type Assign struct {
    Target Expr
    Value  Expr
}

type ExprStmt struct {
    X Expr
}

type If struct {
    Cond Expr
    Then Stmt
    Else Stmt
}

type While struct {
    Cond Expr
    Body Stmt
}

type For struct {
    Init Stmt
    Cond Expr
    Post Stmt
    Body Stmt
}

type Break struct{}

type Continue struct{}

type Return struct {
    Value Expr
}

// Print writes each argument in order; with no arguments it emits a newline.
type Print struct {
    Args []Expr
}

// Read reads one value from the program input into each target in order.
type Read struct {
    Targets []Expr
}

type Ident struct {
    Sym *Symbol
}

type IntLit struct {
    Value int64
}

type FloatLit struct {
    Value float64
}

type CharLit struct {
    Value rune
}

type BoolLit struct {
    Value bool
}

type StrLit struct {
    Value string
}

type BinOp uint8

const (
    OpAdd BinOp = iota
    OpSub
    OpMul
    OpDiv
    OpMod
    OpLt
    OpLe
    OpGt
    OpGe
    OpEq
    OpNe
    OpAnd
    OpOr
)

type Binary struct {
    Op   BinOp
    X    Expr
    Y    Expr
    Type Type
}

type UnOp uint8

const (
    OpNeg UnOp = iota
    OpNot
)

type Unary struct {
    Op   UnOp
    X    Expr
    Type Type
}

type Call struct {
    Func string
    Args []Expr
    Type Type
}

type Index struct {
    Array *Ident
    Idx   Expr
    Type  Type
}

type CastOp uint8

const (
    IntToFloat CastOp = iota
    FloatToInt
)

type Cast struct {
    Op CastOp
    X  Expr
}

func (self *Ident)    ExprType() Type { return self.Sym.Type }
func (self *IntLit)   ExprType() Type { return Int }
func (self *FloatLit) ExprType() Type { return Float }
func (self *CharLit)  ExprType() Type { return Char }
func (self *BoolLit)  ExprType() Type { return Bool }
func (self *StrLit)   ExprType() Type { return String }
func (self *Binary)   ExprType() Type { return self.Type }
func (self *Unary)    ExprType() Type { return self.Type }
func (self *Call)     ExprType() Type { return self.Type }
func (self *Index)    ExprType() Type { return self.Type }

func (self *Cast) ExprType() Type {
    if self.Op == IntToFloat {
        return Float
    } else {
        return Int
    }
}
