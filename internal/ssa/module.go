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
    `strconv`
    `strings`

    `github.com/ucclang/ucc/internal/ast`
)

// Module owns all functions and globals of one translation unit, in source
// order. Functions carry no data dependency on each other, so they may be
// optimized by independent workers.
type Module struct {
    Name    string
    Globals []*Global
    Funcs   []*Function
}

func (self *Module) Func(name string) *Function {
    for _, fn := range self.Funcs {
        if fn.Name == name {
            return fn
        }
    }
    return nil
}

func (self *Module) Global(name string) *Global {
    for _, g := range self.Globals {
        if g.Name == name {
            return g
        }
    }
    return nil
}

// internString adds a read-only global holding a string literal, reusing an
// existing one with the same contents, and returns its name.
func (self *Module) internString(s string) string {
    n := 0
    for _, g := range self.Globals {
        if strings.HasPrefix(g.Name, ".str.") {
            if g.Init != nil && g.Init.Str == s {
                return g.Name
            }
            n++
        }
    }

    /* not interned yet */
    name := fmt.Sprintf(".str.%d", n)
    self.Globals = append(self.Globals, &Global {
        Name : name,
        Tp   : ast.String,
        Init : &ConstValue { Tp: ast.String, Str: s },
    })
    return name
}

type Global struct {
    Name string
    Tp   ast.Type
    Init *ConstValue
}

func (self *Global) String() string {
    if self.Init == nil {
        return fmt.Sprintf("@%s = global : %s", self.Name, self.Tp)
    } else {
        return fmt.Sprintf("@%s = global %s : %s", self.Name, self.Init, self.Tp)
    }
}

// ConstValue is a compile-time constant: a global initializer or the settled
// value of a folded expression.
type ConstValue struct {
    Tp    ast.Type
    Int   int64
    Float float64
    Bool  bool
    Str   string
}

func constint(tp ast.Type, v int64) ConstValue {
    return ConstValue { Tp: tp, Int: v }
}

func constfloat(v float64) ConstValue {
    return ConstValue { Tp: ast.Float, Float: v }
}

func constbool(v bool) ConstValue {
    return ConstValue { Tp: ast.Bool, Bool: v }
}

func (self ConstValue) String() string {
    switch self.Tp.Kind {
        case ast.TInt, ast.TChar : return strconv.FormatInt(self.Int, 10)
        case ast.TFloat          : return strconv.FormatFloat(self.Float, 'g', -1, 64)
        case ast.TBool           : return strconv.FormatBool(self.Bool)
        case ast.TString         : return strconv.Quote(self.Str)
        default                  : panic("ssa: invalid constant type: " + self.Tp.String())
    }
}

// Param is a formal parameter. Its register is defined implicitly at
// function entry.
type Param struct {
    Name string
    Tp   ast.Type
    R    Reg
}

// Function is one uC function lowered to uCIR: its signature, the CFG rooted
// at the entry block, and the bookkeeping needed to mint fresh registers and
// render named ones.
type Function struct {
    Name   string
    Params []Param
    Ret    ast.Type
    CFG    *CFG

    /* register bookkeeping: printable names of named identifiers, the next
     * free identifier, and the next free version per identifier */
    names map[uint32]string
    nreg  uint32
    nver  map[uint32]uint32

    /* every block ever created for this function, including blocks that are
     * not reachable from the entry; the simplifier prunes the dead ones */
    all []*BasicBlock
}

func newFunction(name string, params []Param, ret ast.Type) *Function {
    return &Function {
        Name   : name,
        Params : params,
        Ret    : ret,
        names  : make(map[uint32]string),
        nver   : make(map[uint32]uint32),
        nreg   : 1,
    }
}

// AllBlocks lists every block the function owns, reachable or not, by label.
func (self *Function) AllBlocks() []*BasicBlock {
    return self.all
}

// Block finds an owned block by label.
func (self *Function) Block(id int) *BasicBlock {
    for _, bb := range self.all {
        if bb.Id == id {
            return bb
        }
    }
    return nil
}

func (self *Function) addblock(bb *BasicBlock) {
    self.all = append(self.all, bb)
}

// newreg mints a fresh version-0 register.
func (self *Function) newreg() Reg {
    r := mkreg(self.nreg, 0)
    self.nreg++
    return r
}

// newnamed mints a fresh register carrying a source-level name. Shadowed
// variables reuse their source name, so the printable name is disambiguated
// to keep the textual form unambiguous.
func (self *Function) newnamed(name string) Reg {
    r := self.newreg()
    self.names[r.Ident()] = self.uniquename(name)
    return r
}

func (self *Function) uniquename(name string) string {
    taken := func(s string) bool {
        for _, v := range self.names {
            if v == s {
                return true
            }
        }
        return false
    }
    if !taken(name) {
        return name
    }
    for i := 1; ; i++ {
        if s := fmt.Sprintf("%s_%d", name, i); !taken(s) {
            return s
        }
    }
}

// derive mints the next unused version of r, preserving its identifier and
// name. Used by phi insertion and the undefined-read sentinel.
func (self *Function) derive(r Reg) Reg {
    v := self.nver[r.Ident()] + 1
    self.nver[r.Ident()] = v
    return r.Derive(v)
}

// NameOf returns the source name of a register identifier, if it has one.
func (self *Function) NameOf(r Reg) (string, bool) {
    s, ok := self.names[r.Ident()]
    return s, ok
}

// setname records a source name for an identifier; the text parser uses this
// to reproduce named registers.
func (self *Function) setname(id uint32, name string) {
    self.names[id] = name
}

// reserve makes sure subsequently minted identifiers and versions do not
// collide with r. The text parser calls this for every register it reads.
func (self *Function) reserve(r Reg) {
    if id := r.Ident(); id >= self.nreg {
        self.nreg = id + 1
    }
    if v := r.Version(); v > self.nver[r.Ident()] {
        self.nver[r.Ident()] = v
    }
}
