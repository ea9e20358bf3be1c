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
)

type _DefSite struct {
    bb  *BasicBlock
    idx int
}

const (
    _IdxParam = -2
    _IdxPhi   = -1
)

// Check validates the SSA well-formedness of a function: every block must be
// terminated, every register must have exactly one definition, every use
// must be dominated by its definition, and phi operands must match the
// predecessor lists exactly. Passes are expected to preserve all of these;
// a failure here is a bug in whoever transformed the graph last.
func Check(fn *Function) error {
    for _, bb := range fn.AllBlocks() {
        if bb.Term == nil {
            return &StructuralError { Func: fn.Name, Block: bb.Id, Msg: "block is not terminated" }
        }
    }

    cfg := fn.CFG
    defs := make(map[Reg]_DefSite)

    /* parameters are defined at function entry */
    for _, p := range fn.Params {
        defs[p.R] = _DefSite { bb: cfg.Root, idx: _IdxParam }
    }

    /* collect the definition sites, rejecting duplicates */
    for _, bb := range cfg.Blocks() {
        for _, p := range bb.Phi {
            if _, ok := defs[p.R]; ok {
                return &StructuralError { Func: fn.Name, Block: bb.Id, Msg: fmt.Sprintf("multiple definitions of %s", p.R) }
            }
            defs[p.R] = _DefSite { bb: bb, idx: _IdxPhi }
        }
        for i, ins := range bb.Ins {
            for _, r := range definitions(ins) {
                if _, ok := defs[*r]; ok {
                    return &StructuralError { Func: fn.Name, Block: bb.Id, Msg: fmt.Sprintf("multiple definitions of %s", *r) }
                }
                defs[*r] = _DefSite { bb: bb, idx: i }
            }
        }
    }

    /* validate phi shapes and every use site */
    for _, bb := range cfg.Blocks() {
        for _, p := range bb.Phi {
            if len(p.V) != len(bb.Pred) {
                return &StructuralError {
                    Func  : fn.Name,
                    Block : bb.Id,
                    Msg   : fmt.Sprintf("phi %s has %d operands for %d predecessors", p.R, len(p.V), len(bb.Pred)),
                }
            }
            for from, r := range p.V {
                if !blockin(bb.Pred, from) {
                    return &StructuralError { Func: fn.Name, Block: bb.Id, Msg: fmt.Sprintf("phi %s names bb_%d which is not a predecessor", p.R, from.Id) }
                }
                if err := checkuse(fn, defs, *r, from, len(from.Ins)); err != nil {
                    return err
                }
            }
        }
        for i, ins := range bb.Ins {
            for _, r := range usages(ins) {
                if err := checkuse(fn, defs, *r, bb, i); err != nil {
                    return err
                }
            }
        }
        for _, r := range usages(bb.Term) {
            if err := checkuse(fn, defs, *r, bb, len(bb.Ins)); err != nil {
                return err
            }
        }
    }
    return nil
}

// checkuse verifies that register r, used in block bb at instruction index
// idx, is dominated by its definition. Phi operands are checked as uses at
// the end of the corresponding predecessor.
func checkuse(fn *Function, defs map[Reg]_DefSite, r Reg, bb *BasicBlock, idx int) error {
    d, ok := defs[r]
    if !ok {
        return &StructuralError { Func: fn.Name, Block: bb.Id, Msg: fmt.Sprintf("use of undefined register %s", r) }
    }
    if d.bb == bb {
        if d.idx < idx {
            return nil
        }
        return &StructuralError { Func: fn.Name, Block: bb.Id, Msg: fmt.Sprintf("%s is used before its definition", r) }
    }
    if !dominates(fn.CFG, d.bb, bb) {
        return &StructuralError { Func: fn.Name, Block: bb.Id, Msg: fmt.Sprintf("use of %s is not dominated by its definition in bb_%d", r, d.bb.Id) }
    }
    return nil
}

// dominates reports whether a strictly dominates b, by walking b up the
// dominator tree.
func dominates(cfg *CFG, a *BasicBlock, b *BasicBlock) bool {
    for p := cfg.DominatedBy[b.Id]; p != nil; p = cfg.DominatedBy[p.Id] {
        if p == a {
            return true
        }
        if p == cfg.Root {
            return a == cfg.Root
        }
    }
    return false
}
