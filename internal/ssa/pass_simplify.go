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

// Simplify cleans up the control flow graph: conditional branches on known
// booleans become jumps, empty forwarding blocks are threaded through,
// single-predecessor chains are merged, trivial phis are resolved, and
// blocks that became unreachable are dropped from the function. The pass is
// idempotent, a second application of a settled graph changes nothing.
type Simplify struct{}

// Apply rewrites the function to a fixpoint and reports whether the graph
// changed. The CFG is rebuilt after every round of edits, so dominance
// information is valid when the pass returns.
func (self Simplify) Apply(fn *Function) bool {
    changed := false

    for {
        fn.CFG.Rebuild()
        done := true

        if self.branchelim(fn.CFG) { done = false }
        if self.phielim(fn.CFG)    { done = false }
        if self.threading(fn.CFG)  { done = false }
        if self.blockmerge(fn.CFG) { done = false }

        if done {
            break
        }
        changed = true
    }

    /* drop the blocks that are no longer reachable */
    if self.sweep(fn) {
        changed = true
    }
    return changed
}

// branchelim rewrites conditional branches whose condition is a known
// constant, or whose arms coincide, into plain jumps.
func (self Simplify) branchelim(cfg *CFG) bool {
    done := true
    defs := definedBy(cfg)

    for _, bb := range cfg.Blocks() {
        br, ok := bb.Term.(*IrBranchIf)
        if !ok {
            continue
        }
        if br.T == br.F {
            bb.termBranch(br.T)
            done = false
            continue
        }
        if cv, ok := defs[br.V].(*IrConstBool); ok {
            if cv.V {
                bb.termBranch(br.T)
            } else {
                bb.termBranch(br.F)
            }
            done = false
        }
    }
    return !done
}

// phielim resolves phis that no longer select anything: a single operand, or
// every operand naming the same register (self-references aside).
func (self Simplify) phielim(cfg *CFG) bool {
    done := true

    for _, bb := range cfg.Blocks() {
        phi := bb.Phi[:0]
        for _, p := range bb.Phi {
            if r, ok := trivialPhi(p); ok {
                replaceUses(cfg, p.R, r)
                done = false
            } else {
                phi = append(phi, p)
            }
        }
        bb.Phi = phi
    }
    return !done
}

// trivialPhi reports the unique non-self operand of p, if there is one.
func trivialPhi(p *IrPhi) (Reg, bool) {
    var seen bool
    var uniq Reg

    for _, r := range p.V {
        if *r == p.R {
            continue
        }
        if seen && uniq != *r {
            return 0, false
        }
        uniq = *r
        seen = true
    }
    return uniq, seen
}

// threading redirects predecessors around a block that carries nothing but a
// jump. Phis in the jump target are extended with the redirected edge; if a
// target phi already disagrees about the incoming value the edge stays put.
func (self Simplify) threading(cfg *CFG) bool {
    done := true

    for _, bb := range cfg.Blocks() {
        br, ok := bb.Term.(*IrBranch)
        if !ok || bb == cfg.Root || bb == br.To || len(bb.Phi) != 0 || len(bb.Ins) != 0 {
            continue
        }
        to := br.To
        for _, p := range bb.Pred {
            if p == bb || !self.retarget(p, bb, to) {
                continue
            }
            for _, phi := range to.Phi {
                phi.V[p] = regnewref(*phi.V[bb])
            }
            done = false
        }
        if !done {
            cfg.Rebuild()
        }
    }
    return !done
}

// retarget repoints every edge p -> from onto p -> to, unless a phi in to
// already has a conflicting operand for p.
func (self Simplify) retarget(p *BasicBlock, from *BasicBlock, to *BasicBlock) bool {
    for _, phi := range to.Phi {
        if old, ok := phi.V[p]; ok && *old != *phi.V[from] {
            return false
        }
    }
    switch t := p.Term.(type) {
        case *IrBranch: {
            if t.To == from {
                t.To = to
            }
        }
        case *IrBranchIf: {
            if t.T == from { t.T = to }
            if t.F == from { t.F = to }
        }
    }
    return true
}

// blockmerge coalesces a block with its unique successor when that successor
// has no other way in. Phi operands in blocks downstream must be re-keyed to
// the surviving block.
func (self Simplify) blockmerge(cfg *CFG) bool {
    done := true

    for _, bb := range cfg.Blocks() {
        for {
            br, ok := bb.Term.(*IrBranch)
            if !ok {
                break
            }
            to := br.To
            if to == bb || len(to.Pred) != 1 || len(to.Phi) != 0 {
                break
            }

            /* splice the body and inherit the terminator */
            bb.Ins = append(bb.Ins, to.Ins...)
            bb.Term = to.Term
            to.Ins = nil

            /* re-key phi operands of the successors */
            for _, succ := range bb.Term.Successors() {
                for _, phi := range succ.Phi {
                    if r, ok := phi.V[to]; ok {
                        delete(phi.V, to)
                        phi.V[bb] = r
                    }
                }
            }
            cfg.Rebuild()
            done = false
        }
    }
    return !done
}

// sweep drops unreachable blocks from the function's block list. Rebuild has
// already detached them from every phi and predecessor list.
func (self Simplify) sweep(fn *Function) bool {
    live := make(map[int]struct{})
    for _, bb := range fn.CFG.Blocks() {
        live[bb.Id] = struct{}{}
    }

    all := fn.all[:0]
    for _, bb := range fn.all {
        if _, ok := live[bb.Id]; ok {
            all = append(all, bb)
        }
    }

    n := len(fn.all) != len(all)
    fn.all = all
    return n
}
