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

// Liveness computes which registers are live at every block boundary. Phi
// operands are not ordinary uses: the operand for predecessor P is live only
// on the edge P -> block, which the EdgeValue hook accounts for.
type Liveness struct {
    fn *Function
}

func NewLiveness(fn *Function) *Liveness {
    return &Liveness { fn: fn }
}

func (self *Liveness) Direction() Direction {
    return Backward
}

func (self *Liveness) Meet(acc Facts[Reg], v Facts[Reg]) {
    acc.Union(v)
}

// EdgeValue maps the successor's live-in onto the edge from -> to: the phi
// results themselves are consumed by the phis, and the operand selected for
// this particular predecessor becomes live. Phis assign in parallel, so all
// results are removed before any operand is added: one phi may read a
// sibling phi's result through the back edge.
func (self *Liveness) EdgeValue(from *BasicBlock, to *BasicBlock, v Facts[Reg]) Facts[Reg] {
    if len(to.Phi) == 0 {
        return v
    }
    r := v.Clone()
    for _, p := range to.Phi {
        r.Remove(p.R)
    }
    for _, p := range to.Phi {
        if op, ok := p.V[from]; ok {
            r.Add(*op)
        }
    }
    return r
}

// Transfer walks the block backwards from live-out to live-in. Phi results
// are removed at block entry; phi operands are handled on the edges.
func (self *Liveness) Transfer(bb *BasicBlock, v Facts[Reg]) Facts[Reg] {
    for _, r := range usages(bb.Term) {
        v.Add(*r)
    }
    for i := len(bb.Ins) - 1; i >= 0; i-- {
        for _, r := range definitions(bb.Ins[i]) {
            v.Remove(*r)
        }
        for _, r := range usages(bb.Ins[i]) {
            v.Add(*r)
        }
    }
    for _, p := range bb.Phi {
        v.Remove(p.R)
    }
    return v
}

// Solve runs the analysis to a fixpoint, visiting at most limit blocks
// (0 means unbounded). In the solution, In is the live set just above the
// block's phis and Out the live set below its terminator.
func (self *Liveness) Solve(limit int) Solution[Reg] {
    return Solve[Reg](self.fn.CFG, self, limit)
}
