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

// Def is one reaching-definitions fact: register R is defined by the
// instruction At. Parameters are defined at function entry with a nil At.
type Def struct {
    R  Reg
    At IrNode
}

// ReachingDefs computes, for every block boundary, the set of definitions
// that may reach it along some path. Under SSA each register has a single
// definition, so the per-register kill set is at most one entry; the pass
// still kills properly so it stays correct on pre-promotion graphs too.
type ReachingDefs struct {
    fn *Function
}

func NewReachingDefs(fn *Function) *ReachingDefs {
    return &ReachingDefs { fn: fn }
}

func (self *ReachingDefs) Direction() Direction {
    return Forward
}

func (self *ReachingDefs) Meet(acc Facts[Def], v Facts[Def]) {
    acc.Union(v)
}

func (self *ReachingDefs) EdgeValue(_ *BasicBlock, _ *BasicBlock, v Facts[Def]) Facts[Def] {
    return v
}

func (self *ReachingDefs) Transfer(bb *BasicBlock, v Facts[Def]) Facts[Def] {
    gen := func(r Reg, at IrNode) {
        for f := range v {
            if f.R == r {
                v.Remove(f)
            }
        }
        v.Add(Def { R: r, At: at })
    }

    /* parameters are defined on entry into the root block */
    if bb == self.fn.CFG.Root {
        for _, p := range self.fn.Params {
            gen(p.R, nil)
        }
    }

    /* phi definitions precede the block body */
    for _, p := range bb.Phi {
        gen(p.R, p)
    }

    /* instruction definitions, in execution order */
    for _, ins := range bb.Ins {
        for _, r := range definitions(ins) {
            gen(*r, ins)
        }
    }
    return v
}

// Solve runs the analysis to a fixpoint, visiting at most limit blocks
// (0 means unbounded).
func (self *ReachingDefs) Solve(limit int) Solution[Def] {
    return Solve[Def](self.fn.CFG, self, limit)
}
