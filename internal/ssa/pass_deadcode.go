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

// DeadCode removes instructions whose results are never live. Instructions
// with observable side effects (stores, calls, print, read) are kept no
// matter what happens to their results. Deleting one instruction can kill
// the uses that kept another alive, so the pass re-solves liveness until
// nothing more drops out.
type DeadCode struct{}

// Apply sweeps the function to a fixpoint and reports whether anything was
// removed.
func (self DeadCode) Apply(fn *Function) bool {
    done := false
    changed := false

    for !done {
        done = true
        sol := NewLiveness(fn).Solve(0)

        fn.CFG.ReversePostOrder(func(bb *BasicBlock) {
            live := sol.Out[bb.Id].Clone()
            for _, r := range usages(bb.Term) {
                live.Add(*r)
            }

            /* sweep the body backwards, updating liveness as we go */
            ins := bb.Ins
            for i := len(ins) - 1; i >= 0; i-- {
                if self.dead(ins[i], live) {
                    ins = append(ins[:i], ins[i + 1:]...)
                    done = false
                    changed = true
                    continue
                }
                for _, r := range definitions(ins[i]) {
                    live.Remove(*r)
                }
                for _, r := range usages(ins[i]) {
                    live.Add(*r)
                }
            }
            bb.Ins = ins

            /* a phi is dead when its result is not live anywhere; its
             * operands are only ever uses on incoming edges, so removal
             * cannot make another phi of this block dead or alive */
            phi := bb.Phi[:0]
            for _, p := range bb.Phi {
                if live.Has(p.R) {
                    phi = append(phi, p)
                } else {
                    done = false
                    changed = true
                }
            }
            bb.Phi = phi
        })
    }
    return changed
}

func (DeadCode) dead(v IrNode, live Facts[Reg]) bool {
    if impure(v) {
        return false
    }
    defs := definitions(v)
    if len(defs) == 0 {
        return false
    }
    for _, r := range defs {
        if live.Has(*r) {
            return false
        }
    }
    return true
}
