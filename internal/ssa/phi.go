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
    `sort`

    `github.com/oleiade/lane`
)

// _SlotDesc tracks one promotable stack slot: the alloc that created it and
// every block that stores to it.
type _SlotDesc struct {
    slot  Reg
    alloc *IrAlloc
    defs  []*BasicBlock
}

// promotableSlots finds every stack slot that can be lifted into SSA
// registers: scalar allocs whose address is used only as the memory operand
// of loads and stores. Anything else (arrays, read targets, escaping
// addresses) stays in memory.
func promotableSlots(fn *Function) map[Reg]*_SlotDesc {
    slots := make(map[Reg]*_SlotDesc)

    /* every scalar alloc is a candidate */
    for _, bb := range fn.CFG.Blocks() {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrAlloc); ok && p.Tp.Scalar() {
                slots[p.R] = &_SlotDesc { slot: p.R, alloc: p }
            }
        }
    }

    /* reject candidates whose address leaks out of load/store positions */
    reject := func(r Reg) {
        delete(slots, r)
    }
    for _, bb := range fn.CFG.Blocks() {
        for _, phi := range bb.Phi {
            for _, r := range phi.Usages() {
                reject(*r)
            }
        }
        for _, v := range bb.Ins {
            switch p := v.(type) {
                case *IrAlloc : break
                case *IrLoad  : break
                case *IrStore : reject(p.V)
                default: {
                    for _, r := range usages(v) {
                        reject(*r)
                    }
                }
            }
        }
        for _, r := range usages(bb.Term) {
            reject(*r)
        }
    }

    /* collect the definition sites of the survivors */
    for _, bb := range fn.CFG.Blocks() {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrStore); ok {
                if d, ok := slots[p.Mem]; ok && !blockin(d.defs, bb) {
                    d.defs = append(d.defs, bb)
                }
            }
        }
    }
    return slots
}

// insertPhiNodes places one phi per promotable slot at every block of the
// slot's iterated dominance frontier, and returns the slot each inserted phi
// belongs to. Phi operands are left blank for the renamer to fill in.
func insertPhiNodes(fn *Function, slots map[Reg]*_SlotDesc) map[*IrPhi]Reg {
    cfg := fn.CFG
    own := make(map[*IrPhi]Reg)

    /* sort the slots by register for deterministic insertion order */
    sd := make([]*_SlotDesc, 0, len(slots))
    for _, d := range slots {
        sd = append(sd, d)
    }
    sort.Slice(sd, func(i int, j int) bool {
        return sd[i].slot < sd[j].slot
    })

    /* insert phi nodes for every slot */
    for _, d := range sd {
        q := lane.NewQueue()
        has := make(map[int]bool)
        orig := make(map[int]bool)

        /* seed the worklist with the definition sites, in block order */
        defs := append([]*BasicBlock(nil), d.defs...)
        sort.Slice(defs, func(i int, j int) bool {
            return defs[i].Id < defs[j].Id
        })
        for _, bb := range defs {
            orig[bb.Id] = true
            q.Enqueue(bb)
        }

        /* iterate the dominance frontier */
        for !q.Empty() {
            n := q.Dequeue().(*BasicBlock)
            for _, y := range cfg.DominanceFrontier[n.Id] {
                if !has[y.Id] {
                    has[y.Id] = true
                    src := make(map[*BasicBlock]*Reg, len(y.Pred))

                    /* blank operand per predecessor */
                    for _, pred := range y.Pred {
                        src[pred] = new(Reg)
                    }

                    /* insert the phi node */
                    phi := &IrPhi { R: fn.derive(d.slot), V: src, Tp: d.alloc.Tp }
                    y.Phi = append(y.Phi, phi)
                    own[phi] = d.slot

                    /* a block may hold both an ordinary definition and a
                     * phi for the same slot */
                    if !orig[y.Id] {
                        q.Enqueue(y)
                    }
                }
            }
        }
    }
    return own
}

// Promote rewrites load/store traffic on promotable stack slots into direct
// register def-use chains with the minimal set of phi nodes. It runs once per
// function, right after CFG construction, and does not change control edges.
func Promote(fn *Function) {
    slots := promotableSlots(fn)
    if len(slots) != 0 {
        own := insertPhiNodes(fn, slots)
        renameSlots(fn, slots, own)
    }
}
