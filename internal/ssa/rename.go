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

// _Renamer walks the dominator tree once, tracking the reaching definition of
// every promotable slot on a stack tied to the recursion. Loads become uses
// of the reaching value, stores push a new one, and the slot's phi nodes
// collect the value flowing in from each predecessor.
type _Renamer struct {
    fn    *Function
    own   map[*IrPhi]Reg
    slots map[Reg]*_SlotDesc
    stack map[Reg][]Reg
    subst map[Reg]Reg
    undef map[Reg]Reg
    extra []IrNode
}

func newRenamer(fn *Function, slots map[Reg]*_SlotDesc, own map[*IrPhi]Reg) *_Renamer {
    return &_Renamer {
        fn    : fn,
        own   : own,
        slots : slots,
        stack : make(map[Reg][]Reg),
        subst : make(map[Reg]Reg),
        undef : make(map[Reg]Reg),
    }
}

func (self *_Renamer) push(slot Reg, v Reg) {
    self.stack[slot] = append(self.stack[slot], v)
}

func (self *_Renamer) pop(slot Reg) {
    n := len(self.stack[slot])
    self.stack[slot] = self.stack[slot][:n - 1]
}

// top returns the reaching value of a slot, materializing the undefined
// sentinel for slots read before any store on the current path. The sentinel
// is deterministic: one per slot, defined at function entry.
func (self *_Renamer) top(slot Reg) Reg {
    if s := self.stack[slot]; len(s) != 0 {
        return s[len(s) - 1]
    }
    if r, ok := self.undef[slot]; ok {
        return r
    }

    /* first undefined read of this slot */
    r := self.fn.derive(slot)
    self.undef[slot] = r
    self.extra = append(self.extra, &IrUndef { R: r, Tp: self.slots[slot].alloc.Tp })
    return r
}

// rewrite substitutes renamed registers into the operand list of an
// instruction. Substitution targets are final values, so one step suffices.
func (self *_Renamer) rewrite(v IrNode) {
    for _, r := range usages(v) {
        if s, ok := self.subst[*r]; ok {
            *r = s
        }
    }
}

func (self *_Renamer) renameblock(bb *BasicBlock) {
    var pushed []Reg

    /* phi definitions of promoted slots are the reaching value on entry */
    for _, phi := range bb.Phi {
        if slot, ok := self.own[phi]; ok {
            self.push(slot, phi.R)
            pushed = append(pushed, slot)
        }
    }

    /* rewrite the block body */
    ins := bb.Ins
    bb.Ins = bb.Ins[:0]
    for _, v := range ins {
        switch p := v.(type) {
            /* promoted allocs disappear */
            case *IrAlloc: {
                if _, ok := self.slots[p.R]; !ok {
                    bb.Ins = append(bb.Ins, p)
                }
            }

            /* loads of a promoted slot become uses of the reaching value */
            case *IrLoad: {
                if _, ok := self.slots[p.Mem]; !ok {
                    self.rewrite(p)
                    bb.Ins = append(bb.Ins, p)
                } else {
                    self.subst[p.R] = self.top(p.Mem)
                }
            }

            /* stores to a promoted slot push a new reaching value */
            case *IrStore: {
                self.rewrite(p)
                if _, ok := self.slots[p.Mem]; !ok {
                    bb.Ins = append(bb.Ins, p)
                } else {
                    self.push(p.Mem, p.V)
                    pushed = append(pushed, p.Mem)
                }
            }

            /* everything else keeps its opcode, with operands renamed */
            default: {
                self.rewrite(v)
                bb.Ins = append(bb.Ins, v)
            }
        }
    }

    /* rename the terminator */
    self.rewrite(bb.Term)

    /* install the reaching value into each successor's phi operands */
    for _, s := range bb.Term.Successors() {
        for _, phi := range s.Phi {
            if slot, ok := self.own[phi]; ok {
                *phi.V[bb] = self.top(slot)
            }
        }
    }

    /* recurse into the dominator-tree children */
    for _, p := range self.fn.CFG.DominatorOf[bb.Id] {
        self.renameblock(p)
    }

    /* pop this block's definitions */
    for _, slot := range pushed {
        self.pop(slot)
    }
}

func renameSlots(fn *Function, slots map[Reg]*_SlotDesc, own map[*IrPhi]Reg) {
    rr := newRenamer(fn, slots, own)
    rr.renameblock(fn.CFG.Root)

    /* place the undefined-read sentinels at function entry */
    if len(rr.extra) != 0 {
        fn.CFG.Root.Ins = append(rr.extra, fn.CFG.Root.Ins...)
    }
}
