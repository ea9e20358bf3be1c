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

func minint(a int, b int) int {
    if a < b {
        return a
    } else {
        return b
    }
}

func regnewref(v Reg) (r *Reg) {
    r = new(Reg)
    *r = v
    return
}

func regsliceref(v []Reg) (r []*Reg) {
    r = make([]*Reg, len(v))
    for i := range v { r[i] = &v[i] }
    return
}

func blockin(bb []*BasicBlock, p *BasicBlock) bool {
    for _, b := range bb {
        if b == p {
            return true
        }
    }
    return false
}

func blockreverse(bb []*BasicBlock) {
    for i, j := 0, len(bb) - 1; i < j; i, j = i + 1, j - 1 {
        bb[i], bb[j] = bb[j], bb[i]
    }
}

// usages returns the operand views of an instruction, or nil if it has none.
func usages(v IrNode) []*Reg {
    if u, ok := v.(IrUsages); ok {
        return u.Usages()
    } else {
        return nil
    }
}

// definitions returns the result views of an instruction, or nil.
func definitions(v IrNode) []*Reg {
    if d, ok := v.(IrDefinitions); ok {
        return d.Definitions()
    } else {
        return nil
    }
}

// impure reports whether the instruction carries observable side effects.
func impure(v IrNode) bool {
    _, ok := v.(IrImpure)
    return ok
}

// replaceUses rewrites every use of register from to register to, across the
// whole function (instruction operands, phi operands and terminators).
func replaceUses(cfg *CFG, from Reg, to Reg) {
    for _, bb := range cfg.Blocks() {
        for _, phi := range bb.Phi {
            for _, r := range phi.Usages() {
                if *r == from {
                    *r = to
                }
            }
        }
        for _, v := range bb.Ins {
            for _, r := range usages(v) {
                if *r == from {
                    *r = to
                }
            }
        }
        for _, r := range usages(bb.Term) {
            if *r == from {
                *r = to
            }
        }
    }
}

// definedBy builds the map from every register to its unique defining
// instruction. In well-formed SSA the mapping is total over used registers.
func definedBy(cfg *CFG) map[Reg]IrNode {
    defs := make(map[Reg]IrNode)
    for _, bb := range cfg.Blocks() {
        for _, phi := range bb.Phi {
            defs[phi.R] = phi
        }
        for _, v := range bb.Ins {
            for _, r := range definitions(v) {
                defs[*r] = v
            }
        }
    }
    return defs
}
